package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerdbug/user-service/internal/domain"
)

// Validation failure kinds. Expired tokens get their own sentinel so
// callers can distinguish "log in again" from "this token is garbage",
// though both map to the same HTTP response.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims carries the identity embedded in an access token. The token is
// the only session state; whatever the handlers need about the caller
// has to be in here.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 access tokens.
type JWTManager struct {
	secret   []byte
	expiry   time.Duration
	issuer   string
	audience string
}

// NewJWTManager creates a JWT manager with the given signing secret,
// token lifetime, and issuer/audience pair.
func NewJWTManager(secret string, expiry time.Duration, issuer, audience string) *JWTManager {
	return &JWTManager{
		secret:   []byte(secret),
		expiry:   expiry,
		issuer:   issuer,
		audience: audience,
	}
}

// GenerateAccessToken creates a signed token for the given user.
func (m *JWTManager) GenerateAccessToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and verifies a token, returning its claims.
// Signature, expiry, issuer, and audience are all checked; any failure
// other than expiry collapses to ErrTokenInvalid.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
