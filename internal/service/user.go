package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerdbug/user-service/internal/auth"
	"github.com/nerdbug/user-service/internal/domain"
	"github.com/nerdbug/user-service/internal/repository"
	apperrors "github.com/nerdbug/user-service/pkg/errors"
	"github.com/nerdbug/user-service/pkg/pagination"
)

// EventPublisher publishes user lifecycle events. Publishing is
// best-effort: failures are logged, never surfaced to the caller.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, user *domain.User) error
	PublishUserDeleted(ctx context.Context, userID, email string) error
}

// Config holds the tunable knobs for the user service.
type Config struct {
	BcryptCost        int
	MinPasswordLength int
}

// UserService implements the business logic for user and auth operations.
type UserService struct {
	userRepo   repository.UserRepository
	jwtManager *auth.JWTManager
	publisher  EventPublisher
	logger     *slog.Logger
	cfg        Config
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	jwtManager *auth.JWTManager,
	publisher EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *UserService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MinPasswordLength == 0 {
		cfg.MinPasswordLength = 8
	}
	return &UserService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput holds the parameters for a user updating their own
// profile. Role is deliberately absent; only admins may change roles.
type UpdateProfileInput struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
}

// AdminUpdateInput holds the parameters for an admin updating any user,
// including their role.
type AdminUpdateInput struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
	Role      *string
}

// Register creates a new user account with a hashed password. The role is
// always USER; there is no way to register an admin through this path.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if err := s.validatePassword(input.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashed),
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.publisher.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// Login authenticates a user by email and password and returns the user
// together with a signed access token. Unknown email and wrong password
// produce the same error so callers cannot probe which emails exist.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.Unauthorized("invalid email or password")
		}
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers returns a page of users with the total count.
func (s *UserService) ListUsers(ctx context.Context, params pagination.Params) (pagination.Result[domain.User], error) {
	users, err := s.userRepo.List(ctx, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[domain.User]{}, fmt.Errorf("list users: %w", err)
	}

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return pagination.Result[domain.User]{}, fmt.Errorf("count users: %w", err)
	}

	return pagination.NewResult(users, int(total), params), nil
}

// UpdateProfile applies a partial profile update on behalf of the user
// themselves. Nil fields are left untouched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	applyProfileFields(user, input.Email, input.Username, input.FirstName, input.LastName)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.publishUpdated(ctx, user)

	return user, nil
}

// AdminUpdateUser applies a partial update to any user, optionally
// changing their role. The role must be one of the known roles.
func (s *UserService) AdminUpdateUser(ctx context.Context, id string, input AdminUpdateInput) (*domain.User, error) {
	if input.Role != nil && !domain.IsValidRole(*input.Role) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role: %q", *input.Role))
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user for admin update: %w", err)
	}

	applyProfileFields(user, input.Email, input.Username, input.FirstName, input.LastName)
	if input.Role != nil {
		user.Role = *input.Role
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.publishUpdated(ctx, user)

	s.logger.InfoContext(ctx, "user updated by admin",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ChangePassword verifies the current password and replaces it with a
// fresh hash of the new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("current password is incorrect")
		}
		return fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashed)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// DeleteUser removes a user account.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user for delete: %w", err)
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := s.publisher.PublishUserDeleted(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", user.ID),
	)

	return nil
}

func (s *UserService) validatePassword(password string) error {
	if len(password) < s.cfg.MinPasswordLength {
		return apperrors.InvalidInput(
			fmt.Sprintf("password must be at least %d characters long", s.cfg.MinPasswordLength),
		)
	}
	return nil
}

func (s *UserService) publishUpdated(ctx context.Context, user *domain.User) {
	if err := s.publisher.PublishUserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

func applyProfileFields(user *domain.User, email, username, firstName, lastName *string) {
	if email != nil {
		user.Email = *email
	}
	if username != nil {
		user.Username = *username
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
}
