package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerdbug/user-service/internal/auth"
	"github.com/nerdbug/user-service/internal/domain"
	apperrors "github.com/nerdbug/user-service/pkg/errors"
	"github.com/nerdbug/user-service/pkg/pagination"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserDeleted(ctx context.Context, userID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

// --- Fixtures ---

func newTestService(repo *mockUserRepository, pub *mockPublisher) *UserService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager(
		"service-test-secret-0123456789abcdef",
		time.Hour,
		"user-service",
		"user-service-clients",
	)
	// Min bcrypt cost keeps hashing fast in tests.
	return NewUserService(repo, jwtManager, pub, logger, Config{
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 8,
	})
}

func hashedUser(password string) *domain.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	now := time.Now().UTC()
	return &domain.User{
		ID:           "3f8c8a1e-0b2d-4f6a-9c21-5a7b8d9e0f11",
		Email:        "jane@example.com",
		PasswordHash: string(hash),
		Username:     "jane",
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func strptr(s string) *string { return &s }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	pub.On("PublishUserRegistered", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:     "jane@example.com",
		Password:  "longenough",
		Username:  "jane",
		FirstName: "Jane",
		LastName:  "Doe",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEqual(t, "longenough", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRegister_AlwaysRoleUser(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	var created *domain.User
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	pub.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "eve@example.com",
		Password: "longenough",
		Username: "eve",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, created.Role)
}

func TestRegister_ShortPassword(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "jane@example.com",
		Password: "short",
		Username: "jane",
	})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "expected ErrInvalidInput, got: %v", err)
	repo.AssertNotCalled(t, "Create")
}

func TestRegister_MissingEmail(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	_, err := svc.Register(context.Background(), RegisterInput{
		Password: "longenough",
		Username: "jane",
	})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("user", "email", "jane@example.com"))

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "jane@example.com",
		Password: "longenough",
		Username: "jane",
	})

	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists), "expected ErrAlreadyExists, got: %v", err)
	pub.AssertNotCalled(t, "PublishUserRegistered")
}

func TestRegister_PublishFailureIsNotFatal(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishUserRegistered", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "jane@example.com",
		Password: "longenough",
		Username: "jane",
	})

	require.NoError(t, err)
	assert.NotNil(t, user)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("longenough")
	repo.On("GetByEmail", mock.Anything, "jane@example.com").Return(stored, nil)

	user, token, err := svc.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "longenough",
	})

	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
	assert.NotEmpty(t, token)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByEmail", mock.Anything, "jane@example.com").Return(hashedUser("longenough"), nil)

	_, _, err := svc.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "wrongpassword",
	})

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized), "expected ErrUnauthorized, got: %v", err)
}

func TestLogin_UnknownEmail(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "longenough",
	})

	// Unknown email and wrong password must be indistinguishable.
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized), "expected ErrUnauthorized, got: %v", err)
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.ErrNotFound)
	repo.On("GetByEmail", mock.Anything, "jane@example.com").Return(hashedUser("longenough"), nil)

	_, _, errUnknown := svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever1"})
	_, _, errWrongPw := svc.Login(context.Background(), LoginInput{Email: "jane@example.com", Password: "whatever1"})

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestLogin_RepositoryFailureIsNotUnauthorized(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByEmail", mock.Anything, "jane@example.com").
		Return(nil, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	_, _, err := svc.Login(context.Background(), LoginInput{
		Email:    "jane@example.com",
		Password: "longenough",
	})

	// Infrastructure failures must surface as server errors, not as a
	// credential rejection.
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrUnauthorized), "expected infra error, got: %v", err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

// --- GetUser / ListUsers ---

func TestGetUser_NotFound(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetUser(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListUsers(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	users := []domain.User{*hashedUser("longenough")}
	repo.On("List", mock.Anything, 20, 0).Return(users, nil)
	repo.On("Count", mock.Anything).Return(int64(41), nil)

	result, err := svc.ListUsers(context.Background(), pagination.DefaultParams())

	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 41, result.TotalCount)
	assert.Equal(t, 3, result.TotalPages)
	assert.True(t, result.HasNext)
}

// --- UpdateProfile / AdminUpdateUser ---

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("longenough")
	repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	pub.On("PublishUserUpdated", mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.UpdateProfile(context.Background(), stored.ID, UpdateProfileInput{
		FirstName: strptr("Janet"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.FirstName)
	assert.Equal(t, "Doe", updated.LastName)
	assert.Equal(t, "jane@example.com", updated.Email)
}

func TestUpdateProfile_NotFound(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	_, err := svc.UpdateProfile(context.Background(), "missing", UpdateProfileInput{FirstName: strptr("X")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAdminUpdateUser_ChangesRole(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("longenough")
	repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	pub.On("PublishUserUpdated", mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.AdminUpdateUser(context.Background(), stored.ID, AdminUpdateInput{
		Role: strptr(domain.RoleAdmin),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
}

func TestAdminUpdateUser_InvalidRole(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	_, err := svc.AdminUpdateUser(context.Background(), "any", AdminUpdateInput{
		Role: strptr("SUPERADMIN"),
	})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput), "expected ErrInvalidInput, got: %v", err)
	repo.AssertNotCalled(t, "GetByID")
}

// --- ChangePassword ---

func TestChangePassword_Success(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("oldpassword")
	oldHash := stored.PasswordHash
	repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	err := svc.ChangePassword(context.Background(), stored.ID, "oldpassword", "newpassword")

	require.NoError(t, err)
	assert.NotEqual(t, oldHash, stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword")))
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("oldpassword")
	repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)

	err := svc.ChangePassword(context.Background(), stored.ID, "notthepassword", "newpassword")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized), "expected ErrUnauthorized, got: %v", err)
	repo.AssertNotCalled(t, "Update")
}

func TestChangePassword_AccountGone(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByID", mock.Anything, "gone").Return(nil, apperrors.ErrNotFound)

	err := svc.ChangePassword(context.Background(), "gone", "oldpassword", "newpassword")

	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized), "expected ErrUnauthorized, got: %v", err)
	repo.AssertNotCalled(t, "Update")
}

func TestChangePassword_RepositoryFailure(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByID", mock.Anything, "any").Return(nil, errors.New("connection reset by peer"))

	err := svc.ChangePassword(context.Background(), "any", "oldpassword", "newpassword")

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, apperrors.HTTPStatus(err))
}

func TestChangePassword_ShortNewPassword(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	err := svc.ChangePassword(context.Background(), "any", "oldpassword", "short")

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "GetByID")
}

// --- DeleteUser ---

func TestDeleteUser_Success(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	stored := hashedUser("longenough")
	repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)
	repo.On("Delete", mock.Anything, stored.ID).Return(nil)
	pub.On("PublishUserDeleted", mock.Anything, stored.ID, stored.Email).Return(nil)

	err := svc.DeleteUser(context.Background(), stored.ID)

	require.NoError(t, err)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	repo := new(mockUserRepository)
	pub := new(mockPublisher)
	svc := newTestService(repo, pub)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	err := svc.DeleteUser(context.Background(), "missing")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	repo.AssertNotCalled(t, "Delete")
}
