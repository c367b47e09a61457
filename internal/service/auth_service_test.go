package service_test

import (
	"context"
	"testing"
	"time"

	"sixwallet/internal/models"
	"sixwallet/internal/repository"
	"sixwallet/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubUserRepo struct {
	users     map[string]*models.User
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*models.User)}
}

func (s *stubUserRepo) CreateUserWithWallet(_ context.Context, user *models.User, _ *models.Wallet) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	s.users[user.Email] = user
	return nil
}

func (s *stubUserRepo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type stubBlacklist struct {
	hit bool
	err error
}

func (s stubBlacklist) Check(context.Context, string, string) (bool, error) {
	return s.hit, s.err
}

func TestRegister_IssuesVerifiableToken(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubBlacklist{}, "test-secret", time.Hour, testLogger)

	user, token, err := svc.Register(context.Background(), "Ada", "ada@example.com", "", "hunter2hunter2")
	require.NoError(t, err)
	require.NotNil(t, user)

	claims := &models.UserClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID, claims.UserID)

	// The stored hash must verify against the raw password.
	stored := repo.users["ada@example.com"]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))
}

func TestRegister_BlacklistedIdentityRejected(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubBlacklist{hit: true}, "test-secret", time.Hour, testLogger)

	_, _, err := svc.Register(context.Background(), "Mallory", "mallory@example.com", "", "hunter2hunter2")
	assert.ErrorIs(t, err, service.ErrBlacklisted)
	assert.Empty(t, repo.users)
}

func TestRegister_BlacklistLookupFailureDoesNotBlock(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubBlacklist{err: assert.AnError}, "test-secret", time.Hour, testLogger)

	_, _, err := svc.Register(context.Background(), "Ada", "ada@example.com", "", "hunter2hunter2")
	assert.NoError(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubBlacklist{}, "test-secret", time.Hour, testLogger)

	_, _, err := svc.Register(context.Background(), "Ada", "ada@example.com", "", "hunter2hunter2")
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), "Imposter", "ada@example.com", "", "hunter2hunter2")
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	repo := newStubUserRepo()
	svc := service.NewAuthService(repo, stubBlacklist{}, "test-secret", time.Hour, testLogger)

	_, _, err := svc.Register(context.Background(), "Ada", "ada@example.com", "", "hunter2hunter2")
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "ada@example.com", "hunter2hunter2")
	assert.NoError(t, err)
	assert.NotNil(t, user)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}
