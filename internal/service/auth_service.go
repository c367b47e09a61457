package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sixwallet/internal/models"
	"sixwallet/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBlacklisted        = errors.New("identity is blacklisted")
)

type UserRepository interface {
	CreateUserWithWallet(ctx context.Context, user *models.User, wallet *models.Wallet) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// BlacklistChecker is the external karma lookup. It is a pre-condition on
// registration only; ledger correctness never depends on it.
type BlacklistChecker interface {
	Check(ctx context.Context, identityType, identityValue string) (bool, error)
}

type AuthService struct {
	users     UserRepository
	blacklist BlacklistChecker
	logger    *slog.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users UserRepository, blacklist BlacklistChecker, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a user and their zero-balance wallet. A blacklisted
// email is rejected before anything is written; a failed lookup is logged
// and never blocks registration.
func (s *AuthService) Register(ctx context.Context, name, email, phone, password string) (*models.User, string, error) {
	blacklisted, err := s.blacklist.Check(ctx, "email", email)
	if err != nil {
		s.logger.Warn("Blacklist lookup failed, continuing registration",
			slog.String("email", email),
			slog.Any("err", err),
		)
		blacklisted = false
	}
	if blacklisted {
		s.logger.Warn("Registration rejected: blacklisted identity",
			slog.String("email", email),
		)
		return nil, "", ErrBlacklisted
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
	}
	wallet := &models.Wallet{
		ID:     uuid.New(),
		UserID: user.ID,
	}
	if err := s.users.CreateUserWithWallet(ctx, user, wallet); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", repository.ErrEmailTaken
		}
		s.logger.Error("Registration failed",
			slog.String("email", email),
			slog.Any("err", err),
		)
		return nil, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("User registered",
		slog.String("user_id", user.ID.String()),
	)
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
