package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vbonduro/eatinformed/internal/auth"
	"github.com/vbonduro/eatinformed/internal/domain"
	"github.com/vbonduro/eatinformed/internal/store"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password must be at least 6 characters long")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes long")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// userRepository is the subset of store.UserStore that AccountService requires.
type userRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type AccountService struct {
	users  userRepository
	tokens *auth.TokenIssuer
	logger *slog.Logger
}

func NewAccountService(users userRepository, tokens *auth.TokenIssuer, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, tokens: tokens, logger: logger}
}

// SignUp creates an account and returns a session token for it.
func (s *AccountService) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	user, err := s.users.Create(ctx, email, hash)
	if errors.Is(err, store.ErrDuplicate) {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return s.tokens.Issue(user.ID, user.Email)
}

// LogIn checks the credentials and returns a session token. Unknown emails
// and wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) LogIn(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.tokens.Issue(user.ID, user.Email)
}

// Verify returns the claims of a valid session token.
func (s *AccountService) Verify(token string) (*auth.Claims, error) {
	return s.tokens.Parse(token)
}

// TokenTTL is the lifetime of issued session tokens.
func (s *AccountService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
