package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/marbledesk/marbledesk/internal/shared"
)

// UserStore abstracts user lookup so the service can be tested in memory.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
}

// Service implements authentication.
type Service struct {
	store  UserStore
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(store UserStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Authenticate verifies credentials and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", slog.String("email", email))
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// CurrentUser loads the user behind a session.
func (s *Service) CurrentUser(ctx context.Context, id int64) (User, error) {
	return s.store.FindByID(ctx, id)
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
