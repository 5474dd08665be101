package auth

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marbledesk/marbledesk/internal/shared"
)

type memoryUsers struct {
	users map[string]User
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (User, error) {
	u, ok := m.users[email]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) FindByID(_ context.Context, id int64) (User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	store := &memoryUsers{users: map[string]User{
		"admin@marbledesk.local": {ID: 1, Email: "admin@marbledesk.local", Name: "Admin", PasswordHash: hash},
	}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(store, logger)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "admin@marbledesk.local", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	_, err = svc.Authenticate(ctx, "admin@marbledesk.local", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@marbledesk.local", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
