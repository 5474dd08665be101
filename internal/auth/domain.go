package auth

import (
	"errors"
	"time"
)

// User is an operator account. Everyone who can log in can run the
// business, there is no role hierarchy.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// ErrInvalidCredentials is returned for unknown emails and wrong
// passwords alike, the two cases are indistinguishable to callers.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")
