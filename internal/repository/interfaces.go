package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
)

// ErrDuplicateEmail reports a unique-constraint violation on the email
// column. Surfaced by Create; the service maps it to a client error.
var ErrDuplicateEmail = errors.New("repository: email already registered")

// UserRepository exposes persistence for registered users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// SessionRepository handles refresh-session rows. A row's existence is
// what keeps the matching refresh token revocable.
type SessionRepository interface {
	// Create persists a new session owned by userID expiring at expiresAt
	// and returns the stored row.
	Create(ctx context.Context, session domain.RefreshSession) (domain.RefreshSession, error)
	// Delete revokes the session. Idempotent: deleting an absent or
	// already-revoked id succeeds, since "already logged out" is an
	// acceptable end state.
	Delete(ctx context.Context, sessionID int64) error
	// IsValid reports whether the session exists and has not expired as
	// of now. Consulted before trusting refresh-token claims.
	IsValid(ctx context.Context, sessionID int64, now time.Time) (bool, error)
}
