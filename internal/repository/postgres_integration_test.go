//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/repository"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL must be set for integration tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	return node
}

func TestUserRepoDuplicateEmail(t *testing.T) {
	pool := setupDB(t)
	users := repository.NewPostgresUserRepo(pool)
	node := newNode(t)
	ctx := context.Background()

	email := "it-dup-" + node.Generate().String() + "@example.com"
	user := domain.User{
		ID:           node.Generate().Int64(),
		FirstName:    "Integration",
		LastName:     "Test",
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Role:         domain.RoleCustomer,
	}

	created, err := users.Create(ctx, user)
	require.NoError(t, err)
	require.Equal(t, user.ID, created.ID)

	dup := user
	dup.ID = node.Generate().Int64()
	_, err = users.Create(ctx, dup)
	require.ErrorIs(t, err, repository.ErrDuplicateEmail)

	found, err := users.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}

func TestSessionRepoLifecycle(t *testing.T) {
	pool := setupDB(t)
	users := repository.NewPostgresUserRepo(pool)
	sessions := repository.NewPostgresSessionRepo(pool)
	node := newNode(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, domain.User{
		ID:           node.Generate().Int64(),
		FirstName:    "Session",
		LastName:     "Owner",
		Email:        "it-session-" + node.Generate().String() + "@example.com",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Role:         domain.RoleCustomer,
	})
	require.NoError(t, err)

	session, err := sessions.Create(ctx, domain.RefreshSession{
		ID:        node.Generate().Int64(),
		UserID:    owner.ID,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	valid, err := sessions.IsValid(ctx, session.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, valid)

	require.NoError(t, sessions.Delete(ctx, session.ID))

	valid, err = sessions.IsValid(ctx, session.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, valid)

	// Deleting again must succeed: revocation is idempotent.
	require.NoError(t, sessions.Delete(ctx, session.ID))
}

func TestSessionRepoExpiry(t *testing.T) {
	pool := setupDB(t)
	users := repository.NewPostgresUserRepo(pool)
	sessions := repository.NewPostgresSessionRepo(pool)
	node := newNode(t)
	ctx := context.Background()

	owner, err := users.Create(ctx, domain.User{
		ID:           node.Generate().Int64(),
		FirstName:    "Expired",
		LastName:     "Owner",
		Email:        "it-expired-" + node.Generate().String() + "@example.com",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Role:         domain.RoleCustomer,
	})
	require.NoError(t, err)

	session, err := sessions.Create(ctx, domain.RefreshSession{
		ID:        node.Generate().Int64(),
		UserID:    owner.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)

	valid, err := sessions.IsValid(ctx, session.ID, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, valid, "expired session must not validate")
}
