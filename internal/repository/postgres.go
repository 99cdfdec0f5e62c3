package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
)

const uniqueViolationCode = "23505"

// Compile-time interface assertions.
var (
	_ UserRepository    = (*PostgresUserRepo)(nil)
	_ SessionRepository = (*PostgresSessionRepo)(nil)
)

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserColumns = `id, first_name, last_name, email, password_hash, role, tenant_id, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+selectUserColumns,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role.String(), user.TenantID)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &role, &user.TenantID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.Role = parsed
	return user, nil
}

// PostgresSessionRepo implements SessionRepository on pgx.
type PostgresSessionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresSessionRepo(pool *pgxpool.Pool) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: pool}
}

func (r *PostgresSessionRepo) Create(ctx context.Context, session domain.RefreshSession) (domain.RefreshSession, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO refresh_sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, created_at, expires_at`,
		session.ID, session.UserID, session.ExpiresAt)

	var created domain.RefreshSession
	if err := row.Scan(&created.ID, &created.UserID, &created.CreatedAt, &created.ExpiresAt); err != nil {
		return domain.RefreshSession{}, fmt.Errorf("create refresh session: %w", err)
	}
	return created, nil
}

func (r *PostgresSessionRepo) Delete(ctx context.Context, sessionID int64) error {
	// Zero rows affected means the session was already revoked; that is
	// a success, not an error.
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete refresh session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepo) IsValid(ctx context.Context, sessionID int64, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_sessions WHERE id = $1 AND expires_at > $2)`,
		sessionID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check refresh session: %w", err)
	}
	return exists, nil
}
