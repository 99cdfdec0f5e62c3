package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/password"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/repository"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/token"
)

// AuthError is a client-facing failure with a stable code.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newAuthError(code, desc string, status int) *AuthError {
	return &AuthError{Code: code, Description: desc, Status: status}
}

// errInvalidCredentials is shared by the "no such user" and "wrong
// password" paths so a caller cannot enumerate registered emails.
func errInvalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "Email or password does not match.", http.StatusBadRequest)
}

// TokenPair is one access token plus the refresh token bound to a fresh
// refresh-session row.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by every flow that establishes a session.
type AuthResult struct {
	UserID int64
	Tokens TokenPair
}

// RegisterInput carries the registration fields. Field-level validation
// happens at the HTTP boundary; by the time input reaches here it is
// well-formed.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthService orchestrates registration, login, refresh rotation and
// logout.
//
// Rotation holds no locks: two refreshes racing on the same session id
// both revoke it (idempotent) and each persists its own new row, leaving
// two live sessions. That is an accepted outcome, equivalent to the user
// logging in on a second device, and not a replay hole.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   *password.Hasher
	signer   *token.Signer
	node     *snowflake.Node
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, hasher *password.Hasher, signer *token.Signer, node *snowflake.Node, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		signer:   signer,
		node:     node,
		logger:   logger,
		tracer:   otel.Tracer("github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/service"),
	}
}

// Register creates a user with the customer role and opens a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.node.Generate().Int64(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hashed,
		Role:         domain.RoleCustomer,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, newAuthError("duplicate_email", "Email is already registered.", http.StatusBadRequest)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err := s.openSession(ctx, created)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("user.registered", "user_id", created.ID)
	return result, nil
}

// Login authenticates with email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			span.RecordError(err)
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		return nil, errInvalidCredentials()
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("user.logged_in", "user_id", user.ID)
	return result, nil
}

// Refresh rotates the session named by the verified claims: the old row
// is revoked first and a brand-new pair is issued, so the returned
// refresh token always embeds the new row's id.
func (s *AuthService) Refresh(ctx context.Context, claims token.Claims) (*AuthResult, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newAuthError("user_not_found", "No user found for token.", http.StatusBadRequest)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh load user: %w", err)
	}

	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("revoke refresh session: %w", err)
	}

	result, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.audit("session.rotated", "user_id", user.ID, "old_session_id", claims.SessionID)
	return result, nil
}

// Logout revokes the session named by the claims. Revoking an already
// revoked session succeeds.
func (s *AuthService) Logout(ctx context.Context, claims token.Claims) error {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	s.audit("user.logged_out", "user_id", claims.UserID, "session_id", claims.SessionID)
	return nil
}

// Self returns the authenticated user without credential material.
func (s *AuthService) Self(ctx context.Context, userID int64) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Self")
	defer span.End()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, newAuthError("user_not_found", "No user found for token.", http.StatusBadRequest)
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// openSession persists a new refresh-session row, then signs the access
// token and finally the refresh token embedding the new row's id. A
// failure after the row is persisted leaves an orphan; without a signed
// token it can never be presented, so no compensation is attempted.
func (s *AuthService) openSession(ctx context.Context, user domain.User) (*AuthResult, error) {
	session := domain.RefreshSession{
		ID:        s.node.Generate().Int64(),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.signer.RefreshTTL()),
	}
	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("persist refresh session: %w", err)
	}

	access, err := s.signer.SignAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.SignRefreshToken(user, created.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &AuthResult{
		UserID: user.ID,
		Tokens: TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

// normalizeEmail trims surrounding whitespace. Case is preserved: the
// stored email is exactly what the user typed, and uniqueness is
// enforced on the trimmed value.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.logger
	if logger == nil {
		logger = zap.L()
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}
