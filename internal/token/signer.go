package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
)

// Verification failure taxonomy. The boundary middleware maps these to
// HTTP responses; everything unexpected surfaces as ErrTokenMalformed.
var (
	ErrTokenExpired          = errors.New("token: expired")
	ErrTokenInvalidSignature = errors.New("token: invalid signature")
	ErrTokenMalformed        = errors.New("token: malformed")
)

// Claims is the decoded identity carried by a verified token. SessionID
// is zero for access tokens; for refresh tokens it names the persisted
// RefreshSession row.
type Claims struct {
	UserID    int64
	Role      domain.Role
	SessionID int64
}

type customClaims struct {
	Role string `json:"role"`
	ID   string `json:"id,omitempty"`
}

// Signer mints and verifies both token contexts: RS256 access tokens
// backed by the service key pair and HS256 refresh tokens backed by a
// secret shared only within this service.
type Signer struct {
	keys          *Keys
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewSigner wires both signing contexts. The refresh secret must be
// non-empty; key material correctness is enforced by LoadKeys.
func NewSigner(keys *Keys, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*Signer, error) {
	if keys == nil {
		return nil, fmt.Errorf("signer: access token keys are required")
	}
	if len(refreshSecret) == 0 {
		return nil, fmt.Errorf("signer: refresh token secret is required")
	}
	return &Signer{
		keys:          keys,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}, nil
}

// AccessTTL exposes the access token lifetime for cookie Max-Age.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the refresh token lifetime for cookie Max-Age.
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// SignAccessToken mints a short-lived RS256 token with sub and role.
func (s *Signer) SignAccessToken(user domain.User) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: s.keys.private},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", s.keys.kid),
	)
	if err != nil {
		return "", fmt.Errorf("new access signer: %w", err)
	}
	return s.serialize(signer, user, 0, s.accessTTL)
}

// SignRefreshToken mints a long-lived HS256 token with sub, role and the
// id of the freshly persisted refresh session.
func (s *Signer) SignRefreshToken(user domain.User, sessionID int64) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: s.refreshSecret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new refresh signer: %w", err)
	}
	return s.serialize(signer, user, sessionID, s.refreshTTL)
}

func (s *Signer) serialize(signer gojose.Signer, user domain.User, sessionID int64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{Role: user.Role.String()}
	if sessionID != 0 {
		custom.ID = strconv.FormatInt(sessionID, 10)
	}

	serialized, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return serialized, nil
}

// VerifyRefreshToken checks an HS256 refresh token and decodes its
// claims, including the session id needed for rotation and logout.
func (s *Signer) VerifyRefreshToken(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(s.refreshSecret, &std, &custom); err != nil {
		return Claims{}, ErrTokenInvalidSignature
	}

	if err := validateTime(std, s.issuer); err != nil {
		return Claims{}, err
	}
	claims, err := decodeClaims(std, custom)
	if err != nil {
		return Claims{}, err
	}
	if claims.SessionID == 0 {
		return Claims{}, ErrTokenMalformed
	}
	return claims, nil
}

func validateTime(std gojwt.Claims, issuer string) error {
	err := std.Validate(gojwt.Expected{Issuer: issuer, Time: time.Now().UTC()})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gojwt.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

func decodeClaims(std gojwt.Claims, custom customClaims) (Claims, error) {
	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	role, err := domain.ParseRole(custom.Role)
	if err != nil {
		return Claims{}, ErrTokenMalformed
	}
	claims := Claims{UserID: userID, Role: role}
	if custom.ID != "" {
		sessionID, err := strconv.ParseInt(custom.ID, 10, 64)
		if err != nil {
			return Claims{}, ErrTokenMalformed
		}
		claims.SessionID = sessionID
	}
	return claims, nil
}
