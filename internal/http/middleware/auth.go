package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/repository"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/token"
)

// Cookie names shared between middleware and handlers.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

const (
	accessClaimsKey  = "accessClaims"
	refreshClaimsKey = "refreshClaims"
)

// Auth validates bearer credentials and attaches decoded claims.
type Auth struct {
	Verifier *token.Verifier
	Signer   *token.Signer
	Sessions repository.SessionRepository
}

// ValidateAccessToken accepts the token from the Authorization header or
// the accessToken cookie and verifies it against the published key set.
func (m *Auth) ValidateAccessToken(c *gin.Context) {
	raw := bearerToken(c)
	if raw == "" {
		abortUnauthorized(c, "invalid_token", "Access token required.")
		return
	}

	claims, err := m.Verifier.VerifyAccessToken(c.Request.Context(), raw)
	if err != nil {
		abortTokenError(c, err)
		return
	}

	c.Set(accessClaimsKey, claims)
	c.Next()
}

// ValidateRefreshToken verifies the refreshToken cookie and additionally
// requires the named refresh session to still exist and be unexpired, so
// a rotated-away or logged-out token is rejected here even though its
// signature still checks out.
func (m *Auth) ValidateRefreshToken(c *gin.Context) {
	raw, err := c.Cookie(RefreshTokenCookie)
	if err != nil || raw == "" {
		abortUnauthorized(c, "invalid_token", "Refresh token required.")
		return
	}

	claims, err := m.Signer.VerifyRefreshToken(raw)
	if err != nil {
		abortTokenError(c, err)
		return
	}

	valid, err := m.Sessions.IsValid(c.Request.Context(), claims.SessionID, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Could not verify session."})
		return
	}
	if !valid {
		abortUnauthorized(c, "invalid_token", "Session has been revoked.")
		return
	}

	c.Set(refreshClaimsKey, claims)
	c.Next()
}

// GetAccessClaims exposes verified access-token claims to handlers.
func GetAccessClaims(c *gin.Context) (token.Claims, bool) {
	return getClaims(c, accessClaimsKey)
}

// GetRefreshClaims exposes verified refresh-token claims to handlers.
func GetRefreshClaims(c *gin.Context) (token.Claims, bool) {
	return getClaims(c, refreshClaimsKey)
}

func getClaims(c *gin.Context, key string) (token.Claims, bool) {
	value, ok := c.Get(key)
	if !ok {
		return token.Claims{}, false
	}
	claims, ok := value.(token.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	cookie, err := c.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return cookie
}

func abortTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		abortUnauthorized(c, "token_expired", "Token has expired.")
	case errors.Is(err, token.ErrTokenInvalidSignature):
		abortUnauthorized(c, "invalid_token", "Token signature is invalid.")
	case errors.Is(err, token.ErrTokenMalformed):
		abortUnauthorized(c, "invalid_token", "Token is malformed.")
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Could not verify token."})
	}
}

func abortUnauthorized(c *gin.Context, code, desc string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}
