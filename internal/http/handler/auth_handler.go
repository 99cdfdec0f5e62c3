package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/config"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http/middleware"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/service"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/token"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Keys   *token.Keys
	Signer *token.Signer
	Cfg    config.Config
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, keys *token.Keys, signer *token.Signer, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Keys: keys, Signer: signer, Cfg: cfg, Logger: logger}
}

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TenantID  *int64    `json:"tenantId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Register creates a new customer account and opens a session.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.setTokenCookies(c, result.Tokens)
	c.JSON(http.StatusCreated, gin.H{"id": strconv.FormatInt(result.UserID, 10)})
}

// Login authenticates with email and password and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.setTokenCookies(c, result.Tokens)
	c.JSON(http.StatusOK, gin.H{"id": strconv.FormatInt(result.UserID, 10)})
}

// Refresh rotates the caller's refresh session and reissues both tokens.
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims, ok := middleware.GetRefreshClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Refresh claims missing."})
		return
	}

	result, err := h.Auth.Refresh(c.Request.Context(), claims)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.setTokenCookies(c, result.Tokens)
	c.JSON(http.StatusOK, gin.H{"id": strconv.FormatInt(result.UserID, 10)})
}

// Logout revokes the caller's refresh session and clears both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetRefreshClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Refresh claims missing."})
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), claims); err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{})
}

// Self returns the authenticated user's profile without credentials.
func (h *AuthHandler) Self(c *gin.Context) {
	claims, ok := middleware.GetAccessClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Access claims missing."})
		return
	}

	user, err := h.Auth.Self(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// JWKS publishes the access-token verification keys.
func (h *AuthHandler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.Keys.JWKS())
}

// Healthz is a liveness probe.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// setTokenCookies delivers both tokens as HttpOnly SameSite=Strict
// cookies with independent lifetimes matching the token expiries.
func (h *AuthHandler) setTokenCookies(c *gin.Context, tokens service.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, tokens.AccessToken,
		int(h.Signer.AccessTTL().Seconds()), "/", h.Cfg.CookieDomain, h.Cfg.CookieSecure, true)
	c.SetCookie(middleware.RefreshTokenCookie, tokens.RefreshToken,
		int(h.Signer.RefreshTTL().Seconds()), "/", h.Cfg.CookieDomain, h.Cfg.CookieSecure, true)
}

func (h *AuthHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", h.Cfg.CookieDomain, h.Cfg.CookieSecure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", h.Cfg.CookieDomain, h.Cfg.CookieSecure, true)
}

func (h *AuthHandler) respondServiceError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Error("auth request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}

// respondValidationError itemizes binding failures per field.
func respondValidationError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		items := make([]gin.H, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			items = append(items, gin.H{
				"field":   fe.Field(),
				"message": fmt.Sprintf("failed on %q validation", fe.Tag()),
			})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "errors": items})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "error_description": "Invalid request body."})
}

func newUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:        strconv.FormatInt(user.ID, 10),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      user.Role.String(),
		TenantID:  user.TenantID,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
