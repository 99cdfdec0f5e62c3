package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/config"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http/handler"
	httpmiddleware "github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http/middleware"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authMiddleware.ValidateRefreshToken, authHandler.Refresh)
		authGroup.POST("/logout", authMiddleware.ValidateRefreshToken, authHandler.Logout)
		authGroup.GET("/self", authMiddleware.ValidateAccessToken, authHandler.Self)
	}

	r.GET("/.well-known/jwks.json", authHandler.JWKS)
	r.GET("/healthz", authHandler.Healthz)

	return r
}
