package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/bootstrap"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/config"
	httptransport "github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http/handler"
	httpmiddleware "github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/http/middleware"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/password"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/repository"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/server"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/service"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/telemetry"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newSessionRepository,
			newHasher,
			newKeys,
			newSigner,
			newVerifier,
			service.NewAuthService,
			handler.NewAuthHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newSessionRepository(pool *pgxpool.Pool) repository.SessionRepository {
	return repository.NewPostgresSessionRepo(pool)
}

func newHasher() *password.Hasher {
	return password.NewHasher(password.DefaultParams)
}

// newKeys loads the access-token signing key. Failure here aborts
// startup: the service cannot run without signing material.
func newKeys(cfg config.Config) (*token.Keys, error) {
	return token.LoadKeys(cfg.PrivateKeyPath)
}

func newSigner(keys *token.Keys, cfg config.Config) (*token.Signer, error) {
	return token.NewSigner(keys, []byte(cfg.RefreshTokenSecret), cfg.Issuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newVerifier(keys *token.Keys, cfg config.Config) *token.Verifier {
	return token.NewVerifier(keys, cfg.Issuer)
}

func newAuthMiddleware(verifier *token.Verifier, signer *token.Signer, sessions repository.SessionRepository) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Verifier: verifier, Signer: signer, Sessions: sessions}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
