package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/config"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/domain"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/password"
	"github.com/ammar20175/pizza-app-microservices-kafka-auth-service/internal/repository"
)

// EnsureAdmin creates the default admin user at startup when admin
// credentials are configured. Skipped entirely when they are not.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, hasher, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, hasher *password.Hasher, node *snowflake.Node, logger *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("admin bootstrap skipped, no credentials configured")
		return nil
	}

	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	admin := domain.User{
		ID:           node.Generate().Int64(),
		FirstName:    "Admin",
		LastName:     "User",
		Email:        cfg.AdminEmail,
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
	}

	created, err := users.Create(ctx, admin)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil
		}
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	logger.Info("admin user created", zap.Int64("user_id", created.ID))
	return nil
}
