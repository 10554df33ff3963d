package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/backend/memory"
	"github.com/stockeasy/stockeasy/internal/backend/postgres"
	"github.com/stockeasy/stockeasy/internal/backend/rest"
	"github.com/stockeasy/stockeasy/internal/platform/db"
	"github.com/stockeasy/stockeasy/internal/product"
)

// NewBackend builds the data client selected by cfg.DataDriver. The returned
// function releases its resources.
func NewBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (backend.Client, func(), error) {
	switch cfg.DataDriver {
	case DriverREST:
		return rest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.BackendTimeout), func() {}, nil
	case DriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ConnectTimeout: cfg.BackendTimeout})
		if err != nil {
			return nil, nil, err
		}
		auth := rest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.BackendTimeout).Auth()
		return postgres.NewClient(pool, auth), pool.Close, nil
	case DriverMemory:
		tables := make([]string, 0, len(product.Kinds))
		for _, k := range product.Kinds {
			tables = append(tables, k.Table())
		}
		client := memory.NewClient(tables...)
		password := cfg.DevUserPassword
		if password == "" {
			password = uuid.NewString()
			logger.Warn("DEV_USER_PASSWORD not set, generated one", slog.String("email", cfg.DevUserEmail), slog.String("password", password))
		}
		if _, err := client.Users().AddUser(cfg.DevUserEmail, password); err != nil {
			return nil, nil, fmt.Errorf("app: add development user: %w", err)
		}
		logger.Warn("using in-memory data driver; data is lost on restart")
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown data driver %q", cfg.DataDriver)
	}
}
