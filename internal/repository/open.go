package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"approval-tracker/backend/internal/config"
	"approval-tracker/backend/internal/logging"
)

// Open connects to the document store selected by cfg.Store.Driver and
// verifies the connection.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (DocumentStore, error) {
	logger.Debug("Initializing document store", "driver", cfg.Store.Driver)

	var store DocumentStore
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := openPostgres(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		store = pg
	case config.DriverSQLite:
		lite, err := OpenSQLite(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store = lite
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		store = NewRedisDocumentStore(client, WithPrefix(cfg.Store.Redis.Prefix))
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", cfg.Store.Driver, err)
	}
	return store, nil
}

func openPostgres(ctx context.Context, dsn string) (*PostgresDocumentStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store := NewPostgresDocumentStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}
