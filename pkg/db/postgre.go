package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"ride-sim/pkg/config"
	"ride-sim/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxRetries    = 5
	retryInterval = 3 * time.Second
)

// DSN builds the connection string for cfg.
func DSN(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DB.User, cfg.DB.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.DB.Host, cfg.DB.Port),
		Path:     cfg.DB.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// NewConnection opens a pool and pings it, retrying until ctx is done or
// the attempts run out.
func NewConnection(ctx context.Context, cfg *config.Config, log logger.Logger) (*pgxpool.Pool, error) {
	dsn := DSN(cfg)
	log = log.WithFields(logger.LogFields{"host": cfg.DB.Host, "database": cfg.DB.Database})
	log.Info("db_connect", "Connecting to database...")

	var err error
	for i := 0; i < maxRetries; i++ {
		var pool *pgxpool.Pool
		pool, err = pgxpool.New(ctx, dsn)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				log.Info("db_connected_success", "Successfully connected to database")
				return pool, nil
			}
			pool.Close()
		}

		log.Error("db_connect_failed", fmt.Errorf("failed to connect to database (attempt %d/%d): %w", i+1, maxRetries, err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
