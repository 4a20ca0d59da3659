package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DB wraps the shared connection pool.
type DB struct {
	*sql.DB
}

// New opens a postgres pool and verifies it with a ping.
func New(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return open(ctx, databaseURL)
}

func open(ctx context.Context, databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// Connect retries New with exponential backoff until the database answers,
// maxElapsed passes, or ctx is cancelled.
func Connect(ctx context.Context, databaseURL string, maxElapsed time.Duration, logger *zap.Logger) (*DB, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed

	var db *DB
	attempt := 0
	op := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		conn, err := open(pingCtx, databaseURL)
		if err != nil {
			return err
		}
		db = conn
		return nil
	}
	notify := func(err error, delay time.Duration) {
		logger.Warn("failed_to_connect_to_database_retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS cors_origins (
	id          UUID PRIMARY KEY,
	environment TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('exact', 'regex')),
	value       TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (environment, kind, value)
)`

// EnsureSchema creates the tables this service owns when they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
