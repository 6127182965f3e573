package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSteps create the tables the Postgres user source and token store need.
var schemaSteps = []struct {
	name  string
	apply func(context.Context, *pgxpool.Pool) error
}{
	{"users", EnsureUserSchema},
	{"session_tokens", EnsureTokenSchema},
}

func poolConfig(dsn string) (*pgxpool.Config, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	// Token lookups sit on every protected request.
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	return config, nil
}

// Connect opens a pgx pool, checks connectivity, and creates missing tables.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	for _, step := range schemaSteps {
		if err := step.apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure %s schema: %w", step.name, err)
		}
	}
	return pool, nil
}
