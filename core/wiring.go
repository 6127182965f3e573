package core

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backends holds the collaborators selected by configuration and the resources to release.
type Backends struct {
	Users   UserRepository
	Tokens  TokenManager
	Codec   SessionCodec
	Redis   RedisClientRaw // set when the token store is Redis
	closers []io.Closer
	pool    *pgxpool.Pool
}

// Close releases every connection opened by OpenBackends or OpenTokenStore.
func (b *Backends) Close() {
	for _, c := range b.closers {
		_ = c.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// OpenBackends connects the user source, token store, and session codec named in cfg.
func OpenBackends(ctx context.Context, cfg Config) (*Backends, error) {
	b := &Backends{}
	if err := b.connectPg(ctx, cfg, cfg.UserSource == UserSourcePostgres || cfg.TokenStore == StorePostgres); err != nil {
		return nil, err
	}
	if err := b.openUsers(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openTokens(cfg); err != nil {
		b.Close()
		return nil, err
	}
	codec, err := NewSessionCodec(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Codec = codec
	return b, nil
}

// OpenTokenStore connects only the token store, for processes that never authenticate anyone.
func OpenTokenStore(ctx context.Context, cfg Config) (*Backends, error) {
	b := &Backends{}
	if err := b.connectPg(ctx, cfg, cfg.TokenStore == StorePostgres); err != nil {
		return nil, err
	}
	if err := b.openTokens(cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backends) connectPg(ctx context.Context, cfg Config, needed bool) error {
	if !needed {
		return nil
	}
	pool, err := Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	b.pool = pool
	return nil
}

func (b *Backends) openUsers(ctx context.Context, cfg Config) error {
	switch cfg.UserSource {
	case UserSourcePostgres:
		repo := NewPgUserRepository(b.pool)
		if err := BootstrapAdmin(ctx, repo, cfg); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		b.Users = repo
	default:
		repo, err := LoadUsersFile(cfg.UsersFile)
		if err != nil {
			return err
		}
		b.Users = repo
	}
	return nil
}

func (b *Backends) openTokens(cfg Config) error {
	switch cfg.TokenStore {
	case StoreRedis:
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, client)
		b.Redis = client
		b.Tokens = NewRedisTokenManager(client)
	case StorePostgres:
		b.Tokens = NewPgTokenManager(b.pool)
	default:
		b.Tokens = NewMemoryTokenManager()
	}
	return nil
}
