package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenKeyPrefix namespaces session tokens in Redis.
const TokenKeyPrefix = "authgate:token:"

// TokenKey returns the Redis key for a token id.
func TokenKey(id string) string {
	return TokenKeyPrefix + id
}

// RedisClientRaw exposes the subset of go-redis used by the token store.
type RedisClientRaw interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// RedisTokenManager stores tokens as JSON values whose Redis TTL follows ExpiresAt.
// Redis expires keys on its own; Lookup still checks ExpiresAt against the local clock.
type RedisTokenManager struct {
	client RedisClientRaw
}

var _ TokenManager = (*RedisTokenManager)(nil)

func NewRedisTokenManager(client RedisClientRaw) *RedisTokenManager {
	return &RedisTokenManager{client: client}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTokenStoreUnavailable, err)
}

func (m *RedisTokenManager) Add(ctx context.Context, t Token) error {
	var ttl time.Duration
	if t.ExpiresAt != nil {
		ttl = t.TTL(nowFunc())
		if ttl <= 0 {
			return m.Remove(ctx, t.ID)
		}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, TokenKey(t.ID), data, ttl).Err(); err != nil {
		return unavailable("add token", err)
	}
	return nil
}

func (m *RedisTokenManager) Lookup(ctx context.Context, id string) (Token, bool, error) {
	val, err := m.client.Get(ctx, TokenKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Token{}, false, nil
		}
		return Token{}, false, unavailable("lookup token", err)
	}
	var t Token
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		// A value we cannot read can never authenticate anyone.
		_ = m.Remove(ctx, id)
		return Token{}, false, nil
	}
	if t.ExpiredAt(nowFunc()) {
		_ = m.Remove(ctx, id)
		return Token{}, false, nil
	}
	return t, true, nil
}

func (m *RedisTokenManager) Remove(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, TokenKey(id)).Err(); err != nil {
		return unavailable("remove token", err)
	}
	return nil
}

// Tokens walks the key space with SCAN; keys that vanish mid-walk are skipped.
func (m *RedisTokenManager) Tokens(ctx context.Context) ([]Token, error) {
	iter := m.client.Scan(ctx, 0, TokenKeyPrefix+"*", 100).Iterator()
	var res []Token
	for iter.Next(ctx) {
		val, err := m.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var t Token
		if err := json.Unmarshal([]byte(val), &t); err != nil {
			continue
		}
		res = append(res, t)
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan tokens", err)
	}
	return res, nil
}

// Ping reports whether Redis is reachable.
func (m *RedisTokenManager) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
