package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers access tokens that were logged out before they expired.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const blacklistPrefix = "jwt:blacklist:"

var errEmptyJTI = errors.New("empty jti")

// RedisRevoker keeps revoked token ids in Redis so every instance sees them.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errEmptyJTI
	}
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	res, err := r.client.Get(ctx, blacklistPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res == "1", nil
}

// MemoryRevoker is the single-process fallback used when Redis is not configured.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: map[string]time.Time{}, now: time.Now}
}

func (r *MemoryRevoker) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errEmptyJTI
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, until := range r.revoked {
		if !until.After(now) {
			delete(r.revoked, id)
		}
	}
	if ttl > 0 {
		r.revoked[jti] = now.Add(ttl)
	}
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[jti]
	return ok && until.After(r.now()), nil
}
