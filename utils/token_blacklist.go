package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist remembers revoked tokens until they would have expired anyway.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time)
	IsRevoked(ctx context.Context, token string) bool
}

// NewTokenBlacklist prefers Redis and falls back to process memory when rc is nil.
func NewTokenBlacklist(rc *redis.Client) TokenBlacklist {
	if rc == nil {
		return &memoryBlacklist{entries: map[string]time.Time{}}
	}
	return &redisBlacklist{rc: rc}
}

type redisBlacklist struct {
	rc *redis.Client
}

func (b *redisBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.rc.Set(ctx, "jwt:blacklist:"+token, "1", ttl).Err(); err != nil {
		Sugar.Warnf("token revoke failed: %v", err)
	}
}

func (b *redisBlacklist) IsRevoked(ctx context.Context, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := b.rc.Exists(ctx, "jwt:blacklist:"+token).Result()
	if err != nil {
		// fail open: the user record is still re-resolved on every request
		Sugar.Warnf("token revocation lookup failed: %v", err)
		return false
	}
	return n > 0
}

type memoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// Revoke also drops every entry already past its expiry, so tokens that are never
// presented again do not accumulate.
func (b *memoryBlacklist) Revoke(_ context.Context, token string, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for t, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, t)
		}
	}
	if now.After(expiresAt) {
		return
	}
	b.entries[token] = expiresAt
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.entries[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(b.entries, token)
		return false
	}
	return true
}
