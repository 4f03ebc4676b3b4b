package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codePrefix     = "gateway:code:v1:"
	defaultCodeTTL = 24 * time.Hour
)

// CodeGuard makes sure an authorization code is exchanged at most once. Only
// a hash of the code is stored.
type CodeGuard struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewCodeGuard builds a Redis-backed replay guard.
func NewCodeGuard(cache *redis.Client, ttl time.Duration) *CodeGuard {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &CodeGuard{cache: cache, ttl: ttl}
}

// Claim marks code as used. A second claim of the same code fails with
// ErrCodeReplayed. Claims are never released: a failed exchange may still
// have consumed the code at the gateway.
func (g *CodeGuard) Claim(ctx context.Context, code string) error {
	sum := sha256.Sum256([]byte(code))
	ok, err := g.cache.SetNX(ctx, codePrefix+hex.EncodeToString(sum[:]), time.Now().UTC().Unix(), g.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim authorization code: %w", err)
	}
	if !ok {
		return ErrCodeReplayed
	}
	return nil
}
