package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePrefix     = "gateway:state:v1:"
	defaultStateTTL = 10 * time.Minute
	stateBytes      = 32
)

// StateStore issues and consumes the OAuth state parameter. A state is bound
// to the user that started the flow and can be consumed exactly once.
type StateStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewStateStore builds a Redis-backed state store.
func NewStateStore(cache *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateStore{cache: cache, ttl: ttl}
}

// Issue generates a fresh random state for userID.
func (s *StateStore) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)
	ok, err := s.cache.SetNX(ctx, statePrefix+state, userID, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	if !ok {
		return "", errors.New("state collision")
	}
	return state, nil
}

// Consume returns the user bound to state and deletes it.
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return "", ErrInvalidState
	}
	userID, err := s.cache.GetDel(ctx, statePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume state: %w", err)
	}
	return userID, nil
}
