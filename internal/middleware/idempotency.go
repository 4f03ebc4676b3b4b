package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotencyPrefix       = "idempotency:v2:"
	maxIdempotencyKeyLength = 255
	idempotencyStoreTimeout = 2 * time.Second
)

// idempotentEntry is either a reservation (Pending) or a finished response.
type idempotentEntry struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type idempotencyStore struct {
	cache *redis.Client
	ttl   time.Duration
}

func (s idempotencyStore) lookup(ctx context.Context, key string) (idempotentEntry, bool, error) {
	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return idempotentEntry{}, false, nil
	}
	if err != nil {
		return idempotentEntry{}, false, err
	}
	var entry idempotentEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return idempotentEntry{}, false, err
	}
	return entry, true, nil
}

func (s idempotencyStore) reserve(ctx context.Context, key, fingerprint string) (bool, error) {
	payload, err := json.Marshal(idempotentEntry{Pending: true, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return s.cache.SetNX(ctx, key, payload, s.ttl).Result()
}

func (s idempotencyStore) save(ctx context.Context, key string, entry idempotentEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s idempotencyStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	s.cache.Del(ctx, key)
}

// Idempotency makes unsafe requests on protected routes replayable. A response
// is stored per caller, method, path and Idempotency-Key header, together with
// a hash of the request body; reusing a key with another body is rejected.
// It must run after JWTAuth. Errors and server failures are not stored, so the
// client may retry them with the same key.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := idempotencyStore{cache: cache, ttl: ttl}

	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		switch {
		case key == "":
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		case len(key) > maxIdempotencyKeyLength:
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key header too long")
		}

		userID, _ := c.Locals(LocalUserID).(string)
		storeKey := idempotencyPrefix + userID + ":" + c.Method() + ":" + c.Path() + ":" + key
		fingerprint := fingerprintOf(string(c.Body()))
		log := logger.With(slog.String("idempotency_key", key))

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyStoreTimeout)
		defer cancel()

		entry, found, err := store.lookup(ctx, storeKey)
		if err != nil {
			log.Error("idempotency lookup failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if found {
			return replay(c, entry, fingerprint)
		}

		reserved, err := store.reserve(ctx, storeKey, fingerprint)
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			store.release(storeKey)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			store.release(storeKey)
			return nil
		}

		saveCtx, saveCancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
		defer saveCancel()
		err = store.save(saveCtx, storeKey, idempotentEntry{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err != nil {
			// The handler already ran, so its response is sent unstored.
			log.Error("persist idempotent response", slog.Any("error", err))
			store.release(storeKey)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, entry idempotentEntry, fingerprint string) error {
	if entry.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused with a different request body")
	}
	if entry.Pending {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	if entry.ContentType != "" {
		c.Set(fiber.HeaderContentType, entry.ContentType)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(entry.Status).Send(entry.Body)
}

func fingerprintOf(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
