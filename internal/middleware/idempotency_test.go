package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/logging"
)

type idempotentApp struct {
	app   *fiber.App
	mr    *miniredis.Miniredis
	calls int
}

func newIdempotentApp(t *testing.T) *idempotentApp {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	ia := &idempotentApp{app: fiber.New(), mr: mr}
	ia.app.Use(func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, c.Get("X-User"))
		return c.Next()
	})
	ia.app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	ia.app.Post("/resource", func(c *fiber.Ctx) error {
		ia.calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": ia.calls})
	})
	ia.app.Post("/broken", func(c *fiber.Ctx) error {
		ia.calls++
		return fiber.NewError(fiber.StatusConflict, "nope")
	})
	return ia
}

func (ia *idempotentApp) post(t *testing.T, path, user, key, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := ia.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, string(payload)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	ia := newIdempotentApp(t)

	resp, _ := ia.post(t, "/resource", "alice", "", "{}")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
	if ia.calls != 0 {
		t.Fatalf("handler should not run without a key")
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	ia := newIdempotentApp(t)

	first, body := ia.post(t, "/resource", "alice", "abc123", `{"a":1}`)
	if first.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", first.StatusCode)
	}

	second, replayed := ia.post(t, "/resource", "alice", "abc123", `{"a":1}`)
	if second.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.StatusCode)
	}
	if replayed != body {
		t.Fatalf("expected replayed body %s got %s", body, replayed)
	}
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if !strings.HasPrefix(second.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		t.Fatalf("expected json content type, got %q", second.Header.Get(fiber.HeaderContentType))
	}
	if ia.calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", ia.calls)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	ia := newIdempotentApp(t)

	ia.post(t, "/resource", "alice", "k1", `{"amount":"10"}`)
	resp, _ := ia.post(t, "/resource", "alice", "k1", `{"amount":"99"}`)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.StatusCode)
	}
	if ia.calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", ia.calls)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	ia := newIdempotentApp(t)

	for _, user := range []string{"alice", "bob", "alice"} {
		resp, _ := ia.post(t, "/resource", user, "same-key", "{}")
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("expected 201 for %s got %d", user, resp.StatusCode)
		}
	}
	if ia.calls != 2 {
		t.Fatalf("expected handler to run once per user, ran %d times", ia.calls)
	}
}

func TestIdempotencyErrorsAreNotStored(t *testing.T) {
	ia := newIdempotentApp(t)

	for i := 0; i < 2; i++ {
		resp, _ := ia.post(t, "/broken", "alice", "retry-me", "{}")
		if resp.StatusCode != fiber.StatusConflict {
			t.Fatalf("expected 409 got %d", resp.StatusCode)
		}
	}
	if ia.calls != 2 {
		t.Fatalf("expected both attempts to reach the handler, got %d", ia.calls)
	}
	if keys := ia.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no stored keys, got %v", keys)
	}
}

func TestIdempotencyPendingReservationConflicts(t *testing.T) {
	ia := newIdempotentApp(t)

	key := idempotencyPrefix + "alice:POST:/resource:busy"
	if err := ia.mr.Set(key, `{"pending":true,"fingerprint":"`+fingerprintOf("{}")+`"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, _ := ia.post(t, "/resource", "alice", "busy", "{}")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.StatusCode)
	}
	if ia.calls != 0 {
		t.Fatalf("handler should not run while a reservation is held")
	}
}
