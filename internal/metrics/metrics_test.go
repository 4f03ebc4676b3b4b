package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Transaction("DEPOSIT", "COMPLETED")
	r.Transaction("DEPOSIT", "COMPLETED")
	r.Transaction("WITHDRAWAL", "FAILED")
	r.GatewayExchange("timeout")

	if got := testutil.ToFloat64(r.transactions.WithLabelValues("DEPOSIT", "COMPLETED")); got != 2 {
		t.Fatalf("expected 2 completed deposits, got %v", got)
	}
	if got := testutil.ToFloat64(r.exchanges.WithLabelValues("timeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	r := New()
	r.Transaction("RETURN", "COMPLETED")
	r.ObserveHTTP("GET", "/api/v1/wallets/me", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"wallet_transactions_total", "http_requests_latency_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s in exposition", want)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Transaction("DEPOSIT", "COMPLETED")
	r.GatewayExchange("ok")
	r.ObserveHTTP("GET", "/", "200", time.Millisecond)
}
