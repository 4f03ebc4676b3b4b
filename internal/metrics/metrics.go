// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can build as many as they like.
// A nil *Recorder ignores every observation.
type Recorder struct {
	registry     *prometheus.Registry
	transactions *prometheus.CounterVec
	exchanges    *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers the wallet service collectors plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_transactions_total",
				Help: "Wallet transactions that reached a terminal status.",
			},
			[]string{"type", "status"},
		),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_exchanges_total",
				Help: "Authorization code exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	r.registry.MustRegister(
		r.transactions,
		r.exchanges,
		r.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Transaction counts a terminal transaction.
func (r *Recorder) Transaction(txType, status string) {
	if r == nil {
		return
	}
	r.transactions.WithLabelValues(txType, status).Inc()
}

// GatewayExchange counts an exchange outcome: ok, rejected or timeout.
func (r *Recorder) GatewayExchange(outcome string) {
	if r == nil {
		return
	}
	r.exchanges.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records the latency of a finished request.
func (r *Recorder) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpLatency.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
