// Package metrics owns the pipeline-level Prometheus collectors and the
// optional /metrics listener. Component metrics are defined in their own
// packages (client, ratelimit, cache, resolver, store) to avoid circular
// dependencies; they are listed below for reference.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Gatherer is scraped by Serve. Every collector registers with the default
// registry via promauto in its own package.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

var (
	// WindowsTotal counts windows by outcome (completed, skipped, failed).
	WindowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_windows_total",
			Help: "Windows processed by outcome",
		},
		[]string{"outcome"},
	)

	// RecordsTotal counts records by outcome (persisted, absent).
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_records_total",
			Help: "Records handled by outcome",
		},
		[]string{"outcome"},
	)

	// WindowDuration observes the wall-clock time of one window.
	WindowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swapi_window_duration_seconds",
			Help:    "Time to fetch, resolve and persist one window",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RunDuration records the elapsed time of the last run.
	RunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swapi_run_duration_seconds",
			Help: "Elapsed wall-clock time of the last seeding run",
		},
	)
)

// Server exposes /metrics over HTTP.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Serve starts a /metrics listener on addr in the background.
func Serve(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		listener: listener,
	}

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("component", "metrics").Msg("Metrics server failed")
		}
	}()

	log.Info().Str("component", "metrics").Str("addr", listener.Addr().String()).Msg("Metrics server listening")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the listener, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Pipeline Metrics (pkg/metrics):
//   - swapi_windows_total{outcome} (Counter): Windows by outcome (completed, skipped, failed)
//   - swapi_records_total{outcome} (Counter): Records by outcome (persisted, absent)
//   - swapi_window_duration_seconds (Histogram): Duration of one window
//   - swapi_run_duration_seconds (Gauge): Elapsed time of the last run
//
// Request Metrics (pkg/client):
//   - swapi_requests_total{kind, status} (Counter): Requests by kind (count, entity, reference) and HTTP status
//   - swapi_request_duration_seconds{kind} (Histogram): Request duration by kind
//   - swapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, payload)
//
// Retry Metrics (pkg/client):
//   - swapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - swapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - swapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - swapi_rate_limit_wait_seconds (Histogram): Time spent waiting for a request slot
//   - swapi_rate_limit_cooldowns_total (Counter): Cooldowns opened by 429/503 with Retry-After
//
// Label Cache Metrics (pkg/cache):
//   - swapi_label_cache_hits_total{layer} (Counter): Hits by layer (memory, redis)
//   - swapi_label_cache_misses_total (Counter): Lookups that reached the remote source
//   - swapi_label_cache_shared_total (Counter): Lookups collapsed onto an in-flight fetch
//   - swapi_label_cache_errors_total{operation} (Counter): Redis operation errors
//
// Resolver Metrics (pkg/resolver):
//   - swapi_references_resolved_total (Counter): Reference URLs resolved
//   - swapi_resolve_duration_seconds (Histogram): Time to resolve one record
//
// Store Metrics (pkg/store):
//   - swapi_rows_written_total (Counter): Rows inserted
//   - swapi_store_errors_total{operation} (Counter): Failures by operation (reset, persist, validate)
//
// Example Prometheus Queries:
//
//   # Label Cache Hit Rate
//   sum(rate(swapi_label_cache_hits_total[5m])) /
//   (sum(rate(swapi_label_cache_hits_total[5m])) + sum(rate(swapi_label_cache_misses_total[5m])))
//
//   # Absent Ratio
//   swapi_records_total{outcome="absent"} / sum(swapi_records_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(swapi_request_duration_seconds_bucket[5m]))
