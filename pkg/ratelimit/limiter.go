package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapi_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the request pacer",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_rate_limit_cooldowns_total",
		Help: "Total number of cooldowns triggered by Retry-After responses",
	})
)

// Limiter gates requests to the remote source. It is safe for concurrent use.
type Limiter struct {
	bucket *rate.Limiter
	logger zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst. A non-positive rps disables the token bucket.
func NewLimiter(rps float64, burst int, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Limiter{
		bucket: rate.NewLimiter(limit, burst),
		logger: logger,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if d := l.State().TimeUntilReset(); d > 0 {
		l.logger.Warn().Dur("wait_duration", d).Msg("Remote source cooldown active - waiting")
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.bucket.Wait(ctx)
}

// State returns a snapshot of the cooldown state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Observe inspects a response and opens a cooldown window when the remote
// source signals overload (429 or 503 with a Retry-After header).
func (l *Limiter) Observe(resp *http.Response) {
	if resp == nil {
		return
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return
	}

	d, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	if !ok {
		return
	}
	if d > MaxCooldown {
		d = MaxCooldown
	}

	now := time.Now()
	l.mu.Lock()
	resetAt := now.Add(d)
	if resetAt.After(l.state.ResetAt) {
		l.state.ResetAt = resetAt
	}
	l.state.Cooldowns++
	l.state.LastUpdate = now
	l.mu.Unlock()

	rateLimitCooldownsTotal.Inc()
	l.logger.Warn().
		Int("status", resp.StatusCode).
		Dur("cooldown", d).
		Msg("Remote source asked to back off")
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds
// or as an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		return 0, true
	}
	return d, true
}
