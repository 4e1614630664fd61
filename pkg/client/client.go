// Package client provides the remote resource client: HTTP GETs against a
// paginated collection and against arbitrary nested reference URLs, with
// request pacing, optional retries and Prometheus instrumentation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/swapi-ingest/pkg/ratelimit"
	"github.com/Sternrassler/swapi-ingest/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Request kinds used as metric labels.
const (
	kindCount     = "count"
	kindEntity    = "entity"
	kindReference = "reference"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_requests_total",
		Help: "Total requests to the remote source by kind and status",
	}, []string{"kind", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_request_duration_seconds",
		Help:    "Remote request duration in seconds by kind",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_errors_total",
		Help: "Total remote request errors by class",
	}, []string{"class"})
)

// Client is the remote resource client. It is safe for concurrent use; the
// underlying *http.Client is shared by all fetches.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the collection endpoint, e.g. "https://swapi.dev/api/people/".
	// Entities live at BaseURL + index + "/".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// HTTPClient is the shared HTTP session. When nil a client with Timeout is created.
	HTTPClient *http.Client

	// Timeout bounds a single request (ignored when HTTPClient is set).
	Timeout time.Duration

	// RequestsPerSecond and Burst configure proactive pacing. 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	// Retry policy for retriable failures.
	Retry RetryConfig
}

// DefaultConfig returns a default configuration for the given collection URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         "swapi-ingest/0.1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: ratelimit.DefaultRate,
		Burst:             ratelimit.DefaultBurst,
		Retry:             DefaultRetryConfig(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := log.With().Str("component", "remote-client").Logger()

	return &Client{
		httpClient: httpClient,
		limiter:    ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Burst, logger),
		baseURL:    baseURL,
		config:     cfg,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalized collection URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// EntityURL returns the URL of the entity at index.
func (c *Client) EntityURL(index int) string {
	return c.baseURL + strconv.Itoa(index) + "/"
}

// FetchCount queries the collection endpoint once and returns its "count".
func (c *Client) FetchCount(ctx context.Context) (int, error) {
	c.logger.Info().Str("url", c.baseURL).Msg("Getting entity count")

	resp, err := c.get(ctx, kindCount, c.baseURL)
	if err != nil {
		return 0, err
	}
	if !resp.ok() {
		return 0, resp.statusError()
	}

	count, err := intField(resp.payload, "count")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.baseURL, err)
	}

	c.logger.Info().Int("total", count).Msg("Entity count received")
	return count, nil
}

// FetchByIndex fetches the entity at index. It returns record.ErrAbsent
// (wrapped) when the remote source reports no entity there.
func (c *Client) FetchByIndex(ctx context.Context, index int) (record.Raw, error) {
	target := c.EntityURL(index)
	c.logger.Info().Int("index", index).Msg("Fetch entity START")

	resp, err := c.get(ctx, kindEntity, target)
	if err != nil {
		return record.Raw{}, err
	}

	if resp.ok() && hasIdentity(resp.payload) {
		c.logger.Info().Int("index", index).Msg("Fetch entity FINISH")
		return record.Raw{Index: index, Fields: resp.payload}, nil
	}

	if detail, ok := resp.payload["detail"]; ok {
		c.logger.Info().
			Int("index", index).
			Interface("detail", detail).
			Msg("Fetch entity FINISH (absent)")
		return record.Raw{}, fmt.Errorf("index %d: %w", index, record.ErrAbsent)
	}

	if !resp.ok() {
		return record.Raw{}, resp.statusError()
	}

	c.logger.Warn().
		Int("index", index).
		Msg("Payload has no identifying field - treating as absent")
	return record.Raw{}, fmt.Errorf("index %d: %w", index, record.ErrAbsent)
}

// FetchReference fetches a nested reference URL and returns its label: the
// first non-empty of "title" and "name".
func (c *Client) FetchReference(ctx context.Context, ref string) (string, error) {
	c.logger.Debug().Str("url", ref).Msg("Get nested info")

	resp, err := c.get(ctx, kindReference, ref)
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", resp.statusError()
	}

	for _, key := range []string{"title", "name"} {
		if s, ok := resp.payload[key].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s: %w", ref, ErrMissingLabel)
}

// Close releases idle connections held by the HTTP session.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// response is a decoded remote response.
type response struct {
	url     string
	status  int
	payload map[string]any
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r *response) statusError() error {
	return &NetworkError{
		URL:        r.url,
		StatusCode: r.status,
		ErrorClass: classifyStatus(r.status),
		Message:    http.StatusText(r.status),
	}
}

// get performs a paced GET with retries and decodes the JSON object body.
// Non-2xx responses that are not retried are returned without error so the
// caller can inspect the payload (a 404 may carry an absence "detail").
func (c *Client) get(ctx context.Context, kind, target string) (*response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	var result *response
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		var attemptErr error
		result, attemptErr = c.attempt(ctx, kind, target)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attempt performs exactly one request.
func (c *Client) attempt(ctx context.Context, kind, target string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{
			URL:        target,
			ErrorClass: ErrorClassNetwork,
			Message:    "waiting for request slot",
			Err:        err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{
			URL:        target,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", target).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(kind, "network_error").Inc()
		return nil, &NetworkError{
			URL:        target,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	c.limiter.Observe(resp)
	requestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &NetworkError{
			URL:        target,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	result := &response{url: target, status: resp.StatusCode}

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Remote request error")

		if shouldRetry(errClass) {
			return nil, result.statusError()
		}
		// Best effort: 4xx bodies may carry a "detail" field.
		result.payload, _ = decodeObject(body)
		return result, nil
	}

	result.payload, err = decodeObject(body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassPayload)).Inc()
		return nil, &NetworkError{
			URL:        target,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassPayload,
			Message:    "decode JSON object",
			Err:        err,
		}
	}
	return result, nil
}

// classifyStatus categorizes an HTTP status for observability and retries.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// decodeObject decodes a JSON object, keeping numbers as json.Number.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformedPayload)
	}
	return payload, nil
}

// hasIdentity reports whether payload carries a primary identifying field.
func hasIdentity(payload map[string]any) bool {
	for _, key := range []string{"name", "title"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return true
		}
	}
	return false
}

// intField reads an integer field from a decoded payload.
func intField(payload map[string]any, key string) (int, error) {
	switch v := payload[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedPayload, key)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("%w: missing %q", ErrMalformedPayload, key)
	default:
		return 0, fmt.Errorf("%w: %q has type %T", ErrMalformedPayload, key, v)
	}
}
