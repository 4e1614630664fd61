package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/swapi-ingest/pkg/logging"
	"github.com/Sternrassler/swapi-ingest/pkg/metrics"
	"github.com/Sternrassler/swapi-ingest/pkg/record"
)

// DefaultWindowSize is the number of entities fetched concurrently.
const DefaultWindowSize = 5

// Fetcher retrieves the entity count and individual entities.
type Fetcher interface {
	FetchCount(ctx context.Context) (int, error)
	FetchByIndex(ctx context.Context, index int) (record.Raw, error)
}

// Resolver replaces the references of a raw record with labels.
type Resolver interface {
	Resolve(ctx context.Context, raw record.Raw) (record.Resolved, error)
}

// Sink is the persistence target.
type Sink interface {
	Reset(ctx context.Context) error
	Persist(ctx context.Context, rec record.Resolved) error
}

// Config holds orchestrator configuration.
type Config struct {
	// WindowSize is the number of entities fetched concurrently.
	WindowSize int

	// SkipFailedWindows logs and skips a window whose fetch or resolve
	// fails instead of aborting the run. Persist failures always abort.
	SkipFailedWindows bool
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
	}
}

// Summary describes a finished run.
type Summary struct {
	Total     int
	Windows   int
	Persisted int
	Absent    int
	Skipped   int
	Elapsed   time.Duration
}

// Orchestrator runs the fetch, resolve and persist stages.
type Orchestrator struct {
	fetcher  Fetcher
	resolver Resolver
	sink     Sink
	config   Config
	logger   zerolog.Logger
}

// New creates an orchestrator.
func New(fetcher Fetcher, resolver Resolver, sink Sink, cfg Config) (*Orchestrator, error) {
	if fetcher == nil || resolver == nil || sink == nil {
		return nil, fmt.Errorf("fetcher, resolver and sink are required")
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.WindowSize < 0 {
		return nil, fmt.Errorf("window size must be > 0 (got %d)", cfg.WindowSize)
	}

	return &Orchestrator{
		fetcher:  fetcher,
		resolver: resolver,
		sink:     sink,
		config:   cfg,
		logger:   logging.NewLogger("pipeline"),
	}, nil
}

// windowError marks a failure that SkipFailedWindows may skip.
type windowError struct {
	err error
}

func (e *windowError) Error() string { return e.err.Error() }
func (e *windowError) Unwrap() error { return e.err }

// Run performs one complete seeding run.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	total, err := o.fetcher.FetchCount(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetching entity count: %w", err)
	}
	summary.Total = total

	if err := o.sink.Reset(ctx); err != nil {
		return summary, fmt.Errorf("resetting sink: %w", err)
	}

	windows := Windows(total, o.config.WindowSize)
	o.logger.Info().
		Int("total", total).
		Int("window_size", o.config.WindowSize).
		Int("windows", len(windows)).
		Msg("Starting seeding run")

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		windowStart := time.Now()
		logger := o.logger.With().Int("window", i+1).Ints("indices", window).Logger()
		logger.Info().Msg("Window START")

		err := o.runWindow(ctx, window, &summary)
		metrics.WindowDuration.Observe(time.Since(windowStart).Seconds())

		var skippable *windowError
		switch {
		case err == nil:
			summary.Windows++
			metrics.WindowsTotal.WithLabelValues("completed").Inc()
			logger.Info().Dur("duration", time.Since(windowStart)).Msg("Window FINISH")
		case o.config.SkipFailedWindows && errors.As(err, &skippable) && ctx.Err() == nil:
			summary.Skipped++
			metrics.WindowsTotal.WithLabelValues("skipped").Inc()
			logger.Warn().Err(err).Msg("Window failed - skipping")
		default:
			metrics.WindowsTotal.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Msg("Window failed - aborting run")
			return summary, fmt.Errorf("window %d: %w", i+1, unwrapWindow(err))
		}
	}

	summary.Elapsed = time.Since(start)
	metrics.RunDuration.Set(summary.Elapsed.Seconds())
	o.logger.Info().
		Int("total", summary.Total).
		Int("windows", summary.Windows).
		Int("persisted", summary.Persisted).
		Int("absent", summary.Absent).
		Int("skipped", summary.Skipped).
		Dur("elapsed", summary.Elapsed).
		Msg("Seeding run complete")

	return summary, nil
}

// runWindow fetches all indices concurrently, then resolves and persists
// the fetched records sequentially in index order.
func (o *Orchestrator) runWindow(ctx context.Context, window []int, summary *Summary) error {
	fetched, err := o.fetchWindow(ctx, window)
	if err != nil {
		return &windowError{err: err}
	}

	for j, raw := range fetched {
		if raw == nil {
			summary.Absent++
			metrics.RecordsTotal.WithLabelValues("absent").Inc()
			o.logger.Info().Int("index", window[j]).Msg("Entity absent - skipping")
			continue
		}

		resolved, err := o.resolver.Resolve(ctx, *raw)
		if err != nil {
			return &windowError{err: fmt.Errorf("resolving record %d: %w", raw.Index, err)}
		}

		if err := o.sink.Persist(ctx, resolved); err != nil {
			return fmt.Errorf("persisting record %d: %w", raw.Index, err)
		}

		summary.Persisted++
		metrics.RecordsTotal.WithLabelValues("persisted").Inc()
		o.logger.Info().Int("index", raw.Index).Str("name", raw.Label()).Msg("Entity added")
	}
	return nil
}

// fetchWindow fetches every index of window concurrently and returns the
// results in window order. Absent indices yield nil entries.
func (o *Orchestrator) fetchWindow(ctx context.Context, window []int) ([]*record.Raw, error) {
	results := make([]*record.Raw, len(window))

	g, gctx := errgroup.WithContext(ctx)
	for j, index := range window {
		g.Go(func() error {
			raw, err := o.fetcher.FetchByIndex(gctx, index)
			if record.IsAbsent(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetching record %d: %w", index, err)
			}
			results[j] = &raw
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func unwrapWindow(err error) error {
	var we *windowError
	if errors.As(err, &we) {
		return we.err
	}
	return err
}
