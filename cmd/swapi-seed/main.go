// Command swapi-seed fetches every SWAPI person, resolves the reference
// fields to labels and writes one row per person into a local database.
//
// The command takes no flags. Configuration comes from the YAML file named
// by $SWAPI_SEED_CONFIG and SWAPI_* environment variables.
//
// Exit codes: 1 run failed, 2 invalid configuration, 3 a record did not
// match the destination schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/swapi-ingest/internal/config"
	"github.com/Sternrassler/swapi-ingest/pkg/cache"
	"github.com/Sternrassler/swapi-ingest/pkg/client"
	"github.com/Sternrassler/swapi-ingest/pkg/logging"
	"github.com/Sternrassler/swapi-ingest/pkg/metrics"
	"github.com/Sternrassler/swapi-ingest/pkg/pipeline"
	"github.com/Sternrassler/swapi-ingest/pkg/resolver"
	"github.com/Sternrassler/swapi-ingest/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "swapi-seed: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Pretty))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := seed(ctx, cfg); err != nil {
		log.Error().Err(err).Str("component", "main").Msg("Seeding failed")
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a failed run to the process exit status.
func exitCode(err error) int {
	if store.IsSchemaViolation(err) {
		return 3
	}
	return 1
}

// seed wires the components from cfg and performs one run.
func seed(ctx context.Context, cfg *config.Config) (pipeline.Summary, error) {
	logger := logging.NewLogger("main")
	start := time.Now()

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Serve(cfg.Metrics.Addr)
		if err != nil {
			return pipeline.Summary{}, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	sink, err := store.Open(ctx, store.Config{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
		Schema: store.PeopleSchema,
	})
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("opening store: %w", err)
	}
	defer sink.Close()

	swapi, err := client.New(client.Config{
		BaseURL:           cfg.Source.BaseURL,
		UserAgent:         cfg.Source.UserAgent,
		Timeout:           cfg.Source.Timeout,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Burst:             cfg.Source.Burst,
		Retry: client.RetryConfig{
			MaxAttempts:    cfg.Source.MaxAttempts,
			InitialBackoff: cfg.Source.InitialBackoff,
			MaxBackoff:     cfg.Source.MaxBackoff,
		},
	})
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("creating client: %w", err)
	}
	defer swapi.Close()

	cacheCfg := cache.Config{MemorySize: cfg.Cache.MemorySize}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable - label cache is in-process only")
		} else {
			cacheCfg.Redis = cache.NewManager(redisClient, cfg.Redis.TTL)
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		}
	}

	labels, err := cache.NewLabels(swapi, cacheCfg)
	if err != nil {
		return pipeline.Summary{}, err
	}

	res, err := resolver.New(labels, resolver.Config{MaxNested: cfg.Pipeline.MaxNested})
	if err != nil {
		return pipeline.Summary{}, err
	}

	orch, err := pipeline.New(swapi, res, sink, pipeline.Config{
		WindowSize:        cfg.Pipeline.WindowSize,
		SkipFailedWindows: cfg.Pipeline.SkipFailedWindows,
	})
	if err != nil {
		return pipeline.Summary{}, err
	}

	logger.Info().
		Str("source", swapi.BaseURL()).
		Str("driver", cfg.Store.Driver).
		Str("dsn", cfg.Store.DSN).
		Msg("Seeding START")

	summary, err := orch.Run(ctx)
	if err != nil {
		return summary, err
	}

	logger.Info().
		Int("persisted", summary.Persisted).
		Dur("elapsed", time.Since(start)).
		Msg("Seeding FINISH")
	return summary, nil
}
