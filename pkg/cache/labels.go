package cache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/swapi-ingest/pkg/logging"
)

// DefaultMemorySize is the number of labels kept in the in-process LRU.
const DefaultMemorySize = 4096

// Fetcher resolves a reference URL to its label.
type Fetcher interface {
	FetchReference(ctx context.Context, url string) (string, error)
}

// Store is a shared label store, implemented by *Manager.
type Store interface {
	Get(ctx context.Context, key LabelKey) (*Entry, error)
	Set(ctx context.Context, key LabelKey, label string) error
}

// Config holds label cache configuration.
type Config struct {
	// MemorySize is the LRU capacity. 0 uses DefaultMemorySize.
	MemorySize int

	// Redis is the optional shared layer. Nil disables it.
	Redis Store
}

// Labels is a caching Fetcher. It is safe for concurrent use.
type Labels struct {
	next   Fetcher
	memory *lru.Cache[string, string]
	redis  Store
	group  singleflight.Group
	logger zerolog.Logger
}

// NewLabels wraps next with the configured cache layers.
func NewLabels(next Fetcher, cfg Config) (*Labels, error) {
	if next == nil {
		return nil, fmt.Errorf("label fetcher is required")
	}

	size := cfg.MemorySize
	if size <= 0 {
		size = DefaultMemorySize
	}
	memory, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	return &Labels{
		next:   next,
		memory: memory,
		redis:  cfg.Redis,
		logger: logging.NewLogger("label-cache"),
	}, nil
}

// FetchReference returns the label for url, consulting the cache layers
// before the wrapped fetcher.
func (l *Labels) FetchReference(ctx context.Context, url string) (string, error) {
	key := LabelKey{URL: url}
	cacheKey := key.String()

	if label, ok := l.memory.Get(cacheKey); ok {
		CacheHits.WithLabelValues("memory").Inc()
		l.logger.Debug().Str("url", url).Msg("Label cache hit (memory)")
		return label, nil
	}

	v, err, shared := l.group.Do(cacheKey, func() (any, error) {
		if label, ok := l.memory.Get(cacheKey); ok {
			return label, nil
		}
		if label, ok := l.fromRedis(ctx, key); ok {
			l.memory.Add(cacheKey, label)
			return label, nil
		}

		CacheMisses.Inc()
		label, err := l.next.FetchReference(ctx, url)
		if err != nil {
			return "", err
		}

		l.memory.Add(cacheKey, label)
		l.toRedis(ctx, key, label)
		return label, nil
	})
	if shared {
		SharedFetches.Inc()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of labels held in memory.
func (l *Labels) Len() int {
	return l.memory.Len()
}

func (l *Labels) fromRedis(ctx context.Context, key LabelKey) (string, bool) {
	if l.redis == nil {
		return "", false
	}

	entry, err := l.redis.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.logger.Warn().Err(err).Str("url", key.URL).Msg("Label cache get error")
		}
		return "", false
	}

	CacheHits.WithLabelValues("redis").Inc()
	l.logger.Debug().Str("url", key.URL).Msg("Label cache hit (redis)")
	return entry.Label, true
}

func (l *Labels) toRedis(ctx context.Context, key LabelKey, label string) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Set(ctx, key, label); err != nil {
		l.logger.Warn().Err(err).Str("url", key.URL).Msg("Failed to cache label")
	}
}
