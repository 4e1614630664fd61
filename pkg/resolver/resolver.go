// Package resolver replaces the reference fields of a raw entity with the
// labels of the resources they point to.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/swapi-ingest/pkg/logging"
	"github.com/Sternrassler/swapi-ingest/pkg/record"
)

var (
	references = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_references_resolved_total",
			Help: "Reference URLs resolved to labels",
		},
	)

	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swapi_resolve_duration_seconds",
			Help:    "Time to resolve all references of one record",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Fetcher returns the label of the resource behind a reference URL.
// *client.Client and *cache.Labels implement it.
type Fetcher interface {
	FetchReference(ctx context.Context, url string) (string, error)
}

// Config holds resolver configuration.
type Config struct {
	// MaxNested caps concurrent reference fetches per record. 0 means no cap.
	MaxNested int
}

// Resolver turns Raw records into Resolved records. It is safe for
// concurrent use.
type Resolver struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a Resolver backed by fetcher.
func New(fetcher Fetcher, cfg Config) (*Resolver, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("reference fetcher is required")
	}
	if cfg.MaxNested < 0 {
		return nil, fmt.Errorf("max nested must be >= 0 (got %d)", cfg.MaxNested)
	}
	return &Resolver{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("resolver"),
	}, nil
}

// pending is one field awaiting its labels.
type pending struct {
	name   string
	labels []string
}

// Resolve fetches every reference of raw concurrently and returns the record
// with each reference replaced by its label. Lists keep source order. The
// first failed fetch cancels the others and fails the whole record.
func (r *Resolver) Resolve(ctx context.Context, raw record.Raw) (record.Resolved, error) {
	start := time.Now()
	r.logger.Info().Int("index", raw.Index).Str("name", raw.Label()).Msg("Preparing entity for DB")

	out := record.Resolved{
		Index:  raw.Index,
		Fields: make(map[string]record.Value, len(raw.Fields)),
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.config.MaxNested > 0 {
		g.SetLimit(r.config.MaxNested)
	}

	var fields []*pending
	for name, value := range raw.Fields {
		if record.IsExcluded(name) {
			continue
		}

		field := record.Classify(value)
		if field.Kind == record.KindScalar {
			out.Fields[name] = field.Scalar
			continue
		}

		p := &pending{name: name, labels: make([]string, len(field.URLs))}
		fields = append(fields, p)
		for i, url := range field.URLs {
			g.Go(func() error {
				label, err := r.fetcher.FetchReference(gctx, url)
				if err != nil {
					return fmt.Errorf("resolve %s of record %d: %w", name, raw.Index, err)
				}
				r.logger.Debug().Str("field", name).Str("url", url).Str("label", label).Msg("Reference resolved")
				p.labels[i] = label
				references.Inc()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return record.Resolved{}, err
	}

	for _, p := range fields {
		out.Fields[p.name] = record.String(strings.Join(p.labels, record.ListSeparator))
	}

	resolveDuration.Observe(time.Since(start).Seconds())
	return out, nil
}
