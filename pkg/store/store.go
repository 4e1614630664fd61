// Package store persists resolved records as rows of a relational table.
//
// Two drivers are supported: SQLite through modernc.org/sqlite (the default,
// a file next to the binary) and PostgreSQL through github.com/lib/pq. Each
// record becomes one row keyed by its index and is committed on its own, so a
// failure later in a run leaves every earlier row in place.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Sternrassler/swapi-ingest/pkg/record"
)

// DefaultDSN is the SQLite database file used when none is configured.
const DefaultDSN = "swapi.db"

var (
	rowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapi_rows_written_total",
			Help: "Rows inserted into the destination table",
		},
	)

	writeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_store_errors_total",
			Help: "Store failures by operation (reset, persist, validate)",
		},
		[]string{"operation"},
	)
)

// Config holds store configuration.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string

	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN string

	// Schema is the destination table. Zero value uses PeopleSchema.
	Schema Schema

	// MaxOpenConns limits the pool size (0 = driver default).
	MaxOpenConns int
}

// DefaultConfig returns a SQLite configuration for PeopleSchema.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    DefaultDSN,
		Schema: PeopleSchema,
	}
}

// Row is a stored record keyed by column name. Values are string, int64 or
// nil for NULL.
type Row map[string]any

// Store is the persistence sink. Writes are serialized; it is safe for
// concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	schema  Schema
	insert  string
	mu      sync.Mutex
	logger  zerolog.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if _, ok := dialects[cfg.Driver]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	dsn := cfg.DSN
	if cfg.Driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", cfg.Driver, err)
	}

	s, err := New(db, cfg.Driver, cfg.Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle. A zero schema uses PeopleSchema.
func New(db *sql.DB, driver string, schema Schema) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if schema.Table == "" {
		schema = PeopleSchema
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Store{
		db:      db,
		dialect: d,
		schema:  schema,
		insert:  d.insert(schema),
		logger:  log.With().Str("component", "store").Str("table", schema.Table).Logger(),
	}, nil
}

// Schema returns the destination table layout.
func (s *Store) Schema() Schema {
	return s.schema
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset drops the destination table if it exists and recreates it empty.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.dropTable(s.schema)); err != nil {
			return fmt.Errorf("dropping %s: %w", s.schema.Table, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.createTable(s.schema)); err != nil {
			return fmt.Errorf("creating %s: %w", s.schema.Table, err)
		}
		return nil
	})
	if err != nil {
		writeErrors.WithLabelValues("reset").Inc()
		return err
	}

	s.logger.Info().Msg("Table reset")
	return nil
}

// Persist inserts rec as one row keyed by rec.Index and commits it.
// A record whose fields do not match the schema is rejected with a
// *SchemaViolationError before anything is written.
func (s *Store) Persist(ctx context.Context, rec record.Resolved) error {
	args, err := s.bind(rec)
	if err != nil {
		writeErrors.WithLabelValues("validate").Inc()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.insert, args...); err != nil {
		writeErrors.WithLabelValues("persist").Inc()
		return fmt.Errorf("inserting record %d into %s: %w", rec.Index, s.schema.Table, err)
	}

	rowsWritten.Inc()
	s.logger.Debug().Int("id", rec.Index).Msg("Row inserted")
	return nil
}

// Count returns the number of rows in the destination table.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.count(s.schema)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.schema.Table, err)
	}
	return n, nil
}

// Get returns the row stored for id, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, id int) (Row, error) {
	var (
		key   int64
		texts = make([]sql.NullString, len(s.schema.Columns))
		ints  = make([]sql.NullInt64, len(s.schema.Columns))
		dest  = []any{&key}
	)
	for i, c := range s.schema.Columns {
		if c.Type == Integer {
			dest = append(dest, &ints[i])
		} else {
			dest = append(dest, &texts[i])
		}
	}

	err := s.db.QueryRowContext(ctx, s.dialect.selectOne(s.schema), id).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("reading %s id %d: %w", s.schema.Table, id, err)
	}

	row := Row{"id": key}
	for i, c := range s.schema.Columns {
		switch {
		case c.Type == Integer && ints[i].Valid:
			row[c.Name] = ints[i].Int64
		case c.Type == Text && texts[i].Valid:
			row[c.Name] = texts[i].String
		default:
			row[c.Name] = nil
		}
	}
	return row, nil
}

// InTx runs fn inside a transaction, rolling back when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// bind validates rec against the schema and returns the INSERT arguments in
// column order.
func (s *Store) bind(rec record.Resolved) ([]any, error) {
	violation := func(column, reason string) error {
		return &SchemaViolationError{Table: s.schema.Table, Index: rec.Index, Column: column, Reason: reason}
	}

	if rec.Index <= 0 {
		return nil, violation("id", fmt.Sprintf("index must be positive (got %d)", rec.Index))
	}

	for _, name := range rec.Names() {
		if _, ok := s.schema.Column(name); !ok {
			return nil, violation(name, "unexpected field")
		}
	}

	args := []any{int64(rec.Index)}
	for _, c := range s.schema.Columns {
		v, ok := rec.Get(c.Name)
		if !ok {
			return nil, violation(c.Name, "missing field")
		}

		switch c.Type {
		case Integer:
			n, err := toInteger(v)
			if err != nil {
				return nil, violation(c.Name, err.Error())
			}
			args = append(args, n)
		default:
			args = append(args, v.String())
		}
	}
	return args, nil
}

// unknownMeasures are the SWAPI literals meaning "no value"; they map to NULL.
var unknownMeasures = map[string]bool{
	"":                 true,
	"unknown":          true,
	"n/a":              true,
	"none":             true,
	record.Placeholder: true,
}

// toInteger converts v for an Integer column. Thousand separators are
// stripped ("1,358") and decimals are rounded ("78.2"). Unknown measures
// return nil.
func toInteger(v record.Value) (any, error) {
	if n, ok := v.Int64(); ok {
		return n, nil
	}

	s := strings.TrimSpace(v.String())
	if unknownMeasures[strings.ToLower(s)] {
		return nil, nil
	}

	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		r := math.Round(f)
		if r < math.MinInt64 || r >= math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range, got %q", v.String())
		}
		return int64(r), nil
	}
	return nil, fmt.Errorf("expected integer, got %q", v.String())
}
