//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/swapi-ingest/pkg/record"
)

// setupPostgresContainer starts PostgreSQL and returns a DSN for it.
func setupPostgresContainer(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "swapi",
			"POSTGRES_PASSWORD": "swapi",
			"POSTGRES_DB":       "swapi",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	endpoint, err := pg.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get PostgreSQL endpoint: %v", err)
	}

	dsn := fmt.Sprintf("postgres://swapi:swapi@%s/swapi?sslmode=disable", endpoint)
	cleanup := func() {
		pg.Terminate(ctx)
	}
	return dsn, cleanup
}

func TestIntegration_PostgresPersist(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn, Schema: PeopleSchema})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if err := s.Persist(ctx, luke(1)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	unknown := luke(4)
	unknown.Fields["height"] = record.String("unknown")
	if err := s.Persist(ctx, unknown); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	if n, err := s.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v; want 2", n, err)
	}

	row, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if row["homeworld"] != "Tatooine" || row["height"] != int64(172) {
		t.Errorf("Get(1) = %v", row)
	}

	row, err = s.Get(ctx, 4)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if row["height"] != nil {
		t.Errorf("height = %v, want NULL", row["height"])
	}

	// A second reset starts from an empty table.
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count() after Reset = %d, want 0", n)
	}
}
