package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ndewijer/portfolio-valuation/internal/database"
)

var (
	postgresOnce sync.Once
	postgresDSN  string
	postgresErr  error
)

// SetupPostgresDB returns a migrated connection to a shared Postgres container.
// The test is skipped unless PG_INTEGRATION=1. All tables are emptied before returning.
func SetupPostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("PG_INTEGRATION") != "1" {
		t.Skip("set PG_INTEGRATION=1 to run Postgres integration tests")
	}

	postgresOnce.Do(func() {
		postgresDSN, postgresErr = startPostgres(context.Background())
	})
	if postgresErr != nil {
		t.Fatalf("Postgres container failed: %v", postgresErr)
	}

	db, err := database.Open(database.Postgres, postgresDSN)
	if err != nil {
		t.Fatalf("Failed to open Postgres: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if _, err := database.Migrate(context.Background(), db, database.Postgres); err != nil {
		t.Fatalf("Failed to migrate Postgres: %v", err)
	}
	CleanDatabase(t, db)

	return db
}

func startPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "valuation",
			"POSTGRES_PASSWORD": "valuation",
			"POSTGRES_DB":       "valuation",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start Postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", fmt.Errorf("get Postgres host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		container.Terminate(ctx)
		return "", fmt.Errorf("get Postgres port: %w", err)
	}

	return fmt.Sprintf("postgres://valuation:valuation@%s:%s/valuation?sslmode=disable", host, port.Port()), nil
}
