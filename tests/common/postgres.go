package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	postgresOnce      sync.Once
	postgresContainer *PostgresContainer
	postgresError     error
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

// StartPostgres starts a shared Postgres container for the test run.
// Uses sync.Once so only one container is created per process. Tests are
// skipped unless STOCKDESK_TEST_DOCKER=true.
func StartPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	if os.Getenv("STOCKDESK_TEST_DOCKER") != "true" {
		t.Skip("Docker tests disabled (set STOCKDESK_TEST_DOCKER=true to enable)")
		return nil
	}

	postgresOnce.Do(func() {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "stockdesk",
				"POSTGRES_PASSWORD": "stockdesk",
				"POSTGRES_DB":       "stockdesk_test",
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
			postgresError = fmt.Errorf("start Postgres container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			postgresError = fmt.Errorf("get Postgres host: %w", err)
			return
		}

		mappedPort, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			container.Terminate(ctx)
			postgresError = fmt.Errorf("get Postgres port: %w", err)
			return
		}

		postgresContainer = &PostgresContainer{
			container: container,
			host:      host,
			port:      mappedPort.Port(),
		}
	})

	if postgresError != nil {
		t.Fatalf("Postgres container failed: %v", postgresError)
	}

	return postgresContainer
}

// URL returns a pgx-compatible connection string for the container.
func (c *PostgresContainer) URL() string {
	return fmt.Sprintf("postgres://stockdesk:stockdesk@%s:%s/stockdesk_test?sslmode=disable", c.host, c.port)
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *PostgresContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}
