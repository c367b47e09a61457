package testutil

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"sixwallet/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupTestDB starts a throwaway Postgres container, applies the schema and
// returns a connected pool. The container is torn down via t.Cleanup.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("sixwallet_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	for i := 0; i < 20; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		dumpContainerLogs(ctx, t, container)
		t.Fatalf("database never became reachable: %v", err)
	}

	if err := repository.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return pool
}

func dumpContainerLogs(ctx context.Context, t *testing.T, container testcontainers.Container) {
	t.Helper()
	logs, err := container.Logs(ctx)
	if err != nil {
		return
	}
	defer logs.Close()
	if raw, err := io.ReadAll(logs); err == nil {
		fmt.Printf("container logs:\n%s\n", raw)
	}
}
