// Package pgtest starts a throwaway PostgreSQL for integration tests.
// Tests using it are skipped unless TEST_INTEGRATION is set.
package pgtest

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg"
)

const (
	image    = "docker.io/postgres:17-alpine"
	database = "filesmanager_test"
	user     = "filesmanager"
	password = "test-password"
)

// Config starts a container and returns a pg.Config pointing at it.
func Config(t *testing.T) pg.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase(database),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	return pg.Config{
		DebugMode:           pg.DebugOff,
		Host:                host,
		Port:                portNum,
		User:                user,
		Password:            password,
		Database:            database,
		SSLMode:             "disable",
		SearchPath:          "public",
		ConnectTimeout:      10 * time.Second,
		PoolMaxConns:        4,
		PoolMinConns:        1,
		PoolMaxConnLifetime: time.Hour,
		PoolMaxConnIdleTime: 30 * time.Minute,
	}
}

// DB starts a container and opens a bun.DB on it.
func DB(t *testing.T) (*bun.DB, pg.Config) {
	t.Helper()

	cfg := Config(t)
	db, err := pg.NewBunDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, cfg
}
