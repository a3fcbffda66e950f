package auth_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rise-and-shine/filesmanager/internal/auth"
	"github.com/rise-and-shine/filesmanager/rediswr"
)

func TestRedisStore(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := rediswr.New(rediswr.Config{Addrs: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, rediswr.Ping(t.Context(), client))

	store := auth.NewRedisStore(client)

	require.NoError(t, store.Create(t.Context(), "tok", 5, time.Hour))

	ttl, err := client.TTL(t.Context(), "auth_tok").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	id, err := store.Lookup(t.Context(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	existed, err := store.Delete(t.Context(), "tok")
	require.NoError(t, err)
	assert.True(t, existed)

	id, err = store.Lookup(t.Context(), "tok")
	require.NoError(t, err)
	assert.Zero(t, id)

	existed, err = store.Delete(t.Context(), "tok")
	require.NoError(t, err)
	assert.False(t, existed)
}
