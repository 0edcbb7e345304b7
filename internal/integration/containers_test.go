//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-talent-ranker/internal/adapter/repo/postgres"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host + ":" + p.Port()
}

// startPostgres runs postgres:16 with the schema migration applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}, "5432/tcp")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, fmt.Sprintf("postgres://postgres:postgres@%s/app?sslmode=disable", addr))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "deploy", "migrations", "0001_init.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)
	return pool
}

// startQdrant runs qdrant and returns its base URL.
func startQdrant(t *testing.T) string {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6333/tcp"},
		WaitingFor:   wait.ForHTTP("/collections").WithPort("6333/tcp").WithStartupTimeout(90 * time.Second),
	}, "6333/tcp")
	return "http://" + addr
}
