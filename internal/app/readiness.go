package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-talent-ranker/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

const probeTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool and *qdrant.Client.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// BuildReadinessChecks returns the db and qdrant checks, plus redis when a
// client is configured. A nil db or index reports not configured.
func BuildReadinessChecks(db Pinger, index Pinger, rdb RedisClient) []httpserver.Check {
	checks := []httpserver.Check{
		{Name: "db", Fn: probe("db", db)},
		{Name: "qdrant", Fn: probe("qdrant", index)},
	}
	if rdb != nil {
		checks = append(checks, httpserver.Check{Name: "redis", Fn: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}

func probe(name string, p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("op=app.readiness: %w: %s not configured", domain.ErrInternal, name)
		}
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return p.Ping(ctx)
	}
}
