package jobqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tricket/tricket-integrations/internal/pkg/env"
)

const isolatedJobQueueTestRedisDB = 13

// newIsolatedRedisClient connects to the first reachable Redis on a
// dedicated database and flushes it around the test. The test is skipped
// when no Redis is reachable.
func newIsolatedRedisClient(t *testing.T, db int) *redis.Client {
	t.Helper()

	port := env.GetEnv("CACHE_PORT", "6379")
	password := env.GetEnv("CACHE_PASSWORD", "")
	candidates := []string{}
	if host := env.GetEnv("CACHE_HOST", ""); host != "" {
		candidates = append(candidates, fmt.Sprintf("%s:%s", host, port))
	}
	candidates = append(candidates, "cache:6379", "localhost:6379", "127.0.0.1:6379")

	var lastErr error
	for _, addr := range candidates {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			lastErr = err
			_ = client.Close()
			continue
		}

		if err := client.FlushDB(context.Background()).Err(); err != nil {
			_ = client.Close()
			t.Fatalf("failed to flush isolated redis db %d: %v", db, err)
		}
		t.Cleanup(func() {
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})
		return client
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}
