package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/tricket/tricket-integrations/internal/pkg/config"
)

var client *redis.Client

// Addr joins host and port of the cache server.
func Addr(cfg config.CacheConfig) string {
	return fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
}

// SetupCache initializes the shared Redis client and checks the connection.
// The client is kept even when the ping fails so it can reconnect later.
func SetupCache(cfg config.CacheConfig) (*redis.Client, error) {
	client = redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to %s: %v", Addr(cfg), err)
		return client, err
	}
	log.Infof("[Cache] Connected to %s: %s", Addr(cfg), pong)
	return client, nil
}

// GetClient returns the Redis client created by SetupCache.
func GetClient() *redis.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}
