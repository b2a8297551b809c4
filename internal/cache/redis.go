// backend-go/internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autoplan/backend-go/internal/config"
)

const (
	defaultCacheTTL  = time.Minute
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = time.Second
	redisPingTimeout = 5 * time.Second
	unlinkChunkSize  = 256
)

// connectRedis opens a client and fails fast when the server does not answer, so the
// caller can fall back to the no-op cache at startup.
func connectRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}
	return client, nil
}

// buildRedisOptions prefers REDIS_URL and falls back to host/port. Cache reads sit on
// the planning hot path, so timeouts are short whichever form is used.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisIOTimeout
	opts.WriteTimeout = redisIOTimeout
	return opts, nil
}

func blueprintTTL(cfg config.CacheConfig) time.Duration {
	if cfg.BlueprintTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.BlueprintTTLSeconds) * time.Second
}

// unlinkMatching removes every key matching pattern, walking the keyspace with SCAN
// and unlinking in chunks.
func unlinkMatching(ctx context.Context, client *redis.Client, pattern string) (int, error) {
	iter := client.Scan(ctx, 0, pattern, unlinkChunkSize).Iterator()

	removed := 0
	chunk := make([]string, 0, unlinkChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := client.Unlink(ctx, chunk...).Result()
		if err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		removed += int(n)
		chunk = chunk[:0]
		return nil
	}

	for iter.Next(ctx) {
		chunk = append(chunk, iter.Val())
		if len(chunk) == unlinkChunkSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	return removed, flush()
}
