package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes the client behind idempotency records and rate limits.
type RedisOptions struct {
	ClientName string
	PoolSize   int
	// OpTimeout bounds reads and writes; the middleware treats a slow cache
	// like a failed one.
	OpTimeout time.Duration
}

// NewRedisClient parses url, applies opts and pings the server before
// handing the client out.
func NewRedisClient(ctx context.Context, url string, opts RedisOptions) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName != "" {
		opt.ClientName = opts.ClientName
	}
	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	if opts.OpTimeout > 0 {
		opt.ReadTimeout = opts.OpTimeout
		opt.WriteTimeout = opts.OpTimeout
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}
