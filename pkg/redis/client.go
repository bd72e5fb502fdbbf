package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidorduna/agromarket-backend/pkg/config"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace  = "agromarket"
	sessionPrefix = "session"
)

// Client wraps the redis helpers the API needs: session revocation lookups
// and health pings.
type Client struct {
	raw *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New dials redis from the provided configuration.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{raw: client}, nil
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.raw.Close()
}

func sessionKey(jti string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, sessionPrefix, jti)
}

// PutSession marks a token id as live until the provided TTL elapses.
func (c *Client) PutSession(ctx context.Context, jti string, ttl time.Duration) error {
	return c.raw.Set(ctx, sessionKey(jti), "1", ttl).Err()
}

// RevokeSession removes a token id, causing HasSession to report false.
func (c *Client) RevokeSession(ctx context.Context, jti string) error {
	return c.raw.Del(ctx, sessionKey(jti)).Err()
}

// HasSession reports whether the token id is still live.
func (c *Client) HasSession(ctx context.Context, jti string) (bool, error) {
	err := c.raw.Get(ctx, sessionKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
