// Package cache provides Redis-backed caching for the API.
package cache

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: key not found")

// Config holds cache backend configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFromEnv creates a Config from environment variables. The second
// return is false when no cache backend is configured (REDIS_ADDR unset),
// which is a supported mode: the platform runs without caching.
func ConfigFromEnv() (Config, bool) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return Config{}, false
	}

	db, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	dialTimeout, _ := time.ParseDuration(getEnvOrDefault("REDIS_DIAL_TIMEOUT", "2s"))
	readTimeout, _ := time.ParseDuration(getEnvOrDefault("REDIS_READ_TIMEOUT", "2s"))
	writeTimeout, _ := time.ParseDuration(getEnvOrDefault("REDIS_WRITE_TIMEOUT", "2s"))

	return Config{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, true
}

// Client wraps a Redis client with the minimal contract the rest of the
// system consumes: ping, get, set with TTL, close.
type Client struct {
	rdb *redis.Client
}

// Dial creates a client for the configured backend. The connection is
// established lazily; no network I/O happens here.
func Dial(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return &Client{rdb: rdb}
}

// Ping issues a liveness command.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the string value stored at key, or ErrMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}
	return value, nil
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
