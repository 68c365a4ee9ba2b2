package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "personalia:template:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Redis shares template info between processes. Values are stored as JSON
// with a TTL.
type Redis struct {
	rdb    redis.Cmdable
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client. Closing the client is left to the
// caller.
func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

// DialRedis connects to the server in cfg.URL and checks it answers.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedis(rdb, cfg.Prefix, cfg.TTL)
	r.closer = rdb.Close
	return r, nil
}

func (r *Redis) key(templateID string) string {
	return r.prefix + templateID
}

// Get returns the cached info, or nil on a miss.
func (r *Redis) Get(ctx context.Context, templateID string) (*types.TemplateInfo, error) {
	data, err := r.rdb.Get(ctx, r.key(templateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var info types.TemplateInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template info: %w", err)
	}
	return &info, nil
}

// Set stores info for the configured TTL.
func (r *Redis) Set(ctx context.Context, info *types.TemplateInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal template info: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(info.TemplateID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Close closes the connection opened by DialRedis. It is a no-op for
// caches built with NewRedis.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
