// Package cache stores raw detections by image digest so a repeated upload
// skips inference. Aggregated results are never cached: the threshold is
// applied per request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"objectvision/internal/model"
)

// DetectionCache looks up raw detection sets.
type DetectionCache interface {
	Get(ctx context.Context, key string) (*model.DetectionSet, bool, error)
	Set(ctx context.Context, key string, set *model.DetectionSet) error
	Close() error
}

// Key identifies one image run through one model with one confidence floor.
func Key(backend, modelName string, floor float64, digest string) string {
	return "detections:" + backend + ":" + modelName + ":" + strconv.FormatFloat(floor, 'f', -1, 64) + ":" + digest
}

// RedisCache keeps detection sets as JSON values with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: client, ttl: opts.TTL}, nil
}

// Get returns the cached set, or false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*model.DetectionSet, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var set model.DetectionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, false, fmt.Errorf("decode cached detections %s: %w", key, err)
	}
	return &set, true, nil
}

// Set stores the set with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, set *model.DetectionSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.DetectionSet, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, *model.DetectionSet) error         { return nil }
func (Nop) Close() error                                                    { return nil }

var (
	_ DetectionCache = (*RedisCache)(nil)
	_ DetectionCache = Nop{}
)
