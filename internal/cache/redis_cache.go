package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/survey"
)

// ErrOpen is returned while the breaker refuses calls to redis.
var ErrOpen = gobreaker.ErrOpenState

// RedisCache stores computed cell listings keyed by input fingerprint.
// All redis round-trips go through a circuit breaker so an unhealthy
// redis degrades to cache misses instead of stalling the transform.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	prefix  string
	ttl     time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg config.CacheSection) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return newCache(client, cfg), nil
}

func newCache(client *redis.Client, cfg config.CacheSection) *RedisCache {
	threshold := cfg.Breaker.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}
	settings := gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache circuit breaker state changed")
		},
	}

	return &RedisCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
	}
}

// Key returns the redis key for a fingerprint.
func (c *RedisCache) Key(fingerprint string) string {
	return c.prefix + "cells:" + fingerprint
}

// Get looks up a cell listing. A miss returns found=false and no error.
func (c *RedisCache) Get(ctx context.Context, fingerprint string) ([]likert.Cell, bool, error) {
	key := c.Key(fingerprint)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if result == nil {
		return nil, false, nil
	}

	var cells []likert.Cell
	if err := json.Unmarshal(result.([]byte), &cells); err != nil {
		return nil, false, fmt.Errorf("cache entry %s is corrupt: %w", key, err)
	}
	return cells, true, nil
}

// Set stores a cell listing with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, fingerprint string, cells []likert.Cell) error {
	key := c.Key(fingerprint)

	data, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// State reports the breaker state: closed, half-open or open.
func (c *RedisCache) State() string {
	return c.breaker.State().String()
}

// Ping checks redis connectivity without going through the breaker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Fingerprint identifies a transform input. Equal responses (in the same
// order) under the same rank domain and question set produce the same
// fingerprint; worker count does not participate.
func Fingerprint(responses []survey.Response, domain survey.RankDomain, questions survey.QuestionSet) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	enc.Encode(domain)
	enc.Encode(questions.Labels())
	for _, r := range responses {
		enc.Encode(r)
	}
	return hex.EncodeToString(h.Sum(nil))
}
