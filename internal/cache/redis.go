package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Ghoster04/AntCrime/internal/config"
)

const redisKeyPrefix = "anticrime:cache:"

// RedisStore keeps entries as Redis hashes so several consoles on one
// workstation share a warm cache.
type RedisStore struct {
	c *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisStore(c *redis.Client) *RedisStore { return &RedisStore{c: c} }

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *RedisStore) Load(ctx context.Context, key string) (Entry, error) {
	fields, err := r.c.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return Entry{}, err
	}
	data, ok := fields["data"]
	if !ok {
		return Entry{}, ErrMiss
	}
	e := Entry{Data: []byte(data), Stale: fields["stale"] == "1"}
	if ts, err := time.Parse(time.RFC3339Nano, fields["fetched_at"]); err == nil {
		e.FetchedAt = ts
	}
	return e, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, e Entry) error {
	stale := "0"
	if e.Stale {
		stale = "1"
	}
	return r.c.HSet(ctx, redisKeyPrefix+key,
		"data", e.Data,
		"fetched_at", e.FetchedAt.UTC().Format(time.RFC3339Nano),
		"stale", stale,
	).Err()
}

func (r *RedisStore) MarkStale(ctx context.Context, key string) error {
	k := redisKeyPrefix + key
	n, err := r.c.Exists(ctx, k).Result()
	if err != nil || n == 0 {
		return err
	}
	return r.c.HSet(ctx, k, "stale", "1").Err()
}
