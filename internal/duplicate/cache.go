package duplicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/metrics"
)

// windowBucket is the granularity of cached windows. A lookup loads the
// bucket containing since and filters the rest in memory.
const windowBucket = time.Minute

// WindowStore keeps serialized candidate windows.
type WindowStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// CachedSource serves candidate windows from a WindowStore and falls back to
// the wrapped source on any cache failure.
type CachedSource struct {
	next  ArticleSource
	store WindowStore
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedSource(next ArticleSource, store WindowStore, ttl time.Duration, log *zap.Logger) *CachedSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSource{next: next, store: store, ttl: ttl, log: log}
}

func (c *CachedSource) RecentArticles(ctx context.Context, since time.Time) ([]Article, error) {
	bucket := since.Truncate(windowBucket)
	key := windowKey(bucket)

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		c.log.Warn("candidate cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		var cached []Article
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.RecordCacheLookup("hit")
			return filterSince(cached, since), nil
		}
		metrics.RecordCacheLookup("error")
	default:
		metrics.RecordCacheLookup("miss")
	}

	articles, err := c.next.RecentArticles(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(articles); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Warn("candidate cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return filterSince(articles, since), nil
}

// Invalidate drops cached windows so a newly stored article is visible to the
// next check.
func (c *CachedSource) Invalidate(ctx context.Context) {
	if err := c.store.Invalidate(ctx); err != nil {
		c.log.Warn("candidate cache invalidation failed", zap.Error(err))
	}
}

func windowKey(bucket time.Time) string {
	return fmt.Sprintf("joti:dup:window:%d", bucket.Unix())
}

func filterSince(articles []Article, since time.Time) []Article {
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if !a.CreatedAt.Before(since) || (a.PublishedAt != nil && !a.PublishedAt.Before(since)) {
			out = append(out, a)
		}
	}
	return out
}

// RedisStore is a WindowStore backed by Redis.
type RedisStore struct {
	client *redis.Client
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return &RedisStore{client: rdb}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, "joti:dup:window:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
