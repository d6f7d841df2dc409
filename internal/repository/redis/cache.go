package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Cache stores records by short URL in Redis for CachedStore (cache-aside).
//
// KEY LAYOUT:
//   - "link:{short_url}"  → JSON-encoded domain.Record
//   - "linkid:{id}"       → short URL of the cached record
//
// Lookups go by short URL; click updates only know the record id, so the
// second key lets DeleteByID find the entry to evict. Both keys share the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

func linkKey(shortURL string) string { return fmt.Sprintf("link:%s", shortURL) }
func idKey(recordID string) string   { return fmt.Sprintf("linkid:%s", recordID) }

// GetRecord returns nil, nil on a miss.
// A Redis failure is an error; CachedStore logs it and falls through to the store.
func (c *Cache) GetRecord(ctx context.Context, shortURL string) (*domain.Record, error) {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	data, err := c.client.Get(ctx, linkKey(shortURL)).Result()
	if err == redis.Nil {
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	metrics.RecordCacheHit()

	var rec domain.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}
	return &rec, nil
}

// SetRecord writes both keys in one MULTI/EXEC so they expire together
func (c *Cache) SetRecord(ctx context.Context, rec *domain.Record) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, linkKey(rec.ShortURL), data, c.ttl)
	pipe.Set(ctx, idKey(rec.ID), rec.ShortURL, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *Cache) DeleteByShortURL(ctx context.Context, shortURL string) error {
	start := time.Now()
	defer func() {
		metrics.CacheOperationDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	if err := c.client.Del(ctx, linkKey(shortURL)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// DeleteByID evicts the record cached under id, if any
func (c *Cache) DeleteByID(ctx context.Context, recordID string) error {
	shortURL, err := c.client.GetDel(ctx, idKey(recordID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis getdel error: %w", err)
	}
	return c.DeleteByShortURL(ctx, shortURL)
}

// Clear removes every cached record.
// SCAN walks both key families in batches; startup calls it before the cache is used.
func (c *Cache) Clear(ctx context.Context) error {
	for _, pattern := range []string{"link:*", "linkid:*"} {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

		keys := []string{}
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan error: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete error: %w", err)
			}
		}
	}
	return nil
}

// InitRedis creates a client and checks connectivity.
// The pool is shared by the link cache and the rate limiters.
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
