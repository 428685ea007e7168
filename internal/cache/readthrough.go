// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix namespaces every cached value so InvalidateAll never touches
	// sessions or the mail queue living in the same database.
	keyPrefix = "blog:"

	// DefaultTTL is how long a cached value lives when no TTL is configured.
	DefaultTTL = 5 * time.Minute
)

// Cache keys for the values shared by every page.
const (
	KeyCategories  = "categories"
	KeyTags        = "tags"
	KeyRecentPosts = "recent_posts"
	KeyFeed        = "feed"
)

// Cache is a JSON read-through cache in Valkey. A nil *Cache, or one built
// without a client, passes every read straight to the loader.
//
// Cached values are never consulted for authorization decisions.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache backed by client. A zero ttl uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// TTL returns the lifetime of cached values.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return DefaultTTL
	}
	return c.ttl
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// ReadThrough returns the value cached under key, or calls load, caches its
// result and returns it. Valkey failures are logged and fall through to load;
// load errors are returned and nothing is cached.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}

	if raw, ok := c.Get(ctx, key); ok {
		var v T
		err := json.Unmarshal(raw, &v)
		if err == nil {
			return v, nil
		}
		slog.Warn("cache decode error", "key", key, "error", err)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache encode error", "key", key, "error", err)
		return v, nil
	}
	c.Set(ctx, key, raw)
	return v, nil
}

// Get returns the raw bytes stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("cache hit", "key", key)
	return val, true
}

// Set stores raw bytes under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, val []byte) {
	if !c.enabled() {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, val, c.ttl).Err(); err != nil {
		slog.Warn("cache set error", "key", key, "error", err)
	}
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		slog.Warn("cache invalidate error", "keys", keys, "error", err)
		return
	}
	slog.Debug("cache invalidated", "keys", keys)
}

// InvalidateAll removes every cached value by scanning for the prefix.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if !c.enabled() {
		return
	}
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			slog.Warn("cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("cache cleared", "deleted", deleted)
	}
}
