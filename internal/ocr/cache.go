package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/imaging"
)

// Cache stores OCR results keyed by image content.
type Cache interface {
	Get(ctx context.Context, key string) (entity.OCRResult, bool, error)
	Set(ctx context.Context, key string, res entity.OCRResult, ttl time.Duration) error
}

// NewCache picks a backend from cfg. Backend "none" (or empty) returns nil.
func NewCache(ctx context.Context, cfg common.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(), nil
	case "redis":
		c, err := NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, common.ConfigurationFailure(fmt.Sprintf("unknown cache backend %q", cfg.Backend), nil)
	}
}

type memoryEntry struct {
	res     entity.OCRResult
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// DefaultMemoryEntries caps a MemoryCache built by NewMemoryCache.
const DefaultMemoryEntries = 10000

const purgeInterval = time.Minute

// MemoryCache is an in-process cache. Expired entries are swept on Set (at
// most once per purgeInterval, and always when the cache is full); when still
// full, the entry closest to expiry is evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	lastPurge  time.Time
	now        func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheSize(DefaultMemoryEntries)
}

// NewMemoryCacheSize caps the cache at max entries; max <= 0 means no cap.
func NewMemoryCacheSize(max int) *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, maxEntries: max, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (entity.OCRResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return entity.OCRResult{}, false, nil
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return entity.OCRResult{}, false, nil
	}
	return e.res, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, res entity.OCRResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	_, exists := c.entries[key]
	full := c.maxEntries > 0 && !exists && len(c.entries) >= c.maxEntries
	if full || now.Sub(c.lastPurge) >= purgeInterval {
		c.purge(now)
	}
	if c.maxEntries > 0 && !exists && len(c.entries) >= c.maxEntries {
		c.evictOne()
	}

	e := memoryEntry{res: res}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Purge drops every expired entry and reports how many were removed.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purge(c.now())
}

// Len is the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) purge(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	c.lastPurge = now
	return n
}

// evictOne removes the entry that expires first; entries without a TTL go last.
func (c *MemoryCache) evictOne() {
	var (
		victim string
		soon   time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || (!e.expires.IsZero() && (soon.IsZero() || e.expires.Before(soon))) {
			victim, soon, found = k, e.expires, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to url and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	if url == "" {
		return nil, common.ConfigurationFailure("redis cache requires REDIS_URL", nil)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, common.ConfigurationFailure("parse redis url", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, common.ConfigurationFailure("connect to redis", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (entity.OCRResult, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.OCRResult{}, false, nil
	}
	if err != nil {
		return entity.OCRResult{}, false, err
	}
	var res entity.OCRResult
	if err := json.Unmarshal(b, &res); err != nil {
		return entity.OCRResult{}, false, err
	}
	return res, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, res entity.OCRResult, ttl time.Duration) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }

// Cached serves repeated images from a cache before calling the engine.
// Cache errors are logged and never fail a detection.
type Cached struct {
	engine Engine
	cache  Cache
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(engine Engine, cache Cache, cfg common.CacheConfig, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{engine: engine, cache: cache, prefix: cfg.Prefix, ttl: cfg.TTL, logger: logger}
}

func (c *Cached) Name() string { return c.engine.Name() }

func (c *Cached) Key(img *imaging.Image) string {
	return c.prefix + img.Hash + ":" + c.engine.Name()
}

func (c *Cached) Detect(ctx context.Context, img *imaging.Image) (entity.OCRResult, error) {
	if c.cache == nil || img.Hash == "" {
		return c.engine.Detect(ctx, img)
	}
	key := c.Key(img)
	if res, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("ocr cache get failed", "key", key, "error", err)
	} else if ok {
		c.logger.Debug("ocr cache hit", "key", key)
		return res, nil
	}

	res, err := c.engine.Detect(ctx, img)
	if err != nil {
		return res, err
	}
	if err := c.cache.Set(ctx, key, res, c.ttl); err != nil {
		c.logger.Warn("ocr cache set failed", "key", key, "error", err)
	}
	return res, nil
}
