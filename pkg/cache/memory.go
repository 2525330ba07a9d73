package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const defaultTTL = 7 * 24 * time.Hour

type memoryItem struct {
	data     []byte
	expireAt time.Time
	access   time.Time
}

// MemoryCache is an in-process Service with LRU eviction. It stands in for
// Redis when redis.enabled is false.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*memoryItem
	maxSize int
	now     func() time.Time
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute, Now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		items:   make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.cleanup()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.items[key]; !ok && len(mc.items) >= mc.maxSize {
		mc.evictLRU()
	}
	now := mc.now()
	if expiration <= 0 {
		expiration = defaultTTL
	}
	mc.items[key] = &memoryItem{data: data, expireAt: now.Add(expiration), access: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest any) error {
	mc.mu.Lock()
	item, ok := mc.live(key)
	if ok {
		item.access = mc.now()
	}
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.items, k)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if _, ok := mc.live(k); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	item, ok := mc.live(key)
	if !ok {
		mc.items[key] = &memoryItem{data: []byte("1"), expireAt: now.Add(defaultTTL), access: now}
		return 1, nil
	}
	n, err := strconv.ParseInt(string(item.data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: value at %s is not an integer", key)
	}
	n++
	item.data = []byte(strconv.FormatInt(n, 10))
	item.access = now
	return n, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	item, ok := mc.live(key)
	if !ok {
		return false, nil
	}
	item.expireAt = mc.now().Add(expiration)
	return true, nil
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}

// live returns the item when present and unexpired; expired items are dropped.
// Callers hold mc.mu.
func (mc *MemoryCache) live(key string) (*memoryItem, bool) {
	item, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	if mc.now().After(item.expireAt) {
		delete(mc.items, key)
		return nil, false
	}
	return item, true
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for k, item := range mc.items {
		if oldestKey == "" || item.access.Before(oldest) {
			oldestKey, oldest = k, item.access
		}
	}
	if oldestKey != "" {
		delete(mc.items, oldestKey)
	}
}

func (mc *MemoryCache) cleanup() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for k, item := range mc.items {
				if now.After(item.expireAt) {
					delete(mc.items, k)
				}
			}
			mc.mu.Unlock()
		}
	}
}

var (
	_ Service = (*MemoryCache)(nil)
	_ Service = (*RedisCache)(nil)
)
