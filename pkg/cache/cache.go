package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

type item struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is an in-memory TTL cache. Loads for the same key are collapsed so
// a cold key only hits the backing store once.
type Cache struct {
	clock      clockwork.Clock
	defaultTTL time.Duration
	group      singleflight.Group

	mu    sync.RWMutex
	items map[string]item

	stopOnce sync.Once
	stop     chan struct{}
}

func New(defaultTTL time.Duration) *Cache {
	return NewWithClock(defaultTTL, clockwork.NewRealClock())
}

// NewWithClock starts a janitor that drops expired entries every defaultTTL.
// Call Stop to end it.
func NewWithClock(defaultTTL time.Duration, clock clockwork.Clock) *Cache {
	c := &Cache{
		clock:      clock,
		defaultTTL: defaultTTL,
		items:      make(map[string]item),
		stop:       make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || !c.clock.Now().Before(it.expiresAt) {
		return nil, false
	}
	return it.value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.items[key] = item{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of the same key. Errors are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	return v, err
}

// InvalidatePrefix drops every key starting with prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) removeExpired() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *Cache) janitor() {
	ticker := c.clock.NewTicker(c.defaultTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
