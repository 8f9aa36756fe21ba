package tokenizer

import (
	"sync"
	"sync/atomic"
)

// Cache hands out one tokenizer per model name. Tokenizers are stateless
// after construction, so cached instances are safe to share across
// goroutines.
type Cache struct {
	mu         sync.RWMutex
	tokenizers map[string]Tokenizer

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates an empty tokenizer cache.
func NewCache() *Cache {
	return &Cache{
		tokenizers: make(map[string]Tokenizer),
	}
}

// Get returns the tokenizer for model, constructing it on first use.
// Concurrent callers for the same model always receive the same instance.
func (c *Cache) Get(model string) Tokenizer {
	c.mu.RLock()
	t, ok := c.tokenizers[model]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have won the race.
	if t, ok := c.tokenizers[model]; ok {
		c.hits.Add(1)
		return t
	}
	c.misses.Add(1)
	t = New(model)
	c.tokenizers[model] = t
	return t
}

// Len returns the number of cached tokenizers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokenizers)
}

// Stats returns cache counters for the stats endpoint.
func (c *Cache) Stats() map[string]int64 {
	return map[string]int64{
		"hits":   c.hits.Load(),
		"misses": c.misses.Load(),
		"size":   int64(c.Len()),
	}
}

var (
	defaultCache     *Cache
	defaultCacheOnce sync.Once
)

// Default returns the process-wide tokenizer cache.
func Default() *Cache {
	defaultCacheOnce.Do(func() {
		defaultCache = NewCache()
	})
	return defaultCache
}
