package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// CostFunc reports the cost of a value, usually its size in bytes.
type CostFunc[V any] func(value V) int64

// EvictFunc is called for every entry removed to satisfy the cost or entry bound.
// It runs while the cache lock is held and must not call back into the cache.
type EvictFunc[K comparable, V any] func(key K, value V)

// CostLRUConfig bounds a CostLRU.
type CostLRUConfig struct {
	// MaxCost is the total cost the cache may hold. Must be > 0.
	MaxCost int64
	// MaxEntries optionally bounds the number of entries. Zero means no bound.
	MaxEntries int
}

// lruCacheItem is the internal structure stored in the linked list.
type lruCacheItem[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// CostLRU is a generic, thread-safe, in-memory cache bounded by the total cost
// of its values, with a Least Recently Used (LRU) eviction policy.
type CostLRU[K comparable, V any] struct {
	maxCost    int64
	maxEntries int
	costOf     CostFunc[V]
	onEvict    EvictFunc[K, V]

	mu    sync.Mutex
	ll    *list.List          // Used to track the order of items (recency).
	cache map[K]*list.Element // Used for fast key lookups.
	cost  int64
}

// NewCostLRU creates a new cost-bounded LRU cache.
// - cfg: the cost and entry bounds.
// - costOf: reports the cost of a value. Must not be nil.
// - onEvict: optional callback invoked for every evicted entry.
func NewCostLRU[K comparable, V any](cfg CostLRUConfig, costOf CostFunc[V], onEvict EvictFunc[K, V]) (*CostLRU[K, V], error) {
	if cfg.MaxCost <= 0 {
		return nil, fmt.Errorf("maxCost must be greater than 0")
	}
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("maxEntries cannot be negative")
	}
	if costOf == nil {
		return nil, fmt.Errorf("cost function cannot be nil")
	}
	return &CostLRU[K, V]{
		maxCost:    cfg.MaxCost,
		maxEntries: cfg.MaxEntries,
		costOf:     costOf,
		onEvict:    onEvict,
		ll:         list.New(),
		cache:      make(map[K]*list.Element),
	}, nil
}

// Get returns the value stored for key and marks it as the most recently used.
func (c *CostLRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(*lruCacheItem[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Peek returns the value stored for key without touching its recency.
func (c *CostLRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		return elem.Value.(*lruCacheItem[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Add stores value under key as the most recently used entry, replacing any
// previous value, then evicts least recently used entries until both bounds hold.
// A value whose cost alone exceeds MaxCost is not stored and Add returns false;
// any previous value for key is dropped in that case.
func (c *CostLRU[K, V]) Add(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := c.costOf(value)
	if cost > c.maxCost {
		if elem, ok := c.cache[key]; ok {
			c.removeElement(elem)
		}
		return false
	}

	if elem, ok := c.cache[key]; ok {
		item := elem.Value.(*lruCacheItem[K, V])
		c.cost += cost - item.cost
		item.value = value
		item.cost = cost
		c.ll.MoveToFront(elem)
	} else {
		element := c.ll.PushFront(&lruCacheItem[K, V]{key: key, value: value, cost: cost})
		c.cache[key] = element
		c.cost += cost
	}

	for c.overBound() {
		c.evict()
	}
	return true
}

// Remove deletes key from the cache. It reports whether the key was present.
// The eviction callback is not invoked.
func (c *CostLRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Purge removes every entry without invoking the eviction callback.
func (c *CostLRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.cache = make(map[K]*list.Element)
	c.cost = 0
}

// Len returns the number of entries.
func (c *CostLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Cost returns the total cost of all entries.
func (c *CostLRU[K, V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// Keys returns the keys from most to least recently used.
func (c *CostLRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, c.ll.Len())
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruCacheItem[K, V]).key)
	}
	return keys
}

func (c *CostLRU[K, V]) overBound() bool {
	if c.ll.Len() == 0 {
		return false
	}
	if c.cost > c.maxCost {
		return true
	}
	return c.maxEntries > 0 && c.ll.Len() > c.maxEntries
}

// evict removes the least recently used item from the cache.
// This method is unexported and must be called within a locked mutex.
func (c *CostLRU[K, V]) evict() {
	elementToRemove := c.ll.Back()
	if elementToRemove != nil {
		item := c.removeElement(elementToRemove)
		if c.onEvict != nil {
			c.onEvict(item.key, item.value)
		}
	}
}

func (c *CostLRU[K, V]) removeElement(elem *list.Element) *lruCacheItem[K, V] {
	item := c.ll.Remove(elem).(*lruCacheItem[K, V])
	delete(c.cache, item.key)
	c.cost -= item.cost
	return item
}
