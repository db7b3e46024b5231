// Package dedupe decides whether an incoming channel post should start a
// pipeline run. It keeps a bounded set of recently seen media group
// identifiers.
package dedupe

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a thread-safe set of group identifiers with a fixed capacity and
// an optional TTL. Lookups never refresh an entry, so inserting into a full
// cache evicts the entry that was added first.
type Cache struct {
	plain *lru.Cache[string, struct{}]

	// timed replaces plain when a TTL is configured. expirable has no
	// ContainsOrAdd, so mu serialises the check and the insert.
	mu    sync.Mutex
	timed *expirable.LRU[string, struct{}]
}

// New creates a cache holding at most capacity identifiers. A capacity below
// one is raised to one. A zero ttl keeps entries until they are evicted.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	if ttl > 0 {
		return &Cache{timed: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
	}
	// lru.New only fails for a non-positive size.
	plain, _ := lru.New[string, struct{}](capacity)
	return &Cache{plain: plain}
}

// Accept reports whether a post carrying groupID should be processed.
// Posts without a group identifier are always accepted and never recorded.
func (c *Cache) Accept(groupID string) bool {
	if groupID == "" {
		return true
	}
	return !c.CheckAndMark(groupID)
}

// CheckAndMark atomically checks whether key is present and records it if
// not. It returns true when key was already present.
func (c *Cache) CheckAndMark(key string) bool {
	if c.timed == nil {
		found, _ := c.plain.ContainsOrAdd(key, struct{}{})
		return found
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timed.Peek(key); ok {
		return true
	}
	c.timed.Add(key, struct{}{})
	return false
}

// Contains reports whether key is currently held.
func (c *Cache) Contains(key string) bool {
	if c.timed == nil {
		return c.plain.Contains(key)
	}
	_, ok := c.timed.Peek(key)
	return ok
}

// Len returns the number of held identifiers, including expired ones not yet
// purged.
func (c *Cache) Len() int {
	if c.timed == nil {
		return c.plain.Len()
	}
	return c.timed.Len()
}
