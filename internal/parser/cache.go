package parser

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const cacheShards = 16

// DefaultCacheSize is the capacity of the process-wide parse cache.
const DefaultCacheSize = 1024

// Cache is a bounded cache of parse results keyed by raw query text.
// Parsed trees are immutable, so cached trees are shared between callers.
//
// Each shard is cleared when it reaches its capacity instead of tracking
// individual entry ages; the working set is usually a small number of query
// templates repeated many times.
//
// All methods are safe for concurrent use.
type Cache struct {
	shards [cacheShards]cacheShard
}

type cacheShard struct {
	mu    sync.RWMutex
	items map[string]*Query
	max   int
}

// NewCache creates a cache holding at most capacity parse results.
func NewCache(capacity int) *Cache {
	perShard := capacity / cacheShards
	if perShard < 1 {
		perShard = 1
	}
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].items = make(map[string]*Query, perShard)
		c.shards[i].max = perShard
	}
	return c
}

var defaultCache = NewCache(DefaultCacheSize)

// DefaultCache returns the process-wide parse cache.
func DefaultCache() *Cache {
	return defaultCache
}

func (c *Cache) shard(input string) *cacheShard {
	return &c.shards[xxhash.Sum64String(input)%cacheShards]
}

// Parse returns the cached tree for input, parsing and storing it on a miss.
// hit reports whether the tree came from the cache. Failed parses are not
// cached.
func (c *Cache) Parse(input string) (query *Query, hit bool, err error) {
	s := c.shard(input)

	s.mu.RLock()
	query, ok := s.items[input]
	s.mu.RUnlock()
	if ok {
		return query, true, nil
	}

	query, err = Parse(input)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if len(s.items) >= s.max {
		s.items = make(map[string]*Query, s.max)
	}
	s.items[input] = query
	s.mu.Unlock()

	return query, false, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Capacity returns the maximum number of cached entries.
func (c *Cache) Capacity() int {
	return c.shards[0].max * cacheShards
}
