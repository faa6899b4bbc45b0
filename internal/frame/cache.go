package frame

import (
	"container/list"
	"sync"
)

// Cache key: one slot per asset per frame bucket
type key struct {
	assetID string
	bucket  int64
}

// Stats is a point-in-time snapshot of cache effectiveness
type Stats struct {
	Entries int     `json:"entries"`
	Bytes   int64   `json:"bytes"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

type cacheEntry struct {
	key   key
	frame *Frame
	size  int64
}

// Cache is a byte-budgeted LRU over decoded frames
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	bytes    int64
	ll       *list.List
	entries  map[key]*list.Element
	hits     uint64
	misses   uint64
}

// NewCache creates a cache bounded to maxBytes of pixel data
func NewCache(maxBytes int64) *Cache {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024 * 1024
	}
	return &Cache{
		maxBytes: maxBytes,
		ll:       list.New(),
		entries:  make(map[key]*list.Element),
	}
}

// Get returns the cached frame for k, counting a hit or miss
func (c *Cache) Get(k key) *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).frame
}

// Contains reports presence without touching the hit counters, used
// by prefetch to avoid skewing the stats
func (c *Cache) Contains(k key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[k]
	return ok
}

// Put stores a frame and evicts from the cold end past the budget
func (c *Cache) Put(k key, f *Frame) {
	if f == nil || f.Image == nil {
		return
	}

	size := int64(len(f.Image.Pix))

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[k]; ok {
		entry := el.Value.(*cacheEntry)
		c.bytes += size - entry.size
		entry.frame = f
		entry.size = size
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&cacheEntry{key: k, frame: f, size: size})
		c.entries[k] = el
		c.bytes += size
	}

	for c.bytes > c.maxBytes && c.ll.Len() > 1 {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.entries, entry.key)
	c.bytes -= entry.size
}

// Clear drops all entries but keeps the hit counters
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.entries = make(map[key]*list.Element)
	c.bytes = 0
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries: c.ll.Len(),
		Bytes:   c.bytes,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
