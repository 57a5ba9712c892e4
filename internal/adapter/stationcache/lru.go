package stationcache

import "sync"

// lruCache is a thread-safe LRU map. A capacity of zero or less disables it.
type lruCache[V any] struct {
	capacity int
	mu       sync.Mutex
	items    map[string]*node[V]
	newest   *node[V]
	oldest   *node[V]
}

type node[V any] struct {
	key          string
	value        V
	newer, older *node[V]
}

func newLRUCache[V any](capacity int) *lruCache[V] {
	return &lruCache[V]{
		capacity: capacity,
		items:    make(map[string]*node[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.promote(n)
	return n.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		n.value = value
		c.promote(n)
		return
	}

	n := &node[V]{key: key, value: value}
	c.items[key] = n
	c.pushNewest(n)

	if len(c.items) > c.capacity {
		old := c.oldest
		c.unlink(old)
		delete(c.items, old.key)
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) promote(n *node[V]) {
	if n == c.newest {
		return
	}
	c.unlink(n)
	c.pushNewest(n)
}

func (c *lruCache[V]) pushNewest(n *node[V]) {
	n.older = c.newest
	n.newer = nil
	if c.newest != nil {
		c.newest.newer = n
	}
	c.newest = n
	if c.oldest == nil {
		c.oldest = n
	}
}

func (c *lruCache[V]) unlink(n *node[V]) {
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		c.newest = n.older
	}
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		c.oldest = n.newer
	}
	n.newer, n.older = nil, nil
}
