// Package cache is the short-lived forwarding cache: data observed in
// responses passing through this node, kept long enough to answer repeated
// reads without another network round trip.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

type entry struct {
	key      routing.Address
	value    []byte
	inserted time.Time
}

type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	cap   int
	order *list.List // front = most recently used
	items map[routing.Address]*list.Element
}

func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache{
		ttl:   ttl,
		cap:   capacity,
		order: list.New(),
		items: make(map[routing.Address]*list.Element),
	}
}

// Get returns the cached value for key if present and fresh, refreshing its
// recency. The returned slice is a copy.
func (c *Cache) Get(key routing.Address) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Since(e.inserted) > c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return append([]byte(nil), e.value...), true
}

// Put inserts or refreshes key. The least-recently-used entry is evicted
// when the cache is over capacity.
func (c *Cache) Put(key routing.Address, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = append([]byte(nil), value...)
		e.inserted = time.Now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{
		key:      key,
		value:    append([]byte(nil), value...),
		inserted: time.Now(),
	})
	c.items[key] = el

	for c.order.Len() > c.cap {
		tail := c.order.Back()
		if tail == nil {
			break
		}
		c.order.Remove(tail)
		delete(c.items, tail.Value.(*entry).key)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
