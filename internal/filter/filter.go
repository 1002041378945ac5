// Package filter remembers message fingerprints for a bounded time so that
// a frame flooded through several neighbours is processed at most once.
package filter

import (
	"sync"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/proto"
)

type Filter struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[proto.Fingerprint]time.Time
}

func New(ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	return &Filter{
		ttl:   ttl,
		items: make(map[proto.Fingerprint]time.Time),
	}
}

// Check reports whether fp is currently remembered.
func (f *Filter) Check(fp proto.Fingerprint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[fp]
	if !ok {
		return false
	}
	if time.Since(t) > f.ttl {
		delete(f.items, fp)
		return false
	}
	return true
}

// Add records fp. Entries older than the TTL are pruned on every insert.
func (f *Filter) Add(fp proto.Fingerprint) {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	for k, t := range f.items {
		if now.Sub(t) > f.ttl {
			delete(f.items, k)
		}
	}
	f.items[fp] = now
}

func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
