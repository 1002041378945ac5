package cache

import (
	"bytes"
	"crypto/rand"
	"testing"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

func randKey(t *testing.T) routing.Address {
	t.Helper()
	var a routing.Address
	if _, err := rand.Read(a[:]); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return a
}

func TestCacheRoundTrip(t *testing.T) {
	c := New(time.Minute, 4)
	k := randKey(t)
	c.Put(k, []byte("value"))

	got, ok := c.Get(k)
	if !ok || !bytes.Equal(got, []byte("value")) {
		t.Fatalf("get = %q ok=%v", got, ok)
	}
	if _, ok := c.Get(randKey(t)); ok {
		t.Fatalf("hit on a missing key")
	}
}

func TestCacheTTL(t *testing.T) {
	c := New(30*time.Millisecond, 4)
	k := randKey(t)
	c.Put(k, []byte("v"))
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get(k); ok {
		t.Fatalf("stale entry served")
	}
}

func TestCacheEvictsLRU(t *testing.T) {
	c := New(time.Minute, 2)
	a, b, d := randKey(t), randKey(t), randKey(t)
	c.Put(a, []byte("a"))
	c.Put(b, []byte("b"))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get(a); !ok {
		t.Fatalf("warm entry missing")
	}
	c.Put(d, []byte("d"))

	if _, ok := c.Get(b); ok {
		t.Fatalf("least recently used entry survived")
	}
	if _, ok := c.Get(a); !ok {
		t.Fatalf("recently used entry evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestCachePutRefreshes(t *testing.T) {
	c := New(time.Minute, 4)
	k := randKey(t)
	c.Put(k, []byte("old"))
	c.Put(k, []byte("new"))
	got, ok := c.Get(k)
	if !ok || !bytes.Equal(got, []byte("new")) {
		t.Fatalf("get = %q ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("refresh duplicated entry")
	}
}
