package node

import (
	"sync"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

type tokenBucket struct {
	tokens float64
	last   time.Time
}

func (b *tokenBucket) allow(now time.Time, rate, burst, cost float64) bool {
	if b.last.IsZero() {
		b.last = now
		b.tokens = burst
	}
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// rateLimiter buckets inbound frames per sending peer.
type rateLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	buckets map[routing.Address]*tokenBucket
}

func newRateLimiter(rate, burst float64) *rateLimiter {
	return &rateLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[routing.Address]*tokenBucket),
	}
}

func (rl *rateLimiter) allow(from routing.Address) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.buckets[from]
	if b == nil {
		// Opportunistic GC of idle buckets.
		if len(rl.buckets) > 1024 {
			for k, v := range rl.buckets {
				if now.Sub(v.last) > time.Minute {
					delete(rl.buckets, k)
				}
			}
		}
		b = &tokenBucket{}
		rl.buckets[from] = b
	}
	return b.allow(now, rl.rate, rl.burst, 1)
}
