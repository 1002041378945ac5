package node

import (
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/bootstrap"
	"github.com/GildasT/MaidSafe-Routing/internal/identity"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/telemetry"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
)

type Config struct {
	Identity  *identity.Identity
	Transport transport.Transport
	Store     *bootstrap.Store // optional persisted bootstrap list
	Endpoint  string           // our dialable endpoint, published in Connect bodies
	Observer  Observer
	Logger    telemetry.Logger
	Debug     bool

	Table routing.Params

	FindNodeInterval time.Duration // steady-state recovery tick
	RecoveryLag      time.Duration // delay before reacting to a close loss
	RebootstrapLag   time.Duration // delay before rejoining on collapse
	MaxFindFailures  int           // dry find-group rounds before rebootstrap

	FilterTTL     time.Duration
	CacheTTL      time.Duration
	CacheCapacity int

	MaxDataSize    int
	DefaultTimeout time.Duration

	// Inbound per-peer rate limit.
	RateLimit float64
	RateBurst float64

	QueueLen int // executor backlog
}

func DefaultConfig() Config {
	return Config{
		Table:            routing.DefaultParams(),
		FindNodeInterval: 30 * time.Second,
		RecoveryLag:      2 * time.Second,
		RebootstrapLag:   10 * time.Second,
		MaxFindFailures:  3,
		FilterTTL:        20 * time.Minute,
		CacheTTL:         10 * time.Minute,
		CacheCapacity:    1024,
		MaxDataSize:      1 << 20,
		DefaultTimeout:   10 * time.Second,
		RateLimit:        100,
		RateBurst:        200,
		QueueLen:         256,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Table.MaxSize <= 0 {
		c.Table = d.Table
	}
	if c.FindNodeInterval <= 0 {
		c.FindNodeInterval = d.FindNodeInterval
	}
	if c.RecoveryLag <= 0 {
		c.RecoveryLag = d.RecoveryLag
	}
	if c.RebootstrapLag <= 0 {
		c.RebootstrapLag = d.RebootstrapLag
	}
	if c.MaxFindFailures <= 0 {
		c.MaxFindFailures = d.MaxFindFailures
	}
	if c.FilterTTL <= 0 {
		c.FilterTTL = d.FilterTTL
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = d.CacheCapacity
	}
	if c.MaxDataSize <= 0 {
		c.MaxDataSize = d.MaxDataSize
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.QueueLen <= 0 {
		c.QueueLen = d.QueueLen
	}
}
