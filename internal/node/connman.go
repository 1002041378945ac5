package node

import (
	"sync"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/telemetry"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
)

// connMan owns the peer lifecycle: it translates routing-table decisions
// into transport connections and transport failures back into table drops.
type connMan struct {
	our   routing.Address
	table *routing.Table
	tr    transport.Transport
	logf  func(format string, args ...any)

	mu      sync.Mutex
	pending map[routing.Address]bool // connection attempts in flight
}

func newConnMan(our routing.Address, table *routing.Table, tr transport.Transport, logger telemetry.Logger) *connMan {
	cm := &connMan{
		our:     our,
		table:   table,
		tr:      tr,
		pending: make(map[routing.Address]bool),
	}
	cm.logf = func(format string, args ...any) {
		if logger != nil {
			logger.Printf(format, args...)
		}
	}
	return cm
}

// SuggestNodeToAdd reports whether addr is worth connecting to: the table
// would accept it and no attempt is already under way.
func (cm *connMan) SuggestNodeToAdd(addr routing.Address) bool {
	cm.mu.Lock()
	inFlight := cm.pending[addr]
	cm.mu.Unlock()
	if inFlight {
		return false
	}
	return cm.table.CheckNode(addr)
}

// AddNode inserts info into the table and, if accepted, opens a persistent
// transport connection. A failed open drops the peer again; an eviction
// closes the victim's connection.
func (cm *connMan) AddNode(info routing.NodeInfo) routing.AddOutcome {
	cm.mu.Lock()
	if cm.pending[info.Addr] {
		cm.mu.Unlock()
		return routing.AddOutcome{}
	}
	cm.pending[info.Addr] = true
	cm.mu.Unlock()

	out := cm.table.AddNode(info)
	if !out.Added {
		cm.clearPending(info.Addr)
		return out
	}

	addr := info.Addr
	cm.tr.Add(info.Contact, func(err error) {
		cm.clearPending(addr)
		if err != nil {
			cm.logf("transport add %s failed: %v", addr.Short(), err)
			cm.DropNode(addr)
		}
	})

	if out.Evicted != nil {
		cm.tr.Remove(out.Evicted.Addr)
	}
	return out
}

// DropNode removes addr from the table and closes its connection.
func (cm *connMan) DropNode(addr routing.Address) *routing.NodeInfo {
	dropped := cm.table.DropNode(addr, true)
	cm.tr.Remove(addr)
	return dropped
}

// LostNetworkConnection is the transport's report of a dead peer.
func (cm *connMan) LostNetworkConnection(peer routing.Address) *routing.NodeInfo {
	return cm.table.DropNode(peer, true)
}

// GetTarget returns the next hops toward dest: nothing for ourselves, the
// whole close group when dest falls in our close-group range (swarm mode),
// otherwise the single nearest peer.
func (cm *connMan) GetTarget(dest routing.Address) []routing.NodeInfo {
	if dest == cm.our {
		return nil
	}
	if cm.table.IsInCloseGroup(dest) {
		return cm.table.OurCloseGroup()
	}
	if next, ok := cm.table.ClosestTo(dest); ok {
		return []routing.NodeInfo{next}
	}
	return nil
}

func (cm *connMan) AddressInCloseGroupRange(addr routing.Address) bool {
	return cm.table.IsInCloseGroup(addr)
}

func (cm *connMan) OurCloseGroup() []routing.NodeInfo {
	return cm.table.OurCloseGroup()
}

func (cm *connMan) OurID() routing.Address { return cm.our }

func (cm *connMan) clearPending(addr routing.Address) {
	cm.mu.Lock()
	delete(cm.pending, addr)
	cm.mu.Unlock()
}
