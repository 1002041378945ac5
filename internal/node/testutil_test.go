package node

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/identity"
	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
	"github.com/GildasT/MaidSafe-Routing/internal/transport/sim"
)

type nodeTestOpt func(*Config)

func withObserver(obs Observer) nodeTestOpt {
	return func(c *Config) { c.Observer = obs }
}

func withTableParams(p routing.Params) nodeTestOpt {
	return func(c *Config) { c.Table = p }
}

// wrapTransport lets a test interpose on the node's transport; the sim
// transport keeps receiving inbound frames either way.
func wrapTransport(f func(transport.Transport) transport.Transport) nodeTestOpt {
	return func(c *Config) { c.Transport = f(c.Transport) }
}

// newTestNode attaches a fresh identity to the sim network under name and
// builds a node with test-friendly timing.
func newTestNode(t *testing.T, nw *sim.Network, name string, opts ...nodeTestOpt) *Node {
	t.Helper()

	id, err := identity.New()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	st := nw.Attach(id.Addr, name, id.Static.Public)

	cfg := DefaultConfig()
	cfg.Identity = id
	cfg.Transport = st
	cfg.Endpoint = name
	cfg.Logger = log.New(io.Discard, "", log.LstdFlags)
	cfg.Debug = true
	cfg.RecoveryLag = 100 * time.Millisecond
	cfg.FindNodeInterval = 500 * time.Millisecond
	cfg.RebootstrapLag = 300 * time.Millisecond
	cfg.DefaultTimeout = 2 * time.Second

	for _, opt := range opts {
		opt(&cfg)
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("NewNode(%s): %v", name, err)
	}
	t.Cleanup(n.Shutdown)
	return n
}

// registerHandlers hooks the node's callbacks into its transport without a
// full join, for tests that build topologies by hand.
func registerHandlers(n *Node) {
	_, _ = n.cfg.Transport.Bootstrap(nil, n.onMessage, n.onLost)
}

// connectMesh gives every node a complete routing table over the others.
func connectMesh(t *testing.T, nodes []*Node) {
	t.Helper()
	for _, n := range nodes {
		registerHandlers(n)
	}
	for _, n := range nodes {
		for _, other := range nodes {
			if other == n {
				continue
			}
			n.conn.AddNode(other.ourInfo())
		}
	}
	for _, n := range nodes {
		if n.TableSize() != len(nodes)-1 {
			t.Fatalf("node %s table size %d, want %d", n.OurAddress().Short(), n.TableSize(), len(nodes)-1)
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func containsAddr(addrs []routing.Address, want routing.Address) bool {
	for _, a := range addrs {
		if a == want {
			return true
		}
	}
	return false
}

// closestOf returns the node whose address is nearest target.
func closestOf(nodes []*Node, target routing.Address) *Node {
	best := nodes[0]
	for _, n := range nodes[1:] {
		if routing.CloserTo(n.OurAddress(), best.OurAddress(), target) {
			best = n
		}
	}
	return best
}

type sentFrame struct {
	peer  routing.Address
	frame []byte
}

// recordingTransport captures outbound frames on their way to the sim.
type recordingTransport struct {
	transport.Transport
	mu   sync.Mutex
	sent []sentFrame
}

func record(tr transport.Transport) *recordingTransport {
	return &recordingTransport{Transport: tr}
}

func (r *recordingTransport) Send(peer routing.Address, frame []byte, done func(error)) {
	r.mu.Lock()
	r.sent = append(r.sent, sentFrame{peer: peer, frame: append([]byte(nil), frame...)})
	r.mu.Unlock()
	r.Transport.Send(peer, frame, done)
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// countTagFrom counts recorded frames with the given tag originated by src.
func (r *recordingTransport) countTagFrom(tag proto.Tag, src routing.Address) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		h, gotTag, _, err := proto.DecodeFrame(s.frame)
		if err != nil {
			continue
		}
		if gotTag == tag && h.Source == src {
			n++
		}
	}
	return n
}
