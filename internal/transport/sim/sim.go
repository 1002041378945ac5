// Package sim is an in-process deterministic transport for tests. It is NOT
// production networking; it exists to exercise routing behaviour with
// controllable latency and loss.
package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
)

type delivery struct {
	from  routing.Address
	frame []byte
}

// Network registers every attached transport. Simulation knobs apply to all
// deliveries.
type Network struct {
	mu         sync.Mutex
	byAddr     map[routing.Address]*Transport
	byEndpoint map[string]*Transport

	Latency  time.Duration
	DropRate float64
	rng      *rand.Rand
}

func NewNetwork(seed int64) *Network {
	return &Network{
		byAddr:     make(map[routing.Address]*Transport),
		byEndpoint: make(map[string]*Transport),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Attach registers a node's transport under its address and endpoint.
func (nw *Network) Attach(addr routing.Address, endpoint string, static []byte) *Transport {
	t := &Transport{
		nw:       nw,
		addr:     addr,
		endpoint: endpoint,
		static:   append([]byte(nil), static...),
		links:    make(map[routing.Address]bool),
		inbox:    make(chan delivery, 256),
		quit:     make(chan struct{}),
	}
	go t.readLoop()

	nw.mu.Lock()
	nw.byAddr[addr] = t
	nw.byEndpoint[endpoint] = t
	nw.mu.Unlock()
	return t
}

// Kill removes addr from the network and notifies every linked peer, as a
// crashed process would.
func (nw *Network) Kill(addr routing.Address) {
	nw.mu.Lock()
	t := nw.byAddr[addr]
	if t != nil {
		delete(nw.byAddr, addr)
		delete(nw.byEndpoint, t.endpoint)
	}
	peers := make([]*Transport, 0)
	for _, other := range nw.byAddr {
		peers = append(peers, other)
	}
	nw.mu.Unlock()

	if t == nil {
		return
	}
	t.shutdown()
	for _, other := range peers {
		other.dropLink(addr)
	}
}

func (nw *Network) lookupEndpoint(endpoint string) *Transport {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	return nw.byEndpoint[endpoint]
}

func (nw *Network) lookupAddr(addr routing.Address) *Transport {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	return nw.byAddr[addr]
}

func (nw *Network) drop() bool {
	if nw.DropRate <= 0 {
		return false
	}
	nw.mu.Lock()
	defer nw.mu.Unlock()
	return nw.rng.Float64() < nw.DropRate
}

// Transport implements transport.Transport over the simulated network.
type Transport struct {
	nw       *Network
	addr     routing.Address
	endpoint string
	static   []byte

	mu        sync.Mutex
	onMessage transport.MessageFunc
	onLost    transport.LostFunc
	links     map[routing.Address]bool
	held      []delivery // frames that arrived before Bootstrap registered handlers
	closed    bool

	inbox chan delivery
	quit  chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Bootstrap(endpoints []string, onMessage transport.MessageFunc, onLost transport.LostFunc) (transport.BootstrapInfo, error) {
	t.mu.Lock()
	t.onMessage = onMessage
	t.onLost = onLost
	held := t.held
	t.held = nil
	t.mu.Unlock()

	for _, d := range held {
		onMessage(d.from, d.frame)
	}

	for _, ep := range endpoints {
		peer := t.nw.lookupEndpoint(ep)
		if peer == nil || peer == t {
			continue
		}
		t.link(peer)
		return transport.BootstrapInfo{
			Peer:    peer.addr,
			Contact: routing.Contact{Endpoint: peer.endpoint, Static: append([]byte(nil), peer.static...)},
		}, nil
	}
	return transport.BootstrapInfo{}, fmt.Errorf("sim: no endpoint reachable of %d", len(endpoints))
}

func (t *Transport) Add(contact routing.Contact, done func(error)) {
	go func() {
		peer := t.nw.lookupEndpoint(contact.Endpoint)
		if peer == nil {
			if done != nil {
				done(fmt.Errorf("sim: unknown endpoint %q", contact.Endpoint))
			}
			return
		}
		t.link(peer)
		if done != nil {
			done(nil)
		}
	}()
}

func (t *Transport) Remove(peer routing.Address) {
	t.mu.Lock()
	delete(t.links, peer)
	t.mu.Unlock()

	if other := t.nw.lookupAddr(peer); other != nil {
		other.dropLink(t.addr)
	}
}

func (t *Transport) Send(peer routing.Address, frame []byte, done func(error)) {
	target := t.nw.lookupAddr(peer)
	if target == nil {
		if done != nil {
			go done(fmt.Errorf("sim: unknown peer %s", peer.Short()))
		}
		return
	}
	if t.nw.drop() {
		if done != nil {
			go done(nil) // lost on the wire, not a send failure
		}
		return
	}
	d := delivery{from: t.addr, frame: append([]byte(nil), frame...)}
	select {
	case target.inbox <- d:
		if done != nil {
			go done(nil)
		}
	case <-target.quit:
		if done != nil {
			go done(fmt.Errorf("sim: peer %s is gone", peer.Short()))
		}
	}
}

func (t *Transport) AvailableEndpoint(routing.Address, string) (string, transport.NATType, error) {
	return t.endpoint, transport.NATNone, nil
}

// Linked reports whether a connection to peer is established. Test helper.
func (t *Transport) Linked(peer routing.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.links[peer]
}

func (t *Transport) Close() error {
	t.shutdown()
	return nil
}

func (t *Transport) link(peer *Transport) {
	t.mu.Lock()
	t.links[peer.addr] = true
	t.mu.Unlock()

	peer.mu.Lock()
	peer.links[t.addr] = true
	peer.mu.Unlock()
}

func (t *Transport) dropLink(peer routing.Address) {
	t.mu.Lock()
	linked := t.links[peer]
	delete(t.links, peer)
	onLost := t.onLost
	t.mu.Unlock()

	if linked && onLost != nil {
		go onLost(peer)
	}
}

func (t *Transport) shutdown() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	close(t.quit)
}

// readLoop delivers frames one at a time, preserving per-sender order.
func (t *Transport) readLoop() {
	for {
		select {
		case <-t.quit:
			return
		case d := <-t.inbox:
			if t.nw.Latency > 0 {
				time.Sleep(t.nw.Latency)
			}
			t.mu.Lock()
			onMessage := t.onMessage
			if onMessage == nil {
				t.held = append(t.held, d)
			}
			t.mu.Unlock()
			if onMessage != nil {
				onMessage(d.from, d.frame)
			}
		}
	}
}
