package routing_test

import (
	"errors"
	"testing"
	"time"

	routing "github.com/GildasT/MaidSafe-Routing"
	"github.com/GildasT/MaidSafe-Routing/internal/transport/sim"
)

func newNode(t *testing.T, nw *sim.Network, name string) *routing.Node {
	t.Helper()
	id, err := routing.NewIdentity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	cfg := routing.DefaultConfig()
	cfg.Identity = id
	cfg.Transport = nw.Attach(id.Addr, name, id.Static.Public)
	cfg.Endpoint = name
	cfg.RecoveryLag = 100 * time.Millisecond

	n, err := routing.NewNode(cfg)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	t.Cleanup(n.Shutdown)
	return n
}

func TestJoinWithoutPeersReportsNotJoined(t *testing.T) {
	nw := sim.NewNetwork(1)
	n := newNode(t, nw, "only")
	if err := n.Join(nil); !errors.Is(err, routing.ErrNotJoined) {
		t.Fatalf("err = %v, want ErrNotJoined", err)
	}
}

func TestTwoNodesFindEachOther(t *testing.T) {
	nw := sim.NewNetwork(2)
	a := newNode(t, nw, "a")
	b := newNode(t, nw, "b")

	if err := a.Join([]string{"b"}); err != nil {
		t.Fatalf("a.Join: %v", err)
	}
	if err := b.Join([]string{"a"}); err != nil {
		t.Fatalf("b.Join: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if a.TableSize() == 1 && b.TableSize() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("nodes never linked: a=%d b=%d", a.TableSize(), b.TableSize())
}
