package node

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/bootstrap"
	"github.com/GildasT/MaidSafe-Routing/internal/pending"
	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
	"github.com/GildasT/MaidSafe-Routing/internal/transport/sim"
)

func TestCloseGroupLossTriggersFindGroup(t *testing.T) {
	nw := sim.NewNetwork(20)

	var rec *recordingTransport
	watched := newTestNode(t, nw, "watched", wrapTransport(func(tr transport.Transport) transport.Transport {
		rec = record(tr)
		return rec
	}))

	nodes := []*Node{watched}
	for i := 0; i < 5; i++ {
		nodes = append(nodes, newTestNode(t, nw, "peer-"+string(rune('a'+i))))
	}
	connectMesh(t, nodes)

	victim := watched.CloseGroup()[0]
	st := rec.Transport.(*sim.Transport)
	waitFor(t, 2*time.Second, func() bool { return st.Linked(victim) }, "link to the victim")

	rec.reset()
	nw.Kill(victim)

	waitFor(t, 3*time.Second, func() bool {
		return rec.countTagFrom(proto.TagFindGroup, watched.OurAddress()) >= 1
	}, "find-group probe after losing a close-group member")

	waitFor(t, 3*time.Second, func() bool {
		return watched.TableSize() == len(nodes)-2
	}, "victim dropped from the table")
}

func TestBootstrapLossEndsPartialJoinSession(t *testing.T) {
	nw := sim.NewNetwork(21)

	statuses := make(chan int, 16)
	joiner := newTestNode(t, nw, "pj", withObserver(Observer{
		OnNetworkStatus: func(code int) { statuses <- code },
	}))
	seed := newTestNode(t, nw, "pj-seed")
	registerHandlers(seed)

	if err := joiner.Join([]string{"pj-seed"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return joiner.TableSize() == 1 }, "join to settle")

	// A request the seed will never answer keeps a task pending.
	done := make(chan pending.Status, 1)
	fn := func(s pending.Status, _ [][]byte) { done <- s }
	if err := joiner.Send(randAddr(t), []byte("hang"), fn, time.Minute, Direct, false); err != nil {
		t.Fatalf("send: %v", err)
	}

	nw.Kill(seed.OurAddress())

	select {
	case s := <-done:
		if s != pending.SessionEnded {
			t.Fatalf("task status = %v, want session ended", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("pending task survived bootstrap loss")
	}

	waitFor(t, 3*time.Second, func() bool {
		for {
			select {
			case code := <-statuses:
				if code == StatusPartialJoinSessionEnded {
					return true
				}
			default:
				return false
			}
		}
	}, "partial-join session end status")
}

func TestJoinPersistsAndReusesBootstrapList(t *testing.T) {
	nw := sim.NewNetwork(23)
	store, err := bootstrap.Open(filepath.Join(t.TempDir(), "boot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	withStore := func(c *Config) { c.Store = store }

	seed := newTestNode(t, nw, "store-seed")
	registerHandlers(seed)

	joiner := newTestNode(t, nw, "store-joiner", withStore)
	if err := joiner.Join([]string{"store-seed"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return joiner.TableSize() == 1 }, "first join")
	waitFor(t, 3*time.Second, func() bool {
		return len(store.Candidates(0, 0)) > 0
	}, "bootstrap list to be persisted")

	// A later node with only the persisted list finds its way in.
	second := newTestNode(t, nw, "store-second", withStore)
	if err := second.Join(nil); err != nil {
		t.Fatalf("join from store: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return second.TableSize() >= 1 }, "join from persisted list")
}

func TestAnonymousSendWithoutJoinFails(t *testing.T) {
	nw := sim.NewNetwork(22)
	n := newTestNode(t, nw, "anon")
	registerHandlers(n)

	done := make(chan pending.Status, 1)
	fn := func(s pending.Status, _ [][]byte) { done <- s }
	err := n.Send(randAddr(t), []byte("x"), fn, time.Second, Direct, false)
	if err == nil {
		t.Fatalf("send with no network succeeded")
	}
	select {
	case s := <-done:
		if s != pending.Rejected {
			t.Fatalf("status = %v, want rejected", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("no callback")
	}
}
