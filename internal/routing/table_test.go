package routing

import (
	"bytes"
	"testing"
)

func smallParams() Params {
	return Params{MaxSize: 8, GroupSize: 2, CloseSize: 4, BucketTarget: 1}
}

func infoFor(a Address) NodeInfo {
	return NodeInfo{Addr: a, Contact: Contact{Endpoint: a.Short()}}
}

func TestAddNodeRejectsSelfAndDuplicates(t *testing.T) {
	our := randAddr(t)
	tb := NewTable(our, smallParams(), nil)

	if out := tb.AddNode(infoFor(our)); out.Added {
		t.Fatalf("added our own address")
	}

	peer := randAddr(t)
	if out := tb.AddNode(infoFor(peer)); !out.Added {
		t.Fatalf("first add refused")
	}
	if out := tb.AddNode(infoFor(peer)); out.Added {
		t.Fatalf("duplicate accepted")
	}
	if tb.Size() != 1 {
		t.Fatalf("size = %d, want 1", tb.Size())
	}
}

func TestAddedNodeVisibleUntilDropped(t *testing.T) {
	our := randAddr(t)
	tb := NewTable(our, smallParams(), nil)

	peer := randAddr(t)
	if out := tb.AddNode(infoFor(peer)); !out.Added {
		t.Fatalf("add refused")
	}

	found := false
	for _, ni := range tb.ClosestNodes(our, 0, false) {
		if ni.Addr == peer {
			found = true
		}
	}
	if !found {
		t.Fatalf("added node missing from closest_nodes")
	}

	if dropped := tb.DropNode(peer, true); dropped == nil || dropped.Addr != peer {
		t.Fatalf("drop returned %v", dropped)
	}
	for _, ni := range tb.ClosestNodes(our, 0, false) {
		if ni.Addr == peer {
			t.Fatalf("dropped node still present")
		}
	}
}

func TestClosestNodesSorted(t *testing.T) {
	our := randAddr(t)
	tb := NewTable(our, Params{MaxSize: 64, GroupSize: 4, CloseSize: 8, BucketTarget: 1}, nil)

	for i := 0; i < 50; i++ {
		tb.AddNode(infoFor(randAddr(t)))
	}
	target := randAddr(t)
	got := tb.ClosestNodes(target, 10, false)
	if len(got) == 0 || len(got) > 10 {
		t.Fatalf("unexpected result size %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		prev := Distance(got[i-1].Addr, target)
		cur := Distance(got[i].Addr, target)
		if bytes.Compare(prev[:], cur[:]) > 0 {
			t.Fatalf("closest not sorted at %d", i)
		}
	}
}

func TestFullTableAcceptsOnlyCloserOrBucketShort(t *testing.T) {
	our := randAddr(t)
	p := smallParams()
	tb := NewTable(our, p, nil)

	for tb.Size() < p.MaxSize {
		tb.AddNode(infoFor(randAddr(t)))
	}

	members := tb.ClosestNodes(our, 0, false)
	farthest := members[len(members)-1].Addr

	// A candidate farther than every member, in an occupied bucket, must
	// be refused.
	for i := 0; i < 50; i++ {
		cand := randAddr(t)
		if tb.CheckNode(cand) {
			continue // closer than farthest or bucket-short; fine
		}
		if CloserTo(cand, farthest, our) {
			t.Fatalf("refused a candidate closer than the farthest member")
		}
	}

	// A candidate strictly closer than the farthest member is accepted and
	// evicts someone.
	var closer Address
	for {
		closer = randAddr(t)
		if CloserTo(closer, farthest, our) {
			break
		}
	}
	out := tb.AddNode(infoFor(closer))
	if !out.Added {
		t.Fatalf("closer candidate refused")
	}
	if out.Evicted == nil {
		t.Fatalf("full table add did not evict")
	}
	if tb.Size() != p.MaxSize {
		t.Fatalf("size = %d, want %d", tb.Size(), p.MaxSize)
	}
}

func TestCheckNodeMatchesAddNode(t *testing.T) {
	our := randAddr(t)
	tb := NewTable(our, smallParams(), nil)

	for i := 0; i < 100; i++ {
		cand := randAddr(t)
		want := tb.CheckNode(cand)
		got := tb.AddNode(infoFor(cand)).Added
		if want != got {
			t.Fatalf("check=%v add=%v for %s", want, got, cand.Short())
		}
	}
}

func TestIsInCloseGroup(t *testing.T) {
	our := randAddr(t)
	p := smallParams()
	tb := NewTable(our, p, nil)

	// Empty table: we are trivially in every group.
	if !tb.IsInCloseGroup(randAddr(t)) {
		t.Fatalf("empty table should own the whole space")
	}

	for i := 0; i < p.MaxSize; i++ {
		tb.AddNode(infoFor(randAddr(t)))
	}
	target := randAddr(t)

	// Count members strictly closer to target than we are.
	closer := 0
	for _, ni := range tb.ClosestNodes(target, 0, false) {
		if CloserTo(ni.Addr, our, target) {
			closer++
		}
	}
	want := closer < p.GroupSize
	if got := tb.IsInCloseGroup(target); got != want {
		t.Fatalf("IsInCloseGroup=%v, want %v (closer=%d)", got, want, closer)
	}
}

func TestCloseGroupChangeEvents(t *testing.T) {
	our := randAddr(t)
	var events []Event
	tb := NewTable(our, smallParams(), func(e Event) { events = append(events, e) })

	a := randAddr(t)
	tb.AddNode(infoFor(a))

	if len(events) < 2 {
		t.Fatalf("expected added + close group events, got %d", len(events))
	}
	if events[0].Kind != NodeAdded || events[0].Node.Addr != a {
		t.Fatalf("first event = %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != CloseGroupChanged {
		t.Fatalf("expected close group change, got %+v", last)
	}
	if len(last.OldClose) != 0 || len(last.NewClose) != 1 {
		t.Fatalf("close group snapshots wrong: old=%d new=%d", len(last.OldClose), len(last.NewClose))
	}

	events = events[:0]
	tb.DropNode(a, true)
	if len(events) < 2 || events[0].Kind != NodeRemoved {
		t.Fatalf("expected removed + close group events, got %+v", events)
	}
}

func TestDropNodeWithoutQuorumSparesCloseGroup(t *testing.T) {
	our := randAddr(t)
	p := smallParams()
	tb := NewTable(our, p, nil)

	a := randAddr(t)
	tb.AddNode(infoFor(a))

	if dropped := tb.DropNode(a, false); dropped != nil {
		t.Fatalf("unconfirmed drop removed a close-group member")
	}
	if dropped := tb.DropNode(a, true); dropped == nil {
		t.Fatalf("confirmed drop refused")
	}
}

func TestClosestToAndGetNode(t *testing.T) {
	our := randAddr(t)
	tb := NewTable(our, smallParams(), nil)

	if _, ok := tb.ClosestTo(randAddr(t)); ok {
		t.Fatalf("closest on empty table")
	}

	a := randAddr(t)
	tb.AddNode(infoFor(a))
	got, ok := tb.ClosestTo(a)
	if !ok || got.Addr != a {
		t.Fatalf("closest to member = %v ok=%v", got.Addr.Short(), ok)
	}
	if _, ok := tb.GetNode(a); !ok {
		t.Fatalf("GetNode missed a member")
	}
	if _, ok := tb.GetNode(randAddr(t)); ok {
		t.Fatalf("GetNode found a stranger")
	}
}
