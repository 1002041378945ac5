package routing

import (
	"sort"
	"sync"
)

// Params bound the table. GroupSize is the quorum a destination address is
// replicated over; CloseSize is how many nearest neighbours we refuse to
// lose track of; BucketTarget is the per-prefix-bucket floor that keeps the
// table's reach across the whole address space.
type Params struct {
	MaxSize      int
	GroupSize    int
	CloseSize    int
	BucketTarget int
}

func DefaultParams() Params {
	return Params{
		MaxSize:      64,
		GroupSize:    4,
		CloseSize:    8,
		BucketTarget: 1,
	}
}

type EventKind int

const (
	NodeAdded EventKind = iota
	NodeRemoved
	CloseGroupChanged
)

// Event describes a table mutation. Close-group events carry snapshots, not
// references into the table.
type Event struct {
	Kind     EventKind
	Node     NodeInfo
	OldClose []NodeInfo
	NewClose []NodeInfo
}

// AddOutcome reports what AddNode did.
type AddOutcome struct {
	Added             bool
	Evicted           *NodeInfo
	CloseGroupChanged bool
}

// Table is the bounded set of peers this node routes through. One mutex
// guards it; every operation is O(N) with N <= MaxSize. Change events are
// queued under the lock and handed to the notify handler only after it is
// released, in mutation order.
type Table struct {
	our    Address
	p      Params
	notify func(Event)

	mu     sync.Mutex
	nodes  []NodeInfo
	events []Event

	emitMu sync.Mutex
}

// NewTable builds a table for our address. notify may be nil.
func NewTable(our Address, p Params, notify func(Event)) *Table {
	if p.MaxSize <= 0 {
		p = DefaultParams()
	}
	return &Table{our: our, p: p, notify: notify}
}

func (t *Table) OurAddress() Address { return t.our }

func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// CheckNode reports whether candidate would be accepted if offered, without
// mutating state.
func (t *Table) CheckNode(candidate Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(candidate)
}

func (t *Table) checkLocked(candidate Address) bool {
	if candidate == t.our || candidate.IsZero() {
		return false
	}
	if t.indexOfLocked(candidate) >= 0 {
		return false
	}
	if len(t.nodes) < t.p.MaxSize {
		return true
	}
	if far, ok := t.farthestLocked(); ok && CloserTo(candidate, far.Addr, t.our) {
		return true
	}
	if t.bucketCountLocked(BucketIndex(t.our, candidate)) < t.p.BucketTarget {
		return true
	}
	return t.amongClosestLocked(candidate)
}

// AddNode inserts info under the acceptance rule. When the table is full it
// evicts the farthest member not protected by the close group or by its
// prefix bucket; if the bucket floor protects every non-close member, the
// farthest non-close member goes anyway. The candidate is refused only when
// every member is in the close group.
func (t *Table) AddNode(info NodeInfo) AddOutcome {
	t.mu.Lock()
	if !t.checkLocked(info.Addr) {
		t.mu.Unlock()
		return AddOutcome{}
	}

	oldClose := t.closeGroupLocked()
	var evicted *NodeInfo
	if len(t.nodes) >= t.p.MaxSize {
		idx, ok := t.evictionVictimLocked()
		if !ok {
			t.mu.Unlock()
			return AddOutcome{}
		}
		victim := t.nodes[idx]
		t.nodes = append(t.nodes[:idx], t.nodes[idx+1:]...)
		evicted = &victim
		t.events = append(t.events, Event{Kind: NodeRemoved, Node: victim.Clone()})
	}

	t.nodes = append(t.nodes, info.Clone())
	t.events = append(t.events, Event{Kind: NodeAdded, Node: info.Clone()})

	newClose := t.closeGroupLocked()
	changed := !sameAddrs(oldClose, newClose)
	if changed {
		t.events = append(t.events, Event{
			Kind:     CloseGroupChanged,
			OldClose: cloneNodes(oldClose),
			NewClose: cloneNodes(newClose),
		})
	}
	t.mu.Unlock()
	t.dispatch()

	return AddOutcome{Added: true, Evicted: evicted, CloseGroupChanged: changed}
}

// DropNode removes the entry for addr, if any. quorumOK means the caller has
// independent evidence the peer is gone (a closed transport connection, a
// group vote); without it, close-group members are spared.
func (t *Table) DropNode(addr Address, quorumOK bool) *NodeInfo {
	t.mu.Lock()
	idx := t.indexOfLocked(addr)
	if idx < 0 {
		t.mu.Unlock()
		return nil
	}
	if !quorumOK && t.inCloseGroupLocked(addr) {
		t.mu.Unlock()
		return nil
	}

	oldClose := t.closeGroupLocked()
	dropped := t.nodes[idx]
	t.nodes = append(t.nodes[:idx], t.nodes[idx+1:]...)
	t.events = append(t.events, Event{Kind: NodeRemoved, Node: dropped.Clone()})

	newClose := t.closeGroupLocked()
	if !sameAddrs(oldClose, newClose) {
		t.events = append(t.events, Event{
			Kind:     CloseGroupChanged,
			OldClose: cloneNodes(oldClose),
			NewClose: cloneNodes(newClose),
		})
	}
	t.mu.Unlock()
	t.dispatch()

	return &dropped
}

// ClosestNodes returns up to n known peers sorted ascending by XOR distance
// to target. With includeSelf, a bare entry for our own address competes in
// the ordering.
func (t *Table) ClosestNodes(target Address, n int, includeSelf bool) []NodeInfo {
	t.mu.Lock()
	all := make([]NodeInfo, 0, len(t.nodes)+1)
	all = append(all, t.nodes...)
	if includeSelf {
		all = append(all, NodeInfo{Addr: t.our})
	}
	t.mu.Unlock()

	sortByDistance(all, target)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return cloneNodes(all)
}

// ClosestTo returns the single known peer nearest to target.
func (t *Table) ClosestTo(target Address) (NodeInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	best := -1
	for i := range t.nodes {
		if best < 0 || less(t.nodes[i].Addr, t.nodes[best].Addr, target) {
			best = i
		}
	}
	if best < 0 {
		return NodeInfo{}, false
	}
	return t.nodes[best].Clone(), true
}

// IsInCloseGroup reports whether our address is among the GroupSize closest
// to target, counting ourselves alongside every known peer.
func (t *Table) IsInCloseGroup(target Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	closer := 0
	for i := range t.nodes {
		if less(t.nodes[i].Addr, t.our, target) {
			closer++
			if closer >= t.p.GroupSize {
				return false
			}
		}
	}
	return true
}

// IsCloseMember reports whether addr is currently one of our CloseSize
// nearest known peers.
func (t *Table) IsCloseMember(addr Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inCloseGroupLocked(addr)
}

// OurCloseGroup returns the CloseSize members nearest our own address.
func (t *Table) OurCloseGroup() []NodeInfo {
	t.mu.Lock()
	group := t.closeGroupLocked()
	out := cloneNodes(group)
	t.mu.Unlock()
	return out
}

// GetNode returns the entry for addr, if known.
func (t *Table) GetNode(addr Address) (NodeInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.indexOfLocked(addr)
	if idx < 0 {
		return NodeInfo{}, false
	}
	return t.nodes[idx].Clone(), true
}

// EstimateInGroup reports whether info plausibly belongs to the close group
// of sender, judged from our own partial view: info must rank within
// GroupSize among our known peers plus ourselves. The sender competes only
// when it is itself in the table.
func (t *Table) EstimateInGroup(sender, info Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	closer := 0
	for i := range t.nodes {
		if t.nodes[i].Addr == info {
			continue
		}
		if less(t.nodes[i].Addr, info, sender) {
			closer++
		}
	}
	if t.our != info && less(t.our, info, sender) {
		closer++
	}
	return closer < t.p.GroupSize
}

// ConfirmGroupMembers reports whether a and b could share a close group:
// both must rank within CloseSize of the nearer of the two, by our view.
func (t *Table) ConfirmGroupMembers(a, b Address) bool {
	pivot := a
	if less(b, a, t.our) {
		pivot = b
	}
	other := a
	if pivot == a {
		other = b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	closer := 0
	for i := range t.nodes {
		if t.nodes[i].Addr == other || t.nodes[i].Addr == pivot {
			continue
		}
		if less(t.nodes[i].Addr, other, pivot) {
			closer++
		}
	}
	return closer < t.p.CloseSize
}

func (t *Table) indexOfLocked(addr Address) int {
	for i := range t.nodes {
		if t.nodes[i].Addr == addr {
			return i
		}
	}
	return -1
}

func (t *Table) farthestLocked() (NodeInfo, bool) {
	worst := -1
	for i := range t.nodes {
		if worst < 0 || less(t.nodes[worst].Addr, t.nodes[i].Addr, t.our) {
			worst = i
		}
	}
	if worst < 0 {
		return NodeInfo{}, false
	}
	return t.nodes[worst], true
}

func (t *Table) bucketCountLocked(bucket int) int {
	n := 0
	for i := range t.nodes {
		if BucketIndex(t.our, t.nodes[i].Addr) == bucket {
			n++
		}
	}
	return n
}

// amongClosestLocked reports whether candidate would rank within the
// CloseSize nearest known addresses to us.
func (t *Table) amongClosestLocked(candidate Address) bool {
	closer := 0
	for i := range t.nodes {
		if less(t.nodes[i].Addr, candidate, t.our) {
			closer++
			if closer >= t.p.CloseSize {
				return false
			}
		}
	}
	return true
}

func (t *Table) inCloseGroupLocked(addr Address) bool {
	group := t.closeGroupLocked()
	for i := range group {
		if group[i].Addr == addr {
			return true
		}
	}
	return false
}

// closeGroupLocked returns (without cloning) the CloseSize members nearest
// our address.
func (t *Table) closeGroupLocked() []NodeInfo {
	group := make([]NodeInfo, len(t.nodes))
	copy(group, t.nodes)
	sortByDistance(group, t.our)
	if len(group) > t.p.CloseSize {
		group = group[:t.p.CloseSize]
	}
	return group
}

// evictionVictimLocked picks the farthest member whose removal neither
// breaks the close group nor empties a bucket down to its target floor;
// failing that, the farthest member outside the close group.
func (t *Table) evictionVictimLocked() (int, bool) {
	order := make([]int, len(t.nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		// farthest first
		return less(t.nodes[order[b]].Addr, t.nodes[order[a]].Addr, t.our)
	})

	for _, idx := range order {
		addr := t.nodes[idx].Addr
		if t.inCloseGroupLocked(addr) {
			continue
		}
		if t.bucketCountLocked(BucketIndex(t.our, addr)) <= t.p.BucketTarget {
			continue
		}
		return idx, true
	}
	// Relax the bucket floor rather than refuse a strictly closer peer.
	for _, idx := range order {
		if !t.inCloseGroupLocked(t.nodes[idx].Addr) {
			return idx, true
		}
	}
	return 0, false
}

// dispatch drains queued events to the notify handler. emitMu serialises
// dispatchers so events arrive in mutation order; the table lock is never
// held across a callback.
func (t *Table) dispatch() {
	if t.notify == nil {
		t.mu.Lock()
		t.events = nil
		t.mu.Unlock()
		return
	}
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	for {
		t.mu.Lock()
		if len(t.events) == 0 {
			t.mu.Unlock()
			return
		}
		e := t.events[0]
		t.events = t.events[1:]
		t.mu.Unlock()
		t.notify(e)
	}
}

// sortByDistance stably sorts nodes ascending by XOR distance to target,
// ties toward the smaller address.
func sortByDistance(nodes []NodeInfo, target Address) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return less(nodes[i].Addr, nodes[j].Addr, target)
	})
}

func sameAddrs(a, b []NodeInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Addr != b[i].Addr {
			return false
		}
	}
	return true
}
