// Package node ties the routing core together: the routing table, message
// filter, response cache and pending-task registry behind a facade the host
// application drives.
package node

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/cache"
	"github.com/GildasT/MaidSafe-Routing/internal/filter"
	"github.com/GildasT/MaidSafe-Routing/internal/identity"
	"github.com/GildasT/MaidSafe-Routing/internal/pending"
	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
	"github.com/GildasT/MaidSafe-Routing/internal/transport"
)

// DestKind selects how many close-group members answer a request.
type DestKind int

const (
	Direct DestKind = iota
	Group
)

type relayEntry struct {
	peer routing.Address
	at   time.Time
}

type Node struct {
	cfg Config
	id  *identity.Identity
	our routing.Address
	tr  transport.Transport

	runningMu sync.Mutex
	running   bool

	statusMu sync.Mutex
	status   int

	table   *routing.Table
	conn    *connMan
	filter  *filter.Filter
	cache   *cache.Cache
	tasks   *pending.Registry
	exec    *executor
	limiter *rateLimiter

	bootMu   sync.Mutex
	bootPeer routing.Address

	relayMu sync.Mutex
	relays  map[uint64]relayEntry

	recoveryMu    sync.Mutex
	setupTimer    *time.Timer
	recoveryTimer *time.Timer
	rebootTimer   *time.Timer
	findFailures  int
	lastSize      int
	closeLoss     bool

	everJoined atomic.Bool
	msgID      atomic.Uint64
}

func New(cfg Config) (*Node, error) {
	if cfg.Identity == nil {
		return nil, errors.New("node: identity required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("node: transport required")
	}
	cfg.fillDefaults()

	n := &Node{
		cfg:     cfg,
		id:      cfg.Identity,
		our:     cfg.Identity.Addr,
		tr:      cfg.Transport,
		running: true,
		status:  StatusNotJoined,
		relays:  make(map[uint64]relayEntry),
	}
	n.table = routing.NewTable(n.our, cfg.Table, n.onTableEvent)
	n.conn = newConnMan(n.our, n.table, n.tr, cfg.Logger)
	n.filter = filter.New(cfg.FilterTTL)
	n.cache = cache.New(cfg.CacheTTL, cfg.CacheCapacity)
	n.exec = newExecutor(cfg.QueueLen)
	n.tasks = pending.New(n.exec.post)
	n.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst)

	var seed [8]byte
	_, _ = rand.Read(seed[:])
	n.msgID.Store(binary.LittleEndian.Uint64(seed[:]))
	return n, nil
}

func (n *Node) OurAddress() routing.Address { return n.our }

func (n *Node) TableSize() int { return n.table.Size() }

// CloseGroup returns the addresses of our current close group.
func (n *Node) CloseGroup() []routing.Address {
	group := n.table.OurCloseGroup()
	out := make([]routing.Address, 0, len(group))
	for _, ni := range group {
		out = append(out, ni.Addr)
	}
	return out
}

func (n *Node) IsInGroupRange(addr routing.Address) bool {
	return n.table.IsInCloseGroup(addr)
}

func (n *Node) EstimateInGroup(sender, info routing.Address) bool {
	return n.table.EstimateInGroup(sender, info)
}

func (n *Node) ConfirmGroupMembers(a, b routing.Address) bool {
	return n.table.ConfirmGroupMembers(a, b)
}

func (n *Node) Logf(format string, args ...any) {
	if !n.cfg.Debug {
		return
	}
	if n.cfg.Logger != nil {
		n.cfg.Logger.Printf("[node %s] "+format, append([]any{n.our.Short()}, args...)...)
	}
}

func (n *Node) isRunning() bool {
	n.runningMu.Lock()
	defer n.runningMu.Unlock()
	return n.running
}

func (n *Node) nextMsgID() uint64 {
	return n.msgID.Add(1)
}

// Shutdown stops the node: outstanding tasks complete with Shutdown status,
// timers are cancelled, and no further posted work runs.
func (n *Node) Shutdown() {
	n.runningMu.Lock()
	if !n.running {
		n.runningMu.Unlock()
		return
	}
	n.running = false
	n.runningMu.Unlock()

	n.stopTimers()
	n.tasks.CancelAll(pending.Shutdown)
	n.notifyStatus(StatusShuttingDown)
	n.exec.stop()
	_ = n.tr.Close()
}

// Send routes data toward dest. With a response callback the message is
// registered as a pending task first, so a response can never beat the
// registration. Group destinations wait for a full close group of answers.
// A payload that is exactly one address wide may be sent cacheable, turning
// it into a read that intermediate caches can answer.
func (n *Node) Send(dest routing.Address, data []byte, fn pending.ResponseFunc, timeout time.Duration, kind DestKind, cacheable bool) error {
	if !n.isRunning() {
		n.fire(fn, pending.Shutdown)
		return ErrNetworkShuttingDown
	}
	if dest.IsZero() {
		n.fire(fn, pending.Rejected)
		return ErrInvalidDestination
	}
	if len(data) == 0 || len(data) > n.cfg.MaxDataSize {
		n.fire(fn, pending.Rejected)
		return ErrDataTooLarge
	}
	if timeout <= 0 {
		timeout = n.cfg.DefaultTimeout
	}

	needed := 1
	if kind == Group {
		needed = n.cfg.Table.GroupSize
	}
	var task pending.TaskID
	var msgID uint64
	if fn != nil {
		task = n.tasks.AddTask(timeout, needed, fn)
		msgID = uint64(task)
	} else {
		msgID = n.nextMsgID()
	}

	var tag proto.Tag
	var body []byte
	switch {
	case cacheable && len(data) == routing.AddressBytes:
		var key routing.Address
		copy(key[:], data)
		tag, body = proto.TagGetData, proto.GetData{Key: key}.Encode()
	case fn != nil:
		tag, body = proto.TagPutData, proto.PutData{Key: dest, Data: data}.Encode()
	default:
		tag, body = proto.TagPost, proto.Post{Data: data}.Encode()
	}

	h := proto.Header{Source: n.our, Dest: dest, MessageID: msgID}
	if err := n.sendRequest(h, tag, body, task, fn != nil); err != nil {
		if fn != nil {
			n.tasks.Cancel(task)
			n.fire(fn, pending.Rejected)
		}
		return err
	}
	return nil
}

// Reply answers a delivered GetData or PutData with data.
func (n *Node) Reply(msg DeliveredMessage, data []byte) error {
	if !n.isRunning() {
		return ErrNetworkShuttingDown
	}

	var tag proto.Tag
	var body []byte
	switch msg.Tag {
	case proto.TagGetData:
		tag, body = proto.TagGetDataResponse, proto.GetDataResponse{Key: msg.Key, Data: data}.Encode()
	case proto.TagPutData:
		tag, body = proto.TagPutDataResponse, proto.PutDataResponse{Key: msg.Key, Data: data}.Encode()
	default:
		return ErrNoReplyExpected
	}

	h := proto.Header{Source: n.our, Dest: msg.ReplyDest(), MessageID: msg.MessageID}
	frame := proto.EncodeFrame(h, tag, body)
	n.deliverOrSend(h.Dest, frame)
	return nil
}

// GetGroup resolves the close group of target as seen by its members. The
// channel yields one value: the addresses, or nil on timeout.
func (n *Node) GetGroup(target routing.Address) <-chan []routing.Address {
	ch := make(chan []routing.Address, 1)
	fn := func(status pending.Status, responses [][]byte) {
		var out []routing.Address
		if status == pending.OK && len(responses) > 0 {
			if m, err := proto.ParseFindGroupResponse(responses[0]); err == nil {
				for _, ni := range m.Group {
					out = append(out, ni.Addr)
				}
			}
		}
		ch <- out
	}

	if !n.isRunning() {
		ch <- nil
		return ch
	}
	task := n.tasks.AddTask(n.cfg.DefaultTimeout, 1, fn)
	body := proto.FindGroup{Requester: n.our, Target: target}.Encode()
	h := proto.Header{Source: n.our, Dest: target, MessageID: uint64(task)}
	if err := n.sendRequest(h, proto.TagFindGroup, body, task, true); err != nil {
		n.tasks.Cancel(task)
		ch <- nil
	}
	return ch
}

// sendRequest routes an outbound message: locally when we own the
// destination, through next hops when we have peers, or relayed over the
// bootstrap connection while the table is still empty.
func (n *Node) sendRequest(h proto.Header, tag proto.Tag, body []byte, task pending.TaskID, hasTask bool) error {
	if h.Dest == n.our {
		n.deliverOrSend(h.Dest, proto.EncodeFrame(h, tag, body))
		return nil
	}
	if n.table.Size() == 0 {
		return n.relayThroughBootstrap(h, tag, body, task, hasTask)
	}
	n.sendToward(h.Dest, proto.EncodeFrame(h, tag, body))
	return nil
}

// relayThroughBootstrap sends through the temporary bootstrap connection.
// Responses find their way back because the relay peer is named as the
// reply address and forwards them over the same connection.
func (n *Node) relayThroughBootstrap(h proto.Header, tag proto.Tag, body []byte, task pending.TaskID, hasTask bool) error {
	n.bootMu.Lock()
	peer := n.bootPeer
	n.bootMu.Unlock()
	if peer.IsZero() {
		return ErrNotJoined
	}

	h.ReplyTo = &peer
	frame := proto.EncodeFrame(h, tag, body)
	n.tr.Send(peer, frame, func(err error) {
		if err == nil {
			return
		}
		n.Logf("relay send via %s failed: %v", peer.Short(), err)
		n.exec.post(func() {
			if !n.isRunning() {
				return
			}
			if hasTask {
				n.tasks.Cancel(task)
			}
			if n.everJoined.Load() {
				n.notifyStatus(StatusPartialJoinSessionEnded)
			} else {
				n.notifyStatus(StatusAnonymousSessionEnded)
			}
		})
	})
	return nil
}

// deliverOrSend hands a frame to the local router when dest is our own
// address, otherwise to the transport toward dest.
func (n *Node) deliverOrSend(dest routing.Address, frame []byte) {
	if dest == n.our {
		n.exec.post(func() {
			if !n.isRunning() {
				return
			}
			n.handleFrame(n.our, frame)
		})
		return
	}
	n.sendToward(dest, frame)
}

// sendToward pushes frame to every next hop for dest, falling back to the
// bootstrap connection when the table knows nobody.
func (n *Node) sendToward(dest routing.Address, frame []byte) {
	targets := n.conn.GetTarget(dest)
	if len(targets) == 0 {
		n.bootMu.Lock()
		peer := n.bootPeer
		n.bootMu.Unlock()
		if !peer.IsZero() && peer != n.our && dest != n.our {
			n.tr.Send(peer, frame, n.sendDone(peer))
		}
		return
	}
	for _, t := range targets {
		if t.Addr == n.our {
			continue
		}
		n.tr.Send(t.Addr, frame, n.sendDone(t.Addr))
	}
}

func (n *Node) sendDone(peer routing.Address) func(error) {
	return func(err error) {
		if err == nil {
			return
		}
		n.Logf("send to %s failed: %v", peer.Short(), err)
		n.exec.post(func() {
			if !n.isRunning() {
				return
			}
			n.conn.DropNode(peer)
		})
	}
}

// ourInfo is this node's NodeInfo as peers should record it.
func (n *Node) ourInfo() routing.NodeInfo {
	return n.id.Info(n.cfg.Endpoint)
}

// onTableEvent runs after every table mutation, outside the table lock.
func (n *Node) onTableEvent(e routing.Event) {
	switch e.Kind {
	case routing.NodeAdded:
		n.everJoined.Store(true)
		n.notifyStatus(n.table.Size())
	case routing.NodeRemoved:
		n.notifyStatus(n.table.Size())
	case routing.CloseGroupChanged:
		if lostCloseMember(e.OldClose, e.NewClose) {
			n.noteCloseLoss()
		}
	}
}

func lostCloseMember(old, new []routing.NodeInfo) bool {
	for _, was := range old {
		found := false
		for _, is := range new {
			if is.Addr == was.Addr {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}

func (n *Node) recordRelay(msgID uint64, peer routing.Address) {
	now := time.Now()
	keep := 2 * n.cfg.DefaultTimeout

	n.relayMu.Lock()
	defer n.relayMu.Unlock()
	for id, e := range n.relays {
		if now.Sub(e.at) > keep {
			delete(n.relays, id)
		}
	}
	n.relays[msgID] = relayEntry{peer: peer, at: now}
}

func (n *Node) takeRelay(msgID uint64) (routing.Address, bool) {
	n.relayMu.Lock()
	defer n.relayMu.Unlock()
	e, ok := n.relays[msgID]
	if ok {
		delete(n.relays, msgID)
	}
	return e.peer, ok
}

func (n *Node) fire(fn pending.ResponseFunc, status pending.Status) {
	if fn == nil {
		return
	}
	n.exec.post(func() { fn(status, nil) })
}
