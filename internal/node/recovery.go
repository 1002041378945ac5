package node

import (
	"fmt"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/pending"
	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

// Join bootstraps into the network through the given endpoints, falling
// back to the persisted bootstrap list when none are given. On success the
// node starts looking for its close group and keeps doing so until the
// table is healthy.
func (n *Node) Join(endpoints []string) error {
	if !n.isRunning() {
		return ErrNetworkShuttingDown
	}

	// A rejoin abandons the previous bootstrap connection.
	n.bootMu.Lock()
	old := n.bootPeer
	n.bootPeer = routing.Address{}
	n.bootMu.Unlock()
	if !old.IsZero() {
		n.tr.Remove(old)
	}

	var fromStore []routing.NodeInfo
	if len(endpoints) == 0 && n.cfg.Store != nil {
		fromStore = n.cfg.Store.Candidates(2, 8)
		for _, ni := range fromStore {
			if ni.Contact.Endpoint != "" {
				endpoints = append(endpoints, ni.Contact.Endpoint)
			}
		}
	}
	if len(endpoints) == 0 {
		n.notifyStatus(StatusNotJoined)
		return ErrNotJoined
	}

	info, err := n.tr.Bootstrap(endpoints, n.onMessage, n.onLost)
	if err != nil {
		for _, ni := range fromStore {
			_ = n.cfg.Store.NoteFailure(ni.Addr)
		}
		n.notifyStatus(StatusNotJoined)
		return fmt.Errorf("bootstrap: %w", err)
	}

	n.bootMu.Lock()
	n.bootPeer = info.Peer
	n.bootMu.Unlock()

	if n.cfg.Store != nil {
		_ = n.cfg.Store.NoteSuccess(routing.NodeInfo{Addr: info.Peer, Contact: info.Contact})
	}
	n.Logf("bootstrapped via %s", info.Peer.Short())

	n.exec.post(func() {
		if !n.isRunning() {
			return
		}
		n.findClosestNode(0)
	})
	return nil
}

// findClosestNode is the setup loop: keep asking for our close group until
// the first peer lands in the table, then hand over to the steady-state
// recovery timer. Too many dry rounds force a rebootstrap.
func (n *Node) findClosestNode(attempts int) {
	if !n.isRunning() {
		return
	}
	if attempts > 0 {
		if n.table.Size() > 0 {
			n.persistBootstrapList()
			n.scheduleRecovery(n.cfg.FindNodeInterval)
			return
		}
		if attempts >= n.cfg.MaxFindFailures {
			n.Logf("no close node found after %d attempts, rebootstrapping", attempts)
			n.scheduleRebootstrap()
			return
		}
	}

	n.sendFindGroup()

	n.recoveryMu.Lock()
	if n.setupTimer != nil {
		n.setupTimer.Stop()
	}
	n.setupTimer = time.AfterFunc(n.cfg.RecoveryLag, func() {
		n.exec.post(func() { n.findClosestNode(attempts + 1) })
	})
	n.recoveryMu.Unlock()
}

// sendFindGroup probes for our close group: relayed over the bootstrap
// connection while the table is empty, flooded to the current close group
// otherwise.
func (n *Node) sendFindGroup() {
	body := proto.FindGroup{Requester: n.our, Target: n.our}.Encode()
	h := proto.Header{Source: n.our, Dest: n.our, MessageID: n.nextMsgID()}

	if n.table.Size() == 0 {
		if err := n.relayThroughBootstrap(h, proto.TagFindGroup, body, 0, false); err != nil {
			n.Logf("find group: %v", err)
		}
		return
	}

	frame := proto.EncodeFrame(h, proto.TagFindGroup, body)
	for _, t := range n.table.OurCloseGroup() {
		n.tr.Send(t.Addr, frame, n.sendDone(t.Addr))
	}
}

// recoveryTick runs every FindNodeInterval once joined. An empty table
// schedules a rebootstrap; an under-populated table or a recent close-group
// loss triggers another find-group round.
func (n *Node) recoveryTick() {
	if !n.isRunning() {
		return
	}

	size := n.table.Size()
	if size == 0 {
		n.scheduleRebootstrap()
		return
	}

	n.recoveryMu.Lock()
	closeLoss := n.closeLoss
	n.closeLoss = false
	grew := size > n.lastSize
	n.lastSize = size
	n.recoveryMu.Unlock()

	if size < n.cfg.Table.CloseSize || closeLoss {
		n.recoveryMu.Lock()
		if grew {
			n.findFailures = 0
		} else {
			n.findFailures++
		}
		failures := n.findFailures
		n.recoveryMu.Unlock()

		if failures >= n.cfg.MaxFindFailures {
			n.recoveryMu.Lock()
			n.findFailures = 0
			n.recoveryMu.Unlock()
			n.scheduleRebootstrap()
			return
		}
		n.sendFindGroup()
	} else {
		n.recoveryMu.Lock()
		n.findFailures = 0
		n.recoveryMu.Unlock()
	}

	n.scheduleRecovery(n.cfg.FindNodeInterval)
}

func (n *Node) scheduleRecovery(d time.Duration) {
	n.recoveryMu.Lock()
	defer n.recoveryMu.Unlock()
	if n.recoveryTimer != nil {
		n.recoveryTimer.Stop()
	}
	n.recoveryTimer = time.AfterFunc(d, func() {
		n.exec.post(n.recoveryTick)
	})
}

func (n *Node) scheduleRebootstrap() {
	n.recoveryMu.Lock()
	defer n.recoveryMu.Unlock()
	if n.rebootTimer != nil {
		n.rebootTimer.Stop()
	}
	n.rebootTimer = time.AfterFunc(n.cfg.RebootstrapLag, func() {
		if !n.isRunning() {
			return
		}
		n.Logf("rebootstrapping")
		_ = n.Join(nil)
	})
}

// noteCloseLoss records that a close-group member disappeared and pulls the
// next recovery check forward.
func (n *Node) noteCloseLoss() {
	n.recoveryMu.Lock()
	n.closeLoss = true
	n.recoveryMu.Unlock()
	if n.everJoined.Load() {
		n.scheduleRecovery(n.cfg.RecoveryLag)
	}
}

// onLost is the transport's report of a dead connection.
func (n *Node) onLost(peer routing.Address) {
	n.exec.post(func() {
		if !n.isRunning() {
			return
		}
		n.handleLost(peer)
	})
}

func (n *Node) handleLost(peer routing.Address) {
	wasClose := n.table.IsCloseMember(peer)
	dropped := n.conn.LostNetworkConnection(peer)
	if dropped != nil {
		n.Logf("lost connection with %s", peer.Short())
	}

	n.bootMu.Lock()
	isBoot := peer == n.bootPeer
	if isBoot {
		n.bootPeer = routing.Address{}
	}
	n.bootMu.Unlock()

	if isBoot && n.table.Size() == 0 {
		// The relay we depended on is gone; nothing outstanding can
		// complete.
		n.tasks.CancelAll(pending.SessionEnded)
		if n.everJoined.Load() {
			n.notifyStatus(StatusPartialJoinSessionEnded)
		} else {
			n.notifyStatus(StatusAnonymousSessionEnded)
		}
		n.scheduleRebootstrap()
		return
	}

	if dropped != nil && wasClose {
		n.noteCloseLoss()
	}
}

func (n *Node) persistBootstrapList() {
	if n.cfg.Store == nil {
		return
	}
	nodes := n.table.ClosestNodes(n.our, n.cfg.Table.CloseSize, false)
	if err := n.cfg.Store.Rewrite(nodes); err != nil {
		n.Logf("persist bootstrap list: %v", err)
	}
}

func (n *Node) stopTimers() {
	n.recoveryMu.Lock()
	defer n.recoveryMu.Unlock()
	for _, t := range []*time.Timer{n.setupTimer, n.recoveryTimer, n.rebootTimer} {
		if t != nil {
			t.Stop()
		}
	}
}
