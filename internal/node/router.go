package node

import (
	"github.com/GildasT/MaidSafe-Routing/internal/pending"
	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

// onMessage is the transport's inbound callback; frames run on the
// executor.
func (n *Node) onMessage(from routing.Address, frame []byte) {
	buf := append([]byte(nil), frame...)
	n.exec.post(func() {
		if !n.isRunning() {
			return
		}
		n.handleFrame(from, buf)
	})
}

// handleFrame is the per-frame state machine: parse, filter, cache-serve,
// forward, then terminate locally when the destination falls in our
// close-group range. Forwarding re-sends the original bytes untouched.
func (n *Node) handleFrame(from routing.Address, frame []byte) {
	if from != n.our && !n.limiter.allow(from) {
		return
	}

	h, tag, body, err := proto.DecodeFrame(frame)
	if err != nil {
		n.Logf("drop unparseable frame from %s: %v", from.Short(), err)
		return
	}

	fp := h.Fingerprint()
	if n.filter.Check(fp) {
		return
	}
	n.filter.Add(fp)

	// Data passing through is worth remembering.
	if tag == proto.TagGetDataResponse {
		if m, err := proto.ParseGetDataResponse(body); err == nil {
			n.cache.Put(m.Key, m.Data)
		}
	}

	// A read we can satisfy from cache stops here.
	if tag == proto.TagGetData {
		if m, err := proto.ParseGetData(body); err == nil {
			if v, ok := n.cache.Get(m.Key); ok {
				rbody := proto.GetDataResponse{Key: m.Key, Data: v}.Encode()
				rh := proto.ReplyHeader(h, n.our, nil)
				n.deliverOrSend(rh.Dest, proto.EncodeFrame(rh, proto.TagGetDataResponse, rbody))
				return
			}
		}
	}

	// A not-yet-joined sender named us as its reply relay; remember which
	// connection to push the response back over.
	if h.ReplyTo != nil && *h.ReplyTo == n.our && !tag.IsResponse() && from != n.our {
		n.recordRelay(h.MessageID, from)
	}

	// Forward to the next hops, our own close group included (swarm mode).
	if n.table.Size() > 0 {
		for _, t := range n.conn.GetTarget(h.Dest) {
			if t.Addr == n.our {
				continue
			}
			n.tr.Send(t.Addr, frame, n.sendDone(t.Addr))
		}
	}

	if !n.conn.AddressInCloseGroupRange(h.Dest) {
		return // not for us
	}

	// Responses we relayed a request for go back over the stored
	// connection instead of terminating here.
	if tag.IsResponse() {
		if peer, ok := n.takeRelay(h.MessageID); ok && peer != n.our {
			n.tr.Send(peer, frame, n.sendDone(peer))
			return
		}
	}

	switch tag {
	case proto.TagConnect:
		n.handleConnect(h, body)
	case proto.TagConnectResponse:
		n.handleConnectResponse(h, body)
	case proto.TagFindGroup:
		n.handleFindGroup(h, body)
	case proto.TagFindGroupResponse:
		n.handleFindGroupResponse(h, body)
	case proto.TagGetData, proto.TagPutData, proto.TagPost:
		n.deliverApplication(h, tag, body)
	case proto.TagGetDataResponse, proto.TagPutDataResponse:
		n.tasks.Respond(pending.TaskID(h.MessageID), body)
	}
}

// handleConnect answers a connection request with our own details and opens
// the link from our side.
func (n *Node) handleConnect(h proto.Header, body []byte) {
	m, err := proto.ParseConnect(body)
	if err != nil {
		n.Logf("bad connect body: %v", err)
		return
	}
	req := m.Requester
	if req.Addr == n.our || !n.conn.SuggestNodeToAdd(req.Addr) {
		return
	}

	resp := proto.ConnectResponse{Requester: req.Addr, Receiver: n.ourInfo()}
	rbody := resp.Encode()
	rh := proto.ReplyHeader(h, n.our, n.id.Sign(rbody))
	n.deliverOrSend(rh.Dest, proto.EncodeFrame(rh, proto.TagConnectResponse, rbody))

	n.conn.AddNode(req)
}

// handleConnectResponse verifies the responder's signed introduction and
// completes the link.
func (n *Node) handleConnectResponse(h proto.Header, body []byte) {
	m, err := proto.ParseConnectResponse(body)
	if err != nil {
		n.Logf("bad connect response body: %v", err)
		return
	}
	if m.Requester != n.our {
		return
	}
	recv := m.Receiver
	if !proto.VerifyBody(recv.PublicKey, body, h.Signature) {
		n.Logf("reject connect response from %s: bad signature", recv.Addr.Short())
		return
	}
	if routing.AddressOf(recv.PublicKey) != recv.Addr {
		n.Logf("reject connect response from %s: address does not match key", recv.Addr.Short())
		return
	}
	if !n.conn.SuggestNodeToAdd(recv.Addr) {
		return
	}
	n.conn.AddNode(recv)
}

// handleFindGroup replies with a snapshot of our close group, ourselves
// included; the request itself was already forwarded.
func (n *Node) handleFindGroup(h proto.Header, body []byte) {
	m, err := proto.ParseFindGroup(body)
	if err != nil {
		n.Logf("bad find group body: %v", err)
		return
	}

	group := append(n.table.OurCloseGroup(), n.ourInfo())
	resp := proto.FindGroupResponse{Requester: m.Requester, Group: group}
	rbody := resp.Encode()
	rh := proto.ReplyHeader(h, n.our, n.id.Sign(rbody))
	n.deliverOrSend(rh.Dest, proto.EncodeFrame(rh, proto.TagFindGroupResponse, rbody))
}

// handleFindGroupResponse tries to connect to every introduced node, and
// hands the body to whatever task was waiting on it.
func (n *Node) handleFindGroupResponse(h proto.Header, body []byte) {
	m, err := proto.ParseFindGroupResponse(body)
	if err != nil {
		n.Logf("bad find group response body: %v", err)
		return
	}
	for _, ni := range m.Group {
		if ni.Addr == n.our || !n.conn.SuggestNodeToAdd(ni.Addr) {
			continue
		}
		n.connectTo(ni)
	}
	n.tasks.Respond(pending.TaskID(h.MessageID), body)
}

// connectTo initiates the Connect handshake toward target.
func (n *Node) connectTo(target routing.NodeInfo) {
	body := proto.Connect{Requester: n.ourInfo()}.Encode()
	h := proto.Header{Source: n.our, Dest: target.Addr, MessageID: n.nextMsgID()}
	if err := n.sendRequest(h, proto.TagConnect, body, 0, false); err != nil {
		n.Logf("connect to %s failed: %v", target.Addr.Short(), err)
	}
}

// deliverApplication terminates an application message at this node.
func (n *Node) deliverApplication(h proto.Header, tag proto.Tag, body []byte) {
	msg := DeliveredMessage{
		Source:    h.Source,
		FromGroup: h.FromGroup,
		ReplyTo:   h.ReplyTo,
		Dest:      h.Dest,
		MessageID: h.MessageID,
		Tag:       tag,
	}
	switch tag {
	case proto.TagGetData:
		m, err := proto.ParseGetData(body)
		if err != nil {
			return
		}
		msg.Key = m.Key
	case proto.TagPutData:
		m, err := proto.ParsePutData(body)
		if err != nil {
			return
		}
		msg.Key, msg.Data = m.Key, m.Data
	case proto.TagPost:
		m, err := proto.ParsePost(body)
		if err != nil {
			return
		}
		msg.Data = m.Data
	}
	if n.cfg.Observer.OnMessage != nil {
		n.cfg.Observer.OnMessage(msg)
	}
}
