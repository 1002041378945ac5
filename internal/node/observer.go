package node

import (
	"crypto/ed25519"

	"github.com/GildasT/MaidSafe-Routing/internal/proto"
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

// DeliveredMessage is an application message that terminated at this node.
type DeliveredMessage struct {
	Source    routing.Address
	FromGroup *routing.Address
	ReplyTo   *routing.Address
	Dest      routing.Address
	MessageID uint64
	Tag       proto.Tag
	Key       routing.Address
	Data      []byte
}

// ReplyDest is where a response to this message should be routed.
func (m DeliveredMessage) ReplyDest() routing.Address {
	if m.ReplyTo != nil {
		return *m.ReplyTo
	}
	return m.Source
}

// Observer is the capability set the host application hands over at
// construction and keeps for the node's lifetime.
type Observer struct {
	// OnNetworkStatus receives table sizes (>= 0) and session conditions
	// (< 0, the Status* codes).
	OnNetworkStatus func(code int)

	// OnMessage receives application messages owned by this node's close
	// group.
	OnMessage func(msg DeliveredMessage)

	// PublicKeyOf resolves keys for peers learned outside a signed
	// introduction.
	PublicKeyOf func(addr routing.Address) (ed25519.PublicKey, bool)
}
