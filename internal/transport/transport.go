// Package transport declares the contract of the reliable-datagram layer
// the routing core rides on. The core consumes this interface; it never
// implements networking itself. Implementations must deliver frames
// in-order per peer and report lost peers asynchronously.
package transport

import "github.com/GildasT/MaidSafe-Routing/internal/routing"

// NATType mirrors what the transport learned about a peer's reachability.
type NATType int

const (
	NATUnknown NATType = iota
	NATNone
	NATFullCone
	NATSymmetric
)

// BootstrapInfo describes the temporary connection a cold node joined
// through.
type BootstrapInfo struct {
	Peer    routing.Address
	Contact routing.Contact
}

// MessageFunc delivers an inbound frame from a connected peer.
type MessageFunc func(from routing.Address, frame []byte)

// LostFunc reports a dropped peer connection.
type LostFunc func(peer routing.Address)

type Transport interface {
	// Bootstrap dials the endpoints in order and keeps the first that
	// answers. The returned connection is temporary; callbacks stay
	// registered for the transport's lifetime.
	Bootstrap(endpoints []string, onMessage MessageFunc, onLost LostFunc) (BootstrapInfo, error)

	// Add opens a persistent connection. done reports the outcome
	// asynchronously.
	Add(contact routing.Contact, done func(error))

	// Remove closes the connection to peer, if any.
	Remove(peer routing.Address)

	// Send queues frame for peer. Delivery is ordered per peer; done
	// reports a send failure asynchronously.
	Send(peer routing.Address, frame []byte, done func(error))

	// AvailableEndpoint negotiates a contact endpoint for reaching peer,
	// given the peer's hint.
	AvailableEndpoint(peer routing.Address, theirHint string) (ourHint string, nat NATType, err error)

	// Close tears every connection down.
	Close() error
}
