// Package identity owns the node's long-lived keys: an ed25519 signing
// keypair the address is derived from, and a static DH keypair the
// transport presents during its secured handshake.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/flynn/noise"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

type Identity struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey

	// Static is the noise DH25519 keypair the transport handshakes with.
	Static noise.DHKey

	Addr routing.Address
}

func New() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate signing key: %w", err)
	}
	static, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate static key: %w", err)
	}
	return &Identity{
		Priv:   priv,
		Pub:    pub,
		Static: static,
		Addr:   routing.AddressOf(pub),
	}, nil
}

// Contact builds the transport handle other nodes use to reach us at
// endpoint.
func (id *Identity) Contact(endpoint string) routing.Contact {
	return routing.Contact{
		Endpoint: endpoint,
		Static:   append([]byte(nil), id.Static.Public...),
	}
}

// Info is our own NodeInfo as other nodes should record it.
func (id *Identity) Info(endpoint string) routing.NodeInfo {
	return routing.NodeInfo{
		Addr:      id.Addr,
		PublicKey: append(ed25519.PublicKey(nil), id.Pub...),
		Contact:   id.Contact(endpoint),
	}
}

// Sign signs body bytes with the long-lived signing key.
func (id *Identity) Sign(body []byte) []byte {
	return ed25519.Sign(id.Priv, body)
}
