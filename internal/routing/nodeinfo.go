package routing

import "crypto/ed25519"

// Contact is the opaque handle the transport needs to reach a peer: a
// dialable locator plus the peer's static handshake key.
type Contact struct {
	Endpoint string
	Static   []byte
}

func (c Contact) Clone() Contact {
	out := Contact{Endpoint: c.Endpoint}
	if c.Static != nil {
		out.Static = append([]byte(nil), c.Static...)
	}
	return out
}

// NodeInfo describes a known peer. It is value-like; containers hold copies.
type NodeInfo struct {
	Addr      Address
	PublicKey ed25519.PublicKey
	Contact   Contact
}

func (ni NodeInfo) Clone() NodeInfo {
	out := NodeInfo{Addr: ni.Addr, Contact: ni.Contact.Clone()}
	if ni.PublicKey != nil {
		out.PublicKey = append(ed25519.PublicKey(nil), ni.PublicKey...)
	}
	return out
}

func cloneNodes(in []NodeInfo) []NodeInfo {
	out := make([]NodeInfo, 0, len(in))
	for _, ni := range in {
		out = append(out, ni.Clone())
	}
	return out
}
