package proto

import (
	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

// Header rides ahead of every body. Source is the node that originated the
// message; FromGroup is set when it spoke for a group. ReplyTo overrides
// Source as the reply destination for relayed (not-yet-joined) senders.
// Signature, when present, covers the encoded body only.
type Header struct {
	Source    routing.Address
	FromGroup *routing.Address
	Dest      routing.Address
	ReplyTo   *routing.Address
	MessageID uint64
	Signature []byte
}

func (h Header) Fingerprint() Fingerprint {
	return fingerprint(h.Source, h.MessageID)
}

// ReplyDest is where responses to this message go.
func (h Header) ReplyDest() routing.Address {
	if h.ReplyTo != nil {
		return *h.ReplyTo
	}
	return h.Source
}

// ReplyHeader builds the header for a response to orig, keeping the message
// id so the originator's pending task can claim it.
func ReplyHeader(orig Header, our routing.Address, signature []byte) Header {
	return Header{
		Source:    our,
		Dest:      orig.ReplyDest(),
		MessageID: orig.MessageID,
		Signature: signature,
	}
}

func (h Header) encode(w *writer) {
	w.addr(h.Source)
	w.optAddr(h.FromGroup)
	w.addr(h.Dest)
	w.optAddr(h.ReplyTo)
	w.u64(h.MessageID)
	if h.Signature == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.fixed(h.Signature, SignatureBytes)
	}
}

func decodeHeader(r *reader) Header {
	var h Header
	h.Source = r.addr()
	h.FromGroup = r.optAddr()
	h.Dest = r.addr()
	h.ReplyTo = r.optAddr()
	h.MessageID = r.u64()
	if r.u8() != 0 {
		h.Signature = r.fixed(SignatureBytes)
	}
	return h
}

// EncodeFrame lays out header || tag || body.
func EncodeFrame(h Header, tag Tag, body []byte) []byte {
	w := &writer{buf: make([]byte, 0, 128+len(body))}
	h.encode(w)
	w.u8(uint8(tag))
	w.buf = append(w.buf, body...)
	return w.buf
}

// DecodeFrame splits a frame into header, tag and the raw body bytes. The
// body is not parsed; forwarding re-sends the original frame untouched.
func DecodeFrame(frame []byte) (Header, Tag, []byte, error) {
	r := &reader{buf: frame}
	h := decodeHeader(r)
	tag := Tag(r.u8())
	if r.err != nil {
		return Header{}, 0, nil, r.err
	}
	if !tag.Valid() {
		return Header{}, 0, nil, ErrBadTag
	}
	return h, tag, frame[r.off:], nil
}
