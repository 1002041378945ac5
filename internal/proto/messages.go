package proto

import (
	"crypto/ed25519"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

// Connect asks the receiver to open a persistent link back to the
// requester.
type Connect struct {
	Requester routing.NodeInfo
}

// ConnectResponse carries the receiver's own details so the requester can
// complete the link. Its body is always signed.
type ConnectResponse struct {
	Requester routing.Address
	Receiver  routing.NodeInfo
}

// FindGroup asks the close group of Target to introduce themselves.
type FindGroup struct {
	Requester routing.Address
	Target    routing.Address
}

// FindGroupResponse is a snapshot of the responder's close group, the
// responder included.
type FindGroupResponse struct {
	Requester routing.Address
	Group     []routing.NodeInfo
}

type GetData struct {
	Key routing.Address
}

type GetDataResponse struct {
	Key  routing.Address
	Data []byte
}

type PutData struct {
	Key  routing.Address
	Data []byte
}

type PutDataResponse struct {
	Key  routing.Address
	Data []byte
}

// Post is an application-opaque one-way payload.
type Post struct {
	Data []byte
}

func encodeNodeInfo(w *writer, ni routing.NodeInfo) {
	w.addr(ni.Addr)
	w.fixed(ni.PublicKey, PublicKeyBytes)
	w.u16(uint16(len(ni.Contact.Endpoint)))
	w.buf = append(w.buf, ni.Contact.Endpoint...)
	w.u16(uint16(len(ni.Contact.Static)))
	w.buf = append(w.buf, ni.Contact.Static...)
}

func decodeNodeInfo(r *reader) routing.NodeInfo {
	var ni routing.NodeInfo
	ni.Addr = r.addr()
	ni.PublicKey = ed25519.PublicKey(r.fixed(PublicKeyBytes))
	ni.Contact.Endpoint = string(r.fixed(int(r.u16())))
	ni.Contact.Static = r.fixed(int(r.u16()))
	return ni
}

func (m Connect) Encode() []byte {
	w := &writer{}
	encodeNodeInfo(w, m.Requester)
	return w.buf
}

func ParseConnect(b []byte) (Connect, error) {
	r := &reader{buf: b}
	m := Connect{Requester: decodeNodeInfo(r)}
	return m, r.done()
}

func (m ConnectResponse) Encode() []byte {
	w := &writer{}
	w.addr(m.Requester)
	encodeNodeInfo(w, m.Receiver)
	return w.buf
}

func ParseConnectResponse(b []byte) (ConnectResponse, error) {
	r := &reader{buf: b}
	var m ConnectResponse
	m.Requester = r.addr()
	m.Receiver = decodeNodeInfo(r)
	return m, r.done()
}

func (m FindGroup) Encode() []byte {
	w := &writer{}
	w.addr(m.Requester)
	w.addr(m.Target)
	return w.buf
}

func ParseFindGroup(b []byte) (FindGroup, error) {
	r := &reader{buf: b}
	var m FindGroup
	m.Requester = r.addr()
	m.Target = r.addr()
	return m, r.done()
}

func (m FindGroupResponse) Encode() []byte {
	w := &writer{}
	w.addr(m.Requester)
	w.u16(uint16(len(m.Group)))
	for _, ni := range m.Group {
		encodeNodeInfo(w, ni)
	}
	return w.buf
}

func ParseFindGroupResponse(b []byte) (FindGroupResponse, error) {
	r := &reader{buf: b}
	var m FindGroupResponse
	m.Requester = r.addr()
	n := int(r.u16())
	for i := 0; i < n && r.err == nil; i++ {
		m.Group = append(m.Group, decodeNodeInfo(r))
	}
	return m, r.done()
}

func (m GetData) Encode() []byte {
	w := &writer{}
	w.addr(m.Key)
	return w.buf
}

func ParseGetData(b []byte) (GetData, error) {
	r := &reader{buf: b}
	m := GetData{Key: r.addr()}
	return m, r.done()
}

func (m GetDataResponse) Encode() []byte {
	w := &writer{}
	w.addr(m.Key)
	w.bytes(m.Data)
	return w.buf
}

func ParseGetDataResponse(b []byte) (GetDataResponse, error) {
	r := &reader{buf: b}
	var m GetDataResponse
	m.Key = r.addr()
	m.Data = r.bytes()
	return m, r.done()
}

func (m PutData) Encode() []byte {
	w := &writer{}
	w.addr(m.Key)
	w.bytes(m.Data)
	return w.buf
}

func ParsePutData(b []byte) (PutData, error) {
	r := &reader{buf: b}
	var m PutData
	m.Key = r.addr()
	m.Data = r.bytes()
	return m, r.done()
}

func (m PutDataResponse) Encode() []byte {
	w := &writer{}
	w.addr(m.Key)
	w.bytes(m.Data)
	return w.buf
}

func ParsePutDataResponse(b []byte) (PutDataResponse, error) {
	r := &reader{buf: b}
	var m PutDataResponse
	m.Key = r.addr()
	m.Data = r.bytes()
	return m, r.done()
}

func (m Post) Encode() []byte {
	w := &writer{}
	w.bytes(m.Data)
	return w.buf
}

func ParsePost(b []byte) (Post, error) {
	r := &reader{buf: b}
	m := Post{Data: r.bytes()}
	return m, r.done()
}
