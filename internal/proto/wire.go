package proto

import (
	"encoding/binary"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) addr(a routing.Address) { w.buf = append(w.buf, a[:]...) }

func (w *writer) optAddr(a *routing.Address) {
	if a == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.addr(*a)
}

// fixed writes exactly n bytes, zero-padding or truncating b.
func (w *writer) fixed(b []byte, n int) {
	if len(b) >= n {
		w.buf = append(w.buf, b[:n]...)
		return
	}
	w.buf = append(w.buf, b...)
	for i := len(b); i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// bytes writes a u32 length prefix then b.
func (w *writer) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrShortBuffer
	}
}

func (r *reader) u8() uint8 {
	if r.err != nil || r.off+1 > len(r.buf) {
		r.fail()
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil || r.off+2 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) addr() routing.Address {
	var a routing.Address
	if r.err != nil || r.off+routing.AddressBytes > len(r.buf) {
		r.fail()
		return a
	}
	copy(a[:], r.buf[r.off:])
	r.off += routing.AddressBytes
	return a
}

func (r *reader) optAddr() *routing.Address {
	if r.u8() == 0 {
		return nil
	}
	a := r.addr()
	if r.err != nil {
		return nil
	}
	return &a
}

func (r *reader) fixed(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		r.fail()
		return nil
	}
	out := append([]byte(nil), r.buf[r.off:r.off+n]...)
	r.off += n
	return out
}

func (r *reader) bytes() []byte {
	n := int(r.u32())
	if r.err != nil || r.off+n > len(r.buf) {
		r.fail()
		return nil
	}
	out := append([]byte(nil), r.buf[r.off:r.off+n]...)
	r.off += n
	return out
}

// done returns the accumulated error, insisting the whole buffer was
// consumed.
func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}
