package filter

import (
	"testing"
	"time"

	"github.com/GildasT/MaidSafe-Routing/internal/proto"
)

func fp(b byte) proto.Fingerprint {
	var f proto.Fingerprint
	f[0] = b
	return f
}

func TestFilterRemembers(t *testing.T) {
	f := New(50 * time.Millisecond)
	if f.Check(fp(1)) {
		t.Fatalf("fresh fingerprint reported seen")
	}
	f.Add(fp(1))
	if !f.Check(fp(1)) {
		t.Fatalf("added fingerprint not remembered")
	}
	if f.Check(fp(2)) {
		t.Fatalf("unrelated fingerprint reported seen")
	}
}

func TestFilterExpires(t *testing.T) {
	f := New(50 * time.Millisecond)
	f.Add(fp(1))
	time.Sleep(60 * time.Millisecond)
	if f.Check(fp(1)) {
		t.Fatalf("fingerprint survived past ttl")
	}
}

func TestFilterPrunesOnInsert(t *testing.T) {
	f := New(30 * time.Millisecond)
	for i := 0; i < 10; i++ {
		f.Add(fp(byte(i)))
	}
	time.Sleep(40 * time.Millisecond)
	f.Add(fp(200))
	if got := f.Len(); got != 1 {
		t.Fatalf("expected stale entries pruned, have %d", got)
	}
}
