package bootstrap

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bootstrap.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func randInfo(t *testing.T) routing.NodeInfo {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return routing.NodeInfo{
		Addr:      routing.AddressOf(pub),
		PublicKey: pub,
		Contact:   routing.Contact{Endpoint: "10.0.0.1:5483", Static: []byte{1, 2, 3}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ni := randInfo(t)

	if err := s.NoteSuccess(ni); err != nil {
		t.Fatalf("note success: %v", err)
	}
	got := s.Candidates(0, 0)
	if len(got) != 1 {
		t.Fatalf("candidates = %d, want 1", len(got))
	}
	if got[0].Addr != ni.Addr {
		t.Fatalf("address lost")
	}
	if got[0].Contact.Endpoint != ni.Contact.Endpoint {
		t.Fatalf("endpoint lost")
	}
	if !bytes.Equal(got[0].PublicKey, ni.PublicKey) {
		t.Fatalf("public key lost")
	}
	if !bytes.Equal(got[0].Contact.Static, ni.Contact.Static) {
		t.Fatalf("static key lost")
	}
}

func TestCandidatesFilterByFailures(t *testing.T) {
	s := openTestStore(t)
	good, bad := randInfo(t), randInfo(t)
	if err := s.NoteSuccess(good); err != nil {
		t.Fatalf("note success: %v", err)
	}
	if err := s.NoteSuccess(bad); err != nil {
		t.Fatalf("note success: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.NoteFailure(bad.Addr); err != nil {
			t.Fatalf("note failure: %v", err)
		}
	}

	got := s.Candidates(2, 0)
	if len(got) != 1 || got[0].Addr != good.Addr {
		t.Fatalf("failure filter wrong: %d candidates", len(got))
	}

	// NoteSuccess resets the count.
	if err := s.NoteSuccess(bad); err != nil {
		t.Fatalf("note success: %v", err)
	}
	if got := s.Candidates(2, 0); len(got) != 2 {
		t.Fatalf("reset peer still filtered: %d", len(got))
	}
}

func TestCandidatesLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.NoteSuccess(randInfo(t)); err != nil {
			t.Fatalf("note success: %v", err)
		}
	}
	if got := s.Candidates(0, 3); len(got) != 3 {
		t.Fatalf("limit ignored: %d", len(got))
	}
}

func TestRewriteReplacesList(t *testing.T) {
	s := openTestStore(t)
	old := randInfo(t)
	if err := s.NoteSuccess(old); err != nil {
		t.Fatalf("note success: %v", err)
	}

	fresh := []routing.NodeInfo{randInfo(t), randInfo(t)}
	if err := s.Rewrite(fresh); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got := s.Candidates(0, 0)
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	for _, ni := range got {
		if ni.Addr == old.Addr {
			t.Fatalf("rewrite kept the old list")
		}
	}
}

func TestNoteFailureUnknownPeerIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.NoteFailure(randInfo(t).Addr); err != nil {
		t.Fatalf("note failure: %v", err)
	}
	if got := s.Candidates(0, 0); len(got) != 0 {
		t.Fatalf("phantom record created")
	}
}
