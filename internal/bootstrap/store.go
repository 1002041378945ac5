// Package bootstrap persists the peers a cold node may rejoin through.
package bootstrap

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/GildasT/MaidSafe-Routing/internal/routing"
)

const (
	bPeers = "bootstrap_peers"

	defaultTO = 2 * time.Second
)

// Record is one persisted bootstrap peer with its dial history.
type Record struct {
	Info        routing.NodeInfo
	Failures    int
	LastSuccess time.Time
}

// Store is a BoltDB-backed bootstrap peer list.
type Store struct {
	db *bolt.DB
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".maidsafe-routing", "bootstrap.db")
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTO})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bPeers))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NoteSuccess records that info answered a dial, resetting its failure
// count.
func (s *Store) NoteSuccess(info routing.NodeInfo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bPeers))
		rec, _ := decodeRecord(b.Get(info.Addr[:]))
		rec.Info = info.Clone()
		rec.Failures = 0
		rec.LastSuccess = time.Now()
		return b.Put(info.Addr[:], encodeRecord(rec))
	})
}

// NoteFailure bumps the failure count for addr, if known.
func (s *Store) NoteFailure(addr routing.Address) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bPeers))
		raw := b.Get(addr[:])
		if raw == nil {
			return nil
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil // corrupt entry, leave it for Rewrite to clear
		}
		rec.Failures++
		return b.Put(addr[:], encodeRecord(rec))
	})
}

// Candidates returns up to limit peers with at most maxFailures recorded
// dial failures.
func (s *Store) Candidates(maxFailures, limit int) []routing.NodeInfo {
	out := make([]routing.NodeInfo, 0, limit)
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bPeers)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			rec, err := decodeRecord(v)
			if err != nil {
				continue
			}
			if maxFailures >= 0 && rec.Failures > maxFailures {
				continue
			}
			out = append(out, rec.Info)
		}
		return nil
	})
	return out
}

// Rewrite atomically replaces the whole list, run on each successful join.
func (s *Store) Rewrite(nodes []routing.NodeInfo) error {
	now := time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bPeers)); err != nil {
			return err
		}
		b, err := tx.CreateBucket([]byte(bPeers))
		if err != nil {
			return err
		}
		for _, ni := range nodes {
			rec := Record{Info: ni.Clone(), LastSuccess: now}
			if err := b.Put(ni.Addr[:], encodeRecord(rec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Record layout: address || transport contact || public key, then the dial
// history. Integers little-endian fixed width, as on the wire.
func encodeRecord(rec Record) []byte {
	ep := []byte(rec.Info.Contact.Endpoint)
	out := make([]byte, 0, routing.AddressBytes+2+len(ep)+2+len(rec.Info.Contact.Static)+ed25519.PublicKeySize+12)
	out = append(out, rec.Info.Addr[:]...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(ep)))
	out = append(out, ep...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(rec.Info.Contact.Static)))
	out = append(out, rec.Info.Contact.Static...)

	var key [ed25519.PublicKeySize]byte
	copy(key[:], rec.Info.PublicKey)
	out = append(out, key[:]...)

	out = binary.LittleEndian.AppendUint32(out, uint32(rec.Failures))
	out = binary.LittleEndian.AppendUint64(out, uint64(rec.LastSuccess.Unix()))
	return out
}

func decodeRecord(raw []byte) (Record, error) {
	var rec Record
	if raw == nil {
		return rec, nil
	}
	short := errors.New("bootstrap: short record")

	off := 0
	if len(raw) < off+routing.AddressBytes {
		return rec, short
	}
	copy(rec.Info.Addr[:], raw[off:])
	off += routing.AddressBytes

	if len(raw) < off+2 {
		return rec, short
	}
	n := int(binary.LittleEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) < off+n {
		return rec, short
	}
	rec.Info.Contact.Endpoint = string(raw[off : off+n])
	off += n

	if len(raw) < off+2 {
		return rec, short
	}
	n = int(binary.LittleEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) < off+n {
		return rec, short
	}
	rec.Info.Contact.Static = append([]byte(nil), raw[off:off+n]...)
	off += n

	if len(raw) < off+ed25519.PublicKeySize {
		return rec, short
	}
	rec.Info.PublicKey = append(ed25519.PublicKey(nil), raw[off:off+ed25519.PublicKeySize]...)
	off += ed25519.PublicKeySize

	if len(raw) < off+12 {
		return rec, short
	}
	rec.Failures = int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	rec.LastSuccess = time.Unix(int64(binary.LittleEndian.Uint64(raw[off:])), 0)
	return rec, nil
}
