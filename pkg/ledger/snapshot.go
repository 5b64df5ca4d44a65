package ledger

import (
	"encoding/binary"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Snapshot is an immutable view of the event log at one version.
// Slices returned by the accessors are shared; callers must not modify them.
type Snapshot struct {
	version uint64
	orders  []Order
	cancels []Cancellation
	fills   []Fill
	byID    map[uint64]int // order id -> index into orders (first occurrence)
	digest  common.Hash
}

// NewSnapshot builds a standalone snapshot at version 1 from events in the given order.
func NewSnapshot(events ...Event) *Snapshot {
	return emptySnapshot().extend(events)
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byID: make(map[uint64]int)}
}

// Version increases by one with every published snapshot of a Log.
func (s *Snapshot) Version() uint64 { return s.version }

// Digest is a Keccak-256 hash chain over every event in the snapshot, in append order.
func (s *Snapshot) Digest() common.Hash { return s.digest }

func (s *Snapshot) Orders() []Order               { return s.orders }
func (s *Snapshot) Cancellations() []Cancellation { return s.cancels }
func (s *Snapshot) Fills() []Fill                 { return s.fills }

// Len is the total number of events in the snapshot.
func (s *Snapshot) Len() int { return len(s.orders) + len(s.cancels) + len(s.fills) }

// Order looks up a placed order by id.
func (s *Snapshot) Order(id uint64) (Order, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Order{}, false
	}
	return s.orders[i], true
}

// Events returns every event, orders first, then cancellations, then fills.
func (s *Snapshot) Events() []Event {
	out := make([]Event, 0, s.Len())
	for _, o := range s.orders {
		out = append(out, o)
	}
	for _, c := range s.cancels {
		out = append(out, c)
	}
	for _, f := range s.fills {
		out = append(out, f)
	}
	return out
}

// extend returns a new snapshot with events appended. The receiver is left untouched.
func (s *Snapshot) extend(events []Event) *Snapshot {
	next := &Snapshot{
		version: s.version + 1,
		orders:  append(make([]Order, 0, len(s.orders)+len(events)), s.orders...),
		cancels: append([]Cancellation(nil), s.cancels...),
		fills:   append([]Fill(nil), s.fills...),
		byID:    maps.Clone(s.byID),
		digest:  s.digest,
	}
	for _, ev := range events {
		switch e := ev.(type) {
		case Order:
			if _, seen := next.byID[e.ID]; !seen {
				next.byID[e.ID] = len(next.orders)
			}
			next.orders = append(next.orders, e)
		case Cancellation:
			next.cancels = append(next.cancels, e)
		case Fill:
			next.fills = append(next.fills, e)
		default:
			continue
		}
		next.digest = chainDigest(next.digest, ev)
	}
	return next
}

func chainDigest(prev common.Hash, ev Event) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(prev[:])
	var buf [8]byte
	h.Write([]byte{byte(ev.Kind())})
	binary.BigEndian.PutUint64(buf[:], ev.OrderID())
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], ev.Time())
	h.Write(buf[:])
	switch e := ev.(type) {
	case Order:
		h.Write(e.Creator[:])
		h.Write(e.TokenGet[:])
		h.Write(common.BigToHash(e.AmountGet).Bytes())
		h.Write(e.TokenGive[:])
		h.Write(common.BigToHash(e.AmountGive).Bytes())
	case Fill:
		h.Write(e.User[:])
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}
