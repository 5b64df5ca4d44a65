package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// ErrUnpositioned is returned when saving an event that did not come from a chain log.
var ErrUnpositioned = errors.New("event has no chain position")

// EventStore persists decoded ledger events and the sync cursor in Pebble, so a
// restarted service rebuilds its log without refetching the chain.
type EventStore struct {
	db *pebble.DB
}

func OpenEventStore(path string) (*EventStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	return &EventStore{db: db}, nil
}

func (s *EventStore) Close() error { return s.db.Close() }

// SaveEvents writes events and advances the cursor in one synced batch.
// Saving an event already stored overwrites it with identical bytes.
func (s *EventStore) SaveEvents(events []ledger.Event, next uint64) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, ev := range events {
		pos := ev.Pos()
		if pos.IsZero() {
			return fmt.Errorf("save %s %d: %w", ev.Kind(), ev.OrderID(), ErrUnpositioned)
		}
		data, err := json.Marshal(ledger.ToRecord(ev))
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := b.Set(eventKey(pos), data, nil); err != nil {
			return fmt.Errorf("failed to stage event: %w", err)
		}
	}
	if err := b.Set([]byte(keyCursor), cursorValue(next), nil); err != nil {
		return fmt.Errorf("failed to stage cursor: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// LoadEvents returns every stored event in chain order.
func (s *EventStore) LoadEvents() ([]ledger.Event, error) {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var events []ledger.Event
	for iter.First(); iter.Valid(); iter.Next() {
		var r ledger.Record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", iter.Key(), err)
		}
		ev, err := ledger.DecodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("stored %s: %w", iter.Key(), err)
		}
		events = append(events, ev)
	}
	return events, iter.Error()
}

// Cursor returns the next block to fetch. ok is false on a fresh store.
func (s *EventStore) Cursor() (next uint64, ok bool, err error) {
	val, closer, err := s.db.Get([]byte(keyCursor))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get cursor: %w", err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, false, fmt.Errorf("corrupt cursor: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), true, nil
}
