package storage

import (
	"sort"
	"sync"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// MemoryEventStore keeps events in process memory. It backs the service when
// no database path is configured and stands in for Pebble in tests.
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[slot]ledger.Event
	next   *uint64
}

type slot struct {
	block uint64
	index uint
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[slot]ledger.Event)}
}

func (s *MemoryEventStore) SaveEvents(events []ledger.Event, next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.Pos().IsZero() {
			return ErrUnpositioned
		}
	}
	for _, ev := range events {
		pos := ev.Pos()
		s.events[slot{pos.Block, pos.LogIndex}] = ev
	}
	s.next = &next
	return nil
}

func (s *MemoryEventStore) LoadEvents() ([]ledger.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos().Less(out[j].Pos()) })
	return out, nil
}

func (s *MemoryEventStore) Cursor() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == nil {
		return 0, false, nil
	}
	return *s.next, true, nil
}

func (s *MemoryEventStore) Close() error { return nil }
