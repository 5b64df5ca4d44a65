package ledger

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type posKey struct {
	block    uint64
	logIndex uint
}

// Log is the append-only event log. Every non-empty Append publishes a new
// Snapshot; previously published snapshots are never modified.
type Log struct {
	mu     sync.Mutex
	tip    *Snapshot
	seen   map[posKey]struct{}
	subs   []func(*Snapshot)
	logger *zap.SugaredLogger
}

// NewLog creates an empty log. The initial snapshot has version 0 and no events.
func NewLog(logger *zap.SugaredLogger) *Log {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Log{
		tip:    emptySnapshot(),
		seen:   make(map[posKey]struct{}),
		logger: logger,
	}
}

// Snapshot returns the latest published snapshot.
func (l *Log) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tip
}

// Subscribe registers fn to be called with each newly published snapshot.
// Callbacks run synchronously on the appending goroutine.
func (l *Log) Subscribe(fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Append adds events and publishes the resulting snapshot.
//
// Chain events are ordered by position and deduplicated by (block, log index),
// so re-ingesting an overlapping block range is harmless. A batch containing
// any event without a position is appended as given. If nothing new remains, the current
// snapshot is returned and no one is notified.
func (l *Log) Append(events ...Event) *Snapshot {
	l.mu.Lock()

	fresh := make([]Event, 0, len(events))
	positioned := true
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if pos := ev.Pos(); !pos.IsZero() {
			k := posKey{pos.Block, pos.LogIndex}
			if _, dup := l.seen[k]; dup {
				continue
			}
			l.seen[k] = struct{}{}
		} else {
			positioned = false
		}
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		tip := l.tip
		l.mu.Unlock()
		return tip
	}
	if positioned {
		sort.SliceStable(fresh, func(i, j int) bool {
			return fresh[i].Pos().Less(fresh[j].Pos())
		})
	}

	l.tip = l.tip.extend(fresh)
	snap := l.tip
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	l.logger.Debugw("snapshot_published",
		"version", snap.Version(),
		"appended", len(fresh),
		"events", snap.Len())

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
