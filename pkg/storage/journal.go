package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// Journal receives every batch of events appended to the log.
type Journal interface {
	Append(events []ledger.Event) error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal                   { return &NopJournal{} }
func (j *NopJournal) Append(_ []ledger.Event) error { return nil }

// FileJournal appends events as JSON lines of ledger.Record. The file can be
// fed back to the replay tool.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Append(events []ledger.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	enc := json.NewEncoder(j.f)
	for _, ev := range events {
		if err := enc.Encode(ledger.ToRecord(ev)); err != nil {
			return fmt.Errorf("journal %s %d: %w", ev.Kind(), ev.OrderID(), err)
		}
	}
	return nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
