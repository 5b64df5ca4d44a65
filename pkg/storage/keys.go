package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// Key schema:
//
//	evt:<block:020>:<logIndex:010> → ledger.Record (JSON)
//	cur                            → next block to fetch (8-byte big endian)
//
// Block and log index are zero padded so lexicographic order is chain order.
const (
	prefixEvent = "evt:"
	keyCursor   = "cur"
)

func eventKey(pos ledger.Position) []byte {
	return []byte(fmt.Sprintf("%s%020d:%010d", prefixEvent, pos.Block, pos.LogIndex))
}

func cursorValue(block uint64) []byte {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], block)
	return v[:]
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
