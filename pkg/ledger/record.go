package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Record is the JSON shape of one ledger event, discriminated by Kind.
// It is the import format for event-log files and the value format of the event store.
// Numeric fields accept JSON numbers or decimal strings, so uint256 amounts survive intact.
type Record struct {
	Kind       string          `json:"kind"`
	ID         json.Number     `json:"id"`
	Creator    *common.Address `json:"creator,omitempty"`
	TokenGet   *common.Address `json:"tokenGet,omitempty"`
	AmountGet  json.Number     `json:"amountGet,omitempty"`
	TokenGive  *common.Address `json:"tokenGive,omitempty"`
	AmountGive json.Number     `json:"amountGive,omitempty"`
	User       *common.Address `json:"user,omitempty"`
	Timestamp  json.Number     `json:"timestamp"`
	Position   *Position       `json:"position,omitempty"`
}

// DecodeRecord normalizes a Record into an Order, Cancellation or Fill.
func DecodeRecord(r Record) (Event, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	id, err := parseUint("id", r.ID)
	if err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return nil, err
	}
	var pos Position
	if r.Position != nil {
		pos = *r.Position
	}

	switch kind {
	case KindOrderPlaced:
		get, err := parseAmount("amountGet", r.AmountGet)
		if err != nil {
			return nil, err
		}
		give, err := parseAmount("amountGive", r.AmountGive)
		if err != nil {
			return nil, err
		}
		o := Order{
			ID:         id,
			Creator:    deref(r.Creator),
			TokenGet:   deref(r.TokenGet),
			AmountGet:  get,
			TokenGive:  deref(r.TokenGive),
			AmountGive: give,
			Timestamp:  ts,
			Position:   pos,
		}
		if err := o.validate(); err != nil {
			return nil, err
		}
		return o, nil
	case KindOrderCancelled:
		return Cancellation{ID: id, Timestamp: ts, Position: pos}, nil
	default:
		f := Fill{ID: id, User: deref(r.User), Timestamp: ts, Position: pos}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	}
}

// DecodeRecords decodes a whole event-log file body: a JSON array of records.
func DecodeRecords(data []byte) ([]Event, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	events := make([]Event, 0, len(records))
	for i, r := range records {
		ev, err := DecodeRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReadRecords decodes an event-log stream: either one JSON array of records or
// one record per line, as written by the event journal.
func ReadRecords(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			break
		}
		br.ReadByte()
	}
	if b, _ := br.Peek(1); b[0] == '[' {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		return DecodeRecords(data)
	}

	var events []Event
	dec := json.NewDecoder(br)
	for i := 0; ; i++ {
		var rec Record
		if err := dec.Decode(&rec); errors.Is(err, io.EOF) {
			return events, nil
		} else if err != nil {
			return nil, fmt.Errorf("record %d: %w: %v", i, ErrMalformedEvent, err)
		}
		ev, err := DecodeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		events = append(events, ev)
	}
}

// ToRecord is the inverse of DecodeRecord.
func ToRecord(ev Event) Record {
	r := Record{
		Kind:      ev.Kind().String(),
		ID:        json.Number(strconv.FormatUint(ev.OrderID(), 10)),
		Timestamp: json.Number(strconv.FormatUint(ev.Time(), 10)),
	}
	if pos := ev.Pos(); !pos.IsZero() {
		r.Position = &pos
	}
	switch e := ev.(type) {
	case Order:
		r.Creator = &e.Creator
		r.TokenGet = &e.TokenGet
		r.AmountGet = json.Number(e.AmountGet.String())
		r.TokenGive = &e.TokenGive
		r.AmountGive = json.Number(e.AmountGive.String())
	case Fill:
		r.User = &e.User
	}
	return r
}

func parseUint(field string, n json.Number) (uint64, error) {
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedEvent, field, n)
	}
	return v, nil
}

func parseTimestamp(n json.Number) (uint64, error) {
	v, err := parseUint("timestamp", n)
	if err != nil {
		return 0, err
	}
	if v > MaxTimestamp {
		return 0, fmt.Errorf("%w: timestamp %d out of range", ErrMalformedEvent, v)
	}
	return v, nil
}

func parseAmount(field string, n json.Number) (*big.Int, error) {
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrMalformedEvent, field, n)
	}
	return v, nil
}

func deref(a *common.Address) common.Address {
	if a == nil {
		return common.Address{}
	}
	return *a
}
