package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ExchangeABI holds the event section of the exchange contract ABI.
// Order, Cancel and Trade carry no indexed arguments, so everything lives in the log data.
const ExchangeABI = `[
  {"type":"event","name":"Order","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":false},
    {"name":"user","type":"address","indexed":false},
    {"name":"tokenGet","type":"address","indexed":false},
    {"name":"amountGet","type":"uint256","indexed":false},
    {"name":"tokenGive","type":"address","indexed":false},
    {"name":"amountGive","type":"uint256","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"Cancel","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":false},
    {"name":"user","type":"address","indexed":false},
    {"name":"tokenGet","type":"address","indexed":false},
    {"name":"amountGet","type":"uint256","indexed":false},
    {"name":"tokenGive","type":"address","indexed":false},
    {"name":"amountGive","type":"uint256","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"Trade","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":false},
    {"name":"user","type":"address","indexed":false},
    {"name":"tokenGet","type":"address","indexed":false},
    {"name":"amountGet","type":"uint256","indexed":false},
    {"name":"tokenGive","type":"address","indexed":false},
    {"name":"amountGive","type":"uint256","indexed":false},
    {"name":"creator","type":"address","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]}
]`

// orderLog mirrors the Order and Cancel event arguments.
type orderLog struct {
	Id         *big.Int       `abi:"id"`
	User       common.Address `abi:"user"`
	TokenGet   common.Address `abi:"tokenGet"`
	AmountGet  *big.Int       `abi:"amountGet"`
	TokenGive  common.Address `abi:"tokenGive"`
	AmountGive *big.Int       `abi:"amountGive"`
	Timestamp  *big.Int       `abi:"timestamp"`
}

// tradeLog mirrors the Trade event arguments.
type tradeLog struct {
	Id         *big.Int       `abi:"id"`
	User       common.Address `abi:"user"`
	TokenGet   common.Address `abi:"tokenGet"`
	AmountGet  *big.Int       `abi:"amountGet"`
	TokenGive  common.Address `abi:"tokenGive"`
	AmountGive *big.Int       `abi:"amountGive"`
	Creator    common.Address `abi:"creator"`
	Timestamp  *big.Int       `abi:"timestamp"`
}

// LogDecoder turns raw exchange contract logs into ledger events.
type LogDecoder struct {
	abi    abi.ABI
	order  common.Hash
	cancel common.Hash
	trade  common.Hash
}

// NewLogDecoder parses ExchangeABI once; the decoder is safe for concurrent use.
func NewLogDecoder() (*LogDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(ExchangeABI))
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}
	return &LogDecoder{
		abi:    parsed,
		order:  parsed.Events["Order"].ID,
		cancel: parsed.Events["Cancel"].ID,
		trade:  parsed.Events["Trade"].ID,
	}, nil
}

// Topics returns the topic filter matching any of the three exchange events.
func (d *LogDecoder) Topics() [][]common.Hash {
	return [][]common.Hash{{d.order, d.cancel, d.trade}}
}

// EventID returns the topic-0 hash for an ABI event name ("Order", "Cancel", "Trade").
func (d *LogDecoder) EventID(name string) (common.Hash, bool) {
	ev, ok := d.abi.Events[name]
	return ev.ID, ok
}

// Decode normalizes one log. Logs of other events return ErrUnknownEvent.
func (d *LogDecoder) Decode(lg types.Log) (Event, error) {
	if len(lg.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", ErrUnknownEvent)
	}
	pos := Position{Block: lg.BlockNumber, LogIndex: lg.Index, TxHash: lg.TxHash}

	switch lg.Topics[0] {
	case d.order:
		var raw orderLog
		if err := d.abi.UnpackIntoInterface(&raw, "Order", lg.Data); err != nil {
			return nil, fmt.Errorf("%w: unpack Order: %v", ErrMalformedEvent, err)
		}
		id, err := toUint64("id", raw.Id)
		if err != nil {
			return nil, err
		}
		ts, err := toTimestamp(raw.Timestamp)
		if err != nil {
			return nil, err
		}
		o := Order{
			ID:         id,
			Creator:    raw.User,
			TokenGet:   raw.TokenGet,
			AmountGet:  raw.AmountGet,
			TokenGive:  raw.TokenGive,
			AmountGive: raw.AmountGive,
			Timestamp:  ts,
			Position:   pos,
		}
		if err := o.validate(); err != nil {
			return nil, err
		}
		return o, nil

	case d.cancel:
		var raw orderLog
		if err := d.abi.UnpackIntoInterface(&raw, "Cancel", lg.Data); err != nil {
			return nil, fmt.Errorf("%w: unpack Cancel: %v", ErrMalformedEvent, err)
		}
		id, err := toUint64("id", raw.Id)
		if err != nil {
			return nil, err
		}
		ts, err := toTimestamp(raw.Timestamp)
		if err != nil {
			return nil, err
		}
		return Cancellation{ID: id, Timestamp: ts, Position: pos}, nil

	case d.trade:
		var raw tradeLog
		if err := d.abi.UnpackIntoInterface(&raw, "Trade", lg.Data); err != nil {
			return nil, fmt.Errorf("%w: unpack Trade: %v", ErrMalformedEvent, err)
		}
		id, err := toUint64("id", raw.Id)
		if err != nil {
			return nil, err
		}
		ts, err := toTimestamp(raw.Timestamp)
		if err != nil {
			return nil, err
		}
		f := Fill{ID: id, User: raw.User, Timestamp: ts, Position: pos}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return f, nil
	}

	return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, lg.Topics[0].Hex())
}
