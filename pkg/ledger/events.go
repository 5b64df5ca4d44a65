package ledger

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind discriminates the three event shapes emitted by the exchange contract.
type Kind uint8

const (
	KindOrderPlaced Kind = iota + 1
	KindOrderCancelled
	KindOrderFilled
)

func (k Kind) String() string {
	switch k {
	case KindOrderPlaced:
		return "OrderPlaced"
	case KindOrderCancelled:
		return "OrderCancelled"
	case KindOrderFilled:
		return "OrderFilled"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "OrderPlaced":
		return KindOrderPlaced, nil
	case "OrderCancelled":
		return KindOrderCancelled, nil
	case "OrderFilled":
		return KindOrderFilled, nil
	}
	return 0, fmt.Errorf("%w: kind %q", ErrUnknownEvent, s)
}

var (
	// ErrUnknownEvent is returned for logs or records that are not one of the three exchange events.
	ErrUnknownEvent = errors.New("unknown ledger event")

	// ErrMalformedEvent is returned when an event is recognised but its fields are unusable.
	ErrMalformedEvent = errors.New("malformed ledger event")
)

// Position locates an event in the chain.
// Events that did not come from a chain log (fixtures, imports) have the zero Position.
type Position struct {
	Block    uint64      `json:"block"`
	LogIndex uint        `json:"logIndex"`
	TxHash   common.Hash `json:"txHash"`
}

func (p Position) IsZero() bool { return p == Position{} }

// Less orders positions by block, then log index.
func (p Position) Less(q Position) bool {
	if p.Block != q.Block {
		return p.Block < q.Block
	}
	return p.LogIndex < q.LogIndex
}

// Event is the decoded form of one ledger log entry: an Order, a Cancellation or a Fill.
type Event interface {
	Kind() Kind
	OrderID() uint64
	Time() uint64
	Pos() Position
}

// Order is an order placed on the exchange. Amounts are smallest-unit integers.
type Order struct {
	ID         uint64
	Creator    common.Address
	TokenGet   common.Address
	AmountGet  *big.Int
	TokenGive  common.Address
	AmountGive *big.Int
	Timestamp  uint64
	Position   Position
}

func (o Order) Kind() Kind      { return KindOrderPlaced }
func (o Order) OrderID() uint64 { return o.ID }
func (o Order) Time() uint64    { return o.Timestamp }
func (o Order) Pos() Position   { return o.Position }

// Cancellation references an order that its creator withdrew.
type Cancellation struct {
	ID        uint64
	Timestamp uint64
	Position  Position
}

func (c Cancellation) Kind() Kind      { return KindOrderCancelled }
func (c Cancellation) OrderID() uint64 { return c.ID }
func (c Cancellation) Time() uint64    { return c.Timestamp }
func (c Cancellation) Pos() Position   { return c.Position }

// Fill references an order that User executed against.
type Fill struct {
	ID        uint64
	User      common.Address
	Timestamp uint64
	Position  Position
}

func (f Fill) Kind() Kind      { return KindOrderFilled }
func (f Fill) OrderID() uint64 { return f.ID }
func (f Fill) Time() uint64    { return f.Timestamp }
func (f Fill) Pos() Position   { return f.Position }

var (
	_ Event = Order{}
	_ Event = Cancellation{}
	_ Event = Fill{}
)

func (o Order) validate() error {
	if o.Creator == (common.Address{}) {
		return fmt.Errorf("%w: order %d has no creator", ErrMalformedEvent, o.ID)
	}
	if o.TokenGet == (common.Address{}) || o.TokenGive == (common.Address{}) {
		return fmt.Errorf("%w: order %d has no token", ErrMalformedEvent, o.ID)
	}
	if o.AmountGet == nil || o.AmountGet.Sign() <= 0 {
		return fmt.Errorf("%w: order %d amountGet must be positive", ErrMalformedEvent, o.ID)
	}
	if o.AmountGive == nil || o.AmountGive.Sign() <= 0 {
		return fmt.Errorf("%w: order %d amountGive must be positive", ErrMalformedEvent, o.ID)
	}
	return nil
}

func (f Fill) validate() error {
	if f.User == (common.Address{}) {
		return fmt.Errorf("%w: fill %d has no user", ErrMalformedEvent, f.ID)
	}
	return nil
}

// MaxTimestamp is the largest timestamp, in Unix seconds, accepted from the ledger.
const MaxTimestamp = math.MaxInt64

func toTimestamp(v *big.Int) (uint64, error) {
	ts, err := toUint64("timestamp", v)
	if err != nil {
		return 0, err
	}
	if ts > MaxTimestamp {
		return 0, fmt.Errorf("%w: timestamp %d out of range", ErrMalformedEvent, ts)
	}
	return ts, nil
}

// toUint64 narrows a uint256 ledger value; ids and timestamps never legitimately exceed 64 bits.
func toUint64(field string, v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s %v out of range", ErrMalformedEvent, field, v)
	}
	return v.Uint64(), nil
}
