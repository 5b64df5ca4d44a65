package market

import (
	"sort"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// OrderIndex resolves a filled order id to the order it references.
// *ledger.Snapshot implements it.
type OrderIndex interface {
	Order(id uint64) (ledger.Order, bool)
}

// Tape is the trade history of one pair in chronological order.
type Tape struct {
	Fills []DecoratedFill
}

// BuildTradeTape joins fills to their orders, keeps those trading the pair and
// tags each with the price direction relative to the previous fill.
//
// Fills are ordered by timestamp with the order id breaking ties. The first
// fill is Up; every later one is Up when its price is at least the previous price.
// Fills referencing an unknown order are skipped.
func BuildTradeTape(fills []ledger.Fill, orders OrderIndex, p Pair) (*Tape, error) {
	if !p.Ready() {
		return nil, ErrMissingContext
	}

	out := make([]DecoratedFill, 0, len(fills))
	for _, f := range fills {
		o, ok := orders.Order(f.ID)
		if !ok || !p.Matches(o.TokenGet, o.TokenGive) {
			continue
		}
		d, err := decorateFill(f, o, p)
		if err != nil {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Fill, out[j].Fill
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})

	for i := range out {
		if i == 0 || out[i].Price.GreaterThanOrEqual(out[i-1].Price) {
			out[i].Direction = Up
		} else {
			out[i].Direction = Down
		}
	}
	return &Tape{Fills: out}, nil
}

func (t *Tape) Len() int { return len(t.Fills) }

// Descending returns the tape newest first for display. Direction tags are
// those computed in chronological order.
func (t *Tape) Descending() []DecoratedFill {
	out := make([]DecoratedFill, len(t.Fills))
	for i, f := range t.Fills {
		out[len(out)-1-i] = f
	}
	return out
}
