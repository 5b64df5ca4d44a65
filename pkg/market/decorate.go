package market

import (
	"time"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// DecoratedOrder is an order with its pair-relative display fields.
type DecoratedOrder struct {
	Order ledger.Order
	Classification

	// FillAction is what a taker does to fill this order from the book.
	FillAction    Side
	Time          time.Time
	FormattedTime string
}

// DecoratedFill is a fill joined with the order it executed.
type DecoratedFill struct {
	Fill  ledger.Fill
	Order ledger.Order
	Classification

	// Direction is set on the trade tape only.
	Direction     Direction
	Time          time.Time
	FormattedTime string
}

func decorateOrder(o ledger.Order, p Pair) (DecoratedOrder, error) {
	c, err := Classify(o, p)
	if err != nil {
		return DecoratedOrder{}, err
	}
	t := unixUTC(o.Timestamp)
	return DecoratedOrder{
		Order:          o,
		Classification: c,
		FillAction:     c.Side.Opposite(),
		Time:           t,
		FormattedTime:  t.Format(TimeLayout),
	}, nil
}

func decorateFill(f ledger.Fill, o ledger.Order, p Pair) (DecoratedFill, error) {
	c, err := Classify(o, p)
	if err != nil {
		return DecoratedFill{}, err
	}
	t := unixUTC(f.Timestamp)
	return DecoratedFill{
		Fill:           f,
		Order:          o,
		Classification: c,
		Time:           t,
		FormattedTime:  t.Format(TimeLayout),
	}, nil
}
