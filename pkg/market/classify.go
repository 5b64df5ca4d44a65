package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// PricePrecision is the number of decimal places prices are rounded to.
const PricePrecision = 5

// TimeLayout renders timestamps the way the trading screens show them, e.g. "3:04:05pm Jan 2".
const TimeLayout = "3:04:05pm Jan 2"

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite is the action a counterparty performs against this side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sign is the display sign: "+" for buy, "-" for sell.
func (s Side) Sign() string {
	if s == Buy {
		return "+"
	}
	return "-"
}

// Classification is the pair-relative reading of an order.
type Classification struct {
	Side        Side
	Price       decimal.Decimal // quote per base, PricePrecision places
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
}

// Classify determines the creator's side and the price of an order.
//
// The creator buys base when giving the quote token (Token1), so the quote
// amount is what they give and the base amount is what they get. Otherwise
// they sell base and the roles swap. The price is quote/base rounded half away
// from zero to PricePrecision places.
func Classify(o ledger.Order, p Pair) (Classification, error) {
	if !p.Ready() {
		return Classification{}, ErrMissingContext
	}
	if !p.Matches(o.TokenGet, o.TokenGive) {
		return Classification{}, fmt.Errorf("%w: order %d", ErrForeignPair, o.ID)
	}

	c := Classification{Side: Sell}
	if o.TokenGive == p.Token1.Address {
		c.Side = Buy
		c.QuoteAmount = p.Token1.Scale(o.AmountGive)
		c.BaseAmount = p.Token0.Scale(o.AmountGet)
	} else {
		c.QuoteAmount = p.Token1.Scale(o.AmountGet)
		c.BaseAmount = p.Token0.Scale(o.AmountGive)
	}
	if c.BaseAmount.IsZero() {
		return Classification{}, fmt.Errorf("%w: order %d has zero base amount", ledger.ErrMalformedEvent, o.ID)
	}
	c.Price = c.QuoteAmount.DivRound(c.BaseAmount, PricePrecision)
	return c, nil
}

// Sign is the display sign of the side.
func (c Classification) Sign() string { return c.Side.Sign() }

// Invert returns the classification seen from the counterparty: same price
// and amounts, opposite side.
func (c Classification) Invert() Classification {
	c.Side = c.Side.Opposite()
	return c
}

// unixUTC clamps timestamps that do not fit a Unix time, as built by hand
// rather than decoded.
func unixUTC(ts uint64) time.Time {
	if ts > ledger.MaxTimestamp {
		ts = ledger.MaxTimestamp
	}
	return time.Unix(int64(ts), 0).UTC()
}
