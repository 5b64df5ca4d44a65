package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandleInterval is the width of a price chart bucket.
const CandleInterval = time.Hour

type Candle struct {
	BucketStart time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
}

// PriceChart summarizes a tape as hourly candles plus the latest price move.
type PriceChart struct {
	LastPrice decimal.Decimal
	// Direction is "+" when LastPrice is at least the price of the fill before it.
	Direction string
	Candles   []Candle
}

// BuildPriceChart aggregates a chronological tape into hourly candles.
//
// LastPrice and the price it is compared against come from the final two fills
// of the tape, not from candles. With fewer than two fills the chart reports a
// zero LastPrice and "+".
func BuildPriceChart(t *Tape) *PriceChart {
	chart := &PriceChart{LastPrice: decimal.Zero, Direction: "+", Candles: []Candle{}}
	if t == nil {
		return chart
	}

	var cur *Candle
	for _, f := range t.Fills {
		start := f.Time.Truncate(CandleInterval)
		if cur == nil || !start.Equal(cur.BucketStart) {
			chart.Candles = append(chart.Candles, Candle{
				BucketStart: start,
				Open:        f.Price,
				High:        f.Price,
				Low:         f.Price,
				Close:       f.Price,
			})
			cur = &chart.Candles[len(chart.Candles)-1]
			continue
		}
		if f.Price.GreaterThan(cur.High) {
			cur.High = f.Price
		}
		if f.Price.LessThan(cur.Low) {
			cur.Low = f.Price
		}
		cur.Close = f.Price
	}

	last, prev, err := lastTwoPrices(t)
	if err != nil {
		return chart
	}
	chart.LastPrice = last
	if last.LessThan(prev) {
		chart.Direction = "-"
	}
	return chart
}

func lastTwoPrices(t *Tape) (last, prev decimal.Decimal, err error) {
	n := len(t.Fills)
	if n < 2 {
		return decimal.Zero, decimal.Zero, ErrEmptySeries
	}
	return t.Fills[n-1].Price, t.Fills[n-2].Price, nil
}
