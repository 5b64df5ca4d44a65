package market

import (
	"sort"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// OrderBook is the open interest of one pair, split by side.
//
// Both sides are sorted by price descending, so Sell lists the most expensive
// ask first. Equal prices keep the order the ledger emitted them in.
type OrderBook struct {
	Buy  []DecoratedOrder
	Sell []DecoratedOrder
}

// BuildOrderBook classifies the open orders trading the pair.
func BuildOrderBook(open []ledger.Order, p Pair) (*OrderBook, error) {
	if !p.Ready() {
		return nil, ErrMissingContext
	}

	book := &OrderBook{Buy: []DecoratedOrder{}, Sell: []DecoratedOrder{}}
	for _, o := range open {
		if !p.Matches(o.TokenGet, o.TokenGive) {
			continue
		}
		d, err := decorateOrder(o, p)
		if err != nil {
			continue
		}
		if d.Side == Buy {
			book.Buy = append(book.Buy, d)
		} else {
			book.Sell = append(book.Sell, d)
		}
	}

	sortPriceDesc(book.Buy)
	sortPriceDesc(book.Sell)
	return book, nil
}

func sortPriceDesc(orders []DecoratedOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Price.GreaterThan(orders[j].Price)
	})
}
