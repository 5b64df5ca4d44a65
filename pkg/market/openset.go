package market

import "github.com/uhyunpark/ledgerview/pkg/ledger"

// OpenOrders returns the orders whose id was neither cancelled nor filled, in
// input order. An id placed more than once is kept at its first occurrence.
func OpenOrders(orders []ledger.Order, cancels []ledger.Cancellation, fills []ledger.Fill) []ledger.Order {
	closed := make(map[uint64]struct{}, len(cancels)+len(fills))
	for _, c := range cancels {
		closed[c.ID] = struct{}{}
	}
	for _, f := range fills {
		closed[f.ID] = struct{}{}
	}

	open := make([]ledger.Order, 0, len(orders))
	for _, o := range orders {
		if _, ok := closed[o.ID]; ok {
			continue
		}
		closed[o.ID] = struct{}{}
		open = append(open, o)
	}
	return open
}
