package market

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

// BuildAccountOrders returns the account's open orders in the pair, newest first.
func BuildAccountOrders(open []ledger.Order, p Pair, account common.Address) ([]DecoratedOrder, error) {
	if !p.Ready() || account == (common.Address{}) {
		return nil, ErrMissingContext
	}

	out := []DecoratedOrder{}
	for _, o := range open {
		if o.Creator != account || !p.Matches(o.TokenGet, o.TokenGive) {
			continue
		}
		d, err := decorateOrder(o, p)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Order.Timestamp, out[i].Order.ID, out[j].Order.Timestamp, out[j].Order.ID)
	})
	return out, nil
}

// BuildAccountFills returns the pair's fills the account took part in, newest
// first. Side is relative to the account: a fill of its own order keeps the
// creator's side, a fill it executed against someone else's order is inverted.
func BuildAccountFills(fills []ledger.Fill, orders OrderIndex, p Pair, account common.Address) ([]DecoratedFill, error) {
	if !p.Ready() || account == (common.Address{}) {
		return nil, ErrMissingContext
	}

	out := []DecoratedFill{}
	for _, f := range fills {
		o, ok := orders.Order(f.ID)
		if !ok || (o.Creator != account && f.User != account) || !p.Matches(o.TokenGet, o.TokenGive) {
			continue
		}
		d, err := decorateFill(f, o, p)
		if err != nil {
			continue
		}
		if o.Creator != account {
			d.Classification = d.Classification.Invert()
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Fill.Timestamp, out[i].Fill.ID, out[j].Fill.Timestamp, out[j].Fill.ID)
	})
	return out, nil
}

// AccountEvents returns every raw event touching the account, newest first:
// orders it created, cancellations of those orders and fills where it is
// either side. It does not depend on a pair.
func AccountEvents(s *ledger.Snapshot, account common.Address) ([]ledger.Event, error) {
	if account == (common.Address{}) {
		return nil, ErrMissingContext
	}

	out := []ledger.Event{}
	for _, o := range s.Orders() {
		if o.Creator == account {
			out = append(out, o)
		}
	}
	for _, c := range s.Cancellations() {
		if o, ok := s.Order(c.ID); ok && o.Creator == account {
			out = append(out, c)
		}
	}
	for _, f := range s.Fills() {
		if f.User == account {
			out = append(out, f)
			continue
		}
		if o, ok := s.Order(f.ID); ok && o.Creator == account {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Time(), out[i].OrderID(), out[j].Time(), out[j].OrderID())
	})
	return out, nil
}

func newer(ts1, id1, ts2, id2 uint64) bool {
	if ts1 != ts2 {
		return ts1 > ts2
	}
	return id1 > id2
}
