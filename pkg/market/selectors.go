package market

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/memo"
)

// DefaultAccountCacheSize bounds the per-account view tables.
const DefaultAccountCacheSize = 256

type pairKey struct {
	snap *ledger.Snapshot
	pair Pair
}

type accountKey struct {
	snap    *ledger.Snapshot
	pair    Pair
	account common.Address
}

type eventsKey struct {
	snap    *ledger.Snapshot
	account common.Address
}

// Options configure a Selectors set.
type Options struct {
	Logger   *zap.SugaredLogger
	Observer memo.Observer
	// AccountCacheSize is the number of (snapshot, pair, account) views kept per derivation.
	AccountCacheSize int
}

// Selectors wraps every derivation in a memo keyed by the identity of its
// inputs: the snapshot pointer, the pair and the account. Calling twice with
// the same snapshot returns the same result value; a new snapshot recomputes
// even when its contents are equal.
//
// Snapshot and pair views hold one entry each. Account views are held in
// bounded tables since many accounts are queried against the same snapshot.
type Selectors struct {
	logger *zap.SugaredLogger

	open  *memo.Memo[*ledger.Snapshot, []ledger.Order]
	book  *memo.Memo[pairKey, *OrderBook]
	tape  *memo.Memo[pairKey, *Tape]
	chart *memo.Memo[pairKey, *PriceChart]

	accountOrders *memo.Table[accountKey, []DecoratedOrder]
	accountFills  *memo.Table[accountKey, []DecoratedFill]
	accountEvents *memo.Table[eventsKey, []ledger.Event]
}

func NewSelectors(opts Options) (*Selectors, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.AccountCacheSize <= 0 {
		opts.AccountCacheSize = DefaultAccountCacheSize
	}

	s := &Selectors{
		logger: opts.Logger,
		open:   memo.New[*ledger.Snapshot, []ledger.Order]("open_orders", opts.Observer),
		book:   memo.New[pairKey, *OrderBook]("order_book", opts.Observer),
		tape:   memo.New[pairKey, *Tape]("trade_tape", opts.Observer),
		chart:  memo.New[pairKey, *PriceChart]("price_chart", opts.Observer),
	}

	var err error
	if s.accountOrders, err = memo.NewTable[accountKey, []DecoratedOrder]("account_orders", opts.AccountCacheSize, opts.Observer); err != nil {
		return nil, err
	}
	if s.accountFills, err = memo.NewTable[accountKey, []DecoratedFill]("account_fills", opts.AccountCacheSize, opts.Observer); err != nil {
		return nil, err
	}
	if s.accountEvents, err = memo.NewTable[eventsKey, []ledger.Event]("account_events", opts.AccountCacheSize, opts.Observer); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Selectors) OpenOrders(snap *ledger.Snapshot) []ledger.Order {
	open, _ := s.open.Get(snap, func() ([]ledger.Order, error) {
		open := OpenOrders(snap.Orders(), snap.Cancellations(), snap.Fills())
		s.logger.Debugw("open_orders_derived", "version", snap.Version(), "open", len(open))
		return open, nil
	})
	return open
}

func (s *Selectors) OrderBook(snap *ledger.Snapshot, p Pair) (*OrderBook, error) {
	return s.book.Get(pairKey{snap, p}, func() (*OrderBook, error) {
		return BuildOrderBook(s.OpenOrders(snap), p)
	})
}

func (s *Selectors) TradeTape(snap *ledger.Snapshot, p Pair) (*Tape, error) {
	return s.tape.Get(pairKey{snap, p}, func() (*Tape, error) {
		return BuildTradeTape(snap.Fills(), snap, p)
	})
}

func (s *Selectors) PriceChart(snap *ledger.Snapshot, p Pair) (*PriceChart, error) {
	return s.chart.Get(pairKey{snap, p}, func() (*PriceChart, error) {
		tape, err := s.TradeTape(snap, p)
		if err != nil {
			return nil, err
		}
		return BuildPriceChart(tape), nil
	})
}

func (s *Selectors) AccountOrders(snap *ledger.Snapshot, p Pair, account common.Address) ([]DecoratedOrder, error) {
	return s.accountOrders.Get(accountKey{snap, p, account}, func() ([]DecoratedOrder, error) {
		return BuildAccountOrders(s.OpenOrders(snap), p, account)
	})
}

func (s *Selectors) AccountFills(snap *ledger.Snapshot, p Pair, account common.Address) ([]DecoratedFill, error) {
	return s.accountFills.Get(accountKey{snap, p, account}, func() ([]DecoratedFill, error) {
		return BuildAccountFills(snap.Fills(), snap, p, account)
	})
}

func (s *Selectors) AccountEvents(snap *ledger.Snapshot, account common.Address) ([]ledger.Event, error) {
	return s.accountEvents.Get(eventsKey{snap, account}, func() ([]ledger.Event, error) {
		return AccountEvents(snap, account)
	})
}
