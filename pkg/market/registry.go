package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/memo"
)

// Market binds a pair to its own memoized selectors.
type Market struct {
	Pair      Pair
	Selectors *Selectors
}

func (m *Market) Symbol() string { return m.Pair.Symbol() }

func (m *Market) OrderBook(snap *ledger.Snapshot) (*OrderBook, error) {
	return m.Selectors.OrderBook(snap, m.Pair)
}

func (m *Market) TradeTape(snap *ledger.Snapshot) (*Tape, error) {
	return m.Selectors.TradeTape(snap, m.Pair)
}

func (m *Market) PriceChart(snap *ledger.Snapshot) (*PriceChart, error) {
	return m.Selectors.PriceChart(snap, m.Pair)
}

func (m *Market) AccountOrders(snap *ledger.Snapshot, account common.Address) ([]DecoratedOrder, error) {
	return m.Selectors.AccountOrders(snap, m.Pair, account)
}

func (m *Market) AccountFills(snap *ledger.Snapshot, account common.Address) ([]DecoratedFill, error) {
	return m.Selectors.AccountFills(snap, m.Pair, account)
}

// Registry holds the configured markets, looked up by symbol, and audits
// every snapshot once for ledger anomalies.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market
	opts    Options

	// shared serves the derivations that do not depend on a pair.
	shared    *Selectors
	audit     *memo.Memo[*ledger.Snapshot, []ledger.Anomaly]
	onAnomaly func(ledger.Anomaly)

	reportMu sync.Mutex
	reported map[ledger.Anomaly]struct{}
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	shared, err := NewSelectors(opts)
	if err != nil {
		return nil, err
	}
	return &Registry{
		markets:  make(map[string]*Market),
		opts:     opts,
		shared:   shared,
		audit:    memo.New[*ledger.Snapshot, []ledger.Anomaly]("audit", opts.Observer),
		reported: make(map[ledger.Anomaly]struct{}),
	}, nil
}

// OnAnomaly registers a hook called for each anomaly found by Audit.
// It must be set before the registry is shared.
func (r *Registry) OnAnomaly(fn func(ledger.Anomaly)) { r.onAnomaly = fn }

// Register adds a market for p. Symbols must be unique.
func (r *Registry) Register(p Pair) (*Market, error) {
	if !p.Ready() {
		return nil, fmt.Errorf("register %s: %w", p.Symbol(), ErrMissingContext)
	}
	sel, err := NewSelectors(r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sym := p.Symbol()
	if _, exists := r.markets[sym]; exists {
		return nil, fmt.Errorf("market %s already registered", sym)
	}
	m := &Market{Pair: p, Selectors: sel}
	r.markets[sym] = m
	return m, nil
}

// Get retrieves a market by symbol.
func (r *Registry) Get(symbol string) (*Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[symbol]
	return m, ok
}

// List returns all markets sorted by symbol.
func (r *Registry) List() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// AccountEvents returns the raw events touching account across every market.
func (r *Registry) AccountEvents(snap *ledger.Snapshot, account common.Address) ([]ledger.Event, error) {
	return r.shared.AccountEvents(snap, account)
}

// Audit returns the anomalies of snap. Each distinct anomaly is logged and
// passed to the OnAnomaly hook once, on the first snapshot that shows it;
// derivations are unaffected.
func (r *Registry) Audit(snap *ledger.Snapshot) []ledger.Anomaly {
	found, _ := r.audit.Get(snap, func() ([]ledger.Anomaly, error) {
		found := ledger.Audit(snap)
		for _, a := range r.unreported(found) {
			r.opts.Logger.Warnw("ledger_anomaly",
				"kind", a.Kind,
				"order_id", a.OrderID,
				"event", a.Event.String(),
				"version", snap.Version())
			if r.onAnomaly != nil {
				r.onAnomaly(a)
			}
		}
		return found, nil
	})
	return found
}

// unreported returns the anomalies not seen by an earlier audit and marks them seen.
func (r *Registry) unreported(found []ledger.Anomaly) []ledger.Anomaly {
	r.reportMu.Lock()
	defer r.reportMu.Unlock()

	var fresh []ledger.Anomaly
	for _, a := range found {
		if _, ok := r.reported[a]; ok {
			continue
		}
		r.reported[a] = struct{}{}
		fresh = append(fresh, a)
	}
	return fresh
}
