package market

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

func marketEvents() []ledger.Event {
	return []ledger.Event{
		buyAt(1, alice, 10, hour0),
		sellAt(2, bob, 30, hour0+1),
		buyAt(3, alice, 25, hour0+2),
		sellAt(4, carol, 12, hour0+3),
		ledger.Cancellation{ID: 3, Timestamp: hour0 + 4},
		ledger.Fill{ID: 4, User: alice, Timestamp: hour0 + 5},
		ledger.Fill{ID: 2, User: carol, Timestamp: hour0 + 3700},
	}
}

func newTestSelectors(t *testing.T) *Selectors {
	t.Helper()
	s, err := NewSelectors(Options{})
	if err != nil {
		t.Fatalf("NewSelectors: %v", err)
	}
	return s
}

func TestSelectorsReturnCachedResultForSameSnapshot(t *testing.T) {
	s := newTestSelectors(t)
	snap := ledger.NewSnapshot(marketEvents()...)

	book1, _ := s.OrderBook(snap, pair)
	book2, _ := s.OrderBook(snap, pair)
	if book1 != book2 {
		t.Error("order book recomputed for the same snapshot")
	}
	tape1, _ := s.TradeTape(snap, pair)
	tape2, _ := s.TradeTape(snap, pair)
	if tape1 != tape2 {
		t.Error("trade tape recomputed for the same snapshot")
	}
	chart1, _ := s.PriceChart(snap, pair)
	chart2, _ := s.PriceChart(snap, pair)
	if chart1 != chart2 {
		t.Error("price chart recomputed for the same snapshot")
	}

	// a deeply equal but distinct snapshot is a new input
	same := ledger.NewSnapshot(marketEvents()...)
	book3, _ := s.OrderBook(same, pair)
	if book3 == book1 {
		t.Error("order book served from cache for a different snapshot")
	}
	chart3, _ := s.PriceChart(same, pair)
	if chart3 == chart1 {
		t.Error("price chart served from cache for a different snapshot")
	}

	// a new pair is a new input too
	other := Pair{Token0: btx, Token1: usdx}
	book4, _ := s.OrderBook(same, other)
	if book4 == book3 {
		t.Error("order book served from cache for a different pair")
	}
}

func TestSelectorsAccountViewsKeyedByAccount(t *testing.T) {
	s := newTestSelectors(t)
	snap := ledger.NewSnapshot(marketEvents()...)

	a1, _ := s.AccountFills(snap, pair, alice)
	b1, _ := s.AccountFills(snap, pair, bob)
	a2, _ := s.AccountFills(snap, pair, alice)
	if len(a1) == 0 || &a1[0] != &a2[0] {
		t.Error("account fills recomputed for the same inputs")
	}
	if len(b1) != 1 || b1[0].Fill.ID != 2 || b1[0].Side != Sell {
		t.Errorf("bob fills = %+v", b1)
	}

	o1, _ := s.AccountOrders(snap, pair, alice)
	if len(o1) != 1 || o1[0].Order.ID != 1 {
		t.Errorf("alice open orders = %+v", o1)
	}

	ev, err := s.AccountEvents(snap, carol)
	if err != nil || len(ev) != 3 {
		t.Errorf("carol events = %v, %v", ev, err)
	}
}

func TestDerivationsAreIdempotent(t *testing.T) {
	render := func() []byte {
		s := newTestSelectors(t)
		snap := ledger.NewSnapshot(marketEvents()...)
		book, _ := s.OrderBook(snap, pair)
		tape, _ := s.TradeTape(snap, pair)
		chart, _ := s.PriceChart(snap, pair)
		mine, _ := s.AccountFills(snap, pair, alice)
		out, err := json.Marshal([]interface{}{book, tape.Descending(), chart, mine})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return out
	}
	if first, second := render(), render(); !bytes.Equal(first, second) {
		t.Errorf("outputs differ:\n%s\n%s", first, second)
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(Options{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)

	m, err := r.Register(pair)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(pair); err == nil {
		t.Error("duplicate symbol accepted")
	}
	if _, err := r.Register(Pair{Token0: btx}); err == nil {
		t.Error("incomplete pair accepted")
	}
	if _, err := r.Register(Pair{Token0: btx, Token1: usdx}); err != nil {
		t.Fatalf("Register second: %v", err)
	}

	got, ok := r.Get("BTX-ETHx")
	if !ok || got != m {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := r.Get("NOPE-ETHx"); ok {
		t.Error("unknown symbol found")
	}
	list := r.List()
	if len(list) != 2 || list[0].Symbol() != "BTX-ETHx" || list[1].Symbol() != "BTX-USDx" {
		t.Errorf("List = %v", list)
	}

	snap := ledger.NewSnapshot(marketEvents()...)
	book, err := m.OrderBook(snap)
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if len(book.Buy) != 1 || len(book.Sell) != 0 {
		t.Errorf("book = %d buys, %d sells", len(book.Buy), len(book.Sell))
	}

	events, err := r.AccountEvents(snap, alice)
	if err != nil {
		t.Fatalf("AccountEvents: %v", err)
	}
	again, _ := r.AccountEvents(snap, alice)
	if len(events) == 0 || &events[0] != &again[0] {
		t.Errorf("account events not shared: %d", len(events))
	}
}

func TestRegistryAuditReportsOncePerSnapshot(t *testing.T) {
	r := newTestRegistry(t)
	var reported []ledger.Anomaly
	r.OnAnomaly(func(a ledger.Anomaly) { reported = append(reported, a) })

	events := append(marketEvents(), ledger.Cancellation{ID: 4, Timestamp: hour0 + 9})
	snap := ledger.NewSnapshot(events...)

	first := r.Audit(snap)
	r.Audit(snap)
	if len(first) != 1 || first[0].Kind != ledger.AnomalyCancelledAndFilled {
		t.Fatalf("anomalies = %v", first)
	}
	if len(reported) != 1 {
		t.Errorf("hook called %d times, want 1", len(reported))
	}

	clean := ledger.NewSnapshot(marketEvents()...)
	if got := r.Audit(clean); len(got) != 0 {
		t.Errorf("clean snapshot anomalies = %v", got)
	}
}

func TestRegistryAuditReportsEachAnomalyOnceAcrossAppends(t *testing.T) {
	r := newTestRegistry(t)
	var reported []ledger.Anomaly
	r.OnAnomaly(func(a ledger.Anomaly) { reported = append(reported, a) })

	l := ledger.NewLog(nil)
	var audited []ledger.Anomaly
	l.Subscribe(func(snap *ledger.Snapshot) { audited = r.Audit(snap) })

	l.Append(append(marketEvents(), ledger.Cancellation{ID: 4, Timestamp: hour0 + 9})...)
	for i := uint64(0); i < 3; i++ {
		l.Append(buyAt(10+i, bob, 11, hour0+20+i))
	}
	if len(audited) != 1 {
		t.Fatalf("latest audit = %v, want the one anomaly still present", audited)
	}
	if len(reported) != 1 {
		t.Fatalf("hook called %d times across 4 snapshots, want 1", len(reported))
	}

	l.Append(ledger.Cancellation{ID: 3, Timestamp: hour0 + 30})
	if len(audited) != 2 {
		t.Fatalf("latest audit = %v", audited)
	}
	if len(reported) != 2 || reported[1].Kind != ledger.AnomalyDuplicateCancel || reported[1].OrderID != 3 {
		t.Errorf("reported = %v, want the duplicate cancel added once", reported)
	}
}
