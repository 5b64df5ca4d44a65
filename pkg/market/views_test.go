package market

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

func TestOpenOrdersIsSetDifference(t *testing.T) {
	var orders []ledger.Order
	for id := uint64(1); id <= 20; id++ {
		orders = append(orders, buyAt(id, alice, int64(id), hour0+id))
	}
	cancels := []ledger.Cancellation{{ID: 2}, {ID: 5}, {ID: 9}}
	// id 5 is both cancelled and filled; the union still closes it
	fills := []ledger.Fill{{ID: 3, User: bob}, {ID: 5, User: bob}, {ID: 12, User: bob}}

	open := OpenOrders(orders, cancels, fills)
	got := ids(open)

	closed := map[uint64]bool{2: true, 3: true, 5: true, 9: true, 12: true}
	for id := uint64(1); id <= 20; id++ {
		inOpen := got[id]
		if inOpen == closed[id] {
			t.Errorf("id %d: open=%v closed=%v, want exactly one", id, inOpen, closed[id])
		}
	}
	if len(open) != 15 {
		t.Errorf("open = %d orders, want 15", len(open))
	}

	// independent of input order
	reversed := make([]ledger.Order, len(orders))
	for i, o := range orders {
		reversed[len(orders)-1-i] = o
	}
	revCancels := []ledger.Cancellation{cancels[2], cancels[1], cancels[0]}
	if again := ids(OpenOrders(reversed, revCancels, fills)); !reflect.DeepEqual(again, got) {
		t.Errorf("open set depends on input order: %v vs %v", again, got)
	}
}

func TestOpenOrdersKeepsFirstOfDuplicateID(t *testing.T) {
	first := buyAt(1, alice, 10, hour0)
	dup := buyAt(1, bob, 99, hour0+5)
	open := OpenOrders([]ledger.Order{first, dup}, nil, nil)
	if len(open) != 1 || open[0].Creator != alice {
		t.Errorf("open = %+v", open)
	}
}

func TestOrderBookOrdering(t *testing.T) {
	open := []ledger.Order{
		buyAt(1, alice, 10, hour0),
		sellAt(2, bob, 30, hour0+1),
		buyAt(3, alice, 25, hour0+2),
		sellAt(4, bob, 5, hour0+3),
		buyAt(5, carol, 10, hour0+4),
		// another market
		{ID: 6, Creator: alice, TokenGet: btx.Address, AmountGet: ether(1), TokenGive: usdx.Address, AmountGive: ether(1), Timestamp: hour0},
	}

	book, err := BuildOrderBook(open, pair)
	if err != nil {
		t.Fatalf("BuildOrderBook: %v", err)
	}

	if got, want := prices(book.Buy), []string{"25", "10", "10"}; !reflect.DeepEqual(got, want) {
		t.Errorf("buy prices = %v, want %v", got, want)
	}
	// equal prices keep ledger order
	if book.Buy[1].Order.ID != 1 || book.Buy[2].Order.ID != 5 {
		t.Errorf("tie order = %d, %d, want 1, 5", book.Buy[1].Order.ID, book.Buy[2].Order.ID)
	}
	for _, o := range book.Buy {
		if o.FillAction != Sell {
			t.Errorf("buy order %d fill action = %s", o.Order.ID, o.FillAction)
		}
	}
	if got, want := prices(book.Sell), []string{"30", "5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("sell prices = %v, want %v", got, want)
	}
}

// The sell side lists the most expensive ask first, not the best ask.
// This mirrors the venue's screens; flip the comparison here if asks should
// ever be shown cheapest first.
func TestOrderBookSellSideDescending(t *testing.T) {
	book, err := BuildOrderBook([]ledger.Order{
		sellAt(1, bob, 5, hour0),
		sellAt(2, bob, 7, hour0),
		sellAt(3, bob, 6, hour0),
	}, pair)
	if err != nil {
		t.Fatalf("BuildOrderBook: %v", err)
	}
	if got := prices(book.Sell); !reflect.DeepEqual(got, []string{"7", "6", "5"}) {
		t.Errorf("sell prices = %v, want most expensive first", got)
	}
}

func TestOrderBookEmptySides(t *testing.T) {
	book, err := BuildOrderBook(nil, pair)
	if err != nil {
		t.Fatalf("BuildOrderBook: %v", err)
	}
	if book.Buy == nil || book.Sell == nil || len(book.Buy)+len(book.Sell) != 0 {
		t.Errorf("book = %+v, want empty non-nil sides", book)
	}
}

func tapeFixture() (*ledger.Snapshot, []ledger.Fill) {
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),
		sellAt(2, alice, 15, hour0),
		buyAt(3, alice, 12, hour0),
	)
	// out of chronological order on purpose; 2 and 3 share a timestamp
	fills := []ledger.Fill{
		{ID: 3, User: bob, Timestamp: hour0 + 600},
		{ID: 1, User: bob, Timestamp: hour0 + 60},
		{ID: 2, User: bob, Timestamp: hour0 + 600},
	}
	return snap, fills
}

func TestTradeTapeDirection(t *testing.T) {
	snap, fills := tapeFixture()

	tape, err := BuildTradeTape(fills, snap, pair)
	if err != nil {
		t.Fatalf("BuildTradeTape: %v", err)
	}
	if tape.Len() != 3 {
		t.Fatalf("tape has %d fills", tape.Len())
	}

	var gotIDs []uint64
	var gotDirs []Direction
	for _, f := range tape.Fills {
		gotIDs = append(gotIDs, f.Fill.ID)
		gotDirs = append(gotDirs, f.Direction)
	}
	if !reflect.DeepEqual(gotIDs, []uint64{1, 2, 3}) {
		t.Errorf("chronological ids = %v", gotIDs)
	}
	if !reflect.DeepEqual(gotDirs, []Direction{Up, Up, Down}) {
		t.Errorf("directions = %v, want [up up down]", gotDirs)
	}

	desc := tape.Descending()
	if desc[0].Fill.ID != 3 || desc[0].Direction != Down || desc[2].Direction != Up {
		t.Errorf("descending view re-tagged: %+v", desc[0])
	}
	if tape.Fills[0].Fill.ID != 1 {
		t.Error("Descending modified the tape")
	}
	if desc[0].FormattedTime != "12:10:00am Jan 1" {
		t.Errorf("formatted time = %q", desc[0].FormattedTime)
	}
}

func TestTradeTapeSkipsUnknownAndForeignOrders(t *testing.T) {
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),
		ledger.Order{ID: 2, Creator: alice, TokenGet: btx.Address, AmountGet: ether(1), TokenGive: usdx.Address, AmountGive: ether(1)},
	)
	fills := []ledger.Fill{
		{ID: 1, User: bob, Timestamp: hour0},
		{ID: 2, User: bob, Timestamp: hour0},
		{ID: 42, User: bob, Timestamp: hour0},
	}
	tape, err := BuildTradeTape(fills, snap, pair)
	if err != nil {
		t.Fatalf("BuildTradeTape: %v", err)
	}
	if tape.Len() != 1 || tape.Fills[0].Fill.ID != 1 {
		t.Errorf("tape = %+v", tape.Fills)
	}
}

func TestPriceChartSingleBucket(t *testing.T) {
	_, fills := tapeFixture()
	// prices 10, 15, 8 within one hour
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),
		buyAt(2, alice, 15, hour0),
		sellAt(3, alice, 8, hour0),
	)
	tape, err := BuildTradeTape(fills, snap, pair)
	if err != nil {
		t.Fatalf("BuildTradeTape: %v", err)
	}

	chart := BuildPriceChart(tape)
	if len(chart.Candles) != 1 {
		t.Fatalf("candles = %d, want 1", len(chart.Candles))
	}
	c := chart.Candles[0]
	if !c.Open.Equal(dec(10)) || !c.High.Equal(dec(15)) || !c.Low.Equal(dec(8)) || !c.Close.Equal(dec(8)) {
		t.Errorf("candle = {%s %s %s %s}, want {10 15 8 8}", c.Open, c.High, c.Low, c.Close)
	}
	if !c.BucketStart.Equal(time.Unix(int64(hour0), 0)) {
		t.Errorf("bucket start = %s", c.BucketStart)
	}
	if !chart.LastPrice.Equal(dec(8)) || chart.Direction != "-" {
		t.Errorf("last = %s %s, want 8 -", chart.LastPrice, chart.Direction)
	}
}

func TestPriceChartHourlyBuckets(t *testing.T) {
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),
		buyAt(2, alice, 12, hour0),
		buyAt(3, alice, 11, hour0),
		buyAt(4, alice, 11, hour0),
	)
	fills := []ledger.Fill{
		{ID: 1, User: bob, Timestamp: hour0 + 10},
		{ID: 2, User: bob, Timestamp: hour0 + 3599},
		{ID: 3, User: bob, Timestamp: hour0 + 3600},
		{ID: 4, User: bob, Timestamp: hour0 + 3*3600 + 5},
	}
	tape, _ := BuildTradeTape(fills, snap, pair)
	chart := BuildPriceChart(tape)

	if len(chart.Candles) != 3 {
		t.Fatalf("candles = %d, want 3", len(chart.Candles))
	}
	wantStarts := []uint64{hour0, hour0 + 3600, hour0 + 3*3600}
	for i, c := range chart.Candles {
		if c.BucketStart.Unix() != int64(wantStarts[i]) {
			t.Errorf("candle %d starts %d, want %d", i, c.BucketStart.Unix(), wantStarts[i])
		}
	}
	if first := chart.Candles[0]; !first.Open.Equal(dec(10)) || !first.Close.Equal(dec(12)) {
		t.Errorf("first candle = %+v", first)
	}
	// equal consecutive prices count as a rise
	if !chart.LastPrice.Equal(dec(11)) || chart.Direction != "+" {
		t.Errorf("last = %s %s, want 11 +", chart.LastPrice, chart.Direction)
	}
}

func TestPriceChartDefaults(t *testing.T) {
	tests := []struct {
		name  string
		fills []ledger.Fill
		want  int
	}{
		{"no fills", nil, 0},
		{"one fill", []ledger.Fill{{ID: 1, User: bob, Timestamp: hour0}}, 1},
	}
	snap := ledger.NewSnapshot(buyAt(1, alice, 10, hour0))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tape, err := BuildTradeTape(tt.fills, snap, pair)
			if err != nil {
				t.Fatalf("BuildTradeTape: %v", err)
			}
			chart := BuildPriceChart(tape)
			if !chart.LastPrice.IsZero() || chart.Direction != "+" {
				t.Errorf("last = %s %s, want 0 +", chart.LastPrice, chart.Direction)
			}
			if chart.Candles == nil || len(chart.Candles) != tt.want {
				t.Errorf("candles = %v, want %d", chart.Candles, tt.want)
			}
		})
	}
}

func TestAccountOrders(t *testing.T) {
	open := []ledger.Order{
		buyAt(1, alice, 10, hour0),
		sellAt(2, alice, 12, hour0+100),
		buyAt(3, bob, 11, hour0+50),
		buyAt(4, alice, 9, hour0+100),
	}
	got, err := BuildAccountOrders(open, pair, alice)
	if err != nil {
		t.Fatalf("BuildAccountOrders: %v", err)
	}
	var gotIDs []uint64
	for _, o := range got {
		gotIDs = append(gotIDs, o.Order.ID)
	}
	if !reflect.DeepEqual(gotIDs, []uint64{4, 2, 1}) {
		t.Errorf("ids = %v, want newest first [4 2 1]", gotIDs)
	}
	if got[1].Side != Sell || got[1].Sign() != "-" {
		t.Errorf("order 2 side = %s sign = %s", got[1].Side, got[1].Sign())
	}
}

func TestAccountFillsSideIsRelative(t *testing.T) {
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),  // alice buys
		sellAt(2, carol, 11, hour0), // carol sells
	)
	fills := []ledger.Fill{
		{ID: 1, User: bob, Timestamp: hour0 + 10},
		{ID: 2, User: alice, Timestamp: hour0 + 20},
	}

	tests := []struct {
		account common.Address
		want    map[uint64]Side
	}{
		// creator keeps the order's side
		{alice, map[uint64]Side{1: Buy, 2: Buy}},
		// filler gets the opposite side
		{bob, map[uint64]Side{1: Sell}},
		{carol, map[uint64]Side{2: Sell}},
	}
	for _, tt := range tests {
		t.Run(tt.account.Hex(), func(t *testing.T) {
			got, err := BuildAccountFills(fills, snap, pair, tt.account)
			if err != nil {
				t.Fatalf("BuildAccountFills: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("fills = %d, want %d", len(got), len(tt.want))
			}
			for _, f := range got {
				if f.Side != tt.want[f.Fill.ID] {
					t.Errorf("fill %d side = %s, want %s", f.Fill.ID, f.Side, tt.want[f.Fill.ID])
				}
				if f.Sign() != f.Side.Sign() {
					t.Errorf("fill %d sign mismatch", f.Fill.ID)
				}
			}
			if len(got) == 2 && got[0].Fill.ID != 2 {
				t.Errorf("fills not newest first")
			}
		})
	}
}

func TestAccountEvents(t *testing.T) {
	snap := ledger.NewSnapshot(
		buyAt(1, alice, 10, hour0),
		buyAt(2, bob, 10, hour0+1),
		buyAt(3, alice, 10, hour0+2),
		ledger.Cancellation{ID: 3, Timestamp: hour0 + 3},
		ledger.Fill{ID: 2, User: alice, Timestamp: hour0 + 4},
		ledger.Fill{ID: 1, User: carol, Timestamp: hour0 + 5},
	)
	events, err := AccountEvents(snap, alice)
	if err != nil {
		t.Fatalf("AccountEvents: %v", err)
	}
	var kinds []ledger.Kind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind())
	}
	want := []ledger.Kind{
		ledger.KindOrderFilled,    // carol filled alice's order 1
		ledger.KindOrderFilled,    // alice filled order 2
		ledger.KindOrderCancelled, // alice cancelled 3
		ledger.KindOrderPlaced,
		ledger.KindOrderPlaced,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}

func TestMissingContext(t *testing.T) {
	snap, fills := tapeFixture()
	notReady := Pair{Token0: btx}

	if _, err := BuildOrderBook(snap.Orders(), notReady); !errors.Is(err, ErrMissingContext) {
		t.Errorf("order book: %v", err)
	}
	if _, err := BuildTradeTape(fills, snap, notReady); !errors.Is(err, ErrMissingContext) {
		t.Errorf("trade tape: %v", err)
	}
	if _, err := BuildAccountOrders(snap.Orders(), pair, common.Address{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("account orders: %v", err)
	}
	if _, err := BuildAccountFills(fills, snap, notReady, alice); !errors.Is(err, ErrMissingContext) {
		t.Errorf("account fills: %v", err)
	}
	if _, err := AccountEvents(snap, common.Address{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("account events: %v", err)
	}
}
