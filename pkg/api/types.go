package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/market"
)

// API response types for REST endpoints and WebSocket messages.
// Amounts and prices are JSON numbers carried as decimal strings so no
// precision is lost to float64.

// ==============================
// REST Response Types
// ==============================

// MarketInfo describes a configured pair.
type MarketInfo struct {
	Symbol        string `json:"symbol"`     // e.g., "BTX-ETHx"
	BaseAsset     string `json:"baseAsset"`  // token0
	QuoteAsset    string `json:"quoteAsset"` // token1, the pricing token
	BaseToken     string `json:"baseToken"`
	QuoteToken    string `json:"quoteToken"`
	BaseDecimals  int32  `json:"baseDecimals"`
	QuoteDecimals int32  `json:"quoteDecimals"`
}

// OrderInfo is a decorated open order.
type OrderInfo struct {
	ID            uint64      `json:"id"`
	Creator       string      `json:"creator"`
	Side          market.Side `json:"side"` // "buy" or "sell"
	FillAction    market.Side `json:"fillAction,omitempty"`
	Price         json.Number `json:"price"`
	Amount        json.Number `json:"amount"`    // base token
	Total         json.Number `json:"total"`     // quote token
	Timestamp     int64       `json:"timestamp"` // Unix milliseconds
	FormattedTime string      `json:"formattedTime"`
}

// OrderbookSnapshot lists both sides by price, highest first.
type OrderbookSnapshot struct {
	Symbol  string      `json:"symbol"`
	Version uint64      `json:"version"`
	Buy     []OrderInfo `json:"buy"`
	Sell    []OrderInfo `json:"sell"`
}

// TradeInfo is one fill of the tape.
type TradeInfo struct {
	ID            uint64           `json:"id"`
	Creator       string           `json:"creator"`
	User          string           `json:"user"`
	Side          market.Side      `json:"side"`
	Direction     market.Direction `json:"direction,omitempty"` // "up" or "down"; empty for account fills
	Price         json.Number      `json:"price"`
	Amount        json.Number      `json:"amount"`
	Total         json.Number      `json:"total"`
	Timestamp     int64            `json:"timestamp"`
	FormattedTime string           `json:"formattedTime"`
}

// CandleInfo is one hourly bucket in the chart library layout: x is the bucket
// start in Unix milliseconds, y is [open, high, low, close].
type CandleInfo struct {
	X int64          `json:"x"`
	Y [4]json.Number `json:"y"`
}

type PriceChartInfo struct {
	Symbol    string       `json:"symbol"`
	Version   uint64       `json:"version"`
	LastPrice json.Number  `json:"lastPrice"`
	Direction string       `json:"lastPriceChange"` // "+" or "-"
	Candles   []CandleInfo `json:"candles"`
}

// AnomalyInfo is a ledger inconsistency reported on the status endpoint.
type AnomalyInfo struct {
	Kind    ledger.AnomalyKind `json:"kind"`
	OrderID uint64             `json:"orderId"`
	Event   string             `json:"event"`
}

// LedgerStatus summarises the latest snapshot.
type LedgerStatus struct {
	Version       uint64        `json:"version"`
	Digest        string        `json:"digest"`
	Events        int           `json:"events"`
	Orders        int           `json:"orders"`
	Cancellations int           `json:"cancellations"`
	Fills         int           `json:"fills"`
	Anomalies     []AnomalyInfo `json:"anomalies"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:BTX-ETHx", "trades:BTX-ETHx", "chart:BTX-ETHx"]
}

// ViewUpdate carries a recomputed view to the subscribers of one channel.
type ViewUpdate struct {
	Type    string      `json:"type"` // "orderbook", "trades" or "chart"
	Symbol  string      `json:"symbol"`
	Version uint64      `json:"version"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// Conversions
// ==============================

// The To* conversions render market views as the DTOs above. Offline tools use
// them too so every output has the same shape.

func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func price(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(market.PricePrecision))
}

func ToMarketInfo(p market.Pair) MarketInfo {
	return MarketInfo{
		Symbol:        p.Symbol(),
		BaseAsset:     p.Token0.Symbol,
		QuoteAsset:    p.Token1.Symbol,
		BaseToken:     p.Token0.Address.Hex(),
		QuoteToken:    p.Token1.Address.Hex(),
		BaseDecimals:  p.Token0.Decimals,
		QuoteDecimals: p.Token1.Decimals,
	}
}

func ToOrderInfos(orders []market.DecoratedOrder) []OrderInfo {
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = OrderInfo{
			ID:            o.Order.ID,
			Creator:       o.Order.Creator.Hex(),
			Side:          o.Side,
			FillAction:    o.FillAction,
			Price:         price(o.Price),
			Amount:        number(o.BaseAmount),
			Total:         number(o.QuoteAmount),
			Timestamp:     o.Time.UnixMilli(),
			FormattedTime: o.FormattedTime,
		}
	}
	return out
}

func ToTradeInfos(fills []market.DecoratedFill) []TradeInfo {
	out := make([]TradeInfo, len(fills))
	for i, f := range fills {
		out[i] = TradeInfo{
			ID:            f.Fill.ID,
			Creator:       f.Order.Creator.Hex(),
			User:          f.Fill.User.Hex(),
			Side:          f.Side,
			Direction:     f.Direction,
			Price:         price(f.Price),
			Amount:        number(f.BaseAmount),
			Total:         number(f.QuoteAmount),
			Timestamp:     f.Time.UnixMilli(),
			FormattedTime: f.FormattedTime,
		}
	}
	return out
}

func ToOrderbookSnapshot(symbol string, version uint64, book *market.OrderBook) OrderbookSnapshot {
	return OrderbookSnapshot{
		Symbol:  symbol,
		Version: version,
		Buy:     ToOrderInfos(book.Buy),
		Sell:    ToOrderInfos(book.Sell),
	}
}

func ToPriceChartInfo(symbol string, version uint64, chart *market.PriceChart) PriceChartInfo {
	candles := make([]CandleInfo, len(chart.Candles))
	for i, c := range chart.Candles {
		candles[i] = CandleInfo{
			X: c.BucketStart.UnixMilli(),
			Y: [4]json.Number{price(c.Open), price(c.High), price(c.Low), price(c.Close)},
		}
	}
	return PriceChartInfo{
		Symbol:    symbol,
		Version:   version,
		LastPrice: price(chart.LastPrice),
		Direction: chart.Direction,
		Candles:   candles,
	}
}

func ToLedgerStatus(snap *ledger.Snapshot, anomalies []ledger.Anomaly) LedgerStatus {
	infos := make([]AnomalyInfo, len(anomalies))
	for i, a := range anomalies {
		infos[i] = AnomalyInfo{Kind: a.Kind, OrderID: a.OrderID, Event: a.Event.String()}
	}
	return LedgerStatus{
		Version:       snap.Version(),
		Digest:        snap.Digest().Hex(),
		Events:        snap.Len(),
		Orders:        len(snap.Orders()),
		Cancellations: len(snap.Cancellations()),
		Fills:         len(snap.Fills()),
		Anomalies:     infos,
	}
}

func ToRecords(events []ledger.Event) []ledger.Record {
	out := make([]ledger.Record, len(events))
	for i, ev := range events {
		out[i] = ledger.ToRecord(ev)
	}
	return out
}
