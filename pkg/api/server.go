package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/market"
)

// WebSocket channel prefixes; the full channel name is prefix + ":" + symbol.
const (
	ChannelOrderbook = "orderbook"
	ChannelTrades    = "trades"
	ChannelChart     = "chart"
)

type Options struct {
	Logger      *zap.SugaredLogger
	CORSOrigins []string
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
}

// Server handles REST API and WebSocket connections over the derived views
// of the latest ledger snapshot.
type Server struct {
	ledger  *ledger.Log
	markets *market.Registry
	router  *mux.Router
	hub     *Hub
	logger  *zap.SugaredLogger
	opts    Options

	ctx context.Context
}

func NewServer(log *ledger.Log, markets *market.Registry, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		ledger:  log,
		markets: markets,
		router:  mux.NewRouter(),
		hub:     NewHub(opts.Logger),
		logger:  opts.Logger,
		opts:    opts,
		ctx:     context.Background(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/markets/{symbol}/chart", s.handleGetChart).Methods("GET")

	// Account endpoints
	api.HandleFunc("/markets/{symbol}/accounts/{address}/orders", s.handleGetAccountOrders).Methods("GET")
	api.HandleFunc("/markets/{symbol}/accounts/{address}/fills", s.handleGetAccountFills).Methods("GET")
	api.HandleFunc("/accounts/{address}/events", s.handleGetAccountEvents).Methods("GET")

	// Ledger endpoints
	api.HandleFunc("/ledger/status", s.handleGetLedgerStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub until ctx is cancelled. Call it once before
// serving requests.
func (s *Server) Start(ctx context.Context) {
	s.ctx = ctx
	go s.hub.Run(ctx)
}

// ListenAndServe starts the hub and serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.Start(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.markets.List()
	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = ToMarketInfo(m.Pair)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	respondJSON(w, ToMarketInfo(m.Pair))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	snap := s.ledger.Snapshot()
	book, err := m.OrderBook(snap)
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	respondJSON(w, ToOrderbookSnapshot(m.Symbol(), snap.Version(), book))
}

// handleGetTrades returns the tape newest first; ?limit=N keeps the N latest.
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	tape, err := m.TradeTape(s.ledger.Snapshot())
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	fills := tape.Descending()
	if limit > 0 && len(fills) > limit {
		fills = fills[:limit]
	}
	respondJSON(w, ToTradeInfos(fills))
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	snap := s.ledger.Snapshot()
	chart, err := m.PriceChart(snap)
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	respondJSON(w, ToPriceChartInfo(m.Symbol(), snap.Version(), chart))
}

func (s *Server) handleGetAccountOrders(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	orders, err := m.AccountOrders(s.ledger.Snapshot(), addr)
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	respondJSON(w, ToOrderInfos(orders))
}

func (s *Server) handleGetAccountFills(w http.ResponseWriter, r *http.Request) {
	m, ok := s.market(w, r)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	fills, err := m.AccountFills(s.ledger.Snapshot(), addr)
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	respondJSON(w, ToTradeInfos(fills))
}

func (s *Server) handleGetAccountEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, r)
	if !ok {
		return
	}
	events, err := s.markets.AccountEvents(s.ledger.Snapshot(), addr)
	if err != nil {
		s.respondViewError(w, r, err)
		return
	}
	respondJSON(w, ToRecords(events))
}

func (s *Server) handleGetLedgerStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.ledger.Snapshot()
	respondJSON(w, ToLedgerStatus(snap, s.markets.Audit(snap)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called on every published snapshot)
// ==============================

// Broadcast pushes the views of snap to every channel that has subscribers.
// It is meant to be registered with ledger.Log.Subscribe.
func (s *Server) Broadcast(snap *ledger.Snapshot) {
	for _, m := range s.markets.List() {
		for _, kind := range []string{ChannelOrderbook, ChannelTrades, ChannelChart} {
			channel := kind + ":" + m.Symbol()
			if !s.hub.HasSubscribers(channel) {
				continue
			}
			update, err := s.render(kind, m, snap)
			if err != nil {
				s.logger.Warnw("broadcast_failed", "channel", channel, "version", snap.Version(), "err", err)
				continue
			}
			s.hub.BroadcastToChannel(channel, update)
		}
	}
}

// currentView renders channel against the latest snapshot.
func (s *Server) currentView(channel string) (interface{}, bool) {
	kind, symbol, ok := strings.Cut(channel, ":")
	if !ok {
		return nil, false
	}
	m, ok := s.markets.Get(symbol)
	if !ok {
		return nil, false
	}
	update, err := s.render(kind, m, s.ledger.Snapshot())
	if err != nil {
		return nil, false
	}
	return update, true
}

var errUnknownChannel = errors.New("unknown channel")

func (s *Server) render(kind string, m *market.Market, snap *ledger.Snapshot) (ViewUpdate, error) {
	update := ViewUpdate{Type: kind, Symbol: m.Symbol(), Version: snap.Version()}
	switch kind {
	case ChannelOrderbook:
		book, err := m.OrderBook(snap)
		if err != nil {
			return update, err
		}
		update.Data = ToOrderbookSnapshot(m.Symbol(), snap.Version(), book)
	case ChannelTrades:
		tape, err := m.TradeTape(snap)
		if err != nil {
			return update, err
		}
		update.Data = ToTradeInfos(tape.Descending())
	case ChannelChart:
		chart, err := m.PriceChart(snap)
		if err != nil {
			return update, err
		}
		update.Data = ToPriceChartInfo(m.Symbol(), snap.Version(), chart)
	default:
		return update, errUnknownChannel
	}
	return update, nil
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) market(w http.ResponseWriter, r *http.Request) (*market.Market, bool) {
	symbol := mux.Vars(r)["symbol"]
	m, ok := s.markets.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "market not found", symbol)
		return nil, false
	}
	return m, true
}

func parseAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", addressStr)
		return common.Address{}, false
	}
	return common.HexToAddress(addressStr), true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit", v)
		return 0, false
	}
	return n, true
}

func (s *Server) respondViewError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, market.ErrMissingContext) {
		respondError(w, http.StatusConflict, "missing context", err.Error())
		return
	}
	s.logger.Errorw("view_failed", "path", r.URL.Path, "err", err)
	respondError(w, http.StatusInternalServerError, "view failed", err.Error())
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
