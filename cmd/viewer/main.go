package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/ledgerview/params"
	"github.com/uhyunpark/ledgerview/pkg/api"
	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/market"
	"github.com/uhyunpark/ledgerview/pkg/metrics"
	"github.com/uhyunpark/ledgerview/pkg/source"
	"github.com/uhyunpark/ledgerview/pkg/storage"
	"github.com/uhyunpark/ledgerview/pkg/util"
)

type eventStore interface {
	source.Store
	Close() error
}

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("") // "" means load from .env in current directory
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	level, err := util.ParseLevel(cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	var logger *zap.Logger
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile, level)
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
	} else {
		logger = util.NewLogger(level)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", level.String())

	// ---- Views ----
	m := metrics.New(prometheus.DefaultRegisterer)
	registry, err := market.NewRegistry(market.Options{
		Logger:           sugar,
		Observer:         m,
		AccountCacheSize: cfg.Node.ViewCacheSize,
	})
	if err != nil {
		sugar.Fatalw("registry_init_failed", "err", err)
	}
	registry.OnAnomaly(m.Anomaly)
	for _, mc := range cfg.Markets {
		mk, err := registry.Register(mc.Pair())
		if err != nil {
			sugar.Fatalw("market_register_failed", "err", err)
		}
		sugar.Infow("market_registered",
			"symbol", mk.Symbol(),
			"base", mk.Pair.Token0.Address.Hex(),
			"quote", mk.Pair.Token1.Address.Hex())
	}

	// ---- Storage ----
	var store eventStore
	if cfg.Node.DBPath == "" {
		store = storage.NewMemoryEventStore()
		sugar.Info("event store in memory; history is refetched on restart")
	} else {
		store, err = storage.OpenEventStore(cfg.Node.DBPath)
		if err != nil {
			sugar.Fatalw("event_store_open_failed", "path", cfg.Node.DBPath, "err", err)
		}
	}
	defer store.Close()

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Node.JournalPath != "" {
		fj, err := storage.NewFileJournal(cfg.Node.JournalPath)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.Node.JournalPath, "err", err)
		}
		defer fj.Close()
		journal = fj
	}

	// ---- Ledger ----
	ledgerLog := ledger.NewLog(sugar)
	apiServer := api.NewServer(ledgerLog, registry, api.Options{
		Logger:      sugar,
		CORSOrigins: cfg.Node.CORSOrigins,
		Gatherer:    prometheus.DefaultGatherer,
	})

	// Every published snapshot is counted, audited once and pushed to subscribers
	ledgerLog.Subscribe(m.Published)
	ledgerLog.Subscribe(func(s *ledger.Snapshot) { registry.Audit(s) })
	ledgerLog.Subscribe(apiServer.Broadcast)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := source.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		sugar.Fatalw("rpc_dial_failed", "url", cfg.Chain.RPCURL, "err", err)
	}
	defer client.Close()

	poller, err := source.NewPoller(source.Config{
		Exchange:      cfg.Chain.Exchange,
		StartBlock:    cfg.Chain.StartBlock,
		BlockBatch:    cfg.Chain.BlockBatch,
		Confirmations: cfg.Chain.Confirmations,
		PollInterval:  cfg.Chain.PollInterval,
	}, client, store, ledgerLog, source.Options{
		Logger:   sugar,
		Clock:    util.RealClock{},
		Journal:  journal,
		OnIngest: m.Ingested,
		OnSynced: m.Synced,
	})
	if err != nil {
		sugar.Fatalw("poller_init_failed", "err", err)
	}
	if _, err := poller.Restore(); err != nil {
		sugar.Fatalw("restore_failed", "err", err)
	}

	sugar.Infow("viewer_starting",
		"exchange", cfg.Chain.Exchange.Hex(),
		"markets", len(cfg.Markets),
		"next_block", poller.Next(),
		"confirmations", cfg.Chain.Confirmations)

	// ---- API Server ----
	go func() {
		err := apiServer.ListenAndServe(ctx, cfg.Node.APIAddr)
		if err != nil && ctx.Err() == nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("api_server_failed", "err", err)
			stop()
		}
	}()

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Errorw("poller_stopped", "err", err)
	}
	sugar.Infow("viewer_stopped", "version", ledgerLog.Snapshot().Version())
}
