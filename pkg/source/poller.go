// Package source feeds the ledger log from the exchange contract's chain logs.
package source

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/storage"
	"github.com/uhyunpark/ledgerview/pkg/util"
)

// Client is the part of an Ethereum JSON-RPC client the poller uses.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

var _ Client = (*ethclient.Client)(nil)

// Store persists ingested events and the block to resume from.
type Store interface {
	SaveEvents(events []ledger.Event, next uint64) error
	LoadEvents() ([]ledger.Event, error)
	Cursor() (next uint64, ok bool, err error)
}

type Config struct {
	Exchange      common.Address
	StartBlock    uint64
	BlockBatch    uint64
	Confirmations uint64
	PollInterval  time.Duration
}

type Options struct {
	Logger  *zap.SugaredLogger
	Clock   util.Clock
	Journal storage.Journal
	// OnIngest is called with every batch appended to the log.
	OnIngest func(events []ledger.Event)
	// OnSynced is called with the last block covered after each batch.
	OnSynced func(block uint64)
}

// Poller repeatedly fetches exchange logs from the chain, persists them and
// appends them to the log.
type Poller struct {
	cfg     Config
	client  Client
	store   Store
	log     *ledger.Log
	decoder *ledger.LogDecoder
	opts    Options

	next uint64 // next block to fetch; only touched by the polling goroutine
}

func NewPoller(cfg Config, client Client, store Store, log *ledger.Log, opts Options) (*Poller, error) {
	if cfg.BlockBatch == 0 {
		return nil, fmt.Errorf("block batch must be positive")
	}
	decoder, err := ledger.NewLogDecoder()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Journal == nil {
		opts.Journal = storage.NewNopJournal()
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		store:   store,
		log:     log,
		decoder: decoder,
		opts:    opts,
		next:    cfg.StartBlock,
	}, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return c, nil
}

// Next returns the next block the poller will fetch.
func (p *Poller) Next() uint64 { return p.next }

// Restore replays the stored events into the log and resumes from the stored cursor.
// It must run before Sync or Run.
func (p *Poller) Restore() (int, error) {
	events, err := p.store.LoadEvents()
	if err != nil {
		return 0, fmt.Errorf("restore events: %w", err)
	}
	next, ok, err := p.store.Cursor()
	if err != nil {
		return 0, fmt.Errorf("restore cursor: %w", err)
	}
	if ok && next > p.next {
		p.next = next
	}
	if len(events) > 0 {
		p.log.Append(events...)
	}
	p.opts.Logger.Infow("events_restored", "events", len(events), "next_block", p.next)
	return len(events), nil
}

// Sync fetches every confirmed block from the cursor up to the current head.
// It returns the number of events appended.
func (p *Poller) Sync(ctx context.Context) (int, error) {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	if head < p.cfg.Confirmations {
		return 0, nil
	}
	target := head - p.cfg.Confirmations

	total := 0
	for p.next <= target {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		to := p.next + p.cfg.BlockBatch - 1
		if to > target {
			to = target
		}
		n, err := p.syncRange(ctx, p.next, to)
		if err != nil {
			return total, err
		}
		total += n
		p.next = to + 1
		if p.opts.OnSynced != nil {
			p.opts.OnSynced(to)
		}
	}
	return total, nil
}

func (p *Poller) syncRange(ctx context.Context, from, to uint64) (int, error) {
	logs, err := p.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{p.cfg.Exchange},
		Topics:    p.decoder.Topics(),
	})
	if err != nil {
		return 0, fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	events := make([]ledger.Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := p.decoder.Decode(lg)
		if err != nil {
			p.opts.Logger.Warnw("log_skipped",
				"block", lg.BlockNumber,
				"log_index", lg.Index,
				"tx", lg.TxHash.Hex(),
				"err", err)
			continue
		}
		events = append(events, ev)
	}

	if err := p.store.SaveEvents(events, to+1); err != nil {
		return 0, fmt.Errorf("persist %d-%d: %w", from, to, err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := p.opts.Journal.Append(events); err != nil {
		p.opts.Logger.Warnw("journal_failed", "err", err)
	}
	snap := p.log.Append(events...)
	if p.opts.OnIngest != nil {
		p.opts.OnIngest(events)
	}
	p.opts.Logger.Infow("logs_ingested",
		"from_block", from,
		"to_block", to,
		"events", len(events),
		"version", snap.Version())
	return len(events), nil
}

// Run polls until ctx is cancelled. RPC failures are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) error {
	for {
		n, err := p.Sync(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			p.opts.Logger.Warnw("sync_failed", "next_block", p.next, "err", err)
		} else if n > 0 {
			p.opts.Logger.Debugw("sync_done", "events", n, "next_block", p.next)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.opts.Clock.After(p.cfg.PollInterval):
		}
	}
}
