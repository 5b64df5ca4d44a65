package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/ledgerview/params"
	"github.com/uhyunpark/ledgerview/pkg/api"
	"github.com/uhyunpark/ledgerview/pkg/ledger"
	"github.com/uhyunpark/ledgerview/pkg/market"
)

type replayFlags struct {
	markets string
	account string
}

// marketReport holds every view of one market, shaped like the REST responses.
type marketReport struct {
	Symbol        string                `json:"symbol"`
	OrderBook     api.OrderbookSnapshot `json:"orderBook"`
	Trades        []api.TradeInfo       `json:"trades"`
	Chart         api.PriceChartInfo    `json:"chart"`
	AccountOrders []api.OrderInfo       `json:"accountOrders,omitempty"`
	AccountFills  []api.TradeInfo       `json:"accountFills,omitempty"`
}

// report is the ledger status followed by the views.
type report struct {
	api.LedgerStatus
	Markets       []marketReport  `json:"markets"`
	AccountEvents []ledger.Record `json:"accountEvents,omitempty"`
}

func newRootCmd() *cobra.Command {
	var f replayFlags
	cmd := &cobra.Command{
		Use:   "replay [events.json]",
		Short: "Derive every view from a ledger event file and print it as JSON",
		Long: "Reads a JSON array or newline-delimited JSON of ledger records " +
			"(stdin when no file or \"-\" is given) and prints the order book, trade tape, " +
			"price chart and, with --account, the per-account views of each market.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			return replay(cmd.OutOrStdout(), in, f)
		},
	}
	cmd.Flags().StringVar(&f.markets, "markets", os.Getenv("MARKETS"),
		"markets to derive, as BASE:addr:decimals/QUOTE:addr:decimals[,...] (default $MARKETS)")
	cmd.Flags().StringVar(&f.account, "account", "", "also derive the views of this account")
	return cmd
}

func replay(w io.Writer, r io.Reader, f replayFlags) error {
	configs, err := params.ParseMarkets(f.markets)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no markets given; use --markets or MARKETS")
	}
	var account common.Address
	if f.account != "" {
		if !common.IsHexAddress(f.account) {
			return fmt.Errorf("account %q is not a hex address", f.account)
		}
		account = common.HexToAddress(f.account)
	}

	events, err := ledger.ReadRecords(r)
	if err != nil {
		return err
	}
	snap := ledger.NewSnapshot(events...)

	registry, err := market.NewRegistry(market.Options{})
	if err != nil {
		return err
	}
	out := report{LedgerStatus: api.ToLedgerStatus(snap, registry.Audit(snap))}

	for _, mc := range configs {
		m, err := registry.Register(mc.Pair())
		if err != nil {
			return err
		}
		mr, err := marketViews(m, snap, account)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Symbol(), err)
		}
		out.Markets = append(out.Markets, mr)
	}

	if f.account != "" {
		accountEvents, err := registry.AccountEvents(snap, account)
		if err != nil {
			return err
		}
		out.AccountEvents = api.ToRecords(accountEvents)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func marketViews(m *market.Market, snap *ledger.Snapshot, account common.Address) (marketReport, error) {
	mr := marketReport{Symbol: m.Symbol()}
	book, err := m.OrderBook(snap)
	if err != nil {
		return mr, err
	}
	mr.OrderBook = api.ToOrderbookSnapshot(m.Symbol(), snap.Version(), book)
	tape, err := m.TradeTape(snap)
	if err != nil {
		return mr, err
	}
	mr.Trades = api.ToTradeInfos(tape.Descending())
	chart, err := m.PriceChart(snap)
	if err != nil {
		return mr, err
	}
	mr.Chart = api.ToPriceChartInfo(m.Symbol(), snap.Version(), chart)
	if account == (common.Address{}) {
		return mr, nil
	}
	orders, err := m.AccountOrders(snap, account)
	if err != nil {
		return mr, err
	}
	mr.AccountOrders = api.ToOrderInfos(orders)
	fills, err := m.AccountFills(snap, account)
	if err != nil {
		return mr, err
	}
	mr.AccountFills = api.ToTradeInfos(fills)
	return mr, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
