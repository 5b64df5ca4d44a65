package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/ledgerview/pkg/market"
)

type Chain struct {
	RPCURL   string
	Exchange common.Address
	// StartBlock is where a fresh store begins fetching logs.
	StartBlock uint64
	// PollInterval is the wait between polls once the poller has caught up with the head.
	PollInterval time.Duration
	// BlockBatch caps the block range of one eth_getLogs call.
	BlockBatch uint64
	// Confirmations keeps the poller this many blocks behind the head so
	// reorged logs are never ingested.
	Confirmations uint64
}

type TokenConfig struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

type MarketConfig struct {
	Base  TokenConfig
	Quote TokenConfig
}

type Node struct {
	DBPath      string // empty keeps events in memory
	JournalPath string // empty disables the event journal
	APIAddr     string
	LogFile     string
	LogLevel    string
	CORSOrigins []string
	// ViewCacheSize bounds the per-account view tables of each market.
	ViewCacheSize int
}

type Config struct {
	Chain   Chain
	Markets []MarketConfig
	Node    Node
}

func Default() Config {
	return Config{
		Chain: Chain{
			RPCURL:        "http://127.0.0.1:8545",
			PollInterval:  2 * time.Second,
			BlockBatch:    2000,
			Confirmations: 0, // devnet chains do not reorg
		},
		Node: Node{
			DBPath:        "data/events",
			APIAddr:       ":8080",
			LogFile:       "data/viewer.log",
			LogLevel:      "info",
			CORSOrigins:   []string{"*"},
			ViewCacheSize: 256,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Chain.RPCURL = getEnv("RPC_URL", cfg.Chain.RPCURL)
	if v := os.Getenv("EXCHANGE_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return cfg, fmt.Errorf("EXCHANGE_ADDRESS %q is not a hex address", v)
		}
		cfg.Chain.Exchange = common.HexToAddress(v)
	}
	if err := getUint("START_BLOCK", &cfg.Chain.StartBlock); err != nil {
		return cfg, err
	}
	if err := getUint("BLOCK_BATCH", &cfg.Chain.BlockBatch); err != nil {
		return cfg, err
	}
	if err := getUint("CONFIRMATIONS", &cfg.Chain.Confirmations); err != nil {
		return cfg, err
	}
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("POLL_INTERVAL_MS: %w", err)
		}
		cfg.Chain.PollInterval = time.Duration(ms) * time.Millisecond
	}

	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.Node.DBPath = v
	}
	cfg.Node.JournalPath = getEnv("JOURNAL_PATH", cfg.Node.JournalPath)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Node.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("VIEW_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("VIEW_CACHE_SIZE: %w", err)
		}
		cfg.Node.ViewCacheSize = n
	}

	// Markets from comma-separated list
	// Example: "BTX:0x...:18/ETHx:0x...:18,BTX:0x...:18/USDx:0x...:6"
	if v := os.Getenv("MARKETS"); v != "" {
		markets, err := ParseMarkets(v)
		if err != nil {
			return cfg, err
		}
		cfg.Markets = markets
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if c.Chain.Exchange == (common.Address{}) {
		errs = append(errs, errors.New("EXCHANGE_ADDRESS is required"))
	}
	if c.Chain.BlockBatch == 0 {
		errs = append(errs, errors.New("BLOCK_BATCH must be positive"))
	}
	if c.Chain.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_MS must be positive"))
	}
	if c.Node.ViewCacheSize <= 0 {
		errs = append(errs, errors.New("VIEW_CACHE_SIZE must be positive"))
	}
	if len(c.Markets) == 0 {
		errs = append(errs, errors.New("MARKETS must list at least one pair"))
	}
	seen := make(map[string]bool)
	for _, m := range c.Markets {
		sym := m.Base.Symbol + "-" + m.Quote.Symbol
		if seen[sym] {
			errs = append(errs, fmt.Errorf("market %s listed twice", sym))
		}
		seen[sym] = true
		if m.Base.Address == m.Quote.Address {
			errs = append(errs, fmt.Errorf("market %s trades a token against itself", sym))
		}
	}
	return errors.Join(errs...)
}

// ParseMarkets parses "BASE:addr:decimals/QUOTE:addr:decimals" entries separated by commas.
func ParseMarkets(s string) ([]MarketConfig, error) {
	var out []MarketConfig
	for _, entry := range splitList(s) {
		base, quote, ok := strings.Cut(entry, "/")
		if !ok {
			return nil, fmt.Errorf("market %q: want BASE:addr:dec/QUOTE:addr:dec", entry)
		}
		b, err := parseToken(base)
		if err != nil {
			return nil, fmt.Errorf("market %q: %w", entry, err)
		}
		q, err := parseToken(quote)
		if err != nil {
			return nil, fmt.Errorf("market %q: %w", entry, err)
		}
		out = append(out, MarketConfig{Base: b, Quote: q})
	}
	return out, nil
}

func parseToken(s string) (TokenConfig, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return TokenConfig{}, fmt.Errorf("token %q: want SYMBOL:addr:decimals", s)
	}
	if parts[0] == "" {
		return TokenConfig{}, fmt.Errorf("token %q: empty symbol", s)
	}
	if !common.IsHexAddress(parts[1]) {
		return TokenConfig{}, fmt.Errorf("token %s: %q is not a hex address", parts[0], parts[1])
	}
	dec, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil || dec > 77 {
		return TokenConfig{}, fmt.Errorf("token %s: bad decimals %q", parts[0], parts[2])
	}
	return TokenConfig{Symbol: parts[0], Address: common.HexToAddress(parts[1]), Decimals: int32(dec)}, nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getUint(key string, dst *uint64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Pair converts the market entry into the pair its views are derived for.
func (m MarketConfig) Pair() market.Pair {
	return market.Pair{
		Token0: market.Token{Symbol: m.Base.Symbol, Address: m.Base.Address, Decimals: m.Base.Decimals},
		Token1: market.Token{Symbol: m.Quote.Symbol, Address: m.Quote.Address, Decimals: m.Quote.Decimals},
	}
}
