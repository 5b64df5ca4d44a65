package market

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token identifies an ERC-20 style asset traded on the exchange.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// Known reports whether the token identity is set.
func (t Token) Known() bool { return t.Address != (common.Address{}) }

// Scale converts a smallest-unit amount into human units.
func (t Token) Scale(amount *big.Int) decimal.Decimal {
	return ScaleUnits(amount, t.Decimals)
}

// Pair is the trading-pair context. Token0 is the base asset, Token1 the quote.
// Pair is comparable so it can be part of a memo key.
type Pair struct {
	Token0 Token
	Token1 Token
}

// Ready reports whether both token identities are known. Every pair-dependent
// derivation returns ErrMissingContext when it is not.
func (p Pair) Ready() bool { return p.Token0.Known() && p.Token1.Known() }

// Symbol is the display name of the market, e.g. "BTX-ETHx".
func (p Pair) Symbol() string { return fmt.Sprintf("%s-%s", p.Token0.Symbol, p.Token1.Symbol) }

// Matches reports whether an order exchanging get for give belongs to this market,
// in either direction.
func (p Pair) Matches(get, give common.Address) bool {
	t0, t1 := p.Token0.Address, p.Token1.Address
	return (get == t0 && give == t1) || (get == t1 && give == t0)
}

// ScaleUnits shifts an integer amount by decimals places: 1e18 wei with 18 decimals is 1.
func ScaleUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}
