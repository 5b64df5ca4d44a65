package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c0")

	btx  = Token{Symbol: "BTX", Address: common.HexToAddress("0x0000000000000000000000000000000000001001"), Decimals: 18}
	ethx = Token{Symbol: "ETHx", Address: common.HexToAddress("0x0000000000000000000000000000000000001002"), Decimals: 18}
	usdx = Token{Symbol: "USDx", Address: common.HexToAddress("0x0000000000000000000000000000000000001003"), Decimals: 6}

	pair = Pair{Token0: btx, Token1: ethx}
)

// 2024-01-01 00:00:00 UTC
const hour0 = uint64(1704067200)

func ether(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

// buyAt places an order giving price ETHx for one BTX.
func buyAt(id uint64, creator common.Address, price int64, ts uint64) ledger.Order {
	return ledger.Order{
		ID:         id,
		Creator:    creator,
		TokenGet:   btx.Address,
		AmountGet:  ether(1),
		TokenGive:  ethx.Address,
		AmountGive: ether(price),
		Timestamp:  ts,
	}
}

// sellAt places an order giving one BTX for price ETHx.
func sellAt(id uint64, creator common.Address, price int64, ts uint64) ledger.Order {
	return ledger.Order{
		ID:         id,
		Creator:    creator,
		TokenGet:   ethx.Address,
		AmountGet:  ether(price),
		TokenGive:  btx.Address,
		AmountGive: ether(1),
		Timestamp:  ts,
	}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func prices(orders []DecoratedOrder) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Price.String()
	}
	return out
}

func ids(orders []ledger.Order) map[uint64]bool {
	out := make(map[uint64]bool, len(orders))
	for _, o := range orders {
		out[o.ID] = true
	}
	return out
}
