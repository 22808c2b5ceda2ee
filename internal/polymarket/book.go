package polymarket

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceLevel is a CLOB book level as returned on the wire.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBook is the CLOB /book response.
type OrderBook struct {
	Market  string       `json:"market"`
	AssetID string       `json:"asset_id"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}

// Level is a parsed book level.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookDepth is the notional resting within the top levels of each side.
type BookDepth struct {
	Bid   decimal.Decimal
	Ask   decimal.Decimal
	Total decimal.Decimal
}

// Levels parses both sides and orders them best first: bids descending,
// asks ascending. The CLOB lists each side worst first. Malformed or
// non-positive levels are dropped.
func (b *OrderBook) Levels() (bids, asks []Level) {
	bids = parseLevels(b.Bids)
	asks = parseLevels(b.Asks)
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	return bids, asks
}

func parseLevels(raw []PriceLevel) []Level {
	out := make([]Level, 0, len(raw))
	for _, l := range raw {
		price, err := decimal.NewFromString(l.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		size, err := decimal.NewFromString(l.Size)
		if err != nil || !size.IsPositive() {
			continue
		}
		out = append(out, Level{Price: price, Size: size})
	}
	return out
}

// Depth sums price*size over the best k levels of each side.
func (b *OrderBook) Depth(k int) BookDepth {
	bids, asks := b.Levels()
	d := BookDepth{Bid: notional(bids, k), Ask: notional(asks, k)}
	d.Total = d.Bid.Add(d.Ask)
	return d
}

func notional(levels []Level, k int) decimal.Decimal {
	sum := decimal.Zero
	for i, l := range levels {
		if i >= k {
			break
		}
		sum = sum.Add(l.Price.Mul(l.Size))
	}
	return sum
}

// Top returns the best bid and ask. ok is false when either side is empty.
func (b *OrderBook) Top() (bid, ask decimal.Decimal, ok bool) {
	bids, asks := b.Levels()
	if len(bids) == 0 || len(asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return bids[0].Price, asks[0].Price, true
}

// Mid is the midpoint of the best bid and ask.
func (b *OrderBook) Mid() (decimal.Decimal, bool) {
	bid, ask, ok := b.Top()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}
