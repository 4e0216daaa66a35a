package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeCountUnknown marks tickers whose venue does not report a trade count.
// The zero-liquidity guard is skipped for them.
const TradeCountUnknown int64 = -1

// Ticker is one row of a price table: the latest quote for a venue symbol.
type Ticker struct {
	Last       decimal.Decimal
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	TradeCount int64
}

// usable reports whether the ticker can back a valuation: a positive last
// price, and at least one trade when the venue reports counts.
func (t Ticker) usable() bool {
	if !t.Last.IsPositive() {
		return false
	}
	if t.TradeCount == 0 {
		return false
	}
	return true
}

// SymbolInfo is venue metadata for one directional trading pair.
type SymbolInfo struct {
	Symbol             string
	BaseAsset          string
	QuoteAsset         string
	BaseAssetPrecision int
}

// PriceTable is an immutable point-in-time snapshot of the venue ticker table
// plus its symbol metadata. It is built once per refresh cycle by the venue
// client and handed to each oracle call; the oracle never mutates it.
type PriceTable struct {
	takenAt time.Time
	tickers map[string]Ticker
	symbols map[string]SymbolInfo
}

// NewPriceTable copies the supplied maps so later mutation by the caller
// cannot leak into the snapshot.
func NewPriceTable(takenAt time.Time, tickers map[string]Ticker, symbols map[string]SymbolInfo) *PriceTable {
	tk := make(map[string]Ticker, len(tickers))
	for sym, t := range tickers {
		tk[strings.ToUpper(sym)] = t
	}
	sm := make(map[string]SymbolInfo, len(symbols))
	for sym, info := range symbols {
		sm[strings.ToUpper(sym)] = info
	}
	return &PriceTable{takenAt: takenAt.UTC(), tickers: tk, symbols: sm}
}

// TakenAt reports when the snapshot was captured. TTL policy is owned by the
// caller refreshing the table.
func (p *PriceTable) TakenAt() time.Time { return p.takenAt }

// Ticker returns the ticker for a venue symbol, e.g. "ETHBTC".
func (p *PriceTable) Ticker(symbol string) (Ticker, bool) {
	t, ok := p.tickers[strings.ToUpper(symbol)]
	return t, ok
}

// HasSymbol reports whether the venue lists the directional pair.
func (p *PriceTable) HasSymbol(symbol string) bool {
	_, ok := p.tickers[strings.ToUpper(symbol)]
	return ok
}

// SymbolInfo returns venue metadata for a listed pair.
func (p *PriceTable) SymbolInfo(symbol string) (SymbolInfo, bool) {
	info, ok := p.symbols[strings.ToUpper(symbol)]
	return info, ok
}

// Len returns the number of listed tickers.
func (p *PriceTable) Len() int { return len(p.tickers) }
