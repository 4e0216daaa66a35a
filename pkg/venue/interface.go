// Package venue defines the seam between the core accounting library and the
// exchange it observes. The core consumes typed records only; transport,
// authentication, and rate limiting live behind these interfaces.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"traderboard/pkg/ledger"
	"traderboard/pkg/pricing"
)

// PriceSource supplies current and historical market data for one venue.
type PriceSource interface {
	// PriceTable captures an immutable snapshot of the full ticker table plus
	// symbol metadata. Refresh cadence is owned by the caller.
	PriceTable(ctx context.Context) (*pricing.PriceTable, error)
	// Candles returns raw candles for a venue symbol over [from, to]. It is
	// the pricing.CandleSource contract.
	Candles(ctx context.Context, symbol string, interval pricing.Interval, from, to time.Time) ([]pricing.Candle, error)
}

// AccountEventSource yields one account's holdings and raw event history as
// typed records: uppercase tickers, decimal amounts, UTC timestamps.
type AccountEventSource interface {
	// Balances returns current spot holdings, free plus locked, by asset.
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	// Trades lists fills for one symbol within [from, to].
	Trades(ctx context.Context, symbol string, from, to time.Time) ([]ledger.Event, error)
	// Deposits lists completed deposits within [from, to].
	Deposits(ctx context.Context, from, to time.Time) ([]ledger.Event, error)
	// Withdrawals lists completed withdrawals within [from, to].
	Withdrawals(ctx context.Context, from, to time.Time) ([]ledger.Event, error)
}

// Provider is one configured venue: market data shared across accounts, plus
// per-account event sources built from stored credentials.
type Provider interface {
	PriceSource
	// Name identifies the venue, e.g. "binance".
	Name() string
	// AccountSource builds an event source for one account's credentials.
	AccountSource(apiKey, apiSecret string) AccountEventSource
}
