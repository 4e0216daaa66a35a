package pnl

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"traderboard/pkg/pricing"
)

// Benchmark produces the bucketed cumulative PnL series of simply holding one
// unit of asset over the window, for chart overlays against an account's
// curve. Per-bucket PnL is close minus open; the rest of the figures follow
// the same conventions as Aggregate.
func Benchmark(ctx context.Context, oracle *pricing.Oracle, asset, base string, from, to time.Time, period pricing.Interval) ([]Bucket, error) {
	series, err := oracle.PriceHistory(ctx, asset, base, from, to, period)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(series.Candles))
	for _, c := range series.Candles {
		rows = append(rows, Row{
			Time:        c.OpenTime,
			Balance:     c.Close,
			PnL:         c.Close.Sub(c.Open),
			Deposits:    decimal.Zero,
			Withdrawals: decimal.Zero,
		})
	}
	return Aggregate(rows, period), nil
}
