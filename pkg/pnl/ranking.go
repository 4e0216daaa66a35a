package pnl

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is a trailing leaderboard window. Tolerance bounds how far the
// earliest available bucket may lag behind the window start before the metric
// is withheld: a 3-hour-old account must not report a "daily" figure.
type Window struct {
	Span      time.Duration
	Tolerance time.Duration
}

var (
	Daily   = Window{Span: 24 * time.Hour, Tolerance: time.Hour}
	Weekly  = Window{Span: 7 * 24 * time.Hour, Tolerance: 24 * time.Hour}
	Monthly = Window{Span: 30 * 24 * time.Hour, Tolerance: 48 * time.Hour}
)

// RankingScalar computes the compounding cumulative relative PnL, x100 rounded
// to 2 decimals, over the trailing window ending at now. It returns nil when
// the bucket history does not reach back to within the window's tolerance:
// insufficient history is a valid, user-visible null, not a zero.
func RankingScalar(buckets []Bucket, w Window, now time.Time) *decimal.Decimal {
	windowStart := now.UTC().Add(-w.Span)

	one := decimal.NewFromInt(1)
	compound := one
	earliest := time.Time{}
	for _, b := range buckets {
		if !b.End.After(windowStart) {
			continue
		}
		if earliest.IsZero() {
			earliest = b.End
		}
		compound = compound.Mul(one.Add(b.PnLRel))
	}
	if earliest.IsZero() {
		return nil
	}
	if earliest.Sub(windowStart) > w.Tolerance {
		return nil
	}
	pct := compound.Sub(one).Mul(decimal.NewFromInt(100)).Round(2)
	return &pct
}
