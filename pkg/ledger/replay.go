package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"traderboard/pkg/pricing"
)

// Snapshot is the trusted anchor for a reconstruction: the full balance by
// asset of one account at one instant. All earlier points are derived from it,
// never authoritative.
type Snapshot struct {
	Account  string
	Time     time.Time
	Balances map[string]decimal.Decimal
}

// Point is one bucket of a reconstructed balance series. Balance is the
// mark-to-market total in the reporting base at the bucket open; Deposits and
// Withdrawals are the base-valued cash flows attached to the bucket.
type Point struct {
	Time        time.Time
	Balance     decimal.Decimal
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
	PnL         decimal.Decimal
}

// Series is a dense, ascending reconstructed balance series.
type Series []Point

// Replayer reconstructs valued balance histories by undoing events backward
// from a snapshot anchor. It is a pure function of its inputs apart from the
// oracle's candle fetches.
type Replayer struct {
	oracle   *pricing.Oracle
	base     string
	interval pricing.Interval
}

// NewReplayer builds a replayer reporting in the given base currency at the
// given bucket interval.
func NewReplayer(oracle *pricing.Oracle, base string, interval pricing.Interval) *Replayer {
	return &Replayer{oracle: oracle, base: strings.ToUpper(base), interval: interval}
}

// Apply mutates balances by one event, forward in time. A buy of qty asset at
// price consumes qty*price quote; a sell is the mirror.
func Apply(balances map[string]decimal.Decimal, e Event) {
	switch e.Kind {
	case KindTrade:
		notional := e.Amount.Mul(e.Price)
		if e.Side == SideBuy {
			balances[e.Asset] = balances[e.Asset].Add(e.Amount)
			balances[e.Quote] = balances[e.Quote].Sub(notional)
		} else {
			balances[e.Asset] = balances[e.Asset].Sub(e.Amount)
			balances[e.Quote] = balances[e.Quote].Add(notional)
		}
	case KindDeposit:
		balances[e.Asset] = balances[e.Asset].Add(e.Amount)
	case KindWithdrawal:
		balances[e.Asset] = balances[e.Asset].Sub(e.Amount)
	}
}

// Undo mutates balances by the inverse of the event.
func Undo(balances map[string]decimal.Decimal, e Event) {
	inverse := e
	switch e.Kind {
	case KindTrade:
		if e.Side == SideBuy {
			inverse.Side = SideSell
		} else {
			inverse.Side = SideBuy
		}
	case KindDeposit:
		inverse.Kind = KindWithdrawal
	case KindWithdrawal:
		inverse.Kind = KindDeposit
	}
	Apply(balances, inverse)
}

// Reconstruct replays events backward from the snapshot and returns the valued
// balance series over [from, snapshot.Time] plus the derived opening balances
// at the window start. The opening balances let callers verify the series
// against an independently known earlier snapshot.
func (r *Replayer) Reconstruct(ctx context.Context, snap Snapshot, events []Event, from time.Time) (Series, map[string]decimal.Decimal, error) {
	from = from.UTC()
	if !snap.Time.After(from) {
		return nil, nil, fmt.Errorf("ledger: snapshot at %s does not follow window start %s",
			snap.Time.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	for _, e := range events {
		if e.Time.Before(from) || e.Time.After(snap.Time) {
			return nil, nil, fmt.Errorf("%w: %s at %s outside replay window", ErrInconsistentEvent, e.Kind, e.Time.Format(time.RFC3339))
		}
	}

	grid := r.interval.Grid(from, snap.Time)
	if len(grid) == 0 {
		return nil, nil, fmt.Errorf("ledger: empty bucket grid")
	}
	prices := r.priceSeries(ctx, snap, events, from)

	balances := make(map[string]decimal.Decimal, len(snap.Balances))
	for asset, amount := range snap.Balances {
		balances[strings.ToUpper(asset)] = amount
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.Slice(ordered, func(a, b int) bool {
		if !ordered[a].Time.Equal(ordered[b].Time) {
			return ordered[a].Time.After(ordered[b].Time)
		}
		return ordered[a].Seq > ordered[b].Seq
	})

	values := make([]decimal.Decimal, len(grid))
	deposits := make([]decimal.Decimal, len(grid))
	withdrawals := make([]decimal.Decimal, len(grid))
	for i := range grid {
		values[i] = decimal.Zero
		deposits[i] = decimal.Zero
		withdrawals[i] = decimal.Zero
	}

	markRange := func(lo, hi int) {
		for j := lo; j <= hi; j++ {
			values[j] = values[j].Add(r.markToMarket(balances, prices, grid[j]))
		}
	}

	cursor := len(grid) - 1
	for _, e := range ordered {
		start := r.bucketIndex(grid, e.Time)
		if start <= cursor {
			markRange(start, cursor)
		}
		if start < len(grid) {
			switch e.Kind {
			case KindDeposit:
				deposits[start] = deposits[start].Add(r.flowValue(e, prices, grid, start))
			case KindWithdrawal:
				withdrawals[start] = withdrawals[start].Add(r.flowValue(e, prices, grid, start))
			}
		}
		Undo(balances, e)
		if start-1 < cursor {
			cursor = start - 1
		}
	}
	if cursor >= 0 {
		markRange(0, cursor)
	}

	series := make(Series, len(grid))
	for i, t := range grid {
		p := Point{
			Time:        t,
			Balance:     values[i],
			Deposits:    deposits[i],
			Withdrawals: withdrawals[i],
			PnL:         decimal.Zero,
		}
		if i > 0 {
			p.PnL = values[i].Sub(values[i-1]).Sub(deposits[i]).Add(withdrawals[i])
		}
		series[i] = p
	}
	return series, balances, nil
}

// bucketIndex returns the index of the first grid point at or after t; a t
// beyond the last grid point yields len(grid).
func (r *Replayer) bucketIndex(grid []time.Time, t time.Time) int {
	ceil := r.interval.Ceil(t)
	return sort.Search(len(grid), func(i int) bool {
		return !grid[i].Before(ceil)
	})
}

// markToMarket values every positively held asset at the bucket open price.
func (r *Replayer) markToMarket(balances map[string]decimal.Decimal, prices map[string]*pricing.CandleSeries, at time.Time) decimal.Decimal {
	total := decimal.Zero
	for asset, amount := range balances {
		if !amount.IsPositive() {
			continue
		}
		series := prices[asset]
		if series == nil {
			continue
		}
		total = total.Add(amount.Mul(series.OpenAt(at)))
	}
	return total
}

// flowValue values a transfer at the price of the bucket it attaches to, so
// the per-bucket PnL identity holds exactly.
func (r *Replayer) flowValue(e Event, prices map[string]*pricing.CandleSeries, grid []time.Time, bucket int) decimal.Decimal {
	series := prices[e.Asset]
	if series == nil {
		return decimal.Zero
	}
	return e.Amount.Mul(series.OpenAt(grid[bucket]))
}

// priceSeries fetches one dense candle series per touched asset. An asset with
// no valuation path contributes zero from that point backward; that is logged,
// never fatal.
func (r *Replayer) priceSeries(ctx context.Context, snap Snapshot, events []Event, from time.Time) map[string]*pricing.CandleSeries {
	touched := make(map[string]struct{}, len(snap.Balances))
	for asset := range snap.Balances {
		touched[strings.ToUpper(asset)] = struct{}{}
	}
	for _, e := range events {
		for _, asset := range e.touched() {
			touched[asset] = struct{}{}
		}
	}

	out := make(map[string]*pricing.CandleSeries, len(touched))
	for asset := range touched {
		series, err := r.oracle.PriceHistory(ctx, asset, r.base, from, snap.Time, r.interval)
		if err != nil {
			logx.WithContext(ctx).Infow("ledger: asset valuation unavailable, contributes zero",
				logx.Field("asset", asset), logx.Field("base", r.base), logx.Field("error", err.Error()))
			out[asset] = nil
			continue
		}
		out[asset] = series
	}
	return out
}
