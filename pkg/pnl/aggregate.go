package pnl

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"traderboard/pkg/ledger"
	"traderboard/pkg/pricing"
)

// Row is one observation feeding the aggregator: either a point of a dense
// reconstructed series or a stored account snapshot. PnL must already be
// cash-flow adjusted.
type Row struct {
	Time        time.Time
	Balance     decimal.Decimal
	PnL         decimal.Decimal
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
}

// Bucket is one aggregation period. CumPnLRelPct is the compounding
// cumulative relative PnL, expressed x100 and rounded to 2 decimals; all other
// figures stay unrounded.
type Bucket struct {
	End          time.Time
	Balance      decimal.Decimal
	Deposits     decimal.Decimal
	Withdrawals  decimal.Decimal
	PnL          decimal.Decimal
	PnLRel       decimal.Decimal
	CumPnL       decimal.Decimal
	CumPnLRelPct decimal.Decimal
}

// FromBalanceSeries adapts a reconstructed ledger series to aggregator rows.
func FromBalanceSeries(series ledger.Series) []Row {
	rows := make([]Row, len(series))
	for i, p := range series {
		rows[i] = Row{
			Time:        p.Time,
			Balance:     p.Balance,
			PnL:         p.PnL,
			Deposits:    p.Deposits,
			Withdrawals: p.Withdrawals,
		}
	}
	return rows
}

// FromSnapshots adapts a sparse stored snapshot history. The first record is
// the reference point and contributes no PnL.
func FromSnapshots(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if len(out) > 0 {
		out[0].PnL = decimal.Zero
	}
	return out
}

// Aggregate groups rows into period buckets keyed by the bucket's closing
// timestamp. Within a bucket the balance is the last observed value and the
// cash flows and PnL are summed. Relative PnL uses the previous bucket's
// balance as the opening base; a zero or undefined opening yields a zero
// relative figure by convention. Cumulative relative PnL is chain-linked,
// not summed: each period's capital base moves with deposits and withdrawals,
// so summing percentages would misstate compounding.
func Aggregate(rows []Row, period pricing.Interval) []Bucket {
	if len(rows) == 0 {
		return nil
	}
	ordered := make([]Row, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	type group struct {
		end  time.Time
		rows []Row
	}
	var groups []group
	for _, row := range ordered {
		end := period.Floor(row.Time).Add(period.Duration())
		if n := len(groups); n > 0 && groups[n-1].end.Equal(end) {
			groups[n-1].rows = append(groups[n-1].rows, row)
			continue
		}
		groups = append(groups, group{end: end, rows: []Row{row}})
	}

	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	buckets := make([]Bucket, 0, len(groups))
	cumPnL := decimal.Zero
	compound := one
	var prevBalance decimal.Decimal
	for i, g := range groups {
		b := Bucket{
			End:         g.end,
			Balance:     g.rows[len(g.rows)-1].Balance,
			Deposits:    decimal.Zero,
			Withdrawals: decimal.Zero,
			PnL:         decimal.Zero,
		}
		for _, row := range g.rows {
			b.PnL = b.PnL.Add(row.PnL)
			b.Deposits = b.Deposits.Add(row.Deposits)
			b.Withdrawals = b.Withdrawals.Add(row.Withdrawals)
		}

		// first bucket is the reference point; zero opening balance falls
		// back to zero return instead of dividing
		if i > 0 && prevBalance.IsPositive() {
			b.PnLRel = b.PnL.Div(prevBalance)
		} else {
			b.PnLRel = decimal.Zero
		}

		cumPnL = cumPnL.Add(b.PnL)
		compound = compound.Mul(one.Add(b.PnLRel))
		b.CumPnL = cumPnL
		b.CumPnLRelPct = compound.Sub(one).Mul(hundred).Round(2)

		buckets = append(buckets, b)
		prevBalance = b.Balance
	}
	return buckets
}
