package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"traderboard/internal/model"
	"traderboard/internal/repo"
	"traderboard/pkg/pnl"
	"traderboard/pkg/pricing"
)

// Stats aggregates the account's stored snapshot history over [from, to] into
// period buckets, without replaying events. The last snapshot taken before
// the window is prepended as the reference point so the first in-window
// snapshot contributes its PnL.
func (t *Tracker) Stats(ctx context.Context, accountID string, from, to time.Time, period pricing.Interval) ([]pnl.Bucket, error) {
	recs, err := t.repos.Snapshots.Range(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("tracker: load snapshot range: %w", err)
	}

	ref, err := t.repos.Snapshots.LatestBefore(ctx, accountID, from.Add(-time.Millisecond))
	switch {
	case err == nil:
		recs = append([]*repo.SnapshotRecord{ref}, recs...)
	case errors.Is(err, model.ErrNotFound):
	default:
		return nil, fmt.Errorf("tracker: load reference snapshot: %w", err)
	}

	rows := make([]pnl.Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, t.snapshotRow(rec))
	}
	return pnl.Aggregate(pnl.FromSnapshots(rows), period), nil
}

// snapshotRow projects a stored snapshot onto the tracker base. Snapshot PnL
// is already net of the interval's cash flows, so the flows stay zero.
func (t *Tracker) snapshotRow(rec *repo.SnapshotRecord) pnl.Row {
	row := pnl.Row{Time: rec.TakenAt}
	if t.base == "BTC" {
		row.Balance = rec.BalanceBTC
		if rec.PnLBTC != nil {
			row.PnL = *rec.PnLBTC
		}
	} else {
		row.Balance = rec.BalanceUSDT
		if rec.PnLUSDT != nil {
			row.PnL = *rec.PnLUSDT
		}
	}
	return row
}
