package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"traderboard/internal/model"
	"traderboard/internal/repo"
	"traderboard/pkg/ledger"
	"traderboard/pkg/pnl"
	"traderboard/pkg/pricing"
)

// History reconstructs the account's valued balance history from `from` up to
// its latest snapshot, as aggregator rows.
func (t *Tracker) History(ctx context.Context, accountID string, from time.Time) ([]pnl.Row, error) {
	snap, err := t.repos.Snapshots.Latest(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !snap.TakenAt.After(from) {
		// degenerate window: the snapshot itself is the only observation
		return pnl.FromSnapshots([]pnl.Row{t.snapshotRow(snap)}), nil
	}
	events, err := t.repos.Events.Window(ctx, accountID, from, snap.TakenAt)
	if err != nil {
		return nil, err
	}
	oracle, err := t.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	replayer := ledger.NewReplayer(oracle, t.base, t.interval)
	series, _, err := replayer.Reconstruct(ctx, snap.LedgerSnapshot(), events, from)
	if err != nil {
		return nil, fmt.Errorf("tracker: reconstruct %s: %w", accountID, err)
	}
	return pnl.FromBalanceSeries(series), nil
}

// RefreshBoard recomputes the ranking scalars for every tracked account and
// upserts them into the leaderboard.
func (t *Tracker) RefreshBoard(ctx context.Context) error {
	now := time.Now().UTC()
	return t.forEachAccount(ctx, "board", func(ctx context.Context, acct *model.TradingAccounts) error {
		scalars, err := t.Scalars(ctx, acct.Id, now)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				// not snapshotted yet, nothing to rank
				return nil
			}
			return err
		}
		if err := t.repos.Board.SaveScalars(ctx, acct.Id, scalars); err != nil {
			return err
		}
		logx.WithContext(ctx).Infof("tracker: board account=%s daily=%s weekly=%s monthly=%s",
			acct.Id, scalarString(scalars.Daily), scalarString(scalars.Weekly), scalarString(scalars.Monthly))
		return nil
	})
}

// Scalars computes the three window scalars for one account as of now. A nil
// scalar means the account's history does not reach back far enough for that
// window.
func (t *Tracker) Scalars(ctx context.Context, accountID string, now time.Time) (repo.Scalars, error) {
	lookback := pnl.Monthly.Span + pnl.Monthly.Tolerance
	start := now.Add(-lookback)

	// replaying further back than the account's first snapshot or event
	// would manufacture flat history out of nothing, and a young account
	// must rank as null, not zero
	earliest, err := t.earliestKnown(ctx, accountID)
	if err != nil {
		return repo.Scalars{}, err
	}
	if earliest.After(start) {
		start = earliest
	}

	rows, err := t.History(ctx, accountID, start)
	if err != nil {
		return repo.Scalars{}, err
	}

	// daily ranking needs hour resolution; the longer windows settle for days
	hourly := pnl.Aggregate(rows, pricing.IntervalHour)
	daily := pnl.Aggregate(rows, pricing.IntervalDay)

	return repo.Scalars{
		Daily:   pnl.RankingScalar(hourly, pnl.Daily, now),
		Weekly:  pnl.RankingScalar(daily, pnl.Weekly, now),
		Monthly: pnl.RankingScalar(daily, pnl.Monthly, now),
	}, nil
}

// earliestKnown returns the account's oldest ground truth: its first snapshot,
// or its first stored event when that predates the snapshot.
func (t *Tracker) earliestKnown(ctx context.Context, accountID string) (time.Time, error) {
	snap, err := t.repos.Snapshots.Earliest(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	at := snap.TakenAt
	evAt, err := t.repos.Events.EarliestTime(ctx, accountID)
	switch {
	case err == nil:
		if evAt.Before(at) {
			at = evAt
		}
	case errors.Is(err, model.ErrNotFound):
	default:
		return time.Time{}, err
	}
	return at, nil
}

func scalarString(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return d.String()
}
