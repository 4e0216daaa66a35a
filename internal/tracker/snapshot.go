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
	"traderboard/pkg/pricing"
)

// SnapshotAll takes one snapshot per tracked account.
func (t *Tracker) SnapshotAll(ctx context.Context) error {
	return t.forEachAccount(ctx, "snapshot", func(ctx context.Context, acct *model.TradingAccounts) error {
		rec, err := t.TakeSnapshot(ctx, acct)
		if err != nil {
			return err
		}
		logx.WithContext(ctx).Infof("tracker: snapshot account=%s balance=%s %s", acct.Id, rec.BalanceUSDT, t.base)
		return nil
	})
}

// TakeSnapshot captures the account's current holdings, values them in BTC
// and USDT, and persists the snapshot. When a previous snapshot exists the
// interval PnL is computed net of deposits and withdrawals, which are pulled
// from the venue and stored as events along the way.
func (t *Tracker) TakeSnapshot(ctx context.Context, acct *model.TradingAccounts) (*repo.SnapshotRecord, error) {
	src := t.provider.AccountSource(acct.ApiKey, acct.ApiSecret)
	holdings, err := src.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: fetch balances: %w", err)
	}
	oracle, err := t.Oracle(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &repo.SnapshotRecord{
		AccountID:   acct.Id,
		TakenAt:     now,
		BalanceBTC:  valueHoldings(oracle, holdings, "BTC"),
		BalanceUSDT: valueHoldings(oracle, holdings, "USDT"),
		Holdings:    holdings,
	}

	prev, err := t.repos.Snapshots.Latest(ctx, acct.Id)
	switch {
	case err == nil:
		if err := t.fillIntervalPnL(ctx, src, oracle, prev, rec); err != nil {
			return nil, err
		}
	case errors.Is(err, model.ErrNotFound):
		// first snapshot is the reference point, no PnL
	default:
		return nil, fmt.Errorf("tracker: load previous snapshot: %w", err)
	}

	if err := t.repos.Snapshots.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// fillIntervalPnL computes the PnL between the previous snapshot and rec,
// netting out the cash flows that arrived in between. Flows are valued at
// current prices, consistent with both snapshots being marked at their own
// capture time.
func (t *Tracker) fillIntervalPnL(ctx context.Context, src snapshotFlowSource, oracle *pricing.Oracle, prev, rec *repo.SnapshotRecord) error {
	from := prev.TakenAt.Add(time.Millisecond)
	flows, err := t.pullFlows(ctx, src, from, rec.TakenAt)
	if err != nil {
		return err
	}
	if _, err := t.repos.Events.Store(ctx, rec.AccountID, flows); err != nil {
		return err
	}

	for _, base := range []string{"BTC", "USDT"} {
		deposits, withdrawals := decimal.Zero, decimal.Zero
		for _, e := range flows {
			price, err := oracle.Price(e.Asset, base)
			if err != nil {
				continue
			}
			value := e.Amount.Mul(price)
			if e.Kind == ledger.KindDeposit {
				deposits = deposits.Add(value)
			} else {
				withdrawals = withdrawals.Add(value)
			}
		}

		var balance, prevBalance decimal.Decimal
		if base == "BTC" {
			balance, prevBalance = rec.BalanceBTC, prev.BalanceBTC
		} else {
			balance, prevBalance = rec.BalanceUSDT, prev.BalanceUSDT
		}
		pnlValue := balance.Sub(prevBalance).Sub(deposits).Add(withdrawals)
		var rel *float64
		if prevBalance.IsPositive() {
			v, _ := pnlValue.Div(prevBalance).Float64()
			rel = &v
		}
		if base == "BTC" {
			rec.PnLBTC, rec.PnLRelBTC = &pnlValue, rel
		} else {
			rec.PnLUSDT, rec.PnLRelUSDT = &pnlValue, rel
		}
	}
	return nil
}

// snapshotFlowSource is the slice of the account source the snapshot cycle
// needs beyond balances.
type snapshotFlowSource interface {
	Deposits(ctx context.Context, from, to time.Time) ([]ledger.Event, error)
	Withdrawals(ctx context.Context, from, to time.Time) ([]ledger.Event, error)
}

func (t *Tracker) pullFlows(ctx context.Context, src snapshotFlowSource, from, to time.Time) ([]ledger.Event, error) {
	deposits, err := src.Deposits(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("tracker: fetch deposits: %w", err)
	}
	withdrawals, err := src.Withdrawals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("tracker: fetch withdrawals: %w", err)
	}
	return append(deposits, withdrawals...), nil
}
