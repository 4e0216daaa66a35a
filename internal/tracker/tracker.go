// Package tracker drives the account tracking cycles: snapshotting accounts,
// backfilling their event history, and refreshing the leaderboard.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"traderboard/internal/config"
	"traderboard/internal/model"
	"traderboard/internal/repo"
	"traderboard/pkg/pnl"
	"traderboard/pkg/pricing"
	"traderboard/pkg/venue"
)

// tableMaxAge bounds how stale a cached ticker table may get before the next
// cycle refreshes it.
const tableMaxAge = time.Minute

// Tracker owns the periodic work for one venue's tracked accounts.
type Tracker struct {
	provider venue.Provider
	repos    *repo.Set
	accounts model.TradingAccountsModel

	base     string
	bases    []string
	interval pricing.Interval
	backfill time.Duration

	mu     sync.Mutex
	table  *pricing.PriceTable
	oracle *pricing.Oracle
}

// New builds a tracker from the application config.
func New(provider venue.Provider, repos *repo.Set, accounts model.TradingAccountsModel, cfg config.TrackerConf) (*Tracker, error) {
	iv, err := pricing.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	if cfg.BackfillDays <= 0 {
		return nil, fmt.Errorf("tracker: backfill days must be positive, got %d", cfg.BackfillDays)
	}
	return &Tracker{
		provider: provider,
		repos:    repos,
		accounts: accounts,
		base:     strings.ToUpper(cfg.Base),
		bases:    cfg.Bases,
		interval: iv,
		backfill: time.Duration(cfg.BackfillDays) * 24 * time.Hour,
	}, nil
}

// Oracle returns a price oracle backed by a reasonably fresh ticker table,
// refreshing the table from the venue when the cached one has aged out.
func (t *Tracker) Oracle(ctx context.Context) (*pricing.Oracle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.oracle != nil && time.Since(t.table.TakenAt()) < tableMaxAge {
		return t.oracle, nil
	}
	table, err := t.provider.PriceTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: refresh price table: %w", err)
	}
	var opts []pricing.OracleOption
	if len(t.bases) > 0 {
		opts = append(opts, pricing.WithAlternateBases(t.bases))
	}
	t.table = table
	t.oracle = pricing.NewOracle(table, t.provider, opts...)
	return t.oracle, nil
}

// priceTable returns the cached ticker table behind the oracle, refreshing it
// if needed.
func (t *Tracker) priceTable(ctx context.Context) (*pricing.PriceTable, error) {
	if _, err := t.Oracle(ctx); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.table, nil
}

// valueHoldings marks a holdings map to market in the given base. Assets with
// no valuation path contribute zero.
func valueHoldings(oracle *pricing.Oracle, holdings map[string]decimal.Decimal, base string) decimal.Decimal {
	total := decimal.Zero
	for asset, amount := range holdings {
		price, err := oracle.Price(asset, base)
		if err != nil {
			continue
		}
		total = total.Add(amount.Mul(price))
	}
	return total
}

// Breakdown returns the percentage allocation of an account's latest snapshot
// holdings, valued in the tracker base.
func (t *Tracker) Breakdown(ctx context.Context, accountID string) (map[string]decimal.Decimal, error) {
	rec, err := t.repos.Snapshots.Latest(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("tracker: load latest snapshot: %w", err)
	}
	oracle, err := t.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	return pnl.Breakdown(rec.Holdings, oracle, t.base), nil
}

// MarketBenchmark returns buy-and-hold buckets for one asset over a window,
// for plotting an account's curve against the market.
func (t *Tracker) MarketBenchmark(ctx context.Context, asset string, from, to time.Time, period pricing.Interval) ([]pnl.Bucket, error) {
	oracle, err := t.Oracle(ctx)
	if err != nil {
		return nil, err
	}
	return pnl.Benchmark(ctx, oracle, asset, t.base, from, to, period)
}

// forEachAccount loads all tracked accounts for this tracker's venue and runs
// fn per account, logging failures without stopping the sweep.
func (t *Tracker) forEachAccount(ctx context.Context, op string, fn func(ctx context.Context, acct *model.TradingAccounts) error) error {
	accounts, err := t.accounts.FindByVenue(ctx, t.provider.Name())
	if err != nil {
		return fmt.Errorf("tracker: list accounts: %w", err)
	}
	for _, acct := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(ctx, acct); err != nil {
			logx.WithContext(ctx).Errorf("tracker: %s account %s: %v", op, acct.Id, err)
		}
	}
	return nil
}
