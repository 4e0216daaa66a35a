package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"traderboard/internal/model"
	"traderboard/pkg/ledger"
	"traderboard/pkg/venue"
)

// BackfillAll pulls event history for every tracked account.
func (t *Tracker) BackfillAll(ctx context.Context) error {
	return t.forEachAccount(ctx, "backfill", func(ctx context.Context, acct *model.TradingAccounts) error {
		stored, err := t.Backfill(ctx, acct)
		if err != nil {
			return err
		}
		if stored > 0 {
			logx.WithContext(ctx).Infof("tracker: backfill account=%s stored=%d events", acct.Id, stored)
		}
		return nil
	})
}

// Backfill pulls the account's trades, deposits, and withdrawals over the
// configured lookback window, validates them through a ledger journal, and
// persists the new ones. Re-running over an already covered window is a
// no-op: the journal and the store are both idempotent on the event tuple.
func (t *Tracker) Backfill(ctx context.Context, acct *model.TradingAccounts) (int, error) {
	now := time.Now().UTC()
	from := now.Add(-t.backfill)

	src := t.provider.AccountSource(acct.ApiKey, acct.ApiSecret)
	journal := ledger.NewJournal(from, now)

	flows, err := t.pullFlows(ctx, src, from, now)
	if err != nil {
		return 0, err
	}
	ingest(ctx, journal, flows)

	symbols, err := t.tradeSymbols(ctx, src)
	if err != nil {
		return 0, err
	}
	for _, symbol := range symbols {
		trades, err := src.Trades(ctx, symbol, from, now)
		if err != nil {
			return 0, fmt.Errorf("tracker: fetch trades %s: %w", symbol, err)
		}
		ingest(ctx, journal, trades)
	}

	return t.repos.Events.Store(ctx, acct.Id, journal.Events())
}

// ingest appends events to the journal, dropping the ones it rejects.
// Duplicates are expected on overlapping pulls and stay silent; everything
// else, out-of-window events included, is logged.
func ingest(ctx context.Context, journal *ledger.Journal, events []ledger.Event) {
	for _, e := range events {
		if err := journal.Append(e); err != nil {
			if errors.Is(err, ledger.ErrDuplicateEvent) {
				continue
			}
			logx.WithContext(ctx).Errorf("tracker: ingest: %v", err)
		}
	}
}

// tradeSymbols lists the venue symbols worth pulling fills for: every listed
// pairing of a currently held asset with one of the triangulation bases.
func (t *Tracker) tradeSymbols(ctx context.Context, src venue.AccountEventSource) ([]string, error) {
	holdings, err := src.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: fetch balances: %w", err)
	}
	table, err := t.priceTable(ctx)
	if err != nil {
		return nil, err
	}

	bases := t.bases
	if len(bases) == 0 {
		bases = []string{"USDT", "BTC", "ETH", "BNB"}
	}
	var symbols []string
	seen := make(map[string]struct{})
	for asset := range holdings {
		for _, base := range bases {
			for _, symbol := range []string{asset + base, base + asset} {
				if _, dup := seen[symbol]; dup || !table.HasSymbol(symbol) {
					continue
				}
				seen[symbol] = struct{}{}
				symbols = append(symbols, symbol)
			}
		}
	}
	return symbols, nil
}
