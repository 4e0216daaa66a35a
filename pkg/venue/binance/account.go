package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"traderboard/pkg/ledger"
)

const (
	depositStatusSuccess    = 1
	withdrawStatusCompleted = 6
	withdrawApplyTimeLayout = "2006-01-02 15:04:05"
)

// accountSource reads one account's holdings and history. The REST client is
// bound to the account's keys; the limiter and symbol metadata belong to the
// shared provider.
type accountSource struct {
	provider *Provider
	client   *gobinance.Client
}

// Balances returns free plus locked holdings, zero balances dropped.
func (a *accountSource) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	callCtx, cancel, err := a.provider.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	acct, err := a.client.NewGetAccountService().Do(callCtx)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}
	out := make(map[string]decimal.Decimal, len(acct.Balances))
	for _, b := range acct.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			continue
		}
		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		out[strings.ToUpper(b.Asset)] = total
	}
	return out, nil
}

// Trades lists fills for one symbol. The symbol must exist in exchange info so
// the fill can be split into its base and quote legs.
func (a *accountSource) Trades(ctx context.Context, symbol string, from, to time.Time) ([]ledger.Event, error) {
	meta, err := a.provider.symbolMeta(ctx)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	info, ok := meta[symbol]
	if !ok {
		return nil, fmt.Errorf("binance: trades: unknown symbol %s", symbol)
	}

	callCtx, cancel, err := a.provider.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	fills, err := a.client.NewListTradesService().
		Symbol(symbol).
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli()).
		Do(callCtx)
	if err != nil {
		return nil, fmt.Errorf("binance: trades %s: %w", symbol, err)
	}

	events := make([]ledger.Event, 0, len(fills))
	for _, f := range fills {
		qty, err := decimal.NewFromString(f.Quantity)
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(f.Price)
		if err != nil {
			continue
		}
		side := ledger.SideSell
		if f.IsBuyer {
			side = ledger.SideBuy
		}
		events = append(events, ledger.NewTrade(info.BaseAsset, info.QuoteAsset, side, qty, price, time.UnixMilli(f.Time)))
	}
	return events, nil
}

// Deposits lists successfully credited deposits.
func (a *accountSource) Deposits(ctx context.Context, from, to time.Time) ([]ledger.Event, error) {
	callCtx, cancel, err := a.provider.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	deposits, err := a.client.NewListDepositsService().
		Status(depositStatusSuccess).
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli()).
		Do(callCtx)
	if err != nil {
		return nil, fmt.Errorf("binance: deposits: %w", err)
	}
	events := make([]ledger.Event, 0, len(deposits))
	for _, d := range deposits {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			continue
		}
		events = append(events, ledger.NewDeposit(d.Coin, amount, time.UnixMilli(d.InsertTime)))
	}
	return events, nil
}

// Withdrawals lists completed withdrawals. The endpoint reports apply time as
// a naive UTC string rather than epoch milliseconds.
func (a *accountSource) Withdrawals(ctx context.Context, from, to time.Time) ([]ledger.Event, error) {
	callCtx, cancel, err := a.provider.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	withdrawals, err := a.client.NewListWithdrawsService().
		Status(withdrawStatusCompleted).
		StartTime(from.UnixMilli()).
		EndTime(to.UnixMilli()).
		Do(callCtx)
	if err != nil {
		return nil, fmt.Errorf("binance: withdrawals: %w", err)
	}
	events := make([]ledger.Event, 0, len(withdrawals))
	for _, w := range withdrawals {
		amount, err := decimal.NewFromString(w.Amount)
		if err != nil {
			continue
		}
		at, err := time.ParseInLocation(withdrawApplyTimeLayout, w.ApplyTime, time.UTC)
		if err != nil {
			continue
		}
		events = append(events, ledger.NewWithdrawal(w.Coin, amount, at))
	}
	return events, nil
}
