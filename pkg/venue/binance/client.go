// Package binance implements the venue provider seam for Binance spot
// accounts on top of the official-style REST client.
package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"traderboard/pkg/pricing"
	"traderboard/pkg/venue"
)

const (
	defaultRequestTimeout = 8 * time.Second
	defaultRateLimit      = 10 // requests per second against the spot API
	defaultBurst          = 20
	klinesPageLimit       = 1000
)

func init() {
	venue.RegisterProvider("binance", func(name string, cfg *venue.ProviderConfig) (venue.Provider, error) {
		return New(name, cfg), nil
	})
}

// Provider serves Binance market data and builds per-account event sources.
// One provider is shared across accounts; the rate limiter spans all of them.
type Provider struct {
	name    string
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	client  *gobinance.Client

	metaOnce sync.Once
	metaErr  error
	meta     map[string]pricing.SymbolInfo
}

// New builds a provider from configuration. Market data endpoints need no
// credentials.
func New(name string, cfg *venue.ProviderConfig) *Provider {
	p := &Provider{
		name:    name,
		timeout: defaultRequestTimeout,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	if cfg != nil {
		if cfg.Timeout > 0 {
			p.timeout = cfg.Timeout
		}
		if cfg.RateLimit > 0 {
			burst := cfg.Burst
			if burst <= 0 {
				burst = int(cfg.RateLimit)
			}
			p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
		p.baseURL = cfg.BaseURL
	}
	p.client = p.newClient("", "")
	return p
}

func (p *Provider) newClient(apiKey, apiSecret string) *gobinance.Client {
	c := gobinance.NewClient(apiKey, apiSecret)
	if p.baseURL != "" {
		c.BaseURL = p.baseURL
	}
	return c
}

// Name identifies the venue.
func (p *Provider) Name() string { return p.name }

// AccountSource builds an event source bound to one account's credentials,
// sharing the provider's limiter and symbol metadata.
func (p *Provider) AccountSource(apiKey, apiSecret string) venue.AccountEventSource {
	return &accountSource{provider: p, client: p.newClient(apiKey, apiSecret)}
}

func (p *Provider) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	return callCtx, cancel, nil
}

// PriceTable captures the current 24h ticker table plus symbol metadata as an
// immutable snapshot.
func (p *Provider) PriceTable(ctx context.Context) (*pricing.PriceTable, error) {
	callCtx, cancel, err := p.call(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := p.client.NewListPriceChangeStatsService().Do(callCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("binance: ticker table: %w", err)
	}
	meta, err := p.symbolMeta(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make(map[string]pricing.Ticker, len(stats))
	for _, s := range stats {
		last, err := decimal.NewFromString(s.LastPrice)
		if err != nil {
			continue
		}
		t := pricing.Ticker{Last: last, TradeCount: s.Count}
		if open, err := decimal.NewFromString(s.OpenPrice); err == nil {
			t.Open = open
		}
		if high, err := decimal.NewFromString(s.HighPrice); err == nil {
			t.High = high
		}
		if low, err := decimal.NewFromString(s.LowPrice); err == nil {
			t.Low = low
		}
		tickers[s.Symbol] = t
	}
	return pricing.NewPriceTable(time.Now(), tickers, meta), nil
}

// Candles pages through the spot klines endpoint until the window is covered.
func (p *Provider) Candles(ctx context.Context, symbol string, interval pricing.Interval, from, to time.Time) ([]pricing.Candle, error) {
	start := interval.Floor(from)
	end := interval.Close(interval.Floor(to))

	var out []pricing.Candle
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for cursor <= endMs {
		callCtx, cancel, err := p.call(ctx)
		if err != nil {
			return nil, err
		}
		klines, err := p.client.NewKlinesService().
			Symbol(strings.ToUpper(symbol)).
			Interval(interval.String()).
			StartTime(cursor).
			EndTime(endMs).
			Limit(klinesPageLimit).
			Do(callCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, interval, err)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			open, err := decimal.NewFromString(k.Open)
			if err != nil {
				continue
			}
			closePx, err := decimal.NewFromString(k.Close)
			if err != nil {
				continue
			}
			out = append(out, pricing.Candle{
				OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
				CloseTime: time.UnixMilli(k.CloseTime).UTC(),
				Open:      open,
				Close:     closePx,
			})
		}
		next := klines[len(klines)-1].CloseTime + 1
		if next <= cursor {
			break
		}
		cursor = next
	}
	return out, nil
}

// symbolMeta lazily loads exchange info once per provider lifetime.
func (p *Provider) symbolMeta(ctx context.Context) (map[string]pricing.SymbolInfo, error) {
	p.metaOnce.Do(func() {
		callCtx, cancel, err := p.call(ctx)
		if err != nil {
			p.metaErr = err
			return
		}
		defer cancel()
		info, err := p.client.NewExchangeInfoService().Do(callCtx)
		if err != nil {
			p.metaErr = fmt.Errorf("binance: exchange info: %w", err)
			return
		}
		meta := make(map[string]pricing.SymbolInfo, len(info.Symbols))
		for _, s := range info.Symbols {
			meta[s.Symbol] = pricing.SymbolInfo{
				Symbol:             s.Symbol,
				BaseAsset:          s.BaseAsset,
				QuoteAsset:         s.QuoteAsset,
				BaseAssetPrecision: s.BaseAssetPrecision,
			}
		}
		p.meta = meta
	})
	return p.meta, p.metaErr
}
