package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
)

// defaultAlternateBases is the fixed triangulation priority order. The first
// listed base with a direct market against the asset wins; the tie-break is
// deterministic, not cost-optimal.
var defaultAlternateBases = []string{"USDT", "BTC", "ETH", "BNB"}

// CandleSource supplies historical candles for one venue symbol. It is the
// oracle's only blocking seam; implementations own timeouts and rate limits.
type CandleSource interface {
	Candles(ctx context.Context, symbol string, interval Interval, from, to time.Time) ([]Candle, error)
}

// Oracle answers "what is 1 unit of asset X worth in base B" at an instant or
// over a historical window, tolerating missing direct pairs. It holds no
// mutable state besides a per-run memo of fetched candle series, so one oracle
// per aggregation run is safe under concurrent use.
type Oracle struct {
	table  *PriceTable
	source CandleSource
	bases  []string

	flight syncx.SingleFlight
	mu     sync.Mutex
	memo   map[string]*CandleSeries
}

// OracleOption customises an Oracle.
type OracleOption func(*Oracle)

// WithAlternateBases overrides the triangulation priority order.
func WithAlternateBases(bases []string) OracleOption {
	return func(o *Oracle) {
		if len(bases) > 0 {
			o.bases = bases
		}
	}
}

// NewOracle builds an oracle over an immutable price table and a candle
// source. The source may be nil when only current prices are needed.
func NewOracle(table *PriceTable, source CandleSource, opts ...OracleOption) *Oracle {
	o := &Oracle{
		table:  table,
		source: source,
		bases:  defaultAlternateBases,
		flight: syncx.NewSingleFlight(),
		memo:   make(map[string]*CandleSeries),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Price resolves the current value of 1 unit of asset in base currency.
// Resolution order: identity, direct pair, inverse pair, then triangulation
// through the alternate bases in priority order. When no path exists it
// returns decimal zero and ErrPriceUnavailable; the zero means "could not
// value", not "worthless".
func (o *Oracle) Price(asset, base string) (decimal.Decimal, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	base = strings.ToUpper(strings.TrimSpace(base))
	if asset == "" || base == "" {
		return decimal.Zero, fmt.Errorf("pricing: empty asset or base")
	}
	return o.resolve(asset, base, map[string]bool{asset: true})
}

func (o *Oracle) resolve(asset, base string, visited map[string]bool) (decimal.Decimal, error) {
	if asset == base {
		return decimal.NewFromInt(1), nil
	}
	if o.table != nil {
		if t, ok := o.table.Ticker(asset + base); ok && t.usable() {
			return t.Last, nil
		}
		if t, ok := o.table.Ticker(base + asset); ok && t.usable() {
			return decimal.NewFromInt(1).Div(t.Last), nil
		}
		for _, alt := range o.bases {
			if alt == base || visited[alt] {
				continue
			}
			t, ok := o.table.Ticker(asset + alt)
			if !ok || !t.usable() {
				continue
			}
			visited[alt] = true
			altPrice, err := o.resolve(alt, base, visited)
			if err != nil {
				continue
			}
			return t.Last.Mul(altPrice), nil
		}
	}
	return decimal.Zero, ErrPriceUnavailable
}

// PriceHistory resolves a dense candle series for asset/base over [from, to]
// at the given interval. The triangulation ladder matches Price, applied
// pointwise over aligned grid keys; the result is completed against the full
// expected grid (linear interpolation, leading backfill). A venue error on one
// candidate symbol only disqualifies that symbol.
func (o *Oracle) PriceHistory(ctx context.Context, asset, base string, from, to time.Time, interval Interval) (*CandleSeries, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	base = strings.ToUpper(strings.TrimSpace(base))
	if _, ok := intervalDurations[interval]; !ok {
		return nil, fmt.Errorf("pricing: unsupported interval %q", interval)
	}
	from = interval.Floor(from)
	to = interval.Floor(to)
	if to.Before(from) {
		return nil, fmt.Errorf("pricing: history window end precedes start")
	}
	series, err := o.resolveHistory(ctx, asset, base, from, to, interval, map[string]bool{asset: true})
	if err != nil {
		return nil, err
	}
	return series.Complete(from, to), nil
}

func (o *Oracle) resolveHistory(ctx context.Context, asset, base string, from, to time.Time, interval Interval, visited map[string]bool) (*CandleSeries, error) {
	if asset == base {
		return constantSeries(interval, from, to, decimal.NewFromInt(1)), nil
	}
	if s := o.fetch(ctx, asset+base, interval, from, to); s != nil {
		return s, nil
	}
	if s := o.fetch(ctx, base+asset, interval, from, to); s != nil {
		return s.Invert(), nil
	}
	for _, alt := range o.bases {
		if alt == base || visited[alt] {
			continue
		}
		leg := o.fetch(ctx, asset+alt, interval, from, to)
		if leg == nil {
			continue
		}
		visited[alt] = true
		rest, err := o.resolveHistory(ctx, alt, base, from, to, interval, visited)
		if err != nil {
			continue
		}
		return leg.Mul(rest), nil
	}
	return nil, ErrPriceUnavailable
}

// fetch loads candles for one venue symbol, memoised per (symbol, interval,
// window). A failed or empty fetch yields nil: the symbol is not usable and
// the ladder falls through to the next candidate.
func (o *Oracle) fetch(ctx context.Context, symbol string, interval Interval, from, to time.Time) *CandleSeries {
	if o.source == nil {
		return nil
	}
	if o.table != nil && !o.table.HasSymbol(symbol) {
		return nil
	}
	key := fmt.Sprintf("%s|%s|%d|%d", symbol, interval, from.UnixMilli(), to.UnixMilli())
	o.mu.Lock()
	cached, ok := o.memo[key]
	o.mu.Unlock()
	if ok {
		return cached
	}

	value, err := o.flight.Do(key, func() (any, error) {
		candles, err := o.source.Candles(ctx, symbol, interval, from, to)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("pricing: empty candle response for %s", symbol)
		}
		return NewCandleSeries(interval, candles), nil
	})
	if err != nil {
		logx.WithContext(ctx).Debugf("pricing: symbol %s not usable: %v", symbol, err)
		return nil
	}
	series := value.(*CandleSeries)
	o.mu.Lock()
	o.memo[key] = series
	o.mu.Unlock()
	return series
}
