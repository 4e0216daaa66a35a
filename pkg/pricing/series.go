package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle holds the open/close of one bucket for one pair.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	Close     decimal.Decimal
}

// CandleSeries is an ordered, gap-tolerant sequence of candles at a fixed
// interval. Complete produces the dense variant with exactly one candle per
// grid timestamp.
type CandleSeries struct {
	Interval Interval
	Candles  []Candle
}

// NewCandleSeries sorts the candles by open time and drops duplicates,
// keeping the first occurrence per grid point.
func NewCandleSeries(interval Interval, candles []Candle) *CandleSeries {
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTime.Before(sorted[j].OpenTime)
	})
	out := sorted[:0]
	var prev time.Time
	for idx, c := range sorted {
		c.OpenTime = interval.Floor(c.OpenTime)
		c.CloseTime = interval.Close(c.OpenTime)
		if idx > 0 && c.OpenTime.Equal(prev) {
			continue
		}
		out = append(out, c)
		prev = c.OpenTime
	}
	return &CandleSeries{Interval: interval, Candles: out}
}

// At returns the candle opening exactly at the grid point t.
func (s *CandleSeries) At(t time.Time) (Candle, bool) {
	t = s.Interval.Floor(t)
	idx := sort.Search(len(s.Candles), func(i int) bool {
		return !s.Candles[i].OpenTime.Before(t)
	})
	if idx < len(s.Candles) && s.Candles[idx].OpenTime.Equal(t) {
		return s.Candles[idx], true
	}
	return Candle{}, false
}

// OpenAt returns the bucket open price covering timestamp t, or zero when the
// series has no candle for that grid point.
func (s *CandleSeries) OpenAt(t time.Time) decimal.Decimal {
	c, ok := s.At(t)
	if !ok {
		return decimal.Zero
	}
	return c.Open
}

// Invert maps every price p to 1/p pointwise. Zero prices are dropped rather
// than divided.
func (s *CandleSeries) Invert() *CandleSeries {
	one := decimal.NewFromInt(1)
	out := make([]Candle, 0, len(s.Candles))
	for _, c := range s.Candles {
		if !c.Open.IsPositive() || !c.Close.IsPositive() {
			continue
		}
		out = append(out, Candle{
			OpenTime:  c.OpenTime,
			CloseTime: c.CloseTime,
			Open:      one.Div(c.Open),
			Close:     one.Div(c.Close),
		})
	}
	return &CandleSeries{Interval: s.Interval, Candles: out}
}

// Mul joins two series on their aligned open-time grid keys and multiplies
// prices pointwise. Grid points present in only one series are dropped;
// Complete restores density afterwards.
func (s *CandleSeries) Mul(other *CandleSeries) *CandleSeries {
	out := make([]Candle, 0, len(s.Candles))
	for _, c := range s.Candles {
		o, ok := other.At(c.OpenTime)
		if !ok {
			continue
		}
		out = append(out, Candle{
			OpenTime:  c.OpenTime,
			CloseTime: c.CloseTime,
			Open:      c.Open.Mul(o.Open),
			Close:     c.Close.Mul(o.Close),
		})
	}
	return &CandleSeries{Interval: s.Interval, Candles: out}
}

// Complete left-joins the series against the full expected grid for [from, to]
// and fills the holes: interior gaps by linear interpolation between known
// neighbours, the leading gap with the first known value, the trailing gap
// with the last known value. Completing an already dense series is a no-op.
// An empty series completes to nil candles.
func (s *CandleSeries) Complete(from, to time.Time) *CandleSeries {
	grid := s.Interval.Grid(from, to)
	if len(grid) == 0 || len(s.Candles) == 0 {
		return &CandleSeries{Interval: s.Interval}
	}

	known := make([]int, 0, len(s.Candles)) // grid indices with a real candle
	dense := make([]Candle, len(grid))
	for i, t := range grid {
		if c, ok := s.At(t); ok {
			dense[i] = c
			known = append(known, i)
			continue
		}
		dense[i] = Candle{OpenTime: t, CloseTime: s.Interval.Close(t)}
	}
	if len(known) == 0 {
		return &CandleSeries{Interval: s.Interval}
	}

	// leading gap: backfill with the first known value
	first := dense[known[0]]
	for i := 0; i < known[0]; i++ {
		dense[i].Open, dense[i].Close = first.Open, first.Close
	}
	// trailing gap: carry the last known value forward
	last := dense[known[len(known)-1]]
	for i := known[len(known)-1] + 1; i < len(dense); i++ {
		dense[i].Open, dense[i].Close = last.Open, last.Close
	}
	// interior gaps: linear interpolation between the surrounding candles
	for k := 1; k < len(known); k++ {
		lo, hi := known[k-1], known[k]
		if hi-lo <= 1 {
			continue
		}
		span := decimal.NewFromInt(int64(hi - lo))
		openStep := dense[hi].Open.Sub(dense[lo].Open).Div(span)
		closeStep := dense[hi].Close.Sub(dense[lo].Close).Div(span)
		for i := lo + 1; i < hi; i++ {
			offset := decimal.NewFromInt(int64(i - lo))
			dense[i].Open = dense[lo].Open.Add(openStep.Mul(offset))
			dense[i].Close = dense[lo].Close.Add(closeStep.Mul(offset))
		}
	}
	return &CandleSeries{Interval: s.Interval, Candles: dense}
}

// constantSeries builds a dense series holding a fixed price over [from, to].
func constantSeries(interval Interval, from, to time.Time, price decimal.Decimal) *CandleSeries {
	grid := interval.Grid(from, to)
	candles := make([]Candle, len(grid))
	for i, t := range grid {
		candles[i] = Candle{
			OpenTime:  t,
			CloseTime: interval.Close(t),
			Open:      price,
			Close:     price,
		}
	}
	return &CandleSeries{Interval: interval, Candles: candles}
}
