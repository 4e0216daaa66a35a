package pricing

import (
	"fmt"
	"time"
)

// Interval is a fixed candle granularity on a UTC calendar grid.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDay    Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	IntervalMinute: time.Minute,
	IntervalHour:   time.Hour,
	IntervalDay:    24 * time.Hour,
}

// ParseInterval validates an interval string.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("pricing: unsupported interval %q", s)
	}
	return iv, nil
}

// Duration returns the interval span.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

func (i Interval) String() string { return string(i) }

// Floor rounds t down to the interval boundary, on a fixed UTC calendar.
func (i Interval) Floor(t time.Time) time.Time {
	return t.UTC().Truncate(i.Duration())
}

// Ceil rounds t up to the next interval boundary. A timestamp already on a
// boundary is returned unchanged.
func (i Interval) Ceil(t time.Time) time.Time {
	f := i.Floor(t)
	if f.Equal(t.UTC()) {
		return f
	}
	return f.Add(i.Duration())
}

// Close returns the closing timestamp of the bucket opening at open: the last
// representable millisecond before the next boundary, matching venue candle
// close times.
func (i Interval) Close(open time.Time) time.Time {
	return i.Floor(open).Add(i.Duration() - time.Millisecond)
}

// Grid returns every bucket open time covering [from, to], inclusive on both
// ends after flooring.
func (i Interval) Grid(from, to time.Time) []time.Time {
	start := i.Floor(from)
	end := i.Floor(to)
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start)/i.Duration()) + 1
	grid := make([]time.Time, 0, n)
	for t := start; !t.After(end); t = t.Add(i.Duration()) {
		grid = append(grid, t)
	}
	return grid
}
