package models

import (
	"sort"
	"time"
)

// MinUsableBars is the minimum daily history required before an instrument
// can be screened at all.
const MinUsableBars = 25

// Bar is a single OHLCV record. Immutable once recorded.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BarSeries is an ordered per-instrument bar collection. Bars are kept in
// strictly increasing timestamp order with no duplicates (keep-last on
// ingest). The zero value is an empty, usable series.
type BarSeries struct {
	Ticker string
	Bars   []Bar
}

// NewBarSeries builds a series from raw bars, sorting and de-duplicating by
// timestamp with a keep-last policy.
func NewBarSeries(ticker string, bars []Bar) BarSeries {
	s := BarSeries{Ticker: ticker, Bars: bars}
	s.normalize()
	return s
}

func (s *BarSeries) normalize() {
	if len(s.Bars) < 2 {
		return
	}
	sort.SliceStable(s.Bars, func(i, j int) bool {
		return s.Bars[i].Time.Before(s.Bars[j].Time)
	})
	out := s.Bars[:0]
	for _, b := range s.Bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b // keep-last
			continue
		}
		out = append(out, b)
	}
	s.Bars = out
}

// Len returns the number of bars.
func (s BarSeries) Len() int { return len(s.Bars) }

// Usable reports whether the series has enough history to screen.
func (s BarSeries) Usable() bool { return len(s.Bars) >= MinUsableBars }

// Last returns the most recent bar; ok is false on an empty series.
func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// At indexes from the end: At(-1) is the last bar, At(-2) the one before.
func (s BarSeries) At(offset int) (Bar, bool) {
	i := len(s.Bars) + offset
	if offset >= 0 || i < 0 {
		return Bar{}, false
	}
	return s.Bars[i], true
}

// LastClose returns the most recent close, or 0 on an empty series.
func (s BarSeries) LastClose() float64 {
	if b, ok := s.Last(); ok {
		return b.Close
	}
	return 0
}

// Tail returns a series holding at most the last n bars.
func (s BarSeries) Tail(n int) BarSeries {
	if n <= 0 || len(s.Bars) <= n {
		return s
	}
	return BarSeries{Ticker: s.Ticker, Bars: s.Bars[len(s.Bars)-n:]}
}

// Return computes the fractional close-to-close return over the trailing
// `back` bars ((c[-1]-c[-back])/c[-back]); ok is false when there is not
// enough history or the base close is zero.
func (s BarSeries) Return(back int) (float64, bool) {
	if back <= 0 || len(s.Bars) < back {
		return 0, false
	}
	base := s.Bars[len(s.Bars)-back].Close
	if base == 0 {
		return 0, false
	}
	return (s.LastClose() - base) / base, true
}
