package indicators

import (
	"math"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

// DefaultATRPeriod is the standard ATR lookback.
const DefaultATRPeriod = 14

// TrueRange computes max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(bar models.Bar, prevClose float64) float64 {
	tr := bar.High - bar.Low
	if d := math.Abs(bar.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(bar.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// ATR is the rolling mean of true range over `period` bars ending at the
// last bar. With fewer than period+1 bars it fails over to 2% of the last
// close; it never returns an error.
func ATR(series models.BarSeries, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	bars := series.Bars
	if len(bars) < period+1 {
		return series.LastClose() * 0.02
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return sum / float64(period)
}

// SMA is the simple moving average of close over the trailing window.
// Callers must guard for len >= window; ok is false otherwise.
func SMA(series models.BarSeries, window int) (float64, bool) {
	bars := series.Bars
	if window <= 0 || len(bars) < window {
		return 0, false
	}
	sum := 0.0
	for i := len(bars) - window; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(window), true
}

// SessionVWAP computes volume-weighted typical price over the given bars.
// ok is false when total volume is zero (VWAP undefined).
func SessionVWAP(series models.BarSeries) (float64, bool) {
	var pv, vol float64
	for _, b := range series.Bars {
		typical := (b.High + b.Low + b.Close) / 3.0
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol <= 0 {
		return 0, false
	}
	return pv / vol, true
}

// SessionHigh returns the highest high over the given bars, or fallback when
// the series is empty.
func SessionHigh(series models.BarSeries, fallback float64) float64 {
	if len(series.Bars) == 0 {
		return fallback
	}
	high := series.Bars[0].High
	for _, b := range series.Bars[1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// AvgVolume averages volume over the `n` bars preceding the last one
// (bars[-n-1:-1]); ok is false with insufficient history.
func AvgVolume(series models.BarSeries, n int) (float64, bool) {
	bars := series.Bars
	if n <= 0 || len(bars) < n+1 {
		return 0, false
	}
	sum := 0.0
	for i := len(bars) - 1 - n; i < len(bars)-1; i++ {
		sum += bars[i].Volume
	}
	return sum / float64(n), true
}
