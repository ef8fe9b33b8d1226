package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

func mkSeries(closes ...float64) models.BarSeries {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return models.NewBarSeries("TEST", bars)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTrueRange(t *testing.T) {
	bar := models.Bar{High: 105, Low: 100, Close: 103}

	if got := TrueRange(bar, 102); !almostEqual(got, 5) {
		t.Fatalf("expected plain range 5, got %v", got)
	}
	// Gap up: prev close far below the low.
	if got := TrueRange(bar, 90); !almostEqual(got, 15) {
		t.Fatalf("expected gap range 15, got %v", got)
	}
	// Gap down: prev close far above the high.
	if got := TrueRange(bar, 120); !almostEqual(got, 20) {
		t.Fatalf("expected gap range 20, got %v", got)
	}
}

func TestATRShortHistoryFailover(t *testing.T) {
	s := mkSeries(100, 101, 102)
	got := ATR(s, 14)
	want := 102 * 0.02
	if !almostEqual(got, want) {
		t.Fatalf("expected failover %v, got %v", want, got)
	}
}

func TestATRFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	s := mkSeries(closes...)
	// Every bar: high-low = 2, prev close inside the range.
	if got := ATR(s, 14); !almostEqual(got, 2) {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestATRZeroPeriodUsesDefault(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50
	}
	s := mkSeries(closes...)
	if got, want := ATR(s, 0), ATR(s, DefaultATRPeriod); !almostEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSMA(t *testing.T) {
	s := mkSeries(1, 2, 3, 4, 5)
	got, ok := SMA(s, 3)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 4) {
		t.Fatalf("expected 4, got %v", got)
	}
	if _, ok := SMA(s, 6); ok {
		t.Fatalf("expected not ok on short series")
	}
}

func TestSessionVWAP(t *testing.T) {
	bars := []models.Bar{
		{Time: time.Unix(1, 0), High: 12, Low: 8, Close: 10, Volume: 100},
		{Time: time.Unix(2, 0), High: 22, Low: 18, Close: 20, Volume: 300},
	}
	s := models.NewBarSeries("TEST", bars)
	got, ok := SessionVWAP(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	// (10*100 + 20*300) / 400
	if !almostEqual(got, 17.5) {
		t.Fatalf("expected 17.5, got %v", got)
	}
}

func TestSessionVWAPZeroVolume(t *testing.T) {
	bars := []models.Bar{{Time: time.Unix(1, 0), High: 10, Low: 10, Close: 10}}
	if _, ok := SessionVWAP(models.NewBarSeries("TEST", bars)); ok {
		t.Fatalf("expected not ok with zero volume")
	}
}

func TestSessionHighFallback(t *testing.T) {
	if got := SessionHigh(models.BarSeries{}, 42); !almostEqual(got, 42) {
		t.Fatalf("expected fallback 42, got %v", got)
	}
	s := mkSeries(10, 30, 20)
	if got := SessionHigh(s, 0); !almostEqual(got, 31) {
		t.Fatalf("expected 31, got %v", got)
	}
}

func TestAvgVolumeExcludesLastBar(t *testing.T) {
	s := mkSeries(1, 2, 3, 4)
	s.Bars[3].Volume = 9_000_000 // the in-progress bar must not dilute the average
	got, ok := AvgVolume(s, 3)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 1_000_000) {
		t.Fatalf("expected 1000000, got %v", got)
	}
	if _, ok := AvgVolume(s, 4); ok {
		t.Fatalf("expected not ok without n+1 bars")
	}
}
