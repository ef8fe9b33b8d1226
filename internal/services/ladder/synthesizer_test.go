package ladder

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
)

func ladderSeries(closes ...float64) models.BarSeries {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Time: base.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1_000_000,
		}
	}
	return models.NewBarSeries("TEST", bars)
}

func baseInput() Input {
	return Input{
		Series: ladderSeries(98, 99, 100),
		Scan: models.DeepScanResult{
			Ticker:       "TEST",
			PowerScore:   10,
			MarketCap:    5e9,
			IntradayVWAP: 99.4,
		},
		ATR:       1.0,
		LivePrice: 100,
		Policy:    risk.Default(),
		Now:       time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC),
	}
}

func TestSynthesizeLadderShape(t *testing.T) {
	plan, err := Synthesize(baseInput())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if plan.PriceSource != "live" {
		t.Fatalf("expected live price source, got %v", plan.PriceSource)
	}
	if plan.Entry1Price != 100 {
		t.Fatalf("expected entry1 100, got %v", plan.Entry1Price)
	}
	// VWAP is more than 0.2% away from entry1, so it becomes the second rung.
	if math.Abs(plan.Entry2Price-99.4) > 1e-9 {
		t.Fatalf("expected entry2 99.4, got %v", plan.Entry2Price)
	}
	if math.Abs(plan.AvgEntry-99.7) > 1e-9 {
		t.Fatalf("expected avg 99.7, got %v", plan.AvgEntry)
	}
	// Stop distance is max(ATR, 1% of avg) = 1.0.
	if math.Abs(plan.Stop1Price-98.7) > 1e-9 {
		t.Fatalf("expected stop1 98.7, got %v", plan.Stop1Price)
	}
	if math.Abs(plan.Stop2Price-98.6) > 1e-9 {
		t.Fatalf("expected stop2 98.6, got %v", plan.Stop2Price)
	}
}

func TestSynthesizeInvariants(t *testing.T) {
	plan, err := Synthesize(baseInput())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if plan.TP2Trigger <= plan.TP1Trigger {
		t.Fatalf("tp2 %v must exceed tp1 %v", plan.TP2Trigger, plan.TP1Trigger)
	}
	if plan.TP1Limit >= plan.TP1Trigger || plan.TP2Limit >= plan.TP2Trigger {
		t.Fatalf("limits must sit below triggers")
	}
	if plan.Stop2Price >= plan.Stop1Price {
		t.Fatalf("stop2 %v must sit below stop1 %v", plan.Stop2Price, plan.Stop1Price)
	}
	if plan.Quantity < 2 || plan.Quantity%2 != 0 {
		t.Fatalf("quantity must be even and >= 2, got %d", plan.Quantity)
	}
	if plan.HalfQuantity*2 != plan.Quantity {
		t.Fatalf("half quantity mismatch: %d vs %d", plan.HalfQuantity, plan.Quantity)
	}
	riskPerShare := plan.AvgEntry - plan.Stop1Price
	// The even-lot rounding can overshoot the cap by at most one share pair.
	if plan.MaxLossUSD > risk.Default().MaxRiskUSD()+2*riskPerShare {
		t.Fatalf("max loss %v breaches the policy cap", plan.MaxLossUSD)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	first, err := Synthesize(baseInput())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	second, err := Synthesize(baseInput())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans diverged for identical inputs")
	}
}

func TestSynthesizePreMarketEntry(t *testing.T) {
	in := baseInput()
	in.PreMarket = true
	plan, err := Synthesize(in)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	// entry1 - ATR*0.5*scale
	if math.Abs(plan.Entry2Price-99.5) > 1e-9 {
		t.Fatalf("expected pre-market entry2 99.5, got %v", plan.Entry2Price)
	}
}

func TestSynthesizeStaleFeedFallsBackToClose(t *testing.T) {
	in := baseInput()
	in.LivePrice = 0
	plan, err := Synthesize(in)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if plan.PriceSource != "prev_close" {
		t.Fatalf("expected prev_close source, got %v", plan.PriceSource)
	}
	// At(-2) close of the three-bar series.
	if plan.Entry1Price != 99 {
		t.Fatalf("expected entry1 99, got %v", plan.Entry1Price)
	}
}

func TestSynthesizeMegaCapCompression(t *testing.T) {
	in := baseInput()
	in.Scan.MarketCap = 150e9
	in.PreMarket = true
	plan, err := Synthesize(in)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if plan.CapScale != 0.5 {
		t.Fatalf("expected scale 0.5, got %v", plan.CapScale)
	}
	// entry1 - ATR*0.5*0.5
	if math.Abs(plan.Entry2Price-99.75) > 1e-9 {
		t.Fatalf("expected compressed entry2 99.75, got %v", plan.Entry2Price)
	}
}

func TestSynthesizeGapDiscount(t *testing.T) {
	in := baseInput()
	in.Scan.GapPct = 4.0
	plan, err := Synthesize(in)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if math.Abs(plan.GapDiscount-0.6) > 1e-9 {
		t.Fatalf("expected discount 0.6, got %v", plan.GapDiscount)
	}
}

func TestSynthesizeInfeasible(t *testing.T) {
	in := baseInput()
	// Price ran far past yesterday's ceiling; every target would sit below
	// the average entry.
	in.Series = ladderSeries(9, 10, 10)
	in.ATR = 0.2
	in.LivePrice = 100
	in.Scan.IntradayVWAP = 0

	plan, err := Synthesize(in)
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("expected ErrInfeasible, got %v", err)
	}
	if plan != nil {
		t.Fatalf("expected no partial plan")
	}
}

func TestSynthesizeEmptySeries(t *testing.T) {
	in := baseInput()
	in.Series = models.BarSeries{}
	if _, err := Synthesize(in); err == nil {
		t.Fatalf("expected error on empty series")
	}
}

func TestPositionSizeEvenLot(t *testing.T) {
	p := risk.Default()

	// Slot capital is the binding cap: 34400/50 = 688, already even.
	if got := positionSize(1.0, 0.5, 50, p); got != 688 {
		t.Fatalf("expected 688, got %d", got)
	}
	// Ideal size binds: (600/50+1)*2 = 26.
	if got := positionSize(50, 1.0, 50, p); got != 26 {
		t.Fatalf("expected 26, got %d", got)
	}
	// Risk cap binds and rounds down to even: 645/2 = 322.
	if got := positionSize(1.0, 2.0, 10, p); got != 322 {
		t.Fatalf("expected 322, got %d", got)
	}
	// Floor at one share pair.
	if got := positionSize(0.01, 1000, 100000, p); got != 2 {
		t.Fatalf("expected floor 2, got %d", got)
	}
}
