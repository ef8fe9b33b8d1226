package screen

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

type fakeMarketData struct {
	caps     map[string]float64
	intraday map[string]models.BarSeries
	failing  map[string]bool
}

func (f *fakeMarketData) DailyBars(ctx context.Context, ticker string, lookback int) (models.BarSeries, error) {
	return models.BarSeries{}, fmt.Errorf("not wired")
}

func (f *fakeMarketData) IntradayBars(ctx context.Context, ticker string, window time.Duration) (models.BarSeries, error) {
	if f.failing[ticker] {
		return models.BarSeries{}, fmt.Errorf("feed down for %s", ticker)
	}
	return f.intraday[ticker], nil
}

func (f *fakeMarketData) StaticInfo(ctx context.Context, ticker string) (models.StaticInfo, error) {
	if f.failing[ticker] {
		return models.StaticInfo{}, fmt.Errorf("feed down for %s", ticker)
	}
	return models.StaticInfo{Ticker: ticker, MarketCap: f.caps[ticker]}, nil
}

func (f *fakeMarketData) Universe(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("not wired")
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(string)                {}
func (nopMetrics) RecordStageCount(string, int)    {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}
func (nopMetrics) RecordPowerScore(string, float64) {}

func intradayFor(ticker string, typical float64) models.BarSeries {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 5)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * time.Minute),
			High:   typical,
			Low:    typical,
			Close:  typical,
			Volume: 10_000,
		}
	}
	return models.NewBarSeries(ticker, bars)
}

func TestCapPenalty(t *testing.T) {
	cases := []struct {
		cap  float64
		want float64
	}{
		{150e9, 0.4},
		{100e9, 0.7},
		{50e9, 0.7},
		{20e9, 1.0},
		{5e9, 1.0},
		{0, 1.0},
	}
	for _, c := range cases {
		if got := CapPenalty(c.cap); got != c.want {
			t.Fatalf("cap %v: expected %v, got %v", c.cap, c.want, got)
		}
	}
}

func TestGapPenalty(t *testing.T) {
	if got := GapPenalty(2); got != 1.0 {
		t.Fatalf("expected 1.0, got %v", got)
	}
	if got := GapPenalty(3); got != 1.0 {
		t.Fatalf("expected 1.0 at the boundary, got %v", got)
	}
	if got := GapPenalty(6); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := GapPenalty(30); got != 0.2 {
		t.Fatalf("expected floor 0.2, got %v", got)
	}
}

func TestVWAPPenalty(t *testing.T) {
	if p, s := VWAPPenalty(100, 0, false); p != 1.0 || s != models.VWAPUnknown {
		t.Fatalf("expected neutral unknown, got %v %v", p, s)
	}
	if p, s := VWAPPenalty(99, 100, true); p != 0.2 || s != models.VWAPBelow {
		t.Fatalf("expected below penalty, got %v %v", p, s)
	}
	if p, s := VWAPPenalty(101, 100, true); p != 1.2 || s != models.VWAPAbove {
		t.Fatalf("expected above bonus, got %v %v", p, s)
	}
}

func TestScanAppliesPenalties(t *testing.T) {
	md := &fakeMarketData{
		caps:     map[string]float64{"AAPL": 10e9},
		intraday: map[string]models.BarSeries{"AAPL": intradayFor("AAPL", 90)},
	}
	p := NewPenalizer(md, nopMetrics{}, logger.Nop(), 2, time.Hour)

	c := passingStat("AAPL", 10)
	got := p.Scan(context.Background(), []models.CandidateStat{c})
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	r := got[0]
	if r.Scan.VWAPStatus != models.VWAPAbove {
		t.Fatalf("expected above vwap, got %v", r.Scan.VWAPStatus)
	}
	// cap 1.0 * gap 1.0 * vwap 1.2
	if math.Abs(r.Scan.PowerScore-12) > 1e-9 {
		t.Fatalf("expected score 12, got %v", r.Scan.PowerScore)
	}
}

func TestScanDegradesFailedCandidateOnly(t *testing.T) {
	md := &fakeMarketData{
		caps:     map[string]float64{"GOOD": 10e9},
		intraday: map[string]models.BarSeries{"GOOD": intradayFor("GOOD", 90)},
		failing:  map[string]bool{"BAD": true},
	}
	p := NewPenalizer(md, nopMetrics{}, logger.Nop(), 4, time.Hour)

	good := passingStat("GOOD", 10)
	bad := passingStat("BAD", 8)
	got := p.Scan(context.Background(), []models.CandidateStat{good, bad})
	if len(got) != 2 {
		t.Fatalf("expected both candidates back, got %d", len(got))
	}

	byTicker := map[string]models.ScoredCandidate{}
	for _, r := range got {
		byTicker[r.Ticker] = r
	}
	if byTicker["BAD"].Scan.VWAPStatus != models.VWAPError {
		t.Fatalf("expected degraded status, got %v", byTicker["BAD"].Scan.VWAPStatus)
	}
	if byTicker["BAD"].Scan.PowerScore != 8 {
		t.Fatalf("expected neutral score 8, got %v", byTicker["BAD"].Scan.PowerScore)
	}
	if byTicker["GOOD"].Scan.PowerScore != 12 {
		t.Fatalf("expected healthy score 12, got %v", byTicker["GOOD"].Scan.PowerScore)
	}
}

func TestScanRanksAndCaps(t *testing.T) {
	md := &fakeMarketData{caps: map[string]float64{}, intraday: map[string]models.BarSeries{}}
	p := NewPenalizer(md, nopMetrics{}, logger.Nop(), 4, time.Hour)

	stats := make([]models.CandidateStat, 0, 15)
	for i := 0; i < 15; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		md.caps[ticker] = 5e9
		md.intraday[ticker] = intradayFor(ticker, 90)
		stats = append(stats, passingStat(ticker, float64(i+1)))
	}

	got := p.Scan(context.Background(), stats)
	if len(got) != TopShortlist {
		t.Fatalf("expected shortlist of %d, got %d", TopShortlist, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Scan.PowerScore > got[i-1].Scan.PowerScore {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
	if got[0].Ticker != "T14" {
		t.Fatalf("expected T14 first, got %v", got[0].Ticker)
	}
}

func TestScanDeterministic(t *testing.T) {
	md := &fakeMarketData{
		caps: map[string]float64{"A": 5e9, "B": 5e9, "C": 5e9},
		intraday: map[string]models.BarSeries{
			"A": intradayFor("A", 90),
			"B": intradayFor("B", 90),
			"C": intradayFor("C", 90),
		},
	}
	p := NewPenalizer(md, nopMetrics{}, logger.Nop(), 3, time.Hour)
	stats := []models.CandidateStat{passingStat("A", 3), passingStat("B", 2), passingStat("C", 1)}

	first := p.Scan(context.Background(), stats)
	for i := 0; i < 5; i++ {
		again := p.Scan(context.Background(), stats)
		for j := range first {
			if first[j].Ticker != again[j].Ticker || first[j].Scan.PowerScore != again[j].Scan.PowerScore {
				t.Fatalf("scan order changed between runs at %d", j)
			}
		}
	}
}

func TestScanOrderIndependent(t *testing.T) {
	md := &fakeMarketData{caps: map[string]float64{}, intraday: map[string]models.BarSeries{}}
	p := NewPenalizer(md, nopMetrics{}, logger.Nop(), 4, time.Hour)

	stats := make([]models.CandidateStat, 0, 12)
	for i := 0; i < 12; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		md.caps[ticker] = []float64{5e9, 30e9, 150e9}[i%3]
		md.intraday[ticker] = intradayFor(ticker, []float64{90, 110}[i%2])
		s := passingStat(ticker, float64(i+1))
		s.GapPct = []float64{1, 6}[i%2]
		stats = append(stats, s)
	}

	baseline := p.Scan(context.Background(), stats)

	permuted := make([]models.CandidateStat, len(stats))
	for i, s := range stats {
		permuted[(i*5)%len(stats)] = s
	}
	reversed := make([]models.CandidateStat, len(stats))
	for i, s := range stats {
		reversed[len(stats)-1-i] = s
	}

	for name, in := range map[string][]models.CandidateStat{"permuted": permuted, "reversed": reversed} {
		got := p.Scan(context.Background(), in)
		if len(got) != len(baseline) {
			t.Fatalf("%s input: shortlist size %d, want %d", name, len(got), len(baseline))
		}
		for j := range baseline {
			if got[j].Ticker != baseline[j].Ticker || got[j].Scan.PowerScore != baseline[j].Scan.PowerScore {
				t.Fatalf("%s input: rank %d is %s @ %v, want %s @ %v",
					name, j, got[j].Ticker, got[j].Scan.PowerScore,
					baseline[j].Ticker, baseline[j].Scan.PowerScore)
			}
		}
	}
}
