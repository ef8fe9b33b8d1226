package screen

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
)

func dailySeries(ticker string, n int, lastClose, lastVolume float64) models.BarSeries {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   base.AddDate(0, 0, i),
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1_000_000,
		}
	}
	bars[n-1].Close = lastClose
	bars[n-1].High = lastClose + 1
	bars[n-1].Volume = lastVolume
	return models.NewBarSeries(ticker, bars)
}

func TestBuildStatScore(t *testing.T) {
	s := dailySeries("AAPL", 30, 110, 2_000_000)
	stat, ok := BuildStat(s, 0, 0, 0.5, false)
	if !ok {
		t.Fatalf("expected usable stat")
	}

	// ret10 = ret20 = 0.1 against flat reference returns.
	wantRS := 0.6*0.1 + 0.4*0.1
	if math.Abs(stat.RelativeStrength-wantRS) > 1e-9 {
		t.Fatalf("expected rs %v, got %v", wantRS, stat.RelativeStrength)
	}
	// (2e6 / 0.5) / 1e6 = 4 projected spike.
	if math.Abs(stat.VolumeSpike-4) > 1e-9 {
		t.Fatalf("expected spike 4, got %v", stat.VolumeSpike)
	}
	wantScore := (wantRS + 1.0) * 4
	if math.Abs(stat.BasicPowerScore-wantScore) > 1e-9 {
		t.Fatalf("expected score %v, got %v", wantScore, stat.BasicPowerScore)
	}
}

func TestBuildStatPreMarketVolumeFloor(t *testing.T) {
	s := dailySeries("AAPL", 30, 110, 10_000)
	stat, ok := BuildStat(s, 0, 0, 0.01, true)
	if !ok {
		t.Fatalf("expected usable stat")
	}
	if stat.VolumeSpike != 0 {
		t.Fatalf("expected spike forced to 0, got %v", stat.VolumeSpike)
	}
	if stat.BasicPowerScore != 0 {
		t.Fatalf("expected score 0 with zero spike, got %v", stat.BasicPowerScore)
	}
}

func TestBuildStatShortHistory(t *testing.T) {
	s := dailySeries("AAPL", 10, 110, 2_000_000)
	if _, ok := BuildStat(s, 0, 0, 0.5, false); ok {
		t.Fatalf("expected short series to be rejected")
	}
}

func passingStat(ticker string, score float64) models.CandidateStat {
	return models.CandidateStat{
		Ticker:           ticker,
		Price:            100,
		PrevClose:        100,
		RelativeStrength: 0.1,
		VolumeSpike:      2.0,
		SMA20:            95,
		GapPct:           1.0,
		BasicPowerScore:  score,
	}
}

func TestCascadeEmptyIsTerminal(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())
	if got := Cascade(nil, th); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}

	weak := passingStat("WEAK", 1)
	weak.VolumeSpike = 0.1 // fails both tiers
	if got := Cascade([]models.CandidateStat{weak}, th); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestCascadePriceBand(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())
	cheap := passingStat("PENNY", 5)
	cheap.Price = 4.99
	rich := passingStat("BRK", 5)
	rich.Price = 1501
	if got := Cascade([]models.CandidateStat{cheap, rich}, th); len(got) != 0 {
		t.Fatalf("expected price band to exclude both, got %d", len(got))
	}
}

func TestCascadeTier2Fallback(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())

	t1 := passingStat("STRONG", 8)
	t2 := passingStat("LOOSE", 3)
	t2.VolumeSpike = 1.0         // below tier1's 1.5, above tier2's 0.8
	t2.RelativeStrength = -0.02  // below tier1's 0.0, above tier2's -0.05
	t2.SMA20 = 105               // fails trend, tier2 does not check it

	got := Cascade([]models.CandidateStat{t1, t2}, th)
	if len(got) != 2 {
		t.Fatalf("expected tier2 to rescue the loose candidate, got %d", len(got))
	}
	if got[0].Ticker != "STRONG" || got[1].Ticker != "LOOSE" {
		t.Fatalf("expected score order STRONG,LOOSE, got %v,%v", got[0].Ticker, got[1].Ticker)
	}
}

func TestCascadeStopsOnceMinPassMet(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())
	th.MinPass = 2

	stats := []models.CandidateStat{passingStat("A", 5), passingStat("B", 4)}
	loose := passingStat("C", 3)
	loose.VolumeSpike = 1.0
	stats = append(stats, loose)

	got := Cascade(stats, th)
	if len(got) != 2 {
		t.Fatalf("expected cascade to stop after tier1, got %d", len(got))
	}
	for _, c := range got {
		if c.Ticker == "C" {
			t.Fatalf("tier2-only candidate leaked into a satisfied tier1 pass")
		}
	}
}

func TestCascadeDedupe(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())
	stats := []models.CandidateStat{passingStat("DUP", 5), passingStat("DUP", 5)}
	if got := Cascade(stats, th); len(got) != 1 {
		t.Fatalf("expected dedupe to keep one row, got %d", len(got))
	}
}

func TestCascadeCapsAtTopCandidates(t *testing.T) {
	th := ThresholdsFor(models.RegimeNormal, risk.Default())
	stats := make([]models.CandidateStat, 0, 30)
	for i := 0; i < 30; i++ {
		stats = append(stats, passingStat(fmt.Sprintf("T%02d", i), float64(i)))
	}
	got := Cascade(stats, th)
	if len(got) != TopCandidates {
		t.Fatalf("expected %d survivors, got %d", TopCandidates, len(got))
	}
	if got[0].Ticker != "T29" {
		t.Fatalf("expected highest score first, got %v", got[0].Ticker)
	}
	for i := 1; i < len(got); i++ {
		if got[i].BasicPowerScore > got[i-1].BasicPowerScore {
			t.Fatalf("ranking not descending at %d", i)
		}
	}
}

func TestThresholdsFor(t *testing.T) {
	p := risk.Default()

	n := ThresholdsFor(models.RegimeNormal, p)
	if n.Tier1.MinSpike != 1.5 || n.Tier1.MinRS != 0.0 || !n.Tier1.TrendCheck || n.MinPass != 15 {
		t.Fatalf("unexpected normal thresholds %+v", n)
	}
	e := ThresholdsFor(models.RegimeElevated, p)
	if e.Tier1.MinSpike != 2.0 || e.Tier1.MinRS != 0.05 || !e.Tier1.TrendCheck {
		t.Fatalf("unexpected elevated thresholds %+v", e)
	}
	d := ThresholdsFor(models.RegimeDefensive, p)
	if d.Tier1.MinSpike != 1.2 || d.Tier1.MinRS != -0.05 || d.Tier1.TrendCheck || d.MinPass != 5 {
		t.Fatalf("unexpected defensive thresholds %+v", d)
	}
}

func TestModeFor(t *testing.T) {
	p := risk.Default()

	if got := ModeFor(models.RegimeSnapshot{VolatilityIndex: 10}, p, ""); got != models.RegimeNormal {
		t.Fatalf("expected normal, got %v", got)
	}
	if got := ModeFor(models.RegimeSnapshot{VolatilityIndex: 21}, p, ""); got != models.RegimeElevated {
		t.Fatalf("expected elevated, got %v", got)
	}
	if got := ModeFor(models.RegimeSnapshot{VolatilityIndex: 30}, p, ""); got != models.RegimeDefensive {
		t.Fatalf("expected defensive, got %v", got)
	}
	// A pinned ticker keeps the long engine even past the kill switch.
	if got := ModeFor(models.RegimeSnapshot{VolatilityIndex: 30}, p, "AAPL"); got != models.RegimeElevated {
		t.Fatalf("expected elevated under forced ticker, got %v", got)
	}
}

// Tiers ordered strictest to loosest: every threshold relaxes (or holds)
// at each step, so passing a stricter tier must imply passing the looser
// ones.
func TestTierThresholdMonotonicity(t *testing.T) {
	policy := risk.Default()
	tiers := []Tier{
		ThresholdsFor(models.RegimeElevated, policy).Tier1,
		ThresholdsFor(models.RegimeNormal, policy).Tier1,
		ThresholdsFor(models.RegimeDefensive, policy).Tier1,
		ThresholdsFor(models.RegimeNormal, policy).Tier2,
	}
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		if cur.MinSpike > prev.MinSpike || cur.MinRS > prev.MinRS || cur.MaxGapPct < prev.MaxGapPct {
			t.Fatalf("tier %s is stricter than %s", cur.Name, prev.Name)
		}
		if cur.TrendCheck && !prev.TrendCheck {
			t.Fatalf("tier %s adds a trend check that %s lacks", cur.Name, prev.Name)
		}
	}

	var grid []models.CandidateStat
	n := 0
	for _, spike := range []float64{0.7, 0.9, 1.3, 1.6, 2.1} {
		for _, rs := range []float64{-0.1, -0.02, 0.02, 0.1} {
			for _, gap := range []float64{1, 10, 18, 25} {
				for _, sma := range []float64{95, 105} {
					n++
					grid = append(grid, models.CandidateStat{
						Ticker:           fmt.Sprintf("G%03d", n),
						Price:            100,
						PrevClose:        100,
						RelativeStrength: rs,
						VolumeSpike:      spike,
						SMA20:            sma,
						GapPct:           gap,
						BasicPowerScore:  (rs + 1.0) * spike,
					})
				}
			}
		}
	}

	for _, c := range grid {
		for i := 1; i < len(tiers); i++ {
			if tiers[i-1].passes(c) && !tiers[i].passes(c) {
				t.Fatalf("%s passes %s but fails the looser %s", c.Ticker, tiers[i-1].Name, tiers[i].Name)
			}
		}
	}
}

func TestCascadeRelaxingModeKeepsSurvivors(t *testing.T) {
	policy := risk.Default()
	stats := []models.CandidateStat{
		passingStat("A", 5),
		passingStat("B", 4),
		passingStat("C", 3),
	}
	stats[1].VolumeSpike = 1.6 // passes normal tier 1, not elevated
	stats[2].VolumeSpike = 0.9 // tier 2 only

	strict := Cascade(stats, ThresholdsFor(models.RegimeElevated, policy))
	loose := Cascade(stats, ThresholdsFor(models.RegimeNormal, policy))

	kept := make(map[string]bool, len(loose))
	for _, c := range loose {
		kept[c.Ticker] = true
	}
	for _, c := range strict {
		if !kept[c.Ticker] {
			t.Fatalf("%s survives elevated thresholds but not the looser normal ones", c.Ticker)
		}
	}
	if len(loose) != 3 {
		t.Fatalf("expected all 3 under normal thresholds, got %d", len(loose))
	}
}
