package screen

import (
	"sort"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
	"github.com/hislov/overdrive-bot/internal/services/indicators"
)

// Screening constants. Price band and the pre-market volume floor are fixed;
// the tier thresholds vary with the regime.
const (
	MinPrice = 5.0
	MaxPrice = 1500.0

	// Volume below this during pre-market is treated as noise and forces
	// the spike to 0 (divide-by-noise guard).
	PreMarketVolumeFloor = 50_000

	TopCandidates = 20
)

// Tier is one filter stage of the cascade.
type Tier struct {
	Name       string
	MinSpike   float64
	MinRS      float64
	MaxGapPct  float64
	TrendCheck bool
}

// Thresholds are the regime-resolved cascade parameters.
type Thresholds struct {
	Tier1   Tier
	Tier2   Tier
	MinPass int
}

// ThresholdsFor resolves tier thresholds for a regime mode. Defensive mode
// loosens spike/rs and drops the trend requirement; elevated volatility
// tightens both.
func ThresholdsFor(mode models.RegimeMode, policy risk.Policy) Thresholds {
	t := Thresholds{
		Tier2:   Tier{Name: "tier2", MinSpike: 0.8, MinRS: -0.05, MaxGapPct: 20.0, TrendCheck: false},
		MinPass: 15,
	}
	switch mode {
	case models.RegimeDefensive:
		t.Tier1 = Tier{Name: "tier1", MinSpike: 1.2, MinRS: -0.05, MaxGapPct: policy.MaxGapUpPct, TrendCheck: false}
		t.MinPass = 5
	case models.RegimeElevated:
		t.Tier1 = Tier{Name: "tier1", MinSpike: 2.0, MinRS: 0.05, MaxGapPct: policy.MaxGapUpPct, TrendCheck: true}
	default:
		t.Tier1 = Tier{Name: "tier1", MinSpike: 1.5, MinRS: 0.0, MaxGapPct: policy.MaxGapUpPct, TrendCheck: true}
	}
	return t
}

// ModeFor maps the macro snapshot onto a regime mode. A forced ticker pins
// the run to the normal (long) engine regardless of volatility.
func ModeFor(snap models.RegimeSnapshot, policy risk.Policy, forcedTicker string) models.RegimeMode {
	switch {
	case snap.VolatilityIndex >= policy.VolKillSwitch && forcedTicker == "":
		return models.RegimeDefensive
	case snap.VolatilityIndex >= policy.ElevatedVol:
		return models.RegimeElevated
	default:
		return models.RegimeNormal
	}
}

// BuildStat derives the per-instrument screening record from its daily
// series and the reference-index returns. ok is false when the series is
// unusable (too short, zero prev close).
func BuildStat(series models.BarSeries, refRet10, refRet20 float64, progress float64, preMarket bool) (models.CandidateStat, bool) {
	if !series.Usable() {
		return models.CandidateStat{}, false
	}

	ret10, ok10 := series.Return(10)
	ret20, ok20 := series.Return(20)
	if !ok10 || !ok20 {
		return models.CandidateStat{}, false
	}
	rs := 0.6*(ret10-refRet10) + 0.4*(ret20-refRet20)

	last, _ := series.Last()
	prev, ok := series.At(-2)
	if !ok || prev.Close <= 0 {
		return models.CandidateStat{}, false
	}

	avgVol, okV := indicators.AvgVolume(series, 10)
	spike := 0.0
	if preMarket && last.Volume < PreMarketVolumeFloor {
		spike = 0.0
	} else if okV && avgVol > 0 && progress > 0 {
		spike = (last.Volume / progress) / avgVol
	}

	sma20, _ := indicators.SMA(series, 20)
	gap := (last.Open - prev.Close) / prev.Close * 100

	return models.CandidateStat{
		Ticker:           series.Ticker,
		Price:            last.Close,
		PrevClose:        prev.Close,
		RelativeStrength: rs,
		VolumeSpike:      spike,
		SMA20:            sma20,
		GapPct:           gap,
		BasicPowerScore:  (rs + 1.0) * spike,
	}, true
}

func (t Tier) passes(c models.CandidateStat) bool {
	if c.Price < MinPrice || c.Price > MaxPrice {
		return false
	}
	if c.VolumeSpike < t.MinSpike || c.RelativeStrength < t.MinRS {
		return false
	}
	if c.GapPct >= t.MaxGapPct {
		return false
	}
	if t.TrendCheck && c.Price <= c.SMA20 {
		return false
	}
	return true
}

// Cascade runs the two-tier filter over the stats. Tier 2 is applied only
// when tier 1 yields fewer than MinPass rows; the cascade stops as soon as
// the accumulated set reaches MinPass. An empty result is a valid terminal
// state, not an error. Survivors come back ranked descending by basic power
// score, capped at TopCandidates.
func Cascade(stats []models.CandidateStat, th Thresholds) []models.CandidateStat {
	passed := make([]models.CandidateStat, 0, len(stats))
	seen := make(map[string]bool, len(stats))

	for _, tier := range []Tier{th.Tier1, th.Tier2} {
		for _, c := range stats {
			if seen[c.Ticker] {
				continue
			}
			if tier.passes(c) {
				seen[c.Ticker] = true
				passed = append(passed, c)
			}
		}
		if len(passed) >= th.MinPass {
			break
		}
	}

	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].BasicPowerScore > passed[j].BasicPowerScore
	})
	if len(passed) > TopCandidates {
		passed = passed[:TopCandidates]
	}
	return passed
}
