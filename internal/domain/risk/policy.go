package risk

import "fmt"

// Policy carries the global capital-risk constants consumed by the ladder
// synthesizer and the cascade. Values are configuration, not law; Default()
// mirrors the production book.
type Policy struct {
	TotalCapital        float64
	TargetProfitUSD     float64
	SlotCapitalFraction float64
	MaxRiskFraction     float64
	MaxGapUpPct         float64
	VolKillSwitch       float64
	ElevatedVol         float64
}

// Default returns the standing risk policy.
func Default() Policy {
	return Policy{
		TotalCapital:        43000.0,
		TargetProfitUSD:     600.0,
		SlotCapitalFraction: 0.80,
		MaxRiskFraction:     0.015,
		MaxGapUpPct:         15.0,
		VolKillSwitch:       25.0,
		ElevatedVol:         20.0,
	}
}

// SlotCapital is the capital available to one position slot.
func (p Policy) SlotCapital() float64 { return p.TotalCapital * p.SlotCapitalFraction }

// MaxRiskUSD is the hard per-trade loss cap.
func (p Policy) MaxRiskUSD() float64 { return p.TotalCapital * p.MaxRiskFraction }

// Validate rejects self-contradictory policies before a run starts.
func (p Policy) Validate() error {
	if p.TotalCapital <= 0 {
		return fmt.Errorf("total capital must be positive, got %f", p.TotalCapital)
	}
	if p.SlotCapitalFraction <= 0 || p.SlotCapitalFraction > 1 {
		return fmt.Errorf("slot capital fraction must be in (0,1], got %f", p.SlotCapitalFraction)
	}
	if p.MaxRiskFraction <= 0 || p.MaxRiskFraction > 0.1 {
		return fmt.Errorf("max risk fraction must be in (0,0.1], got %f", p.MaxRiskFraction)
	}
	if p.TargetProfitUSD <= 0 {
		return fmt.Errorf("target profit must be positive, got %f", p.TargetProfitUSD)
	}
	return nil
}
