package models

// RegimeSnapshot holds the macro inputs read once per run.
type RegimeSnapshot struct {
	VolatilityIndex float64
	RateProxy       float64
}

// RegimeMode selects cascade thresholds and the instrument universe.
type RegimeMode int

const (
	RegimeNormal RegimeMode = iota
	RegimeElevated
	RegimeDefensive
)

func (m RegimeMode) String() string {
	switch m {
	case RegimeElevated:
		return "elevated"
	case RegimeDefensive:
		return "defensive"
	default:
		return "normal"
	}
}

// Defensive reports whether the alternate (inverse) universe is active.
func (m RegimeMode) Defensive() bool { return m == RegimeDefensive }

// CandidateStat is the per-instrument record derived by the screening
// cascade. Invariant: BasicPowerScore = (RelativeStrength+1)*VolumeSpike and
// is 0 whenever VolumeSpike is 0.
type CandidateStat struct {
	Ticker           string
	Price            float64
	PrevClose        float64
	RelativeStrength float64
	VolumeSpike      float64
	SMA20            float64
	GapPct           float64
	BasicPowerScore  float64
}

// VWAPStatus labels where the current price sits relative to session VWAP.
type VWAPStatus string

const (
	VWAPAbove   VWAPStatus = "above_vwap"
	VWAPBelow   VWAPStatus = "below_vwap"
	VWAPUnknown VWAPStatus = "unknown"
	VWAPError   VWAPStatus = "error"
)

// DeepScanResult refines exactly one CandidateStat with intraday inspection.
// PowerScore = BasicPowerScore * penalty where penalty is the product of the
// independent capitalization, gap, and VWAP adjustments.
type DeepScanResult struct {
	Ticker       string
	PowerScore   float64
	MarketCap    float64
	GapPct       float64
	IntradayVWAP float64
	IntradayHigh float64
	VWAPStatus   VWAPStatus
}

// ScoredCandidate pairs a cascade stat with its deep-scan refinement.
type ScoredCandidate struct {
	CandidateStat
	Scan DeepScanResult
}

// SelectionVerdict is the external selector's answer. An empty Winner means
// all candidates were rejected (or the response could not be trusted).
type SelectionVerdict struct {
	Winner    string
	Rationale string
}

// Rejected reports whether the verdict carries no winner.
func (v SelectionVerdict) Rejected() bool { return v.Winner == "" }

// StaticInfo is the slow-moving per-instrument metadata needed by the deep
// scan and the ladder.
type StaticInfo struct {
	Ticker    string
	MarketCap float64
}

// Quote is a live trade tick from the streaming quote source.
type Quote struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
