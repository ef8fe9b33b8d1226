package models

import "time"

// TradePlan is the complete bracket-order ladder for one chosen instrument.
// Derived once per run; all fields are deterministic functions of the inputs.
// Invariants enforced at construction: TP2Trigger > TP1Trigger, Quantity is
// even and >= 2, Stop2 < Stop1, MaxLossUSD bounded by the risk policy up to
// one share-pair of rounding.
type TradePlan struct {
	Ticker   string
	PlanTime time.Time

	Entry1Price float64
	Entry2Price float64
	AvgEntry    float64

	Stop1Price float64
	Stop2Price float64

	TP1Trigger float64
	TP1Limit   float64
	TP2Trigger float64
	TP2Limit   float64

	Quantity     int
	HalfQuantity int

	MaxLossUSD        float64
	ExpectedProfitUSD float64

	ATR         float64
	Ceiling     float64
	PriceSource string
	GapDiscount float64
	CapScale    float64
	Defensive   bool
}

// RunOutcomeKind classifies how a pipeline run terminated.
type RunOutcomeKind string

const (
	OutcomePlan     RunOutcomeKind = "trade_plan"
	OutcomeNoTarget RunOutcomeKind = "no_target"
	OutcomeRejected RunOutcomeKind = "rejected"
	OutcomeFailed   RunOutcomeKind = "failed"
)

// RunOutcome is the result of one pipeline run.
type RunOutcome struct {
	Kind      RunOutcomeKind
	Ticker    string
	Score     float64
	Plan      *TradePlan
	Rationale string
	// PriorFailed counts tickers carried over from earlier failed runs.
	// A non-zero value marks the run as a second shot.
	PriorFailed int
	Regime    RegimeSnapshot
	Mode      RegimeMode
	StartedAt time.Time
	Elapsed   time.Duration
}

// RunRecord is the persisted blackbox row for one run.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Outcome   string
	Mode      string
	Ticker    string
	Score     float64
	VIX       float64
	AvgEntry  float64
	Stop1     float64
	TP1       float64
	TP2       float64
	Quantity  int
	MaxLoss   float64
	Rationale string
}
