package ladder

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/internal/domain/risk"
	"github.com/hislov/overdrive-bot/internal/services/indicators"
)

// ErrInfeasible is returned when the inputs admit no bracket with positive
// per-share risk. No partial plan is ever emitted.
var ErrInfeasible = errors.New("ladder: non-positive risk per share")

// Input carries everything the synthesizer needs. All derived quantities
// are deterministic functions of these fields; synthesis is a pure function.
type Input struct {
	Series    models.BarSeries
	Scan      models.DeepScanResult
	ATR       float64 // pass 0 to compute from Series
	LivePrice float64 // most recent intraday close; 0 when unavailable
	PreMarket bool
	Defensive bool
	Policy    risk.Policy
	Now       time.Time
}

// capScale compresses ladder distances for mega caps, which move in
// tighter ranges.
func capScale(marketCap float64) float64 {
	switch {
	case marketCap > 100_000_000_000:
		return 0.5
	case marketCap > 20_000_000_000:
		return 0.7
	default:
		return 1.0
	}
}

// limitOffset places the limit slightly below the trigger so the order
// fills on a falling-through-trigger execution model.
func limitOffset(price float64) float64 {
	return math.Max(0.10, price*0.002)
}

// Synthesize derives the complete bracket-order ladder for one chosen
// instrument. Invariants hold by construction: TP2Trigger > TP1Trigger,
// Quantity even and >= 2, Stop2 < Stop1, and MaxLossUSD within the policy's
// per-trade cap up to one share-pair of rounding.
func Synthesize(in Input) (*models.TradePlan, error) {
	if in.Series.Len() == 0 {
		return nil, fmt.Errorf("ladder: empty series for %s", in.Scan.Ticker)
	}

	atr := in.ATR
	if atr <= 0 {
		atr = indicators.ATR(in.Series, indicators.DefaultATRPeriod)
	}

	yesterdayClose := in.Series.LastClose()
	if b, ok := in.Series.At(-2); ok {
		yesterdayClose = b.Close
	}

	// Live reference price, falling back to yesterday's close when the feed
	// is stale. The source distinction is informational only.
	entry1 := yesterdayClose
	priceSource := "prev_close"
	if in.LivePrice != 0 && in.LivePrice != yesterdayClose {
		entry1 = in.LivePrice
		priceSource = "live"
	}

	scale := capScale(in.Scan.MarketCap)

	vwap := in.Scan.IntradayVWAP
	if vwap <= 0 {
		vwap = entry1
	}

	var entry2 float64
	switch {
	case in.PreMarket:
		entry2 = entry1 - atr*0.5*scale
	case math.Abs(vwap-entry1)/entry1 < 0.002:
		entry2 = entry1 - atr*0.3*scale
	default:
		entry2 = vwap
	}
	avgEntry := (entry1 + entry2) / 2.0

	riskMultiplier := 1.0
	if in.Defensive {
		riskMultiplier = 1.2
	}
	stopDistance := math.Max(atr*riskMultiplier*scale, avgEntry*0.01)
	stop1 := avgEntry - stopDistance
	stop2 := stop1 - 0.10 // secondary buffer so the second stop order is never price-identical

	gapDiscount := 1.0
	if in.Scan.GapPct > 0 {
		gapDiscount = math.Max(0.5, 1.0-in.Scan.GapPct/10.0)
	}
	rewardUnit := math.Max(atr*0.8*scale*gapDiscount, avgEntry*0.008)

	// Hard theoretical cap on achievable upside for the session.
	ceiling := yesterdayClose + atr*1.5

	tp1 := math.Min(avgEntry+rewardUnit, ceiling*0.998)
	if in.Scan.IntradayHigh > avgEntry && tp1 > in.Scan.IntradayHigh {
		// Front-run the known resistance rather than chase past it.
		tp1 = math.Max(in.Scan.IntradayHigh*0.998, avgEntry*1.005)
	}

	tp2 := math.Min(avgEntry+rewardUnit*3.0, ceiling*1.01)
	if tp2 <= tp1 {
		tp2 = tp1 + avgEntry*0.005
	}

	profitPerShare := tp1 - avgEntry
	riskPerShare := avgEntry - stop1
	if riskPerShare <= 0 || profitPerShare <= 0 {
		return nil, ErrInfeasible
	}

	qty := positionSize(profitPerShare, riskPerShare, avgEntry, in.Policy)
	half := qty / 2

	plan := &models.TradePlan{
		Ticker:            in.Scan.Ticker,
		PlanTime:          in.Now,
		Entry1Price:       entry1,
		Entry2Price:       entry2,
		AvgEntry:          avgEntry,
		Stop1Price:        stop1,
		Stop2Price:        stop2,
		TP1Trigger:        tp1,
		TP1Limit:          tp1 - limitOffset(tp1),
		TP2Trigger:        tp2,
		TP2Limit:          tp2 - limitOffset(tp2),
		Quantity:          qty,
		HalfQuantity:      half,
		MaxLossUSD:        riskPerShare * float64(qty),
		ExpectedProfitUSD: profitPerShare * float64(half),
		ATR:               atr,
		Ceiling:           ceiling,
		PriceSource:       priceSource,
		GapDiscount:       gapDiscount,
		CapScale:          scale,
		Defensive:         in.Defensive,
	}
	return plan, nil
}

// positionSize applies the even-lot ideal size under the two simultaneous
// caps (risk fraction and slot capital). The "+1 then double" arithmetic is
// preserved exactly: it splits the position into two equal exit brackets.
func positionSize(profitPerShare, riskPerShare, avgEntry float64, p risk.Policy) int {
	ideal := (int(p.TargetProfitUSD/profitPerShare) + 1) * 2

	capByRisk := int(p.MaxRiskUSD() / riskPerShare)
	if capByRisk < 2 {
		capByRisk = 2
	}
	capBySlot := int(p.SlotCapital() / avgEntry)
	if capBySlot < 2 {
		capBySlot = 2
	}

	qty := ideal
	if capByRisk < qty {
		qty = capByRisk
	}
	if capBySlot < qty {
		qty = capBySlot
	}
	if qty%2 != 0 {
		qty--
	}
	if qty < 2 {
		qty = 2
	}
	return qty
}
