package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

func planOutcome() models.RunOutcome {
	return models.RunOutcome{
		Kind:      models.OutcomePlan,
		Ticker:    "NVDA",
		Score:     4.215,
		Rationale: "clean continuation",
		Regime:    models.RegimeSnapshot{VolatilityIndex: 17.4, RateProxy: 4.1},
		Mode:      models.RegimeNormal,
		StartedAt: time.Date(2025, 6, 2, 9, 45, 0, 0, time.UTC),
		Elapsed:   12 * time.Second,
		Plan: &models.TradePlan{
			Ticker:       "NVDA",
			Entry1Price:  100,
			Entry2Price:  99.4,
			AvgEntry:     99.7,
			Stop1Price:   98.7,
			Stop2Price:   98.6,
			TP1Trigger:   100.3,
			TP1Limit:     100.1,
			TP2Trigger:   101.5,
			TP2Limit:     101.3,
			Quantity:     344,
			HalfQuantity: 172,
			MaxLossUSD:   344,
			PriceSource:  "live",
			GapDiscount:  1.0,
			CapScale:     1.0,
		},
	}
}

func TestFormatReportPlan(t *testing.T) {
	got := FormatReport(planOutcome())

	for _, want := range []string{
		"OVERDRIVE HUNT TRADE_PLAN",
		"regime: normal  vix: 17.40",
		"TARGET: NVDA",
		"--- ORDER LADDER ---",
		"(live)",
		"--- SIZING ---",
		"quantity     344  (x172 per bracket)",
		"--- CONTEXT ---",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "defensive regime") {
		t.Fatalf("non-defensive plan must not carry the defensive note")
	}
	if strings.Contains(got, "second shot") {
		t.Fatalf("run without prior failures must not carry the second-shot note")
	}
}

func TestFormatReportSecondShotNote(t *testing.T) {
	out := planOutcome()
	out.PriorFailed = 2
	if !strings.Contains(FormatReport(out), "second shot: 2 earlier failure(s) excluded") {
		t.Fatalf("expected second-shot note")
	}
}

func TestFormatReportDefensiveNote(t *testing.T) {
	out := planOutcome()
	out.Plan.Defensive = true
	if !strings.Contains(FormatReport(out), "defensive regime: inverse universe active") {
		t.Fatalf("expected defensive note")
	}
}

func TestFormatReportNoTarget(t *testing.T) {
	got := FormatReport(models.RunOutcome{
		Kind:      models.OutcomeNoTarget,
		Rationale: "no candidates passed the cascade",
	})
	if !strings.Contains(got, "NO TARGET TODAY") {
		t.Fatalf("missing terminal label:\n%s", got)
	}
	if !strings.Contains(got, "no candidates passed the cascade") {
		t.Fatalf("missing rationale:\n%s", got)
	}
}

func TestFormatReportRejected(t *testing.T) {
	got := FormatReport(models.RunOutcome{Kind: models.OutcomeRejected})
	if !strings.Contains(got, "SELECTOR REJECTED ALL CANDIDATES") {
		t.Fatalf("missing rejection label:\n%s", got)
	}
}

func TestFormatReportFailed(t *testing.T) {
	got := FormatReport(models.RunOutcome{
		Kind:      models.OutcomeFailed,
		Ticker:    "NVDA",
		Rationale: "ladder synthesis refused",
	})
	if !strings.Contains(got, "RUN FAILED") || !strings.Contains(got, "ticker: NVDA") {
		t.Fatalf("missing failure details:\n%s", got)
	}
}
