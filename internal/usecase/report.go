package usecase

import (
	"fmt"
	"strings"

	"github.com/hislov/overdrive-bot/internal/domain/models"
)

// FormatReport renders the user-facing run report. Terminal states are
// labeled explicitly; an empty report is never produced.
func FormatReport(out models.RunOutcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "OVERDRIVE HUNT %s\n", strings.ToUpper(string(out.Kind)))
	fmt.Fprintf(&b, "time: %s  elapsed: %.1fs\n",
		out.StartedAt.Format("2006-01-02 15:04:05"), out.Elapsed.Seconds())
	fmt.Fprintf(&b, "regime: %s  vix: %.2f  rate: %.2f\n",
		out.Mode.String(), out.Regime.VolatilityIndex, out.Regime.RateProxy)
	if out.PriorFailed > 0 {
		fmt.Fprintf(&b, "second shot: %d earlier failure(s) excluded\n", out.PriorFailed)
	}

	switch out.Kind {
	case models.OutcomePlan:
		writePlan(&b, out)
	case models.OutcomeNoTarget:
		b.WriteString("\nNO TARGET TODAY\n")
		if out.Rationale != "" {
			fmt.Fprintf(&b, "reason: %s\n", out.Rationale)
		}
	case models.OutcomeRejected:
		b.WriteString("\nSELECTOR REJECTED ALL CANDIDATES\n")
		if out.Rationale != "" {
			fmt.Fprintf(&b, "reason: %s\n", out.Rationale)
		}
	case models.OutcomeFailed:
		b.WriteString("\nRUN FAILED\n")
		if out.Ticker != "" {
			fmt.Fprintf(&b, "ticker: %s\n", out.Ticker)
		}
		if out.Rationale != "" {
			fmt.Fprintf(&b, "reason: %s\n", out.Rationale)
		}
	}

	return b.String()
}

func writePlan(b *strings.Builder, out models.RunOutcome) {
	p := out.Plan

	fmt.Fprintf(b, "\nTARGET: %s  (power score %.3f)\n", out.Ticker, out.Score)
	if out.Rationale != "" {
		fmt.Fprintf(b, "selector: %s\n", out.Rationale)
	}

	b.WriteString("\n--- ORDER LADDER ---\n")
	fmt.Fprintf(b, "entry 1      %8.2f  (%s)\n", p.Entry1Price, p.PriceSource)
	fmt.Fprintf(b, "entry 2      %8.2f\n", p.Entry2Price)
	fmt.Fprintf(b, "avg entry    %8.2f\n", p.AvgEntry)
	fmt.Fprintf(b, "stop 1       %8.2f\n", p.Stop1Price)
	fmt.Fprintf(b, "stop 2       %8.2f\n", p.Stop2Price)
	fmt.Fprintf(b, "tp1 trigger  %8.2f  limit %8.2f\n", p.TP1Trigger, p.TP1Limit)
	fmt.Fprintf(b, "tp2 trigger  %8.2f  limit %8.2f\n", p.TP2Trigger, p.TP2Limit)

	b.WriteString("\n--- SIZING ---\n")
	fmt.Fprintf(b, "quantity     %d  (x%d per bracket)\n", p.Quantity, p.HalfQuantity)
	fmt.Fprintf(b, "max loss     $%.2f\n", p.MaxLossUSD)
	fmt.Fprintf(b, "exp profit   $%.2f\n", p.ExpectedProfitUSD)

	b.WriteString("\n--- CONTEXT ---\n")
	fmt.Fprintf(b, "atr          %8.2f\n", p.ATR)
	fmt.Fprintf(b, "ceiling      %8.2f\n", p.Ceiling)
	fmt.Fprintf(b, "gap discount %8.2f\n", p.GapDiscount)
	fmt.Fprintf(b, "cap scale    %8.2f\n", p.CapScale)
	if p.Defensive {
		b.WriteString("defensive regime: inverse universe active\n")
	}
}
