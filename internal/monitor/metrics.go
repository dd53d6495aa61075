package monitor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome carries the derived reporting figures for a terminal alert,
// computed from the four persisted fields the reporting contract names:
// anchor price, execution price, started-at and ended-at.
type Outcome struct {
	// SavingsPct is the side-signed move from anchor to execution:
	// positive when the delay bought a better entry (cheaper buy,
	// richer sell).
	SavingsPct decimal.Decimal
	// EfficiencyPct is the share of the observed favorable extreme the
	// execution actually captured. Zero when the extreme never moved
	// past the anchor.
	EfficiencyPct decimal.Decimal
	Duration      time.Duration
}

// DeriveOutcome computes reporting figures for an executed alert. For
// non-EXECUTED terminal alerts only the duration is meaningful.
func DeriveOutcome(a *Alert) Outcome {
	out := Outcome{}
	if a.EndedAt != nil {
		out.Duration = a.EndedAt.Sub(a.StartedAt)
	}
	if a.State != StateExecuted || a.AnchorPrice.IsZero() || a.ExecutionPrice.IsZero() {
		return out
	}

	if a.Side == SideSell {
		out.SavingsPct = a.ExecutionPrice.Sub(a.AnchorPrice).Div(a.AnchorPrice).Mul(dec100)
	} else {
		out.SavingsPct = a.AnchorPrice.Sub(a.ExecutionPrice).Div(a.AnchorPrice).Mul(dec100)
	}

	var best decimal.Decimal
	if a.Side == SideSell {
		best = a.PriceMaximum.Sub(a.AnchorPrice)
	} else {
		best = a.AnchorPrice.Sub(a.PriceMinimum)
	}
	if best.IsPositive() {
		var captured decimal.Decimal
		if a.Side == SideSell {
			captured = a.ExecutionPrice.Sub(a.AnchorPrice)
		} else {
			captured = a.AnchorPrice.Sub(a.ExecutionPrice)
		}
		out.EfficiencyPct = captured.Div(best).Mul(dec100)
	}
	return out
}
