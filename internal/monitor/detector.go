package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var dec100 = decimal.NewFromInt(100)

// Sample is one observed price for an alert's symbol.
type Sample struct {
	Price decimal.Decimal
	At    time.Time
}

// Decision is the full outcome of evaluating one sample against one
// alert. The detector never mutates the alert; callers apply the
// decision and persist it under the alert's version check.
type Decision struct {
	State     State
	SubStatus SubStatus

	AnchorPrice    decimal.Decimal
	PriceMinimum   decimal.Decimal
	PriceMaximum   decimal.Decimal
	CurrentPrice   decimal.Decimal
	TriggerPrice   decimal.Decimal
	ExecutionPrice decimal.Decimal

	LateralCycles int
	ConfirmCycles int

	Fire        bool
	ExitReason  ExitReason
	ExitDetails string
}

// Terminal reports whether the decision ends the alert.
func (d Decision) Terminal() bool {
	return d.State.Terminal()
}

// Apply folds the decision into the alert record, stamping the
// terminal time when the decision ends monitoring.
func (d Decision) Apply(a *Alert, at time.Time) {
	a.State = d.State
	a.SubStatus = d.SubStatus
	a.AnchorPrice = d.AnchorPrice
	a.PriceMinimum = d.PriceMinimum
	a.PriceMaximum = d.PriceMaximum
	a.CurrentPrice = d.CurrentPrice
	a.TriggerPrice = d.TriggerPrice
	a.ExecutionPrice = d.ExecutionPrice
	a.LateralCycles = d.LateralCycles
	a.ConfirmCycles = d.ConfirmCycles
	a.ExitReason = d.ExitReason
	a.ExitDetails = d.ExitDetails
	a.UpdatedAt = at
	if d.Terminal() {
		ended := at
		a.EndedAt = &ended
	}
}

// Evaluate classifies one sample for one alert. BUY and SELL run the
// same path with a mirrored threshold tuple: BUY waits for a
// consolidation low then a confirmed rise, SELL for a consolidation
// high then a confirmed fall.
//
// Order per sample: extremes update first, then the adverse bound, then
// the timeout, then phase logic. A sample that would both fire and
// breach the adverse bound cancels the alert.
func Evaluate(a *Alert, s Sample, th Thresholds) Decision {
	d := Decision{
		State:         a.State,
		SubStatus:     a.SubStatus,
		AnchorPrice:   a.AnchorPrice,
		PriceMinimum:  decimal.Min(a.PriceMinimum, s.Price),
		PriceMaximum:  decimal.Max(a.PriceMaximum, s.Price),
		CurrentPrice:  s.Price,
		TriggerPrice:  a.TriggerPrice,
		LateralCycles: a.LateralCycles,
		ConfirmCycles: a.ConfirmCycles,
	}

	if adverse := adversePct(th.Side, a.AnchorPrice, s.Price); adverse.GreaterThan(th.MaxAdversePct) {
		d.State = StateCancelled
		d.ExitReason = ExitMaxAdverseMove
		d.ExitDetails = fmt.Sprintf("adverse move %s%% from anchor %s exceeds bound %s%%",
			adverse.StringFixed(3), a.AnchorPrice.String(), th.MaxAdversePct.String())
		return d
	}

	if th.MaxMonitoringTime > 0 && !s.At.Before(a.StartedAt.Add(th.MaxMonitoringTime)) {
		d.State = StateExpired
		d.ExitReason = ExitTimeout
		d.ExitDetails = fmt.Sprintf("no confirmation within %s", th.MaxMonitoringTime)
		return d
	}

	if a.SubStatus == PhaseArmed {
		evaluateBreakout(&d, s, th)
	} else {
		evaluateLateral(&d, s, th)
	}
	return d
}

// evaluateLateral counts consecutive samples inside the tolerance band
// around the anchor. A breach before the minimum is reached re-centers
// the anchor on the breaching sample itself and zeroes the counter, so
// a slow drift is not misread as consolidation.
func evaluateLateral(d *Decision, s Sample, th Thresholds) {
	band := s.Price.Sub(d.AnchorPrice).Abs().Div(d.AnchorPrice).Mul(dec100)
	if band.GreaterThan(th.TolerancePct) {
		d.LateralCycles = 0
		d.AnchorPrice = s.Price
		// Extremes track the window since the anchor was set.
		d.PriceMinimum = s.Price
		d.PriceMaximum = s.Price
		return
	}

	d.LateralCycles++
	if d.LateralCycles < th.LateralCyclesMin {
		return
	}

	// Consolidation confirmed: arm, with the band extreme as the
	// reference the breakout is measured from.
	d.SubStatus = PhaseArmed
	d.ConfirmCycles = 0
	if th.Side == SideSell {
		d.TriggerPrice = d.PriceMaximum
	} else {
		d.TriggerPrice = d.PriceMinimum
	}
}

// evaluateBreakout counts consecutive samples whose favorable move from
// the trigger reference meets the trigger percentage. A dip below the
// trigger resets the counter; the alert stays armed.
func evaluateBreakout(d *Decision, s Sample, th Thresholds) {
	move := favorablePct(th.Side, d.TriggerPrice, s.Price)
	if move.LessThan(th.TriggerPct) {
		d.ConfirmCycles = 0
		return
	}

	d.ConfirmCycles++
	if d.ConfirmCycles < th.TriggerCyclesMin {
		return
	}

	d.State = StateExecuted
	d.Fire = true
	d.ExecutionPrice = s.Price
}

// adversePct measures the move against the expected direction: a fall
// from the anchor for BUY, a rise for SELL. Never negative.
func adversePct(side Side, anchor, price decimal.Decimal) decimal.Decimal {
	var move decimal.Decimal
	if side == SideSell {
		move = price.Sub(anchor)
	} else {
		move = anchor.Sub(price)
	}
	if move.IsNegative() {
		return decimal.Zero
	}
	return move.Div(anchor).Mul(dec100)
}

// favorablePct measures the move in the expected direction from the
// trigger reference. Negative when the price has moved the wrong way.
func favorablePct(side Side, ref, price decimal.Decimal) decimal.Decimal {
	if side == SideSell {
		return ref.Sub(price).Div(ref).Mul(dec100)
	}
	return price.Sub(ref).Div(ref).Mul(dec100)
}
