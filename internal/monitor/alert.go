package monitor

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of the originating signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known directions.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeMode partitions alerts, schedules, and execution queues.
type TradeMode string

const (
	ModeReal       TradeMode = "REAL"
	ModeSimulation TradeMode = "SIMULATION"
)

// Valid reports whether the trade mode is known.
func (m TradeMode) Valid() bool {
	return m == ModeReal || m == ModeSimulation
}

// State is the lifecycle state of a monitored alert. EXECUTED, CANCELLED
// and EXPIRED are terminal and never revert.
type State string

const (
	StateMonitoring State = "MONITORING"
	StateExecuted   State = "EXECUTED"
	StateCancelled  State = "CANCELLED"
	StateExpired    State = "EXPIRED"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateExecuted || s == StateCancelled || s == StateExpired
}

// SubStatus labels the detection phase while the alert is open.
type SubStatus string

const (
	PhaseLateral SubStatus = "LATERAL"
	PhaseArmed   SubStatus = "ARMED"
)

// ExitReason records why an alert left monitoring without executing.
type ExitReason string

const (
	ExitMaxAdverseMove ExitReason = "MAX_ADVERSE_MOVE"
	ExitTimeout        ExitReason = "TIMEOUT"
	ExitManual         ExitReason = "MANUAL"
)

// Alert is a monitored trading signal awaiting price confirmation.
// Prices are measured against AnchorPrice, which re-centers on a lateral
// bounce reset; PriceMinimum/PriceMaximum track the extremes observed
// since the current anchor was set.
type Alert struct {
	ID         string
	SourceID   string
	OwnerID    string
	AccountIDs []string
	Symbol     string
	Venue      string
	Side       Side
	TradeMode  TradeMode

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

	ExitReason  ExitReason
	ExitDetails string

	ExecutedJobIDs []string

	StartedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time

	// Version backs the optimistic concurrency check on update; a
	// concurrent tick and a manual cancel can never both apply.
	Version int
}

// Open reports whether the alert is still eligible for ticks.
func (a *Alert) Open() bool {
	return !a.State.Terminal()
}
