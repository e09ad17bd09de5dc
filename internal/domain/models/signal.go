package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalAction is the intent carried by a strategy signal.
type SignalAction string

const (
	ActionEnter  SignalAction = "enter"
	ActionExit   SignalAction = "exit"
	ActionAdjust SignalAction = "adjust"
	ActionHold   SignalAction = "hold"
)

// TradeDirection is the market side of a signal or order.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// RiskGrade classifies how aggressively a signal may be sized.
type RiskGrade string

const (
	RiskGradeLow         RiskGrade = "low"
	RiskGradeMedium      RiskGrade = "medium"
	RiskGradeHigh        RiskGrade = "high"
	RiskGradeExceptional RiskGrade = "exceptional"
)

// BasePositionPct returns the base position size for the grade, as a
// fraction of portfolio equity. Riskier grades get smaller bases.
func (g RiskGrade) BasePositionPct() float64 {
	switch g {
	case RiskGradeLow:
		return 0.10
	case RiskGradeMedium:
		return 0.05
	case RiskGradeHigh:
		return 0.025
	case RiskGradeExceptional:
		return 0.01
	default:
		return 0.05
	}
}

// ExecutionHorizon expresses how quickly a signal must reach the venue.
type ExecutionHorizon string

const (
	HorizonImmediate  ExecutionHorizon = "immediate"
	HorizonShortTerm  ExecutionHorizon = "short_term"
	HorizonMediumTerm ExecutionHorizon = "medium_term"
	HorizonLongTerm   ExecutionHorizon = "long_term"
)

// LatencyBudget maps the horizon to the end-to-end dispatch budget.
func (h ExecutionHorizon) LatencyBudget() time.Duration {
	switch h {
	case HorizonImmediate:
		return 100 * time.Millisecond
	case HorizonShortTerm:
		return 500 * time.Millisecond
	case HorizonMediumTerm:
		return 2000 * time.Millisecond
	case HorizonLongTerm:
		return 5000 * time.Millisecond
	default:
		return 2000 * time.Millisecond
	}
}

// SignalStatus tracks a signal through its lifecycle.
type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalExecuted  SignalStatus = "executed"
	SignalRejected  SignalStatus = "rejected"
	SignalExpired   SignalStatus = "expired"
	SignalCancelled SignalStatus = "cancelled"
)

// Signal is a trading intent emitted by a strategy, not yet an order.
type Signal struct {
	ID               string            `json:"id"`
	StrategyID       string            `json:"strategy_id"`
	Symbol           string            `json:"symbol"`
	Action           SignalAction      `json:"action"`
	Direction        TradeDirection    `json:"direction"`
	Confidence       float64           `json:"confidence"`
	Strength         float64           `json:"strength"`
	Price            *float64          `json:"price,omitempty"`
	Quantity         *float64          `json:"quantity,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	Expiration       *time.Time        `json:"expiration,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Status           SignalStatus      `json:"status"`
	TrustVector      map[string]float64 `json:"trust_vector,omitempty"`
	RiskGrade        *RiskGrade        `json:"risk_grade,omitempty"`
	ExecutionHorizon ExecutionHorizon  `json:"execution_horizon"`
	ExpectedSlipPct  *float64          `json:"expected_slippage_pct,omitempty"`
	FillConfidence   *float64          `json:"fill_confidence,omitempty"`
}

// NewSignal builds a pending signal with generated id and current timestamp.
func NewSignal(strategyID, symbol string, action SignalAction, direction TradeDirection, confidence, strength float64) Signal {
	return Signal{
		ID:               uuid.NewString(),
		StrategyID:       strategyID,
		Symbol:           symbol,
		Action:           action,
		Direction:        direction,
		Confidence:       confidence,
		Strength:         strength,
		Timestamp:        time.Now().UTC(),
		Status:           SignalPending,
		ExecutionHorizon: HorizonMediumTerm,
	}
}

// IsExpired reports whether the signal's expiration has passed at now.
// A signal without an expiration never expires.
func (s *Signal) IsExpired(now time.Time) bool {
	return s.Expiration != nil && now.After(*s.Expiration)
}

// Grade returns the risk grade, defaulting to medium when unset.
func (s *Signal) Grade() RiskGrade {
	if s.RiskGrade != nil {
		return *s.RiskGrade
	}
	return RiskGradeMedium
}

// AverageTrustScore averages the per-source trust vector. It returns
// (0.5, true) for a present-but-empty vector and (0, false) when the
// signal carries no trust information at all.
func (s *Signal) AverageTrustScore() (float64, bool) {
	if s.TrustVector == nil {
		return 0, false
	}
	if len(s.TrustVector) == 0 {
		return 0.5, true
	}
	var sum float64
	for _, v := range s.TrustVector {
		sum += v
	}
	return sum / float64(len(s.TrustVector)), true
}

// EntropySusceptibility estimates how sensitive the signal is to
// execution-time disorder. Exits and very high conviction entries are
// treated as resilient; low-grade entries are the most fragile.
func (s *Signal) EntropySusceptibility() float64 {
	if s.Action == ActionExit {
		return 0.3
	}
	if s.Confidence > 0.9 {
		return 0.4
	}
	switch s.Grade() {
	case RiskGradeHigh, RiskGradeExceptional:
		return 0.3
	case RiskGradeMedium:
		return 0.5
	default:
		return 0.7
	}
}

// ExpectedSlippagePct returns the declared slippage expectation, or a
// grade-based default when the signal does not carry one.
func (s *Signal) ExpectedSlippagePct() float64 {
	if s.ExpectedSlipPct != nil {
		return *s.ExpectedSlipPct
	}
	switch s.Grade() {
	case RiskGradeLow:
		return 0.1
	case RiskGradeMedium:
		return 0.3
	case RiskGradeHigh:
		return 0.5
	default:
		return 1.0
	}
}

// IsUrgent reports whether the signal should skip artificial dispatch delay.
func (s *Signal) IsUrgent() bool {
	if s.Action == ActionExit || s.Confidence > 0.9 {
		return true
	}
	if s.Metadata != nil && s.Metadata["urgent"] == "true" {
		return true
	}
	return s.ExecutionHorizon == HorizonImmediate
}

// Urgency maps the signal onto [0,1] for delay scaling.
func (s *Signal) Urgency() float64 {
	if s.IsUrgent() {
		return 1.0
	}
	switch s.ExecutionHorizon {
	case HorizonShortTerm:
		return 0.75
	case HorizonMediumTerm:
		return 0.5
	default:
		return 0.25
	}
}
