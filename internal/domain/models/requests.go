package models

import "time"

// Requests for the ops HTTP endpoints. Defined in domain for consistency and reuse.

type SubmitSignalRequest struct {
	StrategyID       string             `json:"strategy_id" validate:"required"`
	Symbol           string             `json:"symbol" validate:"required"`
	Action           string             `json:"action" default:"enter" validate:"oneof=enter exit adjust hold"`
	Direction        string             `json:"direction" validate:"required,oneof=buy sell"`
	Confidence       float64            `json:"confidence" validate:"gte=0,lte=1"`
	Strength         float64            `json:"strength" validate:"gte=0,lte=1"`
	Price            *float64           `json:"price,omitempty" validate:"omitempty,gt=0"`
	ExpiresInMs      int64              `json:"expires_in_ms" validate:"gte=0"`
	TrustVector      map[string]float64 `json:"trust_vector,omitempty"`
	RiskGrade        string             `json:"risk_grade,omitempty" validate:"omitempty,oneof=low medium high exceptional"`
	ExecutionHorizon string             `json:"execution_horizon,omitempty" validate:"omitempty,oneof=immediate short_term medium_term long_term"`
	ExpectedSlipPct  *float64           `json:"expected_slippage_pct,omitempty" validate:"omitempty,gte=0"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
}

// ToSignal materializes the request as a fresh pending signal.
func (r *SubmitSignalRequest) ToSignal(now time.Time) Signal {
	sig := NewSignal(r.StrategyID, r.Symbol, SignalAction(r.Action), TradeDirection(r.Direction), r.Confidence, r.Strength)
	sig.Price = r.Price
	sig.TrustVector = r.TrustVector
	sig.ExpectedSlipPct = r.ExpectedSlipPct
	sig.Metadata = r.Metadata
	if r.ExpiresInMs > 0 {
		exp := now.Add(time.Duration(r.ExpiresInMs) * time.Millisecond)
		sig.Expiration = &exp
	}
	if r.RiskGrade != "" {
		grade := RiskGrade(r.RiskGrade)
		sig.RiskGrade = &grade
	}
	if r.ExecutionHorizon != "" {
		sig.ExecutionHorizon = ExecutionHorizon(r.ExecutionHorizon)
	}
	return sig
}

type RecentExecutionsRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=received in_progress completed partially_filled rejected timed_out cancelled failed"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type ExecutionQualityRequest struct {
	StrategyID string `query:"strategy_id" json:"strategy_id" validate:"required"`
	Limit      int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type DrawdownHistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=live paper sandbox backtest"`
}

type ConfigureEntropyRequest struct {
	Enable       bool  `json:"enable"`
	FixedDelayMs int64 `json:"fixed_delay_ms" validate:"gte=0"`
}
