package models

import (
	"fmt"
	"time"
)

// DrawdownState is the risk posture derived from equity drawdown.
type DrawdownState string

const (
	DrawdownNormal   DrawdownState = "normal"
	DrawdownCaution  DrawdownState = "caution"
	DrawdownCritical DrawdownState = "critical"
	DrawdownRecovery DrawdownState = "recovery"
)

// RecoveryRampMode shapes how the risk modifier returns to 1.0.
type RecoveryRampMode string

const (
	RampLinear      RecoveryRampMode = "linear"
	RampExponential RecoveryRampMode = "exponential"
	RampSigmoid     RecoveryRampMode = "sigmoid"
)

// DrawdownSnapshot is the current drawdown view for one strategy.
type DrawdownSnapshot struct {
	StrategyID    string        `json:"strategy_id"`
	CurrentEquity float64       `json:"current_equity"`
	PeakEquity    float64       `json:"peak_equity"`
	DrawdownPct   float64       `json:"drawdown_pct"`
	State         DrawdownState `json:"state"`
	RiskModifier  float64       `json:"risk_modifier"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RecoveryState captures the variables that drive the recovery ramp.
type RecoveryState struct {
	StartedAt     time.Time `json:"started_at"`
	LowPoint      float64   `json:"low_point"`
	ReferencePeak float64   `json:"reference_peak"`
}

// DrawdownConfig governs the state machine thresholds and modifiers.
// Thresholds are negative fractions (a 5% drawdown is -0.05).
type DrawdownConfig struct {
	CautionThreshold      float64          `json:"caution_threshold" yaml:"caution_threshold" default:"-0.05" validate:"lt=0"`
	CriticalThreshold     float64          `json:"critical_threshold" yaml:"critical_threshold" default:"-0.10" validate:"lt=0"`
	RecoveryThreshold     float64          `json:"recovery_threshold" yaml:"recovery_threshold" default:"-0.02" validate:"lt=0"`
	CautionModifier       float64          `json:"caution_modifier" yaml:"caution_modifier" default:"0.75" validate:"gte=0,lte=1"`
	CriticalModifier      float64          `json:"critical_modifier" yaml:"critical_modifier" default:"0.30" validate:"gte=0,lte=1"`
	RecoveryRamp          RecoveryRampMode `json:"recovery_ramp" yaml:"recovery_ramp" default:"linear" validate:"oneof=linear exponential sigmoid"`
	MaxRecoveryPeriod     time.Duration    `json:"max_recovery_period" yaml:"max_recovery_period" default:"168h" validate:"gt=0"`
	EnableAlerts          bool             `json:"enable_alerts" yaml:"enable_alerts" default:"true"`
	PauseTradesInCritical bool             `json:"pause_trades_in_critical" yaml:"pause_trades_in_critical" default:"true"`
	AnalysisWindow        time.Duration    `json:"analysis_window" yaml:"analysis_window" default:"720h" validate:"gt=0"`
}

// DefaultDrawdownConfig is the baseline posture.
func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		CautionThreshold:      -0.05,
		CriticalThreshold:     -0.10,
		RecoveryThreshold:     -0.02,
		CautionModifier:       0.75,
		CriticalModifier:      0.30,
		RecoveryRamp:          RampLinear,
		MaxRecoveryPeriod:     7 * 24 * time.Hour,
		EnableAlerts:          true,
		PauseTradesInCritical: true,
		AnalysisWindow:        30 * 24 * time.Hour,
	}
}

// ConservativeDrawdownConfig tightens thresholds and cuts harder.
func ConservativeDrawdownConfig() DrawdownConfig {
	cfg := DefaultDrawdownConfig()
	cfg.CautionThreshold = -0.03
	cfg.CriticalThreshold = -0.07
	cfg.RecoveryThreshold = -0.01
	cfg.CautionModifier = 0.60
	cfg.CriticalModifier = 0.20
	cfg.RecoveryRamp = RampSigmoid
	cfg.MaxRecoveryPeriod = 14 * 24 * time.Hour
	return cfg
}

// AggressiveDrawdownConfig tolerates deeper drawdowns before cutting.
func AggressiveDrawdownConfig() DrawdownConfig {
	cfg := DefaultDrawdownConfig()
	cfg.CautionThreshold = -0.08
	cfg.CriticalThreshold = -0.15
	cfg.RecoveryThreshold = -0.04
	cfg.CautionModifier = 0.85
	cfg.CriticalModifier = 0.40
	cfg.RecoveryRamp = RampExponential
	cfg.MaxRecoveryPeriod = 3 * 24 * time.Hour
	return cfg
}

// Validate rejects configurations that could not express a sane state
// machine. Invalid values are reported, never clamped.
func (c DrawdownConfig) Validate() error {
	if c.CautionThreshold > 0 || c.CriticalThreshold > 0 || c.RecoveryThreshold > 0 {
		return fmt.Errorf("drawdown thresholds must be negative values")
	}
	if c.CautionThreshold < c.CriticalThreshold {
		return fmt.Errorf("caution threshold %v must be shallower than critical threshold %v",
			c.CautionThreshold, c.CriticalThreshold)
	}
	if c.CautionModifier < 0 || c.CautionModifier > 1 {
		return fmt.Errorf("caution modifier must be in [0,1], got %v", c.CautionModifier)
	}
	if c.CriticalModifier < 0 || c.CriticalModifier > 1 {
		return fmt.Errorf("critical modifier must be in [0,1], got %v", c.CriticalModifier)
	}
	switch c.RecoveryRamp {
	case RampLinear, RampExponential, RampSigmoid:
	default:
		return fmt.Errorf("unknown recovery ramp %q", c.RecoveryRamp)
	}
	if c.MaxRecoveryPeriod <= 0 {
		return fmt.Errorf("max recovery period must be positive, got %v", c.MaxRecoveryPeriod)
	}
	if c.AnalysisWindow <= 0 {
		return fmt.Errorf("analysis window must be positive, got %v", c.AnalysisWindow)
	}
	return nil
}

// DrawdownAlert is published when a strategy enters the critical state.
type DrawdownAlert struct {
	StrategyID  string        `json:"strategy_id"`
	State       DrawdownState `json:"state"`
	DrawdownPct float64       `json:"drawdown_pct"`
	Equity      float64       `json:"equity"`
	PeakEquity  float64       `json:"peak_equity"`
	Timestamp   time.Time     `json:"timestamp"`
}
