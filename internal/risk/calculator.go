package risk

import (
	"context"
	"fmt"
	"sync"

	"TradeGate/internal/domain/models"
)

// Violation is a single failed risk check.
type Violation struct {
	Code     string  `json:"code"`
	Message  string  `json:"message"`
	Severity float64 `json:"severity"`
}

// CheckResult is the outcome of running all checks against a signal.
type CheckResult struct {
	Passed     bool               `json:"passed"`
	Violations []Violation        `json:"violations,omitempty"`
	RiskLevel  float64            `json:"risk_level"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Pass returns a clean result.
func Pass() CheckResult {
	return CheckResult{Passed: true}
}

// Fail returns a failed result carrying the violations.
func Fail(violations []Violation, riskLevel float64) CheckResult {
	return CheckResult{Violations: violations, RiskLevel: riskLevel}
}

// Calculator runs pre-trade risk checks. The numeric model behind the
// checks is a separate concern; the engine only consumes violations.
type Calculator interface {
	CheckSignal(ctx context.Context, sig models.Signal) (CheckResult, error)
}

// ThresholdConfig bounds the reference calculator.
type ThresholdConfig struct {
	MaxSymbolExposurePct float64  `json:"max_symbol_exposure_pct" yaml:"max_symbol_exposure_pct" default:"0.25"`
	MaxTotalExposurePct  float64  `json:"max_total_exposure_pct" yaml:"max_total_exposure_pct" default:"1.0"`
	BlockedSymbols       []string `json:"blocked_symbols" yaml:"blocked_symbols"`
}

// ThresholdCalculator is a simple exposure-based calculator: it tracks
// per-symbol exposure fed by fills and rejects signals that would push
// a symbol or the book past its limit.
type ThresholdCalculator struct {
	mu       sync.RWMutex
	cfg      ThresholdConfig
	exposure map[string]float64
	blocked  map[string]struct{}
}

// NewThresholdCalculator builds the reference calculator.
func NewThresholdCalculator(cfg ThresholdConfig) *ThresholdCalculator {
	blocked := make(map[string]struct{}, len(cfg.BlockedSymbols))
	for _, s := range cfg.BlockedSymbols {
		blocked[s] = struct{}{}
	}
	return &ThresholdCalculator{
		cfg:      cfg,
		exposure: make(map[string]float64),
		blocked:  blocked,
	}
}

// RecordExposure adjusts tracked exposure for a symbol, as a fraction
// of equity. Negative deltas unwind.
func (c *ThresholdCalculator) RecordExposure(symbol string, delta float64) {
	c.mu.Lock()
	c.exposure[symbol] += delta
	if c.exposure[symbol] < 0 {
		c.exposure[symbol] = 0
	}
	c.mu.Unlock()
}

// CheckSignal implements Calculator.
func (c *ThresholdCalculator) CheckSignal(_ context.Context, sig models.Signal) (CheckResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var violations []Violation
	if _, ok := c.blocked[sig.Symbol]; ok {
		violations = append(violations, Violation{
			Code:     "symbol_blocked",
			Message:  fmt.Sprintf("symbol %s is blocked for trading", sig.Symbol),
			Severity: 1.0,
		})
	}

	symbolExposure := c.exposure[sig.Symbol]
	if c.cfg.MaxSymbolExposurePct > 0 && symbolExposure >= c.cfg.MaxSymbolExposurePct {
		violations = append(violations, Violation{
			Code:     "symbol_exposure_limit",
			Message:  fmt.Sprintf("exposure %.4f for %s at or above limit %.4f", symbolExposure, sig.Symbol, c.cfg.MaxSymbolExposurePct),
			Severity: 0.8,
		})
	}

	var total float64
	for _, v := range c.exposure {
		total += v
	}
	if c.cfg.MaxTotalExposurePct > 0 && total >= c.cfg.MaxTotalExposurePct {
		violations = append(violations, Violation{
			Code:     "total_exposure_limit",
			Message:  fmt.Sprintf("total exposure %.4f at or above limit %.4f", total, c.cfg.MaxTotalExposurePct),
			Severity: 0.9,
		})
	}

	if len(violations) > 0 {
		level := 0.0
		for _, v := range violations {
			if v.Severity > level {
				level = v.Severity
			}
		}
		return Fail(violations, level), nil
	}
	return Pass(), nil
}
