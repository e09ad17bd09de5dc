package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/execution"
	"TradeGate/internal/risk"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
)

// Config governs signal gating and sizing.
type Config struct {
	DryRunMode            bool             `json:"dry_run_mode" yaml:"dry_run_mode"`
	ApplyRiskChecks       bool             `json:"apply_risk_checks" yaml:"apply_risk_checks" default:"true"`
	MinTrustScore         float64          `json:"min_trust_score" yaml:"min_trust_score" default:"0.65" validate:"gte=0,lte=1"`
	RequirePrice          bool             `json:"require_price" yaml:"require_price"`
	MaxSlippagePct        float64          `json:"max_slippage_pct" yaml:"max_slippage_pct" default:"0.5" validate:"gte=0"`
	ConfidenceBasedSizing bool             `json:"confidence_based_sizing" yaml:"confidence_based_sizing" default:"true"`
	EnforceLatencyBudgets bool             `json:"enforce_latency_budgets" yaml:"enforce_latency_budgets"`
	DefaultRiskGrade      models.RiskGrade `json:"default_risk_grade" yaml:"default_risk_grade" default:"medium"`
}

// DefaultConfig returns the stock gating configuration.
func DefaultConfig() Config {
	return Config{
		ApplyRiskChecks:       true,
		MinTrustScore:         0.65,
		MaxSlippagePct:        0.5,
		ConfidenceBasedSizing: true,
		DefaultRiskGrade:      models.RiskGradeMedium,
	}
}

// Fraction of equity no single order may exceed, whatever the inputs.
const maxPositionSizePct = 0.20

// Trust score assumed when a signal carries no trust vector at all.
const defaultTrustScore = 0.75

// SignalEvaluation is the engine's judgment of one signal. Built fresh
// per evaluation and never mutated afterwards.
type SignalEvaluation struct {
	SignalID               string           `json:"signal_id"`
	Passed                 bool             `json:"passed"`
	ExecutionProbability   float64          `json:"execution_probability"`
	ExpectedImpact         float64          `json:"expected_impact"`
	ExpectedSlippagePct    float64          `json:"expected_slippage_pct"`
	TrustScore             float64          `json:"trust_score"`
	RiskViolations         []risk.Violation `json:"risk_violations,omitempty"`
	IsLatencyCritical      bool             `json:"is_latency_critical"`
	RecommendedPositionPct float64          `json:"recommended_position_size_pct"`
	LatencyBudgetMs        uint64           `json:"latency_budget_ms"`
	Timestamp              time.Time        `json:"timestamp"`
}

// SignalMetrics is the per-signal execution record kept by the engine.
type SignalMetrics struct {
	SignalID           string                 `json:"signal_id"`
	StrategyID         string                 `json:"strategy_id"`
	Symbol             string                 `json:"symbol"`
	GenerationTime     time.Time              `json:"generation_time"`
	ExecutionTime      *time.Time             `json:"execution_time,omitempty"`
	ExecutionLatencyMs *uint64                `json:"execution_latency_ms,omitempty"`
	Confidence         float64                `json:"confidence"`
	Strength           float64                `json:"strength"`
	Success            bool                   `json:"success"`
	Price              *float64               `json:"price,omitempty"`
	ExecutionPrice     *float64               `json:"execution_price,omitempty"`
	SlippagePct        *float64               `json:"slippage_pct,omitempty"`
	Direction          models.TradeDirection  `json:"direction"`
	PositionSize       *float64               `json:"position_size,omitempty"`
	TrustScore         *float64               `json:"trust_score,omitempty"`
	Status             models.SignalStatus    `json:"status"`
	RiskGrade          models.RiskGrade       `json:"risk_grade"`
	ExecutionHorizon   models.ExecutionHorizon `json:"execution_horizon"`
	AdditionalMetrics  map[string]float64     `json:"additional_metrics,omitempty"`
}

// Dispatcher is the engine's view of the execution service.
type Dispatcher interface {
	Execute(ctx context.Context, sig models.Signal, order models.Order) (models.ExecutionResult, error)
}

// RiskGate feeds the drawdown risk modifier into sizing and can halt
// dispatch entirely.
type RiskGate interface {
	RiskModifier(ctx context.Context, strategyID string) float64
	ShouldPauseTrading(ctx context.Context, strategyID string) bool
}

// Engine validates, gates and sizes signals, then drives dispatch.
// The signal-metrics store is the only state it owns.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   Config

	dispatcher Dispatcher
	riskCalc   risk.Calculator
	gate       RiskGate

	metricsMu sync.RWMutex
	store     map[string]SignalMetrics

	log *logger.Logger
	rec *metrics.Recorder
	now func() time.Time
}

// New builds an engine. gate may be nil when drawdown gating is not
// wired, in which case the modifier is 1.0 and dispatch never pauses.
func New(cfg Config, dispatcher Dispatcher, riskCalc risk.Calculator, gate RiskGate, log *logger.Logger, rec *metrics.Recorder) *Engine {
	return &Engine{
		cfg:        cfg,
		dispatcher: dispatcher,
		riskCalc:   riskCalc,
		gate:       gate,
		store:      make(map[string]SignalMetrics),
		log:        log,
		rec:        rec,
		now:        time.Now,
	}
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig swaps the gating configuration.
func (e *Engine) UpdateConfig(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
}

// EvaluateSignal judges a signal without dispatching it.
func (e *Engine) EvaluateSignal(ctx context.Context, sig models.Signal) (SignalEvaluation, error) {
	cfg := e.Config()

	if err := validateSignal(sig, cfg); err != nil {
		return SignalEvaluation{}, err
	}

	trustScore, ok := sig.AverageTrustScore()
	if !ok {
		trustScore = defaultTrustScore
	}

	var violations []risk.Violation
	if cfg.ApplyRiskChecks && e.riskCalc != nil {
		result, err := e.riskCalc.CheckSignal(ctx, sig)
		if err != nil {
			return SignalEvaluation{}, WrapError(ErrKindRiskCheckFailed, "risk calculator failed", err)
		}
		violations = result.Violations
	}

	if trustScore < cfg.MinTrustScore {
		e.rec.RecordGateRejection(string(ErrKindTrustScoreTooLow))
		return SignalEvaluation{}, NewError(ErrKindTrustScoreTooLow,
			fmt.Sprintf("trust score %.4f below minimum %.4f", trustScore, cfg.MinTrustScore))
	}

	eval := SignalEvaluation{
		SignalID:               sig.ID,
		Passed:                 len(violations) == 0 && trustScore >= cfg.MinTrustScore,
		ExecutionProbability:   sig.Confidence * trustScore,
		ExpectedImpact:         sig.Strength * sig.EntropySusceptibility(),
		ExpectedSlippagePct:    sig.ExpectedSlippagePct(),
		TrustScore:             trustScore,
		RiskViolations:         violations,
		IsLatencyCritical:      sig.ExecutionHorizon == models.HorizonImmediate,
		RecommendedPositionPct: e.positionSizePct(ctx, sig),
		LatencyBudgetMs:        uint64(sig.ExecutionHorizon.LatencyBudget() / time.Millisecond),
		Timestamp:              e.now().UTC(),
	}
	return eval, nil
}

// ExecuteStrategy runs the full gate-and-dispatch pipeline for a signal.
func (e *Engine) ExecuteStrategy(ctx context.Context, sig models.Signal) (models.ExecutionResult, error) {
	if sig.IsExpired(e.now()) {
		e.rec.RecordGateRejection(string(ErrKindSignalExpired))
		return models.ExecutionResult{}, NewError(ErrKindSignalExpired,
			fmt.Sprintf("signal %s expired", sig.ID))
	}

	if e.gate != nil && e.gate.ShouldPauseTrading(ctx, sig.StrategyID) {
		e.rec.RecordGateRejection(string(ErrKindRiskCheckFailed))
		return models.ExecutionResult{}, NewError(ErrKindRiskCheckFailed,
			fmt.Sprintf("trading paused: strategy %s in critical drawdown", sig.StrategyID))
	}

	eval, err := e.EvaluateSignal(ctx, sig)
	if err != nil {
		return models.ExecutionResult{}, err
	}
	if !eval.Passed {
		e.rec.RecordGateRejection(string(ErrKindValidationFailed))
		return models.ExecutionResult{}, NewError(ErrKindValidationFailed,
			"signal did not pass evaluation checks")
	}

	order := e.buildOrder(sig, eval)
	e.rec.RecordPositionSize(sig.StrategyID, order.Amount)

	started := e.now()
	result, err := e.dispatcher.Execute(ctx, sig, order)
	elapsed := e.now().Sub(started)
	if err != nil {
		e.recordFailure(sig, eval, err)
		return models.ExecutionResult{}, WrapError(ErrKindExecutionFailed, "order dispatch failed", err)
	}

	latencyMs := uint64(elapsed / time.Millisecond)
	if e.Config().EnforceLatencyBudgets && latencyMs > eval.LatencyBudgetMs {
		e.log.Warn("dispatch exceeded latency budget",
			logger.String("signal_id", sig.ID),
			logger.Uint64("latency_ms", latencyMs),
			logger.Uint64("budget_ms", eval.LatencyBudgetMs))
		e.rec.RecordError(string(ErrKindLatencyBudgetExceeded))
	}

	e.recordSuccess(sig, eval, result, latencyMs)
	return result, nil
}

// SignalMetricsFor returns stored metrics for a signal id.
func (e *Engine) SignalMetricsFor(signalID string) (SignalMetrics, bool) {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	m, ok := e.store[signalID]
	return m, ok
}

func (e *Engine) storeMetrics(m SignalMetrics) {
	e.metricsMu.Lock()
	e.store[m.SignalID] = m
	e.metricsMu.Unlock()
}

func validateSignal(sig models.Signal, cfg Config) error {
	if cfg.RequirePrice && sig.Price == nil {
		return NewError(ErrKindValidationFailed, "signal price is required but missing")
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return NewError(ErrKindValidationFailed,
			fmt.Sprintf("confidence %v outside [0,1]", sig.Confidence))
	}
	if sig.Strength < 0 || sig.Strength > 1 {
		return NewError(ErrKindValidationFailed,
			fmt.Sprintf("strength %v outside [0,1]", sig.Strength))
	}
	return nil
}

// positionSizePct sizes the order: grade base scaled by confidence,
// strength and the strategy's drawdown modifier, hard-capped.
func (e *Engine) positionSizePct(ctx context.Context, sig models.Signal) float64 {
	size := sig.Grade().BasePositionPct() * sig.Confidence * sig.Strength
	if e.gate != nil {
		size *= e.gate.RiskModifier(ctx, sig.StrategyID)
	}
	if size > maxPositionSizePct {
		size = maxPositionSizePct
	}
	return size
}

func (e *Engine) buildOrder(sig models.Signal, eval SignalEvaluation) models.Order {
	cfg := e.Config()
	amount := eval.RecommendedPositionPct
	if !cfg.ConfidenceBasedSizing {
		amount = 0.05
	}
	return models.Order{
		ID:              uuid.NewString(),
		Symbol:          sig.Symbol,
		Price:           sig.Price,
		Amount:          amount,
		Direction:       sig.Direction,
		SignalID:        sig.ID,
		StrategyID:      sig.StrategyID,
		MaxSlippagePct:  cfg.MaxSlippagePct,
		IsDryRun:        cfg.DryRunMode,
		LatencyBudgetMs: eval.LatencyBudgetMs,
	}
}

func (e *Engine) baseMetrics(sig models.Signal) SignalMetrics {
	m := SignalMetrics{
		SignalID:          sig.ID,
		StrategyID:        sig.StrategyID,
		Symbol:            sig.Symbol,
		GenerationTime:    sig.Timestamp,
		Confidence:        sig.Confidence,
		Strength:          sig.Strength,
		Price:             sig.Price,
		Direction:         sig.Direction,
		Status:            sig.Status,
		RiskGrade:         sig.Grade(),
		ExecutionHorizon:  sig.ExecutionHorizon,
		AdditionalMetrics: make(map[string]float64),
	}
	if trust, ok := sig.AverageTrustScore(); ok {
		m.TrustScore = &trust
	}
	return m
}

func (e *Engine) recordSuccess(sig models.Signal, eval SignalEvaluation, res models.ExecutionResult, latencyMs uint64) {
	m := e.baseMetrics(sig)
	execTime := res.Timestamp
	m.ExecutionTime = &execTime
	m.ExecutionLatencyMs = &latencyMs
	m.Success = res.Status == models.StatusCompleted
	m.ExecutionPrice = res.AvgFillPrice
	m.PositionSize = &res.FilledAmount
	m.Status = models.SignalExecuted

	if sig.Price != nil && res.AvgFillPrice != nil && *sig.Price != 0 {
		slippage := (*res.AvgFillPrice - *sig.Price) / *sig.Price * 100
		if sig.Direction == models.DirectionSell {
			slippage = -slippage
		}
		m.SlippagePct = &slippage
	}

	m.AdditionalMetrics["evaluation_trust_score"] = eval.TrustScore
	m.AdditionalMetrics["evaluation_execution_probability"] = eval.ExecutionProbability
	e.storeMetrics(m)
}

func (e *Engine) recordFailure(sig models.Signal, eval SignalEvaluation, dispatchErr error) {
	m := e.baseMetrics(sig)
	m.Success = false
	m.Status = models.SignalRejected
	m.AdditionalMetrics["evaluation_trust_score"] = eval.TrustScore
	m.AdditionalMetrics["evaluation_execution_probability"] = eval.ExecutionProbability
	m.AdditionalMetrics["error_code"] = errorCode(dispatchErr)
	e.storeMetrics(m)
	e.rec.RecordError(string(ErrKindExecutionFailed))
	e.log.Error("order dispatch failed",
		logger.String("signal_id", sig.ID),
		logger.String("strategy_id", sig.StrategyID),
		logger.Error(dispatchErr))
}

// errorCode maps dispatch failures onto the numeric codes kept in
// signal metrics for downstream aggregation.
func errorCode(err error) float64 {
	switch execution.KindOf(err) {
	case execution.ErrKindTimeout:
		return 1
	case execution.ErrKindOrderRejected:
		return 2
	case execution.ErrKindInsufficient:
		return 3
	case execution.ErrKindValidation:
		return 4
	case execution.ErrKindRateLimit:
		return 5
	case execution.ErrKindService:
		return 6
	case execution.ErrKindConnection:
		return 7
	case execution.ErrKindInternal:
		return 8
	case execution.ErrKindAuth:
		return 9
	case execution.ErrKindNotSupported:
		return 10
	default:
		return 6
	}
}
