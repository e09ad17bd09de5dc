package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/execution"
	"TradeGate/internal/risk"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
)

// stubDispatcher captures the order it receives and returns a canned
// result or error.
type stubDispatcher struct {
	lastSignal models.Signal
	lastOrder  models.Order
	result     models.ExecutionResult
	err        error
}

func (d *stubDispatcher) Execute(_ context.Context, sig models.Signal, order models.Order) (models.ExecutionResult, error) {
	d.lastSignal = sig
	d.lastOrder = order
	if d.err != nil {
		return models.ExecutionResult{}, d.err
	}
	return d.result, nil
}

// stubGate returns fixed gating answers.
type stubGate struct {
	modifier float64
	pause    bool
}

func (g *stubGate) RiskModifier(context.Context, string) float64   { return g.modifier }
func (g *stubGate) ShouldPauseTrading(context.Context, string) bool { return g.pause }

func completedResult(fillPrice float64) models.ExecutionResult {
	return models.ExecutionResult{
		RequestID:    "req-1",
		OrderID:      "ord-1",
		Status:       models.StatusCompleted,
		FilledAmount: 0.02,
		AvgFillPrice: &fillPrice,
		Mode:         models.ModePaper,
		Timestamp:    time.Now().UTC(),
	}
}

func testEngine(t *testing.T, cfg Config, dispatcher Dispatcher, gate RiskGate) *Engine {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	rec := metrics.NewWith(prometheus.NewRegistry())
	return New(cfg, dispatcher, risk.NewThresholdCalculator(risk.ThresholdConfig{
		MaxSymbolExposurePct: 0.25,
		MaxTotalExposurePct:  1.0,
	}), gate, l, rec)
}

func gatedSignal(confidence, strength float64) models.Signal {
	sig := models.NewSignal("strat-1", "BTC-USD", models.ActionEnter, models.DirectionBuy, confidence, strength)
	sig.TrustVector = map[string]float64{"backtest": 0.8}
	return sig
}

func TestEvaluateSignalSizing(t *testing.T) {
	// Medium grade base 0.05, confidence 0.9, strength 0.9, drawdown
	// modifier 0.5: recommended size 0.02025.
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, &stubGate{modifier: 0.5})
	eval, err := eng.EvaluateSignal(context.Background(), gatedSignal(0.9, 0.9))
	require.NoError(t, err)

	assert.True(t, eval.Passed)
	assert.InDelta(t, 0.02025, eval.RecommendedPositionPct, 1e-9)
	assert.InDelta(t, 0.9*0.8, eval.ExecutionProbability, 1e-9)
	assert.InDelta(t, 0.8, eval.TrustScore, 1e-9)
	assert.Equal(t, uint64(2000), eval.LatencyBudgetMs)
	assert.False(t, eval.IsLatencyCritical)
}

func TestEvaluateSignalGradeBases(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, nil)
	for grade, base := range map[models.RiskGrade]float64{
		models.RiskGradeLow:         0.10,
		models.RiskGradeMedium:      0.05,
		models.RiskGradeHigh:        0.025,
		models.RiskGradeExceptional: 0.01,
	} {
		sig := gatedSignal(1.0, 1.0)
		g := grade
		sig.RiskGrade = &g
		eval, err := eng.EvaluateSignal(context.Background(), sig)
		require.NoError(t, err)
		assert.InDelta(t, base, eval.RecommendedPositionPct, 1e-9, "grade %s", grade)
	}
}

func TestPositionSizeHardCap(t *testing.T) {
	// A runaway modifier cannot push the size past the cap.
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, &stubGate{modifier: 5.0})
	sig := gatedSignal(1.0, 1.0)
	low := models.RiskGradeLow
	sig.RiskGrade = &low

	eval, err := eng.EvaluateSignal(context.Background(), sig)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, eval.RecommendedPositionPct, 1e-9)
}

func TestDefaultTrustScoreWhenVectorMissing(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, nil)
	sig := gatedSignal(0.8, 0.8)
	sig.TrustVector = nil

	eval, err := eng.EvaluateSignal(context.Background(), sig)
	require.NoError(t, err)
	assert.InDelta(t, defaultTrustScore, eval.TrustScore, 1e-9)
	assert.True(t, eval.Passed)
}

func TestTrustScoreGate(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, nil)
	sig := gatedSignal(0.8, 0.8)
	sig.TrustVector = map[string]float64{"backtest": 0.5}

	_, err := eng.EvaluateSignal(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, ErrKindTrustScoreTooLow, KindOf(err))
}

func TestValidationRejectsOutOfRangeInputs(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, nil)

	sig := gatedSignal(1.5, 0.8)
	_, err := eng.EvaluateSignal(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, ErrKindValidationFailed, KindOf(err))

	sig = gatedSignal(0.8, -0.1)
	_, err = eng.EvaluateSignal(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, ErrKindValidationFailed, KindOf(err))
}

func TestValidationRequiresPriceWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequirePrice = true
	eng := testEngine(t, cfg, &stubDispatcher{}, nil)

	_, err := eng.EvaluateSignal(context.Background(), gatedSignal(0.8, 0.8))
	require.Error(t, err)
	assert.Equal(t, ErrKindValidationFailed, KindOf(err))

	sig := gatedSignal(0.8, 0.8)
	price := 100.0
	sig.Price = &price
	_, err = eng.EvaluateSignal(context.Background(), sig)
	require.NoError(t, err)
}

func TestExpiryCheckedBeforeValidation(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{}, nil)

	// The signal is both expired and invalid; expiry must win.
	sig := gatedSignal(1.5, 0.8)
	past := time.Now().Add(-time.Minute)
	sig.Expiration = &past

	_, err := eng.ExecuteStrategy(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, ErrKindSignalExpired, KindOf(err))
}

func TestPausedStrategyIsRejected(t *testing.T) {
	dispatcher := &stubDispatcher{result: completedResult(100)}
	eng := testEngine(t, DefaultConfig(), dispatcher, &stubGate{modifier: 0.3, pause: true})

	_, err := eng.ExecuteStrategy(context.Background(), gatedSignal(0.9, 0.9))
	require.Error(t, err)
	assert.Equal(t, ErrKindRiskCheckFailed, KindOf(err))
	assert.Empty(t, dispatcher.lastOrder.ID, "dispatch must not be reached")
}

func TestExecuteStrategySuccess(t *testing.T) {
	price := 100.0
	dispatcher := &stubDispatcher{result: completedResult(100.5)}
	eng := testEngine(t, DefaultConfig(), dispatcher, &stubGate{modifier: 1.0})

	sig := gatedSignal(0.9, 0.9)
	sig.Price = &price

	res, err := eng.ExecuteStrategy(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)

	assert.Equal(t, sig.ID, dispatcher.lastOrder.SignalID)
	assert.Equal(t, "strat-1", dispatcher.lastOrder.StrategyID)
	assert.InDelta(t, 0.05*0.9*0.9, dispatcher.lastOrder.Amount, 1e-9)
	assert.InDelta(t, 0.5, dispatcher.lastOrder.MaxSlippagePct, 1e-9)
	assert.False(t, dispatcher.lastOrder.IsDryRun)

	m, ok := eng.SignalMetricsFor(sig.ID)
	require.True(t, ok)
	assert.True(t, m.Success)
	assert.Equal(t, models.SignalExecuted, m.Status)
	require.NotNil(t, m.SlippagePct)
	assert.InDelta(t, 0.5, *m.SlippagePct, 1e-9)
	require.NotNil(t, m.ExecutionLatencyMs)
	assert.InDelta(t, 0.8, m.AdditionalMetrics["evaluation_trust_score"], 1e-9)
}

func TestExecuteStrategyFixedSizingWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceBasedSizing = false
	dispatcher := &stubDispatcher{result: completedResult(100)}
	eng := testEngine(t, cfg, dispatcher, nil)

	_, err := eng.ExecuteStrategy(context.Background(), gatedSignal(0.9, 0.9))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, dispatcher.lastOrder.Amount, 1e-9)
}

func TestExecuteStrategyDryRunFlag(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRunMode = true
	dispatcher := &stubDispatcher{result: completedResult(100)}
	eng := testEngine(t, cfg, dispatcher, nil)

	_, err := eng.ExecuteStrategy(context.Background(), gatedSignal(0.9, 0.9))
	require.NoError(t, err)
	assert.True(t, dispatcher.lastOrder.IsDryRun)
}

func TestExecuteStrategyDispatchFailure(t *testing.T) {
	dispatcher := &stubDispatcher{err: execution.NewError(execution.ErrKindRateLimit, "throttled")}
	eng := testEngine(t, DefaultConfig(), dispatcher, nil)

	sig := gatedSignal(0.9, 0.9)
	_, err := eng.ExecuteStrategy(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, ErrKindExecutionFailed, KindOf(err))

	m, ok := eng.SignalMetricsFor(sig.ID)
	require.True(t, ok)
	assert.False(t, m.Success)
	assert.Equal(t, models.SignalRejected, m.Status)
	assert.Equal(t, 5.0, m.AdditionalMetrics["error_code"])
}

func TestDispatchErrorCodes(t *testing.T) {
	cases := map[execution.ErrorKind]float64{
		execution.ErrKindTimeout:       1,
		execution.ErrKindOrderRejected: 2,
		execution.ErrKindInsufficient:  3,
		execution.ErrKindValidation:    4,
		execution.ErrKindRateLimit:     5,
		execution.ErrKindService:       6,
		execution.ErrKindConnection:    7,
		execution.ErrKindInternal:      8,
		execution.ErrKindAuth:          9,
		execution.ErrKindNotSupported:  10,
	}
	for kind, want := range cases {
		assert.Equal(t, want, errorCode(execution.NewError(kind, "boom")), "kind %s", kind)
	}
}

func TestRiskViolationsBlockDispatch(t *testing.T) {
	dispatcher := &stubDispatcher{result: completedResult(100)}
	eng := testEngine(t, DefaultConfig(), dispatcher, nil)

	calc := eng.riskCalc.(*risk.ThresholdCalculator)
	calc.RecordExposure("BTC-USD", 0.30) // past the 0.25 symbol limit

	eval, err := eng.EvaluateSignal(context.Background(), gatedSignal(0.9, 0.9))
	require.NoError(t, err)
	assert.False(t, eval.Passed)
	require.NotEmpty(t, eval.RiskViolations)
	assert.Equal(t, "symbol_exposure_limit", eval.RiskViolations[0].Code)

	_, err = eng.ExecuteStrategy(context.Background(), gatedSignal(0.9, 0.9))
	require.Error(t, err)
	assert.Equal(t, ErrKindValidationFailed, KindOf(err))
	assert.Empty(t, dispatcher.lastOrder.ID)
}

func TestUpdateConfigTakesEffect(t *testing.T) {
	eng := testEngine(t, DefaultConfig(), &stubDispatcher{result: completedResult(100)}, nil)

	cfg := eng.Config()
	cfg.MinTrustScore = 0.9
	eng.UpdateConfig(cfg)

	_, err := eng.EvaluateSignal(context.Background(), gatedSignal(0.9, 0.9))
	require.Error(t, err)
	assert.Equal(t, ErrKindTrustScoreTooLow, KindOf(err))
}
