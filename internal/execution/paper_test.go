package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
)

// seqRng returns the given values in order, cycling at the end.
func seqRng(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

func deterministicPaper(cfg PaperConfig, rng func() float64) *PaperProvider {
	p := NewPaperProvider()
	cfg.LatencyMin = 0
	cfg.LatencyMax = 0
	p.Configure(cfg)
	p.rng = rng
	return p
}

func paperRequest(price *float64, amount float64, dir models.TradeDirection) models.ExecutionRequest {
	return models.ExecutionRequest{
		RequestID: "req-1",
		Order: models.Order{
			ID:         "ord-1",
			Symbol:     "BTC-USD",
			Price:      price,
			Amount:     amount,
			Direction:  dir,
			SignalID:   "sig-1",
			StrategyID: "strat-1",
		},
		OrderType: models.OrderLimit,
		Mode:      models.ModePaper,
		Timestamp: time.Now().UTC(),
	}
}

func TestPaperDeterministicFullFill(t *testing.T) {
	// Full fill, no failures, no slippage: the fill lands exactly at
	// the limit price.
	p := deterministicPaper(PaperConfig{FillRate: 1.0, SlippagePct: 0, FailureRate: 0}, seqRng(0.5))
	price := 50.0
	res, err := p.Execute(context.Background(), paperRequest(&price, 1.0, models.DirectionBuy))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.Equal(t, 1.0, res.FilledAmount)
	require.NotNil(t, res.AvgFillPrice)
	assert.Equal(t, 50.0, *res.AvgFillPrice)
	require.NotNil(t, res.Fees)
	assert.InDelta(t, 0.05, res.Fees.Amount, 1e-9)
	assert.Equal(t, 10.0, res.Fees.RateBps)
	assert.Contains(t, res.OrderID, "paper-")
}

func TestPaperSlippageDirection(t *testing.T) {
	cfg := PaperConfig{FillRate: 1.0, SlippagePct: 0.05, FailureRate: 0}
	price := 100.0

	// rng sequence: latency draw, failure draw, slippage draw, fill draw.
	buy := deterministicPaper(cfg, seqRng(0, 0.5, 1.0, 0))
	res, err := buy.Execute(context.Background(), paperRequest(&price, 1.0, models.DirectionBuy))
	require.NoError(t, err)
	assert.InDelta(t, 100.05, *res.AvgFillPrice, 1e-9, "buys slip upward")

	sell := deterministicPaper(cfg, seqRng(0, 0.5, 1.0, 0))
	res, err = sell.Execute(context.Background(), paperRequest(&price, 1.0, models.DirectionSell))
	require.NoError(t, err)
	assert.InDelta(t, 99.95, *res.AvgFillPrice, 1e-9, "sells slip downward")
}

func TestPaperDefaultReferencePrice(t *testing.T) {
	p := deterministicPaper(PaperConfig{FillRate: 1.0, SlippagePct: 0, FailureRate: 0}, seqRng(0.5))
	res, err := p.Execute(context.Background(), paperRequest(nil, 2.0, models.DirectionBuy))
	require.NoError(t, err)
	require.NotNil(t, res.AvgFillPrice)
	assert.Equal(t, 100.0, *res.AvgFillPrice)
}

func TestPaperPartialFill(t *testing.T) {
	// Fill rate zero forces the partial path; the partial fraction is
	// the next rng draw.
	p := deterministicPaper(PaperConfig{FillRate: 0, SlippagePct: 0, FailureRate: 0}, seqRng(0, 0.5, 0.5, 0.9, 0.25))
	price := 10.0
	res, err := p.Execute(context.Background(), paperRequest(&price, 4.0, models.DirectionBuy))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartiallyFilled, res.Status)
	assert.InDelta(t, 1.0, res.FilledAmount, 1e-9)
}

func TestPaperSimulatedFailure(t *testing.T) {
	// failure draw 0.3 < rate 1.0, message draw 0.3 -> index 1.
	p := deterministicPaper(PaperConfig{FillRate: 1.0, SlippagePct: 0, FailureRate: 1.0}, seqRng(0, 0.3, 0.3))
	price := 10.0
	res, err := p.Execute(context.Background(), paperRequest(&price, 1.0, models.DirectionBuy))
	require.NoError(t, err, "simulated failures are results, not errors")

	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, "Simulated timeout error", res.ErrorMessage)
	assert.Zero(t, res.FilledAmount)

	// The failed result is still queryable.
	got, err := p.Status(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestPaperCancelRules(t *testing.T) {
	p := deterministicPaper(DefaultPaperConfig(), seqRng(0))
	ctx := context.Background()

	p.remember(models.ExecutionResult{RequestID: "open", Status: models.StatusInProgress, Mode: models.ModePaper})
	p.remember(models.ExecutionResult{RequestID: "done", Status: models.StatusCompleted, Mode: models.ModePaper})

	res, err := p.Cancel(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Status)

	_, err = p.Cancel(ctx, "done")
	require.Error(t, err)
	assert.Equal(t, ErrKindOrderRejected, KindOf(err))

	_, err = p.Cancel(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, ErrKindOrderRejected, KindOf(err))
}

func TestPaperExecutionInterruptedByContext(t *testing.T) {
	p := NewPaperProvider()
	p.Configure(PaperConfig{LatencyMin: time.Second, LatencyMax: time.Second, FillRate: 1.0})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	price := 10.0
	_, err := p.Execute(ctx, paperRequest(&price, 1.0, models.DirectionBuy))
	require.Error(t, err)
	assert.Equal(t, ErrKindTimeout, KindOf(err))
}

func TestPaperConfigureClampsRates(t *testing.T) {
	p := NewPaperProvider()
	p.Configure(PaperConfig{FillRate: 1.7, SlippagePct: -0.2, FailureRate: 2.0})
	cfg := p.config()
	assert.Equal(t, 1.0, cfg.FillRate)
	assert.Equal(t, 0.0, cfg.SlippagePct)
	assert.Equal(t, 1.0, cfg.FailureRate)
}

func TestSandboxRejectsOversizedOrders(t *testing.T) {
	s := NewSandboxProvider(5)
	s.sim.Configure(PaperConfig{FillRate: 1.0})
	s.sim.rng = seqRng(0.5)

	price := 10.0
	req := paperRequest(&price, 6.0, models.DirectionBuy)
	_, err := s.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, ErrKindValidation, KindOf(err))

	req = paperRequest(&price, 4.0, models.DirectionBuy)
	res, err := s.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ModeSandbox, res.Mode)
}

func TestLiveProviderWithoutGateway(t *testing.T) {
	l := NewLiveProvider(nil)
	price := 10.0

	_, err := l.Execute(context.Background(), paperRequest(&price, 1.0, models.DirectionBuy))
	require.Error(t, err)
	assert.Equal(t, ErrKindConnection, KindOf(err))

	var execErr *Error
	require.ErrorAs(t, err, &execErr)
	require.NotNil(t, execErr.Context)
	assert.True(t, execErr.Recoverable())
}
