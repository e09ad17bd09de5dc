package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(direction TradeDirection, price float64) ExecutionRequest {
	return ExecutionRequest{
		RequestID: "req-1",
		Order: Order{
			ID:         "ord-1",
			Symbol:     "BTC-USD",
			Price:      &price,
			Amount:     2.0,
			Direction:  direction,
			SignalID:   "sig-1",
			StrategyID: "strat-1",
		},
		OrderType: OrderLimit,
		Mode:      ModePaper,
		Timestamp: time.Now().UTC(),
	}
}

func TestStatusTransitions(t *testing.T) {
	assert.False(t, StatusReceived.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())

	assert.True(t, StatusReceived.Cancellable())
	assert.True(t, StatusInProgress.Cancellable())
	assert.False(t, StatusPartiallyFilled.Cancellable())
	assert.False(t, StatusCompleted.Cancellable())
}

func TestNewExecutionLogSlippageSign(t *testing.T) {
	fill := 100.5
	res := ExecutionResult{
		RequestID:    "req-1",
		OrderID:      "ord-1",
		Status:       StatusCompleted,
		FilledAmount: 2.0,
		AvgFillPrice: &fill,
		Mode:         ModePaper,
		Timestamp:    time.Now().UTC(),
	}

	// Buying above the expected price is a worse fill: +50bps.
	log := NewExecutionLog(sampleRequest(DirectionBuy, 100), res)
	require.NotNil(t, log.SlippageBps)
	assert.InDelta(t, 50, *log.SlippageBps, 1e-9)

	// Selling above the expected price is a better fill: -50bps.
	log = NewExecutionLog(sampleRequest(DirectionSell, 100), res)
	require.NotNil(t, log.SlippageBps)
	assert.InDelta(t, -50, *log.SlippageBps, 1e-9)
}

func TestNewExecutionLogWithoutPrices(t *testing.T) {
	req := sampleRequest(DirectionBuy, 100)
	req.Order.Price = nil
	res := ExecutionResult{RequestID: "req-1", Status: StatusFailed, ErrorMessage: "boom", Mode: ModePaper}

	log := NewExecutionLog(req, res)
	assert.Nil(t, log.SlippageBps)
	assert.Equal(t, "boom", log.ErrorMessage)
	assert.Equal(t, uint64(0), log.LatencyMs)
	assert.Equal(t, 0.0, log.FeeAmount)
}

func TestNewExecutionLogCarriesFeesAndLatency(t *testing.T) {
	res := ExecutionResult{
		RequestID: "req-1",
		Status:    StatusCompleted,
		Latency:   &LatencyProfile{TotalMs: 42},
		Fees:      &FeeInfo{Currency: "USD", Amount: 0.25, RateBps: 10},
		Mode:      ModeLive,
	}

	log := NewExecutionLog(sampleRequest(DirectionBuy, 100), res)
	assert.Equal(t, uint64(42), log.LatencyMs)
	assert.Equal(t, 0.25, log.FeeAmount)
	assert.Equal(t, "strat-1", log.StrategyID)
	assert.Equal(t, "sig-1", log.SignalID)
}

func TestLatencyProfileEvaluate(t *testing.T) {
	thresholds := LatencyThresholds{
		RequestProcessingMs: 50,
		SubmissionMs:        100,
		AcknowledgementMs:   500,
		ExecutionMs:         2000,
		TotalMs:             3000,
	}

	clean := LatencyProfile{RequestProcessingMs: 10, SubmissionMs: 50, AcknowledgementMs: 100, ExecutionMs: 500, TotalMs: 660}
	assert.Empty(t, clean.Evaluate(thresholds))

	slow := LatencyProfile{RequestProcessingMs: 60, SubmissionMs: 50, AcknowledgementMs: 600, ExecutionMs: 500, TotalMs: 3200}
	assert.Equal(t, []string{"request_processing", "acknowledgement", "total"}, slow.Evaluate(thresholds))
}

func TestScoreExecutionQuality(t *testing.T) {
	thresholds := LatencyThresholds{TotalMs: 3000}

	assert.Equal(t, ExecutionQualityScore{}, ScoreExecutionQuality(nil, thresholds))

	slip1, slip2 := 10.0, 30.0
	logs := []ExecutionLog{
		{Status: StatusCompleted, Amount: 2, FilledAmount: 2, SlippageBps: &slip1, LatencyMs: 300},
		{Status: StatusCompleted, Amount: 2, FilledAmount: 1, SlippageBps: &slip2, LatencyMs: 600},
		{Status: StatusCancelled, Amount: 2, FilledAmount: 0, LatencyMs: 0},
	}

	q := ScoreExecutionQuality(logs, thresholds)
	assert.Equal(t, 3, q.SampleSize)
	assert.InDelta(t, 20.0, q.AvgSlippageBps, 1e-9)
	assert.InDelta(t, 300.0, q.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.5, q.FillRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, q.CancelRate, 1e-9)

	want := 0.4*(1-20.0/50) + 0.2*(1-300.0/3000) + 0.3*0.5 + 0.1*(1-1.0/3.0)
	assert.InDelta(t, want, q.Score, 1e-9)
}

func TestExecutionResultJSONRoundTrip(t *testing.T) {
	fill := 100.5
	original := ExecutionResult{
		RequestID:    "req-1",
		OrderID:      "ord-1",
		Status:       StatusPartiallyFilled,
		FilledAmount: 1.5,
		AvgFillPrice: &fill,
		Fees:         &FeeInfo{Currency: "USD", Amount: 0.15, RateBps: 10},
		Latency:      &LatencyProfile{RequestProcessingMs: 5, SubmissionMs: 20, AcknowledgementMs: 30, ExecutionMs: 40, TotalMs: 95},
		ErrorMessage: "partial venue fill",
		Mode:         ModePaper,
		Timestamp:    time.Date(2026, 8, 30, 12, 0, 0, 123456789, time.UTC),
	}

	b, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ExecutionResult
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, original, decoded)
}

func TestScoreExecutionQualityClampsComponents(t *testing.T) {
	slip := 200.0 // well past the 50bps ceiling
	logs := []ExecutionLog{
		{Status: StatusCompleted, Amount: 1, FilledAmount: 1, SlippageBps: &slip, LatencyMs: 10_000},
	}
	q := ScoreExecutionQuality(logs, LatencyThresholds{TotalMs: 3000})

	// Slippage and latency components bottom out at zero instead of
	// going negative.
	assert.InDelta(t, 0.3+0.1, q.Score, 1e-9)
}
