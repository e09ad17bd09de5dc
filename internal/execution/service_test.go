package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
)

type captureSink struct {
	mu      sync.Mutex
	records []models.ExecutionLog
}

func (c *captureSink) Record(_ context.Context, record models.ExecutionLog) {
	c.mu.Lock()
	c.records = append(c.records, record)
	c.mu.Unlock()
}

func testService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	rec := metrics.NewWith(prometheus.NewRegistry())

	paper := deterministicPaper(PaperConfig{FillRate: 1.0, SlippagePct: 0, FailureRate: 0}, seqRng(0.5))
	return NewService(NewLiveProvider(nil), paper, NewSandboxProvider(0), l, rec, opts...)
}

func serviceSignal() models.Signal {
	return models.NewSignal("strat-1", "BTC-USD", models.ActionEnter, models.DirectionBuy, 0.8, 0.7)
}

func serviceOrder(strategyID string) models.Order {
	price := 50.0
	return models.Order{
		ID:         "ord-1",
		Symbol:     "BTC-USD",
		Price:      &price,
		Amount:     0.05,
		Direction:  models.DirectionBuy,
		SignalID:   "sig-1",
		StrategyID: strategyID,
	}
}

func TestServiceDefaultsToPaperMode(t *testing.T) {
	s := testService(t)
	assert.Equal(t, models.ModePaper, s.Mode())
}

func TestServiceSetModeValidation(t *testing.T) {
	s := testService(t)

	require.NoError(t, s.SetMode(models.ModeSandbox))
	assert.Equal(t, models.ModeSandbox, s.Mode())

	require.NoError(t, s.SetMode(models.ModeLive))

	err := s.SetMode(models.ModeBacktest)
	require.Error(t, err)
	assert.Equal(t, ErrKindNotSupported, KindOf(err))

	err = s.SetMode(models.ExecutionMode("replay"))
	require.Error(t, err)
	assert.Equal(t, ErrKindNotSupported, KindOf(err))

	// Failed switches leave the previous mode active.
	assert.Equal(t, models.ModeLive, s.Mode())
}

func TestServiceExecuteCachesResult(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	res, err := s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.RequestID)

	got, err := s.Status(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, res.RequestID, got.RequestID)

	recent := s.Recent("", 0)
	require.Len(t, recent, 1)
	assert.Equal(t, res.RequestID, recent[0].RequestID)

	completed := s.Recent(models.StatusCompleted, 0)
	assert.Len(t, completed, 1)
	failed := s.Recent(models.StatusFailed, 0)
	assert.Empty(t, failed)
}

func TestServiceEmitsToSinks(t *testing.T) {
	sink := &captureSink{}
	s := testService(t, WithSinks(sink))
	ctx := context.Background()

	res, err := s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, res.RequestID, record.RequestID)
	assert.Equal(t, "strat-1", record.StrategyID)
	assert.Equal(t, "sig-1", record.SignalID)
	assert.Equal(t, models.ModePaper, record.Mode)
	require.NotNil(t, record.SlippageBps)
	assert.InDelta(t, 0.0, *record.SlippageBps, 1e-9)
}

func TestServiceRateLimit(t *testing.T) {
	s := testService(t, WithRateLimit(1, 0))
	ctx := context.Background()

	_, err := s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)

	_, err = s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.Error(t, err)
	assert.Equal(t, ErrKindRateLimit, KindOf(err))

	// Other strategies have their own bucket.
	_, err = s.Execute(ctx, serviceSignal(), serviceOrder("strat-2"))
	require.NoError(t, err)
}

func TestServiceEntropyFixedDelay(t *testing.T) {
	s := testService(t)
	s.ConfigureEntropy(true, 30*time.Millisecond)
	ctx := context.Background()

	started := time.Now()
	_, err := s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)

	s.ConfigureEntropy(false, 0)
	started = time.Now()
	_, err = s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 25*time.Millisecond)
}

func TestServiceEntropyDelayExcludedFromResultLatency(t *testing.T) {
	s := testService(t)
	s.ConfigureEntropy(true, 300*time.Millisecond)
	ctx := context.Background()

	started := time.Now()
	res, err := s.Execute(ctx, serviceSignal(), serviceOrder("strat-1"))
	require.NoError(t, err)

	// The delay held the dispatch back, but it must not leak into the
	// latency window reported in the result.
	assert.GreaterOrEqual(t, time.Since(started), 300*time.Millisecond)
	require.NotNil(t, res.Latency)
	assert.Less(t, res.Latency.TotalMs, uint64(100))
}

func TestServiceEntropySkipsUrgentSignals(t *testing.T) {
	s := testService(t)
	s.ConfigureEntropy(true, 0)
	s.rng = func() float64 { return 1.0 }
	ctx := context.Background()

	sig := serviceSignal()
	sig.Action = models.ActionExit // urgent: urgency 1.0, zero max delay

	started := time.Now()
	_, err := s.Execute(ctx, sig, serviceOrder("strat-1"))
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 100*time.Millisecond)
}

func TestServiceLiveDispatchWithoutGateway(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.SetMode(models.ModeLive))

	_, err := s.Execute(context.Background(), serviceSignal(), serviceOrder("strat-1"))
	require.Error(t, err)
	assert.Equal(t, ErrKindConnection, KindOf(err))
}

func TestServiceCancelUpdatesCache(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	// Seed an in-progress execution directly in the paper provider and
	// cache so cancel has something to act on.
	paper := s.paper.(*PaperProvider)
	open := models.ExecutionResult{
		RequestID: "req-open",
		Status:    models.StatusInProgress,
		Mode:      models.ModePaper,
		Timestamp: time.Now().UTC(),
	}
	paper.remember(open)
	s.cache.Put(open)

	res, err := s.Cancel(ctx, "req-open")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Status)

	cached, ok := s.cache.Get("req-open")
	require.True(t, ok)
	assert.Equal(t, models.StatusCancelled, cached.Status)
}

func TestServiceOrderTypeFromPrice(t *testing.T) {
	price := 10.0
	assert.Equal(t, models.OrderLimit, orderTypeFor(models.Order{Price: &price}))
	assert.Equal(t, models.OrderMarket, orderTypeFor(models.Order{}))
}
