package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeGate/internal/domain/models"
)

// PaperConfig tunes the paper-trading simulation.
type PaperConfig struct {
	LatencyMin  time.Duration `json:"latency_min" yaml:"latency_min" default:"50ms"`
	LatencyMax  time.Duration `json:"latency_max" yaml:"latency_max" default:"250ms"`
	FillRate    float64       `json:"fill_rate" yaml:"fill_rate" default:"1.0" validate:"gte=0,lte=1"`
	SlippagePct float64       `json:"slippage_pct" yaml:"slippage_pct" default:"0.05" validate:"gte=0,lte=1"`
	FailureRate float64       `json:"failure_rate" yaml:"failure_rate" default:"0.01" validate:"gte=0,lte=1"`
}

// DefaultPaperConfig returns the stock simulation parameters.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		LatencyMin:  50 * time.Millisecond,
		LatencyMax:  250 * time.Millisecond,
		FillRate:    1.0,
		SlippagePct: 0.05,
		FailureRate: 0.01,
	}
}

var simulatedErrors = []string{
	"Simulated network error",
	"Simulated timeout error",
	"Simulated rate limit error",
	"Simulated service unavailable error",
}

// PaperProvider simulates venue behavior for paper trading: random
// latency, occasional synthetic failures, direction-aware slippage and
// partial fills.
type PaperProvider struct {
	cfgMu sync.RWMutex
	cfg   PaperConfig

	mu         sync.RWMutex
	executions map[string]models.ExecutionResult

	rng func() float64
}

// NewPaperProvider creates a provider with default simulation parameters.
func NewPaperProvider() *PaperProvider {
	return &PaperProvider{
		cfg:        DefaultPaperConfig(),
		executions: make(map[string]models.ExecutionResult),
		rng:        rand.Float64,
	}
}

// Configure replaces the simulation parameters. Rates are clamped to [0,1].
func (p *PaperProvider) Configure(cfg PaperConfig) {
	cfg.FillRate = clamp01(cfg.FillRate)
	cfg.SlippagePct = clamp01(cfg.SlippagePct)
	cfg.FailureRate = clamp01(cfg.FailureRate)
	p.cfgMu.Lock()
	p.cfg = cfg
	p.cfgMu.Unlock()
}

func (p *PaperProvider) config() PaperConfig {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

func (p *PaperProvider) Name() string { return "paper" }

func (p *PaperProvider) SupportsMode(mode models.ExecutionMode) bool {
	return mode == models.ModePaper
}

func (p *PaperProvider) Execute(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	cfg := p.config()
	if err := p.simulateLatency(ctx, cfg); err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindTimeout, "paper execution interrupted", err)
	}

	started := req.Timestamp
	if started.IsZero() {
		started = time.Now().UTC()
	}

	if p.rng() < cfg.FailureRate {
		msg := simulatedErrors[int(p.rng()*float64(len(simulatedErrors)))%len(simulatedErrors)]
		res := models.ExecutionResult{
			RequestID:    req.RequestID,
			Status:       models.StatusFailed,
			ErrorMessage: msg,
			Mode:         models.ModePaper,
			Timestamp:    time.Now().UTC(),
		}
		p.remember(res)
		return res, nil
	}

	// No limit price on the order means a synthetic reference price.
	basePrice := 100.0
	if req.Order.Price != nil {
		basePrice = *req.Order.Price
	}

	// Buys slip up, sells slip down: slippage always hurts.
	directionFactor := 1.0
	if req.Order.Direction == models.DirectionSell {
		directionFactor = -1.0
	}
	fillPrice := basePrice * (1 + directionFactor*cfg.SlippagePct/100*p.rng())

	requested := req.Order.Amount
	filled := requested
	status := models.StatusCompleted
	if p.rng() >= cfg.FillRate {
		filled = requested * p.rng()
		status = models.StatusPartiallyFilled
	}

	elapsed := time.Since(started)
	if elapsed < 0 {
		elapsed = 0
	}
	totalMs := uint64(elapsed / time.Millisecond)
	res := models.ExecutionResult{
		RequestID:    req.RequestID,
		OrderID:      fmt.Sprintf("paper-%s", uuid.NewString()),
		Status:       status,
		FilledAmount: filled,
		AvgFillPrice: &fillPrice,
		Fees: &models.FeeInfo{
			Currency: "USD",
			Amount:   filled * fillPrice * 0.001,
			RateBps:  10,
		},
		Latency: &models.LatencyProfile{
			ExecutionMs: totalMs,
			TotalMs:     totalMs,
		},
		Mode:      models.ModePaper,
		Timestamp: time.Now().UTC(),
	}
	p.remember(res)
	return res, nil
}

func (p *PaperProvider) Cancel(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	cfg := p.config()
	if err := p.simulateLatency(ctx, cfg); err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindTimeout, "paper cancel interrupted", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.executions[requestID]
	if !ok {
		return models.ExecutionResult{}, NewError(ErrKindOrderRejected,
			fmt.Sprintf("order %s not found", requestID))
	}
	if !res.Status.Cancellable() {
		return models.ExecutionResult{}, NewError(ErrKindOrderRejected,
			fmt.Sprintf("cannot cancel order in state %s", res.Status))
	}
	res.Status = models.StatusCancelled
	res.Timestamp = time.Now().UTC()
	p.executions[requestID] = res
	return res, nil
}

func (p *PaperProvider) Status(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if res, ok := p.executions[requestID]; ok {
		return res, nil
	}
	return models.ExecutionResult{}, NewError(ErrKindOrderRejected,
		fmt.Sprintf("order %s not found", requestID))
}

func (p *PaperProvider) remember(res models.ExecutionResult) {
	p.mu.Lock()
	p.executions[res.RequestID] = res
	p.mu.Unlock()
}

func (p *PaperProvider) simulateLatency(ctx context.Context, cfg PaperConfig) error {
	span := cfg.LatencyMax - cfg.LatencyMin
	if span < 0 {
		span = 0
	}
	return sleepCtx(ctx, cfg.LatencyMin+time.Duration(p.rng()*float64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
