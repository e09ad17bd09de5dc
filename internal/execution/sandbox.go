package execution

import (
	"context"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
)

// SandboxProvider runs the paper simulation against testnet-like
// constraints: slower venue, stricter order-size limits.
type SandboxProvider struct {
	sim            *PaperProvider
	maxOrderAmount float64
}

// NewSandboxProvider creates a sandbox provider. maxOrderAmount <= 0
// disables the size limit.
func NewSandboxProvider(maxOrderAmount float64) *SandboxProvider {
	sim := NewPaperProvider()
	sim.Configure(PaperConfig{
		LatencyMin:  100 * time.Millisecond,
		LatencyMax:  500 * time.Millisecond,
		FillRate:    0.95,
		SlippagePct: 0.10,
		FailureRate: 0.02,
	})
	return &SandboxProvider{sim: sim, maxOrderAmount: maxOrderAmount}
}

func (s *SandboxProvider) Name() string { return "sandbox" }

func (s *SandboxProvider) SupportsMode(mode models.ExecutionMode) bool {
	return mode == models.ModeSandbox
}

func (s *SandboxProvider) Execute(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	if s.maxOrderAmount > 0 && req.Order.Amount > s.maxOrderAmount {
		return models.ExecutionResult{}, NewError(ErrKindValidation,
			fmt.Sprintf("order amount %v exceeds sandbox limit %v", req.Order.Amount, s.maxOrderAmount))
	}
	res, err := s.sim.Execute(ctx, req)
	if err != nil {
		return res, err
	}
	res.Mode = models.ModeSandbox
	s.sim.remember(res)
	return res, nil
}

func (s *SandboxProvider) Cancel(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	return s.sim.Cancel(ctx, requestID)
}

func (s *SandboxProvider) Status(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	return s.sim.Status(ctx, requestID)
}
