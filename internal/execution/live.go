package execution

import (
	"context"
	"fmt"

	"TradeGate/internal/domain/models"
)

// VenueGateway is the adapter boundary for a real trading venue.
// Venue protocol details live behind this interface.
type VenueGateway interface {
	SubmitOrder(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error)
	CancelOrder(ctx context.Context, requestID string) (models.ExecutionResult, error)
	OrderStatus(ctx context.Context, requestID string) (models.ExecutionResult, error)
}

// LiveProvider routes orders to a configured venue gateway. Without a
// gateway it refuses to dispatch rather than silently simulating.
type LiveProvider struct {
	gateway VenueGateway
}

// NewLiveProvider creates a live provider. gateway may be nil, in
// which case every operation fails with a connection error.
func NewLiveProvider(gateway VenueGateway) *LiveProvider {
	return &LiveProvider{gateway: gateway}
}

func (l *LiveProvider) Name() string { return "live" }

func (l *LiveProvider) SupportsMode(mode models.ExecutionMode) bool {
	return mode == models.ModeLive
}

func (l *LiveProvider) Execute(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error) {
	if l.gateway == nil {
		return models.ExecutionResult{}, l.noGateway("execute")
	}
	res, err := l.gateway.SubmitOrder(ctx, req)
	if err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindService,
			fmt.Sprintf("venue submit failed for request %s", req.RequestID), err)
	}
	return res, nil
}

func (l *LiveProvider) Cancel(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	if l.gateway == nil {
		return models.ExecutionResult{}, l.noGateway("cancel")
	}
	res, err := l.gateway.CancelOrder(ctx, requestID)
	if err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindService,
			fmt.Sprintf("venue cancel failed for request %s", requestID), err)
	}
	return res, nil
}

func (l *LiveProvider) Status(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	if l.gateway == nil {
		return models.ExecutionResult{}, l.noGateway("status")
	}
	res, err := l.gateway.OrderStatus(ctx, requestID)
	if err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindService,
			fmt.Sprintf("venue status failed for request %s", requestID), err)
	}
	return res, nil
}

func (l *LiveProvider) noGateway(op string) error {
	return NewError(ErrKindConnection, "no venue gateway configured").
		WithContext(NewErrorContext("no venue gateway configured", "live_provider", op).
			Recoverable("configure a venue gateway before enabling live mode"))
}
