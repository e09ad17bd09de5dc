package execution

import (
	"context"

	"TradeGate/internal/domain/models"
)

// Provider dispatches orders to a venue (real or simulated).
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and telemetry.
	Name() string

	// Execute dispatches the request and blocks until a terminal
	// result or ctx is done. Failures that produce a venue-side
	// outcome are returned as failed results; transport and
	// validation failures are returned as errors.
	Execute(ctx context.Context, req models.ExecutionRequest) (models.ExecutionResult, error)

	// Cancel attempts to cancel an in-flight order by request id.
	Cancel(ctx context.Context, requestID string) (models.ExecutionResult, error)

	// Status returns the provider-side view of a dispatched request.
	Status(ctx context.Context, requestID string) (models.ExecutionResult, error)

	// SupportsMode reports whether the provider can serve the mode.
	SupportsMode(mode models.ExecutionMode) bool
}
