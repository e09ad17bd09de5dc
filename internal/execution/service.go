package execution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/service/ratelimit"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
)

// Sink receives the audit record of every finished dispatch. Sinks are
// best-effort: failures are logged and never affect the result.
type Sink interface {
	Record(ctx context.Context, log models.ExecutionLog)
}

// Service routes orders to the provider for the active mode, injects
// optional entropy delay and keeps a bounded cache of recent results.
type Service struct {
	live    Provider
	paper   Provider
	sandbox Provider

	modeMu sync.RWMutex
	mode   models.ExecutionMode

	entropyMu      sync.RWMutex
	entropyEnabled bool
	fixedDelay     time.Duration

	cache   *resultCache
	log     *logger.Logger
	metrics *metrics.Recorder
	sinks   []Sink
	rng     func() float64

	limiter       *ratelimit.Limiter
	rateCapacity  float64
	rateRefillSec float64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSinks attaches audit sinks for finished dispatches.
func WithSinks(sinks ...Sink) ServiceOption {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithCacheSize bounds the recent-results cache.
func WithCacheSize(n int) ServiceOption {
	return func(s *Service) { s.cache = newResultCache(n) }
}

// WithRateLimit caps dispatches per strategy with a token bucket.
func WithRateLimit(capacity, refillPerSec float64) ServiceOption {
	return func(s *Service) {
		s.limiter = ratelimit.New()
		s.rateCapacity = capacity
		s.rateRefillSec = refillPerSec
	}
}

// NewService builds a service defaulting to paper mode. sandbox may be
// nil when no testnet is configured.
func NewService(live, paper, sandbox Provider, log *logger.Logger, rec *metrics.Recorder, opts ...ServiceOption) *Service {
	s := &Service{
		live:    live,
		paper:   paper,
		sandbox: sandbox,
		mode:    models.ModePaper,
		cache:   newResultCache(1000),
		log:     log,
		metrics: rec,
		rng:     rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMode switches the active execution mode after verifying a capable
// provider exists. Backtest dispatch is served elsewhere.
func (s *Service) SetMode(mode models.ExecutionMode) error {
	provider, err := s.providerFor(mode)
	if err != nil {
		return err
	}
	if !provider.SupportsMode(mode) {
		return NewError(ErrKindNotSupported,
			fmt.Sprintf("%s mode not supported by provider %s", mode, provider.Name()))
	}
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
	s.log.Info("execution mode set", logger.String("mode", string(mode)))
	return nil
}

// Mode returns the active execution mode.
func (s *Service) Mode() models.ExecutionMode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// ConfigureEntropy toggles dispatch delay injection. A zero fixed
// delay means urgency-scaled random delay.
func (s *Service) ConfigureEntropy(enable bool, fixed time.Duration) {
	s.entropyMu.Lock()
	s.entropyEnabled = enable
	s.fixedDelay = fixed
	s.entropyMu.Unlock()
	if enable {
		s.log.Info("execution entropy injection enabled",
			logger.Duration("fixed_delay", fixed))
	} else {
		s.log.Info("execution entropy injection disabled")
	}
}

// Execute dispatches the order derived from sig through the provider
// for the active mode. The result, success or failure, lands in the
// recent-results cache and every configured sink.
func (s *Service) Execute(ctx context.Context, sig models.Signal, order models.Order) (models.ExecutionResult, error) {
	mode := s.Mode()
	provider, err := s.providerFor(mode)
	if err != nil {
		return models.ExecutionResult{}, err
	}

	if s.limiter != nil && !s.limiter.Allow(order.StrategyID, s.rateCapacity, s.rateRefillSec) {
		s.metrics.RecordError(string(ErrKindRateLimit))
		return models.ExecutionResult{}, NewError(ErrKindRateLimit,
			fmt.Sprintf("dispatch rate limit exceeded for strategy %s", order.StrategyID))
	}

	if err := s.applyEntropyDelay(ctx, sig); err != nil {
		return models.ExecutionResult{}, WrapError(ErrKindTimeout, "dispatch interrupted during delay", err)
	}

	// Stamped after the entropy delay: injected delay must stay out of
	// the latency window reported in the result.
	req := models.ExecutionRequest{
		RequestID: uuid.NewString(),
		Order:     order,
		OrderType: orderTypeFor(order),
		Mode:      mode,
		Timestamp: time.Now().UTC(),
	}

	started := time.Now()
	res, err := provider.Execute(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		s.metrics.RecordError(string(KindOf(err)))
		s.log.Error("dispatch failed",
			logger.String("request_id", req.RequestID),
			logger.String("mode", string(mode)),
			logger.Error(err))
		return models.ExecutionResult{}, err
	}

	s.cache.Put(res)
	s.metrics.RecordExecution(string(mode), string(res.Status))
	s.metrics.RecordDispatchLatency(string(mode), elapsed)
	s.metrics.SetCacheSize(s.cache.Len())
	s.emit(ctx, req, res)
	return res, nil
}

// Status returns the cached result for a request id, falling back to
// the active provider when the cache has evicted it.
func (s *Service) Status(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	if res, ok := s.cache.Get(requestID); ok {
		return res, nil
	}
	provider, err := s.providerFor(s.Mode())
	if err != nil {
		return models.ExecutionResult{}, err
	}
	return provider.Status(ctx, requestID)
}

// Cancel forwards a cancel request to the active provider and caches
// the updated result on success.
func (s *Service) Cancel(ctx context.Context, requestID string) (models.ExecutionResult, error) {
	provider, err := s.providerFor(s.Mode())
	if err != nil {
		return models.ExecutionResult{}, err
	}
	res, err := provider.Cancel(ctx, requestID)
	if err != nil {
		return models.ExecutionResult{}, err
	}
	s.cache.Put(res)
	s.metrics.RecordExecution(string(res.Mode), string(res.Status))
	return res, nil
}

// Recent lists cached results newest first, optionally filtered by
// status. An empty status matches everything.
func (s *Service) Recent(status models.ExecutionStatus, limit int) []models.ExecutionResult {
	return s.cache.Recent(status, limit)
}

func (s *Service) providerFor(mode models.ExecutionMode) (Provider, error) {
	switch mode {
	case models.ModeLive:
		return s.live, nil
	case models.ModePaper:
		return s.paper, nil
	case models.ModeSandbox:
		if s.sandbox == nil {
			return nil, NewError(ErrKindNotSupported, "no sandbox provider configured")
		}
		return s.sandbox, nil
	case models.ModeBacktest:
		return nil, NewError(ErrKindNotSupported, "backtest mode is not served by the execution service")
	default:
		return nil, NewError(ErrKindNotSupported, fmt.Sprintf("unknown execution mode %s", mode))
	}
}

// applyEntropyDelay holds the dispatch back when entropy injection is
// on: either the fixed configured delay, or a random delay scaled down
// by signal urgency (urgent signals go straight through).
func (s *Service) applyEntropyDelay(ctx context.Context, sig models.Signal) error {
	s.entropyMu.RLock()
	enabled, fixed := s.entropyEnabled, s.fixedDelay
	s.entropyMu.RUnlock()
	if !enabled {
		return nil
	}
	if fixed > 0 {
		return sleepCtx(ctx, fixed)
	}
	maxDelay := time.Duration((1 - sig.Urgency()) * float64(2*time.Second))
	delay := time.Duration(s.rng() * float64(maxDelay))
	if delay <= 0 {
		return nil
	}
	s.log.Debug("adding entropy delay to dispatch",
		logger.Duration("delay", delay),
		logger.String("signal_id", sig.ID))
	return sleepCtx(ctx, delay)
}

func (s *Service) emit(ctx context.Context, req models.ExecutionRequest, res models.ExecutionResult) {
	if len(s.sinks) == 0 {
		return
	}
	record := models.NewExecutionLog(req, res)
	for _, sink := range s.sinks {
		sink.Record(ctx, record)
	}
}

func orderTypeFor(order models.Order) models.OrderType {
	if order.Price != nil {
		return models.OrderLimit
	}
	return models.OrderMarket
}
