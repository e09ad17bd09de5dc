package drawdown

import (
	"context"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/logger"
	"TradeGate/pkg/metrics"
)

// Store persists drawdown state out-of-band. Implementations must be
// safe for concurrent use. The tracker treats persistence as
// best-effort: write failures are logged, read failures fall back to a
// clean Normal state.
type Store interface {
	SaveSnapshot(ctx context.Context, snap models.DrawdownSnapshot) error
	SaveRecovery(ctx context.Context, strategyID string, rs *models.RecoveryState) error
	LoadSnapshot(ctx context.Context, strategyID string) (models.DrawdownSnapshot, error)
	LoadRecovery(ctx context.Context, strategyID string) (*models.RecoveryState, error)
	PublishAlert(ctx context.Context, alert models.DrawdownAlert) error
}

// record holds everything the tracker knows about one strategy. Its
// mutex makes snapshot, state and modifier move together: readers never
// observe a new state paired with a stale modifier.
type record struct {
	mu       sync.Mutex
	snapshot models.DrawdownSnapshot
	recovery *models.RecoveryState
	history  []models.DrawdownSnapshot
}

// Tracker is the per-strategy drawdown state machine. In-memory state
// is authoritative; the Store is a write-behind mirror plus the alert
// channel.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*record

	cfgMu sync.RWMutex
	cfg   models.DrawdownConfig

	store   Store
	log     *logger.Logger
	metrics *metrics.Recorder

	historyLimit int
	now          func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the wall clock, for time-based ramp tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithHistoryLimit bounds the per-strategy snapshot history.
func WithHistoryLimit(n int) Option {
	return func(t *Tracker) { t.historyLimit = n }
}

// NewTracker builds a tracker with the given config. A nil store
// disables persistence and alerts.
func NewTracker(cfg models.DrawdownConfig, store Store, log *logger.Logger, rec *metrics.Recorder, opts ...Option) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{
		records:      make(map[string]*record),
		cfg:          cfg,
		store:        store,
		log:          log,
		metrics:      rec,
		historyLimit: 256,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ensure returns the record for the strategy, creating it on first use.
// Double-checked so the common path takes only the read lock.
func (t *Tracker) ensure(ctx context.Context, strategyID string) *record {
	t.mu.RLock()
	r, ok := t.records[strategyID]
	t.mu.RUnlock()
	if ok {
		return r
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok = t.records[strategyID]; ok {
		return r
	}
	r = &record{snapshot: t.seed(ctx, strategyID)}
	if t.store != nil {
		if rs, err := t.store.LoadRecovery(ctx, strategyID); err == nil {
			r.recovery = rs
		}
	}
	t.records[strategyID] = r
	return r
}

// seed restores a snapshot from the store, or starts clean.
func (t *Tracker) seed(ctx context.Context, strategyID string) models.DrawdownSnapshot {
	clean := models.DrawdownSnapshot{
		StrategyID:   strategyID,
		State:        models.DrawdownNormal,
		RiskModifier: 1.0,
		UpdatedAt:    t.now(),
	}
	if t.store == nil {
		return clean
	}
	snap, err := t.store.LoadSnapshot(ctx, strategyID)
	if err != nil {
		return clean
	}
	return snap
}

// UpdateEquity records a new equity observation for the strategy and
// returns the resulting snapshot. The whole transition (drawdown, state,
// modifier) is computed atomically under the strategy's lock.
func (t *Tracker) UpdateEquity(ctx context.Context, strategyID string, equity float64) models.DrawdownSnapshot {
	cfg := t.Config()
	r := t.ensure(ctx, strategyID)

	r.mu.Lock()
	prev := r.snapshot
	peak := prev.PeakEquity
	if equity > peak {
		peak = equity
	}
	dd := drawdownPct(equity, peak)
	now := t.now()

	state, alert := t.transition(cfg, r, prev.State, dd, equity, peak, now)
	snap := models.DrawdownSnapshot{
		StrategyID:    strategyID,
		CurrentEquity: equity,
		PeakEquity:    peak,
		DrawdownPct:   dd,
		State:         state,
		RiskModifier:  t.modifierLocked(cfg, r, state, equity, now),
		UpdatedAt:     now,
	}
	r.snapshot = snap
	r.history = append(r.history, snap)
	if t.historyLimit > 0 && len(r.history) > t.historyLimit {
		r.history = r.history[len(r.history)-t.historyLimit:]
	}
	recovery := cloneRecovery(r.recovery)
	r.mu.Unlock()

	if prev.State != state {
		t.log.Info("drawdown state transition",
			logger.String("strategy_id", strategyID),
			logger.String("from", string(prev.State)),
			logger.String("to", string(state)),
			logger.Float64("drawdown_pct", dd))
	}
	if t.metrics != nil {
		t.metrics.SetDrawdown(strategyID, dd, snap.RiskModifier)
	}
	t.persist(ctx, snap, recovery)
	if alert != nil {
		t.publishAlert(ctx, *alert)
	}
	return snap
}

// transition implements the four-state machine. It mutates r.recovery
// (caller holds r.mu) and returns the new state plus an alert when the
// strategy just entered Critical.
func (t *Tracker) transition(cfg models.DrawdownConfig, r *record, current models.DrawdownState, dd, equity, peak float64, now time.Time) (models.DrawdownState, *models.DrawdownAlert) {
	if current == models.DrawdownRecovery {
		switch {
		case dd >= 0:
			r.recovery = nil
			return models.DrawdownNormal, nil
		case dd <= cfg.CriticalThreshold:
			r.recovery = &models.RecoveryState{LowPoint: equity, ReferencePeak: peak}
			return models.DrawdownCritical, nil
		default:
			return models.DrawdownRecovery, nil
		}
	}

	if dd <= cfg.CriticalThreshold {
		if current != models.DrawdownCritical {
			r.recovery = &models.RecoveryState{LowPoint: equity, ReferencePeak: peak}
			var alert *models.DrawdownAlert
			if cfg.EnableAlerts {
				alert = &models.DrawdownAlert{
					StrategyID:  r.snapshot.StrategyID,
					State:       models.DrawdownCritical,
					DrawdownPct: dd,
					Equity:      equity,
					PeakEquity:  peak,
					Timestamp:   now,
				}
			}
			return models.DrawdownCritical, alert
		}
		// The low point is frozen at Critical entry; deeper equity while
		// critical persists does not move the recovery baseline.
		return models.DrawdownCritical, nil
	}

	if dd <= cfg.CautionThreshold {
		if current == models.DrawdownCritical && r.recovery != nil {
			// Improvement is measured off the recorded low point, so a
			// bounce must clear |recovery_threshold| before ramping.
			improvement := drawdownPct(equity, r.recovery.LowPoint)
			if improvement >= -cfg.RecoveryThreshold {
				r.recovery.StartedAt = now
				return models.DrawdownRecovery, nil
			}
		}
		return models.DrawdownCaution, nil
	}
	return models.DrawdownNormal, nil
}

// modifierLocked computes the risk modifier for the state. Caller holds r.mu.
func (t *Tracker) modifierLocked(cfg models.DrawdownConfig, r *record, state models.DrawdownState, equity float64, now time.Time) float64 {
	switch state {
	case models.DrawdownNormal:
		return 1.0
	case models.DrawdownCaution:
		return cfg.CautionModifier
	case models.DrawdownCritical:
		return cfg.CriticalModifier
	default:
		if r.recovery == nil || r.recovery.StartedAt.IsZero() {
			return cfg.CriticalModifier
		}
		return rampModifier(cfg, *r.recovery, equity, now)
	}
}

// Snapshot returns the current snapshot for the strategy. Unknown
// strategies read as a clean Normal state.
func (t *Tracker) Snapshot(ctx context.Context, strategyID string) models.DrawdownSnapshot {
	r := t.ensure(ctx, strategyID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// State returns the current drawdown state for the strategy.
func (t *Tracker) State(ctx context.Context, strategyID string) models.DrawdownState {
	return t.Snapshot(ctx, strategyID).State
}

// RiskModifier returns the sizing modifier in [0,1] for the strategy.
func (t *Tracker) RiskModifier(ctx context.Context, strategyID string) float64 {
	return t.Snapshot(ctx, strategyID).RiskModifier
}

// ShouldPauseTrading reports whether dispatch must halt for the strategy.
func (t *Tracker) ShouldPauseTrading(ctx context.Context, strategyID string) bool {
	cfg := t.Config()
	return cfg.PauseTradesInCritical && t.State(ctx, strategyID) == models.DrawdownCritical
}

// History returns up to limit most recent snapshots, oldest first.
// limit <= 0 returns the full retained history.
func (t *Tracker) History(ctx context.Context, strategyID string, limit int) []models.DrawdownSnapshot {
	r := t.ensure(ctx, strategyID)
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]models.DrawdownSnapshot, len(h))
	copy(out, h)
	return out
}

// Reset discards drawdown history for the strategy: the current equity
// becomes the new peak, state returns to Normal and the modifier to 1.0.
// Resetting twice is a no-op.
func (t *Tracker) Reset(ctx context.Context, strategyID string) models.DrawdownSnapshot {
	r := t.ensure(ctx, strategyID)

	r.mu.Lock()
	snap := models.DrawdownSnapshot{
		StrategyID:    strategyID,
		CurrentEquity: r.snapshot.CurrentEquity,
		PeakEquity:    r.snapshot.CurrentEquity,
		DrawdownPct:   0,
		State:         models.DrawdownNormal,
		RiskModifier:  1.0,
		UpdatedAt:     t.now(),
	}
	r.snapshot = snap
	r.recovery = nil
	r.history = append(r.history, snap)
	r.mu.Unlock()

	t.log.Info("drawdown reset", logger.String("strategy_id", strategyID))
	t.persist(ctx, snap, nil)
	return snap
}

// Config returns a copy of the active configuration.
func (t *Tracker) Config() models.DrawdownConfig {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	return t.cfg
}

// UpdateConfig swaps the configuration after validating it. Invalid
// configurations are rejected and the previous one stays active.
func (t *Tracker) UpdateConfig(cfg models.DrawdownConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.cfgMu.Lock()
	t.cfg = cfg
	t.cfgMu.Unlock()
	t.log.Info("drawdown config updated",
		logger.Float64("caution_threshold", cfg.CautionThreshold),
		logger.Float64("critical_threshold", cfg.CriticalThreshold),
		logger.String("recovery_ramp", string(cfg.RecoveryRamp)))
	return nil
}

func (t *Tracker) persist(ctx context.Context, snap models.DrawdownSnapshot, rs *models.RecoveryState) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveSnapshot(ctx, snap); err != nil {
		t.log.Warn("drawdown snapshot persist failed",
			logger.String("strategy_id", snap.StrategyID), logger.Error(err))
	}
	if err := t.store.SaveRecovery(ctx, snap.StrategyID, rs); err != nil {
		t.log.Warn("recovery state persist failed",
			logger.String("strategy_id", snap.StrategyID), logger.Error(err))
	}
}

func (t *Tracker) publishAlert(ctx context.Context, alert models.DrawdownAlert) {
	if t.store == nil {
		return
	}
	if err := t.store.PublishAlert(ctx, alert); err != nil {
		t.log.Warn("drawdown alert publish failed",
			logger.String("strategy_id", alert.StrategyID), logger.Error(err))
	}
}

func drawdownPct(current, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return (current - peak) / peak
}

func cloneRecovery(rs *models.RecoveryState) *models.RecoveryState {
	if rs == nil {
		return nil
	}
	c := *rs
	return &c
}
