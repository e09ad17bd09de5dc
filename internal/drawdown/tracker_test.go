package drawdown

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

// fakeStore records everything the tracker persists.
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string]models.DrawdownSnapshot
	recovery  map[string]*models.RecoveryState
	alerts    []models.DrawdownAlert
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string]models.DrawdownSnapshot),
		recovery:  make(map[string]*models.RecoveryState),
	}
}

func (f *fakeStore) SaveSnapshot(_ context.Context, snap models.DrawdownSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snap.StrategyID] = snap
	return nil
}

func (f *fakeStore) SaveRecovery(_ context.Context, strategyID string, rs *models.RecoveryState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovery[strategyID] = rs
	return nil
}

func (f *fakeStore) LoadSnapshot(_ context.Context, strategyID string) (models.DrawdownSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.snapshots[strategyID]; ok {
		return snap, nil
	}
	return models.DrawdownSnapshot{}, errNotFound
}

func (f *fakeStore) LoadRecovery(_ context.Context, strategyID string) (*models.RecoveryState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovery[strategyID], nil
}

func (f *fakeStore) PublishAlert(_ context.Context, alert models.DrawdownAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

var errNotFound = assert.AnError

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func newTestTracker(t *testing.T, cfg models.DrawdownConfig, store Store, opts ...Option) *Tracker {
	t.Helper()
	rec := metrics.NewWith(prometheus.NewRegistry())
	tr, err := NewTracker(cfg, store, testLogger(t), rec, opts...)
	require.NoError(t, err)
	return tr
}

func TestNewTrackerRejectsInvalidConfig(t *testing.T) {
	cfg := models.DefaultDrawdownConfig()
	cfg.CautionThreshold = 0.05
	_, err := NewTracker(cfg, nil, testLogger(t), metrics.NewWith(prometheus.NewRegistry()))
	require.Error(t, err)
}

func TestUnknownStrategyReadsNormal(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	snap := tr.Snapshot(ctx, "s1")
	assert.Equal(t, models.DrawdownNormal, snap.State)
	assert.Equal(t, 1.0, snap.RiskModifier)
	assert.False(t, tr.ShouldPauseTrading(ctx, "s1"))
}

func TestCriticalTransition(t *testing.T) {
	store := newFakeStore()
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), store)
	ctx := context.Background()

	snap := tr.UpdateEquity(ctx, "s1", 100_000)
	assert.Equal(t, models.DrawdownNormal, snap.State)
	assert.Equal(t, 1.0, snap.RiskModifier)

	// 11% below peak crosses the -10% critical threshold.
	snap = tr.UpdateEquity(ctx, "s1", 89_000)
	assert.Equal(t, models.DrawdownCritical, snap.State)
	assert.InDelta(t, -0.11, snap.DrawdownPct, 1e-9)
	assert.InDelta(t, 0.30, snap.RiskModifier, 1e-9)
	assert.True(t, tr.ShouldPauseTrading(ctx, "s1"))

	require.Len(t, store.alerts, 1)
	assert.Equal(t, "s1", store.alerts[0].StrategyID)
	assert.Equal(t, models.DrawdownCritical, store.alerts[0].State)
	assert.Equal(t, 89_000.0, store.alerts[0].Equity)
	assert.Equal(t, 100_000.0, store.alerts[0].PeakEquity)
}

func TestCriticalEntryAlertRespectsConfig(t *testing.T) {
	cfg := models.DefaultDrawdownConfig()
	cfg.EnableAlerts = false
	store := newFakeStore()
	tr := newTestTracker(t, cfg, store)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 85_000)
	assert.Empty(t, store.alerts)
}

func TestCautionStateModifier(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	snap := tr.UpdateEquity(ctx, "s1", 94_000)
	assert.Equal(t, models.DrawdownCaution, snap.State)
	assert.InDelta(t, 0.75, snap.RiskModifier, 1e-9)
	assert.False(t, tr.ShouldPauseTrading(ctx, "s1"))
}

func TestRecoveryRequiresImprovementFromLowPoint(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 89_000)

	// A bounce to 89,500 is only 0.56% off the low, short of the 2%
	// recovery threshold, so the strategy stays critical at -10.5%.
	snap := tr.UpdateEquity(ctx, "s1", 89_500)
	assert.Equal(t, models.DrawdownCritical, snap.State)

	// 94,000 clears both the critical threshold and the 2% bounce.
	snap = tr.UpdateEquity(ctx, "s1", 94_000)
	assert.Equal(t, models.DrawdownRecovery, snap.State)

	// Linear ramp: progress (94000-89000)/(100000-89000), modifier
	// 0.30 + 0.70 * progress.
	wantProgress := 5_000.0 / 11_000.0
	assert.InDelta(t, 0.30+0.70*wantProgress, snap.RiskModifier, 1e-9)
	assert.Greater(t, snap.RiskModifier, 0.30)
	assert.Less(t, snap.RiskModifier, 1.0)
}

func TestRecoveryCompletesAtDrawdownZero(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 89_000)
	tr.UpdateEquity(ctx, "s1", 94_000)

	snap := tr.UpdateEquity(ctx, "s1", 100_500)
	assert.Equal(t, models.DrawdownNormal, snap.State)
	assert.Equal(t, 1.0, snap.RiskModifier)
	assert.Equal(t, 100_500.0, snap.PeakEquity)
}

func TestRecoveryRelapsesToCritical(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 89_000)
	tr.UpdateEquity(ctx, "s1", 94_000)

	snap := tr.UpdateEquity(ctx, "s1", 88_000)
	assert.Equal(t, models.DrawdownCritical, snap.State)
	assert.InDelta(t, 0.30, snap.RiskModifier, 1e-9)

	// The relapse re-anchors the low point, so the same 2% bounce rule
	// applies off the new bottom.
	snap = tr.UpdateEquity(ctx, "s1", 89_000)
	assert.Equal(t, models.DrawdownCritical, snap.State)
	snap = tr.UpdateEquity(ctx, "s1", 94_000)
	assert.Equal(t, models.DrawdownRecovery, snap.State)
}

func TestLowPointFrozenAtCriticalEntry(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 89_000)
	tr.UpdateEquity(ctx, "s1", 85_000)

	// 90,500 is 6.47% above the deepest equity but only 1.69% above the
	// 89,000 recorded at Critical entry: not enough to start recovering.
	snap := tr.UpdateEquity(ctx, "s1", 90_500)
	assert.Equal(t, models.DrawdownCaution, snap.State)
	assert.InDelta(t, 0.75, snap.RiskModifier, 1e-9)

	// Same shape, bouncing straight out of Critical: 91,000 clears 2%
	// off the frozen low and the ramp spans that low to the peak.
	tr.UpdateEquity(ctx, "s2", 100_000)
	tr.UpdateEquity(ctx, "s2", 89_000)
	tr.UpdateEquity(ctx, "s2", 85_000)
	snap = tr.UpdateEquity(ctx, "s2", 91_000)
	assert.Equal(t, models.DrawdownRecovery, snap.State)
	wantProgress := (91_000.0 - 89_000.0) / (100_000.0 - 89_000.0)
	assert.InDelta(t, 0.30+0.70*wantProgress, snap.RiskModifier, 1e-9)
}

func TestPauseDisabledInConfig(t *testing.T) {
	cfg := models.DefaultDrawdownConfig()
	cfg.PauseTradesInCritical = false
	tr := newTestTracker(t, cfg, nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 85_000)
	assert.Equal(t, models.DrawdownCritical, tr.State(ctx, "s1"))
	assert.False(t, tr.ShouldPauseTrading(ctx, "s1"))
}

func TestResetIsIdempotent(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 85_000)

	first := tr.Reset(ctx, "s1")
	assert.Equal(t, models.DrawdownNormal, first.State)
	assert.Equal(t, 1.0, first.RiskModifier)
	assert.Equal(t, 85_000.0, first.PeakEquity)
	assert.Equal(t, 0.0, first.DrawdownPct)

	second := tr.Reset(ctx, "s1")
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.PeakEquity, second.PeakEquity)
	assert.Equal(t, first.RiskModifier, second.RiskModifier)

	// Peak was rebased: the old high is forgotten.
	snap := tr.UpdateEquity(ctx, "s1", 80_000)
	assert.InDelta(t, (80_000.0-85_000.0)/85_000.0, snap.DrawdownPct, 1e-9)
	assert.Equal(t, models.DrawdownCaution, snap.State)
}

func TestHistoryLimit(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil, WithHistoryLimit(3))
	ctx := context.Background()

	for _, equity := range []float64{100, 101, 102, 103, 104} {
		tr.UpdateEquity(ctx, "s1", equity)
	}

	h := tr.History(ctx, "s1", 0)
	require.Len(t, h, 3)
	assert.Equal(t, 102.0, h[0].CurrentEquity)
	assert.Equal(t, 104.0, h[2].CurrentEquity)

	h = tr.History(ctx, "s1", 2)
	require.Len(t, h, 2)
	assert.Equal(t, 103.0, h[0].CurrentEquity)
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)

	bad := models.DefaultDrawdownConfig()
	bad.CriticalModifier = 1.5
	require.Error(t, tr.UpdateConfig(bad))
	assert.InDelta(t, 0.30, tr.Config().CriticalModifier, 1e-9)

	good := models.ConservativeDrawdownConfig()
	require.NoError(t, tr.UpdateConfig(good))
	assert.Equal(t, good, tr.Config())
}

func TestSnapshotPersistedToStore(t *testing.T) {
	store := newFakeStore()
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), store)
	ctx := context.Background()

	tr.UpdateEquity(ctx, "s1", 100_000)
	tr.UpdateEquity(ctx, "s1", 89_000)

	store.mu.Lock()
	snap := store.snapshots["s1"]
	rs := store.recovery["s1"]
	store.mu.Unlock()

	assert.Equal(t, models.DrawdownCritical, snap.State)
	require.NotNil(t, rs)
	assert.Equal(t, 89_000.0, rs.LowPoint)
	assert.Equal(t, 100_000.0, rs.ReferencePeak)
}

func TestSeedFromStore(t *testing.T) {
	store := newFakeStore()
	store.snapshots["s1"] = models.DrawdownSnapshot{
		StrategyID:    "s1",
		CurrentEquity: 89_000,
		PeakEquity:    100_000,
		DrawdownPct:   -0.11,
		State:         models.DrawdownCritical,
		RiskModifier:  0.30,
		UpdatedAt:     time.Now(),
	}
	store.recovery["s1"] = &models.RecoveryState{LowPoint: 89_000, ReferencePeak: 100_000}

	tr := newTestTracker(t, models.DefaultDrawdownConfig(), store)
	ctx := context.Background()

	assert.Equal(t, models.DrawdownCritical, tr.State(ctx, "s1"))
	assert.True(t, tr.ShouldPauseTrading(ctx, "s1"))

	// Recovery picks up from the persisted low point.
	snap := tr.UpdateEquity(ctx, "s1", 94_000)
	assert.Equal(t, models.DrawdownRecovery, snap.State)
}

func TestConcurrentUpdatesKeepModifierConsistent(t *testing.T) {
	tr := newTestTracker(t, models.DefaultDrawdownConfig(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base float64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.UpdateEquity(ctx, "s1", base+float64(j))
				snap := tr.Snapshot(ctx, "s1")
				switch snap.State {
				case models.DrawdownNormal:
					assert.Equal(t, 1.0, snap.RiskModifier)
				case models.DrawdownCaution:
					assert.InDelta(t, 0.75, snap.RiskModifier, 1e-9)
				case models.DrawdownCritical:
					assert.InDelta(t, 0.30, snap.RiskModifier, 1e-9)
				default:
					assert.GreaterOrEqual(t, snap.RiskModifier, 0.30)
					assert.LessOrEqual(t, snap.RiskModifier, 1.0)
				}
			}
		}(90_000 + float64(i)*1_000)
	}
	wg.Wait()
}
