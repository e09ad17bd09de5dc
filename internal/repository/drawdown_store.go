package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/cache"
)

// Redis key layout for drawdown persistence. One strategy, four keys,
// so dashboards can read state and modifier without parsing JSON. All
// keys and the alert channel live under the cache's key prefix.
const (
	drawdownKeyFmt     = "strategy:drawdown:%s"
	drawdownStateFmt   = "strategy:drawdown_state:%s"
	riskModifierFmt    = "strategy:risk_modifier:%s"
	recoveryStateFmt   = "strategy:recovery_state:%s"
	drawdownAlertsChan = "strategy:alerts:drawdown"
)

// DrawdownKV is the slice of the cache service the store needs.
// *cache.RedisCache satisfies it.
type DrawdownKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// RedisDrawdownStore persists drawdown snapshots and publishes critical
// alerts through the prefixed Redis cache.
type RedisDrawdownStore struct {
	kv DrawdownKV
}

// NewRedisDrawdownStore creates a store on an existing cache client.
func NewRedisDrawdownStore(kv DrawdownKV) *RedisDrawdownStore {
	return &RedisDrawdownStore{kv: kv}
}

// SaveSnapshot writes the snapshot plus the state and modifier keys.
// State is written as a bare string and the modifier as a bare number.
func (s *RedisDrawdownStore) SaveSnapshot(ctx context.Context, snap models.DrawdownSnapshot) error {
	if err := s.kv.Set(ctx, fmt.Sprintf(drawdownKeyFmt, snap.StrategyID), snap, 0); err != nil {
		return fmt.Errorf("persist drawdown snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, fmt.Sprintf(drawdownStateFmt, snap.StrategyID), string(snap.State), 0); err != nil {
		return fmt.Errorf("persist drawdown state: %w", err)
	}
	if err := s.kv.Set(ctx, fmt.Sprintf(riskModifierFmt, snap.StrategyID), snap.RiskModifier, 0); err != nil {
		return fmt.Errorf("persist risk modifier: %w", err)
	}
	return nil
}

// SaveRecovery writes the recovery state, or clears it when rs is nil.
func (s *RedisDrawdownStore) SaveRecovery(ctx context.Context, strategyID string, rs *models.RecoveryState) error {
	key := fmt.Sprintf(recoveryStateFmt, strategyID)
	if rs == nil {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear recovery state: %w", err)
		}
		return nil
	}
	if err := s.kv.Set(ctx, key, rs, 0); err != nil {
		return fmt.Errorf("persist recovery state: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored snapshot for a strategy.
func (s *RedisDrawdownStore) LoadSnapshot(ctx context.Context, strategyID string) (models.DrawdownSnapshot, error) {
	var snap models.DrawdownSnapshot
	if err := s.kv.Get(ctx, fmt.Sprintf(drawdownKeyFmt, strategyID), &snap); err != nil {
		return models.DrawdownSnapshot{}, fmt.Errorf("load drawdown snapshot: %w", err)
	}
	return snap, nil
}

// LoadRecovery reads the stored recovery state; (nil, nil) when absent.
func (s *RedisDrawdownStore) LoadRecovery(ctx context.Context, strategyID string) (*models.RecoveryState, error) {
	var rs models.RecoveryState
	err := s.kv.Get(ctx, fmt.Sprintf(recoveryStateFmt, strategyID), &rs)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recovery state: %w", err)
	}
	return &rs, nil
}

// PublishAlert pushes a critical-drawdown alert onto the alerts channel.
func (s *RedisDrawdownStore) PublishAlert(ctx context.Context, alert models.DrawdownAlert) error {
	if err := s.kv.Publish(ctx, drawdownAlertsChan, alert); err != nil {
		return fmt.Errorf("publish drawdown alert: %w", err)
	}
	return nil
}
