package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TradeGate/internal/drawdown"
	"TradeGate/internal/telemetry"
	pkgkafka "TradeGate/pkg/kafka"
	"TradeGate/pkg/metrics"
)

// EquityUpdateHandler consumes strategy equity updates from Kafka and
// feeds them into the drawdown tracker.
type EquityUpdateHandler struct {
	topic    string
	tracker  *drawdown.Tracker
	streamer *telemetry.Streamer
	rec      *metrics.Recorder
}

// NewEquityUpdateHandler builds a handler for the given topic.
// streamer may be nil when telemetry streaming is disabled.
func NewEquityUpdateHandler(topic string, tracker *drawdown.Tracker, streamer *telemetry.Streamer, rec *metrics.Recorder) *EquityUpdateHandler {
	return &EquityUpdateHandler{topic: topic, tracker: tracker, streamer: streamer, rec: rec}
}

func (h *EquityUpdateHandler) Topic() string { return h.topic }

// incoming message schema: {strategy_id, equity, ts}
func (h *EquityUpdateHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		StrategyID string  `json:"strategy_id"`
		Equity     float64 `json:"equity"`
		TS         int64   `json:"ts"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.rec.RecordError("equity_unmarshal")
		return err
	}
	if m.StrategyID == "" {
		h.rec.RecordError("equity_missing_strategy")
		return fmt.Errorf("equity update without strategy_id")
	}
	if m.Equity < 0 {
		h.rec.RecordError("equity_negative")
		return fmt.Errorf("negative equity %v for strategy %s", m.Equity, m.StrategyID)
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}

	snap := h.tracker.UpdateEquity(ctx, m.StrategyID, m.Equity)
	if h.streamer != nil {
		h.streamer.RecordDrawdown(ctx, snap)
	}
	if m.TS > 0 {
		h.rec.RecordLatency("equity_ingest_e2e_seconds", time.Since(time.Unix(m.TS, 0)).Seconds())
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*EquityUpdateHandler)(nil)
