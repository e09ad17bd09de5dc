package telemetry

import (
	"context"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/kafka"
	"TradeGate/pkg/logger"
)

// Topics carrying dispatch telemetry downstream.
const (
	TopicExecutions     = "tradegate.executions"
	TopicDrawdownEvents = "tradegate.drawdown"
)

// Streamer fans execution and drawdown events out to Kafka. All
// publishes are best-effort: a broker outage must never stall the
// decision path.
type Streamer struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewStreamer builds a streamer on an existing producer.
func NewStreamer(producer *kafka.Producer, log *logger.Logger) *Streamer {
	return &Streamer{producer: producer, log: log}
}

// Record implements execution.Sink: one message per finished dispatch,
// keyed by strategy so per-strategy ordering survives partitioning.
func (s *Streamer) Record(ctx context.Context, record models.ExecutionLog) {
	if err := s.producer.Publish(ctx, TopicExecutions, []byte(record.StrategyID), record); err != nil {
		s.log.Warn("execution telemetry publish failed",
			logger.String("request_id", record.RequestID), logger.Error(err))
	}
}

// RecordDrawdown streams a drawdown snapshot after each equity update.
func (s *Streamer) RecordDrawdown(ctx context.Context, snap models.DrawdownSnapshot) {
	if err := s.producer.Publish(ctx, TopicDrawdownEvents, []byte(snap.StrategyID), snap); err != nil {
		s.log.Warn("drawdown telemetry publish failed",
			logger.String("strategy_id", snap.StrategyID), logger.Error(err))
	}
}
