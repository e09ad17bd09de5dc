package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/pkg/logger"
)

// ExecutionLogSchema creates the append-only execution_log table.
var ExecutionLogSchema = []string{
	`CREATE TABLE IF NOT EXISTS execution_log (
		ts            DateTime64(3),
		request_id    String,
		order_id      String,
		signal_id     String,
		strategy_id   String,
		symbol        String,
		direction     LowCardinality(String),
		status        LowCardinality(String),
		mode          LowCardinality(String),
		amount        Float64,
		filled_amount Float64,
		slippage_bps  Nullable(Float64),
		latency_ms    UInt64,
		fee_amount    Float64,
		error_message String
	) ENGINE = MergeTree()
	ORDER BY (strategy_id, ts)`,
}

// ExecutionLogStore writes execution audit records to ClickHouse.
// Record buffers in memory and a background flusher drains the buffer,
// so the dispatch path never blocks on the warehouse.
type ExecutionLogStore struct {
	db    *sql.DB
	table string
	log   *logger.Logger

	mu     sync.Mutex
	buffer []models.ExecutionLog

	flushEvery time.Duration
	maxBuffer  int
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewExecutionLogStore creates the store and starts its flusher.
func NewExecutionLogStore(db *sql.DB, log *logger.Logger) *ExecutionLogStore {
	s := &ExecutionLogStore{
		db:         db,
		table:      "execution_log",
		log:        log,
		flushEvery: 5 * time.Second,
		maxBuffer:  500,
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record implements execution.Sink. It never blocks on the database.
func (s *ExecutionLogStore) Record(_ context.Context, record models.ExecutionLog) {
	s.mu.Lock()
	s.buffer = append(s.buffer, record)
	full := len(s.buffer) >= s.maxBuffer
	s.mu.Unlock()
	if full {
		s.flush()
	}
}

// Recent returns up to limit newest records for a strategy.
func (s *ExecutionLogStore) Recent(ctx context.Context, strategyID string, limit int) ([]models.ExecutionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT ts, request_id, order_id, signal_id, strategy_id, symbol,
		direction, status, mode, amount, filled_amount, slippage_bps, latency_ms, fee_amount, error_message
		FROM %s WHERE strategy_id = ? ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	var out []models.ExecutionLog
	for rows.Next() {
		var (
			rec      models.ExecutionLog
			ts       time.Time
			slippage sql.NullFloat64
		)
		if err := rows.Scan(&ts, &rec.RequestID, &rec.OrderID, &rec.SignalID, &rec.StrategyID,
			&rec.Symbol, &rec.Direction, &rec.Status, &rec.Mode, &rec.Amount, &rec.FilledAmount,
			&slippage, &rec.LatencyMs, &rec.FeeAmount, &rec.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		rec.Timestamp = ts
		if slippage.Valid {
			v := slippage.Float64
			rec.SlippageBps = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close drains the buffer and stops the flusher.
func (s *ExecutionLogStore) Close() error {
	close(s.done)
	s.wg.Wait()
	s.flush()
	return nil
}

func (s *ExecutionLogStore) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.done:
			return
		}
	}
}

func (s *ExecutionLogStore) flush() {
	s.mu.Lock()
	batch := s.buffer
	s.buffer = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*15)
	for _, rec := range batch {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		var slippage interface{}
		if rec.SlippageBps != nil {
			slippage = *rec.SlippageBps
		}
		args = append(args,
			rec.Timestamp,
			rec.RequestID,
			rec.OrderID,
			rec.SignalID,
			rec.StrategyID,
			rec.Symbol,
			string(rec.Direction),
			string(rec.Status),
			string(rec.Mode),
			rec.Amount,
			rec.FilledAmount,
			slippage,
			rec.LatencyMs,
			rec.FeeAmount,
			rec.ErrorMessage,
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	q := fmt.Sprintf(`INSERT INTO %s (ts, request_id, order_id, signal_id, strategy_id, symbol,
		direction, status, mode, amount, filled_amount, slippage_bps, latency_ms, fee_amount, error_message)
		VALUES %s`, s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.log.Warn("execution log flush failed",
			logger.Int("batch_size", len(batch)), logger.Error(err))
	}
}
