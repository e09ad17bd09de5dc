package models

import "time"

// ExecutionMode selects which provider class handles dispatch.
type ExecutionMode string

const (
	ModeLive     ExecutionMode = "live"
	ModePaper    ExecutionMode = "paper"
	ModeBacktest ExecutionMode = "backtest"
	ModeSandbox  ExecutionMode = "sandbox"
)

// ExecutionStatus is the order lifecycle state.
type ExecutionStatus string

const (
	StatusReceived        ExecutionStatus = "received"
	StatusInProgress      ExecutionStatus = "in_progress"
	StatusCompleted       ExecutionStatus = "completed"
	StatusPartiallyFilled ExecutionStatus = "partially_filled"
	StatusRejected        ExecutionStatus = "rejected"
	StatusTimedOut        ExecutionStatus = "timed_out"
	StatusCancelled       ExecutionStatus = "cancelled"
	StatusFailed          ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusReceived, StatusInProgress:
		return false
	default:
		return true
	}
}

// Cancellable reports whether a cancel request may still succeed.
func (s ExecutionStatus) Cancellable() bool {
	return s == StatusReceived || s == StatusInProgress
}

// OrderType is the venue order type.
type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

// Order is the concrete instruction produced from a gated signal.
type Order struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	Price           *float64       `json:"price,omitempty"`
	Amount          float64        `json:"amount"`
	Direction       TradeDirection `json:"direction"`
	SignalID        string         `json:"signal_id"`
	StrategyID      string         `json:"strategy_id"`
	MaxSlippagePct  float64        `json:"max_slippage_pct"`
	IsDryRun        bool           `json:"is_dry_run"`
	LatencyBudgetMs uint64         `json:"latency_budget_ms"`
}

// ExecutionRequest wraps an order for dispatch with routing metadata.
type ExecutionRequest struct {
	RequestID string            `json:"request_id"`
	Order     Order             `json:"order"`
	OrderType OrderType         `json:"order_type"`
	Mode      ExecutionMode     `json:"mode"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// LatencyProfile breaks total dispatch latency into stages, in ms.
type LatencyProfile struct {
	RequestProcessingMs uint64 `json:"request_processing_ms"`
	SubmissionMs        uint64 `json:"submission_ms"`
	AcknowledgementMs   uint64 `json:"acknowledgement_ms"`
	ExecutionMs         uint64 `json:"execution_ms"`
	TotalMs             uint64 `json:"total_ms"`
}

// LatencyThresholds are per-stage budgets used when evaluating a profile.
type LatencyThresholds struct {
	RequestProcessingMs uint64 `json:"request_processing_ms" yaml:"request_processing_ms" default:"50"`
	SubmissionMs        uint64 `json:"submission_ms" yaml:"submission_ms" default:"100"`
	AcknowledgementMs   uint64 `json:"acknowledgement_ms" yaml:"acknowledgement_ms" default:"500"`
	ExecutionMs         uint64 `json:"execution_ms" yaml:"execution_ms" default:"2000"`
	TotalMs             uint64 `json:"total_ms" yaml:"total_ms" default:"3000"`
}

// Evaluate returns the names of stages exceeding their thresholds.
func (p LatencyProfile) Evaluate(t LatencyThresholds) []string {
	var issues []string
	if p.RequestProcessingMs > t.RequestProcessingMs {
		issues = append(issues, "request_processing")
	}
	if p.SubmissionMs > t.SubmissionMs {
		issues = append(issues, "submission")
	}
	if p.AcknowledgementMs > t.AcknowledgementMs {
		issues = append(issues, "acknowledgement")
	}
	if p.ExecutionMs > t.ExecutionMs {
		issues = append(issues, "execution")
	}
	if p.TotalMs > t.TotalMs {
		issues = append(issues, "total")
	}
	return issues
}

// FeeInfo is the cost attributed to a fill.
type FeeInfo struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	RateBps  float64 `json:"rate_bps"`
}

// ExecutionResult is the immutable outcome of one dispatch attempt.
type ExecutionResult struct {
	RequestID     string          `json:"request_id"`
	OrderID       string          `json:"order_id,omitempty"`
	Status        ExecutionStatus `json:"status"`
	FilledAmount  float64         `json:"filled_amount"`
	AvgFillPrice  *float64        `json:"avg_fill_price,omitempty"`
	Fees          *FeeInfo        `json:"fees,omitempty"`
	Latency       *LatencyProfile `json:"latency,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Mode          ExecutionMode   `json:"mode"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ExecutionLog is the append-only audit record derived from a result.
type ExecutionLog struct {
	RequestID    string          `json:"request_id"`
	OrderID      string          `json:"order_id"`
	SignalID     string          `json:"signal_id"`
	StrategyID   string          `json:"strategy_id"`
	Symbol       string          `json:"symbol"`
	Direction    TradeDirection  `json:"direction"`
	Status       ExecutionStatus `json:"status"`
	Mode         ExecutionMode   `json:"mode"`
	Amount       float64         `json:"amount"`
	FilledAmount float64         `json:"filled_amount"`
	SlippageBps  *float64        `json:"slippage_bps,omitempty"`
	LatencyMs    uint64          `json:"latency_ms"`
	FeeAmount    float64         `json:"fee_amount"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewExecutionLog derives a log record from a request/result pair.
// Slippage is realized fill against expected price, in basis points,
// signed so that positive means a worse fill.
func NewExecutionLog(req ExecutionRequest, res ExecutionResult) ExecutionLog {
	log := ExecutionLog{
		RequestID:    res.RequestID,
		OrderID:      res.OrderID,
		SignalID:     req.Order.SignalID,
		StrategyID:   req.Order.StrategyID,
		Symbol:       req.Order.Symbol,
		Direction:    req.Order.Direction,
		Status:       res.Status,
		Mode:         res.Mode,
		Amount:       req.Order.Amount,
		FilledAmount: res.FilledAmount,
		ErrorMessage: res.ErrorMessage,
		Timestamp:    res.Timestamp,
	}
	if res.Latency != nil {
		log.LatencyMs = res.Latency.TotalMs
	}
	if res.Fees != nil {
		log.FeeAmount = res.Fees.Amount
	}
	if req.Order.Price != nil && res.AvgFillPrice != nil && *req.Order.Price != 0 {
		expected := *req.Order.Price
		bps := (*res.AvgFillPrice - expected) / expected * 10000
		if req.Order.Direction == DirectionSell {
			bps = -bps
		}
		log.SlippageBps = &bps
	}
	return log
}

// ExecutionQualityScore aggregates dispatch quality over a window of logs.
type ExecutionQualityScore struct {
	Score          float64 `json:"score"`
	AvgSlippageBps float64 `json:"avg_slippage_bps"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	FillRate       float64 `json:"fill_rate"`
	CancelRate     float64 `json:"cancel_rate"`
	SampleSize     int     `json:"sample_size"`
}

// Quality score component weights.
const (
	qualityWeightSlippage = 0.4
	qualityWeightLatency  = 0.2
	qualityWeightFill     = 0.3
	qualityWeightCancel   = 0.1
)

// ScoreExecutionQuality computes a [0,1] quality score over the logs.
// Slippage is scored against a 50bps ceiling and latency against the
// total-latency threshold; an empty window scores zero.
func ScoreExecutionQuality(logs []ExecutionLog, t LatencyThresholds) ExecutionQualityScore {
	if len(logs) == 0 {
		return ExecutionQualityScore{}
	}
	var (
		slipSum, slipN float64
		latSum         float64
		filled         float64
		cancelled      float64
	)
	for _, l := range logs {
		if l.SlippageBps != nil {
			slipSum += *l.SlippageBps
			slipN++
		}
		latSum += float64(l.LatencyMs)
		if l.Amount > 0 {
			filled += l.FilledAmount / l.Amount
		}
		if l.Status == StatusCancelled {
			cancelled++
		}
	}
	n := float64(len(logs))
	q := ExecutionQualityScore{
		AvgLatencyMs: latSum / n,
		FillRate:     filled / n,
		CancelRate:   cancelled / n,
		SampleSize:   len(logs),
	}
	if slipN > 0 {
		q.AvgSlippageBps = slipSum / slipN
	}
	slipScore := clamp01(1 - q.AvgSlippageBps/50)
	latScore := clamp01(1 - q.AvgLatencyMs/float64(t.TotalMs))
	q.Score = qualityWeightSlippage*slipScore +
		qualityWeightLatency*latScore +
		qualityWeightFill*clamp01(q.FillRate) +
		qualityWeightCancel*clamp01(1-q.CancelRate)
	return q
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
