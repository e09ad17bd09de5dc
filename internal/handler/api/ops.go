package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/drawdown"
	"TradeGate/internal/engine"
	"TradeGate/internal/execution"
	"TradeGate/internal/repository"
	xhttp "TradeGate/pkg/http"
	xlogger "TradeGate/pkg/logger"
)

// OpsHandler exposes the read-mostly operations API: execution status,
// signal metrics, drawdown state and the few config knobs.
type OpsHandler struct {
	logger     *xlogger.Logger
	engine     *engine.Engine
	exec       *execution.Service
	tracker    *drawdown.Tracker
	logStore   *repository.ExecutionLogStore
	thresholds models.LatencyThresholds
}

func NewOpsHandler(logger *xlogger.Logger, eng *engine.Engine, exec *execution.Service, tracker *drawdown.Tracker, logStore *repository.ExecutionLogStore, thresholds models.LatencyThresholds) *OpsHandler {
	return &OpsHandler{
		logger:     logger,
		engine:     eng,
		exec:       exec,
		tracker:    tracker,
		logStore:   logStore,
		thresholds: thresholds,
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/signals/evaluate", h.EvaluateSignal)
	g.POST("/signals/execute", h.ExecuteSignal)
	g.GET("/executions/recent", h.RecentExecutions)
	g.GET("/executions/quality", h.ExecutionQuality)
	g.GET("/executions/:request_id", h.ExecutionStatus)
	g.POST("/executions/:request_id/cancel", h.CancelExecution)
	g.PUT("/executions/mode", h.SetMode)
	g.PUT("/executions/entropy", h.ConfigureEntropy)
	g.GET("/signals/:signal_id/metrics", h.SignalMetrics)
	g.GET("/drawdown/:strategy_id", h.DrawdownSnapshot)
	g.GET("/drawdown/:strategy_id/history", h.DrawdownHistory)
	g.POST("/drawdown/:strategy_id/reset", h.ResetDrawdown)
	g.GET("/drawdown/config", h.DrawdownConfig)
	g.PUT("/drawdown/config", h.UpdateDrawdownConfig)
	g.GET("/engine/config", h.EngineConfig)
	g.PUT("/engine/config", h.UpdateEngineConfig)
}

func (h *OpsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// EvaluateSignal runs the gate checks without dispatching.
func (h *OpsHandler) EvaluateSignal(c echo.Context) error {
	req := &models.SubmitSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	eval, err := h.engine.EvaluateSignal(c.Request().Context(), req.ToSignal(time.Now().UTC()))
	if err != nil {
		return h.engineErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, eval)
}

// ExecuteSignal runs the full gate-and-dispatch pipeline for a
// submitted signal and returns the execution result.
func (h *OpsHandler) ExecuteSignal(c echo.Context) error {
	req := &models.SubmitSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig := req.ToSignal(time.Now().UTC())
	res, err := h.engine.ExecuteStrategy(c.Request().Context(), sig)
	if err != nil {
		return h.engineErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"signal_id": sig.ID,
		"result":    res,
	})
}

// engineErrorResponse maps gating failures to 400s and everything
// else (dispatch and internal failures) to 500s.
func (h *OpsHandler) engineErrorResponse(c echo.Context, err error) error {
	switch engine.KindOf(err) {
	case engine.ErrKindValidationFailed, engine.ErrKindInvalidParameters,
		engine.ErrKindSignalExpired, engine.ErrKindTrustScoreTooLow,
		engine.ErrKindRiskCheckFailed:
		return xhttp.BadRequestResponse(c, err.Error())
	default:
		h.logger.Error("signal dispatch failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}

func (h *OpsHandler) RecentExecutions(c echo.Context) error {
	req := &models.RecentExecutionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.exec.Recent(models.ExecutionStatus(req.Status), req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *OpsHandler) ExecutionStatus(c echo.Context) error {
	res, err := h.exec.Status(c.Request().Context(), c.Param("request_id"))
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsHandler) CancelExecution(c echo.Context) error {
	res, err := h.exec.Cancel(c.Request().Context(), c.Param("request_id"))
	if err != nil {
		if execution.KindOf(err) == execution.ErrKindOrderRejected {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		h.logger.Error("cancel failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsHandler) ExecutionQuality(c echo.Context) error {
	req := &models.ExecutionQualityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.logStore == nil {
		return xhttp.BadRequestResponse(c, "execution log storage is not configured")
	}
	logs, err := h.logStore.Recent(c.Request().Context(), req.StrategyID, req.Limit)
	if err != nil {
		h.logger.Error("execution log query failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, models.ScoreExecutionQuality(logs, h.thresholds))
}

func (h *OpsHandler) SetMode(c echo.Context) error {
	req := &models.SetModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.exec.SetMode(models.ExecutionMode(req.Mode)); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, map[string]string{"mode": req.Mode})
}

func (h *OpsHandler) ConfigureEntropy(c echo.Context) error {
	req := &models.ConfigureEntropyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.exec.ConfigureEntropy(req.Enable, time.Duration(req.FixedDelayMs)*time.Millisecond)
	return xhttp.NoContentResponse(c)
}

func (h *OpsHandler) SignalMetrics(c echo.Context) error {
	m, ok := h.engine.SignalMetricsFor(c.Param("signal_id"))
	if !ok {
		return xhttp.NotFoundResponse(c, "no metrics for signal")
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *OpsHandler) DrawdownSnapshot(c echo.Context) error {
	snap := h.tracker.Snapshot(c.Request().Context(), c.Param("strategy_id"))
	return xhttp.SuccessResponse(c, snap)
}

func (h *OpsHandler) DrawdownHistory(c echo.Context) error {
	req := &models.DrawdownHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.tracker.History(c.Request().Context(), c.Param("strategy_id"), req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *OpsHandler) ResetDrawdown(c echo.Context) error {
	snap := h.tracker.Reset(c.Request().Context(), c.Param("strategy_id"))
	return xhttp.SuccessResponse(c, snap)
}

func (h *OpsHandler) DrawdownConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.tracker.Config())
}

func (h *OpsHandler) UpdateDrawdownConfig(c echo.Context) error {
	cfg := models.DrawdownConfig{}
	if err := c.Bind(&cfg); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if err := h.tracker.UpdateConfig(cfg); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, cfg)
}

func (h *OpsHandler) EngineConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Config())
}

func (h *OpsHandler) UpdateEngineConfig(c echo.Context) error {
	cfg := engine.Config{}
	if err := c.Bind(&cfg); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	h.engine.UpdateConfig(cfg)
	return xhttp.SuccessResponse(c, cfg)
}
