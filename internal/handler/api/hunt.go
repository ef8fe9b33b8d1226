package api

import (
	"context"
	"time"

	models "github.com/hislov/overdrive-bot/internal/domain/models"
	drepo "github.com/hislov/overdrive-bot/internal/domain/repository"
	"github.com/hislov/overdrive-bot/internal/service/metrics"
	"github.com/hislov/overdrive-bot/internal/usecase"
	xhttp "github.com/hislov/overdrive-bot/pkg/http"
	xlogger "github.com/hislov/overdrive-bot/pkg/logger"
	"github.com/hislov/overdrive-bot/pkg/queue"

	"github.com/labstack/echo/v4"
)

// HuntHandler exposes the pipeline front door.
type HuntHandler struct {
	logger *xlogger.Logger
	queue  queue.Service
	runLog drepo.RunLog
}

// NewHuntHandler creates the front-door handler. runLog may be nil when the
// blackbox store is disabled.
func NewHuntHandler(logger *xlogger.Logger, q queue.Service, runLog drepo.RunLog) *HuntHandler {
	metrics.Register()
	return &HuntHandler{logger: logger, queue: q, runLog: runLog}
}

// RegisterRoutes registers the HTTP routes.
func (h *HuntHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/hunt", h.Hunt)
	g.POST("/webhook", h.Hunt)
	g.GET("/runs", h.Runs)
}

// Hunt enqueues one pipeline run and returns immediately. The webhook alias
// carries the same payload.
func (h *HuntHandler) Hunt(c echo.Context) error {
	req := &models.HuntRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	payload := usecase.HuntPayload{
		Ticker:     req.Ticker,
		Exclude:    req.Exclude,
		FailClosed: req.FailClosed,
	}
	if err := h.queue.PublishMessage(c.Request().Context(), usecase.HuntMessageType, payload); err != nil {
		h.logger.Error("hunt enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not enqueue hunt").WithError(err))
	}

	h.logger.Info("hunt enqueued", xlogger.String("ticker", req.Ticker))
	return xhttp.AcceptedResponse(c, map[string]string{"status": "queued"})
}

// Runs returns the most recent run records from the blackbox store.
func (h *HuntHandler) Runs(c echo.Context) error {
	req := &models.RunsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.runLog == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("run log disabled"))
	}

	recs, err := h.runLog.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("recent runs error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not read run log").WithError(err))
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

// Health reports liveness plus the blackbox store's reachability.
func (h *HuntHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}

	if h.runLog != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.runLog.Health(ctx); err != nil {
			status["run_log"] = "unreachable"
		} else {
			status["run_log"] = "ok"
		}
	}

	return xhttp.SuccessResponse(c, status)
}
