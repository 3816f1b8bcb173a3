package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/http/response"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/services"
)

type RunHandler struct {
	log *logger.Logger
	svc services.ReconcileService
}

func NewRunHandler(baseLog *logger.Logger, svc services.ReconcileService) *RunHandler {
	return &RunHandler{
		log: baseLog.With("handler", "RunHandler"),
		svc: svc,
	}
}

type triggerRunRequest struct {
	Date string `json:"date"`
}

// POST /api/runs
//
// Triggers a reconciliation synchronously. The scheduled daily run goes
// through the Temporal worker; this endpoint exists for operator re-runs
// after a collector backfill.
func (h *RunHandler) Trigger(c *gin.Context) {
	var req triggerRunRequest
	_ = c.ShouldBindJSON(&req)

	date := types.DateOnly(time.Now())
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date))
			return
		}
		date = parsed
	}

	summary, err := h.svc.RunDaily(c.Request.Context(), date)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, summary)
}
