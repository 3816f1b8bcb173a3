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

type SnapshotHandler struct {
	log *logger.Logger
	svc services.SnapshotService
}

func NewSnapshotHandler(baseLog *logger.Logger, svc services.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{
		log: baseLog.With("handler", "SnapshotHandler"),
		svc: svc,
	}
}

type ingestRequest struct {
	Vendor string                   `json:"vendor" binding:"required"`
	Date   string                   `json:"date"`
	Rows   []services.SnapshotInput `json:"rows" binding:"required"`
}

// POST /api/snapshots
func (h *SnapshotHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	date := types.DateOnly(time.Now())
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date))
			return
		}
		date = parsed
	}
	n, err := h.svc.IngestBatch(c.Request.Context(), nil, req.Vendor, date, req.Rows)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{
		"vendor":   req.Vendor,
		"date":     types.DateOnly(date).Format("2006-01-02"),
		"ingested": n,
	})
}

// GET /api/snapshots/counts?date=YYYY-MM-DD
func (h *SnapshotHandler) Counts(c *gin.Context) {
	date := types.DateOnly(time.Now())
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw))
			return
		}
		date = parsed
	}
	counts, err := h.svc.CountsForDate(c.Request.Context(), nil, date)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{
		"date":   types.DateOnly(date).Format("2006-01-02"),
		"counts": counts,
	})
}
