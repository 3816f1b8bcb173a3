package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/http/response"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/services"
)

type ExceptionHandler struct {
	log *logger.Logger
	svc services.ExceptionService
}

func NewExceptionHandler(baseLog *logger.Logger, svc services.ExceptionService) *ExceptionHandler {
	return &ExceptionHandler{
		log: baseLog.With("handler", "ExceptionHandler"),
		svc: svc,
	}
}

// GET /api/exceptions
func (h *ExceptionHandler) List(c *gin.Context) {
	filter, err := parseExceptionFilter(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, total, err := h.svc.Query(c.Request.Context(), nil, filter)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{
		"exceptions": rows,
		"total":      total,
		"page":       filter.Page,
		"page_size":  filter.PageSize,
	})
}

// GET /api/exceptions/:id
func (h *ExceptionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid exception id"))
		return
	}
	row, err := h.svc.Get(c.Request.Context(), nil, id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if row == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("exception not found"))
		return
	}
	response.RespondOK(c, row)
}

// GET /api/exceptions/summary
func (h *ExceptionHandler) StatusSummary(c *gin.Context) {
	counts, err := h.svc.StatusSummary(c.Request.Context(), nil)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{"counts": counts})
}

// GET /api/exceptions/manual-updates
func (h *ExceptionHandler) RecentManualUpdates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.svc.RecentManualUpdates(c.Request.Context(), nil, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	response.RespondOK(c, gin.H{"updates": rows})
}

type resolveRequest struct {
	Actor string `json:"actor"`
}

// POST /api/exceptions/:id/resolve
func (h *ExceptionHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid exception id"))
		return
	}
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)

	outcome, err := h.svc.Resolve(c.Request.Context(), nil, id, req.Actor)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	h.respondOutcome(c, outcome)
}

type markFixedRequest struct {
	// Either ID or Type+Hostname+Date identifies the row.
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
	Date     string `json:"date"`

	Actor      string `json:"actor"`
	UpdateType string `json:"update_type"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
}

// POST /api/exceptions/:id/mark-fixed
func (h *ExceptionHandler) MarkFixedByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid exception id"))
		return
	}
	var req markFixedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	outcome, err := h.svc.MarkManuallyFixedByID(c.Request.Context(), nil, id, req.Actor, req.UpdateType, req.OldValue, req.NewValue)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	h.respondOutcome(c, outcome)
}

// POST /api/exceptions/mark-fixed
func (h *ExceptionHandler) MarkFixedByHostname(c *gin.Context) {
	var req markFixedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Type == "" || req.Hostname == "" {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("type and hostname required"))
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
	outcome, err := h.svc.MarkManuallyFixedByHostname(c.Request.Context(), nil, req.Type, req.Hostname, date, req.Actor, req.UpdateType, req.OldValue, req.NewValue)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	h.respondOutcome(c, outcome)
}

type bulkUpdateRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Actor  string   `json:"actor"`
}

// POST /api/exceptions/bulk
func (h *ExceptionHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.IDs) == 0 {
		response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("ids required"))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid id %q", raw))
			return
		}
		ids = append(ids, id)
	}
	n, err := h.svc.BulkUpdate(c.Request.Context(), nil, ids, req.Action, req.Actor)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	response.RespondOK(c, gin.H{"requested": len(ids), "updated": n})
}

func (h *ExceptionHandler) respondOutcome(c *gin.Context, outcome repos.MarkFixedOutcome) {
	switch outcome {
	case repos.OutcomeNotFound:
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("exception not found"))
	default:
		response.RespondOK(c, gin.H{"status": string(outcome)})
	}
}

func parseExceptionFilter(c *gin.Context) (repos.ExceptionQueryFilter, error) {
	filter := repos.ExceptionQueryFilter{
		Type:           strings.TrimSpace(c.Query("type")),
		VarianceStatus: strings.TrimSpace(c.Query("variance_status")),
		Hostname:       strings.TrimSpace(c.Query("hostname")),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid resolved %q", raw)
		}
		filter.Resolved = &resolved
	}
	if raw := c.Query("date_from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("invalid date_from %q, want YYYY-MM-DD", raw)
		}
		filter.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fmt.Errorf("invalid date_to %q, want YYYY-MM-DD", raw)
		}
		filter.DateTo = &t
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "100"))
	return filter, nil
}
