package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	"github.com/dgmosdaegu/work-day-bot/internal/service"
	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
	"github.com/dgmosdaegu/work-day-bot/pkg/response"
)

type runManager interface {
	Execute(ctx context.Context, req service.RunRequest) (models.RunRecord, error)
	Recent(limit int) []models.RunRecord
	Last() (models.RunRecord, bool)
}

// RunHandler exposes manual run triggering and the run history.
type RunHandler struct {
	runs runManager
}

// NewRunHandler constructs a run handler.
func NewRunHandler(runs runManager) *RunHandler {
	return &RunHandler{runs: runs}
}

// Trigger executes one attendance check synchronously. The finished record
// comes back with 202 even when the run itself failed; only requests that
// never started a run (bad payload, run already in flight) get an error
// envelope.
func (h *RunHandler) Trigger(c *gin.Context) {
	var req service.RunRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	record, err := h.runs.Execute(c.Request.Context(), req)
	if err != nil && record.ID == "" {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, record, nil)
}

// List returns recent runs, newest first.
func (h *RunHandler) List(c *gin.Context) {
	limit := 20
	if parsed, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		limit = parsed
	}
	runs := h.runs.Recent(limit)
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"count": len(runs)})
}

// Last returns the most recent run record.
func (h *RunHandler) Last(c *gin.Context) {
	record, ok := h.runs.Last()
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no runs recorded yet"))
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// LastReport returns the most recent report text verbatim, the way it was
// (or would have been) delivered.
func (h *RunHandler) LastReport(c *gin.Context) {
	record, ok := h.runs.Last()
	if !ok || record.Report == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no report available"))
		return
	}
	c.String(http.StatusOK, record.Report)
}
