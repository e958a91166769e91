package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"civium.app/pipeline/internal/http/dto"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
	"civium.app/pipeline/internal/store"
)

// PipelineService is the slice of the service layer this handler needs.
// Satisfied by *service.Pipeline.
type PipelineService interface {
	EnqueueGaps(ctx context.Context, planID int64) (*service.EnqueueResult, error)
	ProcessBatch(ctx context.Context, entityTypes []model.EntityType, maxItems int) (*service.BatchResult, error)
	GetCoverage(ctx context.Context, planID int64, refresh bool) (*model.CoverageSnapshot, error)
	QueueStats(ctx context.Context, planID int64) (map[model.QueueStatus]int, error)
}

type PipelineHandler struct {
	pipeline PipelineService
}

func NewPipelineHandler(pipeline PipelineService) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

// EnqueueGaps runs a coverage analysis and enqueues every detected gap.
func (h *PipelineHandler) EnqueueGaps(c *gin.Context) {
	ctx := c.Request.Context()

	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.pipeline.EnqueueGaps(ctx, planID)
	if err != nil {
		respondError(c, err, "failed to enqueue gaps")
		return
	}
	c.JSON(http.StatusCreated, dto.ToEnqueueGapsResponse(result))
}

// ProcessQueue claims and processes one batch on demand. The same path the
// background worker takes, exposed for operators and tests.
func (h *PipelineHandler) ProcessQueue(c *gin.Context) {
	ctx := c.Request.Context()

	// An empty body means "claim anything".
	var req dto.ProcessQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.pipeline.ProcessBatch(ctx, req.ModelEntityTypes(), req.MaxItems)
	if err != nil {
		respondError(c, err, "failed to process queue")
		return
	}
	c.JSON(http.StatusOK, dto.ToProcessQueueResponse(result))
}

// GetCoverage serves the latest snapshot; ?refresh=true forces a re-analysis.
func (h *PipelineHandler) GetCoverage(c *gin.Context) {
	ctx := c.Request.Context()

	planID, ok := pathID(c, "id")
	if !ok {
		return
	}
	refresh := c.Query("refresh") == "true"

	snapshot, err := h.pipeline.GetCoverage(ctx, planID, refresh)
	if err != nil {
		respondError(c, err, "failed to load coverage")
		return
	}
	c.JSON(http.StatusOK, dto.ToCoverageResponse(snapshot))
}

// GetQueueStats serves per-status item counts for a plan.
func (h *PipelineHandler) GetQueueStats(c *gin.Context) {
	ctx := c.Request.Context()

	planID, ok := pathID(c, "id")
	if !ok {
		return
	}

	counts, err := h.pipeline.QueueStats(ctx, planID)
	if err != nil {
		respondError(c, err, "failed to load queue stats")
		return
	}
	c.JSON(http.StatusOK, dto.ToQueueStatsResponse(planID, counts))
}

func pathID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error, internalMsg string) {
	ctx := c.Request.Context()

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		slog.ErrorContext(ctx, internalMsg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalMsg})
	}
}
