package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/http/dto"
	"civium.app/pipeline/internal/model"
)

// EvaluationService is satisfied by *service.Evaluations.
type EvaluationService interface {
	Create(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error)
	Consensus(ctx context.Context, targetID int64) (*consensus.Result, error)
}

type EvaluationHandler struct {
	evaluations EvaluationService
}

func NewEvaluationHandler(evaluations EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

func (h *EvaluationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.evaluations.Create(ctx, req.ToModel())
	if err != nil {
		respondError(c, err, "failed to create evaluation")
		return
	}
	c.JSON(http.StatusCreated, dto.ToEvaluationResponse(created))
}

func (h *EvaluationHandler) GetConsensus(c *gin.Context) {
	ctx := c.Request.Context()

	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.evaluations.Consensus(ctx, targetID)
	if err != nil {
		if errors.Is(err, consensus.ErrNoEvaluations) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no evaluations for target"})
			return
		}
		respondError(c, err, "failed to compute consensus")
		return
	}
	c.JSON(http.StatusOK, dto.ToConsensusResponse(result))
}
