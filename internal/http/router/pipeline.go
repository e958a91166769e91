package router

import (
	"github.com/gin-gonic/gin"

	"civium.app/pipeline/internal/http/handler"
)

func PipelineRouter(rg *gin.RouterGroup, h *handler.PipelineHandler) {
	plans := rg.Group("/plans/:id")
	{
		plans.GET("/coverage", h.GetCoverage)
		plans.POST("/gaps", h.EnqueueGaps)
		plans.GET("/queue", h.GetQueueStats)
	}

	rg.POST("/queue/process", h.ProcessQueue)
}

func EvaluationRouter(rg *gin.RouterGroup, h *handler.EvaluationHandler) {
	evaluations := rg.Group("/evaluations")
	{
		evaluations.POST("", h.Create)
	}

	rg.GET("/entities/:id/consensus", h.GetConsensus)
}
