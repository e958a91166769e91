package router

import (
	"github.com/gin-gonic/gin"

	"civium.app/pipeline/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, pipelineHandler *handler.PipelineHandler, evaluationHandler *handler.EvaluationHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		PipelineRouter(v1, pipelineHandler)
		EvaluationRouter(v1, evaluationHandler)
	}
}
