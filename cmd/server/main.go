package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/common/llm"
	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/common/otel"
	"civium.app/pipeline/core/config"
	"civium.app/pipeline/core/db"
	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/coverage"
	"civium.app/pipeline/internal/gate"
	"civium.app/pipeline/internal/generator"
	"civium.app/pipeline/internal/http/handler"
	"civium.app/pipeline/internal/http/middleware"
	httprouter "civium.app/pipeline/internal/http/router"
	"civium.app/pipeline/internal/service"
	"civium.app/pipeline/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "pipeline server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	llmClient, err := llm.New(llm.Config{
		APIKey:    cfg.Generator.APIKey,
		BaseURL:   cfg.Generator.BaseURL,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize generator client", "error", err)
		os.Exit(1)
	}

	runner := service.NewPgRunner(database)
	poolStores := store.NewStores(database.Pool())

	gatePolicy := gate.DefaultPolicy()
	gatePolicy.Workers = cfg.Queue.Workers
	generationGate := gate.New(
		generator.NewLLM(llmClient, cfg.Generator.Timeout),
		poolStores.Entities(),
		poolStores.Demand(),
		gatePolicy,
		slog.Default(),
	)

	pipeline := service.NewPipeline(
		runner,
		coverage.NewAnalyzer(coverage.DefaultPolicy(), slog.Default()),
		generationGate,
		service.PipelineConfig{
			MaxAttempts:         cfg.Queue.MaxAttempts,
			BatchSize:           cfg.Queue.BatchSize,
			DeliveryMaxAttempts: cfg.Delivery.MaxAttempts,
		},
		slog.Default(),
	)
	evaluations := service.NewEvaluations(
		runner,
		consensus.NewEngine(consensus.DefaultWeights(), consensus.DefaultThresholds()),
		slog.Default(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, pipeline, evaluations)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, pipeline *service.Pipeline, evaluations *service.Evaluations) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span -> Recovery catches panics -> Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router,
		handler.NewPipelineHandler(pipeline),
		handler.NewEvaluationHandler(evaluations))

	return router
}
