package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/common/llm"
	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/common/otel"
	"civium.app/pipeline/core/config"
	"civium.app/pipeline/core/db"
	"civium.app/pipeline/internal/coverage"
	"civium.app/pipeline/internal/delivery"
	"civium.app/pipeline/internal/gate"
	"civium.app/pipeline/internal/generator"
	"civium.app/pipeline/internal/notify"
	"civium.app/pipeline/internal/service"
	"civium.app/pipeline/internal/store"
	"civium.app/pipeline/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)
	slog.InfoContext(ctx, "pipeline worker starting", "env", cfg.Env)

	if err := id.Init(2); err != nil {
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

	redisOpts, err := redis.ParseURL(cfg.Notify.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Notify.Stream)

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

	sender := notify.NewStreamSender(redisClient, cfg.Notify.Stream, nil, slog.Default())
	drainer := worker.NewDrainer(
		delivery.NewProcessor(poolStores.Deliveries(), sender, cfg.Delivery.BatchSize, slog.Default()),
		cfg.Delivery.Interval,
		slog.Default(),
	)

	batchWorker := worker.New(pipeline, worker.Config{Interval: cfg.Queue.Interval}, slog.Default())

	sweeper := worker.NewSweeper(poolStores.Demand(), poolStores.Deliveries(), worker.SweeperConfig{
		StuckTimeout: cfg.Queue.StuckTimeout,
		Interval:     cfg.Queue.SweepInterval,
	}, slog.Default())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); batchWorker.Run(runCtx) }()
	go func() { defer wg.Done(); drainer.Run(runCtx) }()
	go func() { defer wg.Done(); sweeper.Run(runCtx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	batchWorker.Stop()
	drainer.Stop()
	sweeper.Stop()
	cancel()
	wg.Wait()

	if telemetry != nil {
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}
