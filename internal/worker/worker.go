// Package worker hosts the background loops: batch generation, delivery
// draining, and the stuck-item sweeper.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/delivery"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
)

type Config struct {
	// Interval between batch attempts when the queue is empty. A non-empty
	// batch immediately triggers the next one.
	Interval time.Duration
	// EntityTypes restricts what this worker claims. Empty means all.
	EntityTypes []model.EntityType
}

// Worker repeatedly claims and processes demand queue batches.
type Worker struct {
	pipeline *service.Pipeline
	cfg      Config
	logger   *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(pipeline *service.Pipeline, cfg Config, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Worker{
		pipeline:  pipeline,
		cfg:       cfg,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "pipeline.worker"})
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "worker started", "interval", w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			w.logger.InfoContext(ctx, "worker stopping")
			return
		case <-ticker.C:
			w.drainBacklog(ctx)
		}
	}
}

// Stop signals the worker to stop and waits for the current batch.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

// drainBacklog keeps processing batches until the queue runs dry so a full
// backlog is not throttled to one batch per tick.
func (w *Worker) drainBacklog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		claimed, err := w.processOneBatch(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "batch processing error", "error", err)
			return
		}
		if claimed == 0 {
			return
		}
	}
}

func (w *Worker) processOneBatch(ctx context.Context) (claimed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "panic recovered in batch processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	result, err := w.pipeline.ProcessBatch(ctx, w.cfg.EntityTypes, 0)
	if err != nil {
		return 0, err
	}
	if result.Claimed > 0 {
		w.logger.InfoContext(ctx, "batch processed",
			"claimed", result.Claimed,
			"accepted", result.Summary.Accepted,
			"rejected", result.Summary.Rejected,
			"needs_review", result.Summary.NeedsReview,
			"failed", result.Summary.Failed)
	}
	return result.Claimed, nil
}

// Drainer runs the delivery processor on a fixed interval.
type Drainer struct {
	processor *delivery.Processor
	interval  time.Duration
	logger    *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewDrainer(processor *delivery.Processor, interval time.Duration, log *slog.Logger) *Drainer {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Drainer{
		processor: processor,
		interval:  interval,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (d *Drainer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "pipeline.worker.drainer"})
	defer close(d.stoppedCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.InfoContext(ctx, "drainer started", "interval", d.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			d.logger.InfoContext(ctx, "drainer stopping")
			return
		case <-ticker.C:
			summary, err := d.processor.Drain(ctx)
			if err != nil {
				d.logger.ErrorContext(ctx, "drain cycle error", "error", err)
				continue
			}
			if summary != (delivery.Summary{}) {
				d.logger.InfoContext(ctx, "deliveries drained",
					"sent", summary.Sent,
					"skipped", summary.Skipped,
					"failed", summary.Failed,
					"rescheduled", summary.Rescheduled)
			}
		}
	}
}

func (d *Drainer) Stop() {
	close(d.stopCh)
	<-d.stoppedCh
}
