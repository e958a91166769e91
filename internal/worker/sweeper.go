package worker

import (
	"context"
	"log/slog"
	"time"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/store"
)

type SweeperConfig struct {
	// StuckTimeout is how long an item may sit in its claimed state before
	// the sweeper treats the claimer as dead.
	StuckTimeout time.Duration
	Interval     time.Duration
}

// Sweeper recovers items stranded in a claimed state by crashed workers.
// Demand items go back to pending (or failed once attempts run out), and
// delivery items likewise.
type Sweeper struct {
	demand     store.DemandStore
	deliveries store.DeliveryStore
	cfg        SweeperConfig
	logger     *slog.Logger
	now        func() time.Time

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewSweeper(demand store.DemandStore, deliveries store.DeliveryStore, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StuckTimeout <= 0 {
		cfg.StuckTimeout = 15 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Sweeper{
		demand:     demand,
		deliveries: deliveries,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "pipeline.worker.sweeper"})
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval, "stuck_timeout", s.cfg.StuckTimeout)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.stoppedCh
}

// SweepOnce resets stuck items in both queues. Exported so an operator
// endpoint can trigger it out of cycle.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.StuckTimeout)

	swept, err := s.demand.ResetStuck(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweeping demand queue failed", "error", err)
	} else if swept > 0 {
		s.logger.WarnContext(ctx, "stuck demand items reset", "count", swept)
	}

	swept, err = s.deliveries.ResetStuck(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweeping delivery queue failed", "error", err)
	} else if swept > 0 {
		s.logger.WarnContext(ctx, "stuck delivery items reset", "count", swept)
	}
}
