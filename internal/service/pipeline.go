package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/coverage"
	"civium.app/pipeline/internal/gate"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/notify"
	"civium.app/pipeline/internal/priority"
	"civium.app/pipeline/internal/store"
)

type PipelineConfig struct {
	// MaxAttempts bounds generation retries per queue item.
	MaxAttempts int
	// BatchSize bounds one claim.
	BatchSize int
	// DeliveryMaxAttempts bounds notification retries per delivery item.
	DeliveryMaxAttempts int
}

// Pipeline owns the demand-side flow: analyze coverage, enqueue gaps,
// process claimed items through the generation gate, and fan results out to
// the delivery queue.
type Pipeline struct {
	runner   TxRunner
	analyzer *coverage.Analyzer
	gate     *gate.Gate
	cfg      PipelineConfig
	logger   *slog.Logger
}

func NewPipeline(runner TxRunner, analyzer *coverage.Analyzer, g *gate.Gate, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.DeliveryMaxAttempts <= 0 {
		cfg.DeliveryMaxAttempts = 3
	}
	return &Pipeline{
		runner:   runner,
		analyzer: analyzer,
		gate:     g,
		cfg:      cfg,
		logger:   log,
	}
}

// EnqueueResult reports one analyze-and-enqueue run.
type EnqueueResult struct {
	Snapshot *model.CoverageSnapshot `json:"snapshot"`
	Enqueued []model.QueueItem       `json:"enqueued"`
}

// generationSpec is the payload a queue item carries to the generator.
type generationSpec struct {
	ObjectiveID    int64   `json:"objective_id"`
	ObjectiveTitle string  `json:"objective_title,omitempty"`
	Sector         string  `json:"sector"`
	EntityType     string  `json:"entity_type"`
	Coverage       float64 `json:"coverage"`
}

// EnqueueGaps analyzes a plan's coverage and turns every gap into a demand
// queue item. The snapshot and all items commit atomically: a reader never
// sees a snapshot whose gaps are only partially enqueued.
func (p *Pipeline) EnqueueGaps(ctx context.Context, planID int64) (*EnqueueResult, error) {
	if planID <= 0 {
		return nil, invalid("plan_id", "must be positive")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{PlanID: logger.Ptr(planID)})

	var result EnqueueResult
	err := p.runner.InTx(ctx, func(s StoreSet) error {
		plan, err := s.Plans().GetByID(ctx, planID)
		if err != nil {
			return err
		}
		counts, err := s.Plans().EntityCounts(ctx, planID)
		if err != nil {
			return fmt.Errorf("loading entity counts: %w", err)
		}

		snapshot, gaps := p.analyzer.Analyze(ctx, plan, counts)
		snapshot, err = s.Snapshots().Create(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("persisting snapshot: %w", err)
		}
		result.Snapshot = snapshot

		objectives := indexObjectives(plan)
		for i, gap := range gaps {
			spec, err := json.Marshal(generationSpec{
				ObjectiveID:    gap.ObjectiveID,
				ObjectiveTitle: objectives[gap.ObjectiveID].Title,
				Sector:         string(objectives[gap.ObjectiveID].Sector),
				EntityType:     string(gap.EntityType),
				Coverage:       gap.Coverage,
			})
			if err != nil {
				return fmt.Errorf("encoding specification: %w", err)
			}

			item, err := s.Demand().Enqueue(ctx, &model.QueueItem{
				ObjectiveID:   gap.ObjectiveID,
				PlanID:        gap.PlanID,
				EntityType:    gap.EntityType,
				Priority:      priority.Score(gap.PriorityTier, len(gaps), i),
				MaxAttempts:   p.cfg.MaxAttempts,
				Specification: spec,
			})
			if err != nil {
				return fmt.Errorf("enqueueing gap for objective %d: %w", gap.ObjectiveID, err)
			}
			result.Enqueued = append(result.Enqueued, *item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "gaps enqueued",
		"overall_coverage", result.Snapshot.OverallCoverage,
		"gap_count", len(result.Enqueued))
	return &result, nil
}

// BatchResult reports one process-batch run.
type BatchResult struct {
	Claimed int          `json:"claimed"`
	Summary gate.Summary `json:"summary"`
	Items   []BatchItem  `json:"items"`
}

type BatchItem struct {
	ItemID    int64             `json:"item_id"`
	Status    model.QueueStatus `json:"status"`
	EntityRef *int64            `json:"entity_ref,omitempty"`
}

// ProcessBatch claims up to maxItems pending items and runs them through
// the generation gate. maxItems is capped at the configured BatchSize; zero
// means the full configured batch. Terminal outcomes are fanned out to the
// delivery queue; a delivery enqueue failure is logged but never undoes the
// outcome.
func (p *Pipeline) ProcessBatch(ctx context.Context, entityTypes []model.EntityType, maxItems int) (*BatchResult, error) {
	for _, et := range entityTypes {
		if !validEntityType(et) {
			return nil, invalid("entity_types", "unknown entity type "+string(et))
		}
	}
	if maxItems <= 0 || maxItems > p.cfg.BatchSize {
		maxItems = p.cfg.BatchSize
	}

	stores := p.runner.Stores()
	items, err := stores.Demand().ClaimBatch(ctx, entityTypes, maxItems)
	if err != nil {
		return nil, fmt.Errorf("claiming batch: %w", err)
	}
	result := &BatchResult{Claimed: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	summary, itemResults := p.gate.ProcessBatch(ctx, items)
	result.Summary = summary

	for _, r := range itemResults {
		result.Items = append(result.Items, BatchItem{
			ItemID:    r.Item.ID,
			Status:    r.Status,
			EntityRef: r.EntityRef,
		})
		if !r.Status.Terminal() {
			continue
		}
		if err := p.enqueueNotification(ctx, stores, r); err != nil {
			p.logger.WarnContext(ctx, "enqueueing notification failed",
				"item_id", r.Item.ID, "error", err)
		}
	}
	if err := p.enqueueBatchSummary(ctx, stores, result); err != nil {
		p.logger.WarnContext(ctx, "enqueueing batch summary failed", "error", err)
	}
	return result, nil
}

// batchSummaryPayload announces one completed batch run downstream.
type batchSummaryPayload struct {
	Claimed int          `json:"claimed"`
	Summary gate.Summary `json:"summary"`
}

func (p *Pipeline) enqueueBatchSummary(ctx context.Context, s StoreSet, result *BatchResult) error {
	body, err := json.Marshal(batchSummaryPayload{
		Claimed: result.Claimed,
		Summary: result.Summary,
	})
	if err != nil {
		return err
	}
	_, err = s.Deliveries().Enqueue(ctx, &model.DeliveryItem{
		Kind:        notify.KindBatchProcessed,
		Payload:     body,
		MaxAttempts: p.cfg.DeliveryMaxAttempts,
	})
	return err
}

// notificationPayload is what delivery items carry downstream.
type notificationPayload struct {
	ItemID       int64  `json:"item_id"`
	ObjectiveID  int64  `json:"objective_id"`
	PlanID       int64  `json:"plan_id"`
	EntityType   string `json:"entity_type"`
	EntityRef    *int64 `json:"entity_ref,omitempty"`
	QualityScore *int   `json:"quality_score,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func (p *Pipeline) enqueueNotification(ctx context.Context, s StoreSet, r gate.ItemResult) error {
	var kind string
	switch r.Status {
	case model.QueueStatusAccepted:
		kind = notify.KindItemAccepted
	case model.QueueStatusRejected:
		kind = notify.KindItemRejected
	case model.QueueStatusNeedsReview:
		kind = notify.KindItemNeedsReview
	case model.QueueStatusFailed:
		kind = notify.KindItemFailed
	default:
		return nil
	}

	payload := notificationPayload{
		ItemID:       r.Item.ID,
		ObjectiveID:  r.Item.ObjectiveID,
		PlanID:       r.Item.PlanID,
		EntityType:   string(r.Item.EntityType),
		EntityRef:    r.EntityRef,
		QualityScore: r.Item.QualityScore,
	}
	if r.Item.LastError != nil {
		payload.Reason = *r.Item.LastError
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = s.Deliveries().Enqueue(ctx, &model.DeliveryItem{
		Kind:        kind,
		Payload:     body,
		MaxAttempts: p.cfg.DeliveryMaxAttempts,
	})
	return err
}

// GetCoverage returns the latest persisted snapshot, or analyzes fresh when
// refresh is set or none exists yet. A fresh analysis is persisted so reads
// stay cheap.
func (p *Pipeline) GetCoverage(ctx context.Context, planID int64, refresh bool) (*model.CoverageSnapshot, error) {
	if planID <= 0 {
		return nil, invalid("plan_id", "must be positive")
	}

	if !refresh {
		snapshot, err := p.runner.Stores().Snapshots().LatestByPlan(ctx, planID)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	var snapshot *model.CoverageSnapshot
	err := p.runner.InTx(ctx, func(s StoreSet) error {
		plan, err := s.Plans().GetByID(ctx, planID)
		if err != nil {
			return err
		}
		counts, err := s.Plans().EntityCounts(ctx, planID)
		if err != nil {
			return fmt.Errorf("loading entity counts: %w", err)
		}
		fresh, _ := p.analyzer.Analyze(ctx, plan, counts)
		snapshot, err = s.Snapshots().Create(ctx, fresh)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// QueueStats returns the per-status item counts for one plan.
func (p *Pipeline) QueueStats(ctx context.Context, planID int64) (map[model.QueueStatus]int, error) {
	if planID <= 0 {
		return nil, invalid("plan_id", "must be positive")
	}
	return p.runner.Stores().Demand().CountByStatus(ctx, planID)
}

func indexObjectives(plan *model.StrategicPlan) map[int64]model.Objective {
	out := make(map[int64]model.Objective, len(plan.Objectives))
	for _, o := range plan.Objectives {
		out[o.ID] = o
	}
	return out
}

func validEntityType(et model.EntityType) bool {
	switch et {
	case model.EntityTypeProject, model.EntityTypeInitiative, model.EntityTypeIndicator:
		return true
	}
	return false
}
