// Package gate drives claimed demand queue items through the content
// generator and reports each item's terminal or retry outcome.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/generator"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/store"
)

// Policy holds the quality scoring thresholds. These were previously inline
// magic numbers scattered through the portal; keeping them named lets tests
// pin exact boundary behavior.
type Policy struct {
	AcceptThreshold  int // qualityScore >= AcceptThreshold -> accepted
	ReviewThreshold  int // ReviewThreshold <= qualityScore < AcceptThreshold -> needs_review
	ConfidenceWeight int // share of the score carried by generator confidence
	ValidatorWeight  int // share granted when structural validation passes
	Workers          int // bounded parallelism within one batch
}

func DefaultPolicy() Policy {
	return Policy{
		AcceptThreshold:  80,
		ReviewThreshold:  50,
		ConfidenceWeight: 70,
		ValidatorWeight:  30,
		Workers:          4,
	}
}

// OutcomeReporter is the slice of the demand store the gate needs.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, id int64, outcome model.Outcome) (*model.QueueItem, error)
}

// Summary aggregates one batch's per-item results.
type Summary struct {
	Accepted    int `json:"accepted"`
	Rejected    int `json:"rejected"`
	NeedsReview int `json:"needs_review"`
	Failed      int `json:"failed"`
}

// ItemResult reports where one item ended up after this batch.
type ItemResult struct {
	Item      model.QueueItem
	Status    model.QueueStatus
	EntityRef *int64
}

type Gate struct {
	generator generator.Generator
	entities  store.EntityStore
	reporter  OutcomeReporter
	policy    Policy
	logger    *slog.Logger
}

func New(gen generator.Generator, entities store.EntityStore, reporter OutcomeReporter, policy Policy, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	if policy.Workers <= 0 {
		policy.Workers = 1
	}
	return &Gate{
		generator: gen,
		entities:  entities,
		reporter:  reporter,
		policy:    policy,
		logger:    log,
	}
}

// ProcessBatch runs every claimed item through generation with bounded
// parallelism. Items are independent: one slow or failing item never blocks
// the rest, and per-item failures are absorbed into item status instead of
// failing the batch.
func (g *Gate) ProcessBatch(ctx context.Context, items []model.QueueItem) (Summary, []ItemResult) {
	results := make([]ItemResult, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, g.policy.Workers)

	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					g.logger.ErrorContext(ctx, "panic recovered in item processing",
						"panic", r, "item_id", items[i].ID)
					results[i] = g.report(ctx, items[i], model.Outcome{
						Kind:   model.OutcomeTransientFailure,
						Reason: fmt.Sprintf("panic: %v", r),
					}, nil)
				}
			}()
			results[i] = g.processItem(ctx, items[i])
		}(i)
	}
	wg.Wait()

	var summary Summary
	for _, r := range results {
		switch r.Status {
		case model.QueueStatusAccepted:
			summary.Accepted++
		case model.QueueStatusRejected:
			summary.Rejected++
		case model.QueueStatusNeedsReview:
			summary.NeedsReview++
		case model.QueueStatusFailed:
			summary.Failed++
		}
	}
	return summary, results
}

func (g *Gate) processItem(ctx context.Context, item model.QueueItem) ItemResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ItemID:      logger.Ptr(item.ID),
		ObjectiveID: logger.Ptr(item.ObjectiveID),
		EntityType:  logger.Ptr(string(item.EntityType)),
	})

	result, err := g.generator.Generate(ctx, string(item.EntityType), item.Specification)
	if err != nil {
		// Generator errors are infrastructure, not a verdict on the item.
		g.logger.WarnContext(ctx, "generation failed", "error", err, "attempt", item.Attempts)
		return g.report(ctx, item, model.Outcome{
			Kind:   model.OutcomeTransientFailure,
			Reason: err.Error(),
		}, nil)
	}

	problems := Validate(result.Candidate)
	score := g.qualityScore(result.Confidence, len(problems) == 0)

	switch {
	case score >= g.policy.AcceptThreshold:
		entityRef, err := g.entities.CreateGenerated(ctx, item.ObjectiveID, item.EntityType,
			result.Candidate.Title, result.Candidate.Summary, result.Candidate.Description)
		if err != nil {
			g.logger.WarnContext(ctx, "persisting accepted candidate failed", "error", err)
			return g.report(ctx, item, model.Outcome{
				Kind:   model.OutcomeTransientFailure,
				Reason: "persisting candidate: " + err.Error(),
			}, nil)
		}
		g.logger.InfoContext(ctx, "candidate accepted", "quality_score", score, "entity_ref", entityRef)
		return g.report(ctx, item, model.Outcome{
			Kind:         model.OutcomeAccepted,
			EntityRef:    &entityRef,
			QualityScore: &score,
		}, &entityRef)

	case score >= g.policy.ReviewThreshold:
		g.logger.InfoContext(ctx, "candidate needs review", "quality_score", score)
		return g.report(ctx, item, model.Outcome{
			Kind:         model.OutcomeNeedsReview,
			QualityScore: &score,
		}, nil)

	default:
		// A low score is a valid terminal business outcome, not a failure.
		reason := "quality below threshold"
		if len(problems) > 0 {
			reason = "structural validation: " + strings.Join(problems, "; ")
		}
		g.logger.InfoContext(ctx, "candidate rejected", "quality_score", score, "reason", reason)
		return g.report(ctx, item, model.Outcome{
			Kind:         model.OutcomeRejected,
			QualityScore: &score,
			Reason:       reason,
		}, nil)
	}
}

func (g *Gate) report(ctx context.Context, item model.QueueItem, outcome model.Outcome, entityRef *int64) ItemResult {
	updated, err := g.reporter.ReportOutcome(ctx, item.ID, outcome)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Someone else resolved the item; the sweeper or an operator.
			g.logger.WarnContext(ctx, "item no longer in_progress, outcome dropped")
			return ItemResult{Item: item, Status: item.Status}
		}
		// Store failure: the item stays in_progress for the sweeper to reset.
		g.logger.ErrorContext(ctx, "reporting outcome failed", "error", err)
		return ItemResult{Item: item, Status: model.QueueStatusInProgress}
	}
	return ItemResult{Item: *updated, Status: updated.Status, EntityRef: entityRef}
}

// qualityScore combines the generator's self-reported confidence with the
// structural validation verdict into a 0-100 score.
func (g *Gate) qualityScore(confidence float64, valid bool) int {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	score := int(confidence*float64(g.policy.ConfidenceWeight) + 0.5)
	if valid {
		score += g.policy.ValidatorWeight
	}
	return score
}
