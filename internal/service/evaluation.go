package service

import (
	"context"
	"fmt"
	"log/slog"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/model"
)

// Evaluations records expert judgments and aggregates them into a consensus
// read for a target entity.
type Evaluations struct {
	runner TxRunner
	engine *consensus.Engine
	logger *slog.Logger
}

func NewEvaluations(runner TxRunner, engine *consensus.Engine, log *slog.Logger) *Evaluations {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluations{
		runner: runner,
		engine: engine,
		logger: log,
	}
}

// Create validates and persists one evaluation. Every criterion must be
// scored exactly once, each score in [0, 100].
func (e *Evaluations) Create(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error) {
	if eval.TargetID <= 0 {
		return nil, invalid("target_id", "must be positive")
	}
	if eval.EvaluatorID <= 0 {
		return nil, invalid("evaluator_id", "must be positive")
	}
	switch eval.Recommendation {
	case model.RecommendationApprove, model.RecommendationRevise, model.RecommendationReject:
	default:
		return nil, invalid("recommendation", "must be approve, revise or reject")
	}

	if len(eval.Scores) != len(model.AllCriteria) {
		return nil, invalid("scores", fmt.Sprintf("exactly %d criteria required", len(model.AllCriteria)))
	}
	for _, criterion := range model.AllCriteria {
		score, ok := eval.Scores[criterion]
		if !ok {
			return nil, invalid("scores", "missing criterion "+string(criterion))
		}
		if score < 0 || score > 100 {
			return nil, invalid("scores", fmt.Sprintf("%s must be in [0, 100], got %d", criterion, score))
		}
	}

	created, err := e.runner.Stores().Evaluations().Create(ctx, eval)
	if err != nil {
		return nil, fmt.Errorf("persisting evaluation: %w", err)
	}
	e.logger.InfoContext(ctx, "evaluation recorded",
		"target_id", created.TargetID, "evaluator_id", created.EvaluatorID,
		"recommendation", created.Recommendation)
	return created, nil
}

// Consensus aggregates all evaluations recorded for a target.
// Returns consensus.ErrNoEvaluations when none exist.
func (e *Evaluations) Consensus(ctx context.Context, targetID int64) (*consensus.Result, error) {
	if targetID <= 0 {
		return nil, invalid("target_id", "must be positive")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "pipeline.evaluations"})

	evals, err := e.runner.Stores().Evaluations().ListByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("loading evaluations: %w", err)
	}
	return e.engine.Aggregate(targetID, evals)
}
