package handler_test

import (
	"context"

	"civium.app/pipeline/internal/consensus"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
)

type mockPipelineService struct {
	enqueueGapsFn  func(ctx context.Context, planID int64) (*service.EnqueueResult, error)
	processBatchFn func(ctx context.Context, entityTypes []model.EntityType, maxItems int) (*service.BatchResult, error)
	getCoverageFn  func(ctx context.Context, planID int64, refresh bool) (*model.CoverageSnapshot, error)
	queueStatsFn   func(ctx context.Context, planID int64) (map[model.QueueStatus]int, error)
}

func (m *mockPipelineService) EnqueueGaps(ctx context.Context, planID int64) (*service.EnqueueResult, error) {
	if m.enqueueGapsFn != nil {
		return m.enqueueGapsFn(ctx, planID)
	}
	return &service.EnqueueResult{Snapshot: &model.CoverageSnapshot{PlanID: planID}}, nil
}

func (m *mockPipelineService) ProcessBatch(ctx context.Context, entityTypes []model.EntityType, maxItems int) (*service.BatchResult, error) {
	if m.processBatchFn != nil {
		return m.processBatchFn(ctx, entityTypes, maxItems)
	}
	return &service.BatchResult{}, nil
}

func (m *mockPipelineService) GetCoverage(ctx context.Context, planID int64, refresh bool) (*model.CoverageSnapshot, error) {
	if m.getCoverageFn != nil {
		return m.getCoverageFn(ctx, planID, refresh)
	}
	return &model.CoverageSnapshot{PlanID: planID}, nil
}

func (m *mockPipelineService) QueueStats(ctx context.Context, planID int64) (map[model.QueueStatus]int, error) {
	if m.queueStatsFn != nil {
		return m.queueStatsFn(ctx, planID)
	}
	return map[model.QueueStatus]int{}, nil
}

type mockEvaluationService struct {
	createFn    func(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error)
	consensusFn func(ctx context.Context, targetID int64) (*consensus.Result, error)
}

func (m *mockEvaluationService) Create(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, eval)
	}
	return eval, nil
}

func (m *mockEvaluationService) Consensus(ctx context.Context, targetID int64) (*consensus.Result, error) {
	if m.consensusFn != nil {
		return m.consensusFn(ctx, targetID)
	}
	return &consensus.Result{TargetID: targetID}, nil
}
