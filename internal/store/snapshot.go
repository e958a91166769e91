package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/internal/model"
)

type snapshotStore struct {
	db DBTX
}

// snapshotDetail carries the per-objective breakdown as one jsonb column.
// The snapshot is immutable, so the blob never needs partial updates.
type snapshotDetail struct {
	Objectives []model.ObjectiveCoverage `json:"objectives"`
	TypeCounts map[model.EntityType]int  `json:"type_counts"`
}

func (s *snapshotStore) Create(ctx context.Context, snapshot *model.CoverageSnapshot) (*model.CoverageSnapshot, error) {
	detail, err := json.Marshal(snapshotDetail{
		Objectives: snapshot.Objectives,
		TypeCounts: snapshot.TypeCounts,
	})
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO coverage_snapshots (id, plan_id, overall_coverage, gap_count, skipped_objectives, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, plan_id, overall_coverage, gap_count, skipped_objectives, detail, created_at`,
		id.New(), snapshot.PlanID, snapshot.OverallCoverage, snapshot.GapCount,
		snapshot.SkippedObjectives, detail)

	return scanSnapshot(row)
}

func (s *snapshotStore) LatestByPlan(ctx context.Context, planID int64) (*model.CoverageSnapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, plan_id, overall_coverage, gap_count, skipped_objectives, detail, created_at
		FROM coverage_snapshots
		WHERE plan_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, planID)

	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snapshot, nil
}

func scanSnapshot(row pgx.Row) (*model.CoverageSnapshot, error) {
	var snapshot model.CoverageSnapshot
	var detailJSON []byte
	if err := row.Scan(
		&snapshot.ID, &snapshot.PlanID, &snapshot.OverallCoverage,
		&snapshot.GapCount, &snapshot.SkippedObjectives, &detailJSON,
		&snapshot.CreatedAt,
	); err != nil {
		return nil, err
	}

	var detail snapshotDetail
	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &detail); err != nil {
			return nil, err
		}
	}
	snapshot.Objectives = detail.Objectives
	snapshot.TypeCounts = detail.TypeCounts
	return &snapshot, nil
}
