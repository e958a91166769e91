package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/internal/model"
)

type planStore struct {
	db DBTX
}

func (s *planStore) GetByID(ctx context.Context, planID int64) (*model.StrategicPlan, error) {
	var plan model.StrategicPlan
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM strategic_plans WHERE id = $1`, planID).
		Scan(&plan.ID, &plan.Name, &plan.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, plan_id, sector, priority_tier, title, position
		FROM objectives
		WHERE plan_id = $1
		ORDER BY position ASC`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var obj model.Objective
		var sector, tier string
		if err := rows.Scan(&obj.ID, &obj.PlanID, &sector, &tier, &obj.Title, &obj.Position); err != nil {
			return nil, err
		}
		obj.Sector = model.Sector(sector)
		obj.PriorityTier = model.PriorityTier(tier)
		plan.Objectives = append(plan.Objectives, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *planStore) EntityCounts(ctx context.Context, planID int64) ([]model.EntityCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT el.objective_id, el.entity_type, count(*)
		FROM entity_links el
		JOIN objectives o ON o.id = el.objective_id
		WHERE o.plan_id = $1
		GROUP BY el.objective_id, el.entity_type`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.EntityCount
	for rows.Next() {
		var c model.EntityCount
		var entityType string
		if err := rows.Scan(&c.ObjectiveID, &entityType, &c.Count); err != nil {
			return nil, err
		}
		c.EntityType = model.EntityType(entityType)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
