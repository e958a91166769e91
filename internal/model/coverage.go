package model

import "time"

// ObjectiveCoverage is the per-objective slice of a snapshot.
type ObjectiveCoverage struct {
	ObjectiveID  int64              `json:"objective_id"`
	Sector       Sector             `json:"sector"`
	Coverage     float64            `json:"coverage"` // 0-100
	FullyCovered bool               `json:"fully_covered"`
	TypeCounts   map[EntityType]int `json:"type_counts"`
	MissingTypes []EntityType       `json:"missing_types,omitempty"`
}

// Gap is an objective/entity-type pair lacking sufficient supporting entities.
type Gap struct {
	ObjectiveID  int64        `json:"objective_id"`
	PlanID       int64        `json:"plan_id"`
	EntityType   EntityType   `json:"entity_type"`
	PriorityTier PriorityTier `json:"priority_tier"`
	PlanPosition int          `json:"plan_position"`
	Coverage     float64      `json:"coverage"` // per-type coverage at analysis time
}

// CoverageSnapshot is one immutable analysis run over a plan.
type CoverageSnapshot struct {
	ID                int64               `json:"id"`
	PlanID            int64               `json:"plan_id"`
	OverallCoverage   float64             `json:"overall_coverage"` // 0-100
	Objectives        []ObjectiveCoverage `json:"objectives"`
	TypeCounts        map[EntityType]int  `json:"type_counts"`
	GapCount          int                 `json:"gap_count"`
	SkippedObjectives int                 `json:"skipped_objectives"`
	CreatedAt         time.Time           `json:"created_at"`
}
