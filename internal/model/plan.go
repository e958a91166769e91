package model

import "time"

type (
	Sector       string
	PriorityTier string
	EntityType   string
)

const (
	PriorityTierHigh   PriorityTier = "high"
	PriorityTierMedium PriorityTier = "medium"
	PriorityTierLow    PriorityTier = "low"
)

const (
	EntityTypeProject    EntityType = "project"
	EntityTypeInitiative EntityType = "initiative"
	EntityTypeIndicator  EntityType = "indicator"
)

// Objective is a strategic goal owned by the planning workflow.
// Read-only from the pipeline's perspective.
type Objective struct {
	ID           int64        `json:"id"`
	PlanID       int64        `json:"plan_id"`
	Sector       Sector       `json:"sector"`
	PriorityTier PriorityTier `json:"priority_tier"`
	Title        string       `json:"title,omitempty"`
	Position     int          `json:"position"`
}

// StrategicPlan carries its objectives in plan order.
type StrategicPlan struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Objectives []Objective `json:"objectives"`
	CreatedAt  time.Time   `json:"created_at"`
}

// EntityCount is the number of entities of one type linked to an objective,
// supplied by the relational store.
type EntityCount struct {
	ObjectiveID int64      `json:"objective_id"`
	EntityType  EntityType `json:"entity_type"`
	Count       int        `json:"count"`
}
