package store

import (
	"context"
	"errors"
	"time"

	"civium.app/pipeline/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidItem is returned when an enqueued item is missing its source
// objective or target entity type. Invalid items are rejected immediately
// and never retried.
var ErrInvalidItem = errors.New("invalid queue item")

// PlanStore reads strategic plans and the entity counts linked to their
// objectives. Plans are owned by the planning workflow; this subsystem
// never writes them.
type PlanStore interface {
	GetByID(ctx context.Context, id int64) (*model.StrategicPlan, error)
	EntityCounts(ctx context.Context, planID int64) ([]model.EntityCount, error)
}

// SnapshotStore persists immutable coverage analysis runs.
type SnapshotStore interface {
	Create(ctx context.Context, snapshot *model.CoverageSnapshot) (*model.CoverageSnapshot, error)
	LatestByPlan(ctx context.Context, planID int64) (*model.CoverageSnapshot, error)
}

// DemandStore is the durable generation backlog. Claiming is a single
// conditional update so concurrent claimers can never double-claim an item.
type DemandStore interface {
	Enqueue(ctx context.Context, item *model.QueueItem) (*model.QueueItem, error)
	GetByID(ctx context.Context, id int64) (*model.QueueItem, error)
	ClaimBatch(ctx context.Context, entityTypes []model.EntityType, maxItems int) ([]model.QueueItem, error)
	ReportOutcome(ctx context.Context, id int64, outcome model.Outcome) (*model.QueueItem, error)
	// ResetStuck treats in_progress items claimed before the cutoff as
	// transient failures: back to pending with attempts incremented, or
	// failed once attempts have run out. Returns the number of items swept.
	ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context, planID int64) (map[model.QueueStatus]int, error)
}

// DeliveryStore is the outbound notification queue. Same lifecycle shape as
// DemandStore with scheduled_for gating the claim.
type DeliveryStore interface {
	Enqueue(ctx context.Context, item *model.DeliveryItem) (*model.DeliveryItem, error)
	GetByID(ctx context.Context, id int64) (*model.DeliveryItem, error)
	ClaimDue(ctx context.Context, now time.Time, maxItems int) ([]model.DeliveryItem, error)
	MarkSent(ctx context.Context, id int64) error
	// MarkSkipped is a terminal opt-out: it does not count against attempts.
	MarkSkipped(ctx context.Context, id int64, reason string) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// RescheduleTransient moves a processing item back to pending with the
	// given scheduled_for and attempts incremented, or to failed once
	// attempts have run out. Returns the updated item.
	RescheduleTransient(ctx context.Context, id int64, scheduledFor time.Time, reason string) (*model.DeliveryItem, error)
	ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error)
}

// EntityStore persists accepted candidates as portal entities and links
// them to their source objective, which is what closes the coverage loop.
type EntityStore interface {
	CreateGenerated(ctx context.Context, objectiveID int64, entityType model.EntityType, title, summary, description string) (int64, error)
}

// EvaluationStore persists expert evaluations. Evaluations are append-only;
// a re-evaluation is a new row, never an edit.
type EvaluationStore interface {
	Create(ctx context.Context, eval *model.Evaluation) (*model.Evaluation, error)
	ListByTarget(ctx context.Context, targetID int64) ([]model.Evaluation, error)
}
