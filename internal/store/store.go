package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same store
// code runs inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores bundles the typed store accessors over one DBTX.
type Stores struct {
	db DBTX
}

func NewStores(db DBTX) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Plans() PlanStore {
	return &planStore{db: s.db}
}

func (s *Stores) Snapshots() SnapshotStore {
	return &snapshotStore{db: s.db}
}

func (s *Stores) Demand() DemandStore {
	return &demandStore{db: s.db}
}

func (s *Stores) Deliveries() DeliveryStore {
	return &deliveryStore{db: s.db}
}

func (s *Stores) Entities() EntityStore {
	return &entityStore{db: s.db}
}

func (s *Stores) Evaluations() EvaluationStore {
	return &evaluationStore{db: s.db}
}
