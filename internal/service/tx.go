package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/core/db"
	"civium.app/pipeline/internal/store"
)

// StoreSet is one consistent set of stores, backed either by the pool or by
// a single transaction. *store.Stores satisfies it.
type StoreSet interface {
	Plans() store.PlanStore
	Snapshots() store.SnapshotStore
	Demand() store.DemandStore
	Deliveries() store.DeliveryStore
	Entities() store.EntityStore
	Evaluations() store.EvaluationStore
}

// TxRunner hands out store sets and runs multi-store operations atomically.
type TxRunner interface {
	// Stores returns a pool-backed set for single-statement operations.
	Stores() StoreSet
	// InTx runs fn with a transaction-backed set; fn returning an error
	// rolls everything back.
	InTx(ctx context.Context, fn func(s StoreSet) error) error
}

// PgRunner is the production TxRunner over pgx.
type PgRunner struct {
	db *db.DB
}

func NewPgRunner(database *db.DB) *PgRunner {
	return &PgRunner{db: database}
}

func (r *PgRunner) Stores() StoreSet {
	return store.NewStores(r.db.Pool())
}

func (r *PgRunner) InTx(ctx context.Context, fn func(s StoreSet) error) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(store.NewStores(tx))
	})
}
