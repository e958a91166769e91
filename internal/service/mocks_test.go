package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/service"
	"civium.app/pipeline/internal/store"
)

// memStores is an in-memory StoreSet mirroring the SQL stores' semantics
// closely enough for service-level tests.
type memStores struct {
	mu sync.Mutex

	plans       map[int64]*model.StrategicPlan
	counts      []model.EntityCount
	snapshots   []model.CoverageSnapshot
	demand      map[int64]*model.QueueItem
	deliveries  map[int64]*model.DeliveryItem
	evaluations []model.Evaluation

	nextID int64
	now    time.Time

	planErr error
}

func newMemStores() *memStores {
	return &memStores{
		plans:      map[int64]*model.StrategicPlan{},
		demand:     map[int64]*model.QueueItem{},
		deliveries: map[int64]*model.DeliveryItem{},
		now:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStores) id() int64 {
	m.nextID++
	return m.nextID
}

// tick advances the fake clock so created_at ordering is deterministic.
func (m *memStores) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// memRunner satisfies service.TxRunner without a database. InTx offers no
// rollback; tests that need failure atomicity assert on the error instead.
type memRunner struct {
	stores *memStores
}

func (r *memRunner) Stores() service.StoreSet { return r.stores }

func (r *memRunner) InTx(_ context.Context, fn func(s service.StoreSet) error) error {
	return fn(r.stores)
}

// --- StoreSet accessors ---

func (m *memStores) Plans() store.PlanStore             { return (*memPlans)(m) }
func (m *memStores) Snapshots() store.SnapshotStore     { return (*memSnapshots)(m) }
func (m *memStores) Demand() store.DemandStore          { return (*memDemand)(m) }
func (m *memStores) Deliveries() store.DeliveryStore    { return (*memDeliveriesStore)(m) }
func (m *memStores) Entities() store.EntityStore        { return (*memEntities)(m) }
func (m *memStores) Evaluations() store.EvaluationStore { return (*memEvaluations)(m) }

// --- plans ---

type memPlans memStores

func (m *memPlans) GetByID(_ context.Context, id int64) (*model.StrategicPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.planErr != nil {
		return nil, m.planErr
	}
	plan, ok := m.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *plan
	return &copied, nil
}

func (m *memPlans) EntityCounts(_ context.Context, _ int64) ([]model.EntityCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.EntityCount(nil), m.counts...), nil
}

// --- snapshots ---

type memSnapshots memStores

func (m *memSnapshots) Create(_ context.Context, snapshot *model.CoverageSnapshot) (*model.CoverageSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *snapshot
	copied.ID = (*memStores)(m).id()
	copied.CreatedAt = (*memStores)(m).tick()
	m.snapshots = append(m.snapshots, copied)
	return &copied, nil
}

func (m *memSnapshots) LatestByPlan(_ context.Context, planID int64) (*model.CoverageSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].PlanID == planID {
			copied := m.snapshots[i]
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

// --- demand queue ---

type memDemand memStores

func (m *memDemand) Enqueue(_ context.Context, item *model.QueueItem) (*model.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ObjectiveID <= 0 || item.EntityType == "" {
		return nil, store.ErrInvalidItem
	}
	copied := *item
	copied.ID = (*memStores)(m).id()
	copied.Status = model.QueueStatusPending
	copied.CreatedAt = (*memStores)(m).tick()
	m.demand[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *memDemand) GetByID(_ context.Context, id int64) (*model.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.demand[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memDemand) ClaimBatch(_ context.Context, entityTypes []model.EntityType, maxItems int) ([]model.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := func(et model.EntityType) bool {
		if len(entityTypes) == 0 {
			return true
		}
		for _, t := range entityTypes {
			if t == et {
				return true
			}
		}
		return false
	}

	var pending []*model.QueueItem
	for _, item := range m.demand {
		if item.Status == model.QueueStatusPending && wanted(item.EntityType) {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > maxItems {
		pending = pending[:maxItems]
	}

	claimed := make([]model.QueueItem, 0, len(pending))
	now := (*memStores)(m).tick()
	for _, item := range pending {
		item.Status = model.QueueStatusInProgress
		item.ClaimedAt = &now
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

func (m *memDemand) ReportOutcome(_ context.Context, id int64, outcome model.Outcome) (*model.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.demand[id]
	if !ok || item.Status != model.QueueStatusInProgress {
		return nil, store.ErrNotFound
	}
	next, ok := model.NextStatus(item.Status, outcome.Kind, item.Attempts, item.MaxAttempts)
	if !ok {
		return nil, store.ErrInvalidItem
	}
	item.Status = next
	if next == model.QueueStatusPending {
		item.Attempts++
	}
	item.EntityRef = outcome.EntityRef
	item.QualityScore = outcome.QualityScore
	if outcome.Reason != "" {
		reason := outcome.Reason
		item.LastError = &reason
	}
	copied := *item
	return &copied, nil
}

func (m *memDemand) ResetStuck(_ context.Context, claimedBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for _, item := range m.demand {
		if item.Status != model.QueueStatusInProgress || item.ClaimedAt == nil || !item.ClaimedAt.Before(claimedBefore) {
			continue
		}
		if item.Attempts >= item.MaxAttempts {
			item.Status = model.QueueStatusFailed
		} else {
			item.Status = model.QueueStatusPending
			item.Attempts++
		}
		item.ClaimedAt = nil
		swept++
	}
	return swept, nil
}

func (m *memDemand) CountByStatus(_ context.Context, planID int64) (map[model.QueueStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.QueueStatus]int{}
	for _, item := range m.demand {
		if item.PlanID == planID {
			out[item.Status]++
		}
	}
	return out, nil
}

// --- deliveries ---

type memDeliveriesStore memStores

func (m *memDeliveriesStore) Enqueue(_ context.Context, item *model.DeliveryItem) (*model.DeliveryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *item
	copied.ID = (*memStores)(m).id()
	copied.Status = model.DeliveryStatusPending
	copied.CreatedAt = (*memStores)(m).tick()
	m.deliveries[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *memDeliveriesStore) GetByID(_ context.Context, id int64) (*model.DeliveryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.deliveries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memDeliveriesStore) ClaimDue(_ context.Context, now time.Time, maxItems int) ([]model.DeliveryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []model.DeliveryItem
	for _, item := range m.deliveries {
		if len(claimed) >= maxItems {
			break
		}
		if item.Status == model.DeliveryStatusPending && !item.ScheduledFor.After(now) {
			item.Status = model.DeliveryStatusProcessing
			claimed = append(claimed, *item)
		}
	}
	return claimed, nil
}

func (m *memDeliveriesStore) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[id].Status = model.DeliveryStatusSent
	return nil
}

func (m *memDeliveriesStore) MarkSkipped(_ context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[id].Status = model.DeliveryStatusSkipped
	m.deliveries[id].LastError = &reason
	return nil
}

func (m *memDeliveriesStore) MarkFailed(_ context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[id].Status = model.DeliveryStatusFailed
	m.deliveries[id].LastError = &reason
	return nil
}

func (m *memDeliveriesStore) RescheduleTransient(_ context.Context, id int64, scheduledFor time.Time, reason string) (*model.DeliveryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.deliveries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if item.Attempts >= item.MaxAttempts {
		item.Status = model.DeliveryStatusFailed
	} else {
		item.Status = model.DeliveryStatusPending
		item.Attempts++
		item.ScheduledFor = scheduledFor
	}
	item.LastError = &reason
	copied := *item
	return &copied, nil
}

func (m *memDeliveriesStore) ResetStuck(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// --- entities ---

type memEntities memStores

func (m *memEntities) CreateGenerated(_ context.Context, objectiveID int64, entityType model.EntityType, _, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, model.EntityCount{ObjectiveID: objectiveID, EntityType: entityType, Count: 1})
	return (*memStores)(m).id(), nil
}

// --- evaluations ---

type memEvaluations memStores

func (m *memEvaluations) Create(_ context.Context, eval *model.Evaluation) (*model.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *eval
	copied.ID = (*memStores)(m).id()
	copied.CreatedAt = (*memStores)(m).tick()
	m.evaluations = append(m.evaluations, copied)
	out := copied
	return &out, nil
}

func (m *memEvaluations) ListByTarget(_ context.Context, targetID int64) ([]model.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Evaluation
	for _, ev := range m.evaluations {
		if ev.TargetID == targetID {
			out = append(out, ev)
		}
	}
	return out, nil
}
