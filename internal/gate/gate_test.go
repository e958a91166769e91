package gate_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"civium.app/pipeline/internal/gate"
	"civium.app/pipeline/internal/generator"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/store"
)

// memReporter applies the queue state machine in memory, the way the demand
// store does it in SQL.
type memReporter struct {
	mu    sync.Mutex
	items map[int64]*model.QueueItem
}

func newMemReporter(items ...model.QueueItem) *memReporter {
	r := &memReporter{items: make(map[int64]*model.QueueItem)}
	for i := range items {
		item := items[i]
		r.items[item.ID] = &item
	}
	return r
}

func (r *memReporter) ReportOutcome(_ context.Context, id int64, outcome model.Outcome) (*model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
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

func (r *memReporter) get(id int64) model.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[id]
}

type memEntities struct {
	mu      sync.Mutex
	nextID  int64
	created []int64
	err     error
}

func (m *memEntities) CreateGenerated(_ context.Context, objectiveID int64, _ model.EntityType, _, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	m.created = append(m.created, objectiveID)
	return m.nextID, nil
}

func goodCandidate() generator.Candidate {
	return generator.Candidate{
		Title:   "Expand neighborhood composting network",
		Summary: "Install staffed composting points across the five districts with the lowest coverage.",
		Description: "The program sets up twenty staffed composting collection points, pairs each " +
			"with a weekly education session, and routes collected material to the existing regional " +
			"treatment facility under the current operations contract.",
		Sector: "environment",
	}
}

func inProgressItem(id int64) model.QueueItem {
	return model.QueueItem{
		ID:          id,
		ObjectiveID: 100 + id,
		PlanID:      1,
		EntityType:  model.EntityTypeProject,
		Status:      model.QueueStatusInProgress,
		Attempts:    0,
		MaxAttempts: 3,
	}
}

var _ = Describe("Gate", func() {
	var (
		ctx      context.Context
		gen      *generator.Mock
		entities *memEntities
		reporter *memReporter
	)

	BeforeEach(func() {
		ctx = context.Background()
		gen = generator.NewMock()
		entities = &memEntities{}
	})

	newGate := func() *gate.Gate {
		return gate.New(gen, entities, reporter, gate.DefaultPolicy(), nil)
	}

	Describe("quality policy", func() {
		It("accepts a valid high-confidence candidate and persists an entity", func() {
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.9})
			reporter = newMemReporter(inProgressItem(1))

			summary, results := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{Accepted: 1}))
			Expect(results[0].Status).To(Equal(model.QueueStatusAccepted))
			Expect(results[0].EntityRef).NotTo(BeNil())

			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusAccepted))
			// 0.9 * 70 + 30 = 93
			Expect(*stored.QualityScore).To(Equal(93))
			Expect(entities.created).To(Equal([]int64{101}))
		})

		It("sends a middling candidate to needs_review without creating an entity", func() {
			// 0.5 * 70 + 30 = 65: between the review and accept thresholds.
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.5})
			reporter = newMemReporter(inProgressItem(1))

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{NeedsReview: 1}))
			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusNeedsReview))
			Expect(*stored.QualityScore).To(Equal(65))
			Expect(entities.created).To(BeEmpty())
		})

		It("downgrades a structurally invalid candidate to needs_review even at full confidence", func() {
			broken := goodCandidate()
			broken.Summary = ""
			// 1.0 * 70 + 0 = 70: validation failure costs the accept band.
			gen.Respond(&generator.Result{Candidate: broken, Confidence: 1.0})
			reporter = newMemReporter(inProgressItem(1))

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{NeedsReview: 1}))
			Expect(reporter.get(1).Status).To(Equal(model.QueueStatusNeedsReview))
		})

		It("rejects a low-confidence invalid candidate terminally", func() {
			broken := goodCandidate()
			broken.Title = ""
			gen.Respond(&generator.Result{Candidate: broken, Confidence: 0.2})
			reporter = newMemReporter(inProgressItem(1))

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{Rejected: 1}))
			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusRejected))
			Expect(stored.LastError).NotTo(BeNil())
			Expect(*stored.LastError).To(ContainSubstring("title is empty"))
		})

		It("accepts exactly at the threshold boundary", func() {
			// rounded 0.715 * 70 = 50, + 30 = 80.
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.715})
			reporter = newMemReporter(inProgressItem(1))

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{Accepted: 1}))
			Expect(*reporter.get(1).QualityScore).To(Equal(80))
		})
	})

	Describe("transient failures", func() {
		It("requeues a generator failure with attempts incremented", func() {
			gen.Fail(errors.New("upstream timeout"))
			reporter = newMemReporter(inProgressItem(1))

			summary, results := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{}))
			Expect(results[0].Status).To(Equal(model.QueueStatusPending))

			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusPending))
			Expect(stored.Attempts).To(Equal(1))
			Expect(*stored.LastError).To(ContainSubstring("upstream timeout"))
		})

		It("fails an item permanently once attempts run out", func() {
			gen.Fail(errors.New("upstream down"))
			item := inProgressItem(1)
			item.Attempts = 3
			reporter = newMemReporter(item)

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{Failed: 1}))
			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusFailed))
			Expect(stored.Attempts).To(Equal(3))
		})

		It("ends accepted with attempts=2 after timing out twice", func() {
			gen.Fail(errors.New("timeout")).
				Fail(errors.New("timeout")).
				Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.95})
			reporter = newMemReporter(inProgressItem(1))
			g := newGate()

			for range 3 {
				item := reporter.get(1)
				// re-claim between attempts, as the worker loop does
				if item.Status == model.QueueStatusPending {
					item.Status = model.QueueStatusInProgress
					reporter.items[1].Status = model.QueueStatusInProgress
				}
				g.ProcessBatch(ctx, []model.QueueItem{item})
			}

			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusAccepted))
			Expect(stored.Attempts).To(Equal(2))
			Expect(stored.EntityRef).NotTo(BeNil())
		})

		It("treats an entity store failure as transient", func() {
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.95})
			entities.err = errors.New("connection reset")
			reporter = newMemReporter(inProgressItem(1))

			summary, _ := newGate().ProcessBatch(ctx, []model.QueueItem{reporter.get(1)})

			Expect(summary).To(Equal(gate.Summary{}))
			stored := reporter.get(1)
			Expect(stored.Status).To(Equal(model.QueueStatusPending))
			Expect(stored.Attempts).To(Equal(1))
		})
	})

	Describe("batch behavior", func() {
		It("processes items independently", func() {
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.9}).
				Fail(errors.New("boom")).
				Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.5})
			reporter = newMemReporter(inProgressItem(1), inProgressItem(2), inProgressItem(3))

			summary, results := newGate().ProcessBatch(ctx, []model.QueueItem{
				reporter.get(1), reporter.get(2), reporter.get(3),
			})

			Expect(summary.Accepted + summary.NeedsReview).To(Equal(2))
			Expect(results).To(HaveLen(3))
			Expect(gen.Calls()).To(Equal(3))
		})

		It("leaves an item in_progress when the outcome cannot be recorded", func() {
			gen.Respond(&generator.Result{Candidate: goodCandidate(), Confidence: 0.9})
			item := inProgressItem(1)
			reporter = newMemReporter() // item unknown to reporter

			summary, results := newGate().ProcessBatch(ctx, []model.QueueItem{item})

			Expect(summary).To(Equal(gate.Summary{}))
			Expect(results[0].Status).To(Equal(model.QueueStatusInProgress))
		})

		It("returns an empty summary for an empty batch", func() {
			reporter = newMemReporter()
			summary, results := newGate().ProcessBatch(ctx, nil)
			Expect(summary).To(Equal(gate.Summary{}))
			Expect(results).To(BeEmpty())
		})
	})
})
