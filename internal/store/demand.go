package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/internal/model"
)

type demandStore struct {
	db DBTX
}

const demandColumns = `id, plan_id, objective_id, entity_type, priority, status,
	attempts, max_attempts, specification, entity_ref, quality_score,
	last_error, claimed_at, created_at, updated_at`

func (s *demandStore) Enqueue(ctx context.Context, item *model.QueueItem) (*model.QueueItem, error) {
	if item.ObjectiveID == 0 || item.EntityType == "" {
		return nil, ErrInvalidItem
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO demand_items (id, plan_id, objective_id, entity_type, priority,
			status, attempts, max_attempts, specification)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $7)
		RETURNING `+demandColumns,
		id.New(), item.PlanID, item.ObjectiveID, item.EntityType, item.Priority,
		item.MaxAttempts, item.Specification)

	return scanQueueItem(row)
}

func (s *demandStore) GetByID(ctx context.Context, itemID int64) (*model.QueueItem, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+demandColumns+` FROM demand_items WHERE id = $1`, itemID)
	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// ClaimBatch selects up to maxItems pending items in priority order and
// flips them to in_progress in one statement. SKIP LOCKED plus the status
// guard makes concurrent claims disjoint.
func (s *demandStore) ClaimBatch(ctx context.Context, entityTypes []model.EntityType, maxItems int) ([]model.QueueItem, error) {
	types := make([]string, len(entityTypes))
	for i, et := range entityTypes {
		types[i] = string(et)
	}

	rows, err := s.db.Query(ctx, `
		UPDATE demand_items SET
			status = 'in_progress',
			claimed_at = now(),
			updated_at = now()
		WHERE id IN (
			SELECT id FROM demand_items
			WHERE status = 'pending'
			  AND (cardinality($1::text[]) = 0 OR entity_type = ANY($1::text[]))
			ORDER BY priority DESC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+demandColumns,
		types, maxItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanQueueItems(rows)
	if err != nil {
		return nil, err
	}
	// Row order out of an UPDATE...RETURNING is unspecified; restore claim order.
	sortByPriority(items)
	return items, nil
}

func (s *demandStore) ReportOutcome(ctx context.Context, itemID int64, outcome model.Outcome) (*model.QueueItem, error) {
	var row pgx.Row

	switch outcome.Kind {
	case model.OutcomeAccepted:
		row = s.db.QueryRow(ctx, `
			UPDATE demand_items SET
				status = 'accepted',
				entity_ref = $2,
				quality_score = $3,
				last_error = NULL,
				updated_at = now()
			WHERE id = $1 AND status = 'in_progress'
			RETURNING `+demandColumns,
			itemID, outcome.EntityRef, outcome.QualityScore)

	case model.OutcomeRejected:
		row = s.db.QueryRow(ctx, `
			UPDATE demand_items SET
				status = 'rejected',
				quality_score = $3,
				last_error = $2,
				updated_at = now()
			WHERE id = $1 AND status = 'in_progress'
			RETURNING `+demandColumns,
			itemID, nullableText(outcome.Reason), outcome.QualityScore)

	case model.OutcomeNeedsReview:
		row = s.db.QueryRow(ctx, `
			UPDATE demand_items SET
				status = 'needs_review',
				quality_score = $2,
				updated_at = now()
			WHERE id = $1 AND status = 'in_progress'
			RETURNING `+demandColumns,
			itemID, outcome.QualityScore)

	case model.OutcomeTransientFailure:
		// Retry while attempts remain, otherwise fail. The counter only
		// moves on the retry branch so attempts stays <= max_attempts.
		row = s.db.QueryRow(ctx, `
			UPDATE demand_items SET
				status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
				attempts = CASE WHEN attempts >= max_attempts THEN attempts ELSE attempts + 1 END,
				claimed_at = NULL,
				last_error = $2,
				updated_at = now()
			WHERE id = $1 AND status = 'in_progress'
			RETURNING `+demandColumns,
			itemID, nullableText(outcome.Reason))

	default:
		return nil, errors.New("unknown outcome kind: " + string(outcome.Kind))
	}

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Item was not in_progress: already resolved or never claimed.
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *demandStore) ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE demand_items SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			attempts = CASE WHEN attempts >= max_attempts THEN attempts ELSE attempts + 1 END,
			claimed_at = NULL,
			last_error = 'reset by sweeper: stuck in_progress',
			updated_at = now()
		WHERE status = 'in_progress' AND claimed_at < $1`,
		claimedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *demandStore) CountByStatus(ctx context.Context, planID int64) (map[model.QueueStatus]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, count(*) FROM demand_items
		WHERE plan_id = $1
		GROUP BY status`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.QueueStatus]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.QueueStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanQueueItem(row pgx.Row) (*model.QueueItem, error) {
	var item model.QueueItem
	var status string
	var entityType string
	if err := row.Scan(
		&item.ID, &item.PlanID, &item.ObjectiveID, &entityType, &item.Priority,
		&status, &item.Attempts, &item.MaxAttempts, &item.Specification,
		&item.EntityRef, &item.QualityScore, &item.LastError, &item.ClaimedAt,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Status = model.QueueStatus(status)
	item.EntityType = model.EntityType(entityType)
	return &item, nil
}

func scanQueueItems(rows pgx.Rows) ([]model.QueueItem, error) {
	var items []model.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func sortByPriority(items []model.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
