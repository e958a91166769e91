package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/internal/model"
)

type deliveryStore struct {
	db DBTX
}

const deliveryColumns = `id, kind, payload, status, attempts, max_attempts,
	scheduled_for, last_error, claimed_at, created_at, updated_at`

func (s *deliveryStore) Enqueue(ctx context.Context, item *model.DeliveryItem) (*model.DeliveryItem, error) {
	if item.Kind == "" || len(item.Payload) == 0 {
		return nil, ErrInvalidItem
	}

	scheduledFor := item.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO delivery_items (id, kind, payload, status, attempts, max_attempts, scheduled_for)
		VALUES ($1, $2, $3, 'pending', 0, $4, $5)
		RETURNING `+deliveryColumns,
		id.New(), item.Kind, item.Payload, item.MaxAttempts, scheduledFor)

	return scanDeliveryItem(row)
}

func (s *deliveryStore) GetByID(ctx context.Context, itemID int64) (*model.DeliveryItem, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_items WHERE id = $1`, itemID)
	item, err := scanDeliveryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// ClaimDue claims pending items whose scheduled_for has passed. Same
// single-statement claim as the demand queue.
func (s *deliveryStore) ClaimDue(ctx context.Context, now time.Time, maxItems int) ([]model.DeliveryItem, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE delivery_items SET
			status = 'processing',
			claimed_at = now(),
			updated_at = now()
		WHERE id IN (
			SELECT id FROM delivery_items
			WHERE status = 'pending' AND scheduled_for <= $1
			ORDER BY scheduled_for ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryColumns,
		now, maxItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeliveryItems(rows)
}

func (s *deliveryStore) MarkSent(ctx context.Context, itemID int64) error {
	return s.terminal(ctx, itemID, "sent", nil)
}

func (s *deliveryStore) MarkSkipped(ctx context.Context, itemID int64, reason string) error {
	return s.terminal(ctx, itemID, "skipped", nullableText(reason))
}

func (s *deliveryStore) MarkFailed(ctx context.Context, itemID int64, reason string) error {
	return s.terminal(ctx, itemID, "failed", nullableText(reason))
}

func (s *deliveryStore) terminal(ctx context.Context, itemID int64, status string, reason *string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_items SET
			status = $2,
			last_error = $3,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		itemID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *deliveryStore) RescheduleTransient(ctx context.Context, itemID int64, scheduledFor time.Time, reason string) (*model.DeliveryItem, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE delivery_items SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			attempts = CASE WHEN attempts >= max_attempts THEN attempts ELSE attempts + 1 END,
			scheduled_for = CASE WHEN attempts >= max_attempts THEN scheduled_for ELSE $2 END,
			claimed_at = NULL,
			last_error = $3,
			updated_at = now()
		WHERE id = $1 AND status = 'processing'
		RETURNING `+deliveryColumns,
		itemID, scheduledFor, nullableText(reason))

	item, err := scanDeliveryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *deliveryStore) ResetStuck(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_items SET
			status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			attempts = CASE WHEN attempts >= max_attempts THEN attempts ELSE attempts + 1 END,
			claimed_at = NULL,
			last_error = 'reset by sweeper: stuck processing',
			updated_at = now()
		WHERE status = 'processing' AND claimed_at < $1`,
		claimedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanDeliveryItem(row pgx.Row) (*model.DeliveryItem, error) {
	var item model.DeliveryItem
	var status string
	if err := row.Scan(
		&item.ID, &item.Kind, &item.Payload, &status, &item.Attempts,
		&item.MaxAttempts, &item.ScheduledFor, &item.LastError, &item.ClaimedAt,
		&item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Status = model.DeliveryStatus(status)
	return &item, nil
}

func scanDeliveryItems(rows pgx.Rows) ([]model.DeliveryItem, error) {
	var items []model.DeliveryItem
	for rows.Next() {
		item, err := scanDeliveryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
