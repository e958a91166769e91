package model

import (
	"encoding/json"
	"time"
)

type QueueStatus string

const (
	QueueStatusPending     QueueStatus = "pending"
	QueueStatusInProgress  QueueStatus = "in_progress"
	QueueStatusAccepted    QueueStatus = "accepted"
	QueueStatusRejected    QueueStatus = "rejected"
	QueueStatusNeedsReview QueueStatus = "needs_review"
	QueueStatusFailed      QueueStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs from s.
// needs_review is terminal for the pipeline: a reviewer resolves it externally.
func (s QueueStatus) Terminal() bool {
	switch s {
	case QueueStatusAccepted, QueueStatusRejected, QueueStatusNeedsReview, QueueStatusFailed:
		return true
	}
	return false
}

type OutcomeKind string

const (
	OutcomeAccepted         OutcomeKind = "accepted"
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeNeedsReview      OutcomeKind = "needs_review"
	OutcomeTransientFailure OutcomeKind = "transient_failure"
)

// Outcome is the result of one generation attempt reported back to the queue.
type Outcome struct {
	Kind         OutcomeKind
	EntityRef    *int64 // set when Kind == OutcomeAccepted
	QualityScore *int   // set for accepted and needs_review
	Reason       string // set for rejected and transient_failure
}

// QueueItem is one unit of pending generation work derived from a coverage gap.
type QueueItem struct {
	ID            int64           `json:"id"`
	ObjectiveID   int64           `json:"objective_id"`
	PlanID        int64           `json:"plan_id"`
	EntityType    EntityType      `json:"entity_type"`
	Priority      int             `json:"priority"`
	Status        QueueStatus     `json:"status"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	Specification json.RawMessage `json:"specification"`
	EntityRef     *int64          `json:"entity_ref,omitempty"`
	QualityScore  *int            `json:"quality_score,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
	ClaimedAt     *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NextStatus computes the status an in_progress item moves to for the given
// outcome. Transient failures bounce back to pending until attempts run out.
// The attempt counter only moves on the pending branch, so attempts never
// exceeds max_attempts.
func NextStatus(current QueueStatus, kind OutcomeKind, attempts, maxAttempts int) (QueueStatus, bool) {
	if current != QueueStatusInProgress {
		return current, false
	}
	switch kind {
	case OutcomeAccepted:
		return QueueStatusAccepted, true
	case OutcomeRejected:
		return QueueStatusRejected, true
	case OutcomeNeedsReview:
		return QueueStatusNeedsReview, true
	case OutcomeTransientFailure:
		if attempts >= maxAttempts {
			return QueueStatusFailed, true
		}
		return QueueStatusPending, true
	}
	return current, false
}

// CanClaim reports whether an item may move from pending to in_progress.
func CanClaim(current QueueStatus) bool {
	return current == QueueStatusPending
}
