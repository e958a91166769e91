// Package notify delivers outbound pipeline notifications to the portal's
// event stream.
package notify

import (
	"context"

	"civium.app/pipeline/internal/model"
)

// Result classifies one delivery attempt so the delivery processor can pick
// the right queue transition.
type Result int

const (
	// ResultSent means the notification reached the stream.
	ResultSent Result = iota
	// ResultSkipped means the notification is valid but intentionally not
	// delivered (e.g. the kind is muted). Skips are terminal and free.
	ResultSkipped
	// ResultPermanent means this notification can never be delivered
	// (malformed payload, unknown kind). Retrying would not help.
	ResultPermanent
	// ResultTransient means delivery failed for an infrastructure reason
	// and should be retried with backoff.
	ResultTransient
)

func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultSkipped:
		return "skipped"
	case ResultPermanent:
		return "permanent"
	case ResultTransient:
		return "transient"
	}
	return "unknown"
}

// Sender pushes one delivery item downstream. Implementations must be safe
// for concurrent use.
type Sender interface {
	Send(ctx context.Context, item model.DeliveryItem) (Result, error)
}

// Known notification kinds. Anything else is treated as permanently
// undeliverable.
const (
	KindItemAccepted    = "item.accepted"
	KindItemRejected    = "item.rejected"
	KindItemNeedsReview = "item.needs_review"
	KindItemFailed      = "item.failed"
	KindBatchProcessed  = "batch.processed"
)

func knownKind(kind string) bool {
	switch kind {
	case KindItemAccepted, KindItemRejected, KindItemNeedsReview, KindItemFailed, KindBatchProcessed:
		return true
	}
	return false
}
