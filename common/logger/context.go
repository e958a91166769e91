package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Business context (plan_id, item_id, ...) set once flows into
// every log statement downstream.
type LogFields struct {
	PlanID      *int64  // Strategic plan being analyzed or enqueued
	ObjectiveID *int64  // Source objective of a queue item
	ItemID      *int64  // Demand queue item ID
	DeliveryID  *int64  // Delivery queue item ID
	EntityType  *string // Target entity type of a generation request
	Component   string  // Component name (e.g., "pipeline.worker.sweeper")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.PlanID != nil {
		result.PlanID = next.PlanID
	}
	if next.ObjectiveID != nil {
		result.ObjectiveID = next.ObjectiveID
	}
	if next.ItemID != nil {
		result.ItemID = next.ItemID
	}
	if next.DeliveryID != nil {
		result.DeliveryID = next.DeliveryID
	}
	if next.EntityType != nil {
		result.EntityType = next.EntityType
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging potentially long payloads.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
