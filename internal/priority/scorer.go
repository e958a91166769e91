// Package priority assigns deterministic scores to generation requests at
// enqueue time. Scores are never recomputed afterwards.
package priority

import "civium.app/pipeline/internal/model"

const (
	baseHigh   = 100
	baseMedium = 50
	baseLow    = 25
)

// Score computes the priority for one gap item in an enqueue batch.
// batchTotal is the number of items being enqueued together and position is
// this item's zero-based index within that batch; the (batchTotal - position)
// bonus keeps a batch's relative order intact once it merges into a queue
// that already holds other pending work.
func Score(tier model.PriorityTier, batchTotal, position int) int {
	base := baseLow
	switch tier {
	case model.PriorityTierHigh:
		base = baseHigh
	case model.PriorityTierMedium:
		base = baseMedium
	case model.PriorityTierLow:
		base = baseLow
	}

	bonus := batchTotal - position
	if bonus < 0 {
		bonus = 0
	}
	return base + bonus
}
