// Package generator defines the content generation capability consumed by
// the generation gate. The pipeline treats candidate content as opaque:
// what an entity means to a human is the portal's concern, not ours.
package generator

import (
	"context"
	"encoding/json"
)

// Candidate is a structurally typed generation result. Field semantics are
// owned by the portal; the gate only checks structural validity.
type Candidate struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
}

// Result couples a candidate with the generator's self-reported confidence
// in [0, 1].
type Result struct {
	Candidate  Candidate `json:"candidate"`
	Confidence float64   `json:"confidence"`
}

// Generator produces a candidate entity from a prefilled specification
// payload. Implementations may time out; any error is treated as a
// transient infrastructure failure by the caller.
type Generator interface {
	Generate(ctx context.Context, entityType string, specification json.RawMessage) (*Result, error)
}
