package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civium.app/pipeline/common/llm"
)

const systemPrompt = `You are drafting candidate work items for a municipal innovation portal.
You receive a JSON specification describing a strategic objective and the kind
of entity to produce. Respond with a candidate entity and a confidence score
between 0 and 1 reflecting how well the specification could be satisfied.`

type llmGenerator struct {
	client  llm.Client
	timeout time.Duration
}

// NewLLM builds a Generator backed by the structured-output LLM client.
// Each call is bounded by timeout so a stalled upstream surfaces as a
// transient failure instead of hanging a worker.
func NewLLM(client llm.Client, timeout time.Duration) Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &llmGenerator{client: client, timeout: timeout}
}

func (g *llmGenerator) Generate(ctx context.Context, entityType string, specification json.RawMessage) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Entity type: %s\nSpecification:\n%s", entityType, specification)

	req := llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		SchemaName:   "entity_candidate",
		Schema:       llm.Schema[Result](),
	}

	var result Result
	_, err := g.client.Complete(ctx, req, &result)
	if err != nil && llm.IsRetryable(ctx, err) {
		// One immediate retry; anything beyond that goes through the
		// queue's slower backoff.
		_, err = g.client.Complete(ctx, req, &result)
	}
	if err != nil {
		return nil, fmt.Errorf("generating %s candidate: %w", entityType, err)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}
