package notify

import (
	"context"
	"sync"

	"civium.app/pipeline/internal/model"
)

// Mock is a scripted Sender for tests. Results are consumed in order; once
// the script runs out the last entry repeats. With no script every send
// succeeds.
type Mock struct {
	mu     sync.Mutex
	script []mockStep
	sent   []model.DeliveryItem
}

type mockStep struct {
	result Result
	err    error
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Return(result Result, err error) *Mock {
	m.script = append(m.script, mockStep{result: result, err: err})
	return m
}

// Sent returns every item passed to Send, in call order.
func (m *Mock) Sent() []model.DeliveryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeliveryItem, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Mock) Send(_ context.Context, item model.DeliveryItem) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.sent)
	m.sent = append(m.sent, item)
	if len(m.script) == 0 {
		return ResultSent, nil
	}
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	step := m.script[idx]
	return step.result, step.err
}
