package generator

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is a scripted Generator for tests. Responses are consumed in order;
// once the script runs out the last entry repeats.
type Mock struct {
	mu        sync.Mutex
	script    []mockStep
	callCount int
}

type mockStep struct {
	result *Result
	err    error
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Respond(result *Result) *Mock {
	m.script = append(m.script, mockStep{result: result})
	return m
}

func (m *Mock) Fail(err error) *Mock {
	m.script = append(m.script, mockStep{err: err})
	return m
}

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *Mock) Generate(_ context.Context, _ string, _ json.RawMessage) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.callCount
	m.callCount++
	if len(m.script) == 0 {
		return &Result{Candidate: Candidate{Title: "stub", Summary: "stub", Description: "stub"}, Confidence: 1}, nil
	}
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	step := m.script[idx]
	return step.result, step.err
}
