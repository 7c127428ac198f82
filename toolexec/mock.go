package toolexec

import (
	"context"
	"sync"
	"time"
)

// MockExecutor is a scripted stand-in for Executor used by tests and the
// eval runner. Each call to Execute returns the response scripted for that
// tool name under Responses, repeating the last one once exhausted, and is
// recorded in Calls for later assertion. Its Execute method has the same
// signature as Executor's, so both satisfy llm.ToolExecutor.
type MockExecutor struct {
	// Responses scripts the sequence of results per tool name.
	Responses map[string][]Result

	mu        sync.Mutex
	callIndex map[string]int
	calls     []MockCall
}

// MockCall records one Execute invocation.
type MockCall struct {
	Name      string
	Args      map[string]any
	Timestamp time.Time
}

// NewMockExecutor returns a MockExecutor scripted with responses.
func NewMockExecutor(responses map[string][]Result) *MockExecutor {
	return &MockExecutor{
		Responses: responses,
		callIndex: make(map[string]int),
	}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args map[string]any) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Name: name, Args: args, Timestamp: time.Now()})

	responses, ok := m.Responses[name]
	if !ok || len(responses) == 0 {
		return Result{Success: false, Message: "Unknown tool: " + name}
	}

	idx := m.callIndex[name]
	if idx >= len(responses) {
		idx = len(responses) - 1
	} else {
		m.callIndex[name]++
	}
	return responses[idx]
}

// Calls returns a copy of every recorded invocation, oldest first.
func (m *MockExecutor) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsNamed filters Calls to a single tool name.
func (m *MockExecutor) CallsNamed(name string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears call history and response cursors, for reuse across test
// cases.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callIndex = make(map[string]int)
}
