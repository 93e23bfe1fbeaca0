package llm

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MockResponse is one scripted answer.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error

	// Delay holds the answer back unless ctx ends first.
	Delay time.Duration
}

// MockJSON scripts v, marshaled, as the answer. It panics if v does not
// marshal.
func MockJSON(v any) MockResponse {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return MockResponse{Content: b}
}

// MockProvider replays scripted answers and records every request. A
// request whose schema has answers queued with OnSchema takes from that
// queue; anything else takes from the shared queue. An exhausted queue
// reads as an outage. Scripted content goes through the same schema check
// the vendor clients apply.
type MockProvider struct {
	mu       sync.Mutex
	shared   []MockResponse
	bySchema map[string][]MockResponse

	// Calls is every request seen, in order.
	Calls []Request
}

// NewMockProvider queues responses on the shared queue.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{shared: responses, bySchema: map[string][]MockResponse{}}
}

// OnSchema queues responses for requests using the schema called name.
func (m *MockProvider) OnSchema(name string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySchema[name] = append(m.bySchema[name], responses...)
}

// SchemaCalls counts the requests that used the schema called name.
func (m *MockProvider) SchemaCalls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Schema != nil && c.Schema.Name == name {
			n++
		}
	}
	return n
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	scripted, ok := m.take(req)
	if !ok {
		return nil, &ErrProviderUnavailable{}
	}

	if scripted.Delay > 0 {
		timer := time.NewTimer(scripted.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if scripted.Err != nil {
		return nil, scripted.Err
	}
	return finish(req, &Response{
		Content:    scripted.Content,
		Usage:      scripted.Usage,
		Model:      "mock",
		StopReason: stopEnd,
	})
}

func (m *MockProvider) take(req Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	if req.Schema != nil {
		if q := m.bySchema[req.Schema.Name]; len(q) > 0 {
			m.bySchema[req.Schema.Name] = q[1:]
			return q[0], true
		}
	}
	if len(m.shared) == 0 {
		return MockResponse{}, false
	}
	next := m.shared[0]
	m.shared = m.shared[1:]
	return next, true
}

func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) Name() string { return "mock" }
