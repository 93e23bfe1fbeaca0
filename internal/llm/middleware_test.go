package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/traverse/internal/store"
)

type recordingEventRepo struct {
	store.EventRepo
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestMockProvider_SchemaQueueBeforeFIFO(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"fifo":true}`)})
	mock.OnSchema("test-verdict", MockJSON(map[string]any{"score": 0.9, "pass": true}))

	resp, err := mock.Generate(context.Background(), Request{Schema: verdictSchema()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":0.9,"pass":true}`, string(resp.Content))

	resp, err = mock.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fifo":true}`, string(resp.Content))
	assert.Equal(t, 1, mock.SchemaCalls("test-verdict"))
}

func TestMockProvider_ValidatesAgainstSchema(t *testing.T) {
	mock := NewMockProvider(MockJSON(map[string]any{"score": 3, "pass": true}))
	_, err := mock.Generate(context.Background(), Request{Schema: verdictSchema()})
	assert.True(t, IsMalformed(err))
}

func TestTimeout_CancelsSlowProvider(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`), Delay: time.Second})
	p := WithTimeout(mock, 10*time.Millisecond)

	start := time.Now()
	_, err := p.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimeout_ZeroIsPassthrough(t *testing.T) {
	mock := NewMockProvider()
	assert.Same(t, mock, WithTimeout(mock, 0))
}

func TestLogging_RecordsEvent(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"ok":true}`),
		Usage:   Usage{InputTokens: 12, OutputTokens: 4},
	})
	repo := &recordingEventRepo{}
	p := WithLogging(mock, repo, nil)

	ctx := WithPurpose(context.Background(), "grade-answer")
	_, err := p.Generate(ctx, NewRequest("You grade answers.", "Answer: 42", nil, 64))
	require.NoError(t, err)

	require.Len(t, repo.events, 1)
	ev := repo.events[0]
	assert.Equal(t, "mock", ev.Provider)
	assert.Equal(t, "mock", ev.Model)
	assert.Equal(t, "grade-answer", ev.Purpose)
	assert.Equal(t, 12, ev.InputTokens)
	assert.Equal(t, 4, ev.OutputTokens)
	assert.True(t, ev.Success)
	assert.Equal(t, `{"ok":true}`, ev.ResponseBody)
	assert.Equal(t, "[system]\nYou grade answers.\n\n[user]\nAnswer: 42\n", ev.RequestBody)
}

func TestLogging_TranscriptIncludesSchema(t *testing.T) {
	body := transcript(NewRequest("", "Build a path", verdictSchema(), 64))
	assert.NotContains(t, body, "[system]")
	assert.Contains(t, body, "[user]\nBuild a path\n")
	assert.Contains(t, body, "[schema: test-verdict]\n{")
}

func TestLogging_RepoFailureDoesNotFailRequest(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, &recordingEventRepo{err: errors.New("disk full")}, nil)

	_, err := p.Generate(context.Background(), Request{})
	assert.NoError(t, err)
}

func TestLogging_RecordsFailure(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	repo := &recordingEventRepo{}
	p := WithLogging(mock, repo, nil)

	_, err := p.Generate(WithPurpose(context.Background(), "build-dag"), Request{})
	require.Error(t, err)
	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Success)
	assert.Equal(t, "build-dag", repo.events[0].Purpose)
	assert.Contains(t, repo.events[0].ErrorMessage, "down")
}

func TestNewProvider_NameSurvivesDecorators(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock", Timeout: time.Second, Retry: fastRetry()}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", ProviderName(p))
	assert.Equal(t, "mock", p.ModelID())
}

func TestNewProvider_Errors(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Provider: "carrier-pigeon"}, nil, nil)
	assert.ErrorContains(t, err, `"carrier-pigeon"`)

	_, err = NewProvider(context.Background(), Config{Provider: "anthropic"}, nil, nil)
	assert.ErrorContains(t, err, "api key not set")
}
