package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/traverse/internal/llm"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
)

type eventLog struct {
	observe.Observer
	events []string
	attrs  [][]observe.Attr
}

func newEventLog() *eventLog { return &eventLog{Observer: observe.Nop()} }

func (e *eventLog) Event(_ context.Context, name string, attrs ...observe.Attr) {
	e.events = append(e.events, name)
	e.attrs = append(e.attrs, attrs)
}

func testGateway(mock *llm.MockProvider, obs observe.Observer) *LLM {
	return NewLLM(mock, Config{Timeout: time.Second, MaxTokens: 512}, obs)
}

func TestDeriveCompetencies(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"normalized_goal": "Become a backend engineer",
		"competencies": []map[string]any{
			{"id": "c1", "name": "HTTP", "description": "Requests and responses", "type": "technical", "example_tasks": []string{"Build an API"}},
			{"id": "c2", "name": " ", "description": "blank", "type": "meta", "example_tasks": []string{}},
		},
	}))
	g := testGateway(mock, nil)

	res, err := g.DeriveCompetencies(context.Background(), CompetencyInput{Goal: "backend", Level: "beginner"})
	require.NoError(t, err)
	assert.Equal(t, "Become a backend engineer", res.NormalizedGoal)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "HTTP", res.Items[0].Name)

	req := mock.Calls[0]
	require.NotNil(t, req.Schema)
	assert.Equal(t, "competencies", req.Schema.Name)
	assert.Contains(t, req.Prompt, "Level: beginner")
	assert.Contains(t, req.Prompt, "Domain hint: N/A")
}

func TestDeriveCompetencies_MalformedFallsBack(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"competencies": "lots"}`)})
	obs := newEventLog()
	g := testGateway(mock, obs)

	res, err := g.DeriveCompetencies(context.Background(), CompetencyInput{Goal: "juggling"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.True(t, IsFallback(err))
	assert.Equal(t, "juggling", res.NormalizedGoal)
	assert.Empty(t, res.Items)

	require.Equal(t, []string{observe.EventGatewayDegraded}, obs.events)
	assert.Equal(t, "malformed", observe.Lookup(obs.attrs[0], "reason"))
	assert.Equal(t, "derive-competencies", observe.Lookup(obs.attrs[0], "op"))
}

func TestDeriveCompetencies_UnavailableFallsBack(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})
	g := testGateway(mock, nil)

	res, err := g.DeriveCompetencies(context.Background(), CompetencyInput{Goal: "juggling"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, res.Items)
	assert.Equal(t, "unavailable", Reason(err))
}

func dagNode(id, title, typ string) map[string]any {
	return map[string]any{
		"id": id, "title": title, "description": title + " basics",
		"node_type": typ, "estimated_minutes": 30, "tags": []string{"core"},
	}
}

func TestBuildDag_NormalizesEdges(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"summary": "From zero to APIs.",
		"nodes": []map[string]any{
			dagNode("n1", "HTTP", "concept"),
			dagNode("n2", "Routing", "skill"),
			dagNode("n3", "Capstone", "wizardry"),
		},
		"edges": []map[string]any{
			{"from": "n1", "to": "n2"},
			{"from": "n1", "to": "n2"},
			{"from": "n2", "to": "n3"},
			{"from": "n2", "to": "n9"},
		},
	}))
	g := testGateway(mock, nil)

	dag, err := g.BuildDag(context.Background(), DagInput{Goal: "backend"})
	require.NoError(t, err)
	assert.Equal(t, "From zero to APIs.", dag.Summary)
	require.Len(t, dag.Nodes, 3)
	assert.Equal(t, pathgraph.TypeConcept, dag.Nodes[2].Content.Type)
	assert.Equal(t, []DagEdge{{From: "n1", To: "n2"}, {From: "n2", To: "n3"}}, dag.Edges)
}

func TestBuildDag_CycleIsMalformed(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"summary": "Loops.",
		"nodes":   []map[string]any{dagNode("a", "A", "concept"), dagNode("b", "B", "concept")},
		"edges":   []map[string]any{{"from": "a", "to": "b"}, {"from": "b", "to": "a"}},
	}))
	obs := newEventLog()
	g := testGateway(mock, obs)

	dag, err := g.BuildDag(context.Background(), DagInput{Goal: "loops"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.ErrorIs(t, err, pathgraph.ErrCycle)
	assert.Empty(t, dag.Nodes)
	assert.Empty(t, dag.Edges)
	assert.Equal(t, []string{observe.EventGatewayDegraded}, obs.events)
}

func TestBuildDag_DuplicateIDIsMalformed(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"summary": "Dupes.",
		"nodes":   []map[string]any{dagNode("a", "A", "concept"), dagNode("a", "A again", "concept")},
		"edges":   []map[string]any{},
	}))
	g := testGateway(mock, nil)

	dag, err := g.BuildDag(context.Background(), DagInput{Goal: "dupes"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Empty(t, dag.Nodes)
}

func qualityDag() *Dag {
	return &Dag{
		Nodes: []DagNode{
			{LocalID: "n1", Content: pathgraph.Content{Title: "Arrays", Type: pathgraph.TypeConcept, EstimatedMinutes: 20}},
			{LocalID: "n2", Content: pathgraph.Content{Title: "Binary search", Type: pathgraph.TypeSkill, EstimatedMinutes: 30}},
		},
		Edges: []DagEdge{{From: "n1", To: "n2"}},
	}
}

func TestEvaluateDag(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"dimension_scores": []map[string]any{
			{"name": "Structure", "score": 5, "comment": "sound"},
			{"name": "Progression", "score": 4, "comment": "gradual"},
			{"name": "Coverage", "score": 3, "comment": "thin on practice"},
		},
		"overall_score": 0.8,
		"summary":       " Solid path. ",
	}))
	g := testGateway(mock, nil)

	q, err := g.EvaluateDag(context.Background(), DagQualityInput{Goal: "Algorithms", Dag: qualityDag()})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, q.Score, 1e-9)
	assert.Equal(t, "Solid path.", q.Summary)
	require.Len(t, q.Dimensions, 3)
	assert.Equal(t, "Coverage", q.Dimensions[2].Name)

	req := mock.Calls[0]
	assert.Zero(t, req.Temperature)
	assert.Equal(t, DagQualitySchema, req.Schema)
	assert.Contains(t, req.Prompt, "- [n2] Binary search (skill, 30 min)")
	assert.Contains(t, req.Prompt, "- n1 -> n2")
}

func TestEvaluateDag_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		resp   llm.MockResponse
		reason string
	}{
		{"malformed", llm.MockResponse{Content: json.RawMessage(`[]`)}, "malformed"},
		{"score out of range", llm.MockJSON(map[string]any{
			"dimension_scores": []map[string]any{}, "overall_score": 4, "summary": "x",
		}), "malformed"},
		{"dimension out of range", llm.MockJSON(map[string]any{
			"dimension_scores": []map[string]any{{"name": "Structure", "score": 9, "comment": ""}},
			"overall_score":    0.4, "summary": "x",
		}), "malformed"},
		{"unavailable", llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}}, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := newEventLog()
			g := testGateway(llm.NewMockProvider(tt.resp), events)

			q, err := g.EvaluateDag(context.Background(), DagQualityInput{Goal: "Algorithms", Dag: qualityDag()})
			require.Error(t, err)
			assert.Equal(t, tt.reason, Reason(err))
			assert.Equal(t, &DagQuality{Score: FallbackDagScore}, q)
			assert.Equal(t, []string{observe.EventGatewayDegraded}, events.events)
		})
	}
}

func TestGenerateChallenge(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"challenge_type":          "scenario_decision",
		"prompt":                  "Design a retry policy.",
		"expected_answer_outline": []string{"backoff", "idempotency"},
		"rubric": map[string]any{
			"dimensions":    []map[string]any{{"name": "Correctness", "description": "Sound policy"}},
			"scoring_scale": "0-5",
		},
		"difficulty": "medium",
	}))
	g := testGateway(mock, nil)

	ch, err := g.GenerateChallenge(context.Background(), ChallengeInput{Node: pathgraph.Content{Title: "Retries"}})
	require.NoError(t, err)
	assert.Equal(t, "Design a retry policy.", ch.Prompt)
	assert.Equal(t, []string{"backoff", "idempotency"}, ch.ExpectedOutline)
	assert.JSONEq(t, `{"dimensions":[{"name":"Correctness","description":"Sound policy"}],"scoring_scale":"0-5"}`, string(ch.Rubric))
}

func TestGenerateChallenge_Fallback(t *testing.T) {
	g := testGateway(llm.NewMockProvider(), nil)

	ch, err := g.GenerateChallenge(context.Background(), ChallengeInput{Node: pathgraph.Content{Title: "Retries"}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, ch.Prompt, `"Retries"`)
	assert.True(t, json.Valid(ch.Rubric))
}

func gradeJSON(score float64, pass bool, topic string) llm.MockResponse {
	return llm.MockJSON(map[string]any{
		"dimension_scores":  []map[string]any{{"name": "Correctness", "score": 2, "comment": "shaky"}},
		"overall_score":     score,
		"pass":              pass,
		"feedback_summary":  "Needs work.",
		"suggestions":       []string{"Revisit the definition"},
		"remediation_topic": topic,
	})
}

func TestGradeAnswer(t *testing.T) {
	mock := llm.NewMockProvider(gradeJSON(0.35, false, " Big-O notation "))
	g := testGateway(mock, nil)

	grade, err := g.GradeAnswer(context.Background(), GradeInput{
		Prompt:        "Explain binary search.",
		Answer:        "It is fast.",
		PriorAttempts: 2,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.35, grade.Score, 1e-9)
	assert.False(t, grade.Passed)
	assert.Equal(t, "Big-O notation", grade.RemediationTopic)
	assert.Equal(t, []string{"Revisit the definition"}, grade.Hints)
	require.Len(t, grade.Dimensions, 1)

	req := mock.Calls[0]
	assert.Zero(t, req.Temperature)
	assert.Contains(t, req.Prompt, "Previous attempts on this challenge: 2")
	assert.Contains(t, req.Prompt, "Rubric:\n{}")
}

func TestGradeAnswer_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		resp   llm.MockResponse
		reason string
	}{
		{"malformed", llm.MockResponse{Content: json.RawMessage(`not json`)}, "malformed"},
		{"missing fields", llm.MockResponse{Content: json.RawMessage(`{"pass": true}`)}, "malformed"},
		{"unavailable", llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("slow down")}}, "unavailable"},
		{"timeout", llm.MockResponse{Content: json.RawMessage(`{}`), Delay: time.Second}, "timeout"},
		{"score above one", gradeJSON(40, false, ""), "malformed"},
		{"score on rubric scale", gradeJSON(3, false, ""), "malformed"},
		{"huge score", gradeJSON(1e9, true, ""), "malformed"},
		{"negative score", gradeJSON(-0.2, false, ""), "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewLLM(llm.NewMockProvider(tt.resp), Config{Timeout: 20 * time.Millisecond}, nil)

			grade, err := g.GradeAnswer(context.Background(), GradeInput{Prompt: "p", Answer: "a"})
			require.Error(t, err)
			assert.True(t, IsFallback(err))
			assert.Equal(t, tt.reason, Reason(err))
			assert.Equal(t, FallbackGrade(), grade)
		})
	}
}

func TestSynthesizeRemedialNode(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{
		"title": "Logarithms refresher", "description": "What log n means",
		"node_type": "", "estimated_minutes": 15, "tags": []string{"remedial"},
	}))
	g := testGateway(mock, nil)

	c, err := g.SynthesizeRemedialNode(context.Background(), RemedialInput{
		Goal: "Algorithms", NodeTitle: "Binary search", Suggestion: "logarithms",
	})
	require.NoError(t, err)
	assert.Equal(t, "Logarithms refresher", c.Title)
	assert.Equal(t, pathgraph.TypeConcept, c.Type)
	assert.Equal(t, 15, c.EstimatedMinutes)
	assert.Contains(t, mock.Calls[0].Prompt, `"logarithms"`)
}

func TestSynthesizeRemedialNode_NoFallback(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"unavailable", llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}},
		{"empty title", llm.MockJSON(map[string]any{
			"title": "  ", "description": "d", "node_type": "concept", "estimated_minutes": 10, "tags": []string{},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGateway(llm.NewMockProvider(tt.resp), nil)
			c, err := g.SynthesizeRemedialNode(context.Background(), RemedialInput{NodeTitle: "n"})
			assert.Nil(t, c)
			assert.True(t, IsFallback(err))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "timeout", Reason(context.DeadlineExceeded))
	assert.Equal(t, "malformed", Reason(ErrMalformedOutput))
	assert.Equal(t, "unavailable", Reason(ErrUnavailable))
}
