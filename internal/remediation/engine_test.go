package remediation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/store"
)

// fakeGateway only implements remedial synthesis.
type fakeGateway struct {
	gateway.Gateway
	calls int
	synth func(ctx context.Context, in gateway.RemedialInput) (*pathgraph.Content, error)
}

func (f *fakeGateway) SynthesizeRemedialNode(ctx context.Context, in gateway.RemedialInput) (*pathgraph.Content, error) {
	f.calls++
	if f.synth != nil {
		return f.synth(ctx, in)
	}
	return &pathgraph.Content{
		Title:       "Review: " + in.Suggestion,
		Description: "Refresher before " + in.NodeTitle,
		Type:        pathgraph.TypeConcept,
	}, nil
}

type recordingObserver struct {
	observe.Observer
	events []string
}

func (r *recordingObserver) Event(_ context.Context, name string, _ ...observe.Attr) {
	r.events = append(r.events, name)
}

type fixture struct {
	store *store.Store
	gw    *fakeGateway
	obs   *recordingObserver
	ids   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(store.MemoryDSN(uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.Repos().Paths.Create(ctx, &store.Path{
		ID: "p1", UserID: "u1", Goal: "Learn SQL", CreatedAt: now, UpdatedAt: now,
	}))

	g := pathgraph.New("p1")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(pathgraph.Node{ID: id, Content: pathgraph.Content{Title: "Node " + id}}))
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, s.Repos().Graphs.Apply(ctx, pathgraph.New("p1"), g))

	tr := progress.NewTracker(s.Repos().Progress, progress.DefaultCeiling)
	for _, id := range []string{"a", "b", "c"} {
		_, err := tr.Initialize(ctx, "u1", "p1", id)
		require.NoError(t, err)
	}
	return &fixture{store: s, gw: &fakeGateway{}, obs: &recordingObserver{Observer: observe.Nop()}}
}

func (f *fixture) engine(cfg Config) *Engine {
	return NewEngine(f.store, f.gw, lock.NewLocal(time.Second), progress.DefaultCeiling, cfg,
		WithObserver(f.obs),
		WithIDGenerator(func() string {
			f.ids++
			return fmt.Sprintf("r%d", f.ids)
		}),
	)
}

// block drives node to blocked with failing attempts.
func (f *fixture) block(t *testing.T, nodeID string) progress.Record {
	t.Helper()
	ctx := context.Background()
	tr := progress.NewTracker(f.store.Repos().Progress, progress.DefaultCeiling)
	_, err := tr.Begin(ctx, "u1", nodeID)
	require.NoError(t, err)
	var out progress.Outcome
	for range progress.DefaultCeiling {
		out, err = tr.RecordAttempt(ctx, "u1", nodeID, progress.Attempt{Score: 0.2, Suggestion: "joins"})
		require.NoError(t, err)
	}
	require.Equal(t, progress.StatusBlocked, out.Record.Status)
	return out.Record
}

func (f *fixture) request(nodeID string, observed int) Request {
	return Request{
		UserID: "u1", PathID: "p1", NodeID: nodeID,
		Topic: "joins", Kind: store.RemediationAuto, ObservedAttempts: observed,
	}
}

func (f *fixture) record(t *testing.T, nodeID string) progress.Record {
	t.Helper()
	rec, err := progress.NewTracker(f.store.Repos().Progress, progress.DefaultCeiling).Get(context.Background(), "u1", nodeID)
	require.NoError(t, err)
	return rec
}

func TestRemediate_SplicesNodeAndResets(t *testing.T) {
	f := newFixture(t)
	rec := f.block(t, "b")

	out, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("b", rec.Attempts))
	require.NoError(t, err)
	require.True(t, out.Applied)
	require.NotNil(t, out.Node)
	assert.Equal(t, "r1", out.Node.ID)
	assert.Equal(t, "b", out.Node.RemediatesID)
	assert.Equal(t, "Review: joins", out.Node.Title)

	g, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	assert.True(t, g.HasEdge("a", "r1"))
	assert.True(t, g.HasEdge("r1", "b"))
	assert.True(t, g.HasEdge("b", "c"))
	assert.False(t, g.HasEdge("a", "b"))
	assert.Equal(t, []string{"r1"}, g.Predecessors("b"))
	require.NoError(t, g.CheckAcyclic())

	b := f.record(t, "b")
	assert.Equal(t, progress.StatusNotStarted, b.Status)
	assert.Zero(t, b.Attempts)
	assert.Nil(t, b.LastScore)
	assert.Equal(t, progress.StatusNotStarted, out.Record.Status)

	r := f.record(t, "r1")
	assert.Equal(t, progress.StatusNotStarted, r.Status)
	assert.Equal(t, "p1", r.PathID)

	rems, err := f.store.Repos().Remediations.ListForPath(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, rems, 1)
	assert.Equal(t, "r1", rems[0].RemedialNodeID)
	assert.Equal(t, store.RemediationAuto, rems[0].Kind)

	assert.Contains(t, f.obs.events, observe.EventRemediationApplied)
}

func TestRemediate_RootNodeHasOnlyRemedialPrerequisite(t *testing.T) {
	f := newFixture(t)
	rec := f.block(t, "a")

	out, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("a", rec.Attempts))
	require.NoError(t, err)
	require.True(t, out.Applied)

	g, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, g.Predecessors("a"))
	assert.Empty(t, g.Predecessors("r1"))
}

func TestRemediate_SynthesisFailureLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	rec := f.block(t, "b")
	f.gw.synth = func(context.Context, gateway.RemedialInput) (*pathgraph.Content, error) {
		return nil, gateway.ErrUnavailable
	}
	before, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)

	out, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("b", rec.Attempts))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonSynthesisFailed, out.Abandoned)
	assert.Nil(t, out.Node)

	after, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, before.Nodes(), after.Nodes())
	assert.Equal(t, before.Edges(), after.Edges())
	assert.Equal(t, progress.StatusBlocked, f.record(t, "b").Status)

	rems, err := f.store.Repos().Remediations.ListForPath(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, rems)
	assert.Contains(t, f.obs.events, observe.EventRemediationAbandon)
}

func TestRemediate_NotBlocked(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("b", -1))
	require.ErrorIs(t, err, ErrNotBlocked)
	assert.Zero(t, f.gw.calls)
}

func TestRemediate_UnknownNode(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("zz", -1))
	var unknown *pathgraph.UnknownNodeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "zz", unknown.ID)
}

func TestRemediate_StaleRecordIsAbandoned(t *testing.T) {
	f := newFixture(t)
	rec := f.block(t, "b")

	// Another request resolves the block while content is being generated.
	f.gw.synth = func(ctx context.Context, in gateway.RemedialInput) (*pathgraph.Content, error) {
		_, err := progress.NewTracker(f.store.Repos().Progress, progress.DefaultCeiling).Reset(ctx, "u1", "b")
		require.NoError(t, err)
		return &pathgraph.Content{Title: "late"}, nil
	}

	out, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("b", rec.Attempts))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonStale, out.Abandoned)

	g, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestRemediate_ObservedAttemptsMismatch(t *testing.T) {
	f := newFixture(t)
	rec := f.block(t, "b")

	out, err := f.engine(DefaultConfig()).Remediate(context.Background(), f.request("b", rec.Attempts+1))
	require.NoError(t, err)
	assert.Equal(t, ReasonStale, out.Abandoned)
	assert.Equal(t, progress.StatusBlocked, f.record(t, "b").Status)
}

func TestRemediate_CapPerNode(t *testing.T) {
	f := newFixture(t)
	e := f.engine(Config{MaxPerNode: 1})

	rec := f.block(t, "b")
	out, err := e.Remediate(context.Background(), f.request("b", rec.Attempts))
	require.NoError(t, err)
	require.True(t, out.Applied)

	rec = f.block(t, "b")
	out, err = e.Remediate(context.Background(), f.request("b", rec.Attempts))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonCapReached, out.Abandoned)
	assert.Equal(t, 1, f.gw.calls)
	assert.Equal(t, progress.StatusBlocked, f.record(t, "b").Status)
}

func TestRemediate_StackedRemediationsChain(t *testing.T) {
	f := newFixture(t)
	e := f.engine(Config{})

	for range 2 {
		rec := f.block(t, "b")
		out, err := e.Remediate(context.Background(), f.request("b", rec.Attempts))
		require.NoError(t, err)
		require.True(t, out.Applied)
	}

	g, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, g.HasEdge("a", "r1"))
	assert.True(t, g.HasEdge("r1", "r2"))
	assert.True(t, g.HasEdge("r2", "b"))
	assert.Equal(t, []string{"r2"}, g.Predecessors("b"))
}

// countFailingGraphs fails CountRemedial once calls reaches failAt.
type countFailingGraphs struct {
	store.GraphRepo
	calls  *int
	failAt int
}

var errCountFailed = errors.New("disk I/O error")

func (g countFailingGraphs) CountRemedial(ctx context.Context, nodeID string) (int, error) {
	*g.calls++
	if *g.calls >= g.failAt {
		return 0, errCountFailed
	}
	return g.GraphRepo.CountRemedial(ctx, nodeID)
}

// countFailingStore wraps the graph repo of every Repos it hands out.
type countFailingStore struct {
	*store.Store
	calls  int
	failAt int
}

func (s *countFailingStore) wrap(r *store.Repos) *store.Repos {
	out := *r
	out.Graphs = countFailingGraphs{GraphRepo: r.Graphs, calls: &s.calls, failAt: s.failAt}
	return &out
}

func (s *countFailingStore) Repos() *store.Repos { return s.wrap(s.Store.Repos()) }

func (s *countFailingStore) WithTx(ctx context.Context, fn func(*store.Repos) error) error {
	return s.Store.WithTx(ctx, func(r *store.Repos) error { return fn(s.wrap(r)) })
}

func TestRemediate_CapCountErrorAborts(t *testing.T) {
	tests := []struct {
		name      string
		failAt    int
		wantSynth int
	}{
		{"before synthesis", 1, 0},
		{"inside the transaction", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.block(t, "b")
			st := &countFailingStore{Store: f.store, failAt: tt.failAt}
			e := NewEngine(st, f.gw, lock.NewLocal(time.Second), progress.DefaultCeiling, Config{MaxPerNode: 1},
				WithObserver(f.obs))

			out, err := e.Remediate(context.Background(), f.request("b", rec.Attempts))
			require.ErrorIs(t, err, errCountFailed)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantSynth, f.gw.calls)

			g, err := f.store.Repos().Graphs.Load(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, 3, g.Len())
			assert.Equal(t, []string{"a"}, g.Predecessors("b"))
			assert.Equal(t, progress.StatusBlocked, f.record(t, "b").Status)
			assert.NotContains(t, f.obs.events, observe.EventRemediationApplied)
		})
	}
}
