package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryDSN(uuid.NewString()))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPath(t *testing.T, s *Store, id string) *Path {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	p := &Path{ID: id, UserID: "u1", Goal: "Learn Go", Summary: "basics", CreatedAt: now, UpdatedAt: now}
	if err := s.Repos().Paths.Create(context.Background(), p); err != nil {
		t.Fatalf("create path: %v", err)
	}
	return p
}

func seedGraph(t *testing.T, s *Store, pathID string, ids ...string) *pathgraph.Graph {
	t.Helper()
	g := pathgraph.New(pathID)
	for _, id := range ids {
		if err := g.AddNode(pathgraph.Node{ID: id, Content: pathgraph.Content{Title: "T " + id, Tags: []string{"x"}}}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < len(ids); i++ {
		if err := g.AddEdge(ids[i-1], ids[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Repos().Graphs.Apply(context.Background(), pathgraph.New(pathID), g); err != nil {
		t.Fatalf("apply graph: %v", err)
	}
	return g
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.Driver() == nil {
		t.Fatal("expected non-nil driver")
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	s := openTestStore(t)
	var got int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&got); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if got != 1 {
		t.Errorf("foreign_keys = %d, want 1", got)
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"paths", "nodes", "edges", "progress", "challenges", "attempts", "remediations", "llm_request_events"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestWithPragmas(t *testing.T) {
	got := withPragmas("file:x?mode=memory")
	want := "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if again := withPragmas(got); again != got {
		t.Errorf("pragmas appended twice: %q", again)
	}
	if got := withPragmas("/tmp/a.db"); got != "/tmp/a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate" {
		t.Errorf("plain path: got %q", got)
	}
}

func TestPathCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.Repos().Paths

	p := seedPath(t, s, "p1")
	got, err := repo.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Goal != p.Goal || got.Summary != "basics" || got.Description != "" || got.Quality != nil {
		t.Errorf("got %+v", got)
	}

	seedPath(t, s, "p2")
	list, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d paths, want 2", len(list))
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGraphApplyAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedPath(t, s, "p1")
	g := seedGraph(t, s, "p1", "a", "b", "c")

	loaded, err := s.Repos().Graphs.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 3 || loaded.EdgeCount() != 2 {
		t.Fatalf("got %d nodes %d edges", loaded.Len(), loaded.EdgeCount())
	}
	n, _ := loaded.Node("b")
	if n.Title != "T b" || n.Type != pathgraph.TypeConcept || len(n.Tags) != 1 {
		t.Errorf("got node %+v", n)
	}

	after := g.Clone()
	if err := after.InsertBefore("c", pathgraph.Node{ID: "r", RemediatesID: "c"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Repos().Graphs.Apply(ctx, g, after); err != nil {
		t.Fatalf("apply: %v", err)
	}

	loaded, err = s.Repos().Graphs.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, e := range []pathgraph.Edge{{From: "a", To: "b"}, {From: "b", To: "r"}, {From: "r", To: "c"}} {
		if !loaded.HasEdge(e.From, e.To) {
			t.Errorf("missing edge %v", e)
		}
	}
	if loaded.HasEdge("b", "c") {
		t.Error("rerouted edge b -> c still stored")
	}
	n, _ = loaded.Node("r")
	if n.RemediatesID != "c" {
		t.Errorf("got remediates %q, want c", n.RemediatesID)
	}

	count, err := s.Repos().Graphs.CountRemedial(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("got %d remedial nodes, want 1", count)
	}
}

func TestProgressInsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedPath(t, s, "p1")
	seedGraph(t, s, "p1", "a")
	repo := s.Repos().Progress

	rec := progress.Record{UserID: "u1", PathID: "p1", NodeID: "a", Status: progress.StatusNotStarted, UpdatedAt: time.Now().UTC()}
	created, err := repo.InsertProgress(ctx, rec)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	rec.Status = progress.StatusInProgress
	rec.Attempts = 2
	if err := repo.UpdateProgress(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	created, err = repo.InsertProgress(ctx, progress.Record{UserID: "u1", PathID: "p1", NodeID: "a", Status: progress.StatusNotStarted, UpdatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Error("second insert should not create a row")
	}

	got, err := repo.GetProgress(ctx, "u1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != progress.StatusInProgress || got.Attempts != 2 || got.LastScore != nil {
		t.Errorf("got %+v", got)
	}

	missing, err := repo.GetProgress(ctx, "u1", "zzz")
	if err != nil || missing != nil {
		t.Errorf("got %v, %v; want nil, nil", missing, err)
	}
}

func TestProgressRejectsUnknownNode(t *testing.T) {
	s := openTestStore(t)
	seedPath(t, s, "p1")
	_, err := s.Repos().Progress.InsertProgress(context.Background(), progress.Record{
		UserID: "u1", PathID: "p1", NodeID: "ghost", Status: progress.StatusNotStarted, UpdatedAt: time.Now().UTC(),
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestPathQuality(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	q := 0.75
	if err := s.Repos().Paths.Create(ctx, &Path{ID: "p1", UserID: "u1", Goal: "Learn Go", Quality: &q, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Repos().Paths.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Quality == nil || *got.Quality != 0.75 {
		t.Errorf("quality = %v, want 0.75", got.Quality)
	}
}

func TestDeletePathCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedPath(t, s, "p1")
	seedGraph(t, s, "p1", "a", "b")
	r := s.Repos()
	if _, err := r.Progress.InsertProgress(ctx, progress.Record{UserID: "u1", PathID: "p1", NodeID: "a", Status: progress.StatusNotStarted, UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := r.Challenges.Create(ctx, &Challenge{ID: "c1", PathID: "p1", NodeID: "a", Prompt: "Explain", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}

	if err := r.Paths.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, table := range []string{"nodes", "edges", "progress", "challenges"} {
		var n int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("%s: %d rows left after delete", table, n)
		}
	}
}

func TestChallengeFindForNode(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedPath(t, s, "p1")
	seedGraph(t, s, "p1", "a")
	repo := s.Repos().Challenges

	c, err := repo.FindForNode(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Fatalf("got %+v, want nil", c)
	}

	rubric := json.RawMessage(`{"scoring_scale":"0-5"}`)
	err = repo.Create(ctx, &Challenge{
		ID: "c1", PathID: "p1", NodeID: "a", Prompt: "Explain", ExpectedOutline: []string{"one", "two"},
		Rubric: rubric, Difficulty: "easy", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	c, err = repo.FindForNode(ctx, "a")
	if err != nil || c == nil {
		t.Fatalf("find: %v %v", c, err)
	}
	if len(c.ExpectedOutline) != 2 || c.Difficulty != "easy" || string(c.Rubric) != string(rubric) {
		t.Errorf("got %+v", c)
	}

	err = repo.Create(ctx, &Challenge{ID: "c2", PathID: "p1", NodeID: "a", Prompt: "Again", CreatedAt: time.Now().UTC()})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
}

func TestAttemptsAndRemediations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedPath(t, s, "p1")
	g := seedGraph(t, s, "p1", "a")
	r := s.Repos()
	if err := r.Challenges.Create(ctx, &Challenge{ID: "c1", PathID: "p1", NodeID: "a", Prompt: "Explain", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 2; i++ {
		a := &Attempt{ChallengeID: "c1", UserID: "u1", NodeID: "a", Number: i, Answer: "x", Score: 0.1, CreatedAt: time.Now().UTC()}
		if i == 2 {
			a.RemediationTopic = "pointers"
		}
		if err := r.Attempts.Append(ctx, a); err != nil {
			t.Fatal(err)
		}
		if a.ID == 0 {
			t.Error("expected attempt ID to be set")
		}
	}
	list, err := r.Attempts.ListForNode(ctx, "u1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1].RemediationTopic != "pointers" || list[0].Number != 1 {
		t.Errorf("got %+v", list)
	}

	after := g.Clone()
	if err := after.InsertBefore("a", pathgraph.Node{ID: "r", RemediatesID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Graphs.Apply(ctx, g, after); err != nil {
		t.Fatal(err)
	}
	rem := &Remediation{PathID: "p1", UserID: "u1", NodeID: "a", RemedialNodeID: "r", Topic: "pointers", Kind: RemediationAuto, CreatedAt: time.Now().UTC()}
	if err := r.Remediations.Append(ctx, rem); err != nil {
		t.Fatal(err)
	}
	rems, err := r.Remediations.ListForPath(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rems) != 1 || rems[0].Kind != RemediationAuto || rems[0].RemedialNodeID != "r" {
		t.Errorf("got %+v", rems)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(r *Repos) error {
		now := time.Now().UTC()
		if err := r.Paths.Create(ctx, &Path{ID: "p1", UserID: "u1", Goal: "g", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if _, err := s.Repos().Paths.Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("path survived rollback: %v", err)
	}

	err = s.WithTx(ctx, func(r *Repos) error {
		now := time.Now().UTC()
		return r.Paths.Create(ctx, &Path{ID: "p2", UserID: "u1", Goal: "g", CreatedAt: now, UpdatedAt: now})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Repos().Paths.Get(ctx, "p2"); err != nil {
		t.Errorf("committed path missing: %v", err)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	repo := s.EventRepo()

	events := []LLMRequestEventData{
		{Provider: "anthropic", Model: "claude-sonnet-4-5", Purpose: "grade", InputTokens: 100, OutputTokens: 20, LatencyMs: 300, Success: true},
		{Provider: "anthropic", Model: "claude-sonnet-4-5", Purpose: "grade", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{Provider: "anthropic", Model: "claude-sonnet-4-5", Purpose: "build-dag", InputTokens: 10, LatencyMs: 50, Success: false, ErrorMessage: "rate limit"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Purpose != "build-dag" {
		t.Fatalf("got %+v", got)
	}

	e, err := repo.GetLLMEvent(ctx, got[1].ID)
	if err != nil || e == nil {
		t.Fatalf("get: %v %v", e, err)
	}
	if e.InputTokens != 50 {
		t.Errorf("got input tokens %d, want 50", e.InputTokens)
	}
	if missing, err := repo.GetLLMEvent(ctx, 9999); err != nil || missing != nil {
		t.Errorf("got %v, %v; want nil, nil", missing, err)
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("got %d purposes, want 2", len(byPurpose))
	}
	grade := byPurpose[1]
	if grade.Purpose != "grade" || grade.Calls != 2 || grade.InputTokens != 150 || grade.AvgLatencyMs != 200 {
		t.Errorf("got %+v", grade)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(byModel) != 1 || byModel[0].Calls != 2 {
		t.Errorf("got %+v", byModel)
	}
}
