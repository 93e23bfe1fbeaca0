package curriculum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/store"
)

// CreatePathInput is the input to CreatePath.
type CreatePathInput struct {
	UserID      string
	Goal        string
	Description string
	Domain      string
	Level       string
	Background  string
}

// Path is a stored path together with its current graph.
type Path struct {
	store.Path
	Nodes []pathgraph.Node
	Edges []pathgraph.Edge

	// Degraded is set when content generation failed during creation and
	// the path was stored with fallback content.
	Degraded bool
}

// CreatePath derives competencies for the goal, structures them into a
// prerequisite graph and stores the path with a not_started progress record
// per node for its owner. Gateway failures degrade to an empty path instead
// of failing the request.
func (s *Service) CreatePath(ctx context.Context, in CreatePathInput) (_ *Path, err error) {
	ctx, finish := s.obs.Start(ctx, "curriculum.create_path")
	defer func() { finish(err) }()

	in.Goal = strings.TrimSpace(in.Goal)
	if in.UserID == "" || in.Goal == "" {
		return nil, fmt.Errorf("create path: %w: user and goal are required", ErrInvalidInput)
	}

	comps, compErr := s.gw.DeriveCompetencies(ctx, gateway.CompetencyInput{
		Goal:        in.Goal,
		Description: in.Description,
		Domain:      in.Domain,
		Level:       in.Level,
	})
	if comps == nil {
		comps = &gateway.Competencies{}
	}
	dag, dagErr := s.gw.BuildDag(ctx, gateway.DagInput{
		Goal:         in.Goal,
		Background:   in.Background,
		Competencies: comps.Items,
	})
	if dag == nil {
		dag = &gateway.Dag{}
	}

	pathID := s.newID()
	g, buildErr := s.ingest(pathID, dag)
	if buildErr != nil {
		g = pathgraph.New(pathID)
		dag = &gateway.Dag{}
	}

	quality := s.judge(ctx, pathID, in.Goal, dag)

	now := s.now().UTC()
	p := store.Path{
		ID:          pathID,
		UserID:      in.UserID,
		Goal:        in.Goal,
		Description: in.Description,
		Domain:      in.Domain,
		Level:       in.Level,
		Summary:     dag.Summary,
		Quality:     quality,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.WithTx(ctx, func(repos *store.Repos) error {
		if err := repos.Paths.Create(ctx, &p); err != nil {
			return err
		}
		if err := repos.Graphs.Apply(ctx, pathgraph.New(pathID), g); err != nil {
			return err
		}
		tracker := s.tracker(repos)
		for _, n := range g.Nodes() {
			if _, err := tracker.Initialize(ctx, in.UserID, pathID, n.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, conflict(err)
	}

	degraded := compErr != nil || dagErr != nil || buildErr != nil
	s.obs.Event(ctx, observe.EventPathCreated,
		observe.String("path_id", pathID),
		observe.Int("nodes", g.Len()),
		observe.Bool("degraded", degraded),
	)
	return &Path{Path: p, Nodes: g.Nodes(), Edges: g.Edges(), Degraded: degraded}, nil
}

// judge scores a non-empty DAG and reports the score. Evaluation failures
// report gateway.FallbackDagScore; they never degrade the path itself.
func (s *Service) judge(ctx context.Context, pathID, goal string, dag *gateway.Dag) *float64 {
	if len(dag.Nodes) == 0 {
		return nil
	}
	q, err := s.gw.EvaluateDag(ctx, gateway.DagQualityInput{Goal: goal, Dag: dag})
	if q == nil {
		q = &gateway.DagQuality{Score: gateway.FallbackDagScore}
	}
	s.obs.Event(ctx, observe.EventDagQuality,
		observe.String("path_id", pathID),
		observe.Float("score", q.Score),
		observe.Bool("fallback", err != nil),
		observe.Int("nodes", len(dag.Nodes)),
	)
	return &q.Score
}

// ingest maps the DAG's local IDs to fresh node IDs and builds the graph.
func (s *Service) ingest(pathID string, dag *gateway.Dag) (*pathgraph.Graph, error) {
	g := pathgraph.New(pathID)
	ids := make(map[string]string, len(dag.Nodes))
	for _, dn := range dag.Nodes {
		id := s.newID()
		if err := g.AddNode(pathgraph.Node{ID: id, Content: dn.Content}); err != nil {
			return nil, err
		}
		ids[dn.LocalID] = id
	}
	for _, e := range dag.Edges {
		from, ok := ids[e.From]
		if !ok {
			continue
		}
		to, ok := ids[e.To]
		if !ok {
			continue
		}
		if err := g.AddEdge(from, to); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// GetPath returns the user's path with its nodes in prerequisite order.
func (s *Service) GetPath(ctx context.Context, userID, pathID string) (*Path, error) {
	repos := s.store.Repos()
	p, err := s.ownedPath(ctx, repos, userID, pathID)
	if err != nil {
		return nil, err
	}
	g, err := repos.Graphs.Load(ctx, pathID)
	if err != nil {
		return nil, err
	}
	nodes, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return &Path{Path: *p, Nodes: nodes, Edges: g.Edges()}, nil
}

// ListPaths returns the user's paths, newest first.
func (s *Service) ListPaths(ctx context.Context, userID string) ([]store.Path, error) {
	return s.store.Repos().Paths.List(ctx, userID)
}

// DeletePath removes the path and everything it owns.
func (s *Service) DeletePath(ctx context.Context, userID, pathID string) error {
	if _, err := s.ownedPath(ctx, s.store.Repos(), userID, pathID); err != nil {
		return err
	}
	return s.locked(ctx, pathID, func(repos *store.Repos) error {
		err := repos.Paths.Delete(ctx, pathID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("path %q: %w", pathID, ErrUnknownPath)
		}
		return err
	})
}

// Graph renders the path as a Mermaid flowchart colored by the user's
// progress.
func (s *Service) Graph(ctx context.Context, userID, pathID string) (string, error) {
	repos := s.store.Repos()
	if _, err := s.ownedPath(ctx, repos, userID, pathID); err != nil {
		return "", err
	}
	g, err := repos.Graphs.Load(ctx, pathID)
	if err != nil {
		return "", err
	}
	recs, err := repos.Progress.ListProgress(ctx, userID, pathID)
	if err != nil {
		return "", err
	}
	overlay := &pathgraph.Overlay{Status: make(map[string]string, len(recs))}
	for _, r := range recs {
		overlay.Status[r.NodeID] = string(r.Status)
	}
	return pathgraph.Mermaid(g, overlay), nil
}

// NodeProgress is one node's state in a ProgressView.
type NodeProgress struct {
	Node      pathgraph.Node
	Status    progress.Status
	Attempts  int
	LastScore *float64
}

// ProgressView is the user's progress through a path.
type ProgressView struct {
	PathID          string
	Goal            string
	Nodes           []NodeProgress
	Completed       int
	Total           int
	CompletionRatio float64
}

// GetProgress returns per-node status in prerequisite order and the
// completion ratio. A path without nodes reports a ratio of 0.
func (s *Service) GetProgress(ctx context.Context, userID, pathID string) (*ProgressView, error) {
	repos := s.store.Repos()
	p, err := s.ownedPath(ctx, repos, userID, pathID)
	if err != nil {
		return nil, err
	}
	g, err := repos.Graphs.Load(ctx, pathID)
	if err != nil {
		return nil, err
	}
	nodes, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	recs, err := repos.Progress.ListProgress(ctx, userID, pathID)
	if err != nil {
		return nil, err
	}
	byNode := make(map[string]progress.Record, len(recs))
	for _, r := range recs {
		byNode[r.NodeID] = r
	}

	view := &ProgressView{
		PathID:          pathID,
		Goal:            p.Goal,
		Nodes:           make([]NodeProgress, 0, len(nodes)),
		Total:           len(nodes),
		CompletionRatio: progress.Ratio(recs, len(nodes)),
	}
	for _, n := range nodes {
		np := NodeProgress{Node: n, Status: progress.StatusNotStarted}
		if r, ok := byNode[n.ID]; ok {
			np.Status = r.Status
			np.Attempts = r.Attempts
			np.LastScore = r.LastScore
		}
		if np.Status == progress.StatusCompleted {
			view.Completed++
		}
		view.Nodes = append(view.Nodes, np)
	}
	return view, nil
}
