// Package remediation splices remedial prerequisite nodes in front of nodes
// a learner is blocked on.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/store"
)

// ErrNotBlocked is returned when remediation is requested for a node whose
// progress is not blocked.
var ErrNotBlocked = errors.New("node is not blocked")

// Reasons an intervention is abandoned.
const (
	ReasonSynthesisFailed = "synthesis_failed"
	ReasonCapReached      = "cap_reached"
	ReasonStale           = "stale"
)

// Store is the persistence the engine needs.
type Store interface {
	Repos() *store.Repos
	WithTx(ctx context.Context, fn func(*store.Repos) error) error
}

// Config tunes the engine.
type Config struct {
	// MaxPerNode caps how many remedial nodes may be stacked in front of
	// one node. 0 means unlimited. Default: 3.
	MaxPerNode int `yaml:"max_per_node"`
}

// DefaultConfig returns the default remediation configuration.
func DefaultConfig() Config {
	return Config{MaxPerNode: 3}
}

// Request asks for one intervention.
type Request struct {
	UserID string
	PathID string
	NodeID string
	Topic  string
	Kind   store.RemediationKind

	// ObservedAttempts is the attempts count seen when the trigger fired.
	// The intervention is abandoned if the record has moved on since. A
	// negative value skips the check.
	ObservedAttempts int
}

// Outcome reports what an intervention did.
type Outcome struct {
	Applied bool

	// Abandoned names why nothing changed when Applied is false.
	Abandoned string

	// Node is the inserted remedial node.
	Node *pathgraph.Node

	// Record is the struggling node's progress after the reset, or its
	// unchanged blocked record when abandoned.
	Record progress.Record
}

// Engine runs interventions.
type Engine struct {
	store   Store
	gw      gateway.Gateway
	locker  lock.Locker
	ceiling int
	cfg     Config
	obs     observe.Observer
	newID   func() string
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches an observer.
func WithObserver(o observe.Observer) Option {
	return func(e *Engine) { e.obs = observe.OrNop(o) }
}

// WithIDGenerator overrides how remedial node IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. ceiling is the progress attempt ceiling used
// for the trackers it builds.
func NewEngine(s Store, gw gateway.Gateway, locker lock.Locker, ceiling int, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		gw:      gw,
		locker:  locker,
		ceiling: ceiling,
		cfg:     cfg,
		obs:     observe.Nop(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Remediate runs one intervention for a blocked node:
//
//  1. synthesize the remedial node content (outside any lock),
//  2. under the path lock and one transaction: insert the node in front of
//     the struggling node, initialize its progress for the user, reset the
//     struggling node's progress and log the intervention.
//
// A failed synthesis, a reached cap or a record that changed while the
// content was generated abandon the intervention and leave everything as it
// was; that is reported in the Outcome, not as an error. Errors mean the
// request was invalid or the store or lock failed.
func (e *Engine) Remediate(ctx context.Context, req Request) (out *Outcome, err error) {
	ctx, finish := e.obs.Start(ctx, "remediation.remediate",
		observe.String("path_id", req.PathID),
		observe.String("node_id", req.NodeID),
		observe.String("kind", string(req.Kind)),
	)
	defer func() { finish(err) }()

	path, node, rec, err := e.preflight(ctx, req)
	if err != nil {
		return nil, err
	}
	capped, err := e.capReached(ctx, e.store.Repos(), req.NodeID)
	if err != nil {
		return nil, err
	}
	if capped {
		return e.abandon(ctx, req, rec, ReasonCapReached), nil
	}

	content, err := e.gw.SynthesizeRemedialNode(ctx, gateway.RemedialInput{
		Goal:       path.Goal,
		NodeTitle:  node.Title,
		Suggestion: req.Topic,
	})
	if err != nil || content == nil {
		return e.abandon(ctx, req, rec, ReasonSynthesisFailed), nil
	}

	err = lock.With(ctx, e.locker, lock.PathKey(req.PathID), func(ctx context.Context) error {
		return e.store.WithTx(ctx, func(repos *store.Repos) error {
			out, err = e.apply(ctx, repos, req, *content)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if !out.Applied {
		return e.abandon(ctx, req, out.Record, out.Abandoned), nil
	}

	e.obs.Event(ctx, observe.EventRemediationApplied,
		observe.String("path_id", req.PathID),
		observe.String("node_id", req.NodeID),
		observe.String("remedial_node_id", out.Node.ID),
		observe.String("kind", string(req.Kind)),
	)
	return out, nil
}

func (e *Engine) preflight(ctx context.Context, req Request) (*store.Path, pathgraph.Node, progress.Record, error) {
	repos := e.store.Repos()
	path, err := repos.Paths.Get(ctx, req.PathID)
	if err != nil {
		return nil, pathgraph.Node{}, progress.Record{}, err
	}
	g, err := repos.Graphs.Load(ctx, req.PathID)
	if err != nil {
		return nil, pathgraph.Node{}, progress.Record{}, err
	}
	node, ok := g.Node(req.NodeID)
	if !ok {
		return nil, pathgraph.Node{}, progress.Record{}, &pathgraph.UnknownNodeError{PathID: req.PathID, ID: req.NodeID}
	}
	rec, err := progress.NewTracker(repos.Progress, e.ceiling).Get(ctx, req.UserID, req.NodeID)
	if err != nil {
		return nil, pathgraph.Node{}, progress.Record{}, err
	}
	if rec.Status != progress.StatusBlocked {
		return nil, pathgraph.Node{}, progress.Record{}, fmt.Errorf("remediate node %q (%s): %w", req.NodeID, rec.Status, ErrNotBlocked)
	}
	return path, node, rec, nil
}

// apply performs the surgery inside the caller's transaction.
func (e *Engine) apply(ctx context.Context, repos *store.Repos, req Request, content pathgraph.Content) (*Outcome, error) {
	tracker := progress.NewTracker(repos.Progress, e.ceiling, progress.WithClock(e.now))

	rec, err := tracker.Get(ctx, req.UserID, req.NodeID)
	if err != nil {
		return nil, err
	}
	if rec.Status != progress.StatusBlocked || (req.ObservedAttempts >= 0 && rec.Attempts != req.ObservedAttempts) {
		return &Outcome{Abandoned: ReasonStale, Record: rec}, nil
	}
	capped, err := e.capReached(ctx, repos, req.NodeID)
	if err != nil {
		return nil, err
	}
	if capped {
		return &Outcome{Abandoned: ReasonCapReached, Record: rec}, nil
	}

	before, err := repos.Graphs.Load(ctx, req.PathID)
	if err != nil {
		return nil, err
	}
	if content.Type == "" {
		content.Type = pathgraph.TypeConcept
	}
	node := pathgraph.Node{
		ID:           e.newID(),
		PathID:       req.PathID,
		Content:      content,
		RemediatesID: req.NodeID,
	}
	after := before.Clone()
	if err := after.InsertBefore(req.NodeID, node); err != nil {
		return nil, fmt.Errorf("splice remedial node: %w", err)
	}
	if err := repos.Graphs.Apply(ctx, before, after); err != nil {
		return nil, err
	}

	if _, err := tracker.Initialize(ctx, req.UserID, req.PathID, node.ID); err != nil {
		return nil, err
	}
	reset, err := tracker.Reset(ctx, req.UserID, req.NodeID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	if err := repos.Remediations.Append(ctx, &store.Remediation{
		PathID:         req.PathID,
		UserID:         req.UserID,
		NodeID:         req.NodeID,
		RemedialNodeID: node.ID,
		Topic:          req.Topic,
		Kind:           req.Kind,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}
	if err := repos.Paths.Touch(ctx, req.PathID, now); err != nil {
		return nil, err
	}

	return &Outcome{Applied: true, Node: &node, Record: reset}, nil
}

func (e *Engine) capReached(ctx context.Context, repos *store.Repos, nodeID string) (bool, error) {
	if e.cfg.MaxPerNode <= 0 {
		return false, nil
	}
	n, err := repos.Graphs.CountRemedial(ctx, nodeID)
	if err != nil {
		return false, fmt.Errorf("count remedial nodes: %w", err)
	}
	return n >= e.cfg.MaxPerNode, nil
}

func (e *Engine) abandon(ctx context.Context, req Request, rec progress.Record, reason string) *Outcome {
	e.obs.Event(ctx, observe.EventRemediationAbandon,
		observe.String("path_id", req.PathID),
		observe.String("node_id", req.NodeID),
		observe.String("reason", reason),
	)
	return &Outcome{Abandoned: reason, Record: rec}
}
