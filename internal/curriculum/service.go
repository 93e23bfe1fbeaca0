// Package curriculum exposes the learning path operations: creating paths
// from a goal, issuing challenges, grading submissions with automatic
// remediation and reporting progress.
package curriculum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

// Store is the persistence the service needs.
type Store interface {
	Repos() *store.Repos
	WithTx(ctx context.Context, fn func(*store.Repos) error) error
}

// Config tunes the service.
type Config struct {
	// Ceiling is the number of failed attempts that blocks a node.
	Ceiling     int
	Remediation remediation.Config
}

// Service implements the curriculum operations.
type Service struct {
	store   Store
	gw      gateway.Gateway
	locker  lock.Locker
	engine  *remediation.Engine
	ceiling int
	obs     observe.Observer
	newID   func() string
	now     func() time.Time

	challenges singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithObserver attaches an observer to the service and its remediation
// engine.
func WithObserver(o observe.Observer) Option {
	return func(s *Service) { s.obs = observe.OrNop(o) }
}

// WithIDGenerator overrides how path, node and challenge IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(st Store, gw gateway.Gateway, locker lock.Locker, cfg Config, opts ...Option) *Service {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = progress.DefaultCeiling
	}
	s := &Service{
		store:   st,
		gw:      gw,
		locker:  locker,
		ceiling: cfg.Ceiling,
		obs:     observe.Nop(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.engine = remediation.NewEngine(st, gw, locker, s.ceiling, cfg.Remediation,
		remediation.WithObserver(s.obs),
		remediation.WithIDGenerator(s.newID),
		remediation.WithClock(s.now),
	)
	return s
}

func (s *Service) tracker(repos *store.Repos) *progress.Tracker {
	return progress.NewTracker(repos.Progress, s.ceiling, progress.WithClock(s.now))
}

// ownedPath returns the path if it exists and belongs to userID.
func (s *Service) ownedPath(ctx context.Context, repos *store.Repos, userID, pathID string) (*store.Path, error) {
	p, err := repos.Paths.Get(ctx, pathID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("path %q: %w", pathID, ErrUnknownPath)
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("path %q: %w", pathID, ErrNotOwner)
	}
	return p, nil
}

// node returns a node of the path's current graph.
func (s *Service) node(ctx context.Context, repos *store.Repos, pathID, nodeID string) (pathgraph.Node, error) {
	g, err := repos.Graphs.Load(ctx, pathID)
	if err != nil {
		return pathgraph.Node{}, err
	}
	n, ok := g.Node(nodeID)
	if !ok {
		return pathgraph.Node{}, fmt.Errorf("node %q in path %q: %w", nodeID, pathID, ErrUnknownNode)
	}
	return n, nil
}

// locked runs fn in one transaction while holding the path's write lock.
func (s *Service) locked(ctx context.Context, pathID string, fn func(*store.Repos) error) error {
	err := lock.With(ctx, s.locker, lock.PathKey(pathID), func(ctx context.Context) error {
		return s.store.WithTx(ctx, fn)
	})
	return conflict(err)
}
