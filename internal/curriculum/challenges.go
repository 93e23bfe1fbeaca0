package curriculum

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/store"
)

// IssuedChallenge is a node's challenge with the user's progress on the node.
type IssuedChallenge struct {
	store.Challenge
	Record progress.Record
}

// IssueChallenge returns the node's challenge, generating and storing it on
// first request, and moves the user's record from not_started to
// in_progress. Concurrent first requests for one node share a single
// generation call.
func (s *Service) IssueChallenge(ctx context.Context, userID, pathID, nodeID string) (_ *IssuedChallenge, err error) {
	ctx, finish := s.obs.Start(ctx, "curriculum.issue_challenge",
		observe.String("path_id", pathID),
		observe.String("node_id", nodeID),
	)
	defer func() { finish(err) }()

	repos := s.store.Repos()
	p, err := s.ownedPath(ctx, repos, userID, pathID)
	if err != nil {
		return nil, err
	}
	node, err := s.node(ctx, repos, pathID, nodeID)
	if err != nil {
		return nil, err
	}

	ch, err := repos.Challenges.FindForNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		// The generation is shared by every waiter, so one caller giving up
		// must not cancel it. The gateway timeout still bounds it.
		shared := context.WithoutCancel(ctx)
		v, err, _ := s.challenges.Do(nodeID, func() (any, error) {
			return s.createChallenge(shared, p, node)
		})
		if err != nil {
			return nil, err
		}
		ch = v.(*store.Challenge)
	}

	var rec progress.Record
	err = s.locked(ctx, pathID, func(repos *store.Repos) error {
		tracker := s.tracker(repos)
		if _, err := tracker.Initialize(ctx, userID, pathID, nodeID); err != nil {
			return err
		}
		begun, err := tracker.Begin(ctx, userID, nodeID)
		rec = begun
		return err
	})
	if err != nil {
		return nil, err
	}

	s.obs.Event(ctx, observe.EventChallengeIssued,
		observe.String("path_id", pathID),
		observe.String("node_id", nodeID),
		observe.String("status", string(rec.Status)),
	)
	return &IssuedChallenge{Challenge: *ch, Record: rec}, nil
}

// createChallenge generates and stores the node's challenge. Generation
// failures store the fallback challenge.
func (s *Service) createChallenge(ctx context.Context, p *store.Path, node pathgraph.Node) (*store.Challenge, error) {
	gen, _ := s.gw.GenerateChallenge(ctx, gateway.ChallengeInput{
		Goal:   p.Goal,
		Domain: p.Domain,
		Node:   node.Content,
	})
	if gen == nil {
		gen = gateway.FallbackChallenge(node.Content)
	}

	ch := &store.Challenge{
		ID:              s.newID(),
		PathID:          p.ID,
		NodeID:          node.ID,
		Type:            gen.Type,
		Prompt:          gen.Prompt,
		ExpectedOutline: gen.ExpectedOutline,
		Rubric:          gen.Rubric,
		Difficulty:      gen.Difficulty,
		CreatedAt:       s.now().UTC(),
	}
	repos := s.store.Repos()
	err := repos.Challenges.Create(ctx, ch)
	if errors.Is(err, store.ErrConflict) {
		// Another process stored one first.
		existing, ferr := repos.Challenges.FindForNode(ctx, node.ID)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store challenge: %w", conflict(err))
	}
	return ch, nil
}
