package curriculum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

// SubmitResult is the outcome of SubmitAnswer.
type SubmitResult struct {
	Attempt  store.Attempt
	Grade    gateway.Grade
	Status   progress.Status
	Previous progress.Status

	// Degraded is set when the grader failed and the fallback grade was
	// recorded.
	Degraded bool

	// Remediation is set when the attempt blocked the node and an
	// intervention ran, whether or not it was applied.
	Remediation *remediation.Outcome
}

// SubmitAnswer grades an answer to a challenge and records the attempt.
//
// Grading runs before the path lock is taken. The attempt is then recorded
// in one transaction under the lock, which serializes duplicate submissions:
// only the one that moves the record into blocked can trigger remediation.
// The intervention runs after the lock is released; its failure never fails
// the submission since the attempt is already stored.
func (s *Service) SubmitAnswer(ctx context.Context, userID, challengeID, answer string) (_ *SubmitResult, err error) {
	ctx, finish := s.obs.Start(ctx, "curriculum.submit_answer",
		observe.String("challenge_id", challengeID),
	)
	defer func() { finish(err) }()

	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("submit answer: %w: empty answer", ErrInvalidInput)
	}

	repos := s.store.Repos()
	ch, err := repos.Challenges.Get(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("challenge %q: %w", challengeID, ErrUnknownChallenge)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedPath(ctx, repos, userID, ch.PathID); err != nil {
		return nil, err
	}

	rec, err := s.tracker(repos).Get(ctx, userID, ch.NodeID)
	if errors.Is(err, progress.ErrNoRecord) {
		return nil, fmt.Errorf("node %q: %w", ch.NodeID, ErrUnknownNode)
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != progress.StatusInProgress {
		return nil, fmt.Errorf("submit answer on %s node: %w", rec.Status, progress.ErrInvalidTransition)
	}

	grade, gradeErr := s.gw.GradeAnswer(ctx, gateway.GradeInput{
		Prompt:          ch.Prompt,
		ExpectedOutline: ch.ExpectedOutline,
		Rubric:          ch.Rubric,
		Answer:          answer,
		PriorAttempts:   rec.Attempts,
	})
	if grade == nil {
		grade = gateway.FallbackGrade()
	}
	degraded := gradeErr != nil
	if degraded {
		// Fallback grades never carry a suggestion.
		grade.RemediationTopic = ""
	}

	res := &SubmitResult{Grade: *grade, Degraded: degraded}
	var outcome progress.Outcome
	err = s.locked(ctx, ch.PathID, func(repos *store.Repos) error {
		var err error
		outcome, err = s.tracker(repos).RecordAttempt(ctx, userID, ch.NodeID, progress.Attempt{
			Score:      grade.Score,
			Passed:     grade.Passed,
			Suggestion: grade.RemediationTopic,
		})
		if err != nil {
			return err
		}
		res.Attempt = store.Attempt{
			ChallengeID:      ch.ID,
			UserID:           userID,
			NodeID:           ch.NodeID,
			Number:           outcome.Record.Attempts,
			Answer:           answer,
			Score:            *outcome.Record.LastScore,
			Passed:           grade.Passed,
			Feedback:         grade.Feedback,
			RemediationTopic: grade.RemediationTopic,
			Degraded:         degraded,
			CreatedAt:        s.now().UTC(),
		}
		if err := repos.Attempts.Append(ctx, &res.Attempt); err != nil {
			return err
		}
		return repos.Paths.Touch(ctx, ch.PathID, res.Attempt.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	res.Status = outcome.Record.Status
	res.Previous = outcome.Previous

	s.obs.Event(ctx, observe.EventAttemptRecorded,
		observe.String("path_id", ch.PathID),
		observe.String("node_id", ch.NodeID),
		observe.String("status", string(res.Status)),
		observe.Int("attempts", outcome.Record.Attempts),
		observe.Bool("degraded", degraded),
	)

	if outcome.Triggered {
		out, rerr := s.engine.Remediate(ctx, remediation.Request{
			UserID:           userID,
			PathID:           ch.PathID,
			NodeID:           ch.NodeID,
			Topic:            grade.RemediationTopic,
			Kind:             store.RemediationAuto,
			ObservedAttempts: outcome.Record.Attempts,
		})
		if rerr != nil {
			s.obs.Event(ctx, observe.EventRemediationAbandon,
				observe.String("path_id", ch.PathID),
				observe.String("node_id", ch.NodeID),
				observe.String("reason", "error"),
				observe.String("error", rerr.Error()),
			)
		} else {
			res.Remediation = out
			if out.Applied {
				res.Status = out.Record.Status
			}
		}
	}
	return res, nil
}

// Remediate runs an intervention for a node the user is blocked on. When
// topic is empty the most recent suggestion from the user's graded attempts
// is used. An intervention abandoned because synthesis failed is reported in
// the outcome and leaves the node blocked.
func (s *Service) Remediate(ctx context.Context, userID, nodeID, topic string) (*remediation.Outcome, error) {
	repos := s.store.Repos()
	rec, err := s.tracker(repos).Get(ctx, userID, nodeID)
	if errors.Is(err, progress.ErrNoRecord) {
		return nil, fmt.Errorf("node %q: %w", nodeID, ErrUnknownNode)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedPath(ctx, repos, userID, rec.PathID); err != nil {
		return nil, err
	}

	if topic == "" {
		attempts, err := repos.Attempts.ListForNode(ctx, userID, nodeID)
		if err != nil {
			return nil, err
		}
		for i := len(attempts) - 1; i >= 0; i-- {
			if attempts[i].RemediationTopic != "" {
				topic = attempts[i].RemediationTopic
				break
			}
		}
	}

	out, err := s.engine.Remediate(ctx, remediation.Request{
		UserID:           userID,
		PathID:           rec.PathID,
		NodeID:           nodeID,
		Topic:            topic,
		Kind:             store.RemediationManual,
		ObservedAttempts: -1,
	})
	return out, conflict(err)
}
