package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoRecord is returned when a (user, node) pair has no progress record.
var ErrNoRecord = errors.New("progress record not found")

// Record is the per-(user, node) progress state.
type Record struct {
	UserID    string
	PathID    string
	NodeID    string
	Status    Status
	Attempts  int
	LastScore *float64
	UpdatedAt time.Time
}

// Attempt is a graded answer as seen by the tracker.
type Attempt struct {
	Score      float64
	Passed     bool
	Suggestion string
}

// Outcome is the result of recording an attempt.
type Outcome struct {
	Record   Record
	Previous Status

	// Triggered is true only when the attempt moved the record into blocked
	// and the grade carried a remediation suggestion.
	Triggered bool
}

// Repo persists progress records. Implementations are expected to be bound
// to the caller's transaction.
type Repo interface {
	// GetProgress returns the record for (userID, nodeID), or nil if none exists.
	GetProgress(ctx context.Context, userID, nodeID string) (*Record, error)

	// InsertProgress stores rec unless a record for the same (user, node)
	// already exists. It reports whether a row was created.
	InsertProgress(ctx context.Context, rec Record) (bool, error)

	// UpdateProgress overwrites the status, attempts, score and timestamp.
	UpdateProgress(ctx context.Context, rec Record) error

	// ListProgress returns every record the user has in the path.
	ListProgress(ctx context.Context, userID, pathID string) ([]Record, error)

	// CountNodes returns the number of nodes in the path.
	CountNodes(ctx context.Context, pathID string) (int, error)
}

// Tracker owns the per-user status machine.
type Tracker struct {
	repo    Repo
	ceiling int
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker over repo. A ceiling <= 0 uses DefaultCeiling.
func NewTracker(repo Repo, ceiling int, opts ...Option) *Tracker {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	t := &Tracker{repo: repo, ceiling: ceiling, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Ceiling returns the failed-attempt ceiling.
func (t *Tracker) Ceiling() int { return t.ceiling }

// Initialize creates a not_started record for (userID, nodeID). Calling it
// again for the same pair returns the existing record untouched.
func (t *Tracker) Initialize(ctx context.Context, userID, pathID, nodeID string) (Record, error) {
	rec := Record{
		UserID:    userID,
		PathID:    pathID,
		NodeID:    nodeID,
		Status:    StatusNotStarted,
		UpdatedAt: t.now().UTC(),
	}
	created, err := t.repo.InsertProgress(ctx, rec)
	if err != nil {
		return Record{}, fmt.Errorf("initialize progress: %w", err)
	}
	if created {
		return rec, nil
	}
	return t.Get(ctx, userID, nodeID)
}

// Get returns the record for (userID, nodeID).
func (t *Tracker) Get(ctx context.Context, userID, nodeID string) (Record, error) {
	rec, err := t.repo.GetProgress(ctx, userID, nodeID)
	if err != nil {
		return Record{}, fmt.Errorf("get progress: %w", err)
	}
	if rec == nil {
		return Record{}, fmt.Errorf("user %q node %q: %w", userID, nodeID, ErrNoRecord)
	}
	return *rec, nil
}

// Begin marks the node as started when a challenge is issued for it.
func (t *Tracker) Begin(ctx context.Context, userID, nodeID string) (Record, error) {
	rec, err := t.Get(ctx, userID, nodeID)
	if err != nil {
		return Record{}, err
	}
	next, err := Next(rec.Status, EventChallenge, rec.Attempts, t.ceiling)
	if err != nil {
		return Record{}, err
	}
	if next == rec.Status {
		return rec, nil
	}
	rec.Status = next
	rec.UpdatedAt = t.now().UTC()
	if err := t.repo.UpdateProgress(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("begin node: %w", err)
	}
	return rec, nil
}

// RecordAttempt counts a graded attempt, stores its score and applies the
// transition table. Attempts are only accepted on in_progress records.
func (t *Tracker) RecordAttempt(ctx context.Context, userID, nodeID string, a Attempt) (Outcome, error) {
	rec, err := t.Get(ctx, userID, nodeID)
	if err != nil {
		return Outcome{}, err
	}

	ev := EventFail
	if a.Passed {
		ev = EventPass
	}
	attempts := rec.Attempts + 1
	next, err := Next(rec.Status, ev, attempts, t.ceiling)
	if err != nil {
		return Outcome{}, err
	}

	prev := rec.Status
	score := clampScore(a.Score)
	rec.Status = next
	rec.Attempts = attempts
	rec.LastScore = &score
	rec.UpdatedAt = t.now().UTC()
	if err := t.repo.UpdateProgress(ctx, rec); err != nil {
		return Outcome{}, fmt.Errorf("record attempt: %w", err)
	}

	return Outcome{
		Record:    rec,
		Previous:  prev,
		Triggered: next == StatusBlocked && prev != StatusBlocked && a.Suggestion != "",
	}, nil
}

// Reset returns a blocked record to not_started with attempts and score
// cleared. It is the remediation side effect and fails on any other status.
func (t *Tracker) Reset(ctx context.Context, userID, nodeID string) (Record, error) {
	rec, err := t.Get(ctx, userID, nodeID)
	if err != nil {
		return Record{}, err
	}
	next, err := Next(rec.Status, EventRemediate, 0, t.ceiling)
	if err != nil {
		return Record{}, err
	}
	rec.Status = next
	rec.Attempts = 0
	rec.LastScore = nil
	rec.UpdatedAt = t.now().UTC()
	if err := t.repo.UpdateProgress(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("reset progress: %w", err)
	}
	return rec, nil
}

// CompletionRatio returns completed nodes over total nodes in the path.
// A path with no nodes reports 0.
func (t *Tracker) CompletionRatio(ctx context.Context, userID, pathID string) (float64, error) {
	total, err := t.repo.CountNodes(ctx, pathID)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	recs, err := t.repo.ListProgress(ctx, userID, pathID)
	if err != nil {
		return 0, fmt.Errorf("list progress: %w", err)
	}
	return Ratio(recs, total), nil
}

// Ratio computes the completion ratio of recs against a node total.
func Ratio(recs []Record, total int) float64 {
	if total <= 0 {
		return 0
	}
	completed := 0
	for _, r := range recs {
		if r.Status == StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(total)
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
