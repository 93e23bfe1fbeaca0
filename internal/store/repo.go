package store

import (
	"context"
	"encoding/json"
	"time"

	"entgo.io/ent/dialect"

	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // id > After
	Before int64     // id < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// Path is one learner's curriculum.
type Path struct {
	ID          string
	UserID      string
	Goal        string
	Description string
	Domain      string
	Level       string
	Summary     string
	// Quality is the judged quality of the generated graph in [0, 1], nil
	// when the path was created without one.
	Quality   *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Challenge is the assessment attached to a node.
type Challenge struct {
	ID              string
	PathID          string
	NodeID          string
	Type            string
	Prompt          string
	ExpectedOutline []string
	Rubric          json.RawMessage
	Difficulty      string
	CreatedAt       time.Time
}

// Attempt is one graded submission against a challenge.
type Attempt struct {
	ID               int64
	ChallengeID      string
	UserID           string
	NodeID           string
	Number           int
	Answer           string
	Score            float64
	Passed           bool
	Feedback         string
	RemediationTopic string
	// Degraded marks grades that came from the fallback instead of the grader.
	Degraded  bool
	CreatedAt time.Time
}

// RemediationKind says what started an intervention.
type RemediationKind string

const (
	RemediationAuto   RemediationKind = "auto"
	RemediationManual RemediationKind = "manual"
)

// Remediation records a remedial node spliced in front of a struggling node.
type Remediation struct {
	ID             int64
	PathID         string
	UserID         string
	NodeID         string
	RemedialNodeID string
	Topic          string
	Kind           RemediationKind
	CreatedAt      time.Time
}

// PathRepo manages path rows.
type PathRepo interface {
	// Create inserts a new path.
	Create(ctx context.Context, p *Path) error

	// Get returns the path with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Path, error)

	// List returns the user's paths, newest first.
	List(ctx context.Context, userID string) ([]Path, error)

	// Delete removes a path and, by cascade, everything it owns.
	Delete(ctx context.Context, id string) error

	// Touch bumps the path's updated_at.
	Touch(ctx context.Context, id string, at time.Time) error
}

// GraphRepo persists path nodes and edges.
type GraphRepo interface {
	// Load rebuilds the in-memory graph for a path.
	Load(ctx context.Context, pathID string) (*pathgraph.Graph, error)

	// Apply persists the changes from before to after.
	Apply(ctx context.Context, before, after *pathgraph.Graph) error

	// CountRemedial returns how many remedial nodes were inserted in front
	// of nodeID.
	CountRemedial(ctx context.Context, nodeID string) (int, error)
}

// ChallengeRepo manages node challenges.
type ChallengeRepo interface {
	// Create inserts a challenge. A second challenge for the same node
	// fails with ErrConflict.
	Create(ctx context.Context, c *Challenge) error

	// Get returns the challenge with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Challenge, error)

	// FindForNode returns the node's challenge, or nil if none exists yet.
	FindForNode(ctx context.Context, nodeID string) (*Challenge, error)
}

// AttemptRepo stores submission history.
type AttemptRepo interface {
	// Append stores a and sets its ID.
	Append(ctx context.Context, a *Attempt) error

	// ListForNode returns the user's attempts on a node, oldest first.
	ListForNode(ctx context.Context, userID, nodeID string) ([]Attempt, error)
}

// RemediationRepo stores the intervention log.
type RemediationRepo interface {
	// Append stores r and sets its ID.
	Append(ctx context.Context, r *Remediation) error

	// ListForPath returns the path's interventions, oldest first.
	ListForPath(ctx context.Context, pathID string) ([]Remediation, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMPurposeUsage aggregates token usage for one purpose.
type LLMPurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates token usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns a single event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates calls and tokens per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMPurposeUsage, error)

	// LLMUsageByModel aggregates calls and tokens per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}

// Repos groups the repositories that share one connection or transaction.
type Repos struct {
	Paths        PathRepo
	Graphs       GraphRepo
	Progress     progress.Repo
	Challenges   ChallengeRepo
	Attempts     AttemptRepo
	Remediations RemediationRepo
	Events       EventRepo
}

func newRepos(q dialect.ExecQuerier) *Repos {
	return &Repos{
		Paths:        &pathRepo{q: q},
		Graphs:       &graphRepo{q: q},
		Progress:     &progressRepo{q: q},
		Challenges:   &challengeRepo{q: q},
		Attempts:     &attemptRepo{q: q},
		Remediations: &remediationRepo{q: q},
		Events:       &eventRepo{q: q},
	}
}
