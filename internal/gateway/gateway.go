// Package gateway is the contract between the curriculum core and the
// generative content collaborator.
//
// Every operation returns a usable value even when it fails: on error the
// value is the documented fallback and the error, matching ErrUnavailable
// or ErrMalformedOutput, marks it as such. Callers decide whether a
// fallback is good enough or the error should abort them.
package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/abhisek/traverse/internal/pathgraph"
)

var (
	// ErrUnavailable marks a fallback returned because the collaborator
	// could not be reached or did not answer in time.
	ErrUnavailable = errors.New("content gateway unavailable")

	// ErrMalformedOutput marks a fallback returned because the
	// collaborator's answer did not match the expected shape.
	ErrMalformedOutput = errors.New("content gateway returned malformed output")
)

// Gateway generates curriculum content.
type Gateway interface {
	// DeriveCompetencies turns a goal into competencies.
	// Fallback: no competencies.
	DeriveCompetencies(ctx context.Context, in CompetencyInput) (*Competencies, error)

	// BuildDag structures competencies into nodes and prerequisite edges
	// keyed by local IDs. Fallback: no nodes and no edges.
	BuildDag(ctx context.Context, in DagInput) (*Dag, error)

	// EvaluateDag judges a built DAG's structure, progression and coverage.
	// Fallback: FallbackDagScore with no dimensions.
	EvaluateDag(ctx context.Context, in DagQualityInput) (*DagQuality, error)

	// GenerateChallenge writes the assessment for one node.
	// Fallback: a generic explain-in-your-own-words challenge.
	GenerateChallenge(ctx context.Context, in ChallengeInput) (*Challenge, error)

	// GradeAnswer grades a submission. Fallback: score 0, not passed, no
	// remediation topic.
	GradeAnswer(ctx context.Context, in GradeInput) (*Grade, error)

	// SynthesizeRemedialNode writes the content of a remedial prerequisite.
	// There is no fallback: on error the returned content is nil.
	SynthesizeRemedialNode(ctx context.Context, in RemedialInput) (*pathgraph.Content, error)
}

// CompetencyInput describes a learning goal.
type CompetencyInput struct {
	Goal        string
	Description string
	Domain      string
	Level       string
}

// Competency is one ability the goal requires.
type Competency struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	ExampleTasks []string `json:"example_tasks"`
}

// Competencies is the result of DeriveCompetencies.
type Competencies struct {
	NormalizedGoal string
	Items          []Competency
}

// DagInput is the input to BuildDag.
type DagInput struct {
	Goal         string
	Background   string
	Competencies []Competency
}

// DagNode is a node proposed by BuildDag, addressed by a local ID that is
// only meaningful within the same Dag.
type DagNode struct {
	LocalID string
	Content pathgraph.Content
}

// DagEdge is a prerequisite between two local IDs.
type DagEdge struct {
	From string
	To   string
}

// Dag is the result of BuildDag. Its edges only reference nodes in Nodes,
// contain no duplicates and form no cycle.
type Dag struct {
	Summary string
	Nodes   []DagNode
	Edges   []DagEdge
}

// FallbackDagScore is reported when a DAG could not be judged.
const FallbackDagScore = 0.5

// DagQualityInput is the input to EvaluateDag.
type DagQualityInput struct {
	Goal string
	Dag  *Dag
}

// DagQuality is the outcome of EvaluateDag.
type DagQuality struct {
	// Score is in [0, 1].
	Score      float64
	Dimensions []DimensionScore
	Summary    string
}

// ChallengeInput is the input to GenerateChallenge.
type ChallengeInput struct {
	Goal   string
	Domain string
	Node   pathgraph.Content
}

// Challenge is a generated assessment.
type Challenge struct {
	Type            string
	Prompt          string
	ExpectedOutline []string
	Rubric          json.RawMessage
	Difficulty      string
}

// GradeInput is the input to GradeAnswer.
type GradeInput struct {
	Prompt          string
	ExpectedOutline []string
	Rubric          json.RawMessage
	Answer          string
	PriorAttempts   int
}

// DimensionScore is the grade on one rubric dimension, 0-5.
type DimensionScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Grade is the outcome of GradeAnswer.
type Grade struct {
	// Score is normalized to [0, 1].
	Score    float64
	Passed   bool
	Feedback string
	// Hints are actionable suggestions shown to the learner.
	Hints      []string
	Dimensions []DimensionScore
	// RemediationTopic is set only when the grader thinks a prerequisite
	// is missing.
	RemediationTopic string
}

// RemedialInput is the input to SynthesizeRemedialNode.
type RemedialInput struct {
	Goal       string
	NodeTitle  string
	Suggestion string
}

// Reason classifies a gateway error for reporting: "timeout",
// "unavailable", "malformed" or "" for nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed"
	default:
		return "unavailable"
	}
}
