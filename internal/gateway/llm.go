package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/traverse/internal/llm"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/pathgraph"
)

// Config tunes the LLM-backed gateway.
type Config struct {
	// Timeout bounds each gateway call. Default: 45s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTokens caps each response. Default: 4096.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature for generation calls. Grading always runs at 0.
	Temperature float64 `yaml:"temperature"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     45 * time.Second,
		MaxTokens:   4096,
		Temperature: 0.4,
	}
}

// LLM implements Gateway on top of an llm.Provider. Responses are validated
// against fixed JSON schemas before they are converted to typed values.
type LLM struct {
	provider llm.Provider
	cfg      Config
	obs      observe.Observer
}

// NewLLM creates an LLM-backed gateway. A nil observer is allowed.
func NewLLM(provider llm.Provider, cfg Config, obs observe.Observer) *LLM {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &LLM{provider: provider, cfg: cfg, obs: observe.OrNop(obs)}
}

type competencyOutput struct {
	NormalizedGoal string       `json:"normalized_goal"`
	Competencies   []Competency `json:"competencies"`
}

func (g *LLM) DeriveCompetencies(ctx context.Context, in CompetencyInput) (*Competencies, error) {
	fallback := &Competencies{NormalizedGoal: in.Goal}

	var out competencyOutput
	req := g.request(competencySystemPrompt, buildCompetencyUserMessage(in), CompetencySchema, g.cfg.Temperature)
	if err := g.generate(ctx, "derive-competencies", req, &out); err != nil {
		return fallback, err
	}

	res := &Competencies{NormalizedGoal: strings.TrimSpace(out.NormalizedGoal)}
	if res.NormalizedGoal == "" {
		res.NormalizedGoal = in.Goal
	}
	for _, c := range out.Competencies {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		res.Items = append(res.Items, c)
	}
	return res, nil
}

type dagOutput struct {
	Summary string `json:"summary"`
	Nodes   []struct {
		ID string `json:"id"`
		nodeOutput
	} `json:"nodes"`
	Edges []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"edges"`
}

type nodeOutput struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	NodeType         string   `json:"node_type"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Tags             []string `json:"tags"`
}

func (o nodeOutput) content() pathgraph.Content {
	return pathgraph.Content{
		Title:            strings.TrimSpace(o.Title),
		Description:      strings.TrimSpace(o.Description),
		Type:             pathgraph.ParseNodeType(o.NodeType),
		EstimatedMinutes: max(o.EstimatedMinutes, 0),
		Tags:             o.Tags,
	}
}

func (g *LLM) BuildDag(ctx context.Context, in DagInput) (*Dag, error) {
	fallback := &Dag{}

	var out dagOutput
	req := g.request(dagSystemPrompt, buildDagUserMessage(in), DagSchema, g.cfg.Temperature)
	if err := g.generate(ctx, "build-dag", req, &out); err != nil {
		return fallback, err
	}

	dag, err := normalizeDag(out)
	if err != nil {
		err = fmt.Errorf("build dag: %w: %w", ErrMalformedOutput, err)
		g.degraded(ctx, "build-dag", err)
		return fallback, err
	}
	return dag, nil
}

// normalizeDag drops edges to unknown local IDs and collapses duplicate
// edges. Duplicate node IDs and cycles make the whole DAG unusable.
func normalizeDag(out dagOutput) (*Dag, error) {
	dag := &Dag{Summary: strings.TrimSpace(out.Summary)}
	g := pathgraph.New("proposal")

	for _, n := range out.Nodes {
		id := strings.TrimSpace(n.ID)
		c := n.content()
		if id == "" || c.Title == "" {
			continue
		}
		if err := g.AddNode(pathgraph.Node{ID: id, Content: c}); err != nil {
			return nil, err
		}
		dag.Nodes = append(dag.Nodes, DagNode{LocalID: id, Content: c})
	}

	for _, e := range out.Edges {
		from, to := strings.TrimSpace(e.From), strings.TrimSpace(e.To)
		if !g.Has(from) || !g.Has(to) || g.HasEdge(from, to) {
			continue
		}
		if err := g.AddEdge(from, to); err != nil {
			return nil, err
		}
		dag.Edges = append(dag.Edges, DagEdge{From: from, To: to})
	}
	return dag, nil
}

type dagQualityOutput struct {
	DimensionScores []DimensionScore `json:"dimension_scores"`
	OverallScore    float64          `json:"overall_score"`
	Summary         string           `json:"summary"`
}

func (g *LLM) EvaluateDag(ctx context.Context, in DagQualityInput) (*DagQuality, error) {
	fallback := &DagQuality{Score: FallbackDagScore}
	if in.Dag == nil {
		in.Dag = &Dag{}
	}

	var out dagQualityOutput
	req := g.request(dagQualitySystemPrompt, buildDagQualityUserMessage(in), DagQualitySchema, 0)
	if err := g.generate(ctx, "evaluate-dag", req, &out); err != nil {
		return fallback, err
	}
	return &DagQuality{
		Score:      out.OverallScore,
		Dimensions: out.DimensionScores,
		Summary:    strings.TrimSpace(out.Summary),
	}, nil
}

type challengeOutput struct {
	ChallengeType         string          `json:"challenge_type"`
	Prompt                string          `json:"prompt"`
	ExpectedAnswerOutline []string        `json:"expected_answer_outline"`
	Rubric                json.RawMessage `json:"rubric"`
	Difficulty            string          `json:"difficulty"`
}

func (g *LLM) GenerateChallenge(ctx context.Context, in ChallengeInput) (*Challenge, error) {
	var out challengeOutput
	req := g.request(challengeSystemPrompt, buildChallengeUserMessage(in), ChallengeSchema, g.cfg.Temperature)
	if err := g.generate(ctx, "generate-challenge", req, &out); err != nil {
		return FallbackChallenge(in.Node), err
	}
	if strings.TrimSpace(out.Prompt) == "" {
		err := fmt.Errorf("generate challenge: %w: empty prompt", ErrMalformedOutput)
		g.degraded(ctx, "generate-challenge", err)
		return FallbackChallenge(in.Node), err
	}
	return &Challenge{
		Type:            out.ChallengeType,
		Prompt:          strings.TrimSpace(out.Prompt),
		ExpectedOutline: out.ExpectedAnswerOutline,
		Rubric:          out.Rubric,
		Difficulty:      out.Difficulty,
	}, nil
}

// FallbackChallenge is the challenge used when none could be generated.
func FallbackChallenge(node pathgraph.Content) *Challenge {
	return &Challenge{
		Type:   "comprehension_test",
		Prompt: fmt.Sprintf("Explain %q in your own words and give one concrete example of applying it.", node.Title),
		ExpectedOutline: []string{
			"States the core idea accurately",
			"Gives a relevant, concrete example",
		},
		Rubric:     json.RawMessage(`{"dimensions":[{"name":"Correctness","description":"The explanation is accurate"},{"name":"Clarity","description":"The explanation is easy to follow"}],"scoring_scale":"0-5"}`),
		Difficulty: "medium",
	}
}

type gradeOutput struct {
	DimensionScores  []DimensionScore `json:"dimension_scores"`
	OverallScore     float64          `json:"overall_score"`
	Pass             bool             `json:"pass"`
	FeedbackSummary  string           `json:"feedback_summary"`
	Suggestions      []string         `json:"suggestions"`
	RemediationTopic string           `json:"remediation_topic"`
}

// FallbackGrade is the grade used when an answer could not be graded.
func FallbackGrade() *Grade {
	return &Grade{
		Score:    0,
		Passed:   false,
		Feedback: "Could not grade this answer. Please try again.",
	}
}

func (g *LLM) GradeAnswer(ctx context.Context, in GradeInput) (*Grade, error) {
	var out gradeOutput
	req := g.request(gradeSystemPrompt, buildGradeUserMessage(in), GradeSchema, 0)
	if err := g.generate(ctx, "grade-answer", req, &out); err != nil {
		return FallbackGrade(), err
	}
	return &Grade{
		Score:            out.OverallScore,
		Passed:           out.Pass,
		Feedback:         strings.TrimSpace(out.FeedbackSummary),
		Hints:            out.Suggestions,
		Dimensions:       out.DimensionScores,
		RemediationTopic: strings.TrimSpace(out.RemediationTopic),
	}, nil
}

func (g *LLM) SynthesizeRemedialNode(ctx context.Context, in RemedialInput) (*pathgraph.Content, error) {
	var out nodeOutput
	req := g.request(remedialSystemPrompt, buildRemedialUserMessage(in), RemedialNodeSchema, g.cfg.Temperature)
	if err := g.generate(ctx, "synthesize-remedial-node", req, &out); err != nil {
		return nil, err
	}
	c := out.content()
	if c.Title == "" {
		err := fmt.Errorf("synthesize remedial node: %w: empty title", ErrMalformedOutput)
		g.degraded(ctx, "synthesize-remedial-node", err)
		return nil, err
	}
	return &c, nil
}

func (g *LLM) request(system, user string, schema *llm.Schema, temperature float64) llm.Request {
	req := llm.NewRequest(system, user, schema, g.cfg.MaxTokens)
	req.Temperature = temperature
	return req
}

// generate runs one provider call under the gateway timeout and decodes
// the validated content into out. Errors come back wrapped in
// ErrUnavailable or ErrMalformedOutput and are reported as degradations.
func (g *LLM) generate(ctx context.Context, op string, req llm.Request, out any) (err error) {
	ctx, finish := g.obs.Start(ctx, "gateway."+op)
	defer func() { finish(err) }()

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, op)

	resp, genErr := g.provider.Generate(ctx, req)
	switch {
	case genErr == nil:
		if jsonErr := json.Unmarshal(resp.Content, out); jsonErr != nil {
			err = fmt.Errorf("%s: %w: %w", op, ErrMalformedOutput, jsonErr)
		}
	case llm.IsMalformed(genErr):
		err = fmt.Errorf("%s: %w: %w", op, ErrMalformedOutput, genErr)
	default:
		err = fmt.Errorf("%s: %w: %w", op, ErrUnavailable, genErr)
	}
	if err != nil {
		g.degraded(ctx, op, err)
	}
	return err
}

func (g *LLM) degraded(ctx context.Context, op string, err error) {
	g.obs.Event(ctx, observe.EventGatewayDegraded,
		observe.String("op", op),
		observe.String("reason", Reason(err)),
		observe.String("error", err.Error()),
	)
}

// IsFallback reports whether err marks a gateway fallback value.
func IsFallback(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrMalformedOutput)
}
