package httpapi

import (
	"encoding/json"
	"time"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

type createPathRequest struct {
	Goal        string `json:"goal" binding:"required"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	Level       string `json:"level"`
	Background  string `json:"background"`
}

type submitRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type remediateRequest struct {
	Topic string `json:"topic"`
}

type nodeJSON struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Type             string   `json:"type"`
	EstimatedMinutes int      `json:"estimated_minutes,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	RemediatesID     string   `json:"remediates_id,omitempty"`
}

func toNode(n pathgraph.Node) nodeJSON {
	return nodeJSON{
		ID:               n.ID,
		Title:            n.Title,
		Description:      n.Description,
		Type:             string(n.Type),
		EstimatedMinutes: n.EstimatedMinutes,
		Tags:             n.Tags,
		RemediatesID:     n.RemediatesID,
	}
}

type edgeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type pathJSON struct {
	ID          string     `json:"id"`
	Goal        string     `json:"goal"`
	Description string     `json:"description,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	Level       string     `json:"level,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Quality     *float64   `json:"quality,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Nodes       []nodeJSON `json:"nodes,omitempty"`
	Edges       []edgeJSON `json:"edges,omitempty"`
	Degraded    bool       `json:"degraded,omitempty"`
}

func toPathSummary(p store.Path) pathJSON {
	return pathJSON{
		ID:          p.ID,
		Goal:        p.Goal,
		Description: p.Description,
		Domain:      p.Domain,
		Level:       p.Level,
		Summary:     p.Summary,
		Quality:     p.Quality,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toPath(p *curriculum.Path) pathJSON {
	out := toPathSummary(p.Path)
	out.Degraded = p.Degraded
	out.Nodes = make([]nodeJSON, len(p.Nodes))
	for i, n := range p.Nodes {
		out.Nodes[i] = toNode(n)
	}
	out.Edges = make([]edgeJSON, len(p.Edges))
	for i, e := range p.Edges {
		out.Edges[i] = edgeJSON{From: e.From, To: e.To}
	}
	return out
}

type nodeProgressJSON struct {
	Node      nodeJSON `json:"node"`
	Status    string   `json:"status"`
	Attempts  int      `json:"attempts"`
	LastScore *float64 `json:"last_score"`
}

type progressJSON struct {
	PathID          string             `json:"path_id"`
	Goal            string             `json:"goal"`
	Nodes           []nodeProgressJSON `json:"nodes"`
	Completed       int                `json:"completed"`
	Total           int                `json:"total"`
	CompletionRatio float64            `json:"completion_ratio"`
}

func toProgress(v *curriculum.ProgressView) progressJSON {
	out := progressJSON{
		PathID:          v.PathID,
		Goal:            v.Goal,
		Nodes:           make([]nodeProgressJSON, len(v.Nodes)),
		Completed:       v.Completed,
		Total:           v.Total,
		CompletionRatio: v.CompletionRatio,
	}
	for i, np := range v.Nodes {
		out.Nodes[i] = nodeProgressJSON{
			Node:      toNode(np.Node),
			Status:    string(np.Status),
			Attempts:  np.Attempts,
			LastScore: np.LastScore,
		}
	}
	return out
}

type challengeJSON struct {
	ID              string          `json:"id"`
	PathID          string          `json:"path_id"`
	NodeID          string          `json:"node_id"`
	Type            string          `json:"type"`
	Prompt          string          `json:"prompt"`
	ExpectedOutline []string        `json:"expected_outline,omitempty"`
	Rubric          json.RawMessage `json:"rubric,omitempty"`
	Difficulty      string          `json:"difficulty,omitempty"`
	Status          string          `json:"status"`
	Attempts        int             `json:"attempts"`
}

func toChallenge(ch *curriculum.IssuedChallenge) challengeJSON {
	return challengeJSON{
		ID:              ch.ID,
		PathID:          ch.PathID,
		NodeID:          ch.NodeID,
		Type:            ch.Type,
		Prompt:          ch.Prompt,
		ExpectedOutline: ch.ExpectedOutline,
		Rubric:          ch.Rubric,
		Difficulty:      ch.Difficulty,
		Status:          string(ch.Record.Status),
		Attempts:        ch.Record.Attempts,
	}
}

type remediationJSON struct {
	Applied   bool      `json:"applied"`
	Abandoned string    `json:"abandoned,omitempty"`
	Node      *nodeJSON `json:"node,omitempty"`
	Status    string    `json:"status"`
}

func toRemediation(o *remediation.Outcome) *remediationJSON {
	if o == nil {
		return nil
	}
	out := &remediationJSON{Applied: o.Applied, Abandoned: o.Abandoned, Status: string(o.Record.Status)}
	if o.Node != nil {
		n := toNode(*o.Node)
		out.Node = &n
	}
	return out
}

type submitJSON struct {
	AttemptID        int64            `json:"attempt_id"`
	Attempt          int              `json:"attempt"`
	Score            float64          `json:"score"`
	Passed           bool             `json:"passed"`
	Feedback         string           `json:"feedback"`
	Hints            []string         `json:"hints,omitempty"`
	RemediationTopic string           `json:"remediation_topic,omitempty"`
	Status           string           `json:"status"`
	Previous         string           `json:"previous_status"`
	Degraded         bool             `json:"degraded,omitempty"`
	Remediation      *remediationJSON `json:"remediation,omitempty"`
}

func toSubmit(r *curriculum.SubmitResult) submitJSON {
	return submitJSON{
		AttemptID:        r.Attempt.ID,
		Attempt:          r.Attempt.Number,
		Score:            r.Attempt.Score,
		Passed:           r.Grade.Passed,
		Feedback:         r.Grade.Feedback,
		Hints:            r.Grade.Hints,
		RemediationTopic: r.Grade.RemediationTopic,
		Status:           string(r.Status),
		Previous:         string(r.Previous),
		Degraded:         r.Degraded,
		Remediation:      toRemediation(r.Remediation),
	}
}
