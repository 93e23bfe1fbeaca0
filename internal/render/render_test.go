package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		filled  int
	}{
		{"empty", 0, 0},
		{"half", 0.5, 10},
		{"full", 1, 20},
		{"overflow", 1.7, 20},
		{"negative", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ansi.Strip(ProgressBar{Percent: tt.percent, Width: 20}.View())
			if got := strings.Count(out, "█"); got != tt.filled {
				t.Errorf("filled = %d, want %d (%q)", got, tt.filled, out)
			}
			if got := strings.Count(out, "█") + strings.Count(out, "░"); got != 20 {
				t.Errorf("bar width = %d, want 20", got)
			}
		})
	}
}

func TestProgressBarPercent(t *testing.T) {
	out := ansi.Strip(ProgressBar{Label: "1/4", Percent: 0.25, ShowPercent: true, Width: 30}.View())
	if !strings.HasPrefix(out, "1/4  ") {
		t.Errorf("missing label: %q", out)
	}
	if !strings.HasSuffix(out, "25%") {
		t.Errorf("missing percent: %q", out)
	}
}

func TestProgressView(t *testing.T) {
	score := 0.4
	v := &curriculum.ProgressView{
		Goal: "Learn SQL",
		Nodes: []curriculum.NodeProgress{
			{Node: pathgraph.Node{ID: "r1", Content: pathgraph.Content{Title: "Sets"}, RemediatesID: "n1"}, Status: progress.StatusNotStarted},
			{Node: pathgraph.Node{ID: "n1", Content: pathgraph.Content{Title: "Joins"}}, Status: progress.StatusBlocked, Attempts: 3, LastScore: &score},
		},
		Total: 2,
	}
	out := ansi.Strip(Progress(v, DefaultWidth))

	for _, want := range []string{"Learn SQL", "0/2", "↺ Sets", "✗ Joins", "3 attempt(s)", "score 0.40", "blocked"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressViewEmpty(t *testing.T) {
	out := ansi.Strip(Progress(&curriculum.ProgressView{Goal: "x"}, DefaultWidth))
	if !strings.Contains(out, "no nodes") {
		t.Errorf("expected empty hint:\n%s", out)
	}
}

func TestPathView(t *testing.T) {
	quality := 0.8
	p := &curriculum.Path{
		Path: store.Path{ID: "p1", Goal: "Learn SQL", Summary: "Tables first", Quality: &quality},
		Nodes: []pathgraph.Node{
			{ID: "a", Content: pathgraph.Content{Title: "Tables", Type: pathgraph.TypeConcept}},
			{ID: "b", Content: pathgraph.Content{Title: "Joins", Type: pathgraph.TypeSkill}},
		},
		Edges: []pathgraph.Edge{{From: "a", To: "b"}},
	}
	out := ansi.Strip(Path(p))
	for _, want := range []string{"Learn SQL", "Tables first", "Path quality: 80%", " 1. Tables", " 2. Joins", "Tables → Joins"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSubmissionView(t *testing.T) {
	res := &curriculum.SubmitResult{
		Attempt: store.Attempt{Number: 3, Score: 0.2},
		Grade:   gateway.Grade{Feedback: "Missing the join key", Hints: []string{"Review foreign keys"}},
		Status:  progress.StatusNotStarted,
		Remediation: &remediation.Outcome{
			Applied: true,
			Node:    &pathgraph.Node{ID: "r1", Content: pathgraph.Content{Title: "Keys"}},
		},
	}
	out := ansi.Strip(Submission(res))
	for _, want := range []string{"Not yet", "attempt 3", "Missing the join key", "Review foreign keys", "Added a prerequisite: Keys"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out = ansi.Strip(Remediation(&remediation.Outcome{Abandoned: remediation.ReasonSynthesisFailed}))
	if !strings.Contains(out, "synthesis_failed") {
		t.Errorf("abandoned outcome not shown: %q", out)
	}
}
