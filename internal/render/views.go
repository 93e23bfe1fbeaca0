package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/pathgraph"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/store"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 60

// Progress renders a path's per-node status list and completion bar.
func Progress(v *curriculum.ProgressView, width int) string {
	var sb strings.Builder
	sb.WriteString(Title.Render(v.Goal))
	sb.WriteString("\n")
	sb.WriteString(ProgressBar{
		Label:       fmt.Sprintf("%d/%d", v.Completed, v.Total),
		Percent:     v.CompletionRatio,
		ShowPercent: true,
		Width:       width,
	}.View())
	sb.WriteString("\n\n")

	if len(v.Nodes) == 0 {
		sb.WriteString(Hint.Render("This path has no nodes."))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, np := range v.Nodes {
		style := statusStyle(np.Status)
		line := fmt.Sprintf("%s %s", style.Render(statusIcon(np.Status)), nodeLabel(np.Node))
		if np.Attempts > 0 {
			line += Subtitle.Render(fmt.Sprintf("  %d attempt(s)", np.Attempts))
		}
		if np.LastScore != nil {
			line += Subtitle.Render(fmt.Sprintf("  score %.2f", *np.LastScore))
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(Hint.Render("  " + np.Node.ID + "  " + string(np.Status)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func nodeLabel(n pathgraph.Node) string {
	label := Body.Render(n.Title)
	if n.IsRemedial() {
		label = Remedial.Render("↺ ") + label
	}
	return label
}

// Path renders a path header with its nodes and prerequisite edges.
func Path(p *curriculum.Path) string {
	titles := make(map[string]string, len(p.Nodes))
	for _, n := range p.Nodes {
		titles[n.ID] = n.Title
	}

	var sb strings.Builder
	sb.WriteString(Title.Render(p.Goal))
	sb.WriteString("\n")
	sb.WriteString(Subtitle.Render(p.ID))
	sb.WriteString("\n")
	if p.Summary != "" {
		sb.WriteString(Body.Render(p.Summary))
		sb.WriteString("\n")
	}
	if p.Quality != nil {
		sb.WriteString(Hint.Render(fmt.Sprintf("Path quality: %.0f%%", *p.Quality*100)))
		sb.WriteString("\n")
	}
	if p.Degraded {
		sb.WriteString(Incorrect.Render("Content generation failed; the path was created empty."))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	for i, n := range p.Nodes {
		sb.WriteString(fmt.Sprintf("%2d. %s %s\n", i+1, nodeLabel(n), Hint.Render("("+string(n.Type)+", "+n.ID+")")))
	}
	if len(p.Edges) > 0 {
		sb.WriteString("\n")
		sb.WriteString(Subtitle.Render("Prerequisites"))
		sb.WriteString("\n")
		for _, e := range p.Edges {
			sb.WriteString(fmt.Sprintf("  %s → %s\n", titles[e.From], titles[e.To]))
		}
	}
	return sb.String()
}

// Paths renders a list of paths, newest first.
func Paths(paths []store.Path) string {
	if len(paths) == 0 {
		return Hint.Render("No paths yet.") + "\n"
	}
	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(fmt.Sprintf("%s  %s  %s\n",
			Subtitle.Render(p.ID),
			Body.Render(p.Goal),
			Hint.Render(p.UpdatedAt.Local().Format("2006-01-02 15:04")),
		))
	}
	return sb.String()
}

// Challenge renders an issued challenge.
func Challenge(ch *curriculum.IssuedChallenge) string {
	var sb strings.Builder
	sb.WriteString(Subtitle.Render(fmt.Sprintf("Challenge %s (%s, %s)", ch.ID, ch.Type, ch.Difficulty)))
	sb.WriteString("\n")
	sb.WriteString(Card.Render(Body.Render(ch.Prompt)))
	sb.WriteString("\n")
	if len(ch.ExpectedOutline) > 0 {
		sb.WriteString(Hint.Render("A good answer covers:"))
		sb.WriteString("\n")
		for _, item := range ch.ExpectedOutline {
			sb.WriteString(Hint.Render("  - " + item))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Submission renders a graded attempt and any intervention it triggered.
func Submission(res *curriculum.SubmitResult) string {
	var sb strings.Builder
	verdict := Incorrect.Render("✗ Not yet")
	if res.Grade.Passed {
		verdict = Correct.Render("✓ Passed")
	}
	sb.WriteString(fmt.Sprintf("%s  %s\n", verdict, Subtitle.Render(fmt.Sprintf("score %.2f, attempt %d", res.Attempt.Score, res.Attempt.Number))))
	if res.Degraded {
		sb.WriteString(Hint.Render("The grader was unavailable; this attempt was recorded as a failure."))
		sb.WriteString("\n")
	}
	if res.Grade.Feedback != "" {
		sb.WriteString(Body.Render(res.Grade.Feedback))
		sb.WriteString("\n")
	}
	for _, h := range res.Grade.Hints {
		sb.WriteString(Hint.Render("  • " + h))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Status: %s\n", statusStyle(res.Status).Render(string(res.Status))))
	if res.Remediation != nil {
		sb.WriteString(Remediation(res.Remediation))
	}
	return sb.String()
}

// Remediation renders the outcome of an intervention.
func Remediation(o *remediation.Outcome) string {
	if !o.Applied {
		return Incorrect.Render("Remediation abandoned: "+o.Abandoned) + "\n"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		Remedial.Render("↺ Added a prerequisite: "+o.Node.Title),
		Hint.Render("  "+o.Node.ID),
	) + "\n"
}
