package pathgraph

import (
	"fmt"
	"strings"
)

// Overlay carries per-node state to style on a rendered graph.
type Overlay struct {
	// Status maps node ID to a progress status name such as "completed".
	Status map[string]string
}

var statusClasses = []struct {
	name string
	def  string
}{
	{"not_started", "fill:#eceff1,stroke:#90a4ae,color:#000"},
	{"in_progress", "fill:#fff8e1,stroke:#fbc02d,stroke-width:2px,color:#000"},
	{"completed", "fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000"},
	{"blocked", "fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000"},
}

// Mermaid renders the graph as a Mermaid flowchart. Remedial nodes are drawn
// as subroutines. When overlay is non-nil, nodes are classed by status.
func Mermaid(g *Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range g.nodes {
		opener, closer := "[", "]"
		if n.IsRemedial() {
			opener, closer = "[[", "]]"
		}
		label := n.Title
		if label == "" {
			label = n.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(n.ID), opener, escapeLabel(label), closer)
	}
	for _, e := range g.Edges() {
		arrow := "-->"
		if n, _ := g.Node(e.From); n.RemediatesID == e.To {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(e.From), arrow, mermaidID(e.To))
	}

	if overlay != nil && len(overlay.Status) > 0 {
		sb.WriteString("\n    %% Progress\n")
		for _, c := range statusClasses {
			fmt.Fprintf(&sb, "    classDef %s %s;\n", c.name, c.def)
		}
		for _, n := range g.nodes {
			if st, ok := overlay.Status[n.ID]; ok && st != "" {
				fmt.Fprintf(&sb, "    class %s %s;\n", mermaidID(n.ID), st)
			}
		}
	}
	return sb.String()
}

func mermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return "n_" + r.Replace(id)
}

// labelEscaper maps characters that end or restyle a quoted Mermaid label
// to entity codes. "#" goes first since every code starts with it.
var labelEscaper = strings.NewReplacer(
	"#", "#35;",
	"\"", "#quot;",
	"<", "#lt;",
	">", "#gt;",
	"`", "#96;",
)

// escapeLabel collapses whitespace runs, newlines included, to single spaces
// and escapes the label for use inside double quotes.
func escapeLabel(s string) string {
	return labelEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
