package pathgraph

import "strings"

// NodeType classifies a unit of learning.
type NodeType string

const (
	TypeConcept NodeType = "concept"
	TypeSkill   NodeType = "skill"
	TypeProject NodeType = "project"
	TypeMeta    NodeType = "meta"
)

// AllNodeTypes returns the node types in display order.
func AllNodeTypes() []NodeType {
	return []NodeType{TypeConcept, TypeSkill, TypeProject, TypeMeta}
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case TypeConcept, TypeSkill, TypeProject, TypeMeta:
		return true
	}
	return false
}

// ParseNodeType normalizes s to a NodeType. Unknown or empty values
// fall back to TypeConcept.
func ParseNodeType(s string) NodeType {
	t := NodeType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeConcept
}

// Content is the descriptive payload of a node, as produced by the
// content gateway.
type Content struct {
	Title            string
	Description      string
	Type             NodeType
	EstimatedMinutes int
	Tags             []string
}

// Node is a vertex of a learning path.
type Node struct {
	ID     string
	PathID string
	Content

	// RemediatesID is set on nodes inserted by remediation and names the
	// node they were spliced in front of.
	RemediatesID string
}

// IsRemedial reports whether the node was inserted by remediation.
func (n Node) IsRemedial() bool {
	return n.RemediatesID != ""
}

// Edge is a prerequisite relation: From must be completed before To.
type Edge struct {
	From string
	To   string
}
