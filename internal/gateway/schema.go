package gateway

import "github.com/abhisek/traverse/internal/llm"

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

// CompetencySchema defines the JSON schema for competency derivation.
var CompetencySchema = &llm.Schema{
	Name:        "competencies",
	Description: "The competencies a learner needs to reach a goal",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"normalized_goal": map[string]any{
				"type":        "string",
				"description": "The goal restated in one clear sentence",
			},
			"competencies": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":            map[string]any{"type": "string", "description": "Short local id, e.g. c1"},
						"name":          map[string]any{"type": "string", "description": "Short name of the competency"},
						"description":   map[string]any{"type": "string", "description": "1-3 sentence explanation"},
						"type":          map[string]any{"type": "string", "enum": []any{"technical", "conceptual", "soft-skill", "meta"}},
						"example_tasks": stringList,
					},
					"required":             []any{"id", "name", "description", "type", "example_tasks"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"normalized_goal", "competencies"},
		"additionalProperties": false,
	},
}

var nodeContentProperties = map[string]any{
	"title":       map[string]any{"type": "string", "description": "Short title (3-8 words)"},
	"description": map[string]any{"type": "string", "description": "What the learner studies or builds in this unit"},
	"node_type": map[string]any{
		"type":        "string",
		"description": "One of concept, skill, project, meta",
	},
	"estimated_minutes": map[string]any{"type": "integer", "minimum": 0},
	"tags":              stringList,
}

// DagSchema defines the JSON schema for learning DAG construction.
var DagSchema = &llm.Schema{
	Name:        "learning-dag",
	Description: "Learning units and their prerequisite edges",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "2-3 sentence summary of the path",
			},
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": withProperty(nodeContentProperties, "id",
						map[string]any{"type": "string", "description": "Local id, e.g. n1"}),
					"required":             []any{"id", "title", "description", "node_type", "estimated_minutes", "tags"},
					"additionalProperties": false,
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from": map[string]any{"type": "string", "description": "Local id of the prerequisite"},
						"to":   map[string]any{"type": "string", "description": "Local id of the dependent node"},
					},
					"required":             []any{"from", "to"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"summary", "nodes", "edges"},
		"additionalProperties": false,
	},
}

var dimensionScores = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":    map[string]any{"type": "string"},
			"score":   map[string]any{"type": "integer", "minimum": 0, "maximum": 5},
			"comment": map[string]any{"type": "string"},
		},
		"required":             []any{"name", "score", "comment"},
		"additionalProperties": false,
	},
}

// DagQualitySchema defines the JSON schema for judging a learning DAG.
var DagQualitySchema = &llm.Schema{
	Name:        "dag-quality",
	Description: "Quality judgement of a learning DAG",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dimension_scores": dimensionScores,
			"overall_score": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "Overall score from 0.0 to 1.0",
			},
			"summary": map[string]any{"type": "string", "description": "Brief evaluation summary"},
		},
		"required":             []any{"dimension_scores", "overall_score", "summary"},
		"additionalProperties": false,
	},
}

// ChallengeSchema defines the JSON schema for challenge generation.
var ChallengeSchema = &llm.Schema{
	Name:        "challenge",
	Description: "A proof-of-competency challenge for one learning unit",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"challenge_type": map[string]any{
				"type": "string",
				"enum": []any{"artefact_creation", "critique", "scenario_decision", "comprehension_test"},
			},
			"prompt": map[string]any{
				"type":        "string",
				"description": "Full instruction to the learner",
			},
			"expected_answer_outline": stringList,
			"rubric": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dimensions": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name":        map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
							},
							"required":             []any{"name", "description"},
							"additionalProperties": false,
						},
					},
					"scoring_scale": map[string]any{"type": "string"},
				},
				"required":             []any{"dimensions", "scoring_scale"},
				"additionalProperties": false,
			},
			"difficulty": map[string]any{
				"type": "string",
				"enum": []any{"easy", "medium", "hard"},
			},
		},
		"required":             []any{"challenge_type", "prompt", "expected_answer_outline", "rubric", "difficulty"},
		"additionalProperties": false,
	},
}

// GradeSchema defines the JSON schema for answer grading.
var GradeSchema = &llm.Schema{
	Name:        "grade",
	Description: "Rubric-based grade of a learner's answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dimension_scores": dimensionScores,
			"overall_score": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "Overall score from 0.0 to 1.0",
			},
			"pass":             map[string]any{"type": "boolean"},
			"feedback_summary": map[string]any{"type": "string"},
			"suggestions":      stringList,
			"remediation_topic": map[string]any{
				"type":        "string",
				"description": "A missing prerequisite topic, or empty when none is warranted",
			},
		},
		"required":             []any{"dimension_scores", "overall_score", "pass", "feedback_summary", "suggestions", "remediation_topic"},
		"additionalProperties": false,
	},
}

// RemedialNodeSchema defines the JSON schema for remedial node synthesis.
var RemedialNodeSchema = &llm.Schema{
	Name:        "remedial-node",
	Description: "A small prerequisite learning unit for a struggling learner",
	Definition: map[string]any{
		"type":                 "object",
		"properties":           nodeContentProperties,
		"required":             []any{"title", "description", "node_type", "estimated_minutes", "tags"},
		"additionalProperties": false,
	},
}

func withProperty(props map[string]any, key string, def map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[key] = def
	return out
}
