package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table layout, declared the way ent's generated migrate package declares
// it so that schema.Migrate can create and evolve the tables.
var (
	pathsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "goal", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true},
		{Name: "domain", Type: field.TypeString, Nullable: true},
		{Name: "level", Type: field.TypeString, Nullable: true},
		{Name: "summary", Type: field.TypeString, Nullable: true},
		{Name: "quality", Type: field.TypeFloat64, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	pathsTable = &schema.Table{
		Name:       "paths",
		Columns:    pathsColumns,
		PrimaryKey: []*schema.Column{pathsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "paths_user_id", Columns: []*schema.Column{pathsColumns[1]}},
		},
	}

	nodesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "seq", Type: field.TypeInt},
		{Name: "title", Type: field.TypeString},
		{Name: "description", Type: field.TypeString},
		{Name: "node_type", Type: field.TypeEnum, Enums: []string{"concept", "skill", "project", "meta"}},
		{Name: "estimated_minutes", Type: field.TypeInt},
		{Name: "tags", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "path_id", Type: field.TypeString},
		{Name: "remediates_node_id", Type: field.TypeString, Nullable: true},
	}
	nodesTable = &schema.Table{
		Name:       "nodes",
		Columns:    nodesColumns,
		PrimaryKey: []*schema.Column{nodesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "nodes_paths_nodes",
				Columns:    []*schema.Column{nodesColumns[8]},
				RefColumns: []*schema.Column{pathsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "nodes_nodes_remedial",
				Columns:    []*schema.Column{nodesColumns[9]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "nodes_path_id_seq", Unique: true, Columns: []*schema.Column{nodesColumns[8], nodesColumns[1]}},
			{Name: "nodes_remediates_node_id", Columns: []*schema.Column{nodesColumns[9]}},
		},
	}

	edgesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "path_id", Type: field.TypeString},
		{Name: "from_id", Type: field.TypeString},
		{Name: "to_id", Type: field.TypeString},
	}
	edgesTable = &schema.Table{
		Name:       "edges",
		Columns:    edgesColumns,
		PrimaryKey: []*schema.Column{edgesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "edges_paths_edges",
				Columns:    []*schema.Column{edgesColumns[1]},
				RefColumns: []*schema.Column{pathsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "edges_nodes_out",
				Columns:    []*schema.Column{edgesColumns[2]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "edges_nodes_in",
				Columns:    []*schema.Column{edgesColumns[3]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "edges_from_id_to_id", Unique: true, Columns: []*schema.Column{edgesColumns[2], edgesColumns[3]}},
			{Name: "edges_to_id", Columns: []*schema.Column{edgesColumns[3]}},
		},
	}

	progressColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"not_started", "in_progress", "completed", "blocked"}},
		{Name: "attempts", Type: field.TypeInt},
		{Name: "last_score", Type: field.TypeFloat64, Nullable: true},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "path_id", Type: field.TypeString},
		{Name: "node_id", Type: field.TypeString},
	}
	progressTable = &schema.Table{
		Name:       "progress",
		Columns:    progressColumns,
		PrimaryKey: []*schema.Column{progressColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "progress_paths_progress",
				Columns:    []*schema.Column{progressColumns[6]},
				RefColumns: []*schema.Column{pathsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "progress_nodes_progress",
				Columns:    []*schema.Column{progressColumns[7]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "progress_user_id_node_id", Unique: true, Columns: []*schema.Column{progressColumns[1], progressColumns[7]}},
			{Name: "progress_user_id_path_id", Columns: []*schema.Column{progressColumns[1], progressColumns[6]}},
		},
	}

	challengesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "challenge_type", Type: field.TypeString, Nullable: true},
		{Name: "prompt", Type: field.TypeString},
		{Name: "expected_outline", Type: field.TypeJSON},
		{Name: "rubric", Type: field.TypeJSON},
		{Name: "difficulty", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "path_id", Type: field.TypeString},
		{Name: "node_id", Type: field.TypeString},
	}
	challengesTable = &schema.Table{
		Name:       "challenges",
		Columns:    challengesColumns,
		PrimaryKey: []*schema.Column{challengesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "challenges_paths_challenges",
				Columns:    []*schema.Column{challengesColumns[7]},
				RefColumns: []*schema.Column{pathsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "challenges_nodes_challenge",
				Columns:    []*schema.Column{challengesColumns[8]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "challenges_node_id", Unique: true, Columns: []*schema.Column{challengesColumns[8]}},
		},
	}

	attemptsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "number", Type: field.TypeInt},
		{Name: "answer", Type: field.TypeString},
		{Name: "score", Type: field.TypeFloat64},
		{Name: "passed", Type: field.TypeBool},
		{Name: "feedback", Type: field.TypeString, Nullable: true},
		{Name: "remediation_topic", Type: field.TypeString, Nullable: true},
		{Name: "degraded", Type: field.TypeBool},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "challenge_id", Type: field.TypeString},
		{Name: "node_id", Type: field.TypeString},
	}
	attemptsTable = &schema.Table{
		Name:       "attempts",
		Columns:    attemptsColumns,
		PrimaryKey: []*schema.Column{attemptsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "attempts_challenges_attempts",
				Columns:    []*schema.Column{attemptsColumns[10]},
				RefColumns: []*schema.Column{challengesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "attempts_nodes_attempts",
				Columns:    []*schema.Column{attemptsColumns[11]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "attempts_user_id_node_id", Columns: []*schema.Column{attemptsColumns[1], attemptsColumns[11]}},
		},
	}

	remediationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "topic", Type: field.TypeString},
		{Name: "kind", Type: field.TypeEnum, Enums: []string{"auto", "manual"}},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "path_id", Type: field.TypeString},
		{Name: "node_id", Type: field.TypeString},
		{Name: "remedial_node_id", Type: field.TypeString},
	}
	remediationsTable = &schema.Table{
		Name:       "remediations",
		Columns:    remediationsColumns,
		PrimaryKey: []*schema.Column{remediationsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "remediations_paths_remediations",
				Columns:    []*schema.Column{remediationsColumns[5]},
				RefColumns: []*schema.Column{pathsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "remediations_nodes_struggling",
				Columns:    []*schema.Column{remediationsColumns[6]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "remediations_nodes_inserted",
				Columns:    []*schema.Column{remediationsColumns[7]},
				RefColumns: []*schema.Column{nodesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "remediations_path_id", Columns: []*schema.Column{remediationsColumns[5]}},
		},
	}

	llmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString},
		{Name: "request_body", Type: field.TypeString},
		{Name: "response_body", Type: field.TypeString},
	}
	llmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmRequestEventsColumns,
		PrimaryKey: []*schema.Column{llmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llm_request_events_purpose", Columns: []*schema.Column{llmRequestEventsColumns[4]}},
			{Name: "llm_request_events_timestamp", Columns: []*schema.Column{llmRequestEventsColumns[1]}},
		},
	}

	tables = []*schema.Table{
		pathsTable,
		nodesTable,
		edgesTable,
		progressTable,
		challengesTable,
		attemptsTable,
		remediationsTable,
		llmRequestEventsTable,
	}
)

func init() {
	nodesTable.ForeignKeys[0].RefTable = pathsTable
	nodesTable.ForeignKeys[1].RefTable = nodesTable
	edgesTable.ForeignKeys[0].RefTable = pathsTable
	edgesTable.ForeignKeys[1].RefTable = nodesTable
	edgesTable.ForeignKeys[2].RefTable = nodesTable
	progressTable.ForeignKeys[0].RefTable = pathsTable
	progressTable.ForeignKeys[1].RefTable = nodesTable
	challengesTable.ForeignKeys[0].RefTable = pathsTable
	challengesTable.ForeignKeys[1].RefTable = nodesTable
	attemptsTable.ForeignKeys[0].RefTable = challengesTable
	attemptsTable.ForeignKeys[1].RefTable = nodesTable
	remediationsTable.ForeignKeys[0].RefTable = pathsTable
	remediationsTable.ForeignKeys[1].RefTable = nodesTable
	remediationsTable.ForeignKeys[2].RefTable = nodesTable
}

// migrate creates or updates every table.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
