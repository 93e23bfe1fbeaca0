package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/traverse/internal/pathgraph"
)

type graphRepo struct {
	q dialect.ExecQuerier
}

var (
	nodeColumns       = []string{"id", "path_id", "seq", "title", "description", "node_type", "estimated_minutes", "tags", "remediates_node_id"}
	insertNodeColumns = append(nodeColumns[:len(nodeColumns):len(nodeColumns)], "created_at")
)

func (r *graphRepo) Load(ctx context.Context, pathID string) (*pathgraph.Graph, error) {
	var nodes []pathgraph.Node
	stmt := builder.Select(nodeColumns...).
		From(entsql.Table(nodesTable.Name)).
		Where(entsql.EQ("path_id", pathID)).
		OrderBy("seq")
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			n          pathgraph.Node
			seq        int
			nodeType   string
			tags       string
			remediates sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.PathID, &seq, &n.Title, &n.Description, &nodeType, &n.EstimatedMinutes, &tags, &remediates); err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		n.Type = pathgraph.ParseNodeType(nodeType)
		n.RemediatesID = remediates.String
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
				return fmt.Errorf("decode tags of node %s: %w", n.ID, err)
			}
		}
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	var edges []pathgraph.Edge
	stmt = builder.Select("from_id", "to_id").
		From(entsql.Table(edgesTable.Name)).
		Where(entsql.EQ("path_id", pathID)).
		OrderBy("id")
	err = queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var e pathgraph.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}

	g, err := pathgraph.Build(pathID, nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("rebuild graph for path %s: %w", pathID, err)
	}
	return g, nil
}

// Apply writes the delta between two versions of a path graph. Edges are
// removed before new ones are added so that a reroute never trips the
// unique (from_id, to_id) index.
func (r *graphRepo) Apply(ctx context.Context, before, after *pathgraph.Graph) error {
	if before.PathID() != after.PathID() {
		return fmt.Errorf("apply graph: path mismatch %s != %s", before.PathID(), after.PathID())
	}
	pathID := after.PathID()
	d := pathgraph.Diff(before, after)
	if d.Empty() {
		return nil
	}

	for _, e := range d.RemovedEdges {
		stmt := builder.Delete(edgesTable.Name).Where(entsql.And(
			entsql.EQ("from_id", e.From),
			entsql.EQ("to_id", e.To),
		))
		if _, err := execStmt(ctx, r.q, stmt); err != nil {
			return fmt.Errorf("delete edge %s -> %s: %w", e.From, e.To, err)
		}
	}

	if len(d.AddedNodes) > 0 {
		now := time.Now().UTC()
		stmt := builder.Insert(nodesTable.Name).
			Columns(insertNodeColumns...)
		seq := before.Len()
		for _, n := range d.AddedNodes {
			tags, err := toJSON(nonNil(n.Tags))
			if err != nil {
				return fmt.Errorf("encode tags of node %s: %w", n.ID, err)
			}
			stmt.Values(n.ID, pathID, seq, n.Title, n.Description, string(n.Type),
				n.EstimatedMinutes, tags, nullString(n.RemediatesID), now)
			seq++
		}
		if _, err := execStmt(ctx, r.q, stmt); err != nil {
			return fmt.Errorf("insert nodes: %w", err)
		}
	}

	if len(d.AddedEdges) > 0 {
		stmt := builder.Insert(edgesTable.Name).Columns("path_id", "from_id", "to_id")
		for _, e := range d.AddedEdges {
			stmt.Values(pathID, e.From, e.To)
		}
		if _, err := execStmt(ctx, r.q, stmt); err != nil {
			return fmt.Errorf("insert edges: %w", err)
		}
	}
	return nil
}

func (r *graphRepo) CountRemedial(ctx context.Context, nodeID string) (int, error) {
	stmt := builder.Select(entsql.Count("*")).
		From(entsql.Table(nodesTable.Name)).
		Where(entsql.EQ("remediates_node_id", nodeID))
	n, err := countStmt(ctx, r.q, stmt)
	if err != nil {
		return 0, fmt.Errorf("count remedial nodes: %w", err)
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
