package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type challengeRepo struct {
	q dialect.ExecQuerier
}

var challengeColumnNames = []string{"id", "path_id", "node_id", "challenge_type", "prompt", "expected_outline", "rubric", "difficulty", "created_at"}

func (r *challengeRepo) Create(ctx context.Context, c *Challenge) error {
	outline, err := toJSON(nonNil(c.ExpectedOutline))
	if err != nil {
		return fmt.Errorf("encode outline: %w", err)
	}
	rubric := string(c.Rubric)
	if rubric == "" {
		rubric = "{}"
	}
	stmt := builder.Insert(challengesTable.Name).
		Columns(challengeColumnNames...).
		Values(c.ID, c.PathID, c.NodeID, nullString(c.Type), c.Prompt, outline, rubric, nullString(c.Difficulty), c.CreatedAt)
	if _, err := execStmt(ctx, r.q, stmt); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (r *challengeRepo) Get(ctx context.Context, id string) (*Challenge, error) {
	cs, err := r.query(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, fmt.Errorf("challenge %q: %w", id, ErrNotFound)
	}
	return &cs[0], nil
}

func (r *challengeRepo) FindForNode(ctx context.Context, nodeID string) (*Challenge, error) {
	cs, err := r.query(ctx, entsql.EQ("node_id", nodeID))
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, nil
	}
	return &cs[0], nil
}

func (r *challengeRepo) query(ctx context.Context, pred *entsql.Predicate) ([]Challenge, error) {
	stmt := builder.Select(challengeColumnNames...).
		From(entsql.Table(challengesTable.Name)).
		Where(pred)
	var cs []Challenge
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			c               Challenge
			typ, difficulty sql.NullString
			outline, rubric string
		)
		if err := rows.Scan(&c.ID, &c.PathID, &c.NodeID, &typ, &c.Prompt, &outline, &rubric, &difficulty, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan challenge: %w", err)
		}
		c.Type = typ.String
		c.Difficulty = difficulty.String
		if err := json.Unmarshal([]byte(outline), &c.ExpectedOutline); err != nil {
			return fmt.Errorf("decode outline of challenge %s: %w", c.ID, err)
		}
		c.Rubric = json.RawMessage(rubric)
		cs = append(cs, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	return cs, nil
}
