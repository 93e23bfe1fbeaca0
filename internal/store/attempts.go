package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type attemptRepo struct {
	q dialect.ExecQuerier
}

var attemptColumnNames = []string{"challenge_id", "user_id", "node_id", "number", "answer", "score", "passed", "feedback", "remediation_topic", "degraded", "created_at"}

func (r *attemptRepo) Append(ctx context.Context, a *Attempt) error {
	stmt := builder.Insert(attemptsTable.Name).
		Columns(attemptColumnNames...).
		Values(a.ChallengeID, a.UserID, a.NodeID, a.Number, a.Answer, a.Score, a.Passed,
			nullString(a.Feedback), nullString(a.RemediationTopic), a.Degraded, a.CreatedAt)
	res, err := execStmt(ctx, r.q, stmt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("attempt id: %w", err)
	}
	a.ID = id
	return nil
}

func (r *attemptRepo) ListForNode(ctx context.Context, userID, nodeID string) ([]Attempt, error) {
	stmt := builder.Select(append([]string{"id"}, attemptColumnNames...)...).
		From(entsql.Table(attemptsTable.Name)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("node_id", nodeID))).
		OrderBy("id")
	var out []Attempt
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			a               Attempt
			feedback, topic sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ChallengeID, &a.UserID, &a.NodeID, &a.Number, &a.Answer, &a.Score, &a.Passed,
			&feedback, &topic, &a.Degraded, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan attempt: %w", err)
		}
		a.Feedback = feedback.String
		a.RemediationTopic = topic.String
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	return out, nil
}

type remediationRepo struct {
	q dialect.ExecQuerier
}

var remediationColumnNames = []string{"path_id", "user_id", "node_id", "remedial_node_id", "topic", "kind", "created_at"}

func (r *remediationRepo) Append(ctx context.Context, rem *Remediation) error {
	stmt := builder.Insert(remediationsTable.Name).
		Columns(remediationColumnNames...).
		Values(rem.PathID, rem.UserID, rem.NodeID, rem.RemedialNodeID, rem.Topic, string(rem.Kind), rem.CreatedAt)
	res, err := execStmt(ctx, r.q, stmt)
	if err != nil {
		return fmt.Errorf("insert remediation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("remediation id: %w", err)
	}
	rem.ID = id
	return nil
}

func (r *remediationRepo) ListForPath(ctx context.Context, pathID string) ([]Remediation, error) {
	stmt := builder.Select(append([]string{"id"}, remediationColumnNames...)...).
		From(entsql.Table(remediationsTable.Name)).
		Where(entsql.EQ("path_id", pathID)).
		OrderBy("id")
	var out []Remediation
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			rem  Remediation
			kind string
		)
		if err := rows.Scan(&rem.ID, &rem.PathID, &rem.UserID, &rem.NodeID, &rem.RemedialNodeID, &rem.Topic, &kind, &rem.CreatedAt); err != nil {
			return fmt.Errorf("scan remediation: %w", err)
		}
		rem.Kind = RemediationKind(kind)
		out = append(out, rem)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query remediations: %w", err)
	}
	return out, nil
}
