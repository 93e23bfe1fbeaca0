package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/traverse/internal/progress"
)

// progressRepo implements progress.Repo.
type progressRepo struct {
	q dialect.ExecQuerier
}

var progressColumnNames = []string{"user_id", "path_id", "node_id", "status", "attempts", "last_score", "updated_at"}

func (r *progressRepo) GetProgress(ctx context.Context, userID, nodeID string) (*progress.Record, error) {
	stmt := builder.Select(progressColumnNames...).
		From(entsql.Table(progressTable.Name)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("node_id", nodeID)))
	recs, err := r.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (r *progressRepo) InsertProgress(ctx context.Context, rec progress.Record) (bool, error) {
	stmt := builder.Insert(progressTable.Name).
		Columns(progressColumnNames...).
		Values(rec.UserID, rec.PathID, rec.NodeID, string(rec.Status), rec.Attempts, scoreValue(rec.LastScore), rec.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("user_id", "node_id"),
			entsql.DoNothing(),
		)
	res, err := execStmt(ctx, r.q, stmt)
	if err != nil {
		return false, fmt.Errorf("insert progress: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *progressRepo) UpdateProgress(ctx context.Context, rec progress.Record) error {
	stmt := builder.Update(progressTable.Name).
		Set("status", string(rec.Status)).
		Set("attempts", rec.Attempts).
		Set("last_score", scoreValue(rec.LastScore)).
		Set("updated_at", rec.UpdatedAt).
		Where(entsql.And(entsql.EQ("user_id", rec.UserID), entsql.EQ("node_id", rec.NodeID)))
	res, err := execStmt(ctx, r.q, stmt)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("progress for user %q node %q: %w", rec.UserID, rec.NodeID, ErrNotFound)
	}
	return nil
}

func (r *progressRepo) ListProgress(ctx context.Context, userID, pathID string) ([]progress.Record, error) {
	stmt := builder.Select(progressColumnNames...).
		From(entsql.Table(progressTable.Name)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("path_id", pathID))).
		OrderBy("id")
	return r.query(ctx, stmt)
}

func (r *progressRepo) CountNodes(ctx context.Context, pathID string) (int, error) {
	stmt := builder.Select(entsql.Count("*")).
		From(entsql.Table(nodesTable.Name)).
		Where(entsql.EQ("path_id", pathID))
	n, err := countStmt(ctx, r.q, stmt)
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return n, nil
}

func (r *progressRepo) query(ctx context.Context, stmt *entsql.Selector) ([]progress.Record, error) {
	var recs []progress.Record
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			rec    progress.Record
			status string
			score  sql.NullFloat64
		)
		if err := rows.Scan(&rec.UserID, &rec.PathID, &rec.NodeID, &status, &rec.Attempts, &score, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("scan progress: %w", err)
		}
		rec.Status = progress.Status(status)
		if score.Valid {
			v := score.Float64
			rec.LastScore = &v
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return recs, nil
}

func scoreValue(s *float64) sql.NullFloat64 {
	if s == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *s, Valid: true}
}
