package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type pathRepo struct {
	q dialect.ExecQuerier
}

var pathColumns = []string{"id", "user_id", "goal", "description", "domain", "level", "summary", "quality", "created_at", "updated_at"}

func (r *pathRepo) Create(ctx context.Context, p *Path) error {
	stmt := builder.Insert(pathsTable.Name).
		Columns(pathColumns...).
		Values(p.ID, p.UserID, p.Goal, nullString(p.Description), nullString(p.Domain),
			nullString(p.Level), nullString(p.Summary), scoreValue(p.Quality), p.CreatedAt, p.UpdatedAt)
	if _, err := execStmt(ctx, r.q, stmt); err != nil {
		return fmt.Errorf("insert path: %w", err)
	}
	return nil
}

func (r *pathRepo) Get(ctx context.Context, id string) (*Path, error) {
	stmt := builder.Select(pathColumns...).
		From(entsql.Table(pathsTable.Name)).
		Where(entsql.EQ("id", id))
	paths, err := r.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("path %q: %w", id, ErrNotFound)
	}
	return &paths[0], nil
}

func (r *pathRepo) List(ctx context.Context, userID string) ([]Path, error) {
	stmt := builder.Select(pathColumns...).
		From(entsql.Table(pathsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at"), entsql.Asc("id"))
	return r.query(ctx, stmt)
}

func (r *pathRepo) Delete(ctx context.Context, id string) error {
	res, err := execStmt(ctx, r.q, builder.Delete(pathsTable.Name).Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete path: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("path %q: %w", id, ErrNotFound)
	}
	return nil
}

func (r *pathRepo) Touch(ctx context.Context, id string, at time.Time) error {
	stmt := builder.Update(pathsTable.Name).
		Set("updated_at", at).
		Where(entsql.EQ("id", id))
	if _, err := execStmt(ctx, r.q, stmt); err != nil {
		return fmt.Errorf("touch path: %w", err)
	}
	return nil
}

func (r *pathRepo) query(ctx context.Context, stmt *entsql.Selector) ([]Path, error) {
	var paths []Path
	err := queryStmt(ctx, r.q, stmt, func(rows *entsql.Rows) error {
		var (
			p                                   Path
			description, domain, level, summary sql.NullString
			quality                             sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Goal, &description, &domain, &level, &summary, &quality, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan path: %w", err)
		}
		p.Description = description.String
		p.Domain = domain.String
		p.Level = level.String
		p.Summary = summary.String
		if quality.Valid {
			p.Quality = &quality.Float64
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	return paths, nil
}
