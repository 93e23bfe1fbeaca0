package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// builder renders SQLite flavored statements.
var builder = entsql.Dialect(dialect.SQLite)

func execStmt(ctx context.Context, q dialect.ExecQuerier, stmt entsql.Querier) (sql.Result, error) {
	query, args := stmt.Query()
	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// queryStmt runs stmt and calls scan once per row.
func queryStmt(ctx context.Context, q dialect.ExecQuerier, stmt entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := stmt.Query()
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

func countStmt(ctx context.Context, q dialect.ExecQuerier, stmt entsql.Querier) (int, error) {
	var n int
	err := queryStmt(ctx, q, stmt, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
