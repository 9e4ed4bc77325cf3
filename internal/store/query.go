package store

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

// psql builds statements with $N placeholders, understood by both
// sqlite and postgres.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func getOne(ctx context.Context, q sqlscan.Querier, dst any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return sqlscan.Get(ctx, q, dst, query, args...)
}

func selectAll(ctx context.Context, q sqlscan.Querier, dst any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return sqlscan.Select(ctx, q, dst, query, args...)
}

func execOne(ctx context.Context, e execer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return e.ExecContext(ctx, query, args...)
}

// eqFold matches column case-insensitively against value.
func eqFold(column, value string) sq.Sqlizer {
	return sq.Expr("lower("+column+") = lower(?)", value)
}
