package postgres

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-entitlement-platform/internal/domain/ports/repository"
)

// execSQL resolves the executor (tx handle or pool) and runs a statement.
func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	qx, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return qx.Exec(ctx, sql, args...)
}

// pickRow resolves the executor and returns a single-row query handle.
func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Row, error) {
	qx, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return qx.QueryRow(ctx, sql, args...), nil
}

// queryRows resolves the executor and runs a multi-row query.
func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Rows, error) {
	qx, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return qx.Query(ctx, sql, args...)
}
