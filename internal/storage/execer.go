package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type queryExecer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func getQueryExecer(ctx context.Context, db *sql.DB) queryExecer {
	if tx, ok := TxFromCtx(ctx); ok {
		return tx
	}
	return db
}

// placeholders renders "$start, $start+1, ..." for n positional args.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func int64Args(values []int64) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
