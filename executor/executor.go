// Package executor runs compiled segments against a SQL relation.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snowflake-labs/segment"
)

// Executor counts and samples the rows of a relation selected by a predicate.
type Executor struct {
	db       *sql.DB
	relation string
	dialect  segment.Dialect
	log      *slog.Logger
}

// New returns an executor over the given relation, eg. "HARMONIZED.PROFILES".  The
// relation is quoted before use.  logger may be nil.
func New(db *sql.DB, relation string, d segment.Dialect, logger *slog.Logger) (*Executor, error) {
	if db == nil {
		return nil, errors.New("executor requires a database connection")
	}
	if strings.TrimSpace(relation) == "" {
		return nil, errors.New("executor requires a relation")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		db:       db,
		relation: segment.QuoteIdentifier(strings.TrimSpace(relation)),
		dialect:  d,
		log:      logger,
	}, nil
}

// Count returns the number of rows matching the predicate.
func (e *Executor) Count(ctx context.Context, p segment.Predicate) (int64, error) {
	query, args, err := e.query("SELECT COUNT(*)", p, 0)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting segment: %w", err)
	}
	e.log.Debug("counted segment", "count", count)
	return count, nil
}

// Sample returns up to limit rows matching the predicate, keyed by column name.
func (e *Executor) Sample(ctx context.Context, p segment.Predicate, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid sample limit %d", limit)
	}
	query, args, err := e.query("SELECT *", p, limit)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error sampling segment: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for n := range vals {
			ptrs[n] = &vals[n]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error scanning sample: %w", err)
		}
		row := make(map[string]any, len(cols))
		for n, col := range cols {
			if b, ok := vals[n].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[n]
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading sample: %w", err)
	}
	e.log.Debug("sampled segment", "rows", len(res))
	return res, nil
}

// Query returns the SQL and arguments used to select the predicate's rows.
func (e *Executor) Query(p segment.Predicate, limit int) (string, []any, error) {
	return e.query("SELECT *", p, limit)
}

func (e *Executor) query(sel string, p segment.Predicate, limit int) (string, []any, error) {
	where, args, err := segment.RenderSQL(p, e.dialect)
	if err != nil {
		return "", nil, fmt.Errorf("error rendering segment: %w", err)
	}
	query := sel + " FROM " + e.relation + " WHERE " + where
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	e.log.Debug("executing segment", "query", query, "args", len(args))
	return query, args, nil
}
