package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/snowflake-labs/segment"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultDescriptionColumn = "comment"
	defaultConcurrency       = 4
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// SQLOpts configures a SQLProvider.
type SQLOpts struct {
	// Database prefixes information_schema for sources which do not name a
	// database, eg. Snowflake's "DB.information_schema.columns".
	Database string
	// DescriptionColumn is the information_schema.columns column holding column
	// comments.  This defaults to "comment";  use "NULL" for backends without
	// one.
	DescriptionColumn string
	Placeholder       segment.Placeholder
	// IdentifierCase folds schema, table and column names before querying: "upper"
	// (the default, for Snowflake), "lower" (for postgres) or "preserve".
	IdentifierCase string
	// Concurrency is the number of sources queried at once.
	Concurrency int
	Logger      *slog.Logger
}

// SQLProvider lists attributes from a database's information schema.
type SQLProvider struct {
	db      *sql.DB
	sources []Source
	opts    SQLOpts
	log     *slog.Logger
}

// NewSQLProvider returns a provider which queries each source's columns from db.
func NewSQLProvider(db *sql.DB, sources []Source, opts SQLOpts) (*SQLProvider, error) {
	if opts.DescriptionColumn == "" {
		opts.DescriptionColumn = defaultDescriptionColumn
	}
	if !identifierPattern.MatchString(opts.DescriptionColumn) {
		return nil, fmt.Errorf("invalid description column %q", opts.DescriptionColumn)
	}
	if opts.Database != "" && !identifierPattern.MatchString(opts.Database) {
		return nil, fmt.Errorf("invalid database %q", opts.Database)
	}
	switch opts.IdentifierCase {
	case "":
		opts.IdentifierCase = "upper"
	case "upper", "lower", "preserve":
	default:
		return nil, fmt.Errorf("invalid identifier case %q", opts.IdentifierCase)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	for _, s := range sources {
		t, err := ParseTableName(s.Table)
		if err != nil {
			return nil, err
		}
		if t.Database != "" && !identifierPattern.MatchString(t.Database) {
			return nil, fmt.Errorf("invalid database in table %q", s.Table)
		}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SQLProvider{
		db:      db,
		sources: sources,
		opts:    opts,
		log:     log,
	}, nil
}

// ListAttributes queries every source within the category concurrently.  Attributes
// are sorted by label within each category, and categories are returned in the order
// their sources are configured.
func (p *SQLProvider) ListAttributes(ctx context.Context, category string) ([]segment.AttributeDefinition, error) {
	sources := make([]Source, 0, len(p.sources))
	for _, s := range p.sources {
		if category == "" || s.Category == category {
			sources = append(sources, s)
		}
	}

	type result struct {
		n    int
		defs []segment.AttributeDefinition
	}

	wp := pool.NewWithResults[result]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(p.opts.Concurrency)
	for n, s := range sources {
		wp.Go(func(ctx context.Context) (result, error) {
			defs, err := p.listSource(ctx, s)
			return result{n: n, defs: defs}, err
		})
	}
	results, err := wp.Wait()
	if err != nil {
		return nil, err
	}

	bySource := make([][]segment.AttributeDefinition, len(sources))
	for _, r := range results {
		bySource[r.n] = r.defs
	}

	categories := []string{}
	byCategory := map[string][]segment.AttributeDefinition{}
	for n, s := range sources {
		if _, ok := byCategory[s.Category]; !ok {
			categories = append(categories, s.Category)
		}
		byCategory[s.Category] = append(byCategory[s.Category], bySource[n]...)
	}

	res := []segment.AttributeDefinition{}
	for _, c := range categories {
		defs := byCategory[c]
		slices.SortStableFunc(defs, func(a, b segment.AttributeDefinition) int {
			return strings.Compare(a.Label, b.Label)
		})
		res = append(res, defs...)
	}
	return res, nil
}

func (p *SQLProvider) listSource(ctx context.Context, s Source) ([]segment.AttributeDefinition, error) {
	t, err := ParseTableName(s.Table)
	if err != nil {
		return nil, err
	}
	if t.Database == "" {
		t.Database = p.opts.Database
	}

	query := p.columnsQuery(t.Database)
	schema, table := p.fold(t.Schema), p.fold(t.Table)
	p.log.Debug("loading columns", "category", s.Category, "table", t.String())

	rows, err := p.db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for %s: %w", t, err)
	}
	defer rows.Close()

	defs := []segment.AttributeDefinition{}
	for rows.Next() {
		var (
			name, dataType string
			description    sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &description); err != nil {
			return nil, fmt.Errorf("error scanning columns for %s: %w", t, err)
		}
		name = p.fold(name)
		if !s.Allows(name) {
			continue
		}
		defs = append(defs, segment.AttributeDefinition{
			Name:        name,
			Label:       Label(name),
			DataType:    dataType,
			SourceTable: t.String(),
			Description: description.String,
			Category:    s.Category,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading columns for %s: %w", t, err)
	}

	p.log.Debug("loaded columns", "table", t.String(), "count", len(defs))
	return defs, nil
}

func (p *SQLProvider) fold(ident string) string {
	switch p.opts.IdentifierCase {
	case "lower":
		return strings.ToLower(ident)
	case "preserve":
		return ident
	}
	return strings.ToUpper(ident)
}

func (p *SQLProvider) columnsQuery(database string) string {
	from := "information_schema.columns"
	if database != "" {
		from = database + "." + from
	}
	first, second := "?", "?"
	if p.opts.Placeholder == segment.PlaceholderDollar {
		first, second = "$1", "$2"
	}
	return fmt.Sprintf(
		"SELECT column_name, data_type, %s FROM %s WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position",
		p.opts.DescriptionColumn,
		from,
		first,
		second,
	)
}
