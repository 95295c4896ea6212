// Package catalog loads attribute definitions which segment conditions may reference,
// either from a warehouse's information schema, a static list or an offline snapshot.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/snowflake-labs/segment"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Provider lists attribute definitions.
type Provider interface {
	// ListAttributes returns the definitions within the given category, or every
	// definition if category is empty.
	ListAttributes(ctx context.Context, category string) ([]segment.AttributeDefinition, error)
}

// Source configures which columns of a table are exposed as attributes, and the
// palette category they are listed under.
type Source struct {
	Category string `koanf:"category" json:"category"`
	// Table is the schema qualified table, optionally prefixed with a database, eg.
	// "HARMONIZED.SUBSCRIBER_PROFILE_ENRICHED".
	Table string `koanf:"table" json:"table"`
	// Include lists the only columns to expose.  An empty list exposes every column.
	Include []string `koanf:"include" json:"include,omitempty"`
	// Exclude lists columns never exposed.
	Exclude []string `koanf:"exclude" json:"exclude,omitempty"`
}

// Allows returns whether the column is exposed by the source.  Columns are matched
// ignoring case.
func (s Source) Allows(column string) bool {
	column = strings.ToUpper(column)
	for _, ex := range s.Exclude {
		if strings.ToUpper(ex) == column {
			return false
		}
	}
	if len(s.Include) == 0 {
		return true
	}
	for _, in := range s.Include {
		if strings.ToUpper(in) == column {
			return true
		}
	}
	return false
}

// TableName is a parsed table reference.
type TableName struct {
	Database string
	Schema   string
	Table    string
}

// ParseTableName parses "SCHEMA.TABLE" or "DATABASE.SCHEMA.TABLE".
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	for _, p := range parts {
		if p == "" {
			return TableName{}, fmt.Errorf("unexpected table reference: %q", s)
		}
	}
	switch len(parts) {
	case 2:
		return TableName{Schema: parts[0], Table: parts[1]}, nil
	case 3:
		return TableName{Database: parts[0], Schema: parts[1], Table: parts[2]}, nil
	}
	return TableName{}, fmt.Errorf("unexpected table reference: %q", s)
}

func (t TableName) String() string {
	if t.Database == "" {
		return t.Schema + "." + t.Table
	}
	return t.Database + "." + t.Schema + "." + t.Table
}

// Label derives a display label from a column name, eg. "AVG_SITE_VISITS" becomes
// "Avg Site Visits".
func Label(column string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}

// StaticProvider serves a fixed list of definitions.
type StaticProvider []segment.AttributeDefinition

func (s StaticProvider) ListAttributes(ctx context.Context, category string) ([]segment.AttributeDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := make([]segment.AttributeDefinition, 0, len(s))
	for _, d := range s {
		if category == "" || d.Category == category {
			res = append(res, d)
		}
	}
	return res, nil
}

// LoadIndex lists the provider's attributes and builds an index from them.
func LoadIndex(ctx context.Context, p Provider, category string) (*segment.AttributeIndex, error) {
	defs, err := p.ListAttributes(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("error loading attributes: %w", err)
	}
	return segment.NewAttributeIndex(defs), nil
}
