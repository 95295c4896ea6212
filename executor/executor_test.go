package executor

import (
	"context"
	"database/sql"
	"testing"

	"github.com/snowflake-labs/segment"
	"github.com/snowflake-labs/segment/internal/testutil"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const table = "MAIN.PROFILES"

var attrs = []segment.AttributeDefinition{
	{Name: "TIER", Label: "Tier", DataType: "VARCHAR", SourceTable: table},
	{Name: "INCOME_LEVEL", Label: "Income Level", DataType: "VARCHAR", SourceTable: table},
	{Name: "AGE", Label: "Age", DataType: "NUMBER", SourceTable: table},
	{Name: "IS_ACTIVE", Label: "Is Active", DataType: "BOOLEAN", SourceTable: table},
	{Name: "SIGNUP_DATE", Label: "Signup Date", DataType: "DATE", SourceTable: table},
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE profiles (
		id INTEGER PRIMARY KEY,
		tier TEXT,
		income_level TEXT,
		age INTEGER,
		is_active BOOLEAN,
		signup_date TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO profiles (id, tier, income_level, age, is_active, signup_date) VALUES
		(1, 'Premium', 'High', 45, 1, '2024-02-01'),
		(2, 'Premium', 'Low', 31, 1, '2024-06-15'),
		(3, 'Basic', 'Medium', 22, 0, '2023-11-30'),
		(4, 'Premium 50%', 'Low', 17, 0, '2024-09-09'),
		(5, 'Gold', 'Medium', 60, 1, '2025-01-01')`)
	require.NoError(t, err)
	return db
}

// build compiles a segment from a callback which adds conditions to the tree.
func build(t *testing.T, fn func(tree *segment.Tree, add func(parent string, attr int, op segment.Operator, value string))) segment.Predicate {
	t.Helper()
	idx := segment.NewAttributeIndex(attrs)
	tree := segment.NewTree()
	add := func(parent string, attr int, op segment.Operator, value string) {
		id, err := tree.AddCondition(parent, attrs[attr])
		require.NoError(t, err)
		require.NoError(t, tree.SetOperator(id, op))
		require.NoError(t, tree.SetValue(id, value))
	}
	fn(tree, add)
	p, err := tree.Compile(idx)
	require.NoError(t, err)
	return p
}

func TestExecutor(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	e, err := New(db, "profiles", segment.Dialect{CoerceValues: true}, testutil.NewTestLogger(t))
	require.NoError(t, err)

	t.Run("It counts nested, negated segments", func(t *testing.T) {
		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 0, segment.OpEquals, "Premium")
			gid, err := tree.AddGroup(tree.RootID(), "Income")
			require.NoError(t, err)
			require.NoError(t, tree.SetLogic(gid, segment.LogicOr))
			require.NoError(t, tree.SetNegated(gid, true))
			add(gid, 1, segment.OpEquals, "High")
			add(gid, 1, segment.OpEquals, "Medium")
		})

		count, err := e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)

		rows, err := e.Sample(ctx, p, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.EqualValues(t, 2, rows[0]["id"])
		require.Equal(t, "Low", rows[0]["income_level"])
	})

	t.Run("It matches ranges and lists", func(t *testing.T) {
		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 2, segment.OpBetween, "18, 50")
			add(tree.RootID(), 4, segment.OpBetween, "2024-01-01, 2024-12-31")
			add(tree.RootID(), 0, segment.OpNotIn, "Basic, Gold")
		})
		count, err := e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	})

	t.Run("It matches booleans", func(t *testing.T) {
		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 3, segment.OpEquals, "true")
		})
		count, err := e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)
	})

	t.Run("It escapes LIKE patterns", func(t *testing.T) {
		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 0, segment.OpContains, "50%")
		})
		count, err := e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)

		p = build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 0, segment.OpStartsWith, "Prem")
		})
		count, err = e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)
	})

	t.Run("It escapes LIKE patterns with a custom escape character", func(t *testing.T) {
		bang, err := New(db, "profiles", segment.Dialect{CoerceValues: true, LikeEscape: '!'}, nil)
		require.NoError(t, err)

		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 0, segment.OpEndsWith, " 50%")
		})
		count, err := bang.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})

	t.Run("It treats empty segments as every row", func(t *testing.T) {
		count, err := e.Count(ctx, segment.True)
		require.NoError(t, err)
		require.EqualValues(t, 5, count)

		count, err = e.Count(ctx, segment.False)
		require.NoError(t, err)
		require.EqualValues(t, 0, count)
	})

	t.Run("It limits samples", func(t *testing.T) {
		rows, err := e.Sample(ctx, segment.True, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		_, err = e.Sample(ctx, segment.True, 0)
		require.Error(t, err)
	})

	t.Run("It never interpolates values", func(t *testing.T) {
		p := build(t, func(tree *segment.Tree, add func(string, int, segment.Operator, string)) {
			add(tree.RootID(), 0, segment.OpEquals, "x' OR '1'='1")
		})
		count, err := e.Count(ctx, p)
		require.NoError(t, err)
		require.EqualValues(t, 0, count)

		query, args, err := e.Query(p, 5)
		require.NoError(t, err)
		require.Equal(t, `SELECT * FROM "profiles" WHERE "TIER" = ? LIMIT 5`, query)
		require.Equal(t, []any{"x' OR '1'='1"}, args)
	})

	t.Run("It requires a relation", func(t *testing.T) {
		_, err := New(db, " ", segment.Dialect{}, nil)
		require.Error(t, err)
		_, err = New(nil, "profiles", segment.Dialect{}, nil)
		require.Error(t, err)
	})
}
