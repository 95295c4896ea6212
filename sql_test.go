package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderSQL(t *testing.T) {
	idx := testIndex()

	compile := func(t *testing.T, root *Group) Predicate {
		p, err := Compile(root, idx)
		require.NoError(t, err)
		return p
	}

	t.Run("It renders nested groups with bind parameters", func(t *testing.T) {
		p := compile(t, rootGroup(LogicAnd,
			cond("c1", attrTier, OpEquals, "Premium"),
			&Group{ID: "g", Logic: LogicOr, Negated: true, Children: []Node{
				cond("c2", attrIncome, OpEquals, "High"),
				cond("c3", attrIncome, OpEquals, "Medium"),
			}},
		))

		frag, args, err := RenderSQL(p, Dialect{})
		require.NoError(t, err)
		require.Equal(t, `"TIER" = ? AND NOT ("INCOME_LEVEL" = ? OR "INCOME_LEVEL" = ?)`, frag)
		require.Equal(t, []any{"Premium", "High", "Medium"}, args)
	})

	t.Run("It renders dollar placeholders and qualified columns", func(t *testing.T) {
		p := compile(t, rootGroup(LogicOr,
			cond("c1", attrAge, OpBetween, "18, 65"),
			cond("c2", attrTier, OpIn, "Gold,Silver"),
		))

		frag, args, err := RenderSQL(p, Dialect{Placeholder: PlaceholderDollar, QualifyColumns: true})
		require.NoError(t, err)
		require.Equal(t,
			`"HARMONIZED"."PROFILES"."AGE" BETWEEN $1 AND $2 OR "HARMONIZED"."PROFILES"."TIER" IN ($3, $4)`,
			frag,
		)
		require.Equal(t, []any{"18", "65", "Gold", "Silver"}, args)
	})

	t.Run("It coerces numeric and boolean values", func(t *testing.T) {
		p := compile(t, rootGroup(LogicAnd,
			cond("c1", attrAge, OpGreaterEq, "18"),
			cond("c2", attrAge, OpLess, "65.5"),
			cond("c3", attrActive, OpEquals, "true"),
			cond("c4", attrSignup, OpGreater, "2024-01-01"),
		))

		_, args, err := RenderSQL(p, Dialect{CoerceValues: true})
		require.NoError(t, err)
		require.Equal(t, []any{int64(18), 65.5, true, "2024-01-01"}, args)

		bad := compile(t, rootGroup(LogicAnd, cond("c1", attrAge, OpGreaterEq, "eighteen")))
		_, _, err = RenderSQL(bad, Dialect{CoerceValues: true})
		require.ErrorIs(t, err, ErrUncoercibleValue)
	})

	t.Run("It renders string operators as escaped LIKE patterns", func(t *testing.T) {
		tests := []struct {
			op       Operator
			frag     string
			expected string
		}{
			{OpContains, `"TIER" LIKE ? ESCAPE '\'`, `%50\%\_off%`},
			{OpNotContains, `"TIER" NOT LIKE ? ESCAPE '\'`, `%50\%\_off%`},
			{OpStartsWith, `"TIER" LIKE ? ESCAPE '\'`, `50\%\_off%`},
			{OpEndsWith, `"TIER" LIKE ? ESCAPE '\'`, `%50\%\_off`},
		}
		for _, test := range tests {
			t.Run(string(test.op), func(t *testing.T) {
				p := compile(t, rootGroup(LogicAnd, cond("c1", attrTier, test.op, "50%_off")))
				frag, args, err := RenderSQL(p, Dialect{})
				require.NoError(t, err)
				require.Equal(t, test.frag, frag)
				require.Equal(t, []any{test.expected}, args)
			})
		}
	})

	t.Run("It escapes LIKE patterns with the dialect's escape character", func(t *testing.T) {
		p := compile(t, rootGroup(LogicAnd, cond("c1", attrTier, OpContains, `50%_off!\`)))
		frag, args, err := RenderSQL(p, Dialect{LikeEscape: '!'})
		require.NoError(t, err)
		require.Equal(t, `"TIER" LIKE ? ESCAPE '!'`, frag)
		require.Equal(t, []any{`%50!%!_off!!\%`}, args)
	})

	t.Run("It never interpolates values", func(t *testing.T) {
		p := compile(t, rootGroup(LogicAnd, cond("c1", attrTier, OpEquals, "x' OR '1'='1")))
		frag, args, err := RenderSQL(p, Dialect{})
		require.NoError(t, err)
		require.Equal(t, `"TIER" = ?`, frag)
		require.Equal(t, []any{"x' OR '1'='1"}, args)
	})

	t.Run("It renders constants", func(t *testing.T) {
		frag, args, err := RenderSQL(True, Dialect{})
		require.NoError(t, err)
		require.Equal(t, "1 = 1", frag)
		require.Empty(t, args)

		frag, _, err = RenderSQL(Not{Term: False}, Dialect{})
		require.NoError(t, err)
		require.Equal(t, "NOT (1 = 0)", frag)
	})

	t.Run("It rejects unknown operators", func(t *testing.T) {
		_, _, err := RenderSQL(&Comparison{Column: "X", Operator: "LIKE", Values: []string{"a"}}, Dialect{})
		require.ErrorIs(t, err, ErrUnknownOperator)
	})
}

func TestQuoteIdentifier(t *testing.T) {
	require.Equal(t, `"TIER"`, QuoteIdentifier("TIER"))
	require.Equal(t, `"DB"."SCHEMA"."TABLE"`, QuoteIdentifier("DB.SCHEMA.TABLE"))
	require.Equal(t, `"WEIRD""NAME"`, QuoteIdentifier(`WEIRD"NAME`))
}

func TestParsePlaceholder(t *testing.T) {
	p, err := ParsePlaceholder("dollar")
	require.NoError(t, err)
	require.Equal(t, PlaceholderDollar, p)

	p, err = ParsePlaceholder("")
	require.NoError(t, err)
	require.Equal(t, PlaceholderQuestion, p)

	_, err = ParsePlaceholder("colon")
	require.Error(t, err)
}
