package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyType(t *testing.T) {
	tests := []struct {
		dataType string
		expected TypeClass
	}{
		{"NUMBER(38,0)", TypeNumeric},
		{"decimal(10, 2)", TypeNumeric},
		{"double precision", TypeNumeric},
		{"FLOAT", TypeNumeric},
		{"BOOLEAN", TypeBoolean},
		{"bool", TypeBoolean},
		{"DATE", TypeTemporal},
		{"TIMESTAMP_NTZ(9)", TypeTemporal},
		{"timestamp with time zone", TypeTemporal},
		{"DATETIME", TypeTemporal},
		{"TIME", TypeTemporal},
		{"VARCHAR(16777216)", TypeText},
		{"TEXT", TypeText},
		{"VARIANT", TypeText},
		{"", TypeText},
	}

	for _, test := range tests {
		t.Run(test.dataType, func(t *testing.T) {
			require.Equal(t, test.expected, ClassifyType(test.dataType), test.expected.String())
		})
	}
}

func TestOperatorOptions(t *testing.T) {
	t.Run("It orders operators for each type class", func(t *testing.T) {
		require.Equal(t,
			[]Operator{OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpBetween},
			OperatorOptions("NUMBER"),
		)
		require.Equal(t, []Operator{OpEquals, OpNotEquals}, OperatorOptions("BOOLEAN"))
		require.Equal(t,
			[]Operator{OpEquals, OpNotEquals, OpBetween, OpGreater, OpLess},
			OperatorOptions("DATE"),
		)
		require.Equal(t,
			[]Operator{OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpNotContains, OpStartsWith, OpEndsWith},
			OperatorOptions("VARCHAR"),
		)
	})

	t.Run("It returns a copy", func(t *testing.T) {
		ops := OperatorOptions("BOOLEAN")
		ops[0] = OpBetween
		require.Equal(t, OpEquals, OperatorOptions("BOOLEAN")[0])
	})

	t.Run("It assigns default operators by type", func(t *testing.T) {
		require.Equal(t, OpGreaterEq, DefaultOperator("INTEGER"))
		require.Equal(t, OpBetween, DefaultOperator("TIMESTAMP_LTZ"))
		require.Equal(t, OpEquals, DefaultOperator("BOOLEAN"))
		require.Equal(t, OpEquals, DefaultOperator("GEOGRAPHY"))
	})

	t.Run("It only allows operators valid for the type", func(t *testing.T) {
		require.True(t, IsLegalOperator("VARCHAR", OpContains))
		require.False(t, IsLegalOperator("NUMBER", OpContains))
		require.False(t, IsLegalOperator("DATE", OpLessEq))
		require.False(t, IsLegalOperator("BOOLEAN", OpGreater))
		require.False(t, IsLegalOperator("VARCHAR", Operator("LIKE")))
	})
}

func TestParseOperator(t *testing.T) {
	require.Equal(t, OpNotIn, ParseOperator(" not   in "))
	require.Equal(t, OpStartsWith, ParseOperator("starts with"))
	require.Equal(t, OpGreaterEq, ParseOperator(">="))
	require.Equal(t, Operator("LIKE"), ParseOperator("like"))

	require.Equal(t, ArityRange, OpBetween.Arity())
	require.Equal(t, ArityList, OpNotIn.Arity())
	require.Equal(t, ArityScalar, OpContains.Arity())
}
