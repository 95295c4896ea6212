package segment

import (
	"strings"
)

// Operator is a comparison operator used within a condition.
type Operator string

const (
	OpEquals      Operator = "="
	OpNotEquals   Operator = "!="
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpLess        Operator = "<"
	OpLessEq      Operator = "<="
	OpBetween     Operator = "BETWEEN"
	OpIn          Operator = "IN"
	OpNotIn       Operator = "NOT IN"
	OpContains    Operator = "CONTAINS"
	OpNotContains Operator = "NOT CONTAINS"
	OpStartsWith  Operator = "STARTS WITH"
	OpEndsWith    Operator = "ENDS WITH"
)

// Arity describes the shape of the value an operator accepts.
type Arity int

const (
	// ArityScalar operators take a single raw value.
	ArityScalar Arity = iota
	// ArityRange operators take exactly two comma separated bounds.
	ArityRange
	// ArityList operators take one or more comma separated values.
	ArityList
)

// Arity returns the value shape for the operator.
func (o Operator) Arity() Arity {
	switch o {
	case OpBetween:
		return ArityRange
	case OpIn, OpNotIn:
		return ArityList
	default:
		return ArityScalar
	}
}

// ParseOperator normalizes user input, eg. "not  in" becomes OpNotIn.  Unknown
// operators are returned as-is so that compilation can reject them against the
// attribute's type.
func ParseOperator(s string) Operator {
	return Operator(strings.Join(strings.Fields(strings.ToUpper(s)), " "))
}

// TypeClass is the normalized class of an attribute's declared data type.
type TypeClass int

const (
	// TypeText is the default class, used for categorical, text and unknown types.
	TypeText TypeClass = iota
	TypeNumeric
	TypeBoolean
	TypeTemporal
)

func (t TypeClass) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeBoolean:
		return "boolean"
	case TypeTemporal:
		return "temporal"
	default:
		return "text"
	}
}

var numericTypes = map[string]struct{}{
	"NUMBER":           {},
	"NUMERIC":          {},
	"DECIMAL":          {},
	"INT":              {},
	"INTEGER":          {},
	"BIGINT":           {},
	"SMALLINT":         {},
	"TINYINT":          {},
	"BYTEINT":          {},
	"FLOAT":            {},
	"FLOAT4":           {},
	"FLOAT8":           {},
	"DOUBLE":           {},
	"DOUBLE PRECISION": {},
	"REAL":             {},
	"INT2":             {},
	"INT4":             {},
	"INT8":             {},
}

var (
	numericOperators  = []Operator{OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpBetween}
	booleanOperators  = []Operator{OpEquals, OpNotEquals}
	temporalOperators = []Operator{OpEquals, OpNotEquals, OpBetween, OpGreater, OpLess}
	textOperators     = []Operator{OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpNotContains, OpStartsWith, OpEndsWith}
)

// NormalizeType upper-cases a declared type and truncates parametrized types to
// their base name, eg. "decimal(10, 2)" becomes "DECIMAL".
func NormalizeType(dataType string) string {
	t := strings.ToUpper(strings.TrimSpace(dataType))
	if n := strings.IndexByte(t, '('); n >= 0 {
		t = strings.TrimSpace(t[:n])
	}
	return strings.Join(strings.Fields(t), " ")
}

// ClassifyType returns the TypeClass for a declared data type.  Unrecognized types
// are always TypeText.
func ClassifyType(dataType string) TypeClass {
	t := NormalizeType(dataType)
	if _, ok := numericTypes[t]; ok {
		return TypeNumeric
	}
	switch {
	case t == "BOOLEAN" || t == "BOOL":
		return TypeBoolean
	case strings.HasSuffix(t, "DATE"),
		strings.HasSuffix(t, "TIME"),
		strings.HasPrefix(t, "TIMESTAMP"),
		strings.HasPrefix(t, "DATETIME"),
		strings.HasPrefix(t, "TIME "):
		return TypeTemporal
	}
	return TypeText
}

// DefaultOperator returns the operator assigned to new conditions for the given type.
func DefaultOperator(dataType string) Operator {
	switch ClassifyType(dataType) {
	case TypeNumeric:
		return OpGreaterEq
	case TypeTemporal:
		return OpBetween
	default:
		return OpEquals
	}
}

// OperatorOptions returns the ordered set of legal operators for the given type.
// The returned slice may be modified by the caller.
func OperatorOptions(dataType string) []Operator {
	var ops []Operator
	switch ClassifyType(dataType) {
	case TypeNumeric:
		ops = numericOperators
	case TypeBoolean:
		ops = booleanOperators
	case TypeTemporal:
		ops = temporalOperators
	default:
		ops = textOperators
	}
	return append([]Operator(nil), ops...)
}

// IsLegalOperator returns whether op may be used with an attribute of the given type.
func IsLegalOperator(dataType string, op Operator) bool {
	for _, o := range OperatorOptions(dataType) {
		if o == op {
			return true
		}
	}
	return false
}
