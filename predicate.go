package segment

import (
	"strings"
)

// Predicate is a compiled, boolean expression over attributes.  It is the hand-off to
// query executors, which render it into a backend specific filter clause.
//
// Predicate is sealed: it is always one of And, Or, Not, Const or *Comparison.
type Predicate interface {
	// String returns the canonical, human readable form of the predicate, eg.
	// `TIER = 'Premium' AND NOT (AGE < '18')`.  This is for display only: values
	// are never safe to interpolate into queries.
	String() string

	predicate()
}

// And is true when every term is true.
type And struct {
	Terms []Predicate
}

// Or is true when any term is true.
type Or struct {
	Terms []Predicate
}

// Not negates its term.
type Not struct {
	Term Predicate
}

// Const is a constant predicate.  Empty AND groups compile to True and empty OR
// groups compile to False.
type Const bool

const (
	True  Const = true
	False Const = false
)

// Comparison is a single atomic comparison of an attribute against parsed values.
type Comparison struct {
	// Attribute is the attribute key, ie. the source table and column name.
	Attribute string
	// Column is the attribute's column name.
	Column string
	// Table is the attribute's source table.
	Table string
	// DataType is the declared type of the attribute, used by executors for coercion.
	DataType string
	Operator Operator
	// Values holds the parsed values.  Range operators always have two values, list
	// operators one or more, and scalar operators exactly one.
	Values []string
}

func (And) predicate()         {}
func (Or) predicate()          {}
func (Not) predicate()         {}
func (Const) predicate()       {}
func (*Comparison) predicate() {}

func (a And) String() string { return joinTerms(a.Terms, " AND ") }
func (o Or) String() string  { return joinTerms(o.Terms, " OR ") }

func (n Not) String() string {
	if n.Term == nil {
		return "NOT ()"
	}
	return "NOT (" + n.Term.String() + ")"
}

func (c Const) String() string {
	if c {
		return "TRUE"
	}
	return "FALSE"
}

func (c *Comparison) String() string {
	var sb strings.Builder
	sb.WriteString(c.Column)
	sb.WriteByte(' ')
	sb.WriteString(string(c.Operator))
	sb.WriteByte(' ')

	switch c.Operator.Arity() {
	case ArityRange:
		sb.WriteString(quote(c.value(0)))
		sb.WriteString(" AND ")
		sb.WriteString(quote(c.value(1)))
	case ArityList:
		sb.WriteByte('(')
		for n, v := range c.Values {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quote(v))
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(quote(c.value(0)))
	}
	return sb.String()
}

func (c *Comparison) value(n int) string {
	if n < len(c.Values) {
		return c.Values[n]
	}
	return ""
}

// Lower returns the lower bound of range comparisons.
func (c *Comparison) Lower() string { return c.value(0) }

// Upper returns the upper bound of range comparisons.
func (c *Comparison) Upper() string { return c.value(1) }

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func termsOf(p Predicate) []Predicate {
	switch v := p.(type) {
	case And:
		return v.Terms
	case Or:
		return v.Terms
	}
	return nil
}

func joinTerms(terms []Predicate, sep string) string {
	parts := make([]string, len(terms))
	for n, t := range terms {
		parts[n] = wrapTerm(t)
	}
	return strings.Join(parts, sep)
}

// wrapTerm parenthesizes compound terms nested within another compound.
func wrapTerm(t Predicate) string {
	if t == nil {
		return ""
	}
	switch t.(type) {
	case And, Or:
		if len(termsOf(t)) > 1 {
			return "(" + t.String() + ")"
		}
	}
	return t.String()
}

// Walk calls fn for p and every predicate beneath it in depth-first pre-order.
// Returning false from fn skips the predicate's children.
func Walk(p Predicate, fn func(Predicate) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch v := p.(type) {
	case And:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case Or:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case Not:
		Walk(v.Term, fn)
	}
}

// Attributes returns the distinct attribute keys referenced by the predicate, in the
// order they are first referenced.
func Attributes(p Predicate) []string {
	seen := map[string]struct{}{}
	keys := []string{}
	Walk(p, func(p Predicate) bool {
		c, ok := p.(*Comparison)
		if !ok {
			return true
		}
		if _, ok := seen[c.Attribute]; !ok {
			seen[c.Attribute] = struct{}{}
			keys = append(keys, c.Attribute)
		}
		return true
	})
	return keys
}

// MarshalMap returns a plain map representation of the predicate, suitable for
// encoding as JSON.
func MarshalMap(p Predicate) map[string]any {
	switch v := p.(type) {
	case And:
		return map[string]any{"and": marshalTerms(v.Terms)}
	case Or:
		return map[string]any{"or": marshalTerms(v.Terms)}
	case Not:
		return map[string]any{"not": MarshalMap(v.Term)}
	case Const:
		return map[string]any{"const": bool(v)}
	case *Comparison:
		values := make([]any, len(v.Values))
		for n, val := range v.Values {
			values[n] = val
		}
		return map[string]any{
			"attribute": v.Attribute,
			"column":    v.Column,
			"table":     v.Table,
			"data_type": v.DataType,
			"operator":  string(v.Operator),
			"values":    values,
		}
	}
	return nil
}

func marshalTerms(terms []Predicate) []any {
	res := make([]any, len(terms))
	for n, t := range terms {
		res[n] = MarshalMap(t)
	}
	return res
}
