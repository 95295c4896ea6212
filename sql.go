package segment

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder is the bind parameter style used when rendering SQL.
type Placeholder int

const (
	// PlaceholderQuestion renders "?" parameters, as used by sqlite and mysql.
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar renders "$1" style parameters, as used by postgres.
	PlaceholderDollar
)

// ParsePlaceholder parses "question" or "dollar".
func ParsePlaceholder(s string) (Placeholder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "question", "?":
		return PlaceholderQuestion, nil
	case "dollar", "$":
		return PlaceholderDollar, nil
	}
	return PlaceholderQuestion, fmt.Errorf("unknown placeholder style %q", s)
}

// Dialect controls how predicates are rendered as SQL.
type Dialect struct {
	Placeholder Placeholder
	// QualifyColumns prefixes each column with its source table.
	QualifyColumns bool
	// CoerceValues binds numeric and boolean values as typed Go values instead of
	// strings.
	CoerceValues bool
	// LikeEscape escapes wildcards within CONTAINS, STARTS WITH and ENDS WITH
	// patterns.  This defaults to a backslash, which suits postgres and sqlite.
	// Snowflake reads backslashes within string literals as escapes, so use a
	// character such as '!' there.
	LikeEscape rune
}

// DefaultLikeEscape is used when a Dialect has no LikeEscape.
const DefaultLikeEscape = '\\'

func (d Dialect) likeEscape() rune {
	if d.LikeEscape == 0 {
		return DefaultLikeEscape
	}
	return d.LikeEscape
}

// RenderSQL renders the predicate as a parameterized SQL boolean expression suitable
// for a WHERE clause.  Values are never interpolated:  every value is returned as a
// bind argument.
func RenderSQL(p Predicate, d Dialect) (string, []any, error) {
	r := &sqlRenderer{dialect: d}
	if err := r.render(p); err != nil {
		return "", nil, err
	}
	return r.sb.String(), r.args, nil
}

type sqlRenderer struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

func (r *sqlRenderer) render(p Predicate) error {
	switch v := p.(type) {
	case And:
		return r.renderTerms(v.Terms, " AND ", "1 = 1")
	case Or:
		return r.renderTerms(v.Terms, " OR ", "1 = 0")
	case Not:
		r.sb.WriteString("NOT (")
		if err := r.render(v.Term); err != nil {
			return err
		}
		r.sb.WriteByte(')')
		return nil
	case Const:
		if v {
			r.sb.WriteString("1 = 1")
		} else {
			r.sb.WriteString("1 = 0")
		}
		return nil
	case *Comparison:
		return r.renderComparison(v)
	case nil:
		return fmt.Errorf("cannot render nil predicate")
	}
	return fmt.Errorf("cannot render predicate of type %T", p)
}

func (r *sqlRenderer) renderTerms(terms []Predicate, sep, empty string) error {
	if len(terms) == 0 {
		r.sb.WriteString(empty)
		return nil
	}
	for n, t := range terms {
		if n > 0 {
			r.sb.WriteString(sep)
		}
		wrap := false
		switch t.(type) {
		case And, Or:
			wrap = len(termsOf(t)) > 1
		}
		if wrap {
			r.sb.WriteByte('(')
		}
		if err := r.render(t); err != nil {
			return err
		}
		if wrap {
			r.sb.WriteByte(')')
		}
	}
	return nil
}

func (r *sqlRenderer) renderComparison(c *Comparison) error {
	col := r.column(c)

	switch c.Operator {
	case OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq:
		arg, err := r.bind(c, c.value(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(&r.sb, "%s %s %s", col, c.Operator, arg)
	case OpBetween:
		lower, err := r.bind(c, c.Lower())
		if err != nil {
			return err
		}
		upper, err := r.bind(c, c.Upper())
		if err != nil {
			return err
		}
		fmt.Fprintf(&r.sb, "%s BETWEEN %s AND %s", col, lower, upper)
	case OpIn, OpNotIn:
		if len(c.Values) == 0 {
			return fmt.Errorf("%s %s requires at least one value", c.Attribute, c.Operator)
		}
		params := make([]string, len(c.Values))
		for n, v := range c.Values {
			arg, err := r.bind(c, v)
			if err != nil {
				return err
			}
			params[n] = arg
		}
		fmt.Fprintf(&r.sb, "%s %s (%s)", col, c.Operator, strings.Join(params, ", "))
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		esc := r.dialect.likeEscape()
		pattern := escapeLike(c.value(0), esc)
		switch c.Operator {
		case OpStartsWith:
			pattern = pattern + "%"
		case OpEndsWith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		like := "LIKE"
		if c.Operator == OpNotContains {
			like = "NOT LIKE"
		}
		fmt.Fprintf(&r.sb, "%s %s %s ESCAPE %s", col, like, r.placeholder(pattern), quote(string(esc)))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
	return nil
}

// bind adds a value as an argument, returning its placeholder.
func (r *sqlRenderer) bind(c *Comparison, v string) (string, error) {
	if !r.dialect.CoerceValues {
		return r.placeholder(v), nil
	}
	typed, err := coerceSQLValue(ClassifyType(c.DataType), v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.Attribute, err)
	}
	return r.placeholder(typed), nil
}

func (r *sqlRenderer) placeholder(v any) string {
	r.args = append(r.args, v)
	if r.dialect.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(len(r.args))
	}
	return "?"
}

func (r *sqlRenderer) column(c *Comparison) string {
	if r.dialect.QualifyColumns && c.Table != "" {
		return QuoteIdentifier(c.Table + "." + c.Column)
	}
	return QuoteIdentifier(c.Column)
}

func coerceSQLValue(class TypeClass, v string) (any, error) {
	switch class {
	case TypeNumeric:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUncoercibleValue, v)
		}
		return f, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrUncoercibleValue, v)
		}
		return b, nil
	}
	return v, nil
}

// QuoteIdentifier double-quotes each dot separated part of an identifier, eg.
// `HARMONIZED.PROFILES` becomes `"HARMONIZED"."PROFILES"`.
func QuoteIdentifier(ident string) string {
	parts := strings.Split(ident, ".")
	for n, p := range parts {
		parts[n] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func escapeLike(s string, esc rune) string {
	e := string(esc)
	return strings.NewReplacer(e, e+e, "%", e+"%", "_", e+"_").Replace(s)
}
