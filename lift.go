package segment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VarPrefix is the CEL variable which lifted literals are stored under.
const VarPrefix = "vars."

// lifted is a predicate translated into CEL source.
//
// Each literal within the predicate is lifted out of the source into a variable,
// eg. `TIER = 'Premium'` becomes `(row["T.TIER"] == vars.v0)` with "Premium" lifted
// as "vars.v0".  Predicates with the same structure and attributes share the same
// source, and therefore the same compiled program, regardless of their values.
type lifted struct {
	src  string
	vars map[string]any
	// comparisons stores each comparison in the order it was translated, used to
	// coerce row values before evaluation.
	comparisons []*Comparison
}

func liftPredicate(p Predicate) (*lifted, error) {
	l := &liftWriter{
		rewritten: &strings.Builder{},
		vars:      map[string]any{},
	}
	if err := l.write(p); err != nil {
		return nil, err
	}
	return &lifted{
		src:         l.rewritten.String(),
		vars:        l.vars,
		comparisons: l.comparisons,
	}, nil
}

type liftWriter struct {
	rewritten *strings.Builder
	// varCounter counts the number of variables lifted.
	varCounter  int
	vars        map[string]any
	comparisons []*Comparison
}

func (l *liftWriter) write(p Predicate) error {
	switch v := p.(type) {
	case And:
		return l.writeTerms(v.Terms, " && ", "true")
	case Or:
		return l.writeTerms(v.Terms, " || ", "false")
	case Not:
		l.rewritten.WriteString("!(")
		if err := l.write(v.Term); err != nil {
			return err
		}
		l.rewritten.WriteByte(')')
		return nil
	case Const:
		l.rewritten.WriteString(strconv.FormatBool(bool(v)))
		return nil
	case *Comparison:
		return l.writeComparison(v)
	}
	return fmt.Errorf("cannot evaluate predicate of type %T", p)
}

func (l *liftWriter) writeTerms(terms []Predicate, sep, empty string) error {
	if len(terms) == 0 {
		l.rewritten.WriteString(empty)
		return nil
	}
	l.rewritten.WriteByte('(')
	for n, t := range terms {
		if n > 0 {
			l.rewritten.WriteString(sep)
		}
		if err := l.write(t); err != nil {
			return err
		}
	}
	l.rewritten.WriteByte(')')
	return nil
}

func (l *liftWriter) writeComparison(c *Comparison) error {
	l.comparisons = append(l.comparisons, c)

	class := ClassifyType(c.DataType)
	ident := "row[" + strconv.Quote(c.Attribute) + "]"

	lift := func(raw string) (string, error) {
		val, err := coerceLiteral(class, raw)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Attribute, err)
		}
		return l.addLiftedVar(val), nil
	}

	switch c.Operator {
	case OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq:
		v, err := lift(c.value(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(l.rewritten, "(%s %s %s)", ident, celOperator(c.Operator), v)
	case OpBetween:
		lower, err := lift(c.Lower())
		if err != nil {
			return err
		}
		upper, err := lift(c.Upper())
		if err != nil {
			return err
		}
		fmt.Fprintf(l.rewritten, "(%s >= %s && %s <= %s)", ident, lower, ident, upper)
	case OpIn, OpNotIn:
		list := make([]any, len(c.Values))
		for n, raw := range c.Values {
			val, err := coerceLiteral(class, raw)
			if err != nil {
				return fmt.Errorf("%s: %w", c.Attribute, err)
			}
			list[n] = val
		}
		v := l.addLiftedVar(list)
		if c.Operator == OpNotIn {
			fmt.Fprintf(l.rewritten, "!(%s in %s)", ident, v)
		} else {
			fmt.Fprintf(l.rewritten, "(%s in %s)", ident, v)
		}
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		v := l.addLiftedVar(c.value(0))
		fn := "contains"
		switch c.Operator {
		case OpStartsWith:
			fn = "startsWith"
		case OpEndsWith:
			fn = "endsWith"
		}
		if c.Operator == OpNotContains {
			l.rewritten.WriteByte('!')
		}
		fmt.Fprintf(l.rewritten, "%s.%s(%s)", ident, fn, v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
	return nil
}

func (l *liftWriter) addLiftedVar(val any) string {
	name := "v" + strconv.Itoa(l.varCounter)
	l.varCounter++
	l.vars[name] = val
	return VarPrefix + name
}

func celOperator(op Operator) string {
	if op == OpEquals {
		return "=="
	}
	return string(op)
}

// coerceLiteral converts a raw value into the Go type used during evaluation for the
// given type class.
func coerceLiteral(class TypeClass, raw string) (any, error) {
	switch class {
	case TypeNumeric:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUncoercibleValue, raw)
		}
		return f, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrUncoercibleValue, raw)
		}
		return b, nil
	case TypeTemporal:
		if t, ok := parseTemporal(raw); ok {
			return t, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}

// temporalLayouts are tried in order when parsing temporal values.  Values without
// a zone are read as UTC.
var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.DateTime,
	time.DateOnly,
	time.TimeOnly,
}

// parseTemporal parses dates, times and timestamps as written by warehouses and
// users alike, so that "2024-03-01 10:00:00" and "2024-03-01T10:00:00Z" compare equal.
func parseTemporal(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
