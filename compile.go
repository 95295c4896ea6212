package segment

import (
	"strings"
)

// Compile turns a segment tree into a Predicate, validating every condition against
// the attribute index.  Compile never modifies the tree and returns identical output
// for identical inputs.
//
// Errors are always a CompileError:  *UnknownAttributeError, *InvalidOperatorError,
// *MalformedValueError or *StructuralInvariantError.  Compilation stops at the first
// error;  a segment with one invalid condition cannot be partially evaluated.
func Compile(root *Group, idx *AttributeIndex) (Predicate, error) {
	if root == nil {
		return nil, &StructuralInvariantError{Reason: "tree has no root group"}
	}
	c := &compiler{
		idx:     idx,
		visited: map[Node]struct{}{},
		ids:     map[string]struct{}{},
	}
	p, _, err := c.group(root, true)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type compiler struct {
	idx *AttributeIndex
	// visited tracks every node pointer seen, detecting cycles and shared nodes.
	visited map[Node]struct{}
	ids     map[string]struct{}
}

// visit records a node, failing if the node or its ID was already seen.
func (c *compiler) visit(n Node) error {
	if _, ok := c.visited[n]; ok {
		return &StructuralInvariantError{ID: n.NodeID(), Reason: "node is reachable more than once"}
	}
	c.visited[n] = struct{}{}

	if _, ok := c.ids[n.NodeID()]; ok {
		return &StructuralInvariantError{ID: n.NodeID(), Reason: "duplicate node id"}
	}
	c.ids[n.NodeID()] = struct{}{}
	return nil
}

// group compiles a group, returning whether the group contained no conditions at all.
// Empty groups compile to their neutral element, and are skipped by their parent.
func (c *compiler) group(g *Group, top bool) (Predicate, bool, error) {
	if err := c.visit(g); err != nil {
		return nil, false, err
	}
	if g.IsRoot && !top {
		return nil, false, &StructuralInvariantError{ID: g.ID, Reason: "root group nested within another group"}
	}

	terms := make([]Predicate, 0, len(g.Children))
	for _, child := range g.Children {
		switch n := child.(type) {
		case *Group:
			if n == nil {
				return nil, false, &StructuralInvariantError{ID: g.ID, Reason: "group contains a nil child"}
			}
			p, empty, err := c.group(n, false)
			if err != nil {
				return nil, false, err
			}
			if empty {
				continue
			}
			terms = append(terms, p)
		case *Condition:
			if n == nil {
				return nil, false, &StructuralInvariantError{ID: g.ID, Reason: "group contains a nil child"}
			}
			p, err := c.condition(n)
			if err != nil {
				return nil, false, err
			}
			terms = append(terms, p)
		default:
			return nil, false, &StructuralInvariantError{ID: g.ID, Reason: "group contains a nil child"}
		}
	}

	var (
		p     Predicate
		empty = len(terms) == 0
	)

	switch {
	case len(terms) == 0 && g.Logic == LogicOr:
		p = False
	case len(terms) == 0:
		p = True
	case len(terms) == 1:
		p = terms[0]
	case g.Logic == LogicOr:
		p = Or{Terms: terms}
	default:
		p = And{Terms: terms}
	}

	if g.Negated {
		p = Not{Term: p}
	}
	return p, empty, nil
}

func (c *compiler) condition(cond *Condition) (Predicate, error) {
	if err := c.visit(cond); err != nil {
		return nil, err
	}

	def, ok := c.idx.Get(cond.AttributeKey)
	if !ok {
		return nil, &UnknownAttributeError{
			ConditionID:  cond.ID,
			AttributeKey: cond.AttributeKey,
		}
	}

	if !IsLegalOperator(def.DataType, cond.Operator) {
		return nil, &InvalidOperatorError{
			ConditionID:  cond.ID,
			AttributeKey: cond.AttributeKey,
			DataType:     def.DataType,
			Operator:     cond.Operator,
			Allowed:      OperatorOptions(def.DataType),
		}
	}

	values, reason := parseValue(cond.Operator, cond.Value)
	if reason != "" {
		return nil, &MalformedValueError{
			ConditionID:  cond.ID,
			AttributeKey: cond.AttributeKey,
			Operator:     cond.Operator,
			Value:        cond.Value,
			Reason:       reason,
		}
	}

	return &Comparison{
		Attribute: cond.AttributeKey,
		Column:    def.Name,
		Table:     def.SourceTable,
		DataType:  def.DataType,
		Operator:  cond.Operator,
		Values:    values,
	}, nil
}

// parseValue splits a raw value according to the operator's arity, returning a
// non-empty reason if the value is malformed.
func parseValue(op Operator, raw string) ([]string, string) {
	switch op.Arity() {
	case ArityRange:
		parts := splitValues(raw)
		if len(parts) != 2 {
			return nil, "expected exactly two comma separated bounds"
		}
		if parts[0] == "" || parts[1] == "" {
			return nil, "range bounds must not be empty"
		}
		return parts, ""
	case ArityList:
		parts := splitValues(raw)
		for _, p := range parts {
			if p == "" {
				return nil, "expected a comma separated list of non-empty values"
			}
		}
		return parts, ""
	default:
		v := strings.TrimSpace(raw)
		if v == "" {
			return nil, "a value is required"
		}
		return []string{v}, ""
	}
}

func splitValues(raw string) []string {
	parts := strings.Split(raw, ",")
	for n := range parts {
		parts[n] = strings.TrimSpace(parts[n])
	}
	return parts
}
