package segment

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Logic is the boolean operator joining the children of a group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ParseLogic parses "and" or "or", ignoring case.
func ParseLogic(s string) (Logic, error) {
	switch l := Logic(strings.ToUpper(strings.TrimSpace(s))); l {
	case LogicAnd, LogicOr:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLogic, s)
}

// NodeKind identifies which variant a Node is.
type NodeKind int

const (
	NodeKindGroup NodeKind = iota
	NodeKindCondition
)

// Node is either a *Group or a *Condition.  The interface is sealed;  callers
// switch on the concrete type:
//
//	switch n := node.(type) {
//	case *Group:
//	case *Condition:
//	}
type Node interface {
	// NodeID returns the node's immutable, unique ID.
	NodeID() string
	// Kind returns the node variant.
	Kind() NodeKind

	clone() Node
}

// Group is a logical group of child nodes combined with AND or OR, optionally
// negated.
type Group struct {
	ID       string
	Name     string
	Logic    Logic
	Negated  bool
	Children []Node
	// IsRoot is set for the single root group of a tree.  The root group has no
	// parent and can never be removed.
	IsRoot bool
}

// Condition is a leaf comparing an attribute against a value.
type Condition struct {
	ID           string
	AttributeKey string
	Operator     Operator
	// Value is the raw, user entered value.  Range and list operators expect
	// comma separated values.
	Value string
}

func (g *Group) NodeID() string {
	if g == nil {
		return ""
	}
	return g.ID
}

func (g *Group) Kind() NodeKind { return NodeKindGroup }

func (c *Condition) NodeID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

func (c *Condition) Kind() NodeKind { return NodeKindCondition }

func (g *Group) clone() Node {
	if g == nil {
		return g
	}
	cp := *g
	cp.Children = make([]Node, len(g.Children))
	for n, child := range g.Children {
		if child != nil {
			cp.Children[n] = child.clone()
		}
	}
	return &cp
}

func (c *Condition) clone() Node {
	if c == nil {
		return c
	}
	cp := *c
	return &cp
}

// Clone returns a deep copy of the group and all of its children.
func (g *Group) Clone() *Group {
	return g.clone().(*Group)
}

func newID() string {
	return uuid.NewString()
}

// NewGroup returns an empty group joined with AND.
func NewGroup(label string, isRoot bool) *Group {
	return &Group{
		ID:       newID(),
		Name:     label,
		Logic:    LogicAnd,
		Children: []Node{},
		IsRoot:   isRoot,
	}
}

// NewCondition returns a condition on the given attribute using the default
// operator for the attribute's type and an empty value.
func NewCondition(attributeKey string, def AttributeDefinition) *Condition {
	return &Condition{
		ID:           newID(),
		AttributeKey: attributeKey,
		Operator:     DefaultOperator(def.DataType),
	}
}

// FindGroup searches the tree depth-first, in pre-order and stored child order,
// returning the first group with the given ID.  Conditions are never matched.
func FindGroup(root *Group, id string) *Group {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if g, ok := child.(*Group); ok {
			if found := FindGroup(g, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// FindCondition returns the condition with the given ID along with its direct parent.
func FindCondition(root *Group, id string) (*Condition, *Group) {
	if root == nil {
		return nil, nil
	}
	for _, child := range root.Children {
		switch n := child.(type) {
		case *Condition:
			if n != nil && n.ID == id {
				return n, root
			}
		case *Group:
			if c, parent := FindCondition(n, id); c != nil {
				return c, parent
			}
		}
	}
	return nil, nil
}

// RemoveChild drops the direct child with the given ID, returning whether anything
// was removed.  Removing an absent child is a no-op.
func (g *Group) RemoveChild(id string) bool {
	for n, child := range g.Children {
		if child != nil && child.NodeID() == id {
			g.Children = append(g.Children[:n:n], g.Children[n+1:]...)
			return true
		}
	}
	return false
}

// ReorderChildren reorders the group's children.  Children listed in order come
// first, in the given order;  unknown and repeated IDs are ignored.  Any children
// not listed keep their relative order and are appended afterwards, so that a partial
// or stale order never drops a node.
func (g *Group) ReorderChildren(order []string) {
	byID := make(map[string]Node, len(g.Children))
	for _, child := range g.Children {
		if child != nil {
			byID[child.NodeID()] = child
		}
	}

	next := make([]Node, 0, len(g.Children))
	used := make(map[string]struct{}, len(g.Children))
	for _, id := range order {
		child, ok := byID[id]
		if !ok {
			continue
		}
		if _, ok := used[id]; ok {
			continue
		}
		used[id] = struct{}{}
		next = append(next, child)
	}
	for _, child := range g.Children {
		if child == nil {
			next = append(next, child)
			continue
		}
		if _, ok := used[child.NodeID()]; !ok {
			next = append(next, child)
		}
	}
	g.Children = next
}

// GroupPath is a group ID along with its display path, eg. "Root > Nested Group".
type GroupPath struct {
	ID   string
	Path string
}

// PathSeparator joins group names within a GroupPath.
const PathSeparator = " > "

// ListGroupPaths returns every group within the tree in pre-order, root first.
func ListGroupPaths(root *Group) []GroupPath {
	if root == nil {
		return nil
	}
	return appendGroupPaths(nil, root, nil)
}

func appendGroupPaths(res []GroupPath, g *Group, ancestors []string) []GroupPath {
	name := g.Name
	if name == "" {
		name = "Group"
	}
	path := append(ancestors[:len(ancestors):len(ancestors)], name)
	res = append(res, GroupPath{ID: g.ID, Path: strings.Join(path, PathSeparator)})
	for _, child := range g.Children {
		if sub, ok := child.(*Group); ok && sub != nil {
			res = appendGroupPaths(res, sub, path)
		}
	}
	return res
}

// DisplayLabel returns a short, human readable description of a node, eg.
// "Group • Nested Group (2 items)" or "Tier = Premium".
func DisplayLabel(n Node, idx *AttributeIndex) string {
	switch v := n.(type) {
	case *Group:
		if v == nil {
			return ""
		}
		name := v.Name
		if name == "" {
			name = "Group"
		}
		return fmt.Sprintf("Group • %s (%d items)", name, len(v.Children))
	case *Condition:
		if v == nil {
			return ""
		}
		label := v.AttributeKey
		if def, ok := idx.Get(v.AttributeKey); ok {
			label = def.Label
		}
		value := v.Value
		if value == "" {
			value = "…"
		}
		op := v.Operator
		if op == "" {
			op = OpEquals
		}
		return fmt.Sprintf("%s %s %s", label, op, value)
	}
	return ""
}
