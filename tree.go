package segment

import (
	"fmt"
	"log/slog"
	"sync"
)

// TreeOpt configures a Tree.
type TreeOpt func(t *Tree)

// WithLogger sets the logger used to record tree mutations.
func WithLogger(l *slog.Logger) TreeOpt {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

// WithRootName sets the name of the root group.  This defaults to "Root".
func WithRootName(name string) TreeOpt {
	return func(t *Tree) {
		t.root.Name = name
	}
}

// NewTree returns a segment tree containing an empty root group.
func NewTree(opts ...TreeOpt) *Tree {
	t := &Tree{
		root: NewGroup("Root", true),
		log:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Tree owns a segment's root group for the duration of a session.
//
// Mutations hold an exclusive lock and validate their arguments before changing
// anything, so each either applies fully or leaves the tree unchanged.  Reads and
// compilation hold a shared lock, so they always observe the latest mutation and
// may run concurrently with each other.
type Tree struct {
	lock sync.RWMutex
	root *Group
	log  *slog.Logger
}

// RootID returns the ID of the root group.
func (t *Tree) RootID() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.root.ID
}

// Snapshot returns a deep copy of the tree's root group.
func (t *Tree) Snapshot() *Group {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.root.Clone()
}

// View calls fn with the root group while holding a read lock.  fn must not
// modify or retain the group.
func (t *Tree) View(fn func(root *Group)) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	fn(t.root)
}

// Paths returns every group's ID and display path, root first.
func (t *Tree) Paths() []GroupPath {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return ListGroupPaths(t.root)
}

// Compile compiles the current tree against the given index.
func (t *Tree) Compile(idx *AttributeIndex) (Predicate, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return Compile(t.root, idx)
}

// Label returns the display label for the node with the given ID.
func (t *Tree) Label(id string, idx *AttributeIndex) (string, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if g := FindGroup(t.root, id); g != nil {
		return DisplayLabel(g, idx), true
	}
	if c, _ := FindCondition(t.root, id); c != nil {
		return DisplayLabel(c, idx), true
	}
	return "", false
}

// AddGroup appends a new, empty group to the given parent group, returning the new
// group's ID.
func (t *Tree) AddGroup(parentID, name string) (string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	parent := FindGroup(t.root, parentID)
	if parent == nil {
		return "", fmt.Errorf("%w: %s", ErrGroupNotFound, parentID)
	}
	g := NewGroup(name, false)
	parent.Children = append(parent.Children, g)
	t.log.Debug("added group", "id", g.ID, "parent", parentID, "name", name)
	return g.ID, nil
}

// AddCondition appends a new condition on the given attribute to the parent group,
// returning the new condition's ID.
func (t *Tree) AddCondition(parentID string, def AttributeDefinition) (string, error) {
	return t.AddConditionWith(parentID, def, "", "")
}

// AddConditionWith appends a new condition with the given operator and value in a
// single mutation, so readers never observe the condition with its default operator.
// An empty operator uses the attribute type's default.
func (t *Tree) AddConditionWith(parentID string, def AttributeDefinition, op Operator, value string) (string, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	parent := FindGroup(t.root, parentID)
	if parent == nil {
		return "", fmt.Errorf("%w: %s", ErrGroupNotFound, parentID)
	}
	c := NewCondition(def.Key(), def)
	if op != "" {
		c.Operator = op
	}
	c.Value = value
	parent.Children = append(parent.Children, c)
	t.log.Debug("added condition", "id", c.ID, "parent", parentID, "attribute", c.AttributeKey, "operator", c.Operator)
	return c.ID, nil
}

// RemoveChild removes a direct child of the given parent group.  Removing a child
// which no longer exists is not an error, as callers may hold stale references.
func (t *Tree) RemoveChild(parentID, childID string) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	parent := FindGroup(t.root, parentID)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, parentID)
	}
	if parent.RemoveChild(childID) {
		t.log.Debug("removed child", "id", childID, "parent", parentID)
	}
	return nil
}

// ReorderChildren reorders the children of the given group.  See
// Group.ReorderChildren.
func (t *Tree) ReorderChildren(parentID string, order []string) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	parent := FindGroup(t.root, parentID)
	if parent == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, parentID)
	}
	parent.ReorderChildren(order)
	t.log.Debug("reordered children", "parent", parentID)
	return nil
}

// Clear removes every node from the root group.
func (t *Tree) Clear() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.root.Children = []Node{}
	t.log.Debug("cleared tree")
}

// RenameGroup sets a group's name.
func (t *Tree) RenameGroup(id, name string) error {
	return t.updateGroup(id, func(g *Group) { g.Name = name })
}

// SetLogic sets whether a group's children are joined with AND or OR.
func (t *Tree) SetLogic(id string, logic Logic) error {
	if logic != LogicAnd && logic != LogicOr {
		return fmt.Errorf("%w: %q", ErrInvalidLogic, logic)
	}
	return t.updateGroup(id, func(g *Group) { g.Logic = logic })
}

// SetNegated sets whether a group is negated.
func (t *Tree) SetNegated(id string, negated bool) error {
	return t.updateGroup(id, func(g *Group) { g.Negated = negated })
}

// SetAttribute changes the attribute a condition compares.  When the attribute
// changes, the condition's operator is reset to the new attribute type's default and
// its value is cleared, so an operator or value never outlives its attribute.
func (t *Tree) SetAttribute(id string, def AttributeDefinition) error {
	return t.updateCondition(id, func(c *Condition) {
		key := def.Key()
		if c.AttributeKey == key {
			return
		}
		c.AttributeKey = key
		c.Operator = DefaultOperator(def.DataType)
		c.Value = ""
	})
}

// SetOperator sets a condition's operator.  Operators are validated against the
// attribute's type on compilation.
func (t *Tree) SetOperator(id string, op Operator) error {
	return t.updateCondition(id, func(c *Condition) { c.Operator = op })
}

// SetValue sets a condition's raw value.
func (t *Tree) SetValue(id, value string) error {
	return t.updateCondition(id, func(c *Condition) { c.Value = value })
}

func (t *Tree) updateGroup(id string, fn func(g *Group)) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	g := FindGroup(t.root, id)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	fn(g)
	t.log.Debug("updated group", "id", id, "name", g.Name, "logic", g.Logic, "negated", g.Negated)
	return nil
}

func (t *Tree) updateCondition(id string, fn func(c *Condition)) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	c, _ := FindCondition(t.root, id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrConditionNotFound, id)
	}
	fn(c)
	t.log.Debug("updated condition", "id", id, "attribute", c.AttributeKey, "operator", c.Operator)
	return nil
}
