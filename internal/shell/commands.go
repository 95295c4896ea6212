package shell

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/snowflake-labs/segment"
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, s *Shell, args string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":      {"help", "show this help", cmdHelp},
		"attrs":     {"attrs [query]", "list attributes, optionally filtered by label", cmdAttrs},
		"operators": {"operators <data type>", "list the operators allowed for a data type", cmdOperators},
		"paths":     {"paths", "list every group", cmdPaths},
		"use":       {"use <group>", "add new nodes to the given group", cmdUse},
		"group":     {"group [name]", "add a group to the active group", cmdGroup},
		"cond":      {"cond <attribute> [operator [value]]", "add a condition to the active group", cmdCond},
		"attr":      {"attr <condition> <attribute>", "change a condition's attribute", cmdAttr},
		"op":        {"op <condition> <operator>", "change a condition's operator", cmdOp},
		"value":     {"value <condition> <value>", "change a condition's value", cmdValue},
		"logic":     {"logic <group> and|or", "join a group's children with AND or OR", cmdLogic},
		"not":       {"not <group> [on|off]", "negate a group, toggling by default", cmdNot},
		"rename":    {"rename <group> <name>", "rename a group", cmdRename},
		"rm":        {"rm <node>", "remove a node and its children", cmdRemove},
		"move":      {"move <group> <node>...", "reorder a group's children, listed nodes first", cmdMove},
		"clear":     {"clear", "remove every node", cmdClear},
		"show":      {"show", "print the segment tree", cmdShow},
		"compile":   {"compile", "print the compiled segment", cmdCompile},
		"json":      {"json", "print the compiled segment as JSON", cmdJSON},
		"sql":       {"sql", "print the segment as a parameterized WHERE clause", cmdSQL},
		"match":     {"match <column>=<value>...", "evaluate the segment against a single row", cmdMatch},
		"count":     {"count", "count the rows within the segment", cmdCount},
		"sample":    {"sample [limit]", "show rows within the segment", cmdSample},
		"quit":      {"quit", "exit the shell", cmdQuit},
		"exit":      {"exit", "exit the shell", cmdQuit},
	}
}

func cmdHelp(_ context.Context, s *Shell, _ string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	s.printf("Commands:\n")
	for _, name := range names {
		c := commands[name]
		s.printf("  %-38s %s\n", c.usage, c.help)
	}
	s.printf("\nNodes are referenced by ID prefix, or root for the root group.\n")
	return nil
}

func cmdAttrs(_ context.Context, s *Shell, args string) error {
	WriteAttributes(s.opts.Out, s.idx.Search(args))
	return nil
}

func cmdOperators(_ context.Context, s *Shell, args string) error {
	if args == "" {
		return errors.New("usage: operators <data type>")
	}
	ops := segment.OperatorOptions(args)
	names := make([]string, len(ops))
	for n, op := range ops {
		names[n] = string(op)
	}
	s.printf("%s (%s): %s\n", segment.NormalizeType(args), segment.ClassifyType(args), strings.Join(names, ", "))
	return nil
}

func cmdPaths(_ context.Context, s *Shell, _ string) error {
	for _, p := range s.tree.Paths() {
		marker := " "
		if p.ID == s.active {
			marker = "*"
		}
		s.printf("%s %s  %s\n", marker, short(p.ID), p.Path)
	}
	return nil
}

func cmdUse(_ context.Context, s *Shell, args string) error {
	g, err := s.resolveGroup(args)
	if err != nil {
		return err
	}
	s.active = g.ID
	return nil
}

func cmdGroup(_ context.Context, s *Shell, args string) error {
	name := args
	if name == "" {
		name = "Group"
	}
	id, err := s.tree.AddGroup(s.active, name)
	if err != nil {
		return err
	}
	s.printf("added group %s\n", short(id))
	return nil
}

func cmdCond(_ context.Context, s *Shell, args string) error {
	ref, rest := cut(args)
	if ref == "" {
		return errors.New("usage: cond <attribute> [operator [value]]")
	}
	def, err := s.resolveAttribute(ref)
	if err != nil {
		return err
	}

	// Validate the operator before adding anything, so that a failed command
	// leaves the tree unchanged.  The condition is then added in one mutation.
	var (
		op    segment.Operator
		value string
	)
	if rest != "" {
		op, value = splitOperator(rest)
		if !segment.IsLegalOperator(def.DataType, op) {
			return invalidOperator(def, op)
		}
	}

	id, err := s.tree.AddConditionWith(s.active, def, op, value)
	if err != nil {
		return err
	}
	s.printf("added condition %s\n", short(id))
	return nil
}

func cmdAttr(_ context.Context, s *Shell, args string) error {
	ref, attr := cut(args)
	c, err := s.resolveCondition(ref)
	if err != nil {
		return err
	}
	def, err := s.resolveAttribute(attr)
	if err != nil {
		return err
	}
	return s.tree.SetAttribute(c.ID, def)
}

func cmdOp(_ context.Context, s *Shell, args string) error {
	ref, rest := cut(args)
	c, err := s.resolveCondition(ref)
	if err != nil {
		return err
	}
	op := segment.ParseOperator(rest)
	if def, ok := s.idx.Get(c.AttributeKey); ok && !segment.IsLegalOperator(def.DataType, op) {
		return invalidOperator(def, op)
	}
	return s.tree.SetOperator(c.ID, op)
}

func cmdValue(_ context.Context, s *Shell, args string) error {
	ref, value := cut(args)
	c, err := s.resolveCondition(ref)
	if err != nil {
		return err
	}
	return s.tree.SetValue(c.ID, value)
}

func cmdLogic(_ context.Context, s *Shell, args string) error {
	ref, rest := cut(args)
	g, err := s.resolveGroup(ref)
	if err != nil {
		return err
	}
	logic, err := segment.ParseLogic(rest)
	if err != nil {
		return err
	}
	return s.tree.SetLogic(g.ID, logic)
}

func cmdNot(_ context.Context, s *Shell, args string) error {
	ref, rest := cut(args)
	g, err := s.resolveGroup(ref)
	if err != nil {
		return err
	}
	negated := !g.Negated
	switch strings.ToLower(rest) {
	case "":
	case "on", "true", "yes":
		negated = true
	case "off", "false", "no":
		negated = false
	default:
		return fmt.Errorf("expected on or off, got %q", rest)
	}
	return s.tree.SetNegated(g.ID, negated)
}

func cmdRename(_ context.Context, s *Shell, args string) error {
	ref, name := cut(args)
	g, err := s.resolveGroup(ref)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("usage: rename <group> <name>")
	}
	return s.tree.RenameGroup(g.ID, name)
}

func cmdRemove(_ context.Context, s *Shell, args string) error {
	n, err := s.resolve(args)
	if err != nil {
		return err
	}
	if g, ok := n.(*segment.Group); ok && g.IsRoot {
		return errors.New("the root group cannot be removed: use clear instead")
	}
	parent, err := s.parentOf(n.NodeID())
	if err != nil {
		return err
	}
	if err := s.tree.RemoveChild(parent.ID, n.NodeID()); err != nil {
		return err
	}
	s.resetActive()
	return nil
}

func cmdMove(_ context.Context, s *Shell, args string) error {
	ref, rest := cut(args)
	g, err := s.resolveGroup(ref)
	if err != nil {
		return err
	}
	order := []string{}
	for _, prefix := range strings.Fields(rest) {
		n, err := s.resolve(prefix)
		if err != nil {
			return err
		}
		order = append(order, n.NodeID())
	}
	return s.tree.ReorderChildren(g.ID, order)
}

func cmdClear(_ context.Context, s *Shell, _ string) error {
	s.tree.Clear()
	s.resetActive()
	return nil
}

func cmdShow(_ context.Context, s *Shell, _ string) error {
	s.tree.View(func(root *segment.Group) {
		s.writeNode(root, 0)
	})
	return nil
}

func (s *Shell) writeNode(n segment.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *segment.Group:
		prefix := ""
		if v.Negated {
			prefix = "NOT "
		}
		s.printf("%s[%s] %s%s %s\n", indent, short(v.ID), prefix, segment.DisplayLabel(v, s.idx), v.Logic)
		for _, child := range v.Children {
			s.writeNode(child, depth+1)
		}
	case *segment.Condition:
		s.printf("%s[%s] %s\n", indent, short(v.ID), segment.DisplayLabel(v, s.idx))
	}
}

func cmdCompile(_ context.Context, s *Shell, _ string) error {
	p, err := s.compile()
	if err != nil {
		return err
	}
	s.printf("%s\n", p)
	return nil
}

func cmdJSON(_ context.Context, s *Shell, _ string) error {
	p, err := s.compile()
	if err != nil {
		return err
	}
	s.printf("%s\n", oj.JSON(segment.MarshalMap(p), &ojg.Options{Sort: true, Indent: 2}))
	return nil
}

func cmdSQL(_ context.Context, s *Shell, _ string) error {
	p, err := s.compile()
	if err != nil {
		return err
	}
	frag, args, err := segment.RenderSQL(p, s.opts.Dialect)
	if err != nil {
		return err
	}
	s.printf("WHERE %s\n", frag)
	for n, arg := range args {
		s.printf("  %d: %#v\n", n+1, arg)
	}
	return nil
}

func cmdMatch(ctx context.Context, s *Shell, args string) error {
	p, err := s.compile()
	if err != nil {
		return err
	}
	row := map[string]any{}
	for _, field := range strings.Fields(args) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			return fmt.Errorf("expected column=value, got %q", field)
		}
		row[k] = v
	}
	ok, err := s.eval.Match(ctx, p, row)
	if err != nil {
		return err
	}
	s.printf("%t\n", ok)
	return nil
}

func cmdCount(ctx context.Context, s *Shell, _ string) error {
	if s.opts.Runner == nil {
		return errors.New("count requires a warehouse connection")
	}
	p, err := s.compile()
	if err != nil {
		return err
	}
	count, err := s.opts.Runner.Count(ctx, p)
	if err != nil {
		return err
	}
	s.printf("%d\n", count)
	return nil
}

func cmdSample(ctx context.Context, s *Shell, args string) error {
	if s.opts.Runner == nil {
		return errors.New("sample requires a warehouse connection")
	}
	limit := s.opts.SampleLimit
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid sample limit %q", args)
		}
		limit = n
	}
	p, err := s.compile()
	if err != nil {
		return err
	}
	rows, err := s.opts.Runner.Sample(ctx, p, limit)
	if err != nil {
		return err
	}
	WriteRows(s.opts.Out, rows)
	return nil
}

func cmdQuit(context.Context, *Shell, string) error {
	return ErrQuit
}

// splitOperator parses the longest operator at the start of s, returning the
// remainder as the value, eg. "NOT IN Gold, Silver".
func splitOperator(s string) (segment.Operator, string) {
	fields := strings.Fields(s)
	for n := min(2, len(fields)-1); n >= 0; n-- {
		op := segment.ParseOperator(strings.Join(fields[:n+1], " "))
		if isKnownOperator(op) {
			return op, skipFields(s, n+1)
		}
	}
	return segment.ParseOperator(fields[0]), skipFields(s, 1)
}

func skipFields(s string, n int) string {
	for ; n > 0; n-- {
		_, s = cut(s)
	}
	return s
}

func isKnownOperator(op segment.Operator) bool {
	for _, t := range []string{"NUMBER", "BOOLEAN", "DATE", "VARCHAR"} {
		if segment.IsLegalOperator(t, op) {
			return true
		}
	}
	return false
}

func invalidOperator(def segment.AttributeDefinition, op segment.Operator) error {
	allowed := segment.OperatorOptions(def.DataType)
	names := make([]string, len(allowed))
	for n, o := range allowed {
		names[n] = string(o)
	}
	return fmt.Errorf("operator %q is not valid for %s (%s): expected one of %s", op, def.Label, def.DataType, strings.Join(names, ", "))
}

func (s *Shell) resetActive() {
	s.tree.View(func(root *segment.Group) {
		if segment.FindGroup(root, s.active) == nil {
			s.active = root.ID
		}
	})
}
