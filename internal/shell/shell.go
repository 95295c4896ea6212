// Package shell implements a line based command interpreter for building segments,
// used by the interactive segmentctl shell and for running scripts.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/snowflake-labs/segment"
)

// ErrQuit is returned by Exec when the quit command is run.
var ErrQuit = errors.New("quit")

// shortID is the number of ID characters displayed.
const shortID = 8

// Runner runs compiled segments against a warehouse.
type Runner interface {
	Count(ctx context.Context, p segment.Predicate) (int64, error)
	Sample(ctx context.Context, p segment.Predicate, limit int) ([]map[string]any, error)
}

type Opts struct {
	Out io.Writer
	// Runner executes count and sample commands.  Both commands are unavailable
	// when nil.
	Runner      Runner
	Dialect     segment.Dialect
	SampleLimit int
	Logger      *slog.Logger
}

// Shell holds a single segment tree and the group new nodes are added to.
type Shell struct {
	tree   *segment.Tree
	idx    *segment.AttributeIndex
	eval   *segment.Evaluator
	opts   Opts
	log    *slog.Logger
	active string
}

func New(idx *segment.AttributeIndex, opts Opts) (*Shell, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	eval, err := segment.NewEvaluator()
	if err != nil {
		return nil, err
	}

	tree := segment.NewTree(segment.WithLogger(log))
	return &Shell{
		tree:   tree,
		idx:    idx,
		eval:   eval,
		opts:   opts,
		log:    log,
		active: tree.RootID(),
	}, nil
}

// Tree returns the shell's segment tree.
func (s *Shell) Tree() *segment.Tree {
	return s.tree
}

func (s *Shell) Close() {
	s.eval.Close()
}

// Prompt returns the prompt for the active group, eg. "segment:Root > Nested> ".
func (s *Shell) Prompt() string {
	for _, p := range s.tree.Paths() {
		if p.ID == s.active {
			return "segment:" + p.Path + "> "
		}
	}
	return "segment> "
}

// Run executes each line read from r, stopping at the first error.  Blank lines and
// lines starting with # are skipped.
func (s *Shell) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		err := s.Exec(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

// Exec executes a single command.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	name, args := cut(line)
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown command %q: run help for a list of commands", name)
	}
	s.log.Debug("executing command", "command", name)
	return cmd.run(ctx, s, args)
}

// cut splits the first field from a line, returning the trimmed remainder.
func cut(line string) (string, string) {
	line = strings.TrimSpace(line)
	n := strings.IndexAny(line, " \t")
	if n < 0 {
		return line, ""
	}
	return line[:n], strings.TrimSpace(line[n+1:])
}

// resolve finds the node whose ID begins with the given prefix.  "root" always
// resolves to the root group.
func (s *Shell) resolve(prefix string) (segment.Node, error) {
	if prefix == "" {
		return nil, errors.New("a node ID is required")
	}
	root := s.tree.Snapshot()
	if strings.EqualFold(prefix, "root") {
		return root, nil
	}

	var matches []segment.Node
	var walk func(g *segment.Group)
	walk = func(g *segment.Group) {
		if strings.HasPrefix(g.ID, prefix) {
			matches = append(matches, g)
		}
		for _, child := range g.Children {
			switch n := child.(type) {
			case *segment.Group:
				walk(n)
			case *segment.Condition:
				if strings.HasPrefix(n.ID, prefix) {
					matches = append(matches, n)
				}
			}
		}
	}
	walk(root)

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no node matches %q", prefix)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("%q matches %d nodes", prefix, len(matches))
}

func (s *Shell) resolveGroup(prefix string) (*segment.Group, error) {
	n, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	g, ok := n.(*segment.Group)
	if !ok {
		return nil, fmt.Errorf("%s is a condition, not a group", short(n.NodeID()))
	}
	return g, nil
}

func (s *Shell) resolveCondition(prefix string) (*segment.Condition, error) {
	n, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	c, ok := n.(*segment.Condition)
	if !ok {
		return nil, fmt.Errorf("%s is a group, not a condition", short(n.NodeID()))
	}
	return c, nil
}

// resolveAttribute finds an attribute by key, or by a unique column name or label
// ignoring case.
func (s *Shell) resolveAttribute(ref string) (segment.AttributeDefinition, error) {
	if def, ok := s.idx.Get(ref); ok {
		return def, nil
	}
	var matches []segment.AttributeDefinition
	for _, def := range s.idx.All() {
		if strings.EqualFold(def.Name, ref) || strings.EqualFold(def.Label, ref) {
			matches = append(matches, def)
		}
	}
	switch len(matches) {
	case 0:
		return segment.AttributeDefinition{}, fmt.Errorf("unknown attribute %q", ref)
	case 1:
		return matches[0], nil
	}
	keys := make([]string, len(matches))
	for n, m := range matches {
		keys[n] = m.Key()
	}
	return segment.AttributeDefinition{}, fmt.Errorf("attribute %q is ambiguous: use one of %s", ref, strings.Join(keys, ", "))
}

// parentOf returns the group directly containing the node.
func (s *Shell) parentOf(id string) (*segment.Group, error) {
	var parent *segment.Group
	s.tree.View(func(root *segment.Group) {
		if _, p := segment.FindCondition(root, id); p != nil {
			parent = p
			return
		}
		var walk func(g *segment.Group) bool
		walk = func(g *segment.Group) bool {
			for _, child := range g.Children {
				sub, ok := child.(*segment.Group)
				if !ok {
					continue
				}
				if sub.ID == id {
					parent = g
					return true
				}
				if walk(sub) {
					return true
				}
			}
			return false
		}
		walk(root)
	})
	if parent == nil {
		return nil, fmt.Errorf("%s has no parent group", short(id))
	}
	return parent, nil
}

func (s *Shell) compile() (segment.Predicate, error) {
	return s.tree.Compile(s.idx)
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.opts.Out, format, args...)
}

func short(id string) string {
	if len(id) > shortID {
		return id[:shortID]
	}
	return id
}
