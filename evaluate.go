package segment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/sourcegraph/conc/iter"
)

// Evaluator evaluates predicates against in-memory rows, eg. to preview which sample
// rows a segment selects without querying the warehouse.
type Evaluator struct {
	env   *cel.Env
	cache *programCache
	conc  int
}

type EvaluatorOpt func(*evaluatorOpts)

type evaluatorOpts struct {
	cacheSize   int64
	cacheTTL    time.Duration
	concurrency int
}

// WithCacheSize sets the maximum number of compiled programs retained.
func WithCacheSize(n int64) EvaluatorOpt {
	return func(o *evaluatorOpts) { o.cacheSize = n }
}

// WithCacheTTL sets how long compiled programs are retained.
func WithCacheTTL(d time.Duration) EvaluatorOpt {
	return func(o *evaluatorOpts) { o.cacheTTL = d }
}

// WithConcurrency limits the number of rows evaluated at once by Filter.  Zero uses
// GOMAXPROCS.
func WithConcurrency(n int) EvaluatorOpt {
	return func(o *evaluatorOpts) { o.concurrency = n }
}

func NewEvaluator(opts ...EvaluatorOpt) (*Evaluator, error) {
	o := &evaluatorOpts{}
	for _, opt := range opts {
		opt(o)
	}

	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating evaluation environment: %w", err)
	}

	return &Evaluator{
		env:   env,
		cache: newProgramCache(env, o.cacheSize, o.cacheTTL),
		conc:  o.concurrency,
	}, nil
}

// Match reports whether the row satisfies the predicate.  Row values are looked up by
// attribute key, then by column name.
func (e *Evaluator) Match(ctx context.Context, p Predicate, row map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	prepared, err := e.prepare(p)
	if err != nil {
		return false, err
	}
	return prepared.eval(row)
}

// Filter evaluates the predicate against each row concurrently, returning whether
// each row matched in the order given.
func (e *Evaluator) Filter(ctx context.Context, p Predicate, rows []map[string]any) ([]bool, error) {
	prepared, err := e.prepare(p)
	if err != nil {
		return nil, err
	}
	mapper := iter.Mapper[map[string]any, bool]{MaxGoroutines: e.conc}
	return mapper.MapErr(rows, func(row *map[string]any) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return prepared.eval(*row)
	})
}

// CacheStats returns the number of program cache hits and misses.
func (e *Evaluator) CacheStats() (hits, misses int64) {
	return e.cache.Hits(), e.cache.Misses()
}

// Close stops the program cache.
func (e *Evaluator) Close() {
	e.cache.Stop()
}

func (e *Evaluator) prepare(p Predicate) (*preparedPredicate, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot evaluate nil predicate")
	}
	l, err := liftPredicate(p)
	if err != nil {
		return nil, err
	}
	prg, err := e.cache.Program(l.src)
	if err != nil {
		return nil, fmt.Errorf("error compiling %q: %w", l.src, err)
	}
	return &preparedPredicate{prg: prg, lifted: l}, nil
}

type preparedPredicate struct {
	prg cel.Program
	*lifted
}

func (p *preparedPredicate) eval(row map[string]any) (bool, error) {
	act := make(map[string]any, len(p.comparisons))
	for _, c := range p.comparisons {
		if _, ok := act[c.Attribute]; ok {
			continue
		}
		raw, ok := row[c.Attribute]
		if !ok {
			raw, ok = row[c.Column]
		}
		if !ok || raw == nil {
			return false, fmt.Errorf("%w: %s", ErrMissingValue, c.Attribute)
		}
		v, err := coerceRowValue(ClassifyType(c.DataType), raw)
		if err != nil {
			return false, fmt.Errorf("%s: %w", c.Attribute, err)
		}
		act[c.Attribute] = v
	}

	out, _, err := p.prg.Eval(map[string]any{
		"row":  act,
		"vars": p.vars,
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate evaluated to %T, not bool", out.Value())
	}
	return b, nil
}

// coerceRowValue converts a row value into the Go type lifted literals use for the
// given type class.
func coerceRowValue(class TypeClass, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch class {
	case TypeNumeric:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int8:
			return float64(n), nil
		case int16:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case uint:
			return float64(n), nil
		case uint8:
			return float64(n), nil
		case uint16:
			return float64(n), nil
		case uint32:
			return float64(n), nil
		case uint64:
			return float64(n), nil
		case string:
			return coerceLiteral(class, n)
		}
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case int:
			return b != 0, nil
		case string:
			return coerceLiteral(class, b)
		}
	case TypeTemporal:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return coerceLiteral(class, t)
		}
		return coerceLiteral(class, fmt.Sprint(v))
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case int64:
			return strconv.FormatInt(s, 10), nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUncoercibleValue, v)
}
