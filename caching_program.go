package segment

import (
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/karlseguin/ccache/v2"
)

const (
	defaultCacheSize = 1_000
	defaultCacheTTL  = time.Hour
)

// programCache caches CEL programs by their lifted source.  Because literals are
// lifted into variables before compiling, segments which differ only in their values
// share a single program.
type programCache struct {
	cache *ccache.Cache
	env   *cel.Env
	ttl   time.Duration

	hits   int64
	misses int64
}

func newProgramCache(env *cel.Env, size int64, ttl time.Duration) *programCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &programCache{
		cache: ccache.New(ccache.Configure().MaxSize(size)),
		env:   env,
		ttl:   ttl,
	}
}

// Program returns the compiled program for the given CEL source, compiling and
// storing the program on a cache miss.
func (c *programCache) Program(src string) (cel.Program, error) {
	if item := c.cache.Get(src); item != nil && !item.Expired() {
		atomic.AddInt64(&c.hits, 1)
		return item.Value().(cel.Program), nil
	}
	atomic.AddInt64(&c.misses, 1)

	ast, issues := c.env.Parse(src)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}
	c.cache.Set(src, prg, c.ttl)
	return prg, nil
}

func (c *programCache) Hits() int64 {
	return atomic.LoadInt64(&c.hits)
}

func (c *programCache) Misses() int64 {
	return atomic.LoadInt64(&c.misses)
}

func (c *programCache) Stop() {
	c.cache.Stop()
}
