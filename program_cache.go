package chainmap

import "github.com/puzpuzpuz/xsync/v3"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// MemoryProgramCache is a ProgramCache safe for concurrent use, so one cache
// can back evaluators shared across maps.
type MemoryProgramCache struct {
	programs *xsync.MapOf[string, any]
}

// NewProgramCache constructs an empty MemoryProgramCache.
func NewProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{programs: xsync.NewMapOf[string, any]()}
}

// Get implements ProgramCache.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

// Set implements ProgramCache.
func (c *MemoryProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

// Len returns the number of cached programs.
func (c *MemoryProgramCache) Len() int {
	return c.programs.Size()
}
