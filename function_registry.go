package chainmap

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions and is safe for concurrent use.
// Lookups ignore case; Names reports the spelling used at registration.
type FunctionRegistry struct {
	once      sync.Once
	functions *xsync.MapOf[string, registeredFunction]
	// rev changes on every registration and is copied by Clone, so equal
	// revisions imply the same function set.
	rev atomic.Pointer[string]
}

type registeredFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{}
	r.table()
	return r
}

func (r *FunctionRegistry) table() *xsync.MapOf[string, registeredFunction] {
	r.once.Do(func() {
		if r.functions == nil {
			r.functions = xsync.NewMapOf[string, registeredFunction]()
		}
		if r.rev.Load() == nil {
			r.bump()
		}
	})
	return r.functions
}

// Register stores fn under name. Names differing only in case collide.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := foldFunctionName(name)
	switch {
	case fn == nil:
		return fmt.Errorf("chainmap: function %q is nil", name)
	case key == "":
		return fmt.Errorf("chainmap: function name must not be empty")
	}
	entry := registeredFunction{name: strings.TrimSpace(name), fn: fn}
	if _, loaded := r.table().LoadOrStore(key, entry); loaded {
		return fmt.Errorf("chainmap: function %q already registered", name)
	}
	r.bump()
	return nil
}

func (r *FunctionRegistry) bump() {
	rev := uuid.NewString()
	r.rev.Store(&rev)
}

// revision identifies the current function set. Compiled programs that
// capture registry functions are cached per revision.
func (r *FunctionRegistry) revision() string {
	if r == nil {
		return ""
	}
	r.table()
	return *r.rev.Load()
}

// Clone returns a registry holding the same functions. Registrations on
// either side are not shared afterwards.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	clone := NewFunctionRegistry()
	r.table().Range(func(key string, entry registeredFunction) bool {
		clone.functions.Store(key, entry)
		return true
	})
	clone.rev.Store(r.rev.Load())
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("chainmap: function registry is nil")
	}
	entry, ok := r.table().Load(foldFunctionName(name))
	if !ok {
		return nil, fmt.Errorf("chainmap: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	var names []string
	r.table().Range(func(_ string, entry registeredFunction) bool {
		names = append(names, entry.name)
		return true
	})
	slices.Sort(names)
	return names
}

// Has reports whether a function is registered under name.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.table().Load(foldFunctionName(name))
	return ok
}

func foldFunctionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// WithFunctionRegistry exposes the functions in registry to rule evaluation.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for rule evaluation.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
