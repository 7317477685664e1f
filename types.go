package chainmap

import (
	"iter"
	"maps"
	"time"

	"github.com/goliatone/go-chainmap/pkg/activity"
)

// Reader is the read-only contract a secondary layer must satisfy. The
// container only ever looks up keys, enumerates them and asks for a size.
type Reader[K comparable, V any] interface {
	Lookup(key K) (V, bool)
	Keys() iter.Seq[K]
	Len() int
}

// Named is implemented by layers that carry a label for traces.
type Named interface {
	LayerName() string
}

// Mapping adapts a plain Go map to Reader. Converting a caller's map with
// Mapping[K, V](m) shares storage, so later writes to m are visible through
// any LayeredMap holding it.
type Mapping[K comparable, V any] map[K]V

// Lookup implements Reader.
func (m Mapping[K, V]) Lookup(key K) (V, bool) {
	value, ok := m[key]
	return value, ok
}

// Keys implements Reader.
func (m Mapping[K, V]) Keys() iter.Seq[K] {
	return maps.Keys(m)
}

// Len implements Reader.
func (m Mapping[K, V]) Len() int {
	return len(m)
}

// LayeredMap resolves keys through a mutable primary map followed by an
// ordered list of secondary layers, strongest first.
type LayeredMap[K comparable, V any] struct {
	primary map[K]V
	layers  []Reader[K, V]

	cfg config
}

// Response stores a result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Name     string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Name != "" {
		return ctx.Name
	}
	return "unnamed"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// Option configures a LayeredMap.
type Option func(*config)

type config struct {
	name          string
	logger        Logger
	evaluator     Evaluator
	programCache  ProgramCache
	functions     *FunctionRegistry
	activityHooks activity.Hooks
	channel       string
	actorID       string
}

func applyOptions(cfg config, opts []Option) config {
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// clone detaches the mutable parts of cfg so a merged map never shares them
// with its source.
func (c config) clone() config {
	out := c
	out.functions = c.functions.Clone()
	out.activityHooks = cloneActivityHooks(c.activityHooks)
	return out
}

// WithName labels the map in logs, traces and activity events.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// WithEvaluator configures the evaluator used by Evaluate and Compile.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

func (m *LayeredMap[K, V]) label() string {
	if m.cfg.name != "" {
		return m.cfg.name
	}
	return "chainmap"
}

func (m *LayeredMap[K, V]) logger() Logger {
	if m.cfg.logger != nil {
		return m.cfg.logger
	}
	return noopLogger{}
}
