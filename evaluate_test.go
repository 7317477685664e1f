package chainmap

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

func skipUnavailable(t *testing.T, name string) {
	t.Helper()
	if name == "js" && !jsEvaluatorAvailable() {
		t.Skip("js evaluator requires the js_eval build tag")
	}
}

func buildRuleMap(primary map[string]any, layers []map[string]any, opts ...Option) *LayeredMap[string, any] {
	m := NewFromMaps(layers...).Configure(opts...)
	for key, value := range primary {
		_ = m.Add(key, value)
	}
	return m
}

func TestRulesFixture(t *testing.T) {
	type testCase struct {
		Name     string           `json:"name"`
		Primary  map[string]any   `json:"primary"`
		Layers   []map[string]any `json:"layers"`
		Args     map[string]any   `json:"args"`
		Metadata map[string]any   `json:"metadata"`
		Rule     string           `json:"rule"`
		Expect   bool             `json:"expect"`
	}
	type fixture struct {
		Description string     `json:"description"`
		Cases       []testCase `json:"cases"`
	}

	fx := loadFixture[fixture](t, "rules.json")

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			for _, tc := range fx.Cases {
				t.Run(tc.Name, func(t *testing.T) {
					m := buildRuleMap(tc.Primary, tc.Layers, WithEvaluator(factory.new(nil, nil)))
					resp, err := m.EvaluateWith(RuleContext{Args: tc.Args, Metadata: tc.Metadata}, tc.Rule)
					if err != nil {
						t.Fatalf("unexpected error from Evaluate: %v", err)
					}
					value, ok := resp.Value.(bool)
					if !ok {
						t.Fatalf("expected bool response, got %T", resp.Value)
					}
					if value != tc.Expect {
						t.Fatalf("expected %v, got %v", tc.Expect, value)
					}
				})
			}
		})
	}
}

func TestEvaluateDefaultsToExpr(t *testing.T) {
	var events []LogEvent
	m := NewFromMaps(map[string]any{"enabled": true}).Configure(
		WithName("flags"),
		WithLogger(LoggerFunc(func(e LogEvent) { events = append(events, e) })),
	)

	resp, err := m.Evaluate("enabled")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != true {
		t.Fatalf("expected true, got %v", resp.Value)
	}
	if len(events) != 1 {
		t.Fatalf("expected one evaluate event, got %d", len(events))
	}
	event := events[0]
	if event.Op != OpEvaluate || event.Engine != "expr" || event.Map != "flags" || event.Expr != "enabled" || event.Layer != -1 {
		t.Fatalf("unexpected evaluate event %#v", event)
	}
}

func TestEvaluateRejectsEmptyExpression(t *testing.T) {
	m := New[string, any]()
	if _, err := m.Evaluate(""); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
	for _, factory := range evaluatorFactories {
		if factory.name == "js" && !jsEvaluatorAvailable() {
			continue
		}
		if _, err := factory.new(nil, nil).Compile(""); !errors.Is(err, ErrEmptyExpression) {
			t.Fatalf("%s: expected ErrEmptyExpression from compile, got %v", factory.name, err)
		}
	}
}

func TestEvaluateErrorsCarryMetadata(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			var logged error
			m := NewFromMaps(map[string]any{"enabled": true}).Configure(
				WithName("flags"),
				WithEvaluator(factory.new(nil, nil)),
				WithLogger(LoggerFunc(func(e LogEvent) { logged = e.Err })),
			)

			_, err := m.Evaluate("enabled &&")
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %T (%v)", err, err)
			}
			if evalErr.Engine != factory.name {
				t.Fatalf("expected engine %q, got %q", factory.name, evalErr.Engine)
			}
			if evalErr.Expr != "enabled &&" {
				t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
			}
			if evalErr.Map != "flags" {
				t.Fatalf("expected map metadata, got %q", evalErr.Map)
			}
			if logged == nil {
				t.Fatalf("expected evaluation failure to be logged")
			}
		})
	}
}

func TestCompiledRuleReuse(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			m := NewFromMaps(map[string]any{"tier": "pro"}).Configure(WithEvaluator(factory.new(nil, nil)))

			rule, err := m.Compile(`tier == "pro"`)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			first, err := rule.Evaluate(RuleContext{Snapshot: m.Snapshot()})
			if err != nil || first != true {
				t.Fatalf("first evaluation: value=%v err=%v", first, err)
			}

			_ = m.Add("tier", "free")
			second, err := rule.Evaluate(RuleContext{Snapshot: m.Snapshot()})
			if err != nil || second != false {
				t.Fatalf("second evaluation: value=%v err=%v", second, err)
			}
		})
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			cache := &fakeProgramCache{}
			m := NewFromMaps(map[string]any{"count": 2.0}).Configure(WithEvaluator(factory.new(cache, nil)))

			for i := 0; i < 3; i++ {
				resp, err := m.Evaluate("count > 1.0")
				if err != nil {
					t.Fatalf("evaluate #%d: %v", i, err)
				}
				if resp.Value != true {
					t.Fatalf("evaluate #%d expected true, got %v", i, resp.Value)
				}
			}
			if cache.hits < 2 {
				t.Fatalf("expected cached program reuse, got %d hits and %d misses", cache.hits, cache.misses)
			}
			for key := range cache.store {
				if !strings.HasPrefix(key, factory.name+":") {
					t.Fatalf("cache key %q missing engine prefix", key)
				}
			}
		})
	}
}

func TestJSOptionsCompileInEveryBuild(t *testing.T) {
	evaluator := NewJSEvaluator(JSWithTimeout(time.Second), JSWithProgramCache(NewProgramCache()))
	if (evaluator != nil) != jsEvaluatorAvailable() {
		t.Fatalf("js evaluator presence should follow the build tag")
	}
	wrapped := fmt.Errorf("run: %w", ErrScriptTimeout)
	if !errors.Is(wrapped, ErrScriptTimeout) {
		t.Fatalf("expected ErrScriptTimeout to be matchable without the js_eval tag")
	}
}

func TestSharedProgramCacheKeepsRegistriesApart(t *testing.T) {
	rules := map[string]string{
		"expr": `scale(x)`,
		"cel":  `call("scale", [x])`,
		"js":   `scale(x)`,
	}
	scaleBy := func(factor float64) Function {
		return func(args ...any) (any, error) {
			switch v := args[0].(type) {
			case float64:
				return v * factor, nil
			case int64:
				return float64(v) * factor, nil
			}
			return nil, fmt.Errorf("scale: unexpected %T", args[0])
		}
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			cache := NewProgramCache()

			build := func(factor float64) *LayeredMap[string, any] {
				registry := NewFunctionRegistry()
				if err := registry.Register("scale", scaleBy(factor)); err != nil {
					t.Fatalf("register scale: %v", err)
				}
				return NewFromMaps(map[string]any{"x": 2.0}).Configure(WithEvaluator(factory.new(cache, registry)))
			}
			double, triple := build(2), build(3)

			for _, tc := range []struct {
				m    *LayeredMap[string, any]
				want string
			}{{double, "4"}, {triple, "6"}, {double, "4"}} {
				resp, err := tc.m.Evaluate(rules[factory.name])
				if err != nil {
					t.Fatalf("evaluate: %v", err)
				}
				if got := fmt.Sprint(resp.Value); got != tc.want {
					t.Fatalf("expected %s, got %s", tc.want, got)
				}
			}
		})
	}
}

func TestSharedProgramCacheReusedByClonedRegistry(t *testing.T) {
	cache := &fakeProgramCache{}
	m := NewFromMaps(map[string]any{"name": "edge"}).Configure(
		WithProgramCache(cache),
		WithCustomFunction("shout", func(args ...any) (any, error) {
			return strings.ToUpper(fmt.Sprint(args...)), nil
		}),
	)
	for i := 0; i < 2; i++ {
		if _, err := m.Evaluate("shout(name)"); err != nil {
			t.Fatalf("evaluate #%d: %v", i, err)
		}
	}
	if cache.hits != 1 || len(cache.store) != 1 {
		t.Fatalf("expected the second evaluation to hit the cache, got %d hits and %d entries", cache.hits, len(cache.store))
	}
	for key := range cache.store {
		if !strings.HasPrefix(key, "expr@") {
			t.Fatalf("expected registry revision in cache key, got %q", key)
		}
	}
}

func TestRegisteredFunctionsBindLowerCaseName(t *testing.T) {
	m := NewFromMaps(map[string]any{"name": "edge"}).Configure(
		WithCustomFunction("Shout", func(args ...any) (any, error) {
			return strings.ToUpper(fmt.Sprint(args...)), nil
		}),
	)
	for _, expr := range []string{"Shout(name)", "shout(name)", `call("SHOUT", name)`} {
		resp, err := m.Evaluate(expr)
		if err != nil {
			t.Fatalf("%s: %v", expr, err)
		}
		if resp.Value != "EDGE" {
			t.Fatalf("%s: expected EDGE, got %v", expr, resp.Value)
		}
	}
}

func TestWithProgramCacheFeedsDefaultEvaluator(t *testing.T) {
	cache := NewProgramCache()
	m := NewFromMaps(map[string]any{"a": 1.0}).Configure(WithProgramCache(cache))
	for i := 0; i < 2; i++ {
		if _, err := m.Evaluate("a + 1"); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %d", cache.Len())
	}
	if _, ok := cache.Get("expr:a + 1"); !ok {
		t.Fatalf("expected program cached under its expr key")
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	rules := map[string]string{
		"expr": `equalsIgnoreCase(tier, "PRO")`,
		"cel":  `call("equalsIgnoreCase", [tier, "PRO"])`,
		"js":   `equalsIgnoreCase(tier, "PRO")`,
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			registry := NewFunctionRegistry()
			if err := registry.Register("equalsIgnoreCase", func(args ...any) (any, error) {
				if len(args) != 2 {
					return nil, fmt.Errorf("equalsIgnoreCase expects 2 args")
				}
				a, _ := args[0].(string)
				b, _ := args[1].(string)
				return strings.EqualFold(a, b), nil
			}); err != nil {
				t.Fatalf("register equalsIgnoreCase: %v", err)
			}

			m := NewFromMaps(map[string]any{"tier": "pro"}).Configure(WithEvaluator(factory.new(nil, registry)))
			resp, err := m.Evaluate(rules[factory.name])
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if resp.Value != true {
				t.Fatalf("expected custom function to match, got %v", resp.Value)
			}
		})
	}
}

func TestWithCustomFunctionOnDefaultEvaluator(t *testing.T) {
	m := NewFromMaps(map[string]any{"name": "edge"}).Configure(
		WithCustomFunction("shout", func(args ...any) (any, error) {
			return strings.ToUpper(fmt.Sprint(args...)), nil
		}),
	)
	resp, err := m.Evaluate("shout(name)")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != "EDGE" {
		t.Fatalf("expected EDGE, got %v", resp.Value)
	}

	resp, err = m.Evaluate(`call("SHOUT", name)`)
	if err != nil {
		t.Fatalf("evaluate through call: %v", err)
	}
	if resp.Value != "EDGE" {
		t.Fatalf("expected call to dispatch case-insensitively, got %v", resp.Value)
	}
}

func TestRuleBindingsReserveContextNames(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bindings := ruleBindings(RuleContext{
		Now:      &at,
		Snapshot: map[string]any{"now": "shadow", "args": 1, "region": "eu", "skip-me": true},
		Args:     map[string]any{"limit": 2},
	}.withDefaults(), func(key string) bool { return key != "skip-me" })

	if bindings["now"] != at {
		t.Fatalf("snapshot must not shadow now, got %v", bindings["now"])
	}
	if args, ok := bindings["args"].(map[string]any); !ok || args["limit"] != 2 {
		t.Fatalf("snapshot must not shadow args, got %#v", bindings["args"])
	}
	if bindings["region"] != "eu" {
		t.Fatalf("expected snapshot key to be bound, got %#v", bindings)
	}
	if _, ok := bindings["skip-me"]; ok {
		t.Fatalf("filtered key must not be bound")
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	noop := func(...any) (any, error) { return nil, nil }

	if err := registry.Register("isWeekend", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("ISWEEKEND", noop); err == nil {
		t.Fatalf("expected case-insensitive duplicate to fail")
	}
	if err := registry.Register(" ", noop); err == nil {
		t.Fatalf("expected blank name to fail")
	}
	if err := registry.Register("nilFn", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}
	if !registry.Has("isweekend") {
		t.Fatalf("expected case-insensitive lookup")
	}
	if names := registry.Names(); len(names) != 1 || names[0] != "isWeekend" {
		t.Fatalf("expected registered spelling, got %v", names)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function to fail")
	}

	clone := registry.Clone()
	_ = clone.Register("extra", noop)
	if registry.Has("extra") {
		t.Fatalf("clone must not leak into the source registry")
	}
}

func TestEvaluateWithPassesContext(t *testing.T) {
	capture := &capturingEvaluator{}
	m := NewFromMaps(map[string]any{"a": 1}).Configure(WithName("ctx"), WithEvaluator(capture))

	if _, err := m.EvaluateWith(RuleContext{Args: map[string]any{"x": 1}}, "a"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(capture.contexts) != 1 {
		t.Fatalf("expected evaluator to receive one context, got %d", len(capture.contexts))
	}
	ctx := capture.contexts[0]
	if ctx.Now == nil || ctx.Now.IsZero() {
		t.Fatalf("expected EvaluateWith to default RuleContext.Now")
	}
	if ctx.Name != "ctx" {
		t.Fatalf("expected map name in context, got %q", ctx.Name)
	}
	snapshot, ok := ctx.Snapshot.(map[string]any)
	if !ok || snapshot["a"] != 1 {
		t.Fatalf("expected resolved view as snapshot, got %#v", ctx.Snapshot)
	}
	if ctx.Metadata == nil {
		t.Fatalf("expected metadata to default to an empty map")
	}

	fixed := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	_, _ = m.EvaluateWith(RuleContext{Now: &fixed, Snapshot: map[string]any{"b": 2}}, "b")
	ctx = capture.contexts[1]
	if !ctx.Now.Equal(fixed) {
		t.Fatalf("explicit Now must be kept, got %v", ctx.Now)
	}
	if ctx.Snapshot.(map[string]any)["b"] != 2 {
		t.Fatalf("explicit snapshot must be kept")
	}
}

func TestSnapshotStringifiesKeys(t *testing.T) {
	m := NewFromMaps(map[int]string{1: "one", 2: "two"})
	snapshot := m.Snapshot()
	if snapshot["1"] != "one" || snapshot["2"] != "two" {
		t.Fatalf("expected fmt.Sprint keys, got %#v", snapshot)
	}
}

func TestEvaluatorEngineName(t *testing.T) {
	if got := evaluatorEngineName(NewExprEvaluator()); got != "expr" {
		t.Fatalf("expected expr, got %q", got)
	}
	if got := evaluatorEngineName(NewCELEvaluator()); got != "cel" {
		t.Fatalf("expected cel, got %q", got)
	}
	if got := evaluatorEngineName(&capturingEvaluator{}); got != "custom" {
		t.Fatalf("expected custom, got %q", got)
	}
	if got := evaluatorEngineName(nil); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

type fakeProgramCache struct {
	store  map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	value, ok := c.store[key]
	if ok {
		c.hits++
		return value, true
	}
	c.misses++
	return nil, false
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

type capturingEvaluator struct {
	contexts []RuleContext
}

func (c *capturingEvaluator) Evaluate(ctx RuleContext, _ string) (any, error) {
	c.contexts = append(c.contexts, ctx)
	return true, nil
}

func (c *capturingEvaluator) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, fmt.Errorf("capturing evaluator does not support compile")
}
