package chainmap

import "fmt"

// engineNamed is implemented by the bundled evaluators.
type engineNamed interface {
	engine() string
}

func errDetachedRule(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("compiled rule missing evaluator"))
}

// ruleBindings builds the variable set a rule sees. Snapshot keys rejected by
// keep are skipped; now, args and metadata are always bound last and cannot
// be shadowed by snapshot keys.
func ruleBindings(ctx RuleContext, keep func(string) bool) map[string]any {
	snapshot := snapshotAsMap(ctx.Snapshot)
	bindings := make(map[string]any, len(snapshot)+3)
	for key, value := range snapshot {
		if keep == nil || keep(key) {
			bindings[key] = value
		}
	}
	bindings["now"] = ctx.timestamp()
	bindings["args"] = ctx.Args
	bindings["metadata"] = ctx.Metadata
	return bindings
}

// registryBindings exposes every registered function under its registered
// spelling and its lower-case form, plus a call(name, args...) dispatcher
// that accepts any casing.
func registryBindings(registry *FunctionRegistry) map[string]func(...any) (any, error) {
	if registry == nil {
		return nil
	}
	names := registry.Names()
	out := make(map[string]func(...any) (any, error), 2*len(names)+1)
	for _, name := range names {
		fn := func(arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
		out[name] = fn
		out[foldFunctionName(name)] = fn
	}
	out["call"] = func(arguments ...any) (any, error) {
		if len(arguments) == 0 {
			return nil, fmt.Errorf("chainmap: call requires a function name")
		}
		name, ok := arguments[0].(string)
		if !ok {
			return nil, fmt.Errorf("chainmap: call name must be string, got %T", arguments[0])
		}
		return registry.Call(name, arguments[1:]...)
	}
	return out
}

// programKey namespaces a cache key by engine and, when functions are
// compiled into the program, by the registry revision.
func programKey(engine string, registry *FunctionRegistry, expression string) string {
	if rev := registry.revision(); rev != "" {
		return engine + "@" + rev + ":" + expression
	}
	return engine + ":" + expression
}

// compileCached returns the program stored under key, compiling and storing
// it on a miss. A nil cache always compiles.
func compileCached[P any](cache ProgramCache, key string, compile func() (P, error)) (P, error) {
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}
