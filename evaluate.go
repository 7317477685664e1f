package chainmap

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoEvaluator is returned when no evaluator can be resolved for a map.
	ErrNoEvaluator = errors.New("chainmap: evaluator not configured")
	// ErrEmptyExpression is returned by Evaluate and every engine's Compile
	// for an empty expression.
	ErrEmptyExpression = errors.New("chainmap: expression must not be empty")
)

// Evaluate runs expr against the resolved view of the map. Every visible key
// is exposed as a variable holding its effective value.
func (m *LayeredMap[K, V]) Evaluate(expr string) (Response[any], error) {
	return m.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr using ctx, falling back to the resolved view of the
// map when ctx.Snapshot is nil.
func (m *LayeredMap[K, V]) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, ErrEmptyExpression
	}
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = m.snapshot()
	}
	if ctx.Name == "" {
		ctx.Name = m.label()
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.label(), evalErr)
	m.logger().Log(LogEvent{
		Map:      m.label(),
		Op:       OpEvaluate,
		Layer:    -1,
		Engine:   engine,
		Expr:     expr,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

// Compile prepares expr with the configured evaluator. The returned rule can
// be evaluated repeatedly against Snapshot contexts.
func (m *LayeredMap[K, V]) Compile(expr string) (CompiledRule, error) {
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	return evaluator.Compile(expr)
}

// Snapshot returns the resolved view as a string-keyed map, the shape rule
// evaluators consume. Keys that are not strings are rendered with fmt.Sprint.
func (m *LayeredMap[K, V]) Snapshot() map[string]any {
	return m.snapshot()
}

func (m *LayeredMap[K, V]) snapshot() map[string]any {
	out := make(map[string]any, len(m.primary))
	for key, value := range m.All() {
		out[keyString(key)] = value
	}
	return out
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}

func snapshotAsMap(value any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// resolveEvaluator builds the default expr evaluator on every call so options
// applied later through Configure are honoured.
func (m *LayeredMap[K, V]) resolveEvaluator() (Evaluator, error) {
	if m.cfg.evaluator != nil {
		return m.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := m.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := m.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e := e.(type) {
	case nil:
		return "unknown"
	case engineNamed:
		return e.engine()
	default:
		return "custom"
	}
}
