//go:build js_eval

package chainmap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	jsSettings
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime; the expression is wrapped so it may be a single
// JavaScript expression rather than a statement list.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{jsSettings: newJSSettings(opts)}
}

func (e *jsEvaluator) engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	program, err := compileCached(e.cache, "js:"+expression, func() (*goja.Program, error) {
		program, err := goja.Compile("rule", "(function(){ return ("+expression+"); })()", true)
		if err != nil {
			return nil, wrapEvaluationError("js", expression, "", err)
		}
		return program, nil
	})
	if err != nil {
		return nil, err
	}
	return &jsRule{evaluator: e, program: program, expression: expression}, nil
}

func (e *jsEvaluator) run(ctx RuleContext, program *goja.Program) (goja.Value, error) {
	vm := goja.New()
	for name, value := range ruleBindings(ctx, nil) {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}
	for name, fn := range registryBindings(e.registry) {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(ErrScriptTimeout)
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return nil, fmt.Errorf("%w after %s", cause, e.timeout)
		}
	}
	return value, err
}

type jsRule struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil || r.program == nil {
		return nil, errDetachedRule("js")
	}
	ctx = ctx.withDefaults()
	value, err := r.evaluator.run(ctx, r.program)
	if err != nil {
		return nil, wrapEvaluationError("js", r.expression, ctx.label(), err)
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool { return true }
