package chainmap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyNotFound indicates the key is not visible in any layer.
	ErrKeyNotFound = errors.New("chainmap: key not found")
	// ErrDuplicateKey indicates Add found the key already present in the
	// primary map.
	ErrDuplicateKey = errors.New("chainmap: key already exists in primary map")
	// ErrIndexOutOfRange indicates a strict layer accessor received an index
	// outside the secondary layer list.
	ErrIndexOutOfRange = errors.New("chainmap: layer index out of range")
)

// KeyError reports a failed keyed operation alongside the offending key.
type KeyError struct {
	Op  string
	Key any
	Err error
}

func (e *KeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: %s key=%v", e.Err, e.Op, e.Key)
}

func (e *KeyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IndexError reports a failed layer access.
type IndexError struct {
	Op    string
	Index int
	Len   int
	Err   error
}

func (e *IndexError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: %s index=%d layers=%d", e.Err, e.Op, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Map    string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("chainmap: %s evaluator %s map=%s: %v", e.Engine, describeExpression(e.Expr), e.Map, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "chainmap:") {
		return err
	}
	return fmt.Errorf("chainmap: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, name string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Map == "" {
			evalErr.Map = name
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Map:    name,
		Err:    err,
	}
}
