// backend-go/internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine can record
type ErrorKind string

const (
	ErrKindConfig           ErrorKind = "config_error"
	ErrKindExtraction       ErrorKind = "extraction_warning"
	ErrKindMissingVariable  ErrorKind = "missing_variable"
	ErrKindEvaluation       ErrorKind = "evaluation_error"
	ErrKindStrategy         ErrorKind = "strategy_error"
	ErrKindExternalStrategy ErrorKind = "external_strategy_error"
	ErrKindInternal         ErrorKind = "internal_error"
)

// KindedError is implemented by all typed engine errors
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first typed error in err's chain, or ErrKindInternal.
func KindOf(err error) ErrorKind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return ErrKindInternal
}

// ConfigError reports an unusable blueprint or policy
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string   { return "config error: " + e.Msg }
func (e *ConfigError) Kind() ErrorKind { return ErrKindConfig }

// MethodNotFoundError is returned when a policy names a method the blueprint does not define
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %q not found in blueprint", e.Method)
}
func (e *MethodNotFoundError) Kind() ErrorKind { return ErrKindConfig }

// ExtractionWarning reports a parameter whose value could not be coerced to a number.
// The parameter is left out of the variable set; the item continues.
type ExtractionWarning struct {
	Parameter string
	Value     any
	Required  bool
}

func (w *ExtractionWarning) Error() string {
	req := ""
	if w.Required {
		req = " (required)"
	}
	return fmt.Sprintf("skipped parameter %q%s: cannot convert %v (%T) to a number", w.Parameter, req, w.Value, w.Value)
}
func (w *ExtractionWarning) Kind() ErrorKind { return ErrKindExtraction }

// MissingVariableError is returned when an expression references a name that is not bound
type MissingVariableError struct {
	Name string
	Expr string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q in expression %q", e.Name, e.Expr)
}
func (e *MissingVariableError) Kind() ErrorKind { return ErrKindMissingVariable }

// EvaluationError covers malformed or disallowed expressions and runtime arithmetic failures.
// Pos is the byte offset in Expr, or -1 when not tied to a position.
type EvaluationError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *EvaluationError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("evaluation error at offset %d in %q: %s", e.Pos, e.Expr, e.Msg)
	}
	return fmt.Sprintf("evaluation error in %q: %s", e.Expr, e.Msg)
}
func (e *EvaluationError) Kind() ErrorKind { return ErrKindEvaluation }

// StrategyError reports insufficient data or a numeric failure inside a strategy.
// It triggers the strategy's fallback value rather than failing the item.
type StrategyError struct {
	Method string
	Msg    string
	Err    error
}

func (e *StrategyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("strategy %s: %s: %v", e.Method, e.Msg, e.Err)
	}
	return fmt.Sprintf("strategy %s: %s", e.Method, e.Msg)
}
func (e *StrategyError) Unwrap() error   { return e.Err }
func (e *StrategyError) Kind() ErrorKind { return ErrKindStrategy }

// ExternalStrategyError reports a delegated model call that failed, timed out or
// returned an unusable shape.
type ExternalStrategyError struct {
	Method string
	Msg    string
	Err    error
}

func (e *ExternalStrategyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("external strategy %s: %s: %v", e.Method, e.Msg, e.Err)
	}
	return fmt.Sprintf("external strategy %s: %s", e.Method, e.Msg)
}
func (e *ExternalStrategyError) Unwrap() error   { return e.Err }
func (e *ExternalStrategyError) Kind() ErrorKind { return ErrKindExternalStrategy }
