// Package errs defines the runtime's error taxonomy.
//
// Each kind is a small struct implementing error and Unwrap, so callers can
// use errors.As/errors.Is against both the concrete kind and any wrapped
// cause.
package errs

import "fmt"

// ConfigurationError reports a malformed document, an unknown setting, a
// duplicated statement id, or an IncompleteElement that never resolved by
// the end of the compilation sweep.
type ConfigurationError struct {
	Msg   string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(msg string, cause error) *ConfigurationError {
	return &ConfigurationError{Msg: msg, Cause: cause}
}

// IncompleteElement is raised transiently during compilation when a builder
// depends on a reference (extends, cache-ref, nested result map) that is not
// yet compiled. The compiler parks the builder and retries it at the
// end-of-compilation sweep; if it still fails after the sweep it is
// promoted to a ConfigurationError.
type IncompleteElement struct {
	Kind string // "resultMap" | "statement" | "cache-ref" | "method" | "sql"
	ID   string
	Msg  string
}

func (e *IncompleteElement) Error() string {
	return fmt.Sprintf("incomplete %s %q: %s", e.Kind, e.ID, e.Msg)
}

// NewIncompleteElement builds an IncompleteElement.
func NewIncompleteElement(kind, id, msg string) *IncompleteElement {
	return &IncompleteElement{Kind: kind, ID: id, Msg: msg}
}

// BindingError reports a method not bound to any statement, a return type
// incompatible with the resolved result shape, or an unregistered mapper.
type BindingError struct {
	Msg string
}

func (e *BindingError) Error() string { return fmt.Sprintf("binding error: %s", e.Msg) }

// NewBindingError builds a BindingError.
func NewBindingError(format string, args ...any) *BindingError {
	return &BindingError{Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports that no TypeHandler can materialise/store a value for
// the demanded language-type/database-type pair.
type TypeError struct {
	Msg   string
	Cause error
}

func (e *TypeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("type error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("type error: %s", e.Msg)
}

func (e *TypeError) Unwrap() error { return e.Cause }

// NewTypeError builds a TypeError.
func NewTypeError(msg string, cause error) *TypeError {
	return &TypeError{Msg: msg, Cause: cause}
}

// ExecutorError reports a closed session, a cache-key collision, illegal
// nested execution state, or an underlying driver failure wrapped with
// statement context.
type ExecutorError struct {
	StatementID string
	Msg         string
	Cause       error
}

func (e *ExecutorError) Error() string {
	if e.StatementID != "" {
		return fmt.Sprintf("executor error [%s]: %s: %v", e.StatementID, e.Msg, e.Cause)
	}
	return fmt.Sprintf("executor error: %s: %v", e.Msg, e.Cause)
}

func (e *ExecutorError) Unwrap() error { return e.Cause }

// NewExecutorError builds an ExecutorError.
func NewExecutorError(statementID, msg string, cause error) *ExecutorError {
	return &ExecutorError{StatementID: statementID, Msg: msg, Cause: cause}
}

// ScriptingError reports a malformed dynamic-SQL expression.
type ScriptingError struct {
	Expr string
	Msg  string
}

func (e *ScriptingError) Error() string {
	return fmt.Sprintf("scripting error in %q: %s", e.Expr, e.Msg)
}

// NewScriptingError builds a ScriptingError.
func NewScriptingError(expr, msg string) *ScriptingError {
	return &ScriptingError{Expr: expr, Msg: msg}
}

// ResultMapError reports an inability to instantiate a mapping type, or a
// missing setter for an auto-mapped column given the configured
// unknown-column behavior.
type ResultMapError struct {
	Msg   string
	Cause error
}

func (e *ResultMapError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("result map error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("result map error: %s", e.Msg)
}

func (e *ResultMapError) Unwrap() error { return e.Cause }

// NewResultMapError builds a ResultMapError.
func NewResultMapError(msg string, cause error) *ResultMapError {
	return &ResultMapError{Msg: msg, Cause: cause}
}

// CacheError reports a blocking-cache wait that exceeded its configured
// timeout.
type CacheError struct {
	Key string
	Msg string
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache error [%s]: %s", e.Key, e.Msg) }

// NewCacheError builds a CacheError.
func NewCacheError(key, msg string) *CacheError {
	return &CacheError{Key: key, Msg: msg}
}
