// Package typehandler implements the TypeHandler Registry: bidirectional
// conversion between database column values and in-memory values, keyed by
// (language-type, database-type).
//
// Grounded on the TypeHandler interface and TypeHandlerRegistry struct
// declared in the teacher's config/configuration.go; registerDefaultTypeHandlers
// was an empty stub there ("registered in later files") — the built-ins
// below are the real implementation.
package typehandler

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/zsy619/gomybatis/errs"
)

// TypeHandler converts between a Go value and the wire representation a
// database driver understands.
type TypeHandler interface {
	// SetParameter converts parameter into a driver.Value suitable for
	// binding at positional index i.
	SetParameter(parameter any) (driver.Value, error)
	// GetResult converts a raw column value (as returned by the driver)
	// into the handler's Go-side representation.
	GetResult(columnValue any) (any, error)
}

// jdbcType is a coarse database-type tag; "" means "any/unspecified".
type jdbcType = string

// Registry maps (language-type, database-type) to handlers, with the
// fallback chain from spec §4.1: exact match -> same language type with
// unspecified db type -> unknown handler.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]map[jdbcType]TypeHandler
	byName   map[string]TypeHandler // javaType alias -> handler, for #{x,typeHandler=name} references
	unknown  TypeHandler
	nullType reflect.Type
}

// NewRegistry builds a registry pre-populated with the built-in handlers
// for Go's common scalar kinds.
func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]map[jdbcType]TypeHandler),
		byName: make(map[string]TypeHandler),
	}
	r.unknown = &unknownTypeHandler{registry: r}
	registerBuiltins(r)
	return r
}

// Register associates handler with goType for every jdbcType in dbTypes (or
// the unspecified "" slot when none given).
func (r *Registry) Register(goType reflect.Type, handler TypeHandler, dbTypes ...jdbcType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byType[goType]
	if !ok {
		m = make(map[jdbcType]TypeHandler)
		r.byType[goType] = m
	}
	if len(dbTypes) == 0 {
		m[""] = handler
		return
	}
	for _, t := range dbTypes {
		m[t] = handler
	}
}

// RegisterNamed makes handler resolvable by alias via ResolveNamed (used by
// the #{prop,typeHandler=alias} option).
func (r *Registry) RegisterNamed(alias string, handler TypeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[alias] = handler
}

// ResolveNamed looks up a handler previously registered under alias.
func (r *Registry) ResolveNamed(alias string) (TypeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[alias]
	return h, ok
}

// Resolve implements the lookup chain from spec §4.1: exact (type, db)
// match, then (type, "") match, then the unknown handler. Never returns an
// error at resolution time; TypeError only surfaces when the handler is
// actually driven.
func (r *Registry) Resolve(goType reflect.Type, db jdbcType) TypeHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if goType != nil {
		if m, ok := r.byType[goType]; ok {
			if h, ok := m[db]; ok {
				return h
			}
			if h, ok := m[""]; ok {
				return h
			}
		}
		// pointer/elem walk: *T falls back to T's handler wrapped for nil-safety.
		if goType.Kind() == reflect.Ptr {
			if h := r.resolveLocked(goType.Elem(), db); h != nil {
				return &nilSafeHandler{inner: h}
			}
		}
	}
	return r.unknown
}

func (r *Registry) resolveLocked(goType reflect.Type, db jdbcType) TypeHandler {
	if m, ok := r.byType[goType]; ok {
		if h, ok := m[db]; ok {
			return h
		}
		if h, ok := m[""]; ok {
			return h
		}
	}
	return nil
}

// unknownTypeHandler inspects the runtime value's type and re-resolves,
// per spec: "unresolved handler yields the unknown handler rather than an
// exception at resolution time".
type unknownTypeHandler struct{ registry *Registry }

func (u *unknownTypeHandler) SetParameter(parameter any) (driver.Value, error) {
	if parameter == nil {
		return nil, nil
	}
	t := reflect.TypeOf(parameter)
	if h := u.registry.resolveLocked(t, ""); h != nil {
		return h.SetParameter(parameter)
	}
	// last resort: pass through anything driver.Valuer-compatible.
	if v, ok := parameter.(driver.Valuer); ok {
		return v.Value()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool:
		return parameter, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(parameter).Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(reflect.ValueOf(parameter).Uint()), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(parameter).Float(), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return parameter, nil
		}
	}
	return nil, errs.NewTypeError(fmt.Sprintf("no handler for Go type %s", t), nil)
}

func (u *unknownTypeHandler) GetResult(columnValue any) (any, error) {
	return columnValue, nil
}

// nilSafeHandler wraps a handler for *T so nil pointers pass through as SQL
// NULL and non-nil pointers are dereferenced before delegating.
type nilSafeHandler struct{ inner TypeHandler }

func (n *nilSafeHandler) SetParameter(parameter any) (driver.Value, error) {
	v := reflect.ValueOf(parameter)
	if !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return nil, nil
	}
	if v.Kind() == reflect.Ptr {
		return n.inner.SetParameter(v.Elem().Interface())
	}
	return n.inner.SetParameter(parameter)
}

func (n *nilSafeHandler) GetResult(columnValue any) (any, error) {
	return n.inner.GetResult(columnValue)
}

// funcHandler adapts a pair of conversion funcs into a TypeHandler, used by
// the built-ins below to stay terse.
type funcHandler struct {
	set func(any) (driver.Value, error)
	get func(any) (any, error)
}

func (f *funcHandler) SetParameter(parameter any) (driver.Value, error) { return f.set(parameter) }
func (f *funcHandler) GetResult(columnValue any) (any, error)          { return f.get(columnValue) }

func registerBuiltins(r *Registry) {
	str := &funcHandler{
		set: func(p any) (driver.Value, error) { return fmt.Sprint(p), nil },
		get: func(c any) (any, error) { return toString(c), nil },
	}
	r.Register(reflect.TypeOf(""), str)
	r.RegisterNamed("string", str)

	boolH := &funcHandler{
		set: func(p any) (driver.Value, error) {
			b, ok := p.(bool)
			if !ok {
				return nil, errs.NewTypeError("expected bool", nil)
			}
			return b, nil
		},
		get: func(c any) (any, error) { return toBool(c) },
	}
	r.Register(reflect.TypeOf(true), boolH)
	r.RegisterNamed("bool", boolH)

	intTypes := []any{int(0), int8(0), int16(0), int32(0), int64(0)}
	intH := &funcHandler{
		set: func(p any) (driver.Value, error) { return reflect.ValueOf(p).Int(), nil },
		get: func(c any) (any, error) { return toInt64(c) },
	}
	for _, sample := range intTypes {
		r.Register(reflect.TypeOf(sample), intH)
	}
	r.RegisterNamed("int", intH)
	r.RegisterNamed("int64", intH)

	uintTypes := []any{uint(0), uint8(0), uint16(0), uint32(0), uint64(0)}
	uintH := &funcHandler{
		set: func(p any) (driver.Value, error) { return int64(reflect.ValueOf(p).Uint()), nil },
		get: func(c any) (any, error) {
			v, err := toInt64(c)
			return uint64(v), err
		},
	}
	for _, sample := range uintTypes {
		r.Register(reflect.TypeOf(sample), uintH)
	}

	floatH := &funcHandler{
		set: func(p any) (driver.Value, error) { return reflect.ValueOf(p).Float(), nil },
		get: func(c any) (any, error) { return toFloat64(c) },
	}
	r.Register(reflect.TypeOf(float32(0)), floatH)
	r.Register(reflect.TypeOf(float64(0)), floatH)
	r.RegisterNamed("float64", floatH)

	timeH := &funcHandler{
		set: func(p any) (driver.Value, error) {
			t, ok := p.(time.Time)
			if !ok {
				return nil, errs.NewTypeError("expected time.Time", nil)
			}
			return t, nil
		},
		get: func(c any) (any, error) { return toTime(c) },
	}
	r.Register(reflect.TypeOf(time.Time{}), timeH)
	r.RegisterNamed("time", timeH)

	bytesH := &funcHandler{
		set: func(p any) (driver.Value, error) {
			b, ok := p.([]byte)
			if !ok {
				return nil, errs.NewTypeError("expected []byte", nil)
			}
			return b, nil
		},
		get: func(c any) (any, error) {
			if c == nil {
				return nil, nil
			}
			if b, ok := c.([]byte); ok {
				out := make([]byte, len(b))
				copy(out, b)
				return out, nil
			}
			return []byte(toString(c)), nil
		},
	}
	r.Register(reflect.TypeOf([]byte(nil)), bytesH)
	r.RegisterNamed("bytes", bytesH)
}

func toString(c any) string {
	if c == nil {
		return ""
	}
	if b, ok := c.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(c)
}

func toBool(c any) (any, error) {
	switch v := c.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return string(v) == "1" || string(v) == "true", nil
	default:
		return nil, errs.NewTypeError(fmt.Sprintf("cannot convert %T to bool", c), nil)
	}
}

func toInt64(c any) (int64, error) {
	switch v := c.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		var n int64
		_, err := fmt.Sscanf(string(v), "%d", &n)
		return n, err
	default:
		return 0, errs.NewTypeError(fmt.Sprintf("cannot convert %T to int64", c), nil)
	}
}

func toFloat64(c any) (float64, error) {
	switch v := c.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		var f float64
		_, err := fmt.Sscanf(string(v), "%f", &f)
		return f, err
	default:
		return 0, errs.NewTypeError(fmt.Sprintf("cannot convert %T to float64", c), nil)
	}
}

func toTime(c any) (any, error) {
	switch v := c.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case []byte:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, string(v)); err == nil {
				return t, nil
			}
		}
		return nil, errs.NewTypeError("cannot parse time from bytes", nil)
	default:
		return nil, errs.NewTypeError(fmt.Sprintf("cannot convert %T to time.Time", c), nil)
	}
}
