// Package binding implements the Binding Runtime: registering a mapper
// interface's method set against a namespace and dispatching each method
// to the matching MappedStatement through a bound SqlSession.
//
// Grounded on the teacher's config/mapper_proxy.go, with one deliberate
// correction. Go, unlike Java, has no dynamic-proxy facility: reflect can
// synthesize a func value (reflect.MakeFunc) but cannot attach methods to
// a type created at runtime, so nothing in the standard toolchain can
// fabricate a value that satisfies an arbitrary interface discovered only
// at runtime. The teacher's createProxy/MapperProxy ran into this same
// wall and papered over it with MapperProxyWrapper.Call(methodName string,
// args ...any) ([]any, error) — a stringly-typed escape hatch that doesn't
// implement the mapper interface at all — while its executeInsert/
// executeUpdate/executeDelete/executeSelect never actually called through
// to sqlSession.
//
// This package keeps the honest version of that pattern instead of hiding
// the limitation: MapperProxy.Invoke is the real, working equivalent of
// Call (it actually dispatches to session.SqlSession and adapts results),
// and MapperProxy.Func(name) hands back a reflect.MakeFunc value built
// against the exact reflect.Type of one interface method, ready to be
// dropped into a tiny, mechanical per-interface adapter (one line per
// method: `func (p proxy) FindByID(id int64) (*User, error) { out, _ :=
// p.proxy.Invoke("FindByID", id); return out[0].(*User), errOf(out[1]) }`)
// that genuinely satisfies the interface through Go's own type system —
// the only construction Go's type system allows.
package binding

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/session"
)

// CommandType is the binding layer's method-name heuristic for picking
// which SqlSession operation a mapper method maps to.
type CommandType int

const (
	CmdUnknown CommandType = iota
	CmdSelect
	CmdInsert
	CmdUpdate
	CmdDelete
)

// MapperRegistry binds Go interface types to a namespace.
type MapperRegistry struct {
	mu        map[reflect.Type]string
	overrides map[reflect.Type]map[string]string
}

func NewMapperRegistry() *MapperRegistry {
	return &MapperRegistry{
		mu:        make(map[reflect.Type]string),
		overrides: make(map[reflect.Type]map[string]string),
	}
}

// Register associates mapperType (must be an interface) with namespace —
// every method's statement id resolves to "namespace.MethodName" unless
// overridden via RegisterMethod.
func (r *MapperRegistry) Register(mapperType reflect.Type, namespace string) error {
	if mapperType.Kind() != reflect.Interface {
		return errs.NewBindingError("mapper type %s is not an interface", mapperType)
	}
	r.mu[mapperType] = namespace
	return nil
}

// RegisterMethod overrides the statement id used for one method of an
// already-registered mapper type, for mappers whose XML statement ids
// don't match the Go method name.
func (r *MapperRegistry) RegisterMethod(mapperType reflect.Type, methodName, statementID string) {
	m, ok := r.overrides[mapperType]
	if !ok {
		m = make(map[string]string)
		r.overrides[mapperType] = m
	}
	m[methodName] = statementID
}

// NewProxy builds a MapperProxy for mapperType bound to sess, using the
// namespace/overrides registered for mapperType.
func (r *MapperRegistry) NewProxy(mapperType reflect.Type, sess session.SqlSession) (*MapperProxy, error) {
	namespace, ok := r.mu[mapperType]
	if !ok {
		return nil, errs.NewBindingError("mapper type %s is not registered", mapperType)
	}
	return NewMapperProxy(mapperType, namespace, r.overrides[mapperType], sess), nil
}

// MapperProxy is the live, dispatching equivalent of the mapper
// interface: one MapperMethod per interface method, each resolved to a
// statement id and ready to run against sess.
type MapperProxy struct {
	mapperType reflect.Type
	sess       session.SqlSession
	methods    map[string]*MapperMethod
}

// NewMapperProxy builds a proxy for every method of mapperType, resolving
// statement ids as namespace+"."+MethodName unless overridden.
func NewMapperProxy(mapperType reflect.Type, namespace string, overrides map[string]string, sess session.SqlSession) *MapperProxy {
	p := &MapperProxy{mapperType: mapperType, sess: sess, methods: make(map[string]*MapperMethod, mapperType.NumMethod())}
	for i := 0; i < mapperType.NumMethod(); i++ {
		m := mapperType.Method(i)
		id := namespace + "." + m.Name
		if overrides != nil {
			if override, ok := overrides[m.Name]; ok {
				id = override
			}
		}
		p.methods[m.Name] = &MapperMethod{
			StatementID: id,
			Command:     inferCommand(m.Name),
			MethodType:  m.Type,
		}
	}
	return p
}

// Invoke dispatches methodName (must be a method of the bound mapper
// type) with args, returning the same []any a reflect.Value.Call on the
// true interface method would, in the order of that method's declared
// return types — the honest replacement for MapperProxyWrapper.Call.
func (p *MapperProxy) Invoke(methodName string, args ...any) ([]any, error) {
	mm, ok := p.methods[methodName]
	if !ok {
		return nil, errs.NewBindingError("mapper %s has no method %s", p.mapperType, methodName)
	}
	argValues := make([]reflect.Value, len(args))
	for i, a := range args {
		argValues[i] = reflect.ValueOf(a)
	}
	out := mm.invoke(p.sess)(argValues)
	result := make([]any, len(out))
	for i, v := range out {
		if v.IsValid() {
			result[i] = v.Interface()
		}
	}
	return result, nil
}

// Func returns a reflect.MakeFunc value with the exact reflect.Type of
// the named interface method, suitable for assigning into a hand-written
// adapter's embedded func field or for calling directly via
// fn.Call(argValues).
func (p *MapperProxy) Func(methodName string) (reflect.Value, error) {
	mm, ok := p.methods[methodName]
	if !ok {
		return reflect.Value{}, errs.NewBindingError("mapper %s has no method %s", p.mapperType, methodName)
	}
	return reflect.MakeFunc(mm.MethodType, mm.invoke(p.sess)), nil
}

// MapperMethod resolves one interface method to a MappedStatement id and
// knows how to run it and adapt its result.
type MapperMethod struct {
	StatementID string
	Command     CommandType
	MethodType  reflect.Type
}

func inferCommand(methodName string) CommandType {
	lower := strings.ToLower(methodName)
	switch {
	case strings.HasPrefix(lower, "insert"), strings.HasPrefix(lower, "create"):
		return CmdInsert
	case strings.HasPrefix(lower, "update"):
		return CmdUpdate
	case strings.HasPrefix(lower, "delete"), strings.HasPrefix(lower, "remove"):
		return CmdDelete
	default:
		return CmdSelect
	}
}

// invoke returns the reflect.MakeFunc body for this method: it adapts
// positional Go arguments into a single parameter object, runs it through
// sess according to the inferred CommandType, and adapts the SqlSession
// result to the method's declared return type(s).
func (mm *MapperMethod) invoke(sess session.SqlSession) func([]reflect.Value) []reflect.Value {
	return func(args []reflect.Value) []reflect.Value {
		param := buildParameter(args)

		switch mm.Command {
		case CmdInsert:
			n, err := sess.Insert(mm.StatementID, param)
			return adaptCountResult(mm.MethodType, n, err)
		case CmdUpdate:
			n, err := sess.Update(mm.StatementID, param)
			return adaptCountResult(mm.MethodType, n, err)
		case CmdDelete:
			n, err := sess.Delete(mm.StatementID, param)
			return adaptCountResult(mm.MethodType, n, err)
		default:
			return mm.invokeSelect(sess, param)
		}
	}
}

func (mm *MapperMethod) invokeSelect(sess session.SqlSession, param any) []reflect.Value {
	numOut := mm.MethodType.NumOut()
	if numOut == 0 {
		_, _ = sess.SelectOne(mm.StatementID, param)
		return nil
	}
	resultType := mm.MethodType.Out(0)
	switch {
	case resultType.Kind() == reflect.Slice:
		rows, err := sess.SelectList(mm.StatementID, param)
		return adaptSliceResult(mm.MethodType, rows, err)
	case resultType.Kind() == reflect.Map:
		m, err := sess.SelectMap(mm.StatementID, param, "ID")
		return adaptMapResult(mm.MethodType, m, err)
	default:
		row, err := sess.SelectOne(mm.StatementID, param)
		return adaptOneResult(mm.MethodType, row, err)
	}
}

// buildParameter adapts the method's non-context arguments into the
// single parameter object a MappedStatement expects: zero args -> nil,
// one arg -> that value, multiple args -> a name->value map keyed
// "arg0".."argN".
func buildParameter(args []reflect.Value) any {
	var values []any
	for _, a := range args {
		if !a.IsValid() {
			continue
		}
		if _, ok := a.Interface().(context.Context); ok {
			continue
		}
		values = append(values, a.Interface())
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		m := make(map[string]any, len(values))
		for i, v := range values {
			m[fmt.Sprintf("arg%d", i)] = v
		}
		return m
	}
}

func adaptCountResult(methodType reflect.Type, n int64, err error) []reflect.Value {
	out := make([]reflect.Value, methodType.NumOut())
	for i := 0; i < methodType.NumOut(); i++ {
		t := methodType.Out(i)
		if isErrorType(t) {
			out[i] = errorValue(t, err)
			continue
		}
		out[i] = convertNumeric(t, n)
	}
	return out
}

func adaptSliceResult(methodType reflect.Type, rows []any, err error) []reflect.Value {
	out := make([]reflect.Value, methodType.NumOut())
	for i := 0; i < methodType.NumOut(); i++ {
		t := methodType.Out(i)
		if isErrorType(t) {
			out[i] = errorValue(t, err)
			continue
		}
		out[i] = buildSlice(t, rows)
	}
	return out
}

func adaptMapResult(methodType reflect.Type, m map[string]any, err error) []reflect.Value {
	out := make([]reflect.Value, methodType.NumOut())
	for i := 0; i < methodType.NumOut(); i++ {
		t := methodType.Out(i)
		if isErrorType(t) {
			out[i] = errorValue(t, err)
			continue
		}
		out[i] = buildMap(t, m)
	}
	return out
}

func adaptOneResult(methodType reflect.Type, row any, err error) []reflect.Value {
	out := make([]reflect.Value, methodType.NumOut())
	for i := 0; i < methodType.NumOut(); i++ {
		t := methodType.Out(i)
		if isErrorType(t) {
			out[i] = errorValue(t, err)
			continue
		}
		out[i] = buildOne(t, row)
	}
	return out
}

func isErrorType(t reflect.Type) bool {
	return t.Implements(reflect.TypeOf((*error)(nil)).Elem())
}

func errorValue(t reflect.Type, err error) reflect.Value {
	if err == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(err)
}

func convertNumeric(t reflect.Type, n int64) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(n)
	case reflect.Bool:
		v.SetBool(n > 0)
	}
	return v
}

func buildSlice(t reflect.Type, rows []any) reflect.Value {
	out := reflect.MakeSlice(t, 0, len(rows))
	elemType := t.Elem()
	for _, row := range rows {
		out = reflect.Append(out, coerce(elemType, row))
	}
	return out
}

func buildMap(t reflect.Type, m map[string]any) reflect.Value {
	out := reflect.MakeMapWithSize(t, len(m))
	elemType := t.Elem()
	for k, v := range m {
		out.SetMapIndex(reflect.ValueOf(k), coerce(elemType, v))
	}
	return out
}

func buildOne(t reflect.Type, row any) reflect.Value {
	if row == nil {
		return reflect.Zero(t)
	}
	return coerce(t, row)
}

func coerce(t reflect.Type, v any) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	if t.Kind() == reflect.Ptr && rv.Type().AssignableTo(t.Elem()) {
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(rv)
		return ptr
	}
	return reflect.Zero(t)
}
