// Package resultmapper implements the Result Mapper (spec §4.7): turning a
// raw driver row (a column-name -> value map, as GORM's Rows scanning
// produces) into a typed Go value per a compiled config.ResultMap, or via
// plain auto-mapping when no ResultMap was declared.
//
// Grounded on spec §4.7 and the reflection package built for this module;
// the teacher's session/executor.go doQuery left rows as raw map[string]any
// with no mapping layer at all, so there is no teacher stub to adapt here —
// this is new code in the teacher's capability-interface idiom.
package resultmapper

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/reflection"
	"github.com/zsy619/gomybatis/typehandler"
)

// NestedSelector issues the peer statement named by a nested <association>/
// <collection>'s select= attribute, honoring the owning session's executor
// and local cache exactly as a directly-invoked SelectOne/SelectList would.
// DefaultSqlSession satisfies this interface; a Mapper built without one
// (e.g. a bare unit test) simply cannot resolve nested-select mappings.
type NestedSelector interface {
	SelectOne(statementID string, parameter any) (any, error)
	SelectList(statementID string, parameter any) ([]any, error)
}

// Mapper turns rows into Go values for one MappedStatement's declared
// result shape.
type Mapper struct {
	TypeHandlers *typehandler.Registry
	// Selector resolves nested-select (select=) association/collection
	// mappings by issuing the peer statement through the owning session.
	Selector NestedSelector
	// rowKeyCache de-duplicates nested collection rows sharing the same
	// <id>-derived composite key within one ResultSet, per spec §4.7's row
	// key derivation rule.
	rowKeyCache map[string]any
}

func NewMapper(th *typehandler.Registry) *Mapper {
	return &Mapper{TypeHandlers: th, rowKeyCache: make(map[string]any)}
}

// MapRow applies rm (or pure auto-mapping, if rm is nil) to one row,
// returning a new instance of rm.Type / resultType.
func (m *Mapper) MapRow(row map[string]any, rm *config.ResultMap, resultType reflect.Type, behavior config.AutoMappingBehavior, unknown config.UnknownColumnBehavior) (any, error) {
	if rm == nil {
		if resultType == nil {
			return row, nil
		}
		return m.autoMap(row, resultType, "", behavior, unknown)
	}

	active, err := m.resolveDiscriminator(rm, row)
	if err != nil {
		return nil, err
	}

	key := m.rowKey(active, row)
	if key != "" {
		if cached, ok := m.rowKeyCache[key]; ok {
			// Repeated parent row: fold this row's collection element into
			// the already-mapped parent.
			for _, mapping := range active.Mappings {
				if mapping.OneToMany && mapping.NestedResultMap != nil {
					if err := m.mapNested(cached, row, mapping, behavior, unknown); err != nil {
						return nil, err
					}
				}
			}
			return cached, nil
		}
	}

	target, err := m.applyResultMap(row, active, behavior, unknown)
	if err != nil {
		return nil, err
	}
	if key != "" {
		m.rowKeyCache[key] = target
	}
	return target, nil
}

// resolveDiscriminator repeats discriminator dispatch until the resolved
// ResultMap itself carries no Discriminator, per spec §4.7.1's polymorphic
// (chained discriminator) case. visited guards against a case cycling back
// to a ResultMap already seen.
func (m *Mapper) resolveDiscriminator(rm *config.ResultMap, row map[string]any) (*config.ResultMap, error) {
	active := rm
	visited := map[string]bool{active.ID: true}
	for active.Discriminator != nil {
		col := active.Discriminator.Column
		v, ok := row[col]
		if !ok {
			break
		}
		chosen, found := active.Discriminator.Resolve(fmt.Sprint(v))
		if !found {
			break
		}
		if visited[chosen.ID] {
			return nil, errs.NewResultMapError(fmt.Sprintf("discriminator on %q cycles back to %q", active.ID, chosen.ID), nil)
		}
		visited[chosen.ID] = true
		active = chosen
	}
	return active, nil
}

func (m *Mapper) rowKey(rm *config.ResultMap, row map[string]any) string {
	ids := rm.IDMappings()
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(rm.ID)
	for _, id := range ids {
		fmt.Fprintf(&b, "|%s=%v", id.Column, row[id.Column])
	}
	return b.String()
}

func (m *Mapper) applyResultMap(row map[string]any, rm *config.ResultMap, behavior config.AutoMappingBehavior, unknown config.UnknownColumnBehavior) (any, error) {
	if rm.Type == nil {
		return row, nil
	}
	target := reflection.Instantiate(rm.Type)

	mapped := make(map[string]bool, len(row))
	for _, arg := range rm.Constructor {
		mapped[arg.Column] = true
		if err := m.mapConstructorArg(target, row, arg, behavior, unknown); err != nil {
			return nil, err
		}
	}
	for _, mapping := range rm.Mappings {
		mapped[mapping.Column] = true
		if mapping.ManyToOne || mapping.OneToMany {
			if err := m.mapNested(target, row, mapping, behavior, unknown); err != nil {
				return nil, err
			}
			continue
		}
		raw, ok := row[mapping.Column]
		if !ok {
			continue
		}
		value, err := m.convert(raw, mapping.TypeHandler)
		if err != nil {
			return nil, errs.NewResultMapError(fmt.Sprintf("mapping column %q to property %q", mapping.Column, mapping.Property), err)
		}
		if err := reflection.SetValue(target, mapping.Property, value); err != nil {
			return nil, errs.NewResultMapError(fmt.Sprintf("setting property %q", mapping.Property), err)
		}
	}

	effective := behavior
	if rm.AutoMapping != nil {
		if *rm.AutoMapping {
			effective = config.AutoMappingFull
		} else {
			effective = config.AutoMappingNone
		}
	}
	if effective != config.AutoMappingNone {
		for col, raw := range row {
			if mapped[col] {
				continue
			}
			prop := reflection.CamelFold(col)
			if !reflection.HasSetter(target, prop) {
				if unknown == config.UnknownColumnFailing {
					return nil, errs.NewResultMapError("unmapped column with no matching property: "+col, nil)
				}
				continue
			}
			if err := reflection.SetValue(target, prop, raw); err != nil {
				return nil, errs.NewResultMapError("auto-mapping column "+col, err)
			}
			if effective == config.AutoMappingPartial {
				break
			}
		}
	}
	return target, nil
}

func (m *Mapper) mapNested(target any, row map[string]any, mapping config.ResultMapping, behavior config.AutoMappingBehavior, unknown config.UnknownColumnBehavior) error {
	if mapping.NestedResultMap != nil {
		nested, err := m.applyResultMap(prefixRow(row, mapping.ColumnPrefix), mapping.NestedResultMap, behavior, unknown)
		if err != nil {
			return err
		}
		if mapping.OneToMany {
			return reflection.Add(target, mapping.Property, nested)
		}
		return reflection.SetValue(target, mapping.Property, nested)
	}
	if mapping.NestedSelectID == "" {
		return nil
	}
	if mapping.FetchLazily {
		// Go has no host facility to wrap a concrete struct in a method-
		// intercepting class proxy, so a lazy association/collection is
		// handed to the caller as the LazyAssociation interface façade
		// spec's design notes sanction for this case — the nested select
		// only runs on first Get(), instead of at row-mapping time.
		lazy := newLazyAssociation(func() (any, error) {
			if mapping.OneToMany {
				return m.selectListNested(mapping.NestedSelectID, row, mapping.Column)
			}
			return m.selectOneNested(mapping.NestedSelectID, row, mapping.Column)
		})
		return reflection.SetValue(target, mapping.Property, lazy)
	}
	if mapping.OneToMany {
		rows, err := m.selectListNested(mapping.NestedSelectID, row, mapping.Column)
		if err != nil {
			return errs.NewResultMapError(fmt.Sprintf("nested select %q for property %q", mapping.NestedSelectID, mapping.Property), err)
		}
		for _, v := range rows {
			if err := reflection.Add(target, mapping.Property, v); err != nil {
				return err
			}
		}
		return nil
	}
	nested, err := m.selectOneNested(mapping.NestedSelectID, row, mapping.Column)
	if err != nil {
		return errs.NewResultMapError(fmt.Sprintf("nested select %q for property %q", mapping.NestedSelectID, mapping.Property), err)
	}
	if nested == nil {
		return nil
	}
	return reflection.SetValue(target, mapping.Property, nested)
}

// LazyAssociation is the interface-façade alternative to a dynamic class
// proxy for lazy-loaded associations/collections: Get() runs the deferred
// nested select on first call and caches the result, per spec §4.7 step 3
// and §9's note that method interception on concrete types needs either
// build-time code generation or an explicit interface façade in a host
// with no runtime class generation.
type LazyAssociation interface {
	Get() (any, error)
}

type lazyAssociation struct {
	mu     sync.Mutex
	loaded bool
	value  any
	err    error
	load   func() (any, error)
}

func newLazyAssociation(load func() (any, error)) *lazyAssociation {
	return &lazyAssociation{load: load}
}

func (l *lazyAssociation) Get() (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.value, l.err = l.load()
		l.loaded = true
	}
	return l.value, l.err
}

// mapConstructorArg resolves one <idArg>/<arg> per spec's object-
// instantiation step (b): a constructor arg may read a plain column, embed
// a nested resultMap, or issue a nested select — exactly the same
// resolution paths a <result>/<association> mapping supports, just applied
// before the rest of Mappings and bound by arg name (the Go struct field
// named by the arg's name= attribute) instead of by property=.
func (m *Mapper) mapConstructorArg(target any, row map[string]any, arg config.ResultMapping, behavior config.AutoMappingBehavior, unknown config.UnknownColumnBehavior) error {
	switch {
	case arg.NestedResultMap != nil:
		nested, err := m.applyResultMap(prefixRow(row, arg.ColumnPrefix), arg.NestedResultMap, behavior, unknown)
		if err != nil {
			return err
		}
		return reflection.SetValue(target, arg.Property, nested)
	case arg.NestedSelectID != "":
		nested, err := m.selectOneNested(arg.NestedSelectID, row, arg.Column)
		if err != nil {
			return errs.NewResultMapError(fmt.Sprintf("constructor arg %q nested select %q", arg.Property, arg.NestedSelectID), err)
		}
		if nested == nil {
			return nil
		}
		return reflection.SetValue(target, arg.Property, nested)
	default:
		raw, ok := row[arg.Column]
		if !ok {
			return nil
		}
		value, err := m.convert(raw, arg.TypeHandler)
		if err != nil {
			return errs.NewResultMapError(fmt.Sprintf("constructor arg %q column %q", arg.Property, arg.Column), err)
		}
		return reflection.SetValue(target, arg.Property, value)
	}
}

func prefixRow(row map[string]any, prefix string) map[string]any {
	if prefix == "" {
		return row
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) {
			out[k[len(prefix):]] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// selectOneNested and selectListNested issue a nested-query (select=)
// association/collection through the owning session's NestedSelector,
// which runs it through the same executor and local cache as any other
// statement, per spec §4.7's nested-query resolution step.
func (m *Mapper) selectOneNested(statementID string, row map[string]any, columnSpec string) (any, error) {
	if m.Selector == nil {
		return nil, fmt.Errorf("resultmapper: nested select %q requires a NestedSelector but none is wired", statementID)
	}
	param, err := buildNestedParameter(row, columnSpec)
	if err != nil {
		return nil, err
	}
	return m.Selector.SelectOne(statementID, param)
}

func (m *Mapper) selectListNested(statementID string, row map[string]any, columnSpec string) ([]any, error) {
	if m.Selector == nil {
		return nil, fmt.Errorf("resultmapper: nested select %q requires a NestedSelector but none is wired", statementID)
	}
	param, err := buildNestedParameter(row, columnSpec)
	if err != nil {
		return nil, err
	}
	return m.Selector.SelectList(statementID, param)
}

// buildNestedParameter turns a nested-select's column= attribute into the
// peer statement's parameter: a plain name reads that column's value
// directly (the common single-key case), while the MyBatis composite-key
// syntax "{colA=prop1,colB=prop2}" builds a map keyed by the referenced
// statement's own parameter property names, per spec's ResultMapping
// "composite-key sub-mappings" field.
func buildNestedParameter(row map[string]any, columnSpec string) (any, error) {
	spec := strings.TrimSpace(columnSpec)
	if spec == "" {
		return nil, nil
	}
	if strings.HasPrefix(spec, "{") && strings.HasSuffix(spec, "}") {
		params := make(map[string]any)
		for _, part := range strings.Split(spec[1:len(spec)-1], ",") {
			kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("resultmapper: malformed composite column mapping %q", columnSpec)
			}
			col, prop := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
			params[prop] = row[col]
		}
		return params, nil
	}
	return row[spec], nil
}

// convert applies a named TypeHandler (declared via typeHandler="...") when
// one is registered; otherwise the raw driver value passes through
// unchanged, since database/sql scanning already yields native Go types
// (int64/string/float64/bool/time.Time/[]byte) that reflection.SetValue
// can assign directly.
func (m *Mapper) convert(raw any, handlerName string) (any, error) {
	if handlerName == "" {
		return raw, nil
	}
	h, ok := m.TypeHandlers.ResolveNamed(handlerName)
	if !ok {
		return raw, nil
	}
	return h.GetResult(raw)
}

// autoMap builds a target of resultType purely from column-name -> property
// folding, with no declared ResultMap at all (spec §4.7 "implicit auto-
// mapping" path, e.g. a bare resultType="User").
func (m *Mapper) autoMap(row map[string]any, resultType reflect.Type, prefix string, behavior config.AutoMappingBehavior, unknown config.UnknownColumnBehavior) (any, error) {
	if isScalarKind(resultType) {
		for _, v := range row {
			h := m.TypeHandlers.Resolve(resultType, "")
			return h.GetResult(v)
		}
		return nil, nil
	}
	target := reflection.Instantiate(resultType)
	for col, raw := range row {
		prop := reflection.CamelFold(strings.TrimPrefix(col, prefix))
		if !reflection.HasSetter(target, prop) {
			if unknown == config.UnknownColumnFailing {
				return nil, errs.NewResultMapError("unmapped column with no matching property: "+col, nil)
			}
			continue
		}
		if err := reflection.SetValue(target, prop, raw); err != nil {
			return nil, errs.NewResultMapError("auto-mapping column "+col, err)
		}
	}
	return target, nil
}

func isScalarKind(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Ptr:
		return false
	default:
		return true
	}
}

// ResetRowCache clears the per-ResultSet row-key de-duplication cache,
// called by DefaultSqlSession before mapping each statement's rows.
func (m *Mapper) ResetRowCache() {
	m.rowKeyCache = make(map[string]any)
}
