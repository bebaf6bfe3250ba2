// Package reflection implements the runtime's Reflective Accessor: uniform
// get/set/hasProperty/type-of-property access over structs, maps, and
// dotted+indexed paths such as "a.b[2].c".
//
// Grounded on the ObjectWrapper interface declared (but never implemented)
// in the teacher's session package, and on the dotted-path helpers in its
// mapper/dynamic_sql.go (getPropertyValue/findField), generalized here to
// indexed segments and real setters.
package reflection

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// segment is one parsed step of a property path: a name plus an optional
// slice/array index ("-1" means "no index").
type segment struct {
	name  string
	index int
}

func parsePath(path string) []segment {
	parts := strings.Split(path, ".")
	segments := make([]segment, 0, len(parts))
	for _, p := range parts {
		name := p
		index := -1
		if i := strings.IndexByte(p, '['); i >= 0 && strings.HasSuffix(p, "]") {
			name = p[:i]
			idxStr := p[i+1 : len(p)-1]
			if n, err := strconv.Atoi(idxStr); err == nil {
				index = n
			}
		}
		segments = append(segments, segment{name: name, index: index})
	}
	return segments
}

// CamelFold folds a snake_case or SCREAMING_SNAKE column name to CamelCase,
// e.g. "user_name" -> "UserName". Used both for struct-field auto-mapping
// and for the case-insensitive fallbacks in findStructField and lookupMapKey.
func CamelFold(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// GetValue reads the value at path from obj. obj may be a struct, a pointer
// to struct, or a map[string]any (nested arbitrarily). Missing paths return
// (nil, false) rather than an error, matching spec's "unknown paths return
// empty/null for reads".
func GetValue(obj any, path string) (any, bool) {
	if path == "" || path == "." {
		return obj, true
	}
	cur := reflect.ValueOf(obj)
	for _, seg := range parsePath(path) {
		var ok bool
		cur, ok = getSegment(cur, seg)
		if !ok {
			return nil, false
		}
	}
	if !cur.IsValid() {
		return nil, false
	}
	return cur.Interface(), true
}

func getSegment(v reflect.Value, seg segment) (reflect.Value, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	var field reflect.Value
	switch v.Kind() {
	case reflect.Map:
		field = lookupMapKey(v, seg.name)
		if !field.IsValid() {
			return reflect.Value{}, false
		}
	case reflect.Struct:
		field = findStructField(v, seg.name)
		if !field.IsValid() {
			return reflect.Value{}, false
		}
	default:
		return reflect.Value{}, false
	}
	if seg.index >= 0 {
		field = indirect(field)
		switch field.Kind() {
		case reflect.Slice, reflect.Array:
			if seg.index >= field.Len() {
				return reflect.Value{}, false
			}
			field = field.Index(seg.index)
		default:
			return reflect.Value{}, false
		}
	}
	return field, true
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func lookupMapKey(m reflect.Value, key string) reflect.Value {
	v := m.MapIndex(reflect.ValueOf(key))
	if v.IsValid() {
		return v
	}
	// case-insensitive / snake-camel fallback for map[string]any parameter bags
	folded := CamelFold(key)
	iter := m.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		if strings.EqualFold(k, key) || strings.EqualFold(k, folded) || strings.EqualFold(CamelFold(k), folded) {
			return iter.Value()
		}
	}
	return reflect.Value{}
}

func findStructField(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	if f, ok := t.FieldByName(name); ok && f.PkgPath == "" {
		return v.FieldByIndex(f.Index)
	}
	folded := CamelFold(name)
	if folded != name {
		if f, ok := t.FieldByName(folded); ok && f.PkgPath == "" {
			return v.FieldByIndex(f.Index)
		}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.Name, folded) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// SetValue writes v at path on obj. obj must be a pointer (to a struct or
// to a map) so the mutation is observable. Writing through an unknown
// sub-path is an error, per spec.
func SetValue(obj any, path string, value any) error {
	segments := parsePath(path)
	if len(segments) == 0 {
		return fmt.Errorf("reflection: empty property path")
	}
	cur := reflect.ValueOf(obj)
	if cur.Kind() != reflect.Ptr {
		return fmt.Errorf("reflection: SetValue requires a pointer, got %s", cur.Kind())
	}
	for i, seg := range segments[:len(segments)-1] {
		next, ok := getSegment(cur, seg)
		if !ok {
			return fmt.Errorf("reflection: unknown path segment %q (at %s)", seg.name, strings.Join(pathNames(segments[:i+1]), "."))
		}
		cur = next
	}
	last := segments[len(segments)-1]
	target := indirect(cur)
	if !target.IsValid() {
		return fmt.Errorf("reflection: nil target for path %q", path)
	}
	switch target.Kind() {
	case reflect.Map:
		return setMapKey(target, last, value)
	case reflect.Struct:
		return setStructField(target, last, value)
	default:
		return fmt.Errorf("reflection: cannot set property on kind %s", target.Kind())
	}
}

func pathNames(segs []segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.name
	}
	return out
}

func setMapKey(m reflect.Value, seg segment, value any) error {
	if m.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("reflection: only string-keyed maps are settable")
	}
	if m.IsNil() {
		return fmt.Errorf("reflection: nil map")
	}
	vv := reflect.ValueOf(value)
	elemType := m.Type().Elem()
	if !vv.IsValid() {
		vv = reflect.Zero(elemType)
	} else if vv.Type() != elemType && elemType.Kind() == reflect.Interface {
		// ok, assignable to any
	} else if vv.Type().ConvertibleTo(elemType) {
		vv = vv.Convert(elemType)
	}
	m.SetMapIndex(reflect.ValueOf(seg.name), vv)
	return nil
}

func setStructField(s reflect.Value, seg segment, value any) error {
	field := findStructField(s, seg.name)
	if !field.IsValid() {
		return fmt.Errorf("reflection: unknown field %q on %s", seg.name, s.Type())
	}
	if !field.CanSet() {
		return fmt.Errorf("reflection: field %q is not settable", seg.name)
	}
	if seg.index >= 0 {
		field = indirect(field)
		if field.Kind() != reflect.Slice && field.Kind() != reflect.Array {
			return fmt.Errorf("reflection: field %q is not indexable", seg.name)
		}
		if seg.index >= field.Len() {
			return fmt.Errorf("reflection: index %d out of range for field %q", seg.index, seg.name)
		}
		field = field.Index(seg.index)
	}
	return assign(field, value)
}

func assign(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	vv := reflect.ValueOf(value)
	if vv.Type().AssignableTo(field.Type()) {
		field.Set(vv)
		return nil
	}
	if vv.Type().ConvertibleTo(field.Type()) {
		field.Set(vv.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("reflection: cannot assign %s to %s", vv.Type(), field.Type())
}

// HasGetter reports whether path resolves to a readable value on obj.
func HasGetter(obj any, path string) bool {
	_, ok := GetValue(obj, path)
	return ok
}

// HasSetter reports whether all but the last segment of path resolve,
// i.e. whether SetValue could plausibly succeed against the shape of obj
// (not accounting for the final field name, which is checked at set time).
func HasSetter(obj any, path string) bool {
	segments := parsePath(path)
	if len(segments) == 0 {
		return false
	}
	cur := reflect.ValueOf(obj)
	for _, seg := range segments[:len(segments)-1] {
		next, ok := getSegment(cur, seg)
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

// Add appends v to the list-valued property at path (spec's "add" op for
// collection properties), e.g. building up a nested collection mapping.
func Add(obj any, path string, value any) error {
	cur, ok := GetValue(obj, path)
	var slice reflect.Value
	if ok && cur != nil {
		slice = reflect.ValueOf(cur)
	}
	var elemType reflect.Type
	if slice.IsValid() && slice.Kind() == reflect.Slice {
		elemType = slice.Type().Elem()
	} else {
		elemType = reflect.TypeOf(value)
	}
	if !slice.IsValid() {
		slice = reflect.MakeSlice(reflect.SliceOf(elemType), 0, 1)
	}
	vv := reflect.ValueOf(value)
	if elemType != nil && vv.IsValid() && vv.Type() != elemType && vv.Type().ConvertibleTo(elemType) {
		vv = vv.Convert(elemType)
	}
	slice = reflect.Append(slice, vv)
	return SetValue(obj, path, slice.Interface())
}

// Instantiate allocates a new zero-valued instance of t (a struct type or
// a pointer-to-struct type), returning an addressable pointer suitable for
// SetValue.
func Instantiate(t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}
