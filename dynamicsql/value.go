package dynamicsql

import (
	"fmt"
	"reflect"

	"github.com/zsy619/gomybatis/reflection"
)

func getValue(obj any, path string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	if path == "" {
		return obj, true
	}
	return reflection.GetValue(obj, path)
}

// stringify renders a resolved value as SQL-immediate text, per ${...}
// substitution rules.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return stringify(rv.Elem().Interface())
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// collectionLen returns the iteration length of v for the expression
// engine's ".size()"/"length" built-ins, and ok=false if v is not a
// slice/array/map/string.
func collectionLen(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len(), true
	default:
		return 0, false
	}
}
