package typehandler

import (
	"database/sql/driver"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveStringHandlerRoundTrips(t *testing.T) {
	r := NewRegistry()
	h := r.Resolve(reflect.TypeOf(""), "")
	v, err := h.SetParameter("hello")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	out, err := h.GetResult([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestResolveIntHandlerConvertsDriverValues(t *testing.T) {
	r := NewRegistry()
	h := r.Resolve(reflect.TypeOf(int(0)), "")
	v, err := h.SetParameter(42)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	out, err := h.GetResult(int64(7))
	require.NoError(t, err)
	require.Equal(t, int64(7), out)
}

func TestResolveBoolHandlerFromSQLiteIntColumn(t *testing.T) {
	r := NewRegistry()
	h := r.Resolve(reflect.TypeOf(true), "")
	out, err := h.GetResult(int64(1))
	require.NoError(t, err)
	require.Equal(t, true, out)

	out, err = h.GetResult(int64(0))
	require.NoError(t, err)
	require.Equal(t, false, out)
}

func TestResolveUnknownTypeFallsBackToUnknownHandler(t *testing.T) {
	r := NewRegistry()
	type custom struct{ X int }
	h := r.Resolve(reflect.TypeOf(custom{}), "")
	_, err := h.SetParameter(custom{X: 1})
	require.Error(t, err)
}

func TestResolvePointerTypeWrapsWithNilSafeHandler(t *testing.T) {
	r := NewRegistry()
	n := 5
	h := r.Resolve(reflect.TypeOf(&n), "")

	v, err := h.SetParameter(&n)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	var nilPtr *int
	v, err = h.SetParameter(nilPtr)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestResolveNamedReturnsRegisteredAlias(t *testing.T) {
	r := NewRegistry()
	h, ok := r.ResolveNamed("int64")
	require.True(t, ok)
	require.NotNil(t, h)

	_, ok = r.ResolveNamed("does-not-exist")
	require.False(t, ok)
}

func TestRegisterOverridesBuiltinForSpecificDBType(t *testing.T) {
	r := NewRegistry()
	custom := &funcHandler{
		set: func(p any) (driver.Value, error) { return "custom", nil },
		get: func(c any) (any, error) { return "custom-result", nil },
	}
	r.Register(reflect.TypeOf(""), custom, "VARCHAR")

	exact := r.Resolve(reflect.TypeOf(""), "VARCHAR")
	v, err := exact.SetParameter("x")
	require.NoError(t, err)
	require.Equal(t, "custom", v)

	fallback := r.Resolve(reflect.TypeOf(""), "TEXT")
	v, err = fallback.SetParameter("x")
	require.NoError(t, err)
	require.Equal(t, "x", v)
}

func TestTimeHandlerRoundTrip(t *testing.T) {
	r := NewRegistry()
	h := r.Resolve(reflect.TypeOf(time.Time{}), "")
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	v, err := h.SetParameter(now)
	require.NoError(t, err)
	require.Equal(t, now, v)

	out, err := h.GetResult(now)
	require.NoError(t, err)
	require.Equal(t, now, out)
}

func TestBytesHandlerCopiesSliceOnRead(t *testing.T) {
	r := NewRegistry()
	h := r.Resolve(reflect.TypeOf([]byte(nil)), "")
	src := []byte("payload")
	out, err := h.GetResult(src)
	require.NoError(t, err)
	gotten := out.([]byte)
	require.Equal(t, src, gotten)
	src[0] = 'X'
	require.NotEqual(t, src[0], gotten[0])
}
