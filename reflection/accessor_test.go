package reflection

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type address struct {
	City string
}

type person struct {
	Name    string
	Age     int
	Address address
	Tags    []string
	Friends []*person
}

func TestCamelFoldSnakeAndScreamingSnake(t *testing.T) {
	require.Equal(t, "UserName", CamelFold("user_name"))
	require.Equal(t, "UserName", CamelFold("USER_NAME"))
	require.Equal(t, "Id", CamelFold("id"))
}

func TestGetValueStructField(t *testing.T) {
	p := person{Name: "ada", Age: 30}
	v, ok := GetValue(p, "Name")
	require.True(t, ok)
	require.Equal(t, "ada", v)
}

func TestGetValueCaseInsensitiveAndFolded(t *testing.T) {
	p := person{Name: "ada"}
	v, ok := GetValue(&p, "name")
	require.True(t, ok)
	require.Equal(t, "ada", v)
}

func TestGetValueNestedDottedPath(t *testing.T) {
	p := person{Address: address{City: "nyc"}}
	v, ok := GetValue(&p, "Address.City")
	require.True(t, ok)
	require.Equal(t, "nyc", v)
}

func TestGetValueIndexedSlicePath(t *testing.T) {
	p := person{Tags: []string{"a", "b", "c"}}
	v, ok := GetValue(&p, "Tags[1]")
	require.True(t, ok)
	require.Equal(t, "b", v)
}

func TestGetValueIndexOutOfRangeReturnsFalse(t *testing.T) {
	p := person{Tags: []string{"a"}}
	_, ok := GetValue(&p, "Tags[5]")
	require.False(t, ok)
}

func TestGetValueUnknownPathReturnsFalse(t *testing.T) {
	p := person{}
	_, ok := GetValue(&p, "DoesNotExist")
	require.False(t, ok)
}

func TestGetValueMapStringAnyNested(t *testing.T) {
	m := map[string]any{"user_name": "ada", "address": map[string]any{"city": "nyc"}}
	v, ok := GetValue(m, "UserName")
	require.True(t, ok)
	require.Equal(t, "ada", v)

	v, ok = GetValue(m, "address.city")
	require.True(t, ok)
	require.Equal(t, "nyc", v)
}

func TestSetValueRequiresPointer(t *testing.T) {
	err := SetValue(person{}, "Name", "x")
	require.Error(t, err)
}

func TestSetValueStructField(t *testing.T) {
	p := &person{}
	require.NoError(t, SetValue(p, "Name", "grace"))
	require.Equal(t, "grace", p.Name)
}

func TestSetValueNestedStructField(t *testing.T) {
	p := &person{}
	require.NoError(t, SetValue(p, "Address.City", "boston"))
	require.Equal(t, "boston", p.Address.City)
}

func TestSetValueUnknownPathErrors(t *testing.T) {
	p := &person{}
	err := SetValue(p, "Nope.City", "x")
	require.Error(t, err)
}

func TestSetValueConvertibleTypeConverts(t *testing.T) {
	p := &person{}
	require.NoError(t, SetValue(p, "Age", int64(42)))
	require.Equal(t, 42, p.Age)
}

func TestSetValueMapStringKey(t *testing.T) {
	m := map[string]any{}
	require.NoError(t, SetValue(&m, "Name", "ada"))
	require.Equal(t, "ada", m["Name"])
}

func TestHasGetterAndHasSetter(t *testing.T) {
	p := &person{Address: address{City: "nyc"}}
	require.True(t, HasGetter(p, "Address.City"))
	require.False(t, HasGetter(p, "Address.Zip"))

	require.True(t, HasSetter(p, "Address.City"))
	require.False(t, HasSetter(p, "Missing.City"))
}

func TestAddAppendsToSliceProperty(t *testing.T) {
	p := &person{}
	require.NoError(t, Add(p, "Tags", "first"))
	require.NoError(t, Add(p, "Tags", "second"))
	require.Equal(t, []string{"first", "second"}, p.Tags)
}

func TestAddAppendsPointerElementsToCollection(t *testing.T) {
	p := &person{}
	require.NoError(t, Add(p, "Friends", &person{Name: "bob"}))
	require.Len(t, p.Friends, 1)
	require.Equal(t, "bob", p.Friends[0].Name)
}

func TestInstantiateStructAndPointerType(t *testing.T) {
	out := Instantiate(reflect.TypeOf(person{}))
	p, ok := out.(*person)
	require.True(t, ok)
	require.NotNil(t, p)

	out2 := Instantiate(reflect.TypeOf(&person{}))
	p2, ok := out2.(*person)
	require.True(t, ok)
	require.NotNil(t, p2)
}
