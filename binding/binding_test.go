package binding

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsy619/gomybatis/config"
)

type widget struct {
	ID   int64
	Name string
}

// stubSession is a hand-rolled session.SqlSession that records the last
// call made against it and returns canned results, so binding behavior can
// be tested without a real database.
type stubSession struct {
	lastStatementID string
	lastParameter   any

	oneResult  any
	oneErr     error
	listResult []any
	listErr    error
	mapResult  map[string]any
	mapErr     error
	writeCount int64
	writeErr   error
}

func (s *stubSession) SelectOne(statementID string, parameter any) (any, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.oneResult, s.oneErr
}

func (s *stubSession) SelectList(statementID string, parameter any) ([]any, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.listResult, s.listErr
}

func (s *stubSession) SelectMap(statementID string, parameter any, keyProperty string) (map[string]any, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.mapResult, s.mapErr
}

func (s *stubSession) Insert(statementID string, parameter any) (int64, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.writeCount, s.writeErr
}

func (s *stubSession) Update(statementID string, parameter any) (int64, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.writeCount, s.writeErr
}

func (s *stubSession) Delete(statementID string, parameter any) (int64, error) {
	s.lastStatementID, s.lastParameter = statementID, parameter
	return s.writeCount, s.writeErr
}

func (s *stubSession) Commit() error                        { return nil }
func (s *stubSession) Rollback() error                       { return nil }
func (s *stubSession) Close() error                          { return nil }
func (s *stubSession) Configuration() *config.Configuration  { return nil }

type widgetMapper interface {
	FindByID(id int64) (*widget, error)
	FindByFilter(name, status string) ([]*widget, error)
	FindAllByKey() (map[string]*widget, error)
	Insert(w *widget) (int64, error)
	UpdateStatus(w *widget) (int64, error)
	Delete(id int64) (int64, error)
	Remove(id int64) error
}

var widgetMapperType = reflect.TypeOf((*widgetMapper)(nil)).Elem()

func TestRegisterRejectsNonInterfaceType(t *testing.T) {
	r := NewMapperRegistry()
	err := r.Register(reflect.TypeOf(widget{}), "widgets")
	require.Error(t, err)
}

func TestNewProxyUnknownMapperTypeErrors(t *testing.T) {
	r := NewMapperRegistry()
	_, err := r.NewProxy(widgetMapperType, &stubSession{})
	require.Error(t, err)
}

func TestInvokeSelectOneUsesNamespaceDotMethodName(t *testing.T) {
	sess := &stubSession{oneResult: &widget{ID: 1, Name: "bolt"}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	out, err := proxy.Invoke("FindByID", int64(1))
	require.NoError(t, err)
	require.Equal(t, "widgets.FindByID", sess.lastStatementID)
	require.Equal(t, int64(1), sess.lastParameter)
	require.Len(t, out, 2)
	w := out[0].(*widget)
	require.Equal(t, "bolt", w.Name)
	require.Nil(t, out[1])
}

func TestInvokeRespectsMethodOverride(t *testing.T) {
	sess := &stubSession{oneResult: &widget{ID: 2}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	r.RegisterMethod(widgetMapperType, "FindByID", "widgets.customFind")
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	_, err = proxy.Invoke("FindByID", int64(2))
	require.NoError(t, err)
	require.Equal(t, "widgets.customFind", sess.lastStatementID)
}

func TestInvokeMultiArgBuildsArgNMap(t *testing.T) {
	sess := &stubSession{listResult: []any{&widget{Name: "x"}}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	_, err = proxy.Invoke("FindByFilter", "ada", "active")
	require.NoError(t, err)
	m, ok := sess.lastParameter.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ada", m["arg0"])
	require.Equal(t, "active", m["arg1"])
}

func TestInvokeSelectListCoercesElementType(t *testing.T) {
	sess := &stubSession{listResult: []any{&widget{Name: "a"}, &widget{Name: "b"}}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	out, err := proxy.Invoke("FindByFilter", "a", "")
	require.NoError(t, err)
	list, ok := out[0].([]*widget)
	require.True(t, ok)
	require.Len(t, list, 2)
}

func TestInvokeSelectMapBranch(t *testing.T) {
	sess := &stubSession{mapResult: map[string]any{"1": &widget{ID: 1, Name: "m"}}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	out, err := proxy.Invoke("FindAllByKey")
	require.NoError(t, err)
	require.Equal(t, "widgets.FindAllByKey", sess.lastStatementID)
	m, ok := out[0].(map[string]*widget)
	require.True(t, ok)
	require.Equal(t, "m", m["1"].Name)
}

func TestInvokeInsertInfersCommandAndReturnsCount(t *testing.T) {
	sess := &stubSession{writeCount: 1}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	out, err := proxy.Invoke("Insert", &widget{Name: "new"})
	require.NoError(t, err)
	require.Equal(t, "widgets.Insert", sess.lastStatementID)
	require.Equal(t, int64(1), out[0].(int64))
}

func TestInvokeUpdateStatusInfersUpdateCommand(t *testing.T) {
	sess := &stubSession{writeCount: 1}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	mm := proxy.methods["UpdateStatus"]
	require.Equal(t, CmdUpdate, mm.Command)

	_, err = proxy.Invoke("UpdateStatus", &widget{ID: 1})
	require.NoError(t, err)
}

func TestInvokeDeleteAndRemoveInferDeleteCommand(t *testing.T) {
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, &stubSession{writeCount: 1})
	require.NoError(t, err)

	require.Equal(t, CmdDelete, proxy.methods["Delete"].Command)
	require.Equal(t, CmdDelete, proxy.methods["Remove"].Command)
}

func TestInvokeErrorReturnPropagatesThroughAdaptedResult(t *testing.T) {
	boom := require.New(t)
	sess := &stubSession{writeErr: errTestWrite}
	r := NewMapperRegistry()
	boom.NoError(r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	boom.NoError(err)

	out, err := proxy.Invoke("Insert", &widget{Name: "fails"})
	require.NoError(t, err)
	require.Equal(t, errTestWrite, out[1])
}

func TestInvokeSingleErrorOnlyReturnMethod(t *testing.T) {
	sess := &stubSession{writeErr: nil, writeCount: 1}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	out, err := proxy.Invoke("Remove", int64(1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Nil(t, out[0])
}

func TestInvokeUnknownMethodErrors(t *testing.T) {
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, &stubSession{})
	require.NoError(t, err)

	_, err = proxy.Invoke("DoesNotExist")
	require.Error(t, err)
}

func TestFuncReturnsCallableReflectValue(t *testing.T) {
	sess := &stubSession{oneResult: &widget{ID: 5, Name: "viaFunc"}}
	r := NewMapperRegistry()
	require.NoError(t, r.Register(widgetMapperType, "widgets"))
	proxy, err := r.NewProxy(widgetMapperType, sess)
	require.NoError(t, err)

	fn, err := proxy.Func("FindByID")
	require.NoError(t, err)
	results := fn.Call([]reflect.Value{reflect.ValueOf(int64(5))})
	require.Len(t, results, 2)
	w := results[0].Interface().(*widget)
	require.Equal(t, "viaFunc", w.Name)
}

func TestBuildParameterZeroOneAndManyArgs(t *testing.T) {
	require.Nil(t, buildParameter(nil))

	single := buildParameter([]reflect.Value{reflect.ValueOf(int64(9))})
	require.Equal(t, int64(9), single)

	multi := buildParameter([]reflect.Value{reflect.ValueOf("a"), reflect.ValueOf("b")})
	m, ok := multi.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a", m["arg0"])
	require.Equal(t, "b", m["arg1"])
}

var errTestWrite = &bindingTestError{"write failed"}

type bindingTestError struct{ msg string }

func (e *bindingTestError) Error() string { return e.msg }
