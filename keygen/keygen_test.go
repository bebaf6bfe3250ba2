package keygen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsy619/gomybatis/config"
)

type recordedParam struct {
	ID   int64
	Name string
}

func TestNoKeyGeneratorIsNoop(t *testing.T) {
	g := NoKeyGenerator{}
	p := &recordedParam{Name: "a"}
	require.NoError(t, g.ProcessBefore(nil, nil, p))
	require.NoError(t, g.ProcessAfter(nil, nil, p, int64(99)))
	require.Equal(t, int64(0), p.ID)
}

func TestJdbc3KeyGeneratorAssignsSingleParameter(t *testing.T) {
	g := NewJdbc3KeyGenerator()
	ms := &config.MappedStatement{ID: "widgets.Insert", KeyProperties: []string{"ID"}}
	p := &recordedParam{Name: "a"}

	require.NoError(t, g.ProcessAfter(nil, ms, p, int64(42)))
	require.Equal(t, int64(42), p.ID)
}

func TestJdbc3KeyGeneratorAssignsBatchSlice(t *testing.T) {
	g := NewJdbc3KeyGenerator()
	ms := &config.MappedStatement{ID: "widgets.BatchInsert", KeyProperties: []string{"ID"}}
	params := []*recordedParam{{Name: "a"}, {Name: "b"}}

	require.NoError(t, g.ProcessAfter(nil, ms, params, []int64{1, 2}))
	require.Equal(t, int64(1), params[0].ID)
	require.Equal(t, int64(2), params[1].ID)
}

func TestJdbc3KeyGeneratorNoKeyPropertiesIsNoop(t *testing.T) {
	g := NewJdbc3KeyGenerator()
	ms := &config.MappedStatement{ID: "widgets.Insert"}
	p := &recordedParam{}
	require.NoError(t, g.ProcessAfter(nil, ms, p, int64(7)))
	require.Equal(t, int64(0), p.ID)
}

type stubExecutor struct {
	peer *config.MappedStatement
	rows []map[string]any
}

func (s *stubExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return s.rows, nil
}

func (s *stubExecutor) ResolveStatement(id string) (*config.MappedStatement, error) {
	return s.peer, nil
}

func TestSelectKeyGeneratorBeforeAssignsFromPeerRow(t *testing.T) {
	peer := &config.MappedStatement{ID: "widgets.Insert!selectKey"}
	exec := &stubExecutor{peer: peer, rows: []map[string]any{{"nextval": int64(101)}}}
	g := NewSelectKeyGenerator(peer.ID, "ID", false)
	ms := &config.MappedStatement{ID: "widgets.Insert"}
	p := &recordedParam{Name: "a"}

	require.NoError(t, g.ProcessBefore(exec, ms, p))
	require.Equal(t, int64(101), p.ID)

	require.NoError(t, g.ProcessAfter(exec, ms, p, nil))
}
