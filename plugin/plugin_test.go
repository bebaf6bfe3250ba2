package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsy619/gomybatis/cache"
	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/executor"
)

// fakeExecutor is a minimal executor.Executor whose every call is
// recorded, so plugin decorators can be tested without a real database.
type fakeExecutor struct {
	queryDelay  time.Duration
	updateDelay time.Duration
	rows        []map[string]any
	lastBounds  executor.RowBounds
	updates     int
	queries     int
}

func (f *fakeExecutor) Update(ms *config.MappedStatement, parameter any) (int64, error) {
	f.updates++
	if f.updateDelay > 0 {
		time.Sleep(f.updateDelay)
	}
	return 1, nil
}

func (f *fakeExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return f.QueryWithBounds(ms, parameter, executor.NoRowBounds)
}

func (f *fakeExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds executor.RowBounds) ([]map[string]any, error) {
	f.queries++
	f.lastBounds = rowBounds
	if f.queryDelay > 0 {
		time.Sleep(f.queryDelay)
	}
	return f.rows, nil
}

func (f *fakeExecutor) ResolveStatement(id string) (*config.MappedStatement, error) { return nil, nil }
func (f *fakeExecutor) CreateCacheKey(ms *config.MappedStatement, parameter any, rowBounds executor.RowBounds, boundSql *config.BoundSql) *cache.CacheKey {
	return cache.NewCacheKey()
}
func (f *fakeExecutor) FlushStatements() error { return nil }
func (f *fakeExecutor) Commit() error          { return nil }
func (f *fakeExecutor) Rollback() error        { return nil }
func (f *fakeExecutor) Close() error           { return nil }

func TestPaginationPluginClampsOversizedLimit(t *testing.T) {
	p := NewPaginationPlugin(PluginConfig{Order: 1, Properties: map[string]any{"maxPageSize": 50}})
	inner := &fakeExecutor{}
	wrapped := p.Plugin(inner).(executor.Executor)

	_, err := wrapped.QueryWithBounds(&config.MappedStatement{ID: "widgets.FindAll"}, nil, executor.RowBounds{Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 50, inner.lastBounds.Limit)
}

func TestPaginationPluginLeavesSmallLimitsUntouched(t *testing.T) {
	p := NewPaginationPlugin(PluginConfig{Properties: map[string]any{"maxPageSize": 50}})
	inner := &fakeExecutor{}
	wrapped := p.Plugin(inner).(executor.Executor)

	_, err := wrapped.QueryWithBounds(&config.MappedStatement{ID: "widgets.FindAll"}, nil, executor.RowBounds{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 10, inner.lastBounds.Limit)
}

func TestPaginationPluginPassesThroughNonExecutorTargets(t *testing.T) {
	p := NewPaginationPlugin(PluginConfig{})
	require.Equal(t, "not an executor", p.Plugin("not an executor"))
}

func TestSlowQueryPluginLogsAboveThresholdWithoutError(t *testing.T) {
	p := NewSlowQueryPlugin(PluginConfig{Properties: map[string]any{"slowQueryThresholdMillis": 1}})
	inner := &fakeExecutor{updateDelay: 5 * time.Millisecond}
	wrapped := p.Plugin(inner).(executor.Executor)

	n, err := wrapped.Update(&config.MappedStatement{ID: "widgets.Insert"}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 1, inner.updates)
}

func TestSqlLogPluginGatesOnConfiguredFlags(t *testing.T) {
	p := NewSqlLogPlugin(PluginConfig{Properties: map[string]any{"logSql": false, "logResult": false}})
	require.False(t, p.logSql)
	require.False(t, p.logResult)

	inner := &fakeExecutor{rows: []map[string]any{{"id": int64(1)}}}
	wrapped := p.Plugin(inner).(executor.Executor)

	rows, err := wrapped.Query(&config.MappedStatement{ID: "widgets.FindAll"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, inner.queries)
}

func TestBasePluginPropertyGettersFallBackToDefaults(t *testing.T) {
	b := NewBasePlugin("x", 5)
	b.SetProperties(map[string]any{"a": "hello", "n": 3, "flag": true})

	require.Equal(t, "hello", b.GetPropertyString("a", "dflt"))
	require.Equal(t, "dflt", b.GetPropertyString("missing", "dflt"))
	require.Equal(t, 3, b.GetPropertyInt("n", 0))
	require.Equal(t, 0, b.GetPropertyInt("missing", 0))
	require.True(t, b.GetPropertyBool("flag", false))
	require.False(t, b.GetPropertyBool("missing", false))
}

func TestInterceptorChainOrdersByGetOrder(t *testing.T) {
	chain := NewInterceptorChain()
	chain.AddInterceptor(NewSqlLogPlugin(PluginConfig{Order: 3}))
	chain.AddInterceptor(NewPaginationPlugin(PluginConfig{Order: 1}))
	chain.AddInterceptor(NewSlowQueryPlugin(PluginConfig{Order: 2}))

	interceptors := chain.GetInterceptors()
	require.Len(t, interceptors, 3)
	require.Equal(t, "pagination", interceptors[0].GetName())
	require.Equal(t, "performance", interceptors[1].GetName())
	require.Equal(t, "sqllog", interceptors[2].GetName())
}

func TestBuildChainWiresEnabledBuiltinsOnly(t *testing.T) {
	cfg := &PluginConfiguration{
		Enabled: true,
		Plugins: []PluginConfig{
			{Name: "pagination", Enabled: true, Order: 1},
			{Name: "performance", Enabled: false, Order: 2},
			{Name: "unknown-plugin", Enabled: true, Order: 3},
		},
	}
	chain := BuildChain(cfg)
	require.Len(t, chain.GetInterceptors(), 1)
	require.Equal(t, "pagination", chain.GetInterceptors()[0].GetName())
}

func TestBuildChainDisabledConfigurationReturnsEmptyChain(t *testing.T) {
	chain := BuildChain(&PluginConfiguration{Enabled: false})
	require.Len(t, chain.GetInterceptors(), 0)
}

func TestWrapAppliesFullChainInOrder(t *testing.T) {
	chain := BuildChain(DefaultPluginConfiguration())
	inner := &fakeExecutor{}
	wrapped := Wrap(chain, inner)

	_, err := wrapped.QueryWithBounds(&config.MappedStatement{ID: "widgets.FindAll"}, nil, executor.RowBounds{Limit: 5000})
	require.NoError(t, err)
	require.Equal(t, 1000, inner.lastBounds.Limit, "default pagination maxPageSize should clamp the outer call")
}

func TestLoadPluginConfigurationReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	doc := `
enabled: true
plugins:
  - name: pagination
    enabled: true
    order: 1
    properties:
      maxPageSize: 200
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadPluginConfiguration(path)
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Len(t, cfg.Plugins, 1)
	require.Equal(t, "pagination", cfg.Plugins[0].Name)
	require.Equal(t, 200, cfg.Plugins[0].Properties["maxPageSize"])
}

func TestLoadPluginConfigurationMissingFileErrors(t *testing.T) {
	_, err := LoadPluginConfiguration(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
