package plugin

import (
	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/executor"
)

// PaginationPlugin clamps every query's RowBounds to a configured page
// size ceiling, the real equivalent of the teacher's "pagination" plugin
// entry (which only ever appeared in LoadPluginConfiguration's property
// map — nothing in the teacher actually enforced it).
type PaginationPlugin struct {
	*BasePlugin
}

func NewPaginationPlugin(cfg PluginConfig) *PaginationPlugin {
	p := &PaginationPlugin{BasePlugin: NewBasePlugin("pagination", cfg.Order)}
	p.SetProperties(cfg.Properties)
	return p
}

func (p *PaginationPlugin) maxPageSize() int { return p.GetPropertyInt("maxPageSize", 1000) }

// Intercept is unused by the decorator path (Plugin below wraps the
// Executor directly, which is cheaper than reflect.MethodByName dispatch
// for a capability this narrow) but is implemented to satisfy Plugin.
func (p *PaginationPlugin) Intercept(invocation *Invocation) (any, error) {
	return invocation.Proceed()
}

// Plugin wraps target (expected to be an executor.Executor) with a
// RowBounds-clamping decorator; any other target is returned unchanged.
func (p *PaginationPlugin) Plugin(target any) any {
	exec, ok := target.(executor.Executor)
	if !ok {
		return target
	}
	return &paginatingExecutor{Executor: exec, maxPageSize: p.maxPageSize()}
}

type paginatingExecutor struct {
	executor.Executor
	maxPageSize int
}

func (e *paginatingExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds executor.RowBounds) ([]map[string]any, error) {
	if rowBounds.Limit > e.maxPageSize {
		rowBounds.Limit = e.maxPageSize
	}
	return e.Executor.QueryWithBounds(ms, parameter, rowBounds)
}

var _ executor.Executor = (*paginatingExecutor)(nil)
