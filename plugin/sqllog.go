package plugin

import (
	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/executor"
)

// SqlLogPlugin logs every statement call (its id and, optionally, its
// parameter, plus optionally its result row count) at Info level — the
// real equivalent of the
// teacher's "sqllog" plugin entry, which only ever set logLevel/logSql/
// logResult/logParameter as unused properties.
type SqlLogPlugin struct {
	*BasePlugin
	logSql       bool
	logResult    bool
	logParameter bool
}

func NewSqlLogPlugin(cfg PluginConfig) *SqlLogPlugin {
	p := &SqlLogPlugin{BasePlugin: NewBasePlugin("sqllog", cfg.Order)}
	p.SetProperties(cfg.Properties)
	p.logSql = p.GetPropertyBool("logSql", true)
	p.logResult = p.GetPropertyBool("logResult", false)
	p.logParameter = p.GetPropertyBool("logParameter", true)
	return p
}

func (p *SqlLogPlugin) Intercept(invocation *Invocation) (any, error) {
	return invocation.Proceed()
}

func (p *SqlLogPlugin) Plugin(target any) any {
	exec, ok := target.(executor.Executor)
	if !ok {
		return target
	}
	return &loggingExecutor{Executor: exec, plugin: p}
}

type loggingExecutor struct {
	executor.Executor
	plugin *SqlLogPlugin
}

func (e *loggingExecutor) Update(ms *config.MappedStatement, parameter any) (int64, error) {
	e.plugin.logCall(ms.ID, parameter)
	n, err := e.Executor.Update(ms, parameter)
	e.plugin.logResultCount(ms.ID, n)
	return n, err
}

func (e *loggingExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return e.QueryWithBounds(ms, parameter, executor.NoRowBounds)
}

func (e *loggingExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds executor.RowBounds) ([]map[string]any, error) {
	e.plugin.logCall(ms.ID, parameter)
	rows, err := e.Executor.QueryWithBounds(ms, parameter, rowBounds)
	e.plugin.logResultCount(ms.ID, int64(len(rows)))
	return rows, err
}

func (p *SqlLogPlugin) logCall(statementID string, parameter any) {
	if !p.logSql {
		return
	}
	entry := log.WithField("statement", statementID)
	if p.logParameter {
		entry = entry.WithField("parameter", parameter)
	}
	entry.Info("executing statement")
}

func (p *SqlLogPlugin) logResultCount(statementID string, n int64) {
	if !p.logResult {
		return
	}
	log.WithField("statement", statementID).WithField("affected", n).Info("statement completed")
}

var _ executor.Executor = (*loggingExecutor)(nil)
