package plugin

import (
	"time"

	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/executor"
	"github.com/zsy619/gomybatis/internal/logging"
)

var log = logging.Get("plugin")

// SlowQueryPlugin logs any Update/Query call that exceeds a configured
// threshold, the real equivalent of the teacher's "performance" plugin
// entry (never wired to anything that actually timed a call).
type SlowQueryPlugin struct {
	*BasePlugin
	threshold time.Duration
}

func NewSlowQueryPlugin(cfg PluginConfig) *SlowQueryPlugin {
	p := &SlowQueryPlugin{BasePlugin: NewBasePlugin("performance", cfg.Order)}
	p.SetProperties(cfg.Properties)
	p.threshold = time.Duration(p.GetPropertyInt("slowQueryThresholdMillis", 1000)) * time.Millisecond
	return p
}

func (p *SlowQueryPlugin) Intercept(invocation *Invocation) (any, error) {
	return invocation.Proceed()
}

func (p *SlowQueryPlugin) Plugin(target any) any {
	exec, ok := target.(executor.Executor)
	if !ok {
		return target
	}
	return &timingExecutor{Executor: exec, threshold: p.threshold}
}

type timingExecutor struct {
	executor.Executor
	threshold time.Duration
}

func (e *timingExecutor) Update(ms *config.MappedStatement, parameter any) (int64, error) {
	start := time.Now()
	n, err := e.Executor.Update(ms, parameter)
	e.logIfSlow(ms.ID, time.Since(start))
	return n, err
}

func (e *timingExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return e.QueryWithBounds(ms, parameter, executor.NoRowBounds)
}

func (e *timingExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds executor.RowBounds) ([]map[string]any, error) {
	start := time.Now()
	rows, err := e.Executor.QueryWithBounds(ms, parameter, rowBounds)
	e.logIfSlow(ms.ID, time.Since(start))
	return rows, err
}

func (e *timingExecutor) logIfSlow(statementID string, elapsed time.Duration) {
	if elapsed >= e.threshold {
		log.WithField("statement", statementID).WithField("elapsed", elapsed).Warn("slow statement")
	}
}

var _ executor.Executor = (*timingExecutor)(nil)
