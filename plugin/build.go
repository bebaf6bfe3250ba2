package plugin

import "github.com/zsy619/gomybatis/executor"

// BuildChain instantiates the built-in plugin for each enabled entry in
// cfg and returns an InterceptorChain ready to wrap an executor.Executor
// via PluginAll. Unknown plugin names are skipped — callers that add
// custom plugins should append them to the returned chain directly via
// AddInterceptor instead of naming them here.
func BuildChain(cfg *PluginConfiguration) *InterceptorChain {
	chain := NewInterceptorChain()
	if cfg == nil || !cfg.Enabled {
		return chain
	}
	for _, entry := range cfg.Plugins {
		if !entry.Enabled {
			continue
		}
		switch entry.Name {
		case "pagination":
			chain.AddInterceptor(NewPaginationPlugin(entry))
		case "performance":
			chain.AddInterceptor(NewSlowQueryPlugin(entry))
		case "sqllog":
			chain.AddInterceptor(NewSqlLogPlugin(entry))
		}
	}
	return chain
}

// Wrap applies chain to exec, in the registered order.
func Wrap(chain *InterceptorChain, exec executor.Executor) executor.Executor {
	wrapped := chain.PluginAll(exec)
	out, ok := wrapped.(executor.Executor)
	if !ok {
		return exec
	}
	return out
}
