// Package plugin implements the interceptor chain that wraps an Executor's
// Update/Query calls, modeled directly on the teacher's plugin/plugin.go.
//
// Invocation.Proceed, InterceptorChain, PluginRegistry and BasePlugin were
// real, working code in the teacher and are reused near verbatim, adapted
// to this module's import paths and naming. LoadPluginConfiguration was a
// hardcoded three-plugin stub ("这里简化实现，实际应该从配置文件读取" —
// "simplified, should really load from a config file"); here it reads
// real settings via viper, the same convention config.LoadSettings uses.
package plugin

import (
	"context"
	"reflect"
	"time"

	"github.com/spf13/viper"

	"github.com/zsy619/gomybatis/errs"
)

// Plugin intercepts calls to a target object's methods.
type Plugin interface {
	Intercept(invocation *Invocation) (any, error)
	Plugin(target any) any
	SetProperties(properties map[string]any)
	GetName() string
	GetOrder() int
}

// Invocation carries one intercepted method call.
type Invocation struct {
	Target     any
	Method     reflect.Method
	Args       []any
	Context    context.Context
	StartTime  time.Time
	Properties map[string]any
}

func NewInvocation(target any, method reflect.Method, args []any) *Invocation {
	return &Invocation{
		Target:     target,
		Method:     method,
		Args:       args,
		Context:    context.Background(),
		StartTime:  time.Now(),
		Properties: make(map[string]any),
	}
}

// Proceed calls the original method via reflection and adapts its return
// values into (result, error) the way the interceptor chain expects.
func (inv *Invocation) Proceed() (any, error) {
	values := make([]reflect.Value, len(inv.Args))
	for i, arg := range inv.Args {
		values[i] = reflect.ValueOf(arg)
	}

	targetValue := reflect.ValueOf(inv.Target)
	results := targetValue.MethodByName(inv.Method.Name).Call(values)

	if len(results) == 0 {
		return nil, nil
	}
	if len(results) == 1 {
		if isErrorType(results[0].Type()) {
			if results[0].IsNil() {
				return nil, nil
			}
			return nil, results[0].Interface().(error)
		}
		return results[0].Interface(), nil
	}

	last := results[len(results)-1]
	if isErrorType(last.Type()) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(results) == 2 {
			return results[0].Interface(), nil
		}
		values := make([]any, len(results)-1)
		for i := 0; i < len(results)-1; i++ {
			values[i] = results[i].Interface()
		}
		return values, nil
	}

	values2 := make([]any, len(results))
	for i, r := range results {
		values2[i] = r.Interface()
	}
	return values2, nil
}

func isErrorType(t reflect.Type) bool {
	return t.Implements(reflect.TypeOf((*error)(nil)).Elem())
}

// Signature names one method an interceptor wants to intercept.
type Signature struct {
	Type   reflect.Type
	Method string
	Args   []reflect.Type
}

// Intercepts lists the signatures a Plugin declares interest in.
type Intercepts struct {
	Signatures []Signature
}

// InterceptorChain runs registered plugins in GetOrder sequence.
type InterceptorChain struct {
	interceptors []Plugin
}

func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{interceptors: make([]Plugin, 0)}
}

func (chain *InterceptorChain) AddInterceptor(p Plugin) {
	chain.interceptors = append(chain.interceptors, p)
	sortByOrder(chain.interceptors)
}

func sortByOrder(plugins []Plugin) {
	for i := 1; i < len(plugins); i++ {
		j := i
		for j > 0 && plugins[j-1].GetOrder() > plugins[j].GetOrder() {
			plugins[j-1], plugins[j] = plugins[j], plugins[j-1]
			j--
		}
	}
}

// PluginAll wraps target with every registered plugin, in order.
func (chain *InterceptorChain) PluginAll(target any) any {
	for _, p := range chain.interceptors {
		target = p.Plugin(target)
	}
	return target
}

func (chain *InterceptorChain) GetInterceptors() []Plugin { return chain.interceptors }

// PluginRegistry owns the set of active plugins, looked up by name.
type PluginRegistry struct {
	plugins map[string]Plugin
	chain   *InterceptorChain
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{plugins: make(map[string]Plugin), chain: NewInterceptorChain()}
}

func (r *PluginRegistry) RegisterPlugin(p Plugin) {
	r.plugins[p.GetName()] = p
	r.chain.AddInterceptor(p)
}

func (r *PluginRegistry) GetPlugin(name string) Plugin         { return r.plugins[name] }
func (r *PluginRegistry) GetAllPlugins() map[string]Plugin     { return r.plugins }
func (r *PluginRegistry) GetInterceptorChain() *InterceptorChain { return r.chain }

// PluginProxy intercepts one method call against one interceptor.
type PluginProxy struct {
	target      any
	interceptor Plugin
}

func NewPluginProxy(target any, interceptor Plugin) *PluginProxy {
	return &PluginProxy{target: target, interceptor: interceptor}
}

func (proxy *PluginProxy) Invoke(method reflect.Method, args []any) (any, error) {
	invocation := NewInvocation(proxy.target, method, args)
	return proxy.interceptor.Intercept(invocation)
}

// BasePlugin supplies the bookkeeping (name/order/properties) every
// concrete Plugin embeds rather than reimplements.
type BasePlugin struct {
	name       string
	order      int
	properties map[string]any
}

func NewBasePlugin(name string, order int) *BasePlugin {
	return &BasePlugin{name: name, order: order, properties: make(map[string]any)}
}

func (p *BasePlugin) GetName() string  { return p.name }
func (p *BasePlugin) GetOrder() int    { return p.order }

func (p *BasePlugin) SetProperties(properties map[string]any) { p.properties = properties }
func (p *BasePlugin) GetProperty(key string) any               { return p.properties[key] }

func (p *BasePlugin) GetPropertyString(key, defaultValue string) string {
	if v, ok := p.properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultValue
}

func (p *BasePlugin) GetPropertyInt(key string, defaultValue int) int {
	if v, ok := p.properties[key]; ok {
		if i, ok := v.(int); ok {
			return i
		}
	}
	return defaultValue
}

func (p *BasePlugin) GetPropertyBool(key string, defaultValue bool) bool {
	if v, ok := p.properties[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// PluginConfiguration is the on-disk shape read by LoadPluginConfiguration.
type PluginConfiguration struct {
	Enabled bool           `mapstructure:"enabled"`
	Plugins []PluginConfig `mapstructure:"plugins"`
}

type PluginConfig struct {
	Name       string         `mapstructure:"name"`
	Enabled    bool           `mapstructure:"enabled"`
	Order      int            `mapstructure:"order"`
	Properties map[string]any `mapstructure:"properties"`
}

// LoadPluginConfiguration reads plugin settings from path via viper. A
// missing or empty "plugins" section is not an error — it means no
// plugins are active. The built-in plugin set is available separately
// from DefaultPluginConfiguration.
func LoadPluginConfiguration(path string) (*PluginConfiguration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errs.NewConfigurationError("reading plugin configuration "+path, err)
	}
	var cfg PluginConfiguration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.NewConfigurationError("parsing plugin configuration", err)
	}
	return &cfg, nil
}

// DefaultPluginConfiguration mirrors the teacher's three built-in
// plugins (pagination, slow-query logging, sql logging) as the fallback
// when no on-disk plugin configuration is supplied.
func DefaultPluginConfiguration() *PluginConfiguration {
	return &PluginConfiguration{
		Enabled: true,
		Plugins: []PluginConfig{
			{
				Name: "pagination", Enabled: true, Order: 1,
				Properties: map[string]any{"defaultPageSize": 20, "maxPageSize": 1000},
			},
			{
				Name: "performance", Enabled: true, Order: 2,
				Properties: map[string]any{"slowQueryThresholdMillis": 1000, "enableMetrics": true},
			},
			{
				Name: "sqllog", Enabled: true, Order: 3,
				Properties: map[string]any{"logLevel": "INFO", "logSql": true, "logResult": false, "logParameter": true},
			},
		},
	}
}
