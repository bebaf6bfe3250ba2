// Package gomybatis is the top-level facade: Builder/Runtime tie
// Configuration, SqlSessionFactory, the plugin chain, and the mapper
// registry together into the single entry point application code uses.
//
// Grounded on the teacher's mybatis.go (MyBatis/Builder/convenience
// methods/global-singleton pattern kept), generalized to this module's
// unified config/session/executor/binding/plugin types.
package gomybatis

import (
	"context"
	"reflect"

	"github.com/zsy619/gomybatis/binding"
	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/plugin"
	"github.com/zsy619/gomybatis/session"
)

const (
	Version = "1.0.0"
	Name    = "gomybatis"
)

// Runtime is the assembled system: a Configuration, the factory dialing
// its Environment, and the mapper registry bound to every OpenSession
// call this Runtime makes.
type Runtime struct {
	configuration *config.Configuration
	factory       *session.SqlSessionFactory
	mappers       *binding.MapperRegistry
	plugins       *plugin.InterceptorChain
}

// Builder assembles a Runtime fluently, the same shape as the teacher's
// Builder: each method is a no-op once an earlier step has failed, and
// the accumulated error surfaces from Build.
type Builder struct {
	cfg     *config.Configuration
	mappers *binding.MapperRegistry
	plugins *plugin.PluginConfiguration
	err     error
}

func NewBuilder() *Builder {
	return &Builder{cfg: config.NewConfiguration(), mappers: binding.NewMapperRegistry()}
}

func (b *Builder) Environment(env *config.Environment) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Environment = env
	return b
}

func (b *Builder) Settings(settings config.Settings) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Settings = settings
	return b
}

// LoadMapperFile parses one XML mapping document into the Configuration.
func (b *Builder) LoadMapperFile(path string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.cfg.LoadMapperFile(path); err != nil {
		b.err = err
	}
	return b
}

// RegisterMapper binds mapperType's method set to namespace for later
// GetMapper calls.
func (b *Builder) RegisterMapper(mapperType reflect.Type, namespace string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.mappers.Register(mapperType, namespace); err != nil {
		b.err = err
	}
	return b
}

func (b *Builder) RegisterTypeAlias(alias string, t reflect.Type) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.RegisterTypeAlias(alias, t)
	return b
}

// Plugins overrides the default three-plugin chain with cfg.
func (b *Builder) Plugins(cfg *plugin.PluginConfiguration) *Builder {
	if b.err != nil {
		return b
	}
	b.plugins = cfg
	return b
}

// Build finalizes the Configuration (resolving IncompleteElements), dials
// the environment, and returns the assembled Runtime.
func (b *Builder) Build() (*Runtime, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.cfg.Finalize(); err != nil {
		return nil, err
	}
	factory, err := session.NewSqlSessionFactory(b.cfg)
	if err != nil {
		return nil, err
	}
	pluginCfg := b.plugins
	if pluginCfg == nil {
		pluginCfg = plugin.DefaultPluginConfiguration()
	}
	return &Runtime{
		configuration: b.cfg,
		factory:       factory,
		mappers:       b.mappers,
		plugins:       plugin.BuildChain(pluginCfg),
	}, nil
}

func (r *Runtime) Configuration() *config.Configuration          { return r.configuration }
func (r *Runtime) SqlSessionFactory() *session.SqlSessionFactory { return r.factory }

// OpenSession opens an autocommit session whose executor is wrapped by
// the Runtime's plugin chain.
func (r *Runtime) OpenSession() *session.DefaultSqlSession {
	return r.OpenSessionContext(context.Background())
}

// OpenSessionContext is OpenSession with an explicit context, carried
// through to every statement the session runs.
func (r *Runtime) OpenSessionContext(ctx context.Context) *session.DefaultSqlSession {
	exec := plugin.Wrap(r.plugins, r.factory.BuildExecutor(ctx))
	return session.NewDefaultSqlSession(r.configuration, exec, true)
}

// Template returns a goroutine-safe SqlSessionTemplate over this Runtime's
// factory, for callers that prefer per-call sessions over one long-lived
// session.
func (r *Runtime) Template() *session.SqlSessionTemplate {
	return session.NewSqlSessionTemplate(r.factory)
}

// GetMapper builds a live binding.MapperProxy for mapperType against a
// fresh autocommit session.
func (r *Runtime) GetMapper(mapperType reflect.Type) (*binding.MapperProxy, error) {
	sess := r.OpenSession()
	return r.mappers.NewProxy(mapperType, sess)
}

// 版本信息 helpers, mirroring the teacher's GetVersion/GetName/GetInfo.
func GetVersion() string { return Version }
func GetName() string    { return Name }

func GetInfo() map[string]string {
	return map[string]string{
		"name":        Name,
		"version":     Version,
		"description": "MyBatis-style SQL mapping runtime for Go",
		"features":    "sql mapping, dynamic sql, two-level cache, transactions, plugins, mapper binding",
	}
}

// defaultRuntime supports the package-level convenience functions below,
// mirroring the teacher's SetDefaultMyBatis/GetDefaultMyBatis globals.
var defaultRuntime *Runtime

func SetDefault(r *Runtime) { defaultRuntime = r }
func GetDefault() *Runtime  { return defaultRuntime }

func DefaultSelectOne(statementID string, parameter any) (any, error) {
	if defaultRuntime == nil {
		return nil, errs.NewConfigurationError("no default runtime set", nil)
	}
	sess := defaultRuntime.OpenSession()
	defer sess.Close()
	return sess.SelectOne(statementID, parameter)
}

func DefaultSelectList(statementID string, parameter any) ([]any, error) {
	if defaultRuntime == nil {
		return nil, errs.NewConfigurationError("no default runtime set", nil)
	}
	sess := defaultRuntime.OpenSession()
	defer sess.Close()
	return sess.SelectList(statementID, parameter)
}

func DefaultInsert(statementID string, parameter any) (int64, error) {
	if defaultRuntime == nil {
		return 0, errs.NewConfigurationError("no default runtime set", nil)
	}
	sess := defaultRuntime.OpenSession()
	defer sess.Close()
	return sess.Insert(statementID, parameter)
}

func DefaultUpdate(statementID string, parameter any) (int64, error) {
	if defaultRuntime == nil {
		return 0, errs.NewConfigurationError("no default runtime set", nil)
	}
	sess := defaultRuntime.OpenSession()
	defer sess.Close()
	return sess.Update(statementID, parameter)
}

func DefaultDelete(statementID string, parameter any) (int64, error) {
	if defaultRuntime == nil {
		return 0, errs.NewConfigurationError("no default runtime set", nil)
	}
	sess := defaultRuntime.OpenSession()
	defer sess.Close()
	return sess.Delete(statementID, parameter)
}
