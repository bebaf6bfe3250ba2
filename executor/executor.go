// Package executor implements the Executor family from spec §4.6: the
// seam that turns a MappedStatement + BoundSql into an actual database
// round-trip via gorm.DB, applies RowBounds, builds second-level
// CacheKeys, and runs KeyGenerators.
//
// Grounded on the teacher's session/executor.go (BaseExecutor/
// DefaultExecutor/ReuseExecutor/BatchExecutor/CachingExecutor struct
// shapes kept). The teacher's doUpdate/doQuery against *gorm.DB were real
// and are reused near-verbatim; ReuseExecutor.prepareStatement and
// BatchExecutor.doFlushStatements were stubs ("简化实现"/"模拟结果" —
// faked results with no real batching) and CreateCacheKey omitted hashing
// the parameter values — all rebuilt for real here.
package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm"

	"github.com/zsy619/gomybatis/cache"
	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/internal/logging"
	"github.com/zsy619/gomybatis/reflection"
)

var log = logging.Get("executor")

// RowBounds limits a query's result window, per spec §4.6 (applied in SQL
// as LIMIT/OFFSET rather than in-memory skipping, since every SQL dialect
// this runtime targets supports it natively).
type RowBounds struct {
	Offset int
	Limit  int
}

var NoRowBounds = RowBounds{Offset: 0, Limit: -1}

// Executor is the capability every executor variant and the CachingExecutor
// decorator implement. It also satisfies config.StatementExecutor so
// KeyGenerators can run peer SELECTs, and exposes ResolveStatement so a
// KeyGenerator can look up a <selectKey> peer by id.
type Executor interface {
	Update(ms *config.MappedStatement, parameter any) (int64, error)
	Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error)
	QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds RowBounds) ([]map[string]any, error)
	ResolveStatement(id string) (*config.MappedStatement, error)
	CreateCacheKey(ms *config.MappedStatement, parameter any, rowBounds RowBounds, boundSql *config.BoundSql) *cache.CacheKey
	FlushStatements() error
	Commit() error
	Rollback() error
	Close() error
}

// base holds the state shared by Simple/Reuse/Batch executors.
type base struct {
	mu            sync.RWMutex
	configuration *config.Configuration
	db            *gorm.DB
	ctx           context.Context
	localCache    cache.Cache
	closed        bool
	queryStack    int
}

func newBase(cfg *config.Configuration, db *gorm.DB, ctx context.Context, name string) *base {
	return &base{
		configuration: cfg,
		db:            db,
		ctx:           ctx,
		localCache:    cache.NewLruCache(cache.NewPerpetualCache(name), 256),
	}
}

func (b *base) ResolveStatement(id string) (*config.MappedStatement, error) {
	return b.configuration.GetMappedStatement(id)
}

func (b *base) CreateCacheKey(ms *config.MappedStatement, parameter any, rowBounds RowBounds, boundSql *config.BoundSql) *cache.CacheKey {
	key := cache.NewCacheKey()
	key.Update(ms.ID)
	key.Update(rowBounds.Offset)
	key.Update(rowBounds.Limit)
	key.Update(boundSql.SQL)
	for _, pm := range boundSql.ParameterMappings {
		key.Update(lookupParam(boundSql, pm.Property))
	}
	if b.configuration.Environment != nil {
		key.Update(b.configuration.Environment.ID)
	}
	return key
}

func lookupParam(boundSql *config.BoundSql, property string) any {
	if boundSql.AdditionalParameters != nil {
		if v, ok := boundSql.AdditionalParameters[property]; ok {
			return v
		}
	}
	return fmt.Sprintf("%s:%v", property, boundSql.ParameterObject)
}

func (b *base) clearLocalCache() {
	b.localCache.Clear()
}

func (b *base) ensureOpen(ms *config.MappedStatement) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errs.NewExecutorError(ms.ID, "executor is closed", nil)
	}
	return nil
}

// boundSqlFunc renders ms's BoundSql for parameter; SimpleExecutor and
// BatchExecutor pass ms.SqlSource.GetBoundSql directly, ReuseExecutor
// passes its own caching variant.
type boundSqlFunc func(ms *config.MappedStatement, parameter any) (*config.BoundSql, error)

func defaultBoundSql(ms *config.MappedStatement, parameter any) (*config.BoundSql, error) {
	return ms.SqlSource.GetBoundSql(parameter)
}

func (b *base) runUpdate(ms *config.MappedStatement, parameter any) (int64, error) {
	return b.runUpdateWith(ms, parameter, defaultBoundSql)
}

func (b *base) runUpdateWith(ms *config.MappedStatement, parameter any, render boundSqlFunc) (int64, error) {
	if err := ms.KeyGenerator.ProcessBefore(executorFacade{b}, ms, parameter); err != nil {
		return 0, err
	}
	boundSql, err := render(ms, parameter)
	if err != nil {
		return 0, errs.NewExecutorError(ms.ID, "rendering bound sql", err)
	}
	args := bindArgs(boundSql, parameter)
	result := b.db.WithContext(b.ctx).Exec(boundSql.SQL, args...)
	if result.Error != nil {
		return 0, errs.NewExecutorError(ms.ID, "executing statement", result.Error)
	}
	var generated any
	if ms.CommandType == config.CommandInsert {
		generated = lastInsertID(b.db, b.configuration.Environment)
	}
	if err := ms.KeyGenerator.ProcessAfter(executorFacade{b}, ms, parameter, generated); err != nil {
		return result.RowsAffected, err
	}
	return result.RowsAffected, nil
}

func (b *base) runQuery(ms *config.MappedStatement, parameter any, rowBounds RowBounds) ([]map[string]any, error) {
	return b.runQueryWith(ms, parameter, rowBounds, defaultBoundSql)
}

func (b *base) runQueryWith(ms *config.MappedStatement, parameter any, rowBounds RowBounds, render boundSqlFunc) ([]map[string]any, error) {
	boundSql, err := render(ms, parameter)
	if err != nil {
		return nil, errs.NewExecutorError(ms.ID, "rendering bound sql", err)
	}
	args := bindArgs(boundSql, parameter)
	sqlText := boundSql.SQL
	if rowBounds.Limit >= 0 {
		sqlText = fmt.Sprintf("%s LIMIT %d OFFSET %d", sqlText, rowBounds.Limit, rowBounds.Offset)
	}
	var rows []map[string]any
	if err := b.db.WithContext(b.ctx).Raw(sqlText, args...).Scan(&rows).Error; err != nil {
		return nil, errs.NewExecutorError(ms.ID, "executing query", err)
	}
	return rows, nil
}

// bindArgs orders boundSql.ParameterMappings into positional driver
// arguments, resolving each property either from AdditionalParameters
// (dynamic-sql bindings, foreach uniquified names) or from the parameter
// object itself.
func bindArgs(boundSql *config.BoundSql, parameter any) []any {
	args := make([]any, len(boundSql.ParameterMappings))
	for i, pm := range boundSql.ParameterMappings {
		args[i] = resolveProperty(boundSql, pm.Property)
	}
	_ = parameter
	return args
}

func resolveProperty(boundSql *config.BoundSql, property string) any {
	if boundSql.AdditionalParameters != nil {
		if v, ok := boundSql.AdditionalParameters[property]; ok {
			return v
		}
	}
	if isScalarParameter(boundSql.ParameterObject) {
		return boundSql.ParameterObject
	}
	v, _ := getProperty(boundSql.ParameterObject, property)
	return v
}

// isScalarParameter reports whether parameter is a bare scalar (int,
// string, time.Time, ...) rather than a struct/map/pointer carrying named
// properties — in that case every #{name} token in the statement (whatever
// it's spelled) refers to the parameter itself, per spec §4.4.
func isScalarParameter(parameter any) bool {
	if parameter == nil {
		return false
	}
	switch parameter.(type) {
	case map[string]any:
		return false
	}
	t := reflectTypeOf(parameter)
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return false
	default:
		return true
	}
}

func reflectTypeOf(v any) reflect.Type {
	return reflect.TypeOf(v)
}

func getProperty(obj any, path string) (any, bool) {
	if m, ok := obj.(map[string]any); ok {
		v, ok := m[path]
		return v, ok
	}
	return reflection.GetValue(obj, path)
}

// lastInsertID fetches the identity value the dialect just generated,
// dispatching by env.Driver: MySQL and sqlite expose session-scoped
// functions for this, Postgres exposes lastval() for the sequence behind
// the most recently inserted serial/identity column in the session.
func lastInsertID(db *gorm.DB, env *config.Environment) int64 {
	var query string
	switch driverOf(env) {
	case "mysql":
		query = "SELECT LAST_INSERT_ID()"
	case "postgres":
		query = "SELECT lastval()"
	case "sqlite":
		query = "SELECT last_insert_rowid()"
	default:
		return 0
	}
	var id int64
	row := db.Raw(query).Row()
	if row != nil {
		_ = row.Scan(&id)
	}
	return id
}

func driverOf(env *config.Environment) string {
	if env == nil {
		return ""
	}
	return env.Driver
}

// executorFacade adapts *base to config.StatementExecutor for
// KeyGenerators, without exposing the full Executor interface.
type executorFacade struct{ b *base }

func (f executorFacade) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return f.b.runQuery(ms, parameter, NoRowBounds)
}

func (f executorFacade) ResolveStatement(id string) (*config.MappedStatement, error) {
	return f.b.ResolveStatement(id)
}
