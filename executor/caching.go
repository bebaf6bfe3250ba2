package executor

import (
	"sync"

	"github.com/zsy619/gomybatis/cache"
	"github.com/zsy619/gomybatis/config"
)

// CachingExecutor decorates another Executor with the second-level cache:
// per-namespace TransactionalCache overlays so writes made within the
// current session are invisible to other sessions until Commit, per spec
// §4.3/§8 scenario 6.
//
// Grounded on the teacher's CachingExecutor (session/executor.go), which
// delegated every method straight through with no cache lookup at all in
// Query; this adds the real get-or-query-then-put path and wires
// FlushCacheRequired.
type CachingExecutor struct {
	delegate Executor
	mu       sync.Mutex
	overlays map[string]*cache.TransactionalCache // namespace -> per-session overlay
}

func NewCachingExecutor(delegate Executor) *CachingExecutor {
	return &CachingExecutor{delegate: delegate, overlays: make(map[string]*cache.TransactionalCache)}
}

func (e *CachingExecutor) overlayFor(ms *config.MappedStatement) *cache.TransactionalCache {
	e.mu.Lock()
	defer e.mu.Unlock()
	tc, ok := e.overlays[ms.Namespace]
	if !ok {
		tc = cache.NewTransactionalCache(ms.Cache)
		e.overlays[ms.Namespace] = tc
	}
	return tc
}

func (e *CachingExecutor) Update(ms *config.MappedStatement, parameter any) (int64, error) {
	if ms.Cache != nil && ms.FlushCacheRequired {
		e.overlayFor(ms).Clear()
	}
	return e.delegate.Update(ms, parameter)
}

func (e *CachingExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return e.QueryWithBounds(ms, parameter, NoRowBounds)
}

func (e *CachingExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds RowBounds) ([]map[string]any, error) {
	if ms.Cache == nil || !ms.UseCache {
		return e.delegate.QueryWithBounds(ms, parameter, rowBounds)
	}
	boundSql, err := ms.SqlSource.GetBoundSql(parameter)
	if err != nil {
		return nil, err
	}
	key := e.delegate.CreateCacheKey(ms, parameter, rowBounds, boundSql)
	overlay := e.overlayFor(ms)
	if cached, ok := overlay.Get(key.String()); ok {
		if rows, ok := cached.([]map[string]any); ok {
			return rows, nil
		}
	}
	rows, err := e.delegate.QueryWithBounds(ms, parameter, rowBounds)
	if err != nil {
		return nil, err
	}
	overlay.Put(key.String(), rows)
	return rows, nil
}

func (e *CachingExecutor) ResolveStatement(id string) (*config.MappedStatement, error) {
	return e.delegate.ResolveStatement(id)
}

func (e *CachingExecutor) CreateCacheKey(ms *config.MappedStatement, parameter any, rowBounds RowBounds, boundSql *config.BoundSql) *cache.CacheKey {
	return e.delegate.CreateCacheKey(ms, parameter, rowBounds, boundSql)
}

func (e *CachingExecutor) FlushStatements() error {
	return e.delegate.FlushStatements()
}

func (e *CachingExecutor) Commit() error {
	e.mu.Lock()
	for _, tc := range e.overlays {
		tc.Commit()
	}
	e.mu.Unlock()
	return e.delegate.Commit()
}

func (e *CachingExecutor) Rollback() error {
	e.mu.Lock()
	for _, tc := range e.overlays {
		tc.Rollback()
	}
	e.mu.Unlock()
	return e.delegate.Rollback()
}

func (e *CachingExecutor) Close() error {
	return e.delegate.Close()
}
