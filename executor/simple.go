package executor

import (
	"context"

	"gorm.io/gorm"

	"github.com/zsy619/gomybatis/config"
)

// SimpleExecutor opens one *sql.Stmt-equivalent gorm call per statement
// execution — no statement or batch reuse, matching the teacher's
// DefaultExecutor.
type SimpleExecutor struct{ *base }

func NewSimpleExecutor(cfg *config.Configuration, db *gorm.DB, ctx context.Context) *SimpleExecutor {
	return &SimpleExecutor{base: newBase(cfg, db, ctx, "simple")}
}

func (e *SimpleExecutor) Update(ms *config.MappedStatement, parameter any) (int64, error) {
	if err := e.ensureOpen(ms); err != nil {
		return 0, err
	}
	e.clearLocalCache()
	return e.runUpdate(ms, parameter)
}

func (e *SimpleExecutor) Query(ms *config.MappedStatement, parameter any) ([]map[string]any, error) {
	return e.QueryWithBounds(ms, parameter, NoRowBounds)
}

func (e *SimpleExecutor) QueryWithBounds(ms *config.MappedStatement, parameter any, rowBounds RowBounds) ([]map[string]any, error) {
	if err := e.ensureOpen(ms); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.queryStack++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.queryStack--
		e.mu.Unlock()
	}()
	return e.runQuery(ms, parameter, rowBounds)
}

func (e *SimpleExecutor) FlushStatements() error { e.clearLocalCache(); return nil }

func (e *SimpleExecutor) Commit() error {
	e.clearLocalCache()
	if tx, ok := txFromContext(e.ctx); ok {
		return tx.Commit().Error
	}
	return nil
}

func (e *SimpleExecutor) Rollback() error {
	e.clearLocalCache()
	if tx, ok := txFromContext(e.ctx); ok {
		return tx.Rollback().Error
	}
	return nil
}

func (e *SimpleExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(*gorm.DB)
	return tx, ok
}

type transactionContextKey struct{}

// WithTransaction carries tx on ctx so an executor running against it
// knows to Commit/Rollback the real database transaction (rather than a
// no-op) when the session does.
func WithTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, transactionContextKey{}, tx)
}
