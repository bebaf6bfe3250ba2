package session

import "context"

// SqlSessionTemplate is a goroutine-safe SqlSession facade: each call opens
// a short-lived autocommit session unless ctx already carries one bound by
// ExecuteInTransaction, in which case that session is reused so nested
// calls participate in the outer transaction. This is the supplemented
// SqlSessionTemplate convenience from SPEC_FULL's ambient binding surface,
// modeled on the teacher's mybatis.go package-level convenience functions
// (GetDefault()... helpers) generalized into a per-factory, context-aware
// type instead of a single process-wide singleton.
type SqlSessionTemplate struct {
	factory *SqlSessionFactory
}

func NewSqlSessionTemplate(factory *SqlSessionFactory) *SqlSessionTemplate {
	return &SqlSessionTemplate{factory: factory}
}

func (t *SqlSessionTemplate) sessionFor(ctx context.Context) (SqlSession, bool, error) {
	if sess, ok := FromContext(ctx); ok {
		return sess, false, nil
	}
	return t.factory.OpenSession(ctx, true), true, nil
}

func (t *SqlSessionTemplate) SelectOne(ctx context.Context, statementID string, parameter any) (any, error) {
	sess, owned, err := t.sessionFor(ctx)
	if err != nil {
		return nil, err
	}
	if owned {
		defer sess.Close()
	}
	return sess.SelectOne(statementID, parameter)
}

func (t *SqlSessionTemplate) SelectList(ctx context.Context, statementID string, parameter any) ([]any, error) {
	sess, owned, err := t.sessionFor(ctx)
	if err != nil {
		return nil, err
	}
	if owned {
		defer sess.Close()
	}
	return sess.SelectList(statementID, parameter)
}

func (t *SqlSessionTemplate) Insert(ctx context.Context, statementID string, parameter any) (int64, error) {
	sess, owned, err := t.sessionFor(ctx)
	if err != nil {
		return 0, err
	}
	if owned {
		defer sess.Close()
	}
	return sess.Insert(statementID, parameter)
}

func (t *SqlSessionTemplate) Update(ctx context.Context, statementID string, parameter any) (int64, error) {
	sess, owned, err := t.sessionFor(ctx)
	if err != nil {
		return 0, err
	}
	if owned {
		defer sess.Close()
	}
	return sess.Update(statementID, parameter)
}

func (t *SqlSessionTemplate) Delete(ctx context.Context, statementID string, parameter any) (int64, error) {
	sess, owned, err := t.sessionFor(ctx)
	if err != nil {
		return 0, err
	}
	if owned {
		defer sess.Close()
	}
	return sess.Delete(statementID, parameter)
}
