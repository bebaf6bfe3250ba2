// Package keygen implements the three KeyGenerator strategies from spec
// §4.6.1: no-op, JDBC3-style auto-generated keys, and <selectKey> peer
// statement execution (BEFORE or AFTER the main statement).
//
// Grounded on the teacher's mybatis/key_generator.go, which declared the
// same three-way split (NoKeyGenerator/Jdbc3KeyGenerator/SelectKeyGenerator)
// but left ProcessAfter as a stub that never actually wrote the generated
// id back onto the parameter object.
package keygen

import (
	"reflect"

	"github.com/zsy619/gomybatis/config"
	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/reflection"
)

// NoKeyGenerator is used for statements with no declared key strategy.
type NoKeyGenerator struct{}

func (NoKeyGenerator) ProcessBefore(_ config.StatementExecutor, _ *config.MappedStatement, _ any) error {
	return nil
}

func (NoKeyGenerator) ProcessAfter(_ config.StatementExecutor, _ *config.MappedStatement, _ any, _ any) error {
	return nil
}

// Jdbc3KeyGenerator assigns the driver-reported LastInsertId back onto the
// parameter object's KeyProperties, handling the single-parameter,
// map-parameter, and batch-slice-of-parameters shapes from spec §4.6.1.
type Jdbc3KeyGenerator struct{}

func NewJdbc3KeyGenerator() *Jdbc3KeyGenerator { return &Jdbc3KeyGenerator{} }

func (g *Jdbc3KeyGenerator) ProcessBefore(_ config.StatementExecutor, _ *config.MappedStatement, _ any) error {
	return nil
}

func (g *Jdbc3KeyGenerator) ProcessAfter(_ config.StatementExecutor, ms *config.MappedStatement, parameter any, generated any) error {
	if len(ms.KeyProperties) == 0 {
		return nil
	}
	rv := reflect.ValueOf(parameter)
	if rv.Kind() == reflect.Slice {
		// Batch insert: generated is expected to be a []int64 of one id per row,
		// assigned positionally.
		ids, ok := generated.([]int64)
		if !ok {
			return errs.NewExecutorError(ms.ID, "batch key generation requires []int64 ids", nil)
		}
		for i := 0; i < rv.Len() && i < len(ids); i++ {
			if err := assignKey(rv.Index(i).Interface(), ms.KeyProperties[0], ids[i]); err != nil {
				return err
			}
		}
		return nil
	}
	id, ok := generated.(int64)
	if !ok {
		return errs.NewExecutorError(ms.ID, "key generation requires an int64 id", nil)
	}
	return assignKey(parameter, ms.KeyProperties[0], id)
}

func assignKey(target any, property string, value int64) error {
	if rv := reflect.ValueOf(target); rv.Kind() == reflect.Map {
		// Maps are reference types: write through a pointer to a copy of
		// the header so SetValue's pointer requirement is met.
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		target = p.Interface()
	}
	return reflection.SetValue(target, property, value)
}

// SelectKeyGenerator executes a peer SELECT statement (registered under
// id+"!selectKey") either before or after the main statement and assigns
// its single returned column onto KeyProperty.
type SelectKeyGenerator struct {
	peerStatementID string
	keyProperty     string
	executeAfter    bool
}

func NewSelectKeyGenerator(peerStatementID, keyProperty string, executeAfter bool) *SelectKeyGenerator {
	return &SelectKeyGenerator{peerStatementID: peerStatementID, keyProperty: keyProperty, executeAfter: executeAfter}
}

func (g *SelectKeyGenerator) ProcessBefore(executor config.StatementExecutor, ms *config.MappedStatement, parameter any) error {
	if g.executeAfter {
		return nil
	}
	return g.run(executor, ms, parameter)
}

func (g *SelectKeyGenerator) ProcessAfter(executor config.StatementExecutor, ms *config.MappedStatement, parameter any, _ any) error {
	if !g.executeAfter {
		return nil
	}
	return g.run(executor, ms, parameter)
}

func (g *SelectKeyGenerator) run(executor config.StatementExecutor, ms *config.MappedStatement, parameter any) error {
	peer, err := lookupPeer(executor, g.peerStatementID)
	if err != nil {
		return err
	}
	rows, err := executor.Query(peer, parameter)
	if err != nil {
		return errs.NewExecutorError(ms.ID, "selectKey execution failed", err)
	}
	if len(rows) == 0 {
		return nil
	}
	for _, v := range rows[0] {
		return assignAny(parameter, g.keyProperty, v)
	}
	return nil
}

// lookupPeer exists so this package depends only on config.StatementExecutor
// and not on a concrete executor/session type; the caller's executor is
// responsible for dereferencing peer statement ids through its own
// Configuration.
func lookupPeer(executor config.StatementExecutor, peerID string) (*config.MappedStatement, error) {
	if resolver, ok := executor.(interface {
		ResolveStatement(id string) (*config.MappedStatement, error)
	}); ok {
		return resolver.ResolveStatement(peerID)
	}
	return nil, errs.NewConfigurationError("executor cannot resolve selectKey peer statement "+peerID, nil)
}

func assignAny(target any, property string, value any) error {
	return reflection.SetValue(target, property, value)
}
