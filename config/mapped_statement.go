package config

import (
	"reflect"
	"time"

	"github.com/zsy619/gomybatis/cache"
)

// KeyGenerator is implemented by keygen.NoKeyGenerator/Jdbc3KeyGenerator/
// SelectKeyGenerator; declared here (rather than imported from keygen) to
// avoid an import cycle, since keygen needs *MappedStatement to run a
// SelectKey peer-statement.
type KeyGenerator interface {
	ProcessBefore(executor StatementExecutor, ms *MappedStatement, parameter any) error
	ProcessAfter(executor StatementExecutor, ms *MappedStatement, parameter any, generated any) error
}

// StatementExecutor is the minimal executor capability a KeyGenerator
// needs: running a peer SELECT for <selectKey>.
type StatementExecutor interface {
	Query(ms *MappedStatement, parameter any) ([]map[string]any, error)
}

// MappedStatement is the unified, compiled representation of one
// <select>/<insert>/<update>/<delete> element — the single model this
// package collapses the teacher's three divergent MappedStatement/
// ResultMap/StatementType structs (spread across its config, session, and
// mapper packages) into.
type MappedStatement struct {
	ID          string
	Namespace   string
	CommandType CommandType
	Shape       StatementShape
	SqlSource   SqlSource

	ParameterType reflect.Type
	ResultMaps    []*ResultMap
	ResultType    reflect.Type // used when no explicit resultMap was declared (auto-mapping)

	FetchSize           *int
	Timeout             *time.Duration
	FlushCacheRequired  bool
	UseCache            bool
	ResultOrdered       bool
	ResultSetType       ResultSetType

	KeyGenerator  KeyGenerator
	KeyProperties []string
	KeyColumns    []string

	Cache      cache.Cache
	DatabaseID string

	Lang string // statement language; always "XML" for this runtime
}

// DefaultCommandUseCache reports whether a statement of this CommandType
// participates in the second-level cache by default: SELECTs do, DML
// statements don't (and also flush), matching spec §4.6/§5.2.
func DefaultCommandUseCache(ct CommandType) bool {
	return ct == CommandSelect
}

// DefaultFlushCache mirrors MyBatis' default: SELECT never flushes,
// everything else does.
func DefaultFlushCache(ct CommandType) bool {
	return ct != CommandSelect
}
