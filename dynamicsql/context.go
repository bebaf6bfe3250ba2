// Package dynamicsql implements the Dynamic-SQL Renderer: a composite AST
// of SqlNode kinds that, applied against a per-invocation DynamicContext,
// produces rendered SQL text plus an ordered parameter-binding list
// (BoundSql).
//
// Grounded on the teacher's mapper/dynamic_sql.go (SqlNode.Apply(context)
// bool contract and node-type names are kept); almost every node's Apply
// was a stub or partial there (ForEachSqlNode never iterated, ChooseSqlNode
// never parsed when/otherwise, TextSqlNode never substituted ${}, the
// regex-based tag parser could not handle nested same-named tags). All
// rebuilt for real here. The pooled strings.Builder and NodeGroup-style
// flattening are grounded on go-juicedev-juice's node.go.
package dynamicsql

import (
	"strings"
	"sync"
)

// DynamicContext accumulates rendered text and the variable bindings
// visible during one render pass: iteration bindings from foreach, names
// declared by bind, and the root parameter.
type DynamicContext struct {
	// Parameter is the root parameter object passed to the statement.
	Parameter any
	// Bindings holds bind-declared names and foreach iteration bindings,
	// consulted before falling back to property lookup on Parameter.
	Bindings map[string]any
	// uniqueNumber feeds ForEach's __frch_<name>_<n> uniquification.
	uniqueNumber int

	sql *strings.Builder
}

// NewDynamicContext starts a render pass for parameter.
func NewDynamicContext(parameter any) *DynamicContext {
	return &DynamicContext{
		Parameter: parameter,
		Bindings:  make(map[string]any),
		sql:       getStringBuilder(),
	}
}

// Bind declares name in the context for the remainder of rendering (used
// by both <bind> and <foreach> item/index bindings).
func (c *DynamicContext) Bind(name string, value any) {
	c.Bindings[name] = value
}

// AppendSql appends literal text to the rendered output.
func (c *DynamicContext) AppendSql(s string) {
	if s == "" {
		return
	}
	if c.sql.Len() > 0 {
		last := c.sql.String()[c.sql.Len()-1]
		if last != ' ' && last != '\n' && len(s) > 0 && s[0] != ' ' {
			c.sql.WriteByte(' ')
		}
	}
	c.sql.WriteString(s)
}

// SQL returns the accumulated text so far.
func (c *DynamicContext) SQL() string { return strings.TrimSpace(c.sql.String()) }

// NextUnique returns a fresh per-render sequence number, used to
// uniquify foreach item/index parameter names.
func (c *DynamicContext) NextUnique() int {
	n := c.uniqueNumber
	c.uniqueNumber++
	return n
}

// Release returns the pooled builder. Call once rendering is complete and
// c.SQL() has been captured.
func (c *DynamicContext) Release() { putStringBuilder(c.sql) }

// Get resolves name against the context: bindings (bind-declared and
// foreach iteration vars) first, then dotted/indexed property navigation
// on the root parameter, matching spec §4.5's "_parameter"/"value"
// fallback rules.
func (c *DynamicContext) Get(name string) (any, bool) {
	if name == "_parameter" {
		return c.Parameter, true
	}
	if v, ok := c.Bindings[name]; ok {
		return v, true
	}
	head, rest := splitFirstSegment(name)
	if v, ok := c.Bindings[head]; ok {
		if rest == "" {
			return v, true
		}
		return getValue(v, rest)
	}
	if v, ok := getValue(c.Parameter, name); ok {
		return v, true
	}
	if name == "value" {
		return c.Parameter, true
	}
	return nil, false
}

func splitFirstSegment(path string) (head, rest string) {
	i := strings.IndexAny(path, ".[")
	if i < 0 {
		return path, ""
	}
	if path[i] == '[' {
		return path, ""
	}
	return path[:i], path[i+1:]
}

var builderPool = sync.Pool{New: func() any { return &strings.Builder{} }}

func getStringBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func putStringBuilder(b *strings.Builder) {
	builderPool.Put(b)
}
