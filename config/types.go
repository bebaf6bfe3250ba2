package config

// CommandType is the SQL verb a MappedStatement executes, per spec §4.2.
type CommandType string

const (
	CommandUnknown CommandType = "UNKNOWN"
	CommandSelect  CommandType = "SELECT"
	CommandInsert  CommandType = "INSERT"
	CommandUpdate  CommandType = "UPDATE"
	CommandDelete  CommandType = "DELETE"
	CommandFlush   CommandType = "FLUSH"
)

// StatementShape distinguishes plain text statements from ones requiring a
// prepared or callable wire shape; only Prepared is exercised by the GORM
// driver stack this runtime targets.
type StatementShape string

const (
	ShapeStatement StatementShape = "STATEMENT"
	ShapePrepared  StatementShape = "PREPARED"
	ShapeCallable  StatementShape = "CALLABLE"
)

// ResultSetType mirrors the cursor behaviour hint a <select> may declare.
type ResultSetType string

const (
	ResultSetDefault           ResultSetType = "DEFAULT"
	ResultSetForwardOnly       ResultSetType = "FORWARD_ONLY"
	ResultSetScrollInsensitive ResultSetType = "SCROLL_INSENSITIVE"
	ResultSetScrollSensitive  ResultSetType = "SCROLL_SENSITIVE"
)

// ParameterMapping describes one resolved #{...} token: the property path
// into the parameter object, its declared or inferred Go type, the
// TypeHandler.Name used to convert it, and its call direction.
type ParameterMapping struct {
	Property     string
	JavaType     string
	JdbcType     string
	Mode         string // IN | OUT | INOUT
	NumericScale *int
	ResultMapID  string
	TypeHandler  string
}
