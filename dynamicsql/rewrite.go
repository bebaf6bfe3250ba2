package dynamicsql

import (
	"regexp"
	"strconv"
	"strings"
)

// ParamToken is one #{...} occurrence rewritten to a '?' placeholder, in
// left-to-right order, per spec §4.4's parameter token grammar.
type ParamToken struct {
	Property     string
	JavaType     string
	JdbcType     string
	Mode         string // IN | OUT | INOUT
	NumericScale *int
	ResultMap    string
	TypeHandler  string
	JdbcTypeName string
}

var paramTokenRe = regexp.MustCompile(`#\{\s*([^}]+?)\s*\}`)

// RewriteParams rewrites every #{property[,option=value]*} (and the
// shorthand #{property:JDBCTYPE}) occurrence in sql into a positional '?'
// placeholder, returning the rewritten text and the ordered ParamToken
// list. Grounded on the teacher's replaceParameters helper (real but
// basic — it didn't parse the option grammar at all); this implements the
// full grammar from spec §4.4/§6.
func RewriteParams(sql string) (string, []ParamToken) {
	var tokens []ParamToken
	rewritten := paramTokenRe.ReplaceAllStringFunc(sql, func(match string) string {
		inner := paramTokenRe.FindStringSubmatch(match)[1]
		tokens = append(tokens, parseParamToken(inner))
		return "?"
	})
	return rewritten, tokens
}

func parseParamToken(inner string) ParamToken {
	// Shorthand #{property:JDBCTYPE} — only when there's no comma (i.e. no
	// full option list) and at least one colon (split at the first).
	if !strings.Contains(inner, ",") {
		if i := strings.Index(inner, ":"); i >= 0 {
			return ParamToken{
				Property: strings.TrimSpace(inner[:i]),
				JdbcType: strings.TrimSpace(inner[i+1:]),
			}
		}
	}
	parts := splitTopLevelComma(inner)
	tok := ParamToken{Property: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		switch key {
		case "javaType":
			tok.JavaType = val
		case "jdbcType":
			tok.JdbcType = val
		case "mode":
			tok.Mode = strings.ToUpper(val)
		case "numericScale":
			if n, err := strconv.Atoi(val); err == nil {
				tok.NumericScale = &n
			}
		case "resultMap":
			tok.ResultMap = val
		case "typeHandler":
			tok.TypeHandler = val
		case "jdbcTypeName":
			tok.JdbcTypeName = val
		}
	}
	if tok.Mode == "" {
		tok.Mode = "IN"
	}
	return tok
}

func splitTopLevelComma(s string) []string {
	return strings.Split(s, ",")
}
