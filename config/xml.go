package config

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zsy619/gomybatis/errs"
)

// The structs below mirror the <mapper> document schema from spec §6,
// grounded on the teacher's mapper/xml_parser.go MapperXML family — same
// field names and `xml:"...,attr"` shape, extended with <cache>,
// <cache-ref>, <include>, <selectKey>, <association>/<collection> nesting
// and <discriminator>, none of which the teacher's parser recognised.

type mapperDocumentXML struct {
	XMLName    xml.Name        `xml:"mapper"`
	Namespace  string          `xml:"namespace,attr"`
	Cache      *cacheXML       `xml:"cache"`
	CacheRef   *cacheRefXML    `xml:"cache-ref"`
	ResultMaps []resultMapXML  `xml:"resultMap"`
	SQLs       []sqlFragmentXML `xml:"sql"`
	Selects    []statementXML  `xml:"select"`
	Inserts    []statementXML  `xml:"insert"`
	Updates    []statementXML  `xml:"update"`
	Deletes    []statementXML  `xml:"delete"`
}

type cacheXML struct {
	Eviction string `xml:"eviction,attr,omitempty"`
	Size     string `xml:"size,attr,omitempty"`
	Blocking string `xml:"blocking,attr,omitempty"`
}

type cacheRefXML struct {
	Namespace string `xml:"namespace,attr"`
}

type sqlFragmentXML struct {
	ID      string `xml:"id,attr"`
	Content string `xml:",innerxml"`
}

type statementXML struct {
	ID               string `xml:"id,attr"`
	ParameterType    string `xml:"parameterType,attr,omitempty"`
	ResultType       string `xml:"resultType,attr,omitempty"`
	ResultMap        string `xml:"resultMap,attr,omitempty"`
	UseCache         string `xml:"useCache,attr,omitempty"`
	FlushCache       string `xml:"flushCache,attr,omitempty"`
	Timeout          string `xml:"timeout,attr,omitempty"`
	FetchSize        string `xml:"fetchSize,attr,omitempty"`
	KeyProperty      string `xml:"keyProperty,attr,omitempty"`
	KeyColumn        string `xml:"keyColumn,attr,omitempty"`
	UseGeneratedKeys string `xml:"useGeneratedKeys,attr,omitempty"`
	DatabaseID       string `xml:"databaseId,attr,omitempty"`
	Content          string `xml:",innerxml"`
}

type selectKeyXML struct {
	XMLName      xml.Name `xml:"selectKey"`
	KeyProperty  string   `xml:"keyProperty,attr"`
	KeyColumn    string   `xml:"keyColumn,attr,omitempty"`
	Order        string   `xml:"order,attr"` // BEFORE | AFTER
	ResultType   string   `xml:"resultType,attr,omitempty"`
	Content      string   `xml:",innerxml"`
}

type resultMapXML struct {
	ID            string                `xml:"id,attr"`
	Type          string                `xml:"type,attr"`
	Extends       string                `xml:"extends,attr,omitempty"`
	AutoMapping   string                `xml:"autoMapping,attr,omitempty"`
	Constructor   *constructorXML       `xml:"constructor"`
	IDs           []resultFieldXML      `xml:"id"`
	Results       []resultFieldXML      `xml:"result"`
	Associations  []associationXML      `xml:"association"`
	Collections   []collectionXML       `xml:"collection"`
	Discriminator *discriminatorXML     `xml:"discriminator"`
}

// constructorXML captures <idArg>/<arg> children in document order — the
// `,any` catch-all is required since encoding/xml only preserves order
// within a single repeated-tag-name slice, and idArg/arg may interleave.
type constructorXML struct {
	Args []constructorArgXML `xml:",any"`
}

type constructorArgXML struct {
	XMLName     xml.Name
	Name        string `xml:"name,attr,omitempty"`
	Column      string `xml:"column,attr,omitempty"`
	JavaType    string `xml:"javaType,attr,omitempty"`
	JdbcType    string `xml:"jdbcType,attr,omitempty"`
	TypeHandler string `xml:"typeHandler,attr,omitempty"`
	Select      string `xml:"select,attr,omitempty"`
	ResultMap   string `xml:"resultMap,attr,omitempty"`
}

// IsID reports whether this constructor arg was declared as <idArg>
// (the composite-key half of a constructor's parameter list) rather than
// a plain <arg>.
func (a constructorArgXML) IsID() bool { return a.XMLName.Local == "idArg" }

type resultFieldXML struct {
	Property    string `xml:"property,attr"`
	Column      string `xml:"column,attr"`
	JavaType    string `xml:"javaType,attr,omitempty"`
	JdbcType    string `xml:"jdbcType,attr,omitempty"`
	TypeHandler string `xml:"typeHandler,attr,omitempty"`
}

type associationXML struct {
	Property     string `xml:"property,attr"`
	JavaType     string `xml:"javaType,attr,omitempty"`
	Column       string `xml:"column,attr,omitempty"`
	Select       string `xml:"select,attr,omitempty"`
	ResultMap    string `xml:"resultMap,attr,omitempty"`
	ColumnPrefix string `xml:"columnPrefix,attr,omitempty"`
	FetchType    string `xml:"fetchType,attr,omitempty"`
}

type collectionXML struct {
	Property     string `xml:"property,attr"`
	OfType       string `xml:"ofType,attr,omitempty"`
	Column       string `xml:"column,attr,omitempty"`
	Select       string `xml:"select,attr,omitempty"`
	ResultMap    string `xml:"resultMap,attr,omitempty"`
	ColumnPrefix string `xml:"columnPrefix,attr,omitempty"`
	FetchType    string `xml:"fetchType,attr,omitempty"`
}

type discriminatorXML struct {
	Column   string      `xml:"column,attr"`
	JavaType string      `xml:"javaType,attr,omitempty"`
	Cases    []caseXML   `xml:"case"`
}

type caseXML struct {
	Value     string `xml:"value,attr"`
	ResultMap string `xml:"resultMap,attr"`
}

var includeRe = regexp.MustCompile(`<include\s+refid="([^"]+)"\s*/>`)
var selectKeyRe = regexp.MustCompile(`(?s)<selectKey[^>]*>.*?</selectKey>`)

// spliceIncludes recursively replaces <include refid="..."/> with the
// referenced <sql> fragment's own content (which may itself contain more
// <include> tags), up to a depth bound against cyclic fragments.
//
// The teacher's processIncludes (mapper/xml_parser.go) was an explicit
// stub: `return content // 简化实现，实际需要正则替换`. This performs the
// real substitution.
func spliceIncludes(content string, fragments map[string]string, depth int) (string, error) {
	if depth > 20 {
		return "", errs.NewConfigurationError("include splicing exceeded depth limit (cyclic <sql> fragment?)", nil)
	}
	matches := includeRe.FindAllStringSubmatchIndex(content, -1)
	if matches == nil {
		return content, nil
	}
	var out strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		refid := content[m[2]:m[3]]
		frag, ok := fragments[refid]
		if !ok {
			return "", errs.NewIncompleteElement("sql", refid, "include references unresolved <sql> fragment")
		}
		spliced, err := spliceIncludes(frag, fragments, depth+1)
		if err != nil {
			return "", err
		}
		out.WriteString(content[last:start])
		out.WriteString(spliced)
		last = end
	}
	out.WriteString(content[last:])
	return out.String(), nil
}

func extractSelectKey(content string) (body string, sk *selectKeyXML, err error) {
	loc := selectKeyRe.FindStringIndex(content)
	if loc == nil {
		return content, nil, nil
	}
	var parsed selectKeyXML
	if err := xml.Unmarshal([]byte(content[loc[0]:loc[1]]), &parsed); err != nil {
		return "", nil, errs.NewConfigurationError("malformed <selectKey>: "+err.Error(), err)
	}
	remaining := content[:loc[0]] + content[loc[1]:]
	return remaining, &parsed, nil
}

func parseIntAttr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseDurationSecondsAttr(s string) *time.Duration {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	d := time.Duration(n) * time.Second
	return &d
}

func parseBoolAttr(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func commandTypeFor(tag string) CommandType {
	switch tag {
	case "select":
		return CommandSelect
	case "insert":
		return CommandInsert
	case "update":
		return CommandUpdate
	case "delete":
		return CommandDelete
	default:
		return CommandUnknown
	}
}

func fmtMapperError(namespace, id string, err error) error {
	return errs.NewConfigurationError(fmt.Sprintf("mapper %q statement %q: %v", namespace, id, err), err)
}
