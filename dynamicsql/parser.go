package dynamicsql

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/zsy619/gomybatis/errs"
)

// Parse compiles a statement body (the inner XML of a <select>/<insert>/
// <update>/<delete> element, or a spliced <sql> fragment) into a SqlNode
// tree.
//
// The teacher's mapper/dynamic_sql.go parsed tags with single-pass regexes
// like `<if\s+test="([^"]+)">([^<]*(?:<(?!/?if\b)[^<]*)*)</if>` that cannot
// correctly track nesting of same-named tags. This implementation instead
// wraps the body in a synthetic root and walks it with encoding/xml's
// streaming tokenizer, which tracks element nesting for free and is the
// same library the teacher's outer mapper-document parser already uses.
func Parse(body string) (SqlNode, error) {
	dec := xml.NewDecoder(strings.NewReader("<_root>" + body + "</_root>"))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	if _, err := dec.Token(); err != nil { // consume synthetic root start
		return nil, errs.NewScriptingError(body, "malformed statement body: "+err.Error())
	}
	node, err := parseChildren(dec, "_root")
	if err != nil {
		return nil, err
	}
	return node, nil
}

func parseChildren(dec *xml.Decoder, parentTag string) (SqlNode, error) {
	var children []SqlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewScriptingError(parentTag, err.Error())
		}
		switch t := tok.(type) {
		case xml.CharData:
			text := string(t)
			if dollarTokenRe.MatchString(text) {
				children = append(children, &TextSqlNode{Text: text})
			} else {
				children = append(children, &StaticTextSqlNode{Text: text})
			}
		case xml.StartElement:
			node, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			if node != nil {
				children = append(children, node)
			}
		case xml.EndElement:
			if t.Name.Local == parentTag {
				return &MixedSqlNode{Children: children}, nil
			}
		}
	}
	return &MixedSqlNode{Children: children}, nil
}

func attrOf(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func splitOverrides(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, " ") {
			p += " "
		}
		out = append(out, p)
	}
	return out
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (SqlNode, error) {
	switch start.Name.Local {
	case "if":
		expr, err := ParseExpression(attrOf(start, "test"))
		if err != nil {
			return nil, err
		}
		body, err := parseChildren(dec, "if")
		if err != nil {
			return nil, err
		}
		return &IfSqlNode{Test: expr, Children: body}, nil

	case "where":
		body, err := parseChildren(dec, "where")
		if err != nil {
			return nil, err
		}
		return NewWhereSqlNode(body), nil

	case "set":
		body, err := parseChildren(dec, "set")
		if err != nil {
			return nil, err
		}
		return NewSetSqlNode(body), nil

	case "trim":
		body, err := parseChildren(dec, "trim")
		if err != nil {
			return nil, err
		}
		return &TrimSqlNode{
			Children:        body,
			Prefix:          attrOf(start, "prefix"),
			Suffix:          attrOf(start, "suffix"),
			PrefixesToStrip: splitOverrides(attrOf(start, "prefixOverrides")),
			SuffixesToStrip: splitOverrides(attrOf(start, "suffixOverrides")),
		}, nil

	case "choose":
		return parseChoose(dec)

	case "foreach":
		collExpr, err := ParseExpression(attrOf(start, "collection"))
		if err != nil {
			return nil, err
		}
		body, err := parseChildren(dec, "foreach")
		if err != nil {
			return nil, err
		}
		return &ForEachSqlNode{
			Collection: collExpr,
			Item:       attrOf(start, "item"),
			Index:      attrOf(start, "index"),
			Open:       attrOf(start, "open"),
			Close:      attrOf(start, "close"),
			Separator:  attrOf(start, "separator"),
			Children:   body,
		}, nil

	case "bind":
		valueExpr := attrOf(start, "value")
		expr, err := ParseExpression(unquoteBindValue(valueExpr))
		if err != nil {
			return nil, err
		}
		if _, err := parseChildren(dec, "bind"); err != nil { // <bind> is empty; drain to its end tag
			return nil, err
		}
		return &BindSqlNode{Name: attrOf(start, "name"), Value: expr}, nil

	default:
		// Unknown wrapper element: still parse its children so any nested
		// dynamic tags keep working, but the wrapper itself contributes no
		// markup of its own.
		return parseChildren(dec, start.Name.Local)
	}
}

// unquoteBindValue returns a <bind value="..."> attribute unchanged: no
// quoting is stripped, and the value is evaluated as an expression exactly
// as written.
func unquoteBindValue(v string) string {
	return v
}

func parseChoose(dec *xml.Decoder) (SqlNode, error) {
	var whens []WhenNode
	var otherwise SqlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewScriptingError("choose", err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "when":
				expr, err := ParseExpression(attrOf(t, "test"))
				if err != nil {
					return nil, err
				}
				body, err := parseChildren(dec, "when")
				if err != nil {
					return nil, err
				}
				whens = append(whens, WhenNode{Test: expr, Children: body})
			case "otherwise":
				body, err := parseChildren(dec, "otherwise")
				if err != nil {
					return nil, err
				}
				otherwise = body
			default:
				return nil, errs.NewScriptingError("choose", fmt.Sprintf("unexpected child <%s> of <choose>", t.Name.Local))
			}
		case xml.EndElement:
			if t.Name.Local == "choose" {
				return &ChooseSqlNode{Whens: whens, Otherwise: otherwise}, nil
			}
		}
	}
	return &ChooseSqlNode{Whens: whens, Otherwise: otherwise}, nil
}

// ContainsDynamicTags reports whether body contains any recognised dynamic
// construct or a ${...} token, used by the statement compiler to decide
// between a static and a dynamic SqlSource.
func ContainsDynamicTags(body string) bool {
	if dollarTokenRe.MatchString(body) {
		return true
	}
	for _, tag := range []string{"<if", "<choose", "<where", "<set", "<trim", "<foreach", "<bind"} {
		if strings.Contains(body, tag) {
			return true
		}
	}
	return false
}
