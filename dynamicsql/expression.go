package dynamicsql

import (
	"strconv"
	"strings"

	"github.com/zsy619/gomybatis/errs"
)

// Expression is the read-only language described in spec §4.5: property
// navigation, comparison, boolean combinators, string/integer literals,
// and null-check/size built-ins, evaluated against a DynamicContext.
//
// This replaces the teacher's SimpleExpressionEvaluator, which supported
// only "!= null", "== null", "== 'literal'", and numeric ">" — no boolean
// combinators, no <, <=, >=, no parens. Implemented here as a small
// recursive-descent parser over a hand-written tokenizer.
type Expression struct {
	tokens []token
	pos    int
	src    string
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNe
	tokLt
	tokLe
	tokGt
	tokGe
	tokLParen
	tokRParen
	tokDot
	tokComma
)

type token struct {
	kind tokKind
	text string
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case strings.HasPrefix(src[i:], "&&"):
			toks = append(toks, token{tokAnd, "&&"})
			i += 2
		case strings.HasPrefix(src[i:], "||"):
			toks = append(toks, token{tokOr, "||"})
			i += 2
		case strings.HasPrefix(src[i:], "=="):
			toks = append(toks, token{tokEq, "=="})
			i += 2
		case strings.HasPrefix(src[i:], "!="):
			toks = append(toks, token{tokNe, "!="})
			i += 2
		case strings.HasPrefix(src[i:], "<="):
			toks = append(toks, token{tokLe, "<="})
			i += 2
		case strings.HasPrefix(src[i:], ">="):
			toks = append(toks, token{tokGe, ">="})
			i += 2
		case c == '<':
			toks = append(toks, token{tokLt, "<"})
			i++
		case c == '>':
			toks = append(toks, token{tokGt, ">"})
			i++
		case c == '!':
			toks = append(toks, token{tokNot, "!"})
			i++
		case c == '\'' || c == '"':
			j := i + 1
			for j < n && src[j] != c {
				j++
			}
			if j >= n {
				return nil, errs.NewScriptingError(src, "unterminated string literal")
			}
			toks = append(toks, token{tokString, src[i+1 : j]})
			i = j + 1
		case c == '.' && (i+1 >= n || !isDigit(src[i+1])):
			toks = append(toks, token{tokDot, "."})
			i++
		case isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])):
			j := i
			for j < n && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			switch word {
			case "and":
				toks = append(toks, token{tokAnd, word})
			case "or":
				toks = append(toks, token{tokOr, word})
			case "not":
				toks = append(toks, token{tokNot, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, errs.NewScriptingError(src, "unexpected character '"+string(c)+"'")
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '[' || c == ']'
}

// ParseExpression compiles src (without executing it) for repeated
// evaluation.
func ParseExpression(src string) (*Expression, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Expression{tokens: toks, src: src}, nil
}

func (e *Expression) peek() token { return e.tokens[e.pos] }
func (e *Expression) next() token {
	t := e.tokens[e.pos]
	if e.pos < len(e.tokens)-1 {
		e.pos++
	}
	return t
}

// Eval evaluates the expression to a bool, per spec's EvaluateBoolean
// contract for <if>/<when>.
func (e *Expression) Eval(ctx *DynamicContext) (bool, error) {
	e.pos = 0
	v, err := e.parseOr(ctx)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// EvalValue evaluates the expression to its raw value, used by foreach's
// collection expression and bind's value expression.
func (e *Expression) EvalValue(ctx *DynamicContext) (any, error) {
	e.pos = 0
	return e.parseOr(ctx)
}

func (e *Expression) parseOr(ctx *DynamicContext) (any, error) {
	left, err := e.parseAnd(ctx)
	if err != nil {
		return nil, err
	}
	for e.peek().kind == tokOr {
		e.next()
		if truthy(left) {
			// short-circuit: still must consume the rest of the tokens
			_, err := e.parseAnd(ctx)
			if err != nil {
				return nil, err
			}
			left = true
			continue
		}
		right, err := e.parseAnd(ctx)
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (e *Expression) parseAnd(ctx *DynamicContext) (any, error) {
	left, err := e.parseNot(ctx)
	if err != nil {
		return nil, err
	}
	for e.peek().kind == tokAnd {
		e.next()
		right, err := e.parseNot(ctx)
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (e *Expression) parseNot(ctx *DynamicContext) (any, error) {
	if e.peek().kind == tokNot {
		e.next()
		v, err := e.parseNot(ctx)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return e.parseComparison(ctx)
}

func (e *Expression) parseComparison(ctx *DynamicContext) (any, error) {
	left, err := e.parsePrimary(ctx)
	if err != nil {
		return nil, err
	}
	switch e.peek().kind {
	case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe:
		op := e.next().kind
		right, err := e.parsePrimary(ctx)
		if err != nil {
			return nil, err
		}
		return compare(op, left, right), nil
	}
	return left, nil
}

// parsePrimary handles literals, property paths (with dotted navigation
// and a trailing .size()/.length built-in), "null", and parenthesized
// sub-expressions.
func (e *Expression) parsePrimary(ctx *DynamicContext) (any, error) {
	t := e.peek()
	switch t.kind {
	case tokLParen:
		e.next()
		v, err := e.parseOr(ctx)
		if err != nil {
			return nil, err
		}
		if e.peek().kind != tokRParen {
			return nil, errs.NewScriptingError(e.src, "expected ')'")
		}
		e.next()
		return v, nil
	case tokString:
		e.next()
		return t.text, nil
	case tokNumber:
		e.next()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			return f, wrapNumErr(e.src, err)
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		return n, wrapNumErr(e.src, err)
	case tokIdent:
		e.next()
		if t.text == "null" {
			return nil, nil
		}
		if t.text == "true" {
			return true, nil
		}
		if t.text == "false" {
			return false, nil
		}
		path := t.text
		for e.peek().kind == tokDot {
			e.next()
			if e.peek().kind != tokIdent {
				return nil, errs.NewScriptingError(e.src, "expected identifier after '.'")
			}
			seg := e.next().text
			if seg == "size" || seg == "length" {
				if e.peek().kind == tokLParen {
					e.next()
					if e.peek().kind == tokRParen {
						e.next()
					}
				}
				v, _ := ctx.Get(path)
				n, ok := collectionLen(v)
				if !ok {
					return 0, nil
				}
				return int64(n), nil
			}
			path = path + "." + seg
		}
		v, _ := ctx.Get(path)
		return v, nil
	default:
		return nil, errs.NewScriptingError(e.src, "unexpected token")
	}
}

func wrapNumErr(src string, err error) error {
	if err == nil {
		return nil
	}
	return errs.NewScriptingError(src, "invalid numeric literal: "+err.Error())
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		n, ok := collectionLen(v)
		if ok {
			return n > 0
		}
		return true
	}
}

func compare(op tokKind, left, right any) bool {
	if op == tokEq {
		return equalValues(left, right)
	}
	if op == tokNe {
		return !equalValues(left, right)
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		switch op {
		case tokLt:
			return lf < rf
		case tokLe:
			return lf <= rf
		case tokGt:
			return lf > rf
		case tokGe:
			return lf >= rf
		}
	}
	ls, rs := stringify(left), stringify(right)
	switch op {
	case tokLt:
		return ls < rs
	case tokLe:
		return ls <= rs
	case tokGt:
		return ls > rs
	case tokGe:
		return ls >= rs
	}
	return false
}

func equalValues(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		return lf == rf
	}
	return stringify(left) == stringify(right)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}
