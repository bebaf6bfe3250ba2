package dynamicsql

import (
	"regexp"
	"strings"
)

// SqlNode is one element of the dynamic-SQL AST. Apply renders the node
// into ctx and reports whether it contributed any text.
type SqlNode interface {
	Apply(ctx *DynamicContext) (bool, error)
}

// MixedSqlNode applies its children in sequence; a non-empty contribution
// from any child makes the whole node non-empty.
type MixedSqlNode struct {
	Children []SqlNode
}

func (n *MixedSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	contributed := false
	for _, c := range n.Children {
		ok, err := c.Apply(ctx)
		if err != nil {
			return contributed, err
		}
		contributed = contributed || ok
	}
	return contributed, nil
}

// StaticTextSqlNode appends literal text verbatim.
type StaticTextSqlNode struct {
	Text string
}

func (n *StaticTextSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	if strings.TrimSpace(n.Text) == "" {
		ctx.AppendSql(n.Text)
		return false, nil
	}
	ctx.AppendSql(n.Text)
	return true, nil
}

var dollarTokenRe = regexp.MustCompile(`\$\{\s*([\w.\[\]]+)\s*\}`)

// TextSqlNode scans the literal for ${name} tokens and substitutes each
// with the string form of the resolved expression value before appending,
// per spec §4.5. The teacher's TextSqlNode wrote the literal verbatim with
// no substitution at all; this is the real implementation.
type TextSqlNode struct {
	Text string
}

func (n *TextSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	rendered := dollarTokenRe.ReplaceAllStringFunc(n.Text, func(match string) string {
		name := dollarTokenRe.FindStringSubmatch(match)[1]
		v, _ := ctx.Get(name)
		return stringify(v)
	})
	ctx.AppendSql(rendered)
	return strings.TrimSpace(rendered) != "", nil
}

// IfSqlNode applies Children iff Test evaluates truthy.
type IfSqlNode struct {
	Test     *Expression
	Children SqlNode
}

func (n *IfSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	ok, err := n.Test.Eval(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return n.Children.Apply(ctx)
}

// WhenNode is one <when test="..."> branch of a ChooseSqlNode.
type WhenNode struct {
	Test     *Expression
	Children SqlNode
}

// ChooseSqlNode evaluates each When in order; the first true one applies
// and the chain stops. If none match, Otherwise (if present) applies. The
// teacher's parseChooseTag never parsed when/otherwise children at all;
// this is the real implementation.
type ChooseSqlNode struct {
	Whens     []WhenNode
	Otherwise SqlNode
}

func (n *ChooseSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	for _, w := range n.Whens {
		matched, err := w.Test.Eval(ctx)
		if err != nil {
			return false, err
		}
		if matched {
			return w.Children.Apply(ctx)
		}
	}
	if n.Otherwise != nil {
		return n.Otherwise.Apply(ctx)
	}
	return false, nil
}

// TrimSqlNode renders Children into an isolated buffer; if non-empty,
// strips the first matching prefix/suffix override, then wraps with
// Prefix/Suffix.
type TrimSqlNode struct {
	Children        SqlNode
	Prefix, Suffix  string
	PrefixesToStrip []string
	SuffixesToStrip []string
}

var leadingWsRe = regexp.MustCompile(`^\s+`)

func (n *TrimSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	inner := NewDynamicContext(ctx.Parameter)
	inner.Bindings = ctx.Bindings
	inner.uniqueNumber = ctx.uniqueNumber
	defer func() { ctx.uniqueNumber = inner.uniqueNumber }()
	defer inner.Release()

	contributed, err := n.Children.Apply(inner)
	if err != nil {
		return false, err
	}
	body := inner.SQL()
	if !contributed || strings.TrimSpace(body) == "" {
		return false, nil
	}
	body = n.stripOverrides(body)
	var out strings.Builder
	if n.Prefix != "" {
		out.WriteString(n.Prefix)
		out.WriteByte(' ')
	}
	out.WriteString(body)
	if n.Suffix != "" {
		out.WriteByte(' ')
		out.WriteString(n.Suffix)
	}
	ctx.AppendSql(out.String())
	return true, nil
}

func (n *TrimSqlNode) stripOverrides(body string) string {
	trimmed := leadingWsRe.ReplaceAllString(body, "")
	upper := strings.ToUpper(trimmed)
	for _, prefix := range n.PrefixesToStrip {
		up := strings.ToUpper(prefix)
		if strings.HasPrefix(upper, up) {
			trimmed = strings.TrimLeft(trimmed[len(prefix):], " ")
			break
		}
	}
	trimmedRight := strings.TrimRight(trimmed, " ")
	upperRight := strings.ToUpper(trimmedRight)
	for _, suffix := range n.SuffixesToStrip {
		up := strings.ToUpper(suffix)
		if strings.HasSuffix(upperRight, up) {
			trimmed = strings.TrimRight(trimmedRight[:len(trimmedRight)-len(suffix)], " ")
			break
		}
	}
	return trimmed
}

// WhereSqlNode is Trim(prefix="WHERE", prefixOverrides={"AND","OR"}).
func NewWhereSqlNode(children SqlNode) *TrimSqlNode {
	return &TrimSqlNode{
		Children:        children,
		Prefix:          "WHERE",
		PrefixesToStrip: []string{"AND ", "OR ", "AND\n", "OR\n"},
	}
}

// SetSqlNode is Trim(prefix="SET", suffixOverrides={","}).
func NewSetSqlNode(children SqlNode) *TrimSqlNode {
	return &TrimSqlNode{
		Children:        children,
		Prefix:          "SET",
		SuffixesToStrip: []string{","},
	}
}

// BindSqlNode evaluates Value once and binds it under Name; contributes no
// text.
type BindSqlNode struct {
	Name  string
	Value *Expression
}

func (n *BindSqlNode) Apply(ctx *DynamicContext) (bool, error) {
	v, err := n.Value.EvalValue(ctx)
	if err != nil {
		return false, err
	}
	ctx.Bind(n.Name, v)
	return false, nil
}
