package dynamicsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, body string, param any) string {
	t.Helper()
	node, err := Parse(body)
	require.NoError(t, err)
	ctx := NewDynamicContext(param)
	defer ctx.Release()
	_, err = node.Apply(ctx)
	require.NoError(t, err)
	return ctx.SQL()
}

func TestIfWhereComposition(t *testing.T) {
	body := `select * from t <where><if test="name != null">name = #{name}</if><if test="age != null"> AND age > #{age}</if></where>`
	sql := render(t, body, map[string]any{"name": nil, "age": 18})
	rewritten, tokens := RewriteParams(sql)
	assert.Contains(t, rewritten, "WHERE age > ?")
	require.Len(t, tokens, 1)
	assert.Equal(t, "age", tokens[0].Property)
}

func TestForeachIn(t *testing.T) {
	body := `id in <foreach collection="ids" item="x" open="(" close=")" separator=",">#{x}</foreach>`
	sql := render(t, body, map[string]any{"ids": []int{1, 2, 3}})
	rewritten, tokens := RewriteParams(sql)
	assert.Contains(t, rewritten, "(?,?,?)")
	require.Len(t, tokens, 3)
}

func TestChooseWhenOtherwise(t *testing.T) {
	body := `<choose><when test="kind == 'a'">A</when><when test="kind == 'b'">B</when><otherwise>C</otherwise></choose>`
	assert.Equal(t, "A", render(t, body, map[string]any{"kind": "a"}))
	assert.Equal(t, "B", render(t, body, map[string]any{"kind": "b"}))
	assert.Equal(t, "C", render(t, body, map[string]any{"kind": "z"}))
}

func TestTrimStripsFirstMatchingPrefixOverride(t *testing.T) {
	body := `<trim prefix="WHERE" prefixOverrides="AND |OR "><if test="flag">AND x = 1</if></trim>`
	sql := render(t, body, map[string]any{"flag": true})
	assert.Equal(t, "WHERE x = 1", sql)
}

func TestTrimEmptyBodyProducesEmptyOutput(t *testing.T) {
	body := `<trim prefix="WHERE" prefixOverrides="AND |OR "><if test="flag">AND x = 1</if></trim>`
	sql := render(t, body, map[string]any{"flag": false})
	assert.Equal(t, "", sql)
}

func TestDynamicTextSubstitution(t *testing.T) {
	body := `select * from ${table} where id = #{id}`
	sql := render(t, body, map[string]any{"table": "users", "id": 7})
	rewritten, tokens := RewriteParams(sql)
	assert.Equal(t, "select * from users where id = ?", rewritten)
	require.Len(t, tokens, 1)
	assert.Equal(t, "id", tokens[0].Property)
}

func TestBindDeclaresVariable(t *testing.T) {
	body := `<bind name="pattern" value="name"/>select * from t where name = #{pattern}`
	sql := render(t, body, map[string]any{"name": "bob"})
	rewritten, tokens := RewriteParams(sql)
	assert.Contains(t, rewritten, "where name = ?")
	require.Len(t, tokens, 1)
	assert.Equal(t, "pattern", tokens[0].Property)
}

func TestRewriteParamsOptionGrammar(t *testing.T) {
	rewritten, tokens := RewriteParams("select * from t where id = #{id,jdbcType=BIGINT,javaType=int64}")
	assert.Equal(t, "select * from t where id = ?", rewritten)
	require.Len(t, tokens, 1)
	assert.Equal(t, "BIGINT", tokens[0].JdbcType)
	assert.Equal(t, "int64", tokens[0].JavaType)
}

func TestRewriteParamsShorthand(t *testing.T) {
	_, tokens := RewriteParams("#{id:BIGINT}")
	require.Len(t, tokens, 1)
	assert.Equal(t, "id", tokens[0].Property)
	assert.Equal(t, "BIGINT", tokens[0].JdbcType)
}

func TestExpressionBooleanCombinators(t *testing.T) {
	expr, err := ParseExpression("a != null && (b > 1 || c == 'x')")
	require.NoError(t, err)
	ctx := NewDynamicContext(map[string]any{"a": 1, "b": int64(0), "c": "x"})
	defer ctx.Release()
	ok, err := expr.Eval(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpressionCollectionSize(t *testing.T) {
	expr, err := ParseExpression("ids.size() > 0")
	require.NoError(t, err)
	ctx := NewDynamicContext(map[string]any{"ids": []int{1, 2}})
	defer ctx.Release()
	ok, err := expr.Eval(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
