package session

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsy619/gomybatis/config"
)

type widget struct {
	ID   int64
	Name string
}

const widgetMapperXML = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<resultMap id="widgetResult" type="widget">
		<id property="ID" column="id"/>
		<result property="Name" column="name"/>
	</resultMap>
	<select id="FindByID" parameterType="int64" resultMap="widgetResult">
		SELECT id, name FROM widgets WHERE id = #{id}
	</select>
	<select id="FindAll" resultMap="widgetResult">
		SELECT id, name FROM widgets ORDER BY id
	</select>
	<insert id="Insert" parameterType="widget" useGeneratedKeys="true" keyProperty="ID">
		INSERT INTO widgets (name) VALUES (#{Name})
	</insert>
	<delete id="Delete" parameterType="int64">
		DELETE FROM widgets WHERE id = #{id}
	</delete>
</mapper>`

func newTestFactory(t *testing.T) *SqlSessionFactory {
	t.Helper()
	cfg := config.NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	cfg.RegisterTypeAlias("int64", reflect.TypeOf(int64(0)))
	cfg.Environment = &config.Environment{ID: "test", Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}
	require.NoError(t, cfg.LoadMapperXML([]byte(widgetMapperXML)))
	require.NoError(t, cfg.Finalize())

	factory, err := NewSqlSessionFactory(cfg)
	require.NoError(t, err)
	require.NoError(t, factory.Exec(context.Background(), `CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(100))`))
	return factory
}

func TestDefaultSqlSessionInsertAndSelectOne(t *testing.T) {
	factory := newTestFactory(t)
	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()

	w := &widget{Name: "bolt"}
	affected, err := sess.Insert("widgets.Insert", w)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NotZero(t, w.ID, "sqlite-generated id must be written back onto the inserted widget")

	row, err := sess.SelectOne("widgets.FindByID", w.ID)
	require.NoError(t, err)
	found, ok := row.(*widget)
	require.True(t, ok)
	require.Equal(t, "bolt", found.Name)
}

func TestDefaultSqlSessionSelectListAndDelete(t *testing.T) {
	factory := newTestFactory(t)
	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()

	_, err := sess.Insert("widgets.Insert", &widget{Name: "a"})
	require.NoError(t, err)
	_, err = sess.Insert("widgets.Insert", &widget{Name: "b"})
	require.NoError(t, err)

	rows, err := sess.SelectList("widgets.FindAll", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	affected, err := sess.Delete("widgets.Delete", int64(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	rows, err = sess.SelectList("widgets.FindAll", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDefaultSqlSessionSelectMapKeysByProperty(t *testing.T) {
	factory := newTestFactory(t)
	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()

	_, err := sess.Insert("widgets.Insert", &widget{Name: "keyed"})
	require.NoError(t, err)

	m, err := sess.SelectMap("widgets.FindAll", nil, "ID")
	require.NoError(t, err)
	require.Len(t, m, 1)
	_, ok := m["1"]
	require.True(t, ok)
}

func TestDefaultSqlSessionSelectOneMultipleRowsErrors(t *testing.T) {
	factory := newTestFactory(t)
	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()

	_, err := sess.Insert("widgets.Insert", &widget{Name: "x"})
	require.NoError(t, err)
	_, err = sess.Insert("widgets.Insert", &widget{Name: "y"})
	require.NoError(t, err)

	_, err = sess.SelectOne("widgets.FindAll", nil)
	require.Error(t, err)
}

func TestContextCarriesSession(t *testing.T) {
	factory := newTestFactory(t)
	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()

	ctx := NewContext(context.Background(), sess)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, sess, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}

func TestExecuteInTransactionCommitsOnSuccess(t *testing.T) {
	factory := newTestFactory(t)

	err := ExecuteInTransaction(context.Background(), factory, func(ctx context.Context) error {
		sess, ok := FromContext(ctx)
		require.True(t, ok)
		_, err := sess.Insert("widgets.Insert", &widget{Name: "committed"})
		return err
	})
	require.NoError(t, err)

	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()
	rows, err := sess.SelectList("widgets.FindAll", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExecuteInTransactionRollsBackOnError(t *testing.T) {
	factory := newTestFactory(t)
	boom := require.New(t)

	err := ExecuteInTransaction(context.Background(), factory, func(ctx context.Context) error {
		sess, ok := FromContext(ctx)
		boom.True(ok)
		_, err := sess.Insert("widgets.Insert", &widget{Name: "rolled-back"})
		boom.NoError(err)
		return context.Canceled
	})
	require.Error(t, err)

	sess := factory.OpenSession(context.Background(), true)
	defer sess.Close()
	rows, err := sess.SelectList("widgets.FindAll", nil)
	require.NoError(t, err)
	require.Len(t, rows, 0)
}

func TestSqlSessionTemplateOpensAutoCommitSession(t *testing.T) {
	factory := newTestFactory(t)
	tmpl := NewSqlSessionTemplate(factory)
	ctx := context.Background()

	id, err := tmpl.Insert(ctx, "widgets.Insert", &widget{Name: "templated"})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	row, err := tmpl.SelectOne(ctx, "widgets.FindByID", int64(1))
	require.NoError(t, err)
	w := row.(*widget)
	require.Equal(t, "templated", w.Name)
}
