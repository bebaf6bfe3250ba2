package executor

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zsy619/gomybatis/config"
)

type widget struct {
	ID   int64
	Name string
}

const widgetMapperXML = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<cache/>
	<resultMap id="widgetResult" type="widget">
		<id property="ID" column="id"/>
		<result property="Name" column="name"/>
	</resultMap>
	<select id="FindByID" parameterType="int64" resultMap="widgetResult" useCache="true">
		SELECT id, name FROM widgets WHERE id = #{id}
	</select>
	<select id="FindByName" parameterType="string" resultMap="widgetResult">
		SELECT id, name FROM widgets WHERE name = #{name}
	</select>
	<insert id="Insert" parameterType="widget" useGeneratedKeys="true" keyProperty="ID">
		INSERT INTO widgets (name) VALUES (#{Name})
	</insert>
</mapper>`

func newTestConfiguration(t *testing.T) *config.Configuration {
	t.Helper()
	cfg := config.NewConfiguration()
	cfg.Environment = &config.Environment{ID: "test", Driver: "sqlite"}
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	cfg.RegisterTypeAlias("int64", reflect.TypeOf(int64(0)))
	cfg.RegisterTypeAlias("string", reflect.TypeOf(""))
	require.NoError(t, cfg.LoadMapperXML([]byte(widgetMapperXML)))
	require.NoError(t, cfg.Finalize())
	return cfg
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, name VARCHAR(100))`).Error)
	return db
}

func mustStatement(t *testing.T, cfg *config.Configuration, id string) *config.MappedStatement {
	t.Helper()
	ms, err := cfg.GetMappedStatement(id)
	require.NoError(t, err)
	return ms
}

func TestSimpleExecutorInsertAssignsGeneratedKey(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewSimpleExecutor(cfg, db, context.Background())

	ms := mustStatement(t, cfg, "widgets.Insert")
	w := &widget{Name: "bolt"}
	affected, err := exec.Update(ms, w)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NotZero(t, w.ID)
}

func TestSimpleExecutorQueryReturnsRows(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewSimpleExecutor(cfg, db, context.Background())

	_, err := exec.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "nut"})
	require.NoError(t, err)

	rows, err := exec.Query(mustStatement(t, cfg, "widgets.FindByName"), "nut")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "nut", rows[0]["name"])
}

func TestSimpleExecutorQueryWithBoundsAppliesLimit(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewSimpleExecutor(cfg, db, context.Background())

	for _, name := range []string{"a", "a", "a"} {
		_, err := exec.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: name})
		require.NoError(t, err)
	}

	rows, err := exec.QueryWithBounds(mustStatement(t, cfg, "widgets.FindByName"), "a", RowBounds{Offset: 0, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestCreateCacheKeyDiffersByParameter(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewSimpleExecutor(cfg, db, context.Background())
	ms := mustStatement(t, cfg, "widgets.FindByID")

	boundA, err := ms.SqlSource.GetBoundSql(int64(1))
	require.NoError(t, err)
	boundB, err := ms.SqlSource.GetBoundSql(int64(2))
	require.NoError(t, err)

	keyA := exec.CreateCacheKey(ms, int64(1), NoRowBounds, boundA)
	keyB := exec.CreateCacheKey(ms, int64(2), NoRowBounds, boundB)
	require.False(t, keyA.Equal(keyB))

	keyA2 := exec.CreateCacheKey(ms, int64(1), NoRowBounds, boundA)
	require.True(t, keyA.Equal(keyA2))
}

func TestBatchExecutorQueuesUntilFlush(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewBatchExecutor(cfg, db, context.Background())

	affected, err := exec.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "queued"})
	require.NoError(t, err)
	require.Equal(t, int64(0), affected)

	rows, err := exec.Query(mustStatement(t, cfg, "widgets.FindByName"), "queued")
	require.NoError(t, err)
	require.Len(t, rows, 1, "querying should flush pending writes first")
}

func TestBatchExecutorRollbackDiscardsPending(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewBatchExecutor(cfg, db, context.Background())

	_, err := exec.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "discarded"})
	require.NoError(t, err)
	require.NoError(t, exec.Rollback())
	require.NoError(t, exec.FlushStatements())

	rows, err := exec.Query(mustStatement(t, cfg, "widgets.FindByName"), "discarded")
	require.NoError(t, err)
	require.Len(t, rows, 0)
}

func TestReuseExecutorCachesStaticBoundSql(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	exec := NewReuseExecutor(cfg, db, context.Background())

	_, err := exec.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "reused"})
	require.NoError(t, err)

	rows, err := exec.Query(mustStatement(t, cfg, "widgets.FindByName"), "reused")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows2, err := exec.Query(mustStatement(t, cfg, "widgets.FindByName"), "reused")
	require.NoError(t, err)
	require.Len(t, rows2, 1)
}

func TestCachingExecutorServesRepeatedQueryFromOverlay(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	inner := NewSimpleExecutor(cfg, db, context.Background())
	exec := NewCachingExecutor(inner)

	_, err := inner.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "cached"})
	require.NoError(t, err)

	ms := mustStatement(t, cfg, "widgets.FindByID")
	first, err := exec.Query(ms, int64(1))
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, db.Exec("DELETE FROM widgets WHERE id = 1").Error)

	second, err := exec.Query(ms, int64(1))
	require.NoError(t, err)
	require.Equal(t, first, second, "second call should be served from the cache overlay, not see the delete")
}

func TestCachingExecutorCommitMakesOverlayVisibleAcrossSessions(t *testing.T) {
	cfg := newTestConfiguration(t)
	db := newTestDB(t)
	inner := NewSimpleExecutor(cfg, db, context.Background())
	exec := NewCachingExecutor(inner)

	_, err := inner.Update(mustStatement(t, cfg, "widgets.Insert"), &widget{Name: "shared"})
	require.NoError(t, err)

	ms := mustStatement(t, cfg, "widgets.FindByID")
	_, err = exec.Query(ms, int64(1))
	require.NoError(t, err)
	require.NoError(t, exec.Commit())
}
