package config

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
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
	<sql id="cols">id, name</sql>
	<select id="FindByID" parameterType="int64" resultMap="widgetResult">
		SELECT <include refid="cols"/> FROM widgets WHERE id = #{id}
	</select>
	<insert id="Insert" parameterType="widget" useGeneratedKeys="true" keyProperty="ID">
		INSERT INTO widgets (name) VALUES (#{Name})
	</insert>
</mapper>`

func newWidgetConfiguration(t *testing.T) *Configuration {
	t.Helper()
	cfg := NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	cfg.RegisterTypeAlias("int64", reflect.TypeOf(int64(0)))
	require.NoError(t, cfg.LoadMapperXML([]byte(widgetMapperXML)))
	require.NoError(t, cfg.Finalize())
	return cfg
}

func TestLoadMapperXMLCompilesStatements(t *testing.T) {
	cfg := newWidgetConfiguration(t)

	ms, err := cfg.GetMappedStatement("widgets.FindByID")
	require.NoError(t, err)
	require.Equal(t, CommandSelect, ms.CommandType)
	require.Len(t, ms.ResultMaps, 1)
	require.Equal(t, reflect.TypeOf(widget{}), ms.ResultMaps[0].Type)

	boundSql, err := ms.SqlSource.GetBoundSql(int64(7))
	require.NoError(t, err)
	require.Contains(t, boundSql.SQL, "SELECT id, name FROM widgets WHERE id = ?")
}

func TestLoadMapperXMLWiresKeyGenerator(t *testing.T) {
	cfg := newWidgetConfiguration(t)

	ms, err := cfg.GetMappedStatement("widgets.Insert")
	require.NoError(t, err)
	require.NotNil(t, ms.KeyGenerator)
	require.Equal(t, []string{"ID"}, ms.KeyProperties)
}

func TestGetMappedStatementUnknownID(t *testing.T) {
	cfg := newWidgetConfiguration(t)
	_, err := cfg.GetMappedStatement("widgets.DoesNotExist")
	require.Error(t, err)
}

func TestAddMappedStatementRejectsDuplicates(t *testing.T) {
	cfg := newWidgetConfiguration(t)
	ms := &MappedStatement{ID: "widgets.FindByID", Namespace: "widgets", CommandType: CommandSelect}
	err := cfg.AddMappedStatement(ms)
	require.Error(t, err)
}

func TestResultMapExtendsMerge(t *testing.T) {
	cfg := NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<resultMap id="base" type="widget">
		<id property="ID" column="id"/>
	</resultMap>
	<resultMap id="full" type="widget" extends="base">
		<result property="Name" column="name"/>
	</resultMap>
</mapper>`
	require.NoError(t, cfg.LoadMapperXML([]byte(xmlDoc)))
	require.NoError(t, cfg.Finalize())

	full, ok := cfg.ResultMaps["widgets.full"]
	require.True(t, ok)
	require.Len(t, full.Mappings, 2)
}

func TestResultMapConstructorParsesIdArgAndArgInDocumentOrder(t *testing.T) {
	cfg := NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<resultMap id="ctor" type="widget">
		<constructor>
			<idArg column="id" name="ID"/>
			<arg column="name" name="Name"/>
		</constructor>
	</resultMap>
</mapper>`
	require.NoError(t, cfg.LoadMapperXML([]byte(xmlDoc)))
	require.NoError(t, cfg.Finalize())

	rm, ok := cfg.ResultMaps["widgets.ctor"]
	require.True(t, ok)
	require.Len(t, rm.Constructor, 2)
	require.Equal(t, "ID", rm.Constructor[0].Property)
	require.True(t, rm.Constructor[0].IsID)
	require.Equal(t, "Name", rm.Constructor[1].Property)
	require.False(t, rm.Constructor[1].IsID)

	ids := rm.IDMappings()
	require.Len(t, ids, 1)
	require.Equal(t, "ID", ids[0].Property)
}

func TestResultMapConstructorInheritedThroughExtends(t *testing.T) {
	cfg := NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<resultMap id="base" type="widget">
		<constructor>
			<idArg column="id" name="ID"/>
		</constructor>
	</resultMap>
	<resultMap id="full" type="widget" extends="base">
		<result property="Name" column="name"/>
	</resultMap>
</mapper>`
	require.NoError(t, cfg.LoadMapperXML([]byte(xmlDoc)))
	require.NoError(t, cfg.Finalize())

	full, ok := cfg.ResultMaps["widgets.full"]
	require.True(t, ok)
	require.Len(t, full.Constructor, 1)
	require.Equal(t, "ID", full.Constructor[0].Property)
}

func TestResultMapDiscriminatorMutualCycleFailsAtCompileTime(t *testing.T) {
	cfg := NewConfiguration()
	cfg.RegisterTypeAlias("widget", reflect.TypeOf(widget{}))
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="widgets">
	<resultMap id="a" type="widget">
		<discriminator column="kind">
			<case value="toB" resultMap="b"/>
		</discriminator>
	</resultMap>
	<resultMap id="b" type="widget">
		<discriminator column="kind">
			<case value="toA" resultMap="a"/>
		</discriminator>
	</resultMap>
</mapper>`
	require.NoError(t, cfg.LoadMapperXML([]byte(xmlDoc)))
	require.Error(t, cfg.Finalize())
}
