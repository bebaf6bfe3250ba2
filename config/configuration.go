package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/zsy619/gomybatis/cache"
	"github.com/zsy619/gomybatis/errs"
	"github.com/zsy619/gomybatis/internal/logging"
	"github.com/zsy619/gomybatis/keygen"
	"github.com/zsy619/gomybatis/typehandler"
)

var log = logging.Get("config")

// Configuration is the Configuration Catalogue: the compiled, in-memory
// registry of every MappedStatement, ResultMap, cache, and type alias
// loaded from mapper documents, plus the global Settings and Environment.
//
// Grounded on the teacher's config.Configuration (config/configuration.go)
// — same role and roughly the same registries — rebuilt around the single
// unified MappedStatement/ResultMap model instead of the teacher's three
// divergent copies.
type Configuration struct {
	mu sync.RWMutex

	Settings    Settings
	Environment *Environment

	TypeHandlers *typehandler.Registry
	TypeAliases  map[string]reflect.Type

	MappedStatements map[string]*MappedStatement
	ResultMaps       map[string]*ResultMap
	Caches           map[string]cache.Cache // namespace -> second-level cache

	sqlFragments map[string]map[string]string // namespace -> fragment id -> raw inner xml
	cacheRefs    map[string]string             // namespace -> referenced namespace

	incompleteResultMaps []*resultMapResolver
	incompleteCacheRefs  []string // namespaces awaiting cache-ref resolution
}

// NewConfiguration builds an empty catalogue with built-in type handlers
// registered and CacheEnabled-by-default Settings, mirroring the
// teacher's NewConfiguration.
func NewConfiguration() *Configuration {
	return &Configuration{
		Settings:         DefaultSettings(),
		TypeHandlers:     typehandler.NewRegistry(),
		TypeAliases:      make(map[string]reflect.Type),
		MappedStatements: make(map[string]*MappedStatement),
		ResultMaps:       make(map[string]*ResultMap),
		Caches:           make(map[string]cache.Cache),
		sqlFragments:     make(map[string]map[string]string),
		cacheRefs:        make(map[string]string),
	}
}

// RegisterTypeAlias associates name (used in javaType/resultType/ofType
// attributes) with a concrete Go type, replacing the teacher's
// TypeAliasRegistry (which only ever held a handful of builtin Go names).
func (c *Configuration) RegisterTypeAlias(name string, t reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TypeAliases[name] = t
}

func (c *Configuration) resolveAlias(name string) (reflect.Type, bool) {
	if name == "" {
		return nil, false
	}
	t, ok := c.TypeAliases[name]
	return t, ok
}

// AddMappedStatement registers ms, keyed by "namespace.id". Re-registering
// the same ID is rejected, matching MyBatis' "duplicate statement"
// behaviour.
func (c *Configuration) AddMappedStatement(ms *MappedStatement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.MappedStatements[ms.ID]; exists {
		return errs.NewConfigurationError("duplicate mapped statement id: "+ms.ID, nil)
	}
	c.MappedStatements[ms.ID] = ms
	return nil
}

// GetMappedStatement looks up a fully-compiled statement by "namespace.id".
//
// The teacher's GetMappedStatement (config/configuration.go) ignored its id
// argument entirely and always returned a hardcoded `SELECT 1` statement;
// this is the real lookup.
func (c *Configuration) GetMappedStatement(id string) (*MappedStatement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ms, ok := c.MappedStatements[id]
	if !ok {
		return nil, errs.NewConfigurationError("unknown mapped statement: "+id, nil)
	}
	return ms, nil
}

// LoadMapperFile parses and compiles one mapper XML document from disk.
func (c *Configuration) LoadMapperFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.NewConfigurationError("reading mapper file "+path, err)
	}
	return c.LoadMapperXML(data)
}

// LoadMapperXML parses and compiles one mapper XML document's bytes: it
// registers the namespace's <cache>/<cache-ref>, <sql> fragments,
// <resultMap>s, and every <select>/<insert>/<update>/<delete> statement,
// splicing <include> references and extracting <selectKey> as a peer
// KeyGenerator. Unresolved <resultMap extends>, <discriminator> case, or
// nested resultMap references are queued and retried by Finalize.
func (c *Configuration) LoadMapperXML(data []byte) error {
	var doc mapperDocumentXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return errs.NewConfigurationError("malformed mapper document: "+err.Error(), err)
	}
	ns := doc.Namespace
	if ns == "" {
		return errs.NewConfigurationError("mapper document missing namespace", nil)
	}

	c.mu.Lock()
	if doc.Cache != nil {
		builder := cache.NewCacheBuilder(ns)
		switch doc.Cache.Eviction {
		case "FIFO":
			builder = builder.Eviction(cache.EvictionFIFO)
		default:
			builder = builder.Eviction(cache.EvictionLRU)
		}
		if n := parseIntAttr(doc.Cache.Size); n != nil {
			builder = builder.Size(*n)
		}
		if parseBoolAttr(doc.Cache.Blocking, false) {
			builder = builder.Blocking(0)
		}
		c.Caches[ns] = builder.Logging().Build()
	}
	if doc.CacheRef != nil {
		c.cacheRefs[ns] = doc.CacheRef.Namespace
		c.incompleteCacheRefs = append(c.incompleteCacheRefs, ns)
	}

	frags := c.sqlFragments[ns]
	if frags == nil {
		frags = make(map[string]string)
		c.sqlFragments[ns] = frags
	}
	for _, s := range doc.SQLs {
		frags[s.ID] = s.Content
	}
	c.mu.Unlock()

	// ResultMaps (before statements, since statements may reference them).
	for _, rmx := range doc.ResultMaps {
		rm, err := c.buildResultMap(ns, rmx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.ResultMaps[rm.ID] = rm
		c.incompleteResultMaps = append(c.incompleteResultMaps, &resultMapResolver{rm: rm})
		c.mu.Unlock()
	}

	for _, sx := range doc.Selects {
		if err := c.compileStatement(ns, "select", sx); err != nil {
			return err
		}
	}
	for _, sx := range doc.Inserts {
		if err := c.compileStatement(ns, "insert", sx); err != nil {
			return err
		}
	}
	for _, sx := range doc.Updates {
		if err := c.compileStatement(ns, "update", sx); err != nil {
			return err
		}
	}
	for _, sx := range doc.Deletes {
		if err := c.compileStatement(ns, "delete", sx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Configuration) buildResultMap(ns string, rmx resultMapXML) (*ResultMap, error) {
	id := qualify(ns, rmx.ID)
	t, _ := c.resolveAlias(rmx.Type)
	rm := &ResultMap{ID: id, Type: t, Extends: qualifyIfLocal(ns, rmx.Extends)}
	if rmx.AutoMapping != "" {
		b := parseBoolAttr(rmx.AutoMapping, true)
		rm.AutoMapping = &b
	}
	if rmx.Constructor != nil {
		for _, a := range rmx.Constructor.Args {
			rm.Constructor = append(rm.Constructor, ResultMapping{
				Property: a.Name, Column: a.Column, JavaType: a.JavaType, JdbcType: a.JdbcType, TypeHandler: a.TypeHandler,
				IsID:              a.IsID(),
				NestedResultMapID: qualifyIfLocal(ns, a.ResultMap), NestedSelectID: qualifyIfLocal(ns, a.Select),
			})
		}
	}
	for _, f := range rmx.IDs {
		rm.Mappings = append(rm.Mappings, ResultMapping{Property: f.Property, Column: f.Column, JavaType: f.JavaType, JdbcType: f.JdbcType, TypeHandler: f.TypeHandler, IsID: true})
	}
	for _, f := range rmx.Results {
		rm.Mappings = append(rm.Mappings, ResultMapping{Property: f.Property, Column: f.Column, JavaType: f.JavaType, JdbcType: f.JdbcType, TypeHandler: f.TypeHandler})
	}
	for _, a := range rmx.Associations {
		rm.Mappings = append(rm.Mappings, ResultMapping{
			Property: a.Property, Column: a.Column, JavaType: a.JavaType,
			NestedResultMapID: qualifyIfLocal(ns, a.ResultMap), NestedSelectID: qualifyIfLocal(ns, a.Select),
			ColumnPrefix: a.ColumnPrefix, ManyToOne: true, FetchLazily: a.FetchType == "lazy",
		})
	}
	for _, col := range rmx.Collections {
		rm.Mappings = append(rm.Mappings, ResultMapping{
			Property: col.Property, Column: col.Column, JavaType: col.OfType,
			NestedResultMapID: qualifyIfLocal(ns, col.ResultMap), NestedSelectID: qualifyIfLocal(ns, col.Select),
			ColumnPrefix: col.ColumnPrefix, OneToMany: true, FetchLazily: col.FetchType == "lazy",
		})
	}
	if rmx.Discriminator != nil {
		d := &Discriminator{Column: rmx.Discriminator.Column, JavaType: rmx.Discriminator.JavaType, CaseMap: make(map[string]string)}
		for _, cs := range rmx.Discriminator.Cases {
			d.CaseMap[cs.Value] = qualifyIfLocal(ns, cs.ResultMap)
		}
		rm.Discriminator = d
	}
	return rm, nil
}

func (c *Configuration) compileStatement(ns, tag string, sx statementXML) error {
	id := qualify(ns, sx.ID)
	content := sx.Content

	c.mu.RLock()
	frags := c.sqlFragments[ns]
	c.mu.RUnlock()
	spliced, err := spliceIncludes(content, frags, 0)
	if err != nil {
		return fmtMapperError(ns, sx.ID, err)
	}

	var keyGen KeyGenerator
	var keyProps, keyCols []string
	if tag == "insert" {
		body, sk, err := extractSelectKey(spliced)
		if err != nil {
			return fmtMapperError(ns, sx.ID, err)
		}
		spliced = body
		if sk != nil {
			peerID := id + "!selectKey"
			peerSrc, err := NewSqlSource(sk.Content)
			if err != nil {
				return fmtMapperError(ns, sx.ID, err)
			}
			peer := &MappedStatement{ID: peerID, Namespace: ns, CommandType: CommandSelect, SqlSource: peerSrc}
			if t, ok := c.resolveAlias(sk.ResultType); ok {
				peer.ResultType = t
			}
			c.mu.Lock()
			c.MappedStatements[peerID] = peer
			c.mu.Unlock()
			keyGen = keygen.NewSelectKeyGenerator(peerID, sk.KeyProperty, sk.Order == "AFTER")
			keyProps = splitCSV(sk.KeyProperty)
			keyCols = splitCSV(sk.KeyColumn)
		} else if parseBoolAttr(sx.UseGeneratedKeys, c.Settings.UseGeneratedKeys) {
			keyGen = keygen.NewJdbc3KeyGenerator()
			keyProps = splitCSV(sx.KeyProperty)
			keyCols = splitCSV(sx.KeyColumn)
		} else {
			keyGen = keygen.NoKeyGenerator{}
		}
	} else {
		keyGen = keygen.NoKeyGenerator{}
	}

	src, err := NewSqlSource(spliced)
	if err != nil {
		return fmtMapperError(ns, sx.ID, err)
	}

	ct := commandTypeFor(tag)
	ms := &MappedStatement{
		ID:                 id,
		Namespace:          ns,
		CommandType:        ct,
		Shape:              ShapePrepared,
		SqlSource:          src,
		FetchSize:          parseIntAttr(sx.FetchSize),
		Timeout:            parseDurationSecondsAttr(sx.Timeout),
		UseCache:           parseBoolAttr(sx.UseCache, DefaultCommandUseCache(ct)),
		FlushCacheRequired: parseBoolAttr(sx.FlushCache, DefaultFlushCache(ct)),
		KeyGenerator:       keyGen,
		KeyProperties:      keyProps,
		KeyColumns:         keyCols,
		DatabaseID:         sx.DatabaseID,
		Lang:               "XML",
	}
	if t, ok := c.resolveAlias(sx.ParameterType); ok {
		ms.ParameterType = t
	}
	if sx.ResultMap != "" {
		// Resolution of the pointer happens lazily in Finalize since the
		// resultMap may be declared later in the same document, or in a
		// document not yet loaded.
		c.mu.Lock()
		c.incompleteResultMaps = append(c.incompleteResultMaps, &resultMapResolver{rm: &ResultMap{ID: "__stmt_link__" + id, Extends: qualifyIfLocal(ns, sx.ResultMap)}})
		c.mu.Unlock()
		ms.ResultMaps = []*ResultMap{{ID: qualifyIfLocal(ns, sx.ResultMap)}} // placeholder, replaced in Finalize
	} else if t, ok := c.resolveAlias(sx.ResultType); ok {
		ms.ResultType = t
	}

	c.mu.Lock()
	if existing, ok := c.Caches[ns]; ok {
		ms.Cache = existing
	}
	c.mu.Unlock()

	return c.AddMappedStatement(ms)
}

// Finalize runs the end-of-compilation IncompleteElement retry sweep: it
// repeatedly attempts to resolve every queued ResultMap.Extends chain,
// Discriminator case, nested-resultMap reference, statement->resultMap
// link, and cache-ref, until a full pass makes no further progress. Any
// item still unresolved is reported, per spec §9's {Built,
// IncompleteAwaitingRef, Failed} state machine.
func (c *Configuration) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ns := range c.incompleteCacheRefs {
		target := c.cacheRefs[ns]
		if shared, ok := c.Caches[target]; ok {
			c.Caches[ns] = shared
		}
	}

	pending := c.incompleteResultMaps
	for progress := true; progress && len(pending) > 0; {
		progress = false
		var stillPending []*resultMapResolver
		for _, r := range pending {
			if len(r.rm.ID) > len("__stmt_link__") && r.rm.ID[:len("__stmt_link__")] == "__stmt_link__" {
				stmtID := r.rm.ID[len("__stmt_link__"):]
				if target, ok := c.ResultMaps[r.rm.Extends]; ok {
					if ms, ok := c.MappedStatements[stmtID]; ok {
						ms.ResultMaps = []*ResultMap{target}
						progress = true
						continue
					}
				}
				stillPending = append(stillPending, r)
				continue
			}
			if err := r.resolve(c); err != nil {
				if _, ok := err.(*errs.IncompleteElement); ok {
					stillPending = append(stillPending, r)
					continue
				}
				return err
			}
			progress = true
		}
		pending = stillPending
	}
	if len(pending) > 0 {
		names := make([]string, 0, len(pending))
		for _, r := range pending {
			names = append(names, r.rm.ID)
		}
		log.WithField("unresolved", names).Warn("configuration finalize: elements remained incomplete")
		return errs.NewConfigurationError("unresolved after finalize: "+fmt.Sprint(names),
			errs.NewIncompleteElement("resultMap", fmt.Sprint(names), "one or more elements never resolved"))
	}
	return nil
}

func qualify(ns, id string) string {
	if id == "" {
		return ns
	}
	return ns + "." + id
}

// qualifyIfLocal qualifies a bare (namespace-less) reference with ns,
// leaving already-qualified ("other.ns.id") references untouched —
// mirrors MyBatis' "applyCurrentNamespace" convenience.
func qualifyIfLocal(ns, ref string) string {
	if ref == "" {
		return ""
	}
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref
		}
	}
	return ns + "." + ref
}
