// Package config implements the Configuration Catalogue and Statement
// Compiler: the registry of MappedStatements, ResultMaps, cached SQL
// fragments, type handlers, and global settings, plus the markup-to-
// catalogue compilation pipeline.
//
// Grounded on the teacher's config/configuration.go (Configuration struct
// shape, the Settings-equivalent fields, MapperRegistry/TypeAliasRegistry)
// and mapper/xml_parser.go (the encoding/xml document shape). The teacher
// kept three divergent MappedStatement/ResultMap representations across
// config/session/mapper; this package is the single unified model.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// ExecutorType selects the Executor variant a session opens with.
type ExecutorType string

const (
	ExecutorSimple ExecutorType = "SIMPLE"
	ExecutorReuse  ExecutorType = "REUSE"
	ExecutorBatch  ExecutorType = "BATCH"
)

// LocalCacheScope controls how long the per-session local cache lives.
type LocalCacheScope string

const (
	LocalCacheSession   LocalCacheScope = "SESSION"
	LocalCacheStatement LocalCacheScope = "STATEMENT"
)

// AutoMappingBehavior controls how aggressively unmapped columns are
// auto-bound to properties.
type AutoMappingBehavior string

const (
	AutoMappingNone    AutoMappingBehavior = "NONE"
	AutoMappingPartial AutoMappingBehavior = "PARTIAL"
	AutoMappingFull    AutoMappingBehavior = "FULL"
)

// UnknownColumnBehavior controls the response when auto-mapping finds no
// matching property for a column.
type UnknownColumnBehavior string

const (
	UnknownColumnNone    UnknownColumnBehavior = "NONE"
	UnknownColumnWarning UnknownColumnBehavior = "WARNING"
	UnknownColumnFailing UnknownColumnBehavior = "FAILING"
)

// Settings mirrors the <configuration><settings> document from spec §6.
type Settings struct {
	CacheEnabled                   bool                  `mapstructure:"cacheEnabled"`
	LazyLoadingEnabled             bool                  `mapstructure:"lazyLoadingEnabled"`
	AggressiveLazyLoading          bool                  `mapstructure:"aggressiveLazyLoading"`
	UseGeneratedKeys               bool                  `mapstructure:"useGeneratedKeys"`
	DefaultExecutorType            ExecutorType          `mapstructure:"defaultExecutorType"`
	DefaultStatementTimeout        *time.Duration        `mapstructure:"-"`
	DefaultFetchSize               *int                  `mapstructure:"defaultFetchSize"`
	MapUnderscoreToCamelCase       bool                  `mapstructure:"mapUnderscoreToCamelCase"`
	SafeRowBoundsEnabled           bool                  `mapstructure:"safeRowBoundsEnabled"`
	LocalCacheScope                LocalCacheScope       `mapstructure:"localCacheScope"`
	JdbcTypeForNull                string                `mapstructure:"jdbcTypeForNull"`
	AutoMappingBehavior            AutoMappingBehavior   `mapstructure:"autoMappingBehavior"`
	AutoMappingUnknownColumnBehavior UnknownColumnBehavior `mapstructure:"autoMappingUnknownColumnBehavior"`
	CallSettersOnNulls             bool                  `mapstructure:"callSettersOnNulls"`
	ReturnInstanceForEmptyRow      bool                  `mapstructure:"returnInstanceForEmptyRow"`
	UseActualParamName             bool                  `mapstructure:"useActualParamName"`
}

// DefaultSettings matches the teacher's NewConfiguration defaults.
func DefaultSettings() Settings {
	return Settings{
		CacheEnabled:                     true,
		LazyLoadingEnabled:               false,
		AggressiveLazyLoading:            false,
		UseGeneratedKeys:                 false,
		DefaultExecutorType:              ExecutorSimple,
		MapUnderscoreToCamelCase:         false,
		SafeRowBoundsEnabled:             false,
		LocalCacheScope:                  LocalCacheSession,
		JdbcTypeForNull:                  "OTHER",
		AutoMappingBehavior:              AutoMappingPartial,
		AutoMappingUnknownColumnBehavior: UnknownColumnNone,
		CallSettersOnNulls:               false,
		ReturnInstanceForEmptyRow:        false,
		UseActualParamName:               true,
	}
}

// Environment is one <environment> block: a data source plus its dialect.
type Environment struct {
	ID     string
	Driver string // "mysql" | "postgres" | "sqlite"
	DSN    string
}

// LoadSettings reads a YAML/JSON settings document via viper into Settings,
// per the AMBIENT STACK configuration convention.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	settings := DefaultSettings()
	if err := v.ReadInConfig(); err != nil {
		return settings, err
	}
	if err := v.Unmarshal(&settings); err != nil {
		return settings, err
	}
	if v.IsSet("defaultStatementTimeout") {
		d := v.GetDuration("defaultStatementTimeout")
		settings.DefaultStatementTimeout = &d
	}
	return settings, nil
}

// WatchSettings re-reads Settings from path whenever it changes on disk,
// invoking onChange with the newly loaded Settings. It does not modify any
// Configuration itself; mapped statements and result maps are compiled
// once and stay immutable.
func WatchSettings(path string, onChange func(Settings)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(_ any) {
		settings := DefaultSettings()
		if err := v.Unmarshal(&settings); err == nil {
			onChange(settings)
		}
	})
	v.WatchConfig()
	return nil
}
