// FILE: lixenwraith/logpipe/config.go
package logpipe

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lixenwraith/config"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

// Config holds the engine configuration and the writer tables
type Config struct {
	// Global minimum level, entries below are never constructed
	Level string `toml:"level"`

	// Writing thread
	WritingThread     bool  `toml:"writing_thread"`      // default mode of writers without a writingthread key
	CoalesceMs        int64 `toml:"coalesce_ms"`         // idle wait between drains
	ShutdownTimeoutMs int64 `toml:"shutdown_timeout_ms"` // wait for the final drain

	// Rendering
	ShareRendering bool   `toml:"share_rendering"` // writers with identical formats render once per entry
	Timezone       string `toml:"timezone"`        // IANA name for date tokens, empty for local time

	// Internal error handling
	InternalErrorsToStderr bool `toml:"internal_errors_to_stderr"`

	// Heartbeat entries with engine statistics, 0 disables
	HeartbeatIntervalS int64 `toml:"heartbeat_interval_s"`

	// Writers by configuration name, loaded from [writer.<name>] tables
	Writers map[string]WriterConfig `toml:"-"`
}

// WriterConfig selects a writer type and its flat properties
type WriterConfig struct {
	Type  string
	Props props.Map
}

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	Level: "trace",

	WritingThread:     false,
	CoalesceMs:        10,
	ShutdownTimeoutMs: 2000,

	ShareRendering: true,
	Timezone:       "",

	InternalErrorsToStderr: true,

	HeartbeatIntervalS: 0,
}

// DefaultConfig returns a copy of the default configuration without writers
func DefaultConfig() *Config {
	copiedConfig := defaultConfig
	copiedConfig.Writers = make(map[string]WriterConfig)
	return &copiedConfig
}

// NewConfigFromFile loads the [logpipe] section and the [writer.<name>] tables
// of a TOML file and returns a validated Config. A missing file yields defaults.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()
	if err := loader.RegisterStruct("logpipe.", *cfg); err != nil {
		return nil, fmtErrorf("failed to register config struct: %w", err)
	}
	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmtErrorf("failed to load config from %s: %w", path, err)
	}
	if err := extractConfig(loader, "logpipe.", cfg); err != nil {
		return nil, fmtErrorf("failed to extract config values: %w", err)
	}

	writers, err := loadWriterTables(path)
	if err != nil {
		return nil, err
	}
	cfg.Writers = writers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies overrides
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, fmtErrorf("failed to apply overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadWriterTables decodes [writer.<name>] tables into flat string maps
func loadWriterTables(path string) (map[string]WriterConfig, error) {
	writers := make(map[string]WriterConfig)

	var file struct {
		Writer map[string]map[string]any `toml:"writer"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return writers, nil
		}
		return nil, fmtErrorf("failed to decode writer tables in %s: %w", path, err)
	}

	for name, table := range file.Writer {
		wc := WriterConfig{Props: make(props.Map, len(table))}
		for key, value := range table {
			flattenValue(wc.Props, key, value)
		}
		wc.Type = wc.Props["type"]
		delete(wc.Props, "type")
		writers[name] = wc
	}
	return writers, nil
}

// flattenValue stores value under key, nested tables become dotted keys
// so that [writer.db.field] maps to field.<column>
func flattenValue(m props.Map, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, nested := range v {
			flattenValue(m, key+"."+k, nested)
		}
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		m[key] = strings.Join(parts, ", ")
	case time.Time:
		m[key] = v.Format(time.RFC3339Nano)
	default:
		m[key] = fmt.Sprint(v)
	}
}

// extractConfig extracts values from lixenwraith/config into our Config struct
func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" || tomlTag == "-" {
			continue
		}

		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue
		}
		if err := setFieldValue(v.Field(i), val); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

// applyOverrides applies a map of overrides to the Config struct
func applyOverrides(cfg *Config, overrides map[string]any) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	fieldMap := make(map[string]reflect.Value)
	for i := 0; i < t.NumField(); i++ {
		tomlTag := t.Field(i).Tag.Get("toml")
		if tomlTag != "" && tomlTag != "-" {
			fieldMap[tomlTag] = v.Field(i)
		}
	}

	for key, value := range overrides {
		fieldValue, exists := fieldMap[key]
		if !exists {
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// setFieldValue sets a reflect.Value with proper type conversion
func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(strVal)

	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}

	case reflect.Bool:
		boolVal, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(boolVal)

	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

// Validate checks engine values and that every writer names a type.
// Writer properties are validated when the engine constructs the writers.
func (c *Config) Validate() error {
	if _, err := entry.ParseLevel(c.Level); err != nil {
		return fmtErrorf("invalid level: '%s' (use trace, debug, info, warn, error or off)", c.Level)
	}

	if c.CoalesceMs <= 0 {
		return fmtErrorf("coalesce_ms must be positive: %d", c.CoalesceMs)
	}
	if c.ShutdownTimeoutMs <= 0 {
		return fmtErrorf("shutdown_timeout_ms must be positive: %d", c.ShutdownTimeoutMs)
	}

	if c.HeartbeatIntervalS < 0 {
		return fmtErrorf("heartbeat_interval_s cannot be negative: %d", c.HeartbeatIntervalS)
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmtErrorf("invalid timezone '%s': %w", c.Timezone, err)
		}
	}

	for _, name := range c.WriterNames() {
		if strings.TrimSpace(c.Writers[name].Type) == "" {
			return &props.ConfigError{Writer: name, Key: "type", Reason: "missing writer type"}
		}
	}
	return nil
}

// WriterNames returns the configured writer names in sorted order
func (c *Config) WriterNames() []string {
	names := make([]string, 0, len(c.Writers))
	for name := range c.Writers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	copiedConfig.Writers = make(map[string]WriterConfig, len(c.Writers))
	for name, wc := range c.Writers {
		copiedConfig.Writers[name] = WriterConfig{Type: wc.Type, Props: wc.Props.Clone()}
	}
	return &copiedConfig
}
