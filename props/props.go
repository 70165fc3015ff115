// FILE: lixenwraith/logpipe/props/props.go

// Package props holds the flat string-keyed configuration map every writer is
// built from, with typed getters that fail with a descriptive ConfigError.
package props

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Map is the per-writer configuration
type Map map[string]string

// ConfigError reports a missing or invalid configuration property.
// It is only ever returned at construction time.
type ConfigError struct {
	Writer string
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("logpipe: configuration error")
	if e.Writer != "" {
		sb.WriteString(" in writer '")
		sb.WriteString(e.Writer)
		sb.WriteString("'")
	}
	if e.Key != "" {
		sb.WriteString(" for property '")
		sb.WriteString(e.Key)
		sb.WriteString("'")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}

// Errorf builds a ConfigError for key
func Errorf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// WithWriter stamps the writer name onto err if it is a ConfigError
func WithWriter(err error, writer string) error {
	if ce, ok := err.(*ConfigError); ok && ce.Writer == "" {
		copied := *ce
		copied.Writer = writer
		return &copied
	}
	return err
}

// Has reports whether key is set
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the trimmed value for key or def
func (m Map) String(key, def string) string {
	if v, ok := m[key]; ok {
		return strings.TrimSpace(v)
	}
	return def
}

// Required returns the value for key or a ConfigError naming it
func (m Map) Required(key string) (string, error) {
	v := strings.TrimSpace(m[key])
	if v == "" {
		return "", Errorf(key, "missing required property '%s'", key)
	}
	return v, nil
}

// Bool parses key as a boolean
func (m Map) Bool(key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def, Errorf(key, "invalid boolean value '%s'", v)
	}
	return b, nil
}

// Int parses key as an integer
func (m Map) Int(key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, Errorf(key, "invalid integer value '%s'", v)
	}
	return i, nil
}

// Duration parses key with time.ParseDuration, plain integers are milliseconds
func (m Map) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := m[key]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, Errorf(key, "invalid duration '%s'", v)
	}
	return d, nil
}

// Size parses key with ParseSize
func (m Map) Size(key string, def int64) (int64, error) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := ParseSize(v)
	if err != nil {
		return def, Errorf(key, "%v", err)
	}
	return n, nil
}

// Sub returns all keys starting with prefix, with the prefix removed, in sorted key order
func (m Map) Sub(prefix string) []KV {
	var out []KV
	for k, v := range m {
		if strings.HasPrefix(k, prefix) && len(k) > len(prefix) {
			out = append(out, KV{Key: k[len(prefix):], Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KV is one entry returned by Sub
type KV struct {
	Key   string
	Value string
}

// Clone returns a shallow copy
func (m Map) Clone() Map {
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// ParseSize accepts plain byte counts and kb/mb/gb suffixes (1024 based), case and space insensitive
func ParseSize(s string) (int64, error) {
	v := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	mult := int64(1)
	for _, suffix := range []struct {
		s string
		m int64
	}{{"gb", 1 << 30}, {"mb", 1 << 20}, {"kb", 1 << 10}, {"b", 1}} {
		if strings.HasSuffix(v, suffix.s) {
			v = strings.TrimSuffix(v, suffix.s)
			mult = suffix.m
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size '%s' (use e.g. 512, 64kb, 10mb, 1gb)", s)
	}
	return n * mult, nil
}
