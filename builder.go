// FILE: lixenwraith/logpipe/builder.go
package logpipe

import (
	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

// Builder provides a fluent API for engine configurations.
// The first error is kept and returned by Build.
type Builder struct {
	cfg  *Config
	opts []Option
	err  error
}

// NewBuilder creates a builder with default values and no writers
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// FromConfig starts a builder from a copy of cfg
func FromConfig(cfg *Config) *Builder {
	return &Builder{cfg: cfg.Clone()}
}

// Build creates and initializes an Engine
func (b *Builder) Build() (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}
	e := NewEngine(b.cfg, b.opts...)
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}

// Level sets the global minimum level by name
func (b *Builder) Level(level string) *Builder {
	if b.err != nil {
		return b
	}
	if _, err := entry.ParseLevel(level); err != nil {
		b.err = fmtErrorf("invalid level '%s': %w", level, err)
		return b
	}
	b.cfg.Level = level
	return b
}

// WritingThread sets the default mode of writers without a writingthread key
func (b *Builder) WritingThread(enable bool) *Builder {
	b.cfg.WritingThread = enable
	return b
}

// CoalesceMs sets the idle wait of the writing thread
func (b *Builder) CoalesceMs(ms int64) *Builder {
	b.cfg.CoalesceMs = ms
	return b
}

// ShutdownTimeoutMs sets the default wait for the final drain
func (b *Builder) ShutdownTimeoutMs(ms int64) *Builder {
	b.cfg.ShutdownTimeoutMs = ms
	return b
}

// ShareRendering toggles render sharing between writers with identical formats
func (b *Builder) ShareRendering(enable bool) *Builder {
	b.cfg.ShareRendering = enable
	return b
}

// Timezone sets the IANA zone used by date tokens
func (b *Builder) Timezone(tz string) *Builder {
	b.cfg.Timezone = tz
	return b
}

// InternalErrorsToStderr toggles internal diagnostics
func (b *Builder) InternalErrorsToStderr(enable bool) *Builder {
	b.cfg.InternalErrorsToStderr = enable
	return b
}

// HeartbeatIntervalS enables heartbeat entries every interval seconds
func (b *Builder) HeartbeatIntervalS(interval int64) *Builder {
	b.cfg.HeartbeatIntervalS = interval
	return b
}

// Writer adds or replaces the writer called name
func (b *Builder) Writer(name, writerType string, p props.Map) *Builder {
	b.cfg.Writers[name] = WriterConfig{Type: writerType, Props: p.Clone()}
	return b
}

// Override applies "key=value" overrides, see Config.ApplyOverride
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.cfg.ApplyOverride(overrides...); err != nil {
		b.err = err
	}
	return b
}

// Options adds engine options passed to NewEngine
func (b *Builder) Options(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Example usage:
//
//	engine, err := logpipe.NewBuilder().
//		Level("debug").
//		WritingThread(true).
//		Writer("app", "rolling file", props.Map{
//			"file":     "/var/log/app/app_{count}.log",
//			"policies": "size: 10mb, daily",
//			"convert":  "gzip",
//		}).
//		Writer("console", "console", props.Map{"level": "warn"}).
//		Build()
//	if err == nil {
//		defer engine.Shutdown(0)
//		engine.Logger().Info("started on port {}", 8080)
//	}
