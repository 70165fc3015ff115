// FILE: lixenwraith/logpipe/facade.go
package logpipe

import (
	"github.com/lixenwraith/logpipe/entry"
)

// Logger is a lightweight handle bound to an Engine with a tag, a producer
// thread and context pairs. Derived loggers never modify their parent.
type Logger struct {
	engine  *Engine
	tag     string
	thread  *entry.Thread
	context []entry.KV
}

// Logger returns an untagged logger on the engine's main producer
func (e *Engine) Logger() *Logger {
	return &Logger{engine: e, thread: e.mainThread}
}

// Tag returns a logger whose entries carry tag
func (l *Logger) Tag(tag string) *Logger {
	c := *l
	c.tag = tag
	return &c
}

// WithThread returns a logger for a new logical producer named name.
// Each call allocates a new thread id.
func (l *Logger) WithThread(name string) *Logger {
	c := *l
	c.thread = &entry.Thread{ID: nextThreadID(), Name: name}
	return &c
}

// With returns a logger that adds key=value to the context of every entry
func (l *Logger) With(key, value string) *Logger {
	c := *l
	c.context = make([]entry.KV, len(l.context), len(l.context)+1)
	copy(c.context, l.context)
	c.context = append(c.context, entry.KV{Key: key, Value: value})
	return &c
}

// Enabled reports whether level would be written for this logger's tag
func (l *Logger) Enabled(level entry.Level) bool {
	return l.engine.Enabled(level, l.tag)
}

func (l *Logger) Trace(msg string, args ...any) { l.emit(entry.LevelTrace, nil, msg, args) }

func (l *Logger) Debug(msg string, args ...any) { l.emit(entry.LevelDebug, nil, msg, args) }

func (l *Logger) Info(msg string, args ...any) { l.emit(entry.LevelInfo, nil, msg, args) }

func (l *Logger) Warn(msg string, args ...any) { l.emit(entry.LevelWarn, nil, msg, args) }

func (l *Logger) Error(msg string, args ...any) { l.emit(entry.LevelError, nil, msg, args) }

// Exception logs err at error level, msg may be empty
func (l *Logger) Exception(err error, msg string, args ...any) {
	l.emit(entry.LevelError, err, msg, args)
}

func (l *Logger) emit(level entry.Level, err error, msg string, args []any) {
	l.engine.log(1, l.thread, level, l.tag, err, l.context, msg, args)
}
