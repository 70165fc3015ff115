// FILE: lixenwraith/logpipe/compat/fiber.go
package compat

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
)

// FiberTag is the default tag of entries from Fiber
const FiberTag = "fiber"

// FiberAdapter implements the method set of Fiber's AllLogger (v2.54.x):
// plain, printf-style and key-value variants for every level, plus io.Writer
type FiberAdapter struct {
	engine       *logpipe.Engine
	tag          string
	fatalHandler func(msg string) // Customizable fatal behavior
	panicHandler func(msg string) // Customizable panic behavior
}

// NewFiberAdapter creates a new Fiber-compatible logger adapter
func NewFiberAdapter(engine *logpipe.Engine, opts ...FiberOption) *FiberAdapter {
	adapter := &FiberAdapter{
		engine: engine,
		tag:    FiberTag,
		fatalHandler: func(msg string) {
			os.Exit(1) // Default behavior
		},
		panicHandler: func(msg string) {
			panic(msg) // Default behavior
		},
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// FiberOption allows customizing adapter behavior
type FiberOption func(*FiberAdapter)

// WithFiberFatalHandler sets a custom fatal handler
func WithFiberFatalHandler(handler func(string)) FiberOption {
	return func(a *FiberAdapter) {
		a.fatalHandler = handler
	}
}

// WithFiberPanicHandler sets a custom panic handler
func WithFiberPanicHandler(handler func(string)) FiberOption {
	return func(a *FiberAdapter) {
		a.panicHandler = handler
	}
}

// WithFiberTag replaces the entry tag
func WithFiberTag(tag string) FiberOption {
	return func(a *FiberAdapter) {
		a.tag = tag
	}
}

// emit logs msg, depth 2 skips emit and the exported method
func (a *FiberAdapter) emit(level entry.Level, kv []entry.KV, msg string) {
	a.engine.LogDepth(2, level, a.tag, nil, kv, verbatim, msg)
}

// terminate flushes and runs handler, used by the fatal and panic variants
func (a *FiberAdapter) terminate(handler func(string), msg string) {
	_ = a.engine.Flush(100 * time.Millisecond)
	if handler != nil {
		handler(msg)
	}
}

// keyValues converts alternating keys and values into context pairs.
// A trailing key without value gets an empty value.
func keyValues(keysAndValues []any, extra ...entry.KV) []entry.KV {
	kv := make([]entry.KV, 0, len(keysAndValues)/2+1+len(extra))
	kv = append(kv, extra...)
	for i := 0; i < len(keysAndValues); i += 2 {
		pair := entry.KV{Key: pattern.FormatArg(keysAndValues[i])}
		if i+1 < len(keysAndValues) {
			pair.Value = pattern.FormatArg(keysAndValues[i+1])
		}
		kv = append(kv, pair)
	}
	return kv
}

var (
	fatalKV = entry.KV{Key: "fatal", Value: "true"}
	panicKV = entry.KV{Key: "panic", Value: "true"}
)

// --- Logger methods ---

// Trace logs at trace level
func (a *FiberAdapter) Trace(v ...any) { a.emit(entry.LevelTrace, nil, fmt.Sprint(v...)) }

// Debug logs at debug level
func (a *FiberAdapter) Debug(v ...any) { a.emit(entry.LevelDebug, nil, fmt.Sprint(v...)) }

// Info logs at info level
func (a *FiberAdapter) Info(v ...any) { a.emit(entry.LevelInfo, nil, fmt.Sprint(v...)) }

// Warn logs at warn level
func (a *FiberAdapter) Warn(v ...any) { a.emit(entry.LevelWarn, nil, fmt.Sprint(v...)) }

// Error logs at error level
func (a *FiberAdapter) Error(v ...any) { a.emit(entry.LevelError, nil, fmt.Sprint(v...)) }

// Fatal logs at error level and triggers the fatal handler
func (a *FiberAdapter) Fatal(v ...any) {
	msg := fmt.Sprint(v...)
	a.emit(entry.LevelError, []entry.KV{fatalKV}, msg)
	a.terminate(a.fatalHandler, msg)
}

// Panic logs at error level and triggers the panic handler
func (a *FiberAdapter) Panic(v ...any) {
	msg := fmt.Sprint(v...)
	a.emit(entry.LevelError, []entry.KV{panicKV}, msg)
	a.terminate(a.panicHandler, msg)
}

// Write makes FiberAdapter an io.Writer for output redirection, each call is one info entry
func (a *FiberAdapter) Write(p []byte) (n int, err error) {
	a.emit(entry.LevelInfo, nil, strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// --- FormatLogger methods ---

// Tracef logs at trace level with printf-style formatting
func (a *FiberAdapter) Tracef(format string, v ...any) {
	a.emit(entry.LevelTrace, nil, fmt.Sprintf(format, v...))
}

// Debugf logs at debug level with printf-style formatting
func (a *FiberAdapter) Debugf(format string, v ...any) {
	a.emit(entry.LevelDebug, nil, fmt.Sprintf(format, v...))
}

// Infof logs at info level with printf-style formatting
func (a *FiberAdapter) Infof(format string, v ...any) {
	a.emit(entry.LevelInfo, nil, fmt.Sprintf(format, v...))
}

// Warnf logs at warn level with printf-style formatting
func (a *FiberAdapter) Warnf(format string, v ...any) {
	a.emit(entry.LevelWarn, nil, fmt.Sprintf(format, v...))
}

// Errorf logs at error level with printf-style formatting
func (a *FiberAdapter) Errorf(format string, v ...any) {
	a.emit(entry.LevelError, nil, fmt.Sprintf(format, v...))
}

// Fatalf logs at error level and triggers the fatal handler
func (a *FiberAdapter) Fatalf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	a.emit(entry.LevelError, []entry.KV{fatalKV}, msg)
	a.terminate(a.fatalHandler, msg)
}

// Panicf logs at error level and triggers the panic handler
func (a *FiberAdapter) Panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	a.emit(entry.LevelError, []entry.KV{panicKV}, msg)
	a.terminate(a.panicHandler, msg)
}

// --- WithLogger methods ---

// Tracew logs at trace level with key-value context
func (a *FiberAdapter) Tracew(msg string, keysAndValues ...any) {
	a.emit(entry.LevelTrace, keyValues(keysAndValues), msg)
}

// Debugw logs at debug level with key-value context
func (a *FiberAdapter) Debugw(msg string, keysAndValues ...any) {
	a.emit(entry.LevelDebug, keyValues(keysAndValues), msg)
}

// Infow logs at info level with key-value context
func (a *FiberAdapter) Infow(msg string, keysAndValues ...any) {
	a.emit(entry.LevelInfo, keyValues(keysAndValues), msg)
}

// Warnw logs at warn level with key-value context
func (a *FiberAdapter) Warnw(msg string, keysAndValues ...any) {
	a.emit(entry.LevelWarn, keyValues(keysAndValues), msg)
}

// Errorw logs at error level with key-value context
func (a *FiberAdapter) Errorw(msg string, keysAndValues ...any) {
	a.emit(entry.LevelError, keyValues(keysAndValues), msg)
}

// Fatalw logs at error level with key-value context and triggers the fatal handler
func (a *FiberAdapter) Fatalw(msg string, keysAndValues ...any) {
	a.emit(entry.LevelError, keyValues(keysAndValues, fatalKV), msg)
	a.terminate(a.fatalHandler, msg)
}

// Panicw logs at error level with key-value context and triggers the panic handler
func (a *FiberAdapter) Panicw(msg string, keysAndValues ...any) {
	a.emit(entry.LevelError, keyValues(keysAndValues, panicKV), msg)
	a.terminate(a.panicHandler, msg)
}
