// FILE: lixenwraith/logpipe/compat/gnet.go
package compat

import (
	"fmt"
	"os"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/entry"
)

// GnetTag is the default tag of entries from gnet
const GnetTag = "gnet"

// verbatim renders a preformatted message without placeholder processing
const verbatim = "{}"

var _ logging.Logger = (*GnetAdapter)(nil)

// GnetAdapter routes gnet's logging.Logger calls into an Engine
type GnetAdapter struct {
	engine       *logpipe.Engine
	tag          string
	fatalHandler func(msg string) // Customizable fatal behavior
}

// NewGnetAdapter creates a new gnet-compatible logger adapter
func NewGnetAdapter(engine *logpipe.Engine, opts ...GnetOption) *GnetAdapter {
	adapter := &GnetAdapter{
		engine: engine,
		tag:    GnetTag,
		fatalHandler: func(msg string) {
			os.Exit(1) // Default behavior matches gnet expectations
		},
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// GnetOption allows customizing adapter behavior
type GnetOption func(*GnetAdapter)

// WithFatalHandler sets a custom fatal handler
func WithFatalHandler(handler func(string)) GnetOption {
	return func(a *GnetAdapter) {
		a.fatalHandler = handler
	}
}

// WithGnetTag replaces the entry tag
func WithGnetTag(tag string) GnetOption {
	return func(a *GnetAdapter) {
		a.tag = tag
	}
}

func (a *GnetAdapter) logf(level entry.Level, format string, args []any) {
	if !a.engine.Enabled(level, a.tag) {
		return
	}
	a.engine.LogDepth(2, level, a.tag, nil, nil, verbatim, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level with printf-style formatting
func (a *GnetAdapter) Debugf(format string, args ...any) {
	a.logf(entry.LevelDebug, format, args)
}

// Infof logs at info level with printf-style formatting
func (a *GnetAdapter) Infof(format string, args ...any) {
	a.logf(entry.LevelInfo, format, args)
}

// Warnf logs at warn level with printf-style formatting
func (a *GnetAdapter) Warnf(format string, args ...any) {
	a.logf(entry.LevelWarn, format, args)
}

// Errorf logs at error level with printf-style formatting
func (a *GnetAdapter) Errorf(format string, args ...any) {
	a.logf(entry.LevelError, format, args)
}

// Fatalf logs at error level with fatal=true context and triggers the fatal handler
func (a *GnetAdapter) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.engine.LogDepth(1, entry.LevelError, a.tag, nil, []entry.KV{{Key: "fatal", Value: "true"}}, verbatim, msg)

	// Ensure the entry is written before exit
	_ = a.engine.Flush(100 * time.Millisecond)

	if a.fatalHandler != nil {
		a.fatalHandler(msg)
	}
}
