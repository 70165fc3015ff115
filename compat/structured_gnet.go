// FILE: lixenwraith/logpipe/compat/structured_gnet.go
package compat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
)

// keyValuePattern detects structured verbs like "key=%v" or "key: %v"
var keyValuePattern = regexp.MustCompile(`(\w+)\s*[:=]\s*%[vsdqxXeEfFgGpbcU]`)

// parseFormat extracts "key=%v" pairs of a printf-style format into context pairs.
// The message is the formatted text with the extracted pairs removed. When the
// format cannot be split, the whole formatted text is the message.
func parseFormat(format string, args []any) (string, []entry.KV) {
	matches := keyValuePattern.FindAllStringSubmatchIndex(format, -1)
	if len(matches) == 0 || len(matches) > len(args) || strings.Contains(format, "%%") {
		return fmt.Sprintf(format, args...), nil
	}

	// Every verb before a match consumes an argument, only formats whose verbs are all
	// key-value verbs map arguments to keys reliably
	if strings.Count(format, "%") != len(matches) {
		return fmt.Sprintf(format, args...), nil
	}

	kv := make([]entry.KV, 0, len(matches))
	var msg strings.Builder
	lastEnd := 0
	for i, match := range matches {
		msg.WriteString(format[lastEnd:match[0]])
		kv = append(kv, entry.KV{Key: format[match[2]:match[3]], Value: pattern.FormatArg(args[i])})
		lastEnd = match[1]
	}
	msg.WriteString(format[lastEnd:])

	// Surplus arguments follow fmt's EXTRA convention
	if extra := args[len(matches):]; len(extra) > 0 {
		msg.WriteString(fmt.Sprint(extra...))
	}
	return strings.Join(strings.Fields(msg.String()), " "), kv
}

// StructuredGnetAdapter is a gnet adapter that moves "key=%v" pairs into entry context
type StructuredGnetAdapter struct {
	*GnetAdapter
}

// NewStructuredGnetAdapter creates a gnet adapter with structured field extraction
func NewStructuredGnetAdapter(engine *logpipe.Engine, opts ...GnetOption) *StructuredGnetAdapter {
	return &StructuredGnetAdapter{GnetAdapter: NewGnetAdapter(engine, opts...)}
}

func (a *StructuredGnetAdapter) logf(level entry.Level, format string, args []any) {
	if !a.engine.Enabled(level, a.tag) {
		return
	}
	msg, kv := parseFormat(format, args)
	a.engine.LogDepth(2, level, a.tag, nil, kv, verbatim, msg)
}

// Debugf logs with structured field extraction
func (a *StructuredGnetAdapter) Debugf(format string, args ...any) {
	a.logf(entry.LevelDebug, format, args)
}

// Infof logs with structured field extraction
func (a *StructuredGnetAdapter) Infof(format string, args ...any) {
	a.logf(entry.LevelInfo, format, args)
}

// Warnf logs with structured field extraction
func (a *StructuredGnetAdapter) Warnf(format string, args ...any) {
	a.logf(entry.LevelWarn, format, args)
}

// Errorf logs with structured field extraction
func (a *StructuredGnetAdapter) Errorf(format string, args ...any) {
	a.logf(entry.LevelError, format, args)
}
