// FILE: lixenwraith/logpipe/writer/writer.go

// Package writer holds the sinks rendered log entries are emitted to, and the
// static registry that builds them from a flat property map.
package writer

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/internal/diag"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
	"github.com/lixenwraith/logpipe/sanitizer"
)

// ErrClosed is returned by writes to a closed writer. It is the raw layer's
// sentinel so that file based sinks and the rolling writer report the same error.
var ErrClosed = rawio.ErrClosed

// Newline terminates every entry of text based sinks
var Newline = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Writer is a configured sink. A writer owns every resource it opens and
// releases all of them in Close, even after failed writes.
type Writer interface {
	// RequiredValues returns the entry fields the writer reads
	RequiredValues() entry.Values
	Write(e *entry.Entry) error
	Flush() error
	Close() error
}

// Mode is the concurrency strategy of a writer, fixed at construction
type Mode uint8

const (
	// ModeSync writers may be called from any goroutine and serialize internally
	ModeSync Mode = iota
	// ModeAsync writers are only ever called from the writing thread
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

// Metrics are counters shared between writers and the engine
type Metrics struct {
	Rollovers  atomic.Uint64
	Lost       atomic.Uint64
	Reconnects atomic.Uint64
}

// Options carry construction context that is not part of the property map
type Options struct {
	Name    string // configuration name, used in errors and diagnostics
	Mode    Mode
	Diag    *diag.Reporter
	Metrics *Metrics

	// ShareRendering caches the text rendering on the entry so writers with an identical format render once
	ShareRendering bool

	Now      func() time.Time
	Location *time.Location
	Stdout   io.Writer
	Stderr   io.Writer
}

func (o Options) withDefaults() Options {
	if o.Diag == nil {
		o.Diag = diag.New(nil, true)
	}
	if o.Metrics == nil {
		o.Metrics = &Metrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// base holds the rendering and filtering shared by all sinks
type base struct {
	opts     Options
	format   *pattern.Pattern
	sanitize *sanitizer.Sanitizer
	minLevel entry.Level
	tag      string
	hasTag   bool
	strip    bool // exception=strip

	// Scratch buffers, used in ModeAsync only
	scratch []byte
	clean   []byte
}

// newBase reads format, sanitize, level, tag and exception
func newBase(p props.Map, opts Options, defaultFormat string) (base, error) {
	b := base{opts: opts, minLevel: entry.LevelTrace}

	var compileOpts []pattern.Option
	if opts.Location != nil {
		compileOpts = append(compileOpts, pattern.WithLocation(opts.Location))
	}
	format, err := pattern.Compile(p.String("format", defaultFormat), compileOpts...)
	if err != nil {
		return b, err
	}
	b.format = format

	policy, err := sanitizer.ParsePolicy(p.String("sanitize", ""))
	if err != nil {
		return b, props.Errorf("sanitize", "%v", err)
	}
	b.sanitize = sanitizer.New(policy)

	if v := p.String("level", ""); v != "" {
		lvl, err := entry.ParseLevel(v)
		if err != nil {
			return b, props.Errorf("level", "invalid level '%s'", v)
		}
		b.minLevel = lvl
	}

	b.tag, b.hasTag = p["tag"]
	b.tag = strings.TrimSpace(b.tag)

	switch ex := strings.ToLower(p.String("exception", "keep")); ex {
	case "keep", "":
	case "strip":
		b.strip = true
	default:
		return b, props.Errorf("exception", "invalid value '%s' (use keep or strip)", ex)
	}

	if opts.Mode == ModeAsync {
		b.scratch = make([]byte, 0, 1024)
	}
	return b, nil
}

// MinLevel returns the per-writer level
func (b *base) MinLevel() entry.Level {
	return b.minLevel
}

// Tag returns the tag filter and whether one is set
func (b *base) Tag() (string, bool) {
	return b.tag, b.hasTag
}

func (b *base) RequiredValues() entry.Values {
	v := b.format.RequiredValues() | entry.ValueLevel
	if b.hasTag {
		v |= entry.ValueTag
	}
	return v
}

// accepts applies the per-writer level and tag filters
func (b *base) accepts(e *entry.Entry) bool {
	if e.Level < b.minLevel {
		return false
	}
	if b.hasTag && e.Tag != b.tag {
		return false
	}
	return true
}

// appendEntry appends the rendered, sanitized text of e without newline
func (b *base) appendEntry(buf []byte, e *entry.Entry) []byte {
	if b.strip && e.Exception != nil {
		stripped := *e
		stripped.Exception = nil
		e = &stripped
	}

	if b.sanitize.Passthrough() {
		return b.renderText(buf, e)
	}
	// Render then sanitize into buf
	var raw []byte
	if b.opts.Mode == ModeAsync {
		b.clean = b.renderText(b.clean[:0], e)
		raw = b.clean
	} else {
		raw = b.renderText(nil, e)
	}
	return b.sanitize.Append(buf, raw)
}

func (b *base) renderText(buf []byte, e *entry.Entry) []byte {
	if b.opts.ShareRendering && !b.strip {
		text := e.Rendered(b.format.String(), func() string { return b.format.RenderString(e) })
		return append(buf, text...)
	}
	return b.format.Render(e, buf)
}

// withLine renders e followed by Newline and hands the bytes to fn. The slice
// is only valid during fn.
func (b *base) withLine(e *entry.Entry, fn func(line []byte) error) error {
	if b.opts.Mode == ModeAsync {
		b.scratch = b.appendEntry(b.scratch[:0], e)
		b.scratch = append(b.scratch, Newline...)
		return fn(b.scratch)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.B = b.appendEntry(bb.B, e)
	bb.B = append(bb.B, Newline...)
	return fn(bb.B)
}

// withText is withLine without the trailing newline
func (b *base) withText(e *entry.Entry, fn func(text []byte) error) error {
	if b.opts.Mode == ModeAsync {
		b.scratch = b.appendEntry(b.scratch[:0], e)
		return fn(b.scratch)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.B = b.appendEntry(bb.B, e)
	return fn(bb.B)
}

// rawStrategy reads append, buffered and charset into a raw strategy for the writer's mode
func rawStrategy(p props.Map, mode Mode, defaultAppend bool) (rawio.Strategy, error) {
	s := rawio.Strategy{Synchronized: mode == ModeSync}
	var err error
	if s.Append, err = p.Bool("append", defaultAppend); err != nil {
		return s, err
	}
	if s.Buffered, err = p.Bool("buffered", false); err != nil {
		return s, err
	}
	if s.Charset, err = rawio.ParseCharset(p.String("charset", "")); err != nil {
		return s, props.Errorf("charset", "%v", err)
	}
	return s, nil
}
