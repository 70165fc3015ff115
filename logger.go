// FILE: lixenwraith/logpipe/logger.go
package logpipe

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/internal/diag"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/writer"
)

// ErrNotInitialized is returned by operations that need a running engine
var ErrNotInitialized = errors.New("logpipe: engine not initialized")

// Level aliases so callers of the root package need not import entry
type Level = entry.Level

const (
	LevelTrace = entry.LevelTrace
	LevelDebug = entry.LevelDebug
	LevelInfo  = entry.LevelInfo
	LevelWarn  = entry.LevelWarn
	LevelError = entry.LevelError
	LevelOff   = entry.LevelOff
)

// sink is a constructed writer with its engine-side routing data
type sink struct {
	name   string
	w      writer.Writer
	mode   writer.Mode
	filter writer.Filter // nil when the writer does not filter
}

// accepts mirrors the writer's own level and tag filter so rejected entries are never queued
func (s *sink) accepts(level entry.Level, tag string) bool {
	if s.filter == nil {
		return true
	}
	if level < s.filter.MinLevel() {
		return false
	}
	if want, ok := s.filter.Tag(); ok && want != tag {
		return false
	}
	return true
}

// Engine is the process-wide registry of writers. It owns the writers and
// the writing thread from Init until Shutdown.
type Engine struct {
	cfg   *Config
	level entry.Level

	diag    *diag.Reporter
	diagOut io.Writer
	metrics writer.Metrics
	stats   Stats

	initMu  sync.Mutex
	state   atomic.Uint32
	closeMu sync.RWMutex // held for writing while writers are closed

	sinks    []sink
	hasAsync bool
	required entry.Values
	thread   *WritingThread

	heartbeat      *heartbeat
	heartbeatEvery time.Duration

	observed   context.Context
	now        func() time.Time
	loc        *time.Location
	stdout     io.Writer
	stderr     io.Writer
	mainThread *entry.Thread
}

// Option customizes an Engine before Init
type Option func(*Engine)

// WithContext makes the writing thread stop, after a final drain, when ctx is done
func WithContext(ctx context.Context) Option {
	return func(e *Engine) { e.observed = ctx }
}

// WithClock replaces the time source of entries and rolling policies
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOutput redirects the console writer streams
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Engine) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithDiagWriter redirects internal diagnostics, os.Stderr by default
func WithDiagWriter(w io.Writer) Option {
	return func(e *Engine) { e.diagOut = w }
}

// NewEngine creates an engine for cfg. Writers are constructed by Init.
func NewEngine(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:        cfg.Clone(),
		observed:   context.Background(),
		now:        time.Now,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		mainThread: &entry.Thread{ID: 1, Name: "main"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init validates the configuration, constructs every writer in name order
// and starts the writing thread when at least one writer is asynchronous.
// Configuration errors are returned as *props.ConfigError. On failure every
// writer constructed so far is closed again.
func (e *Engine) Init() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.state.Load() != stateNew {
		return fmtErrorf("engine already initialized")
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	level, _ := entry.ParseLevel(e.cfg.Level)
	e.level = level
	e.loc = e.cfg.Location()
	e.diag = diag.New(e.diagOut, e.cfg.InternalErrorsToStderr)

	sinks, err := e.buildSinks()
	if err != nil {
		return err
	}
	e.sinks = sinks

	var required entry.Values
	for _, s := range sinks {
		required |= s.w.RequiredValues()
		if s.mode == writer.ModeAsync {
			e.hasAsync = true
		}
	}
	e.required = required

	if e.hasAsync {
		coalesce := time.Duration(e.cfg.CoalesceMs) * time.Millisecond
		e.thread = newWritingThread(e.observed, coalesce, e.diag, &e.stats)
		e.thread.start()
	}

	e.state.Store(stateRunning)

	if e.heartbeatEvery == 0 && e.cfg.HeartbeatIntervalS > 0 {
		e.heartbeatEvery = time.Duration(e.cfg.HeartbeatIntervalS) * time.Second
	}
	if e.heartbeatEvery > 0 {
		e.startHeartbeat(e.heartbeatEvery)
	}
	return nil
}

// buildSinks constructs the configured writers, closing the built ones on error
func (e *Engine) buildSinks() ([]sink, error) {
	names := e.cfg.WriterNames()
	sinks := make([]sink, 0, len(names))

	for _, name := range names {
		wc := e.cfg.Writers[name]

		async, err := wc.Props.Bool("writingthread", e.cfg.WritingThread)
		if err != nil {
			return nil, multierr.Append(props.WithWriter(err, name), closeSinks(sinks))
		}
		mode := writer.ModeSync
		if async {
			mode = writer.ModeAsync
		}

		w, err := writer.New(wc.Type, wc.Props, writer.Options{
			Name:           name,
			Mode:           mode,
			Diag:           e.diag,
			Metrics:        &e.metrics,
			ShareRendering: e.cfg.ShareRendering,
			Now:            e.now,
			Location:       e.loc,
			Stdout:         e.stdout,
			Stderr:         e.stderr,
		})
		if err != nil {
			return nil, multierr.Append(err, closeSinks(sinks))
		}

		s := sink{name: name, w: w, mode: mode}
		if f, ok := w.(writer.Filter); ok {
			s.filter = f
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// closeSinks flushes and closes sinks in order, combining all errors
func closeSinks(sinks []sink) error {
	var err error
	for _, s := range sinks {
		if flushErr := s.w.Flush(); flushErr != nil && !errors.Is(flushErr, writer.ErrClosed) {
			err = multierr.Append(err, fmtErrorf("failed to flush writer '%s': %w", s.name, flushErr))
		}
		if closeErr := s.w.Close(); closeErr != nil {
			err = multierr.Append(err, fmtErrorf("failed to close writer '%s': %w", s.name, closeErr))
		}
	}
	return err
}

// Enabled reports whether an entry of level and tag would reach at least one writer.
// Callers use it to skip building expensive messages.
func (e *Engine) Enabled(level entry.Level, tag string) bool {
	if e.state.Load() != stateRunning {
		return false
	}
	if level < e.level || level >= entry.LevelOff {
		return false
	}
	for i := range e.sinks {
		if e.sinks[i].accepts(level, tag) {
			return true
		}
	}
	return false
}

// RequiredValues returns the union of all writers' required entry fields
func (e *Engine) RequiredValues() entry.Values {
	return e.required
}

// Flush writes out buffered data of every writer. Asynchronous writers are
// flushed by the writing thread, Flush waits up to timeout for it.
func (e *Engine) Flush(timeout time.Duration) error {
	if e.state.Load() != stateRunning {
		return ErrNotInitialized
	}

	e.closeMu.RLock()
	defer e.closeMu.RUnlock()

	var err error
	for _, s := range e.sinks {
		if s.mode != writer.ModeSync {
			continue
		}
		if flushErr := s.w.Flush(); flushErr != nil {
			err = multierr.Append(err, fmtErrorf("failed to flush writer '%s': %w", s.name, flushErr))
		}
	}
	if e.thread != nil {
		err = multierr.Append(err, e.thread.Flush(timeout))
	}
	return err
}

// Shutdown stops the writing thread after one final drain, then flushes and
// closes every writer in name order. A non-positive timeout uses shutdown_timeout_ms.
// Errors of all steps are combined. Calling Shutdown again is a no-op.
func (e *Engine) Shutdown(timeout time.Duration) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.state.Load() != stateRunning {
		return nil
	}
	// A heartbeat in progress still logs into the running engine
	e.stopHeartbeat()
	e.state.Store(stateShutdown)

	if timeout <= 0 {
		timeout = time.Duration(e.cfg.ShutdownTimeoutMs) * time.Millisecond
	}

	var err error
	if e.thread != nil {
		if stopErr := e.thread.Shutdown(timeout); stopErr != nil {
			// Writers are still owned by the thread, closing them would race
			e.diag.Printf("%v, writers left open", stopErr)
			return stopErr
		}
	}

	e.closeMu.Lock()
	err = multierr.Append(err, closeSinks(e.sinks))
	e.closeMu.Unlock()
	return err
}

// Stats returns a snapshot of the engine and writer counters
func (e *Engine) Stats() Snapshot {
	return e.stats.snapshot(&e.metrics)
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// Diagnostics returns the number of internal diagnostics reported so far
func (e *Engine) Diagnostics() uint64 {
	if e.diag == nil {
		return 0
	}
	return e.diag.Reported()
}
