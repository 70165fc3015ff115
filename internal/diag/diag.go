// FILE: lixenwraith/logpipe/internal/diag/diag.go

// Package diag is the internal diagnostic channel used by writers and the
// writing thread to report failures that must not reach the caller.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Reporter writes internal diagnostics with a "logpipe: " prefix
type Reporter struct {
	enabled  atomic.Bool
	mu       sync.Mutex
	w        io.Writer
	once     sync.Map
	reported atomic.Uint64
}

// New returns a reporter writing to w. A nil w means os.Stderr.
func New(w io.Writer, enabled bool) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	r := &Reporter{w: w}
	r.enabled.Store(enabled)
	return r
}

// Discard returns a disabled reporter that still counts reports
func Discard() *Reporter {
	return New(io.Discard, false)
}

// SetEnabled toggles output, counting continues either way
func (r *Reporter) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Reported returns the number of diagnostics reported so far
func (r *Reporter) Reported() uint64 {
	return r.reported.Load()
}

// Printf reports a diagnostic
func (r *Reporter) Printf(format string, args ...any) {
	if r == nil {
		return
	}
	r.reported.Add(1)
	if !r.enabled.Load() {
		return
	}
	if !strings.HasPrefix(format, "logpipe: ") {
		format = "logpipe: " + format
	}
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}
	r.mu.Lock()
	fmt.Fprintf(r.w, format, args...)
	r.mu.Unlock()
}

// Once reports a diagnostic only the first time key is seen
func (r *Reporter) Once(key, format string, args ...any) {
	if r == nil {
		return
	}
	if _, loaded := r.once.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	r.Printf(format, args...)
}
