// FILE: lixenwraith/logpipe/processor.go
package logpipe

import (
	"context"
	"sync"
	"time"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/internal/diag"
	"github.com/lixenwraith/logpipe/writer"
)

// task is one pending write of the writing thread
type task struct {
	w    writer.Writer
	name string
	e    *entry.Entry
}

// WritingThread performs all I/O of async writers on one goroutine.
// Producers append to a pending list under a mutex and return; the goroutine
// swaps the list out and writes without holding the lock. Tasks of one
// producer are written in enqueue order.
type WritingThread struct {
	mu      sync.Mutex
	pending []task
	spare   []task
	stopped bool

	observed context.Context
	coalesce time.Duration
	diag     *diag.Reporter
	stats    *Stats

	flushReq chan chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newWritingThread(observed context.Context, coalesce time.Duration, d *diag.Reporter, stats *Stats) *WritingThread {
	if observed == nil {
		observed = context.Background()
	}
	return &WritingThread{
		observed: observed,
		coalesce: coalesce,
		diag:     d,
		stats:    stats,
		flushReq: make(chan chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue schedules a write. It returns false once the thread has stopped.
func (t *WritingThread) Enqueue(w writer.Writer, name string, e *entry.Entry) bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	t.pending = append(t.pending, task{w: w, name: name, e: e})
	t.mu.Unlock()
	t.stats.QueueDepth.Add(1)
	return true
}

// start launches the goroutine
func (t *WritingThread) start() {
	go t.run()
}

// run drains, waits coalesce when idle, and exits after a final drain on
// shutdown or when the observed context ends
func (t *WritingThread) run() {
	defer close(t.done)

	timer := time.NewTimer(t.coalesce)
	defer timer.Stop()

	for {
		t.drain()

		timer.Reset(t.coalesce)
		select {
		case <-t.stop:
			t.finish()
			return
		case <-t.observed.Done():
			t.diag.Printf("observed context ended, writing thread stops: %v", context.Cause(t.observed))
			t.finish()
			return
		case confirm := <-t.flushReq:
			t.drain()
			close(confirm)
		case <-timer.C:
		}
	}
}

// finish refuses new tasks and writes what is left
func (t *WritingThread) finish() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.drain()
}

// drain writes until the pending list is empty, then flushes the writers it touched
func (t *WritingThread) drain() {
	var dirty []writer.Writer
	for {
		t.mu.Lock()
		batch := t.pending
		t.pending = t.spare[:0]
		t.mu.Unlock()

		if len(batch) == 0 {
			t.spare = batch
			break
		}

		for i := range batch {
			tk := &batch[i]
			if err := tk.w.Write(tk.e); err != nil {
				t.stats.WriterErrors.Add(1)
				t.diag.Printf("writer '%s' failed: %v", tk.name, err)
			} else {
				t.stats.Written.Add(1)
			}
			if !containsWriter(dirty, tk.w) {
				dirty = append(dirty, tk.w)
			}
			*tk = task{}
		}
		t.stats.QueueDepth.Add(-int64(len(batch)))
		t.spare = batch
	}

	for _, w := range dirty {
		if err := w.Flush(); err != nil {
			t.stats.WriterErrors.Add(1)
			t.diag.Printf("writer flush failed: %v", err)
		}
	}
}

func containsWriter(ws []writer.Writer, w writer.Writer) bool {
	for _, x := range ws {
		if x == w {
			return true
		}
	}
	return false
}

// Flush asks the goroutine for an immediate drain and waits up to timeout for it
func (t *WritingThread) Flush(timeout time.Duration) error {
	confirm := make(chan struct{})
	select {
	case t.flushReq <- confirm:
	case <-t.done:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("failed to send flush request to writing thread")
	}

	select {
	case <-confirm:
		return nil
	case <-t.done:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("timeout waiting for flush confirmation (%v)", timeout)
	}
}

// Shutdown requests a final drain and waits up to timeout for the goroutine to exit
func (t *WritingThread) Shutdown(timeout time.Duration) error {
	t.stopOnce.Do(func() { close(t.stop) })

	select {
	case <-t.done:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("writing thread did not exit within timeout (%v)", timeout)
	}
}

// Done is closed when the goroutine has exited
func (t *WritingThread) Done() <-chan struct{} {
	return t.done
}
