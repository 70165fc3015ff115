// FILE: lixenwraith/logpipe/writer/shared.go
package writer

import (
	"errors"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
)

// LockSuffix names the companion file that grants the right to start a fresh shared file
const LockSuffix = ".lock"

// sharedWriter lets several processes write one file. The first process
// holds an exclusive lock on "<file>.lock" and may truncate the file if no
// peer is active; every process holds a shared lock on the data file while
// it writes, and every write appends under an exclusive per-write lock.
type sharedWriter struct {
	base
	raw       *rawio.Writer
	companion *flock.Flock
	active    *rawio.ProcessLock
}

func newSharedFile(p props.Map, opts Options) (Writer, error) {
	path, err := p.Required("file")
	if err != nil {
		return nil, err
	}
	b, err := newBase(p, opts, pattern.DefaultPattern)
	if err != nil {
		return nil, err
	}
	s, err := rawStrategy(p, opts.Mode, false)
	if err != nil {
		return nil, err
	}
	s.Locked = true

	w := &sharedWriter{base: b}
	if err := w.acquire(path, &s); err != nil {
		return nil, err
	}

	raw, err := rawio.Open(path, s)
	if err != nil {
		_ = w.release()
		return nil, err
	}
	w.raw = raw

	if w.active != nil && !s.Append {
		// Truncated under an exclusive lock, now signal an ordinary active writer
		if err := w.active.Downgrade(); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w, nil
}

// acquire runs the locking protocol and adjusts s to what it permits
func (w *sharedWriter) acquire(path string, s *rawio.Strategy) error {
	w.companion = flock.New(path + LockSuffix)
	owner, err := w.companion.TryLock()
	if err != nil || !owner {
		// Another writer owns the right to start a fresh file
		s.Append = true
		if err != nil {
			w.opts.Diag.Once("companion:"+path, "writer '%s': cannot lock '%s%s', appending: %v", w.opts.Name, path, LockSuffix, err)
		}
		w.companion = nil
	}

	if !s.Append {
		lock, exclusive, err := rawio.TryExclusiveProcessLock(path)
		switch {
		case err != nil && errors.Is(err, rawio.ErrLockUnsupported):
			w.degrade(path, s, err)
			return nil
		case err != nil:
			_ = w.release()
			return err
		case exclusive:
			w.active = lock
			return nil
		default:
			// A peer is still writing, keep its content
			s.Append = true
		}
	}

	lock, err := rawio.AcquireSharedProcessLock(path)
	if err != nil {
		if errors.Is(err, rawio.ErrLockUnsupported) {
			w.degrade(path, s, err)
			return nil
		}
		_ = w.release()
		return err
	}
	w.active = lock
	return nil
}

// degrade falls back to unbuffered appending when shared locks are unavailable
func (w *sharedWriter) degrade(path string, s *rawio.Strategy, cause error) {
	s.Append = true
	s.Buffered = false
	if !rawio.LocksSupported() {
		s.Locked = false
	}
	w.opts.Diag.Once("shared:"+path, "writer '%s': shared locks unsupported for '%s', forcing unbuffered append mode: %v", w.opts.Name, path, cause)
}

func (w *sharedWriter) release() error {
	var err error
	if w.active != nil {
		err = w.active.Release()
		w.active = nil
	}
	if w.companion != nil {
		err = multierr.Append(err, w.companion.Unlock())
		w.companion = nil
	}
	return err
}

func (w *sharedWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	return w.withLine(e, w.raw.Write)
}

func (w *sharedWriter) Flush() error {
	return w.raw.Flush()
}

// Close releases the shared lock, then closes the data file and the companion
func (w *sharedWriter) Close() error {
	var err error
	if w.active != nil {
		err = w.active.Release()
		w.active = nil
	}
	if w.raw != nil {
		err = multierr.Append(err, w.raw.Close())
	}
	if w.companion != nil {
		err = multierr.Append(err, w.companion.Unlock())
		w.companion = nil
	}
	return err
}
