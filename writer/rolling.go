// FILE: lixenwraith/logpipe/writer/rolling.go
package writer

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/dynpath"
	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/policy"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
)

// rollingWriter writes to a file resolved from a path template and starts a
// new file whenever a policy rejects the next entry.
//
// States: OPEN while raw is set, ROLLING inside roll. A roll closes the
// current file, schedules its conversion, resolves and opens a fresh file,
// resets every policy and prunes old files beyond the backup count.
type rollingWriter struct {
	base
	mu sync.Mutex // ModeSync only

	path      *dynpath.DynamicPath
	policies  []policy.Policy
	converter policy.Converter
	backups   int // negative keeps every file
	latest    string
	strategy  rawio.Strategy

	raw     *rawio.Writer
	current string
	closed  bool
}

func newRollingFile(p props.Map, opts Options) (Writer, error) {
	template, err := p.Required("file")
	if err != nil {
		return nil, err
	}
	b, err := newBase(p, opts, pattern.DefaultPattern)
	if err != nil {
		return nil, err
	}

	w := &rollingWriter{base: b, latest: p.String("latest", "")}

	if w.path, err = dynpath.New(template, dynpath.WithClock(opts.Now)); err != nil {
		return nil, props.Errorf("file", "%v", err)
	}

	policyOpts := []policy.Option{policy.WithClock(opts.Now)}
	if opts.Location != nil {
		policyOpts = append(policyOpts, policy.WithLocation(opts.Location))
	}
	if w.policies, err = policy.Parse(p.String("policies", ""), policyOpts...); err != nil {
		return nil, props.Errorf("policies", "%v", err)
	}

	if w.backups, err = p.Int("backups", -1); err != nil {
		return nil, err
	}

	if w.strategy, err = rawStrategy(p, opts.Mode, true); err != nil {
		return nil, err
	}

	name := opts.Name
	if w.converter, err = policy.ParseConverter(p.String("convert", ""), policy.OnConvertError(func(err error) {
		opts.Diag.Printf("writer '%s': %v", name, err)
	})); err != nil {
		return nil, props.Errorf("convert", "%v", err)
	}

	if err := w.open(); err != nil {
		_ = w.converter.Shutdown()
		return nil, err
	}
	return w, nil
}

// open continues the newest existing file if every policy agrees, otherwise rolls
func (w *rollingWriter) open() error {
	files, err := w.path.AllFiles(w.converter.BackupSuffix())
	if err != nil {
		return err
	}

	if len(files) > 0 {
		newest := files[0].Original
		if _, statErr := os.Stat(newest); statErr == nil && w.strategy.Append &&
			w.path.IsValid(newest) && policy.ContinueExisting(w.policies, newest) {
			s := w.strategy
			s.Append = true
			raw, err := rawio.Open(newest, s)
			if err != nil {
				return err
			}
			w.raw, w.current = raw, newest
			w.converter.Open(newest)
			w.linkLatest()
			w.prune()
			return nil
		} else if statErr == nil && w.converter.BackupSuffix() != "" {
			// Left behind by an earlier run, convert it like a rolled file
			w.converter.Open(newest)
			w.converter.Close()
		}
	}
	return w.openFresh()
}

func (w *rollingWriter) openFresh() error {
	next, err := w.path.Resolve()
	if err != nil {
		return err
	}
	s := w.strategy
	s.Append = false
	raw, err := rawio.Open(next, s)
	if err != nil {
		return err
	}
	w.raw, w.current = raw, next
	policy.ResetAll(w.policies)
	policy.AccountAll(w.policies, raw.HeaderLen())
	w.converter.Open(next)
	w.linkLatest()
	w.prune()
	return nil
}

// roll closes the current file and opens a fresh one
func (w *rollingWriter) roll() error {
	closeErr := w.raw.Close()
	w.raw = nil
	w.converter.Close()

	if err := w.openFresh(); err != nil {
		return multierr.Append(closeErr, err)
	}
	w.opts.Metrics.Rollovers.Add(1)
	if closeErr != nil {
		w.opts.Diag.Printf("writer '%s': failed to close rolled file: %v", w.opts.Name, closeErr)
	}
	return nil
}

func (w *rollingWriter) linkLatest() {
	if w.latest == "" {
		return
	}
	_ = os.Remove(w.latest)
	if err := os.MkdirAll(filepath.Dir(w.latest), 0755); err == nil {
		err = os.Link(w.current, w.latest)
		if err == nil {
			return
		}
		w.opts.Diag.Once("latest:"+w.latest, "writer '%s': failed to link latest file '%s': %v", w.opts.Name, w.latest, err)
	}
}

// prune deletes the oldest files beyond the backup count, the current file never counts
func (w *rollingWriter) prune() {
	if w.backups < 0 {
		return
	}
	files, err := w.path.AllFiles(w.converter.BackupSuffix())
	if err != nil {
		w.opts.Diag.Printf("writer '%s': failed to list backups: %v", w.opts.Name, err)
		return
	}
	kept := 0
	for _, f := range files {
		if filepath.Clean(f.Original) == filepath.Clean(w.current) {
			continue
		}
		if kept < w.backups {
			kept++
			continue
		}
		if err := f.Delete(); err != nil {
			w.opts.Diag.Printf("writer '%s': failed to delete backup: %v", w.opts.Name, err)
		}
	}
}

func (w *rollingWriter) lock() {
	if w.opts.Mode == ModeSync {
		w.mu.Lock()
	}
}

func (w *rollingWriter) unlock() {
	if w.opts.Mode == ModeSync {
		w.mu.Unlock()
	}
}

// Current returns the path of the file being written
func (w *rollingWriter) Current() string {
	w.lock()
	defer w.unlock()
	return w.current
}

func (w *rollingWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	w.lock()
	defer w.unlock()

	if w.closed {
		return ErrClosed
	}
	return w.withLine(e, func(line []byte) error {
		if w.raw == nil {
			// A previous roll failed to open a file, try again
			if err := w.openFresh(); err != nil {
				return err
			}
		} else if !w.continueCurrent(line) {
			if err := w.roll(); err != nil {
				return err
			}
			// A fresh file accepts at least one entry
			w.continueCurrent(line)
		}
		return w.raw.Write(w.converter.Write(line))
	})
}

// continueCurrent consults the policies with the line as it lands on disk
func (w *rollingWriter) continueCurrent(line []byte) bool {
	return policy.ContinueCurrent(w.policies, w.strategy.Charset.Encode(line))
}

func (w *rollingWriter) Flush() error {
	w.lock()
	defer w.unlock()
	if w.raw == nil {
		return nil
	}
	return w.raw.Flush()
}

func (w *rollingWriter) Close() error {
	w.lock()
	defer w.unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.raw != nil {
		err = w.raw.Close()
		w.raw = nil
	}
	return multierr.Append(err, w.converter.Shutdown())
}
