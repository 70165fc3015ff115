// FILE: lixenwraith/logpipe/writer/console.go
package writer

import (
	"strings"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
)

// consoleWriter writes to stdout and stderr, split by level
type consoleWriter struct {
	base
	out       *rawio.Writer
	err       *rawio.Writer
	errorFrom entry.Level // entries at or above go to err
}

// newConsole reads stream: "out", "err" or "err@LEVEL" (default err@WARN)
func newConsole(p props.Map, opts Options) (Writer, error) {
	b, err := newBase(p, opts, pattern.DefaultPattern)
	if err != nil {
		return nil, err
	}

	w := &consoleWriter{base: b, errorFrom: entry.LevelWarn}
	stream := strings.ToLower(p.String("stream", "err@warn"))
	switch {
	case stream == "out":
		w.errorFrom = entry.LevelOff
	case stream == "err":
		w.errorFrom = entry.LevelTrace
	case strings.HasPrefix(stream, "err@"):
		lvl, err := entry.ParseLevel(strings.TrimPrefix(stream, "err@"))
		if err != nil {
			return nil, props.Errorf("stream", "invalid level in '%s'", stream)
		}
		w.errorFrom = lvl
	default:
		return nil, props.Errorf("stream", "invalid stream '%s' (use out, err or err@LEVEL)", stream)
	}

	s := rawio.Strategy{Synchronized: opts.Mode == ModeSync}
	if w.out, err = rawio.NewStream(opts.Stdout, s); err != nil {
		return nil, err
	}
	if w.err, err = rawio.NewStream(opts.Stderr, s); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *consoleWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	target := w.out
	if e.Level >= w.errorFrom {
		target = w.err
	}
	return w.withLine(e, target.Write)
}

func (w *consoleWriter) Flush() error {
	return multierr.Append(w.out.Flush(), w.err.Flush())
}

func (w *consoleWriter) Close() error {
	return multierr.Append(w.out.Close(), w.err.Close())
}
