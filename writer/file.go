// FILE: lixenwraith/logpipe/writer/file.go
package writer

import (
	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
)

// fileWriter writes to a single file
type fileWriter struct {
	base
	raw *rawio.Writer
}

func newFile(p props.Map, opts Options) (Writer, error) {
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
	raw, err := rawio.Open(path, s)
	if err != nil {
		return nil, err
	}
	return &fileWriter{base: b, raw: raw}, nil
}

func (w *fileWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	return w.withLine(e, w.raw.Write)
}

func (w *fileWriter) Flush() error {
	return w.raw.Flush()
}

func (w *fileWriter) Close() error {
	return w.raw.Close()
}
