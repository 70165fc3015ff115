// FILE: lixenwraith/logpipe/writer/json.go
package writer

import (
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/rawio"
	"github.com/lixenwraith/logpipe/sanitizer"
)

// maxTailScan bounds the trailing whitespace inspected when reopening a file
const maxTailScan = 1 << 20

var defaultJSONFields = map[string]string{
	"date":    "{date: yyyy-MM-dd'T'HH:mm:ss.SSSXXX}",
	"level":   "{level}",
	"message": "{message}",
}

type jsonField struct {
	name    string
	pattern *pattern.Pattern
}

// jsonWriter maintains a single top-level JSON array in a file, or writes
// line delimited objects with format=ldjson.
//
// While open the file holds "[" followed by comma terminated objects. Close
// replaces the final comma, or nothing after an empty "[", with the closing
// bracket. Reopening in append mode accepts this grammar:
//
//	file  = [bom] ws "[" ws *(object ws "," ws) [object ws] ["]" ws]
//	ws    = *(" " / "\t" / "\r" / "\n")
//
// The closing bracket and any whitespace after it are trimmed; a file that
// ends in an object gets a comma, so a crashed run's file is continued too.
type jsonWriter struct {
	base
	raw    *rawio.Writer
	fields []jsonField
	lines  bool // ldjson
}

func newJSON(p props.Map, opts Options) (Writer, error) {
	path, err := p.Required("file")
	if err != nil {
		return nil, err
	}
	w := &jsonWriter{}

	switch f := strings.ToLower(p.String("format", "json")); f {
	case "json":
	case "ldjson", "ndjson", "jsonl":
		w.lines = true
	default:
		return nil, props.Errorf("format", "invalid JSON format '%s' (use json or ldjson)", f)
	}

	// The base pattern is unused, field patterns do the rendering
	baseProps := p.Clone()
	delete(baseProps, "format")
	if w.base, err = newBase(baseProps, opts, "{message}"); err != nil {
		return nil, err
	}

	var compileOpts []pattern.Option
	if opts.Location != nil {
		compileOpts = append(compileOpts, pattern.WithLocation(opts.Location))
	}
	defs := p.Sub("field.")
	if len(defs) == 0 {
		for name, def := range defaultJSONFields {
			defs = append(defs, props.KV{Key: name, Value: def})
		}
		sortKV(defs)
	}
	for _, kv := range defs {
		fp, err := pattern.Compile(kv.Value, compileOpts...)
		if err != nil {
			return nil, props.Errorf("field."+kv.Key, "%v", err)
		}
		w.fields = append(w.fields, jsonField{name: kv.Key, pattern: fp})
	}

	s, err := rawStrategy(p, opts.Mode, false)
	if err != nil {
		return nil, err
	}
	if w.raw, err = rawio.Open(path, s); err != nil {
		return nil, err
	}
	if !w.lines {
		if err := w.prepareArray(); err != nil {
			_ = w.raw.Close()
			return nil, err
		}
	}
	return w, nil
}

func sortKV(kvs []props.KV) {
	for i := 1; i < len(kvs); i++ {
		for j := i; j > 0 && kvs[j].Key < kvs[j-1].Key; j-- {
			kvs[j], kvs[j-1] = kvs[j-1], kvs[j]
		}
	}
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// lastSignificant returns the last non-whitespace character of the file and
// how many characters follow it, or 0 if the file holds only whitespace
func (w *jsonWriter) lastSignificant() (byte, int64, error) {
	for n := 256; ; n *= 2 {
		tail, err := w.raw.ReadTail(n)
		if err != nil {
			return 0, 0, err
		}
		i := len(tail) - 1
		for i >= 0 && isJSONSpace(tail[i]) {
			i--
		}
		if i >= 0 {
			return tail[i], int64(len(tail) - 1 - i), nil
		}
		if len(tail) < n || n >= maxTailScan {
			return 0, int64(len(tail)), nil
		}
	}
}

// prepareArray brings the file into the open state described on jsonWriter
func (w *jsonWriter) prepareArray() error {
	last, trailing, err := w.lastSignificant()
	if err != nil {
		return err
	}
	switch last {
	case 0:
		return w.raw.Write([]byte("[" + Newline))
	case '[', ',':
		return nil
	case ']':
		if err := w.raw.Truncate(trailing + 1); err != nil {
			return err
		}
		prev, _, err := w.lastSignificant()
		if err != nil {
			return err
		}
		switch prev {
		case '[':
			return nil
		case '}':
			return w.raw.Write([]byte("," + Newline))
		default:
			return fmt.Errorf("cannot append to '%s': unexpected '%c' before closing bracket", w.raw.Path(), prev)
		}
	case '}':
		return w.raw.Write([]byte("," + Newline))
	default:
		return fmt.Errorf("cannot append to '%s': not a JSON array", w.raw.Path())
	}
}

func (w *jsonWriter) RequiredValues() entry.Values {
	v := w.base.RequiredValues()
	for _, f := range w.fields {
		v |= f.pattern.RequiredValues()
	}
	return v
}

func (w *jsonWriter) appendObject(buf []byte, e *entry.Entry) []byte {
	if w.strip && e.Exception != nil {
		stripped := *e
		stripped.Exception = nil
		e = &stripped
	}
	buf = append(buf, '{')
	for i, f := range w.fields {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = sanitizer.AppendJSONString(buf, f.name)
		buf = append(buf, ": "...)
		buf = sanitizer.AppendJSONString(buf, f.pattern.RenderString(e))
	}
	return append(buf, '}')
}

func (w *jsonWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	render := func(buf []byte) []byte {
		buf = w.appendObject(buf, e)
		if !w.lines {
			buf = append(buf, ',')
		}
		return append(buf, Newline...)
	}

	if w.opts.Mode == ModeAsync {
		w.scratch = render(w.scratch[:0])
		return w.raw.Write(w.scratch)
	}
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.B = render(bb.B)
	return w.raw.Write(bb.B)
}

func (w *jsonWriter) Flush() error {
	return w.raw.Flush()
}

// Close terminates the array and closes the file
func (w *jsonWriter) Close() error {
	var err error
	if !w.lines {
		err = w.closeArray()
	}
	return multierr.Append(err, w.raw.Close())
}

func (w *jsonWriter) closeArray() error {
	last, trailing, err := w.lastSignificant()
	if err != nil {
		if err == rawio.ErrClosed {
			return nil
		}
		return err
	}
	switch last {
	case ',':
		if err := w.raw.Truncate(trailing + 1); err != nil {
			return err
		}
		return w.raw.Write([]byte(Newline + "]" + Newline))
	case '[', '}':
		if err := w.raw.Truncate(trailing); err != nil {
			return err
		}
		return w.raw.Write([]byte(Newline + "]" + Newline))
	default:
		return nil
	}
}
