// FILE: lixenwraith/logpipe/rawio/writer.go
package rawio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding"
)

// Writer is a raw writer composed from a Strategy. It implements TailWriter;
// tail operations on stream writers return ErrNoTail.
type Writer struct {
	strategy Strategy
	path     string
	file     *os.File
	out      io.Writer

	mu     sync.Mutex // held for every operation iff strategy.Synchronized
	buf    []byte
	enc    *encoding.Encoder
	dec    *encoding.Decoder
	header int64 // length of the byte order mark at the start of the file
	closed bool
}

var _ TailWriter = (*Writer)(nil)

// Open opens path for writing. The path is made absolute and parent
// directories are created. Without Strategy.Append the file is truncated. A
// charset header is written iff the charset needs one and the file is empty.
func Open(path string, s Strategy) (*Writer, error) {
	if s.Locked && !lockSupported {
		return nil, ErrLockUnsupported
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("rawio: failed to resolve path '%s': %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("rawio: failed to create directory for '%s': %w", abs, err)
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if !s.Append {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(abs, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("rawio: failed to open '%s': %w", abs, err)
	}

	w := newWriter(s, f)
	w.path = abs
	w.file = f

	if bom := s.Charset.BOM(); len(bom) > 0 {
		if err := w.writeHeader(bom); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return w, nil
}

// NewStream wraps an output stream such as os.Stdout. The stream is never
// closed by the writer and cannot be locked.
func NewStream(out io.Writer, s Strategy) (*Writer, error) {
	if s.Locked {
		return nil, fmt.Errorf("rawio: locked strategy needs a file")
	}
	s.Append = true
	return newWriter(s, out), nil
}

func newWriter(s Strategy, out io.Writer) *Writer {
	w := &Writer{
		strategy: s,
		out:      out,
		enc:      s.Charset.encoder(),
		dec:      s.Charset.decoder(),
	}
	if s.Buffered {
		w.buf = make([]byte, 0, BufferSize)
	}
	return w
}

// Path returns the absolute file path, empty for streams
func (w *Writer) Path() string {
	return w.path
}

// HeaderLen returns the length of the byte order mark at the start of the file
func (w *Writer) HeaderLen() int64 {
	return w.header
}

// Strategy returns the composition the writer was built with
func (w *Writer) Strategy() Strategy {
	return w.strategy
}

func (w *Writer) lock() {
	if w.strategy.Synchronized {
		w.mu.Lock()
	}
}

func (w *Writer) unlock() {
	if w.strategy.Synchronized {
		w.mu.Unlock()
	}
}

func (w *Writer) writeHeader(bom []byte) error {
	if w.strategy.Locked {
		if err := lockExclusive(w.file); err != nil {
			return fmt.Errorf("rawio: failed to lock '%s': %w", w.path, err)
		}
		defer func() { _ = unlockFile(w.file) }()
	}
	info, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("rawio: failed to stat '%s': %w", w.path, err)
	}
	if info.Size() == 0 {
		if _, err := w.file.Write(bom); err != nil {
			return fmt.Errorf("rawio: failed to write charset header to '%s': %w", w.path, err)
		}
		w.header = int64(len(bom))
		return nil
	}

	// Continued file, only account for the header if it is actually there
	head := make([]byte, len(bom))
	if n, _ := w.file.ReadAt(head, 0); n == len(bom) && string(head) == string(bom) {
		w.header = int64(len(bom))
	}
	return nil
}

// Write encodes p and writes or buffers it. A single call is never split
// across two underlying writes unless it exceeds the buffer capacity.
func (w *Writer) Write(p []byte) error {
	w.lock()
	defer w.unlock()

	if w.closed {
		return ErrClosed
	}

	data := p
	if w.enc != nil {
		encoded, err := w.enc.Bytes(p)
		if err != nil {
			return fmt.Errorf("rawio: failed to encode as %s: %w", w.strategy.Charset, err)
		}
		data = encoded
	}

	if !w.strategy.Buffered {
		return w.writeThrough(data)
	}
	if len(w.buf)+len(data) > cap(w.buf) {
		if err := w.flushBuffer(); err != nil {
			return err
		}
	}
	if len(data) >= cap(w.buf) {
		return w.writeThrough(data)
	}
	w.buf = append(w.buf, data...)
	return nil
}

func (w *Writer) writeThrough(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if w.strategy.Locked {
		return writeLocked(w.file, data)
	}
	_, err := w.out.Write(data)
	return err
}

func (w *Writer) flushBuffer() error {
	if len(w.buf) == 0 {
		return nil
	}
	err := w.writeThrough(w.buf)
	w.buf = w.buf[:0]
	return err
}

// Flush writes buffered data
func (w *Writer) Flush() error {
	w.lock()
	defer w.unlock()

	if w.closed {
		return ErrClosed
	}
	return w.flushBuffer()
}

// Close flushes and releases the file. The file is closed even if the flush failed.
func (w *Writer) Close() error {
	w.lock()
	defer w.unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.flushBuffer()
	if w.file != nil {
		err = multierr.Append(err, w.file.Close())
	}
	return err
}

// ReadTail returns up to n characters from the end of the file, excluding the charset header
func (w *Writer) ReadTail(n int) ([]byte, error) {
	w.lock()
	defer w.unlock()

	if err := w.tailCheck(); err != nil {
		return nil, err
	}
	if w.strategy.Locked {
		if err := lockExclusive(w.file); err != nil {
			return nil, err
		}
		defer func() { _ = unlockFile(w.file) }()
	}

	info, err := w.file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	offset := max(size-int64(n*w.strategy.Charset.unitSize()), w.header)
	if offset >= size {
		return []byte{}, nil
	}

	raw := make([]byte, size-offset)
	if _, err := w.file.ReadAt(raw, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("rawio: failed to read tail of '%s': %w", w.path, err)
	}
	if w.dec != nil {
		return w.dec.Bytes(raw)
	}
	return raw, nil
}

// Truncate removes count characters from the end of the file, never the charset header
func (w *Writer) Truncate(count int64) error {
	w.lock()
	defer w.unlock()

	if err := w.tailCheck(); err != nil {
		return err
	}
	if w.strategy.Locked {
		if err := lockExclusive(w.file); err != nil {
			return err
		}
		defer func() { _ = unlockFile(w.file) }()
	}

	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := max(info.Size()-count*int64(w.strategy.Charset.unitSize()), w.header)
	if err := w.file.Truncate(size); err != nil {
		return fmt.Errorf("rawio: failed to truncate '%s': %w", w.path, err)
	}
	return nil
}

func (w *Writer) tailCheck() error {
	if w.closed {
		return ErrClosed
	}
	if w.file == nil {
		return ErrNoTail
	}
	return w.flushBuffer()
}
