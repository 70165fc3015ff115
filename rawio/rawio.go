// FILE: lixenwraith/logpipe/rawio/rawio.go

// Package rawio is the byte-level output layer under every file and console
// writer. A Strategy selects buffering, synchronization, charset encoding and
// cross-process locking once at construction; Open composes them in a fixed
// order and the result never changes for the writer's lifetime.
package rawio

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// BufferSize is the capacity of the write buffer of buffered strategies
const BufferSize = 64 * 1024

var (
	// ErrLockUnsupported is returned when a locked strategy is requested on a platform without advisory file locks
	ErrLockUnsupported = errors.New("rawio: advisory file locks are not supported on this platform")
	// ErrNoTail is returned by tail operations on writers that are not backed by a file
	ErrNoTail = errors.New("rawio: tail operations need a file")
	// ErrClosed is returned by operations on a closed writer
	ErrClosed = errors.New("rawio: writer is closed")
)

// ByteWriter is the minimal raw output contract
type ByteWriter interface {
	Write(p []byte) error
	Flush() error
	Close() error
}

// TailWriter can inspect and trim already written content, used to maintain
// framing such as a closing JSON bracket
type TailWriter interface {
	ByteWriter
	// ReadTail returns up to n characters from the end of the output
	ReadTail(n int) ([]byte, error)
	// Truncate removes count characters from the end of the output
	Truncate(count int64) error
}

// Strategy selects the layers of a raw writer
type Strategy struct {
	Append       bool // continue an existing file instead of truncating it
	Buffered     bool
	Synchronized bool
	Locked       bool // exclusive advisory lock around every write
	Charset      Charset
}

// Layers lists the composition from innermost to outermost
func (s Strategy) Layers() []string {
	layers := []string{"file"}
	if s.Locked {
		layers = append(layers, "locked")
	}
	if s.Buffered {
		layers = append(layers, "buffered")
	}
	if s.Charset.encoder() != nil || len(s.Charset.BOM()) > 0 {
		layers = append(layers, "charset("+string(s.Charset)+")")
	}
	if s.Synchronized {
		layers = append(layers, "synchronized")
	}
	return layers
}

func (s Strategy) String() string {
	return strings.Join(s.Layers(), " -> ")
}

// Charset is the text encoding of a file
type Charset string

const (
	CharsetUTF8    Charset = "utf-8"
	CharsetUTF8BOM Charset = "utf-8-bom"
	CharsetUTF16LE Charset = "utf-16le"
	CharsetUTF16BE Charset = "utf-16be"
)

// ParseCharset resolves a charset name, empty selects UTF-8
func ParseCharset(name string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return CharsetUTF8, nil
	case "utf-8-bom", "utf8-bom", "utf-8bom":
		return CharsetUTF8BOM, nil
	case "utf-16le", "utf16le":
		return CharsetUTF16LE, nil
	case "utf-16be", "utf16be", "utf-16", "utf16":
		return CharsetUTF16BE, nil
	default:
		return "", fmt.Errorf("unsupported charset '%s' (use utf-8, utf-8-bom, utf-16le or utf-16be)", name)
	}
}

// BOM returns the byte order mark written at the start of a fresh file
func (c Charset) BOM() []byte {
	switch c {
	case CharsetUTF8BOM:
		return []byte{0xEF, 0xBB, 0xBF}
	case CharsetUTF16LE:
		return []byte{0xFF, 0xFE}
	case CharsetUTF16BE:
		return []byte{0xFE, 0xFF}
	default:
		return nil
	}
}

// unitSize is the encoded width of an ASCII character
func (c Charset) unitSize() int {
	switch c {
	case CharsetUTF16LE, CharsetUTF16BE:
		return 2
	default:
		return 1
	}
}

// Encode returns p as it is written to disk in the charset, without header
func (c Charset) Encode(p []byte) []byte {
	enc := c.encoder()
	if enc == nil {
		return p
	}
	out, err := enc.Bytes(p)
	if err != nil {
		return p
	}
	return out
}

func (c Charset) encoding() encoding.Encoding {
	switch c {
	case CharsetUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case CharsetUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	default:
		return nil
	}
}

func (c Charset) encoder() *encoding.Encoder {
	if enc := c.encoding(); enc != nil {
		return enc.NewEncoder()
	}
	return nil
}

func (c Charset) decoder() *encoding.Decoder {
	if enc := c.encoding(); enc != nil {
		return enc.NewDecoder()
	}
	return nil
}

// LocksSupported reports whether the platform provides advisory file locks
func LocksSupported() bool {
	return lockSupported
}
