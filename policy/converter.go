// FILE: lixenwraith/logpipe/policy/converter.go
package policy

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/panjf2000/ants/v2"
)

// Converter post-processes rolled files. Open is called with the path of a
// newly opened file, Write may transform every chunk written to it, and Close
// schedules conversion of that file into its backup once it is closed.
type Converter interface {
	BackupSuffix() string
	Open(path string)
	Write(data []byte) []byte
	Close()
	// Shutdown waits for scheduled conversions and releases workers
	Shutdown() error
}

// ConverterOption customizes converter construction
type ConverterOption func(*converterOptions)

type converterOptions struct {
	onError func(error)
	workers int
}

// OnConvertError receives failures of background conversions
func OnConvertError(fn func(error)) ConverterOption {
	return func(o *converterOptions) {
		o.onError = fn
	}
}

// WithWorkers limits concurrent conversions
func WithWorkers(n int) ConverterOption {
	return func(o *converterOptions) {
		o.workers = n
	}
}

type compressor func(dst io.Writer, src io.Reader) error

var converters = map[string]struct {
	suffix   string
	compress compressor
}{
	"gzip": {".gz", compressGzip},
	"zstd": {".zst", compressZstd},
}

// ParseConverter resolves a converter by name, empty selects the pass-through converter
func ParseConverter(name string, opts ...ConverterOption) (Converter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return NopConverter{}, nil
	}
	c, ok := converters[name]
	if !ok {
		names := make([]string, 0, len(converters))
		for n := range converters {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown converter '%s' (use %s)", name, strings.Join(names, ", "))
	}

	o := converterOptions{onError: func(error) {}, workers: min(runtime.NumCPU(), 4)}
	for _, opt := range opts {
		opt(&o)
	}
	pool, err := ants.NewPool(max(o.workers, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create converter pool: %w", err)
	}
	return &compressConverter{suffix: c.suffix, compress: c.compress, pool: pool, onError: o.onError}, nil
}

// NopConverter keeps rolled files as they are
type NopConverter struct{}

func (NopConverter) BackupSuffix() string     { return "" }
func (NopConverter) Open(string)              {}
func (NopConverter) Write(data []byte) []byte { return data }
func (NopConverter) Close()                   {}
func (NopConverter) Shutdown() error          { return nil }

// compressConverter compresses closed files on a worker pool and removes the
// original after the backup was written completely
type compressConverter struct {
	suffix   string
	compress compressor
	pool     *ants.Pool
	onError  func(error)

	mu      sync.Mutex
	current string
	pending sync.WaitGroup
}

func (c *compressConverter) BackupSuffix() string {
	return c.suffix
}

func (c *compressConverter) Open(path string) {
	c.mu.Lock()
	c.current = path
	c.mu.Unlock()
}

func (c *compressConverter) Write(data []byte) []byte {
	return data
}

func (c *compressConverter) Close() {
	c.mu.Lock()
	path := c.current
	c.current = ""
	c.mu.Unlock()
	if path == "" {
		return
	}

	c.pending.Add(1)
	err := c.pool.Submit(func() {
		defer c.pending.Done()
		if err := c.convert(path); err != nil {
			c.onError(err)
		}
	})
	if err != nil {
		c.pending.Done()
		c.onError(fmt.Errorf("failed to schedule conversion of '%s': %w", path, err))
	}
}

func (c *compressConverter) convert(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open '%s' for conversion: %w", path, err)
	}
	defer src.Close()

	target := path + c.suffix
	tmp := target + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", tmp, err)
	}

	if err := c.compress(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to convert '%s': %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to rename '%s': %w", tmp, err)
	}
	// Backups order by modification time, keep the original's
	if info, err := src.Stat(); err == nil {
		_ = os.Chtimes(target, info.ModTime(), info.ModTime())
	}
	_ = src.Close()
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove converted '%s': %w", path, err)
	}
	return nil
}

func (c *compressConverter) Shutdown() error {
	c.pending.Wait()
	c.pool.Release()
	return nil
}

func compressGzip(dst io.Writer, src io.Reader) error {
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func compressZstd(dst io.Writer, src io.Reader) error {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	if _, err := enc.ReadFrom(src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}
