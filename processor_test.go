// FILE: lixenwraith/logpipe/processor_test.go
package logpipe

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/internal/diag"
	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/writer"
)

// fileConfig returns a config with one file writer at path
func fileConfig(path string, async bool) *Config {
	cfg := DefaultConfig()
	cfg.CoalesceMs = 1
	cfg.Writers["file"] = WriterConfig{Type: "file", Props: props.Map{
		"file":          path,
		"format":        "{message}",
		"writingthread": strconv.FormatBool(async),
	}}
	return cfg
}

// TestWritingThreadOrder verifies per-producer FIFO order under concurrent producers
func TestWritingThreadOrder(t *testing.T) {
	const producers, perProducer = 4, 250
	path := filepath.Join(t.TempDir(), "async.log")
	e, _ := createTestEngine(t, fileConfig(path, true))
	require.NotNil(t, e.thread)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				e.Log(LevelInfo, "", "{} {}", p, i)
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, e.Shutdown(5*time.Second))

	lines := readLines(t, path)
	require.Len(t, lines, producers*perProducer)

	next := make([]int, producers)
	for _, line := range lines {
		var p, i int
		_, err := fmt.Sscanf(line, "%d %d", &p, &i)
		require.NoError(t, err)
		require.Equal(t, next[p], i, "producer %d out of order", p)
		next[p]++
	}

	s := e.Stats()
	assert.Equal(t, uint64(producers*perProducer), s.Written)
	assert.Equal(t, int64(0), s.QueueDepth)
}

// TestWritingThreadMixedModes verifies that sync and async writers both receive every entry
func TestWritingThreadMixedModes(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.WritingThread = true
	cfg.Writers["async"] = WriterConfig{Type: "file", Props: props.Map{"file": filepath.Join(dir, "async.log"), "format": "{level} {message}"}}
	cfg.Writers["sync"] = WriterConfig{Type: "file", Props: props.Map{"file": filepath.Join(dir, "sync.log"), "format": "{level} {message}", "writingthread": "false"}}
	e, _ := createTestEngine(t, cfg)

	for i := 0; i < 10; i++ {
		e.Log(LevelInfo, "", "entry {}", i)
	}
	require.NoError(t, e.Flush(time.Second))

	// The sync writer is complete without waiting for the thread
	assert.Len(t, readLines(t, filepath.Join(dir, "sync.log")), 10)
	assert.Len(t, readLines(t, filepath.Join(dir, "async.log")), 10)

	require.NoError(t, e.Shutdown(time.Second))
	assert.Equal(t, readLines(t, filepath.Join(dir, "sync.log")), readLines(t, filepath.Join(dir, "async.log")))
}

// TestWritingThreadNotStartedForSyncWriters verifies that no goroutine runs without async writers
func TestWritingThreadNotStartedForSyncWriters(t *testing.T) {
	e, _ := createTestEngine(t, fileConfig(filepath.Join(t.TempDir(), "sync.log"), false))
	assert.Nil(t, e.thread)
}

// TestWritingThreadShutdownDrains verifies that queued entries are written by the final drain
func TestWritingThreadShutdownDrains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drain.log")
	cfg := fileConfig(path, true)
	cfg.CoalesceMs = 60000 // only the shutdown drain can write
	e, _ := createTestEngine(t, cfg)

	// Let the goroutine reach its idle wait
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 100; i++ {
		e.Log(LevelInfo, "", "entry {}", i)
	}
	assert.Equal(t, int64(100), e.Stats().QueueDepth)

	require.NoError(t, e.Shutdown(time.Second))
	lines := readLines(t, path)
	require.Len(t, lines, 100)
	assert.Equal(t, "entry 0", lines[0])
	assert.Equal(t, "entry 99", lines[99])
}

// TestWritingThreadFlush verifies that Flush forces an immediate drain
func TestWritingThreadFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.log")
	cfg := fileConfig(path, true)
	cfg.CoalesceMs = 60000
	e, _ := createTestEngine(t, cfg)

	time.Sleep(20 * time.Millisecond)
	e.Log(LevelInfo, "", "flushed")
	require.NoError(t, e.Flush(time.Second))
	assert.Equal(t, []string{"flushed"}, readLines(t, path))
}

// TestWritingThreadContextDone verifies that the thread exits when the observed
// context ends and later entries for async writers are counted as dropped
func TestWritingThreadContextDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	cfg := fileConfig(path, true)
	cfg.InternalErrorsToStderr = false

	ctx, cancel := context.WithCancel(context.Background())
	e := NewEngine(cfg, WithContext(ctx))
	require.NoError(t, e.Init())

	for i := 0; i < 3; i++ {
		e.Log(LevelInfo, "", "before {}", i)
	}
	cancel()

	select {
	case <-e.thread.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("writing thread did not exit after context cancellation")
	}

	e.Log(LevelInfo, "", "after")
	assert.Equal(t, uint64(1), e.Stats().Dropped)

	require.NoError(t, e.Shutdown(time.Second))
	assert.Equal(t, []string{"before 0", "before 1", "before 2"}, readLines(t, path))
}

// failingWriter fails every write and records flushes
type failingWriter struct {
	mu      sync.Mutex
	writes  int
	flushes int
}

func (w *failingWriter) RequiredValues() entry.Values { return entry.ValueMessage }

func (w *failingWriter) Write(*entry.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	return fmt.Errorf("disk on fire")
}

func (w *failingWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
	return nil
}

func (w *failingWriter) Close() error { return nil }

// TestWritingThreadContinuesAfterErrors verifies error reporting and continued processing
func TestWritingThreadContinuesAfterErrors(t *testing.T) {
	var out strings.Builder
	stats := &Stats{}
	wt := newWritingThread(context.Background(), time.Millisecond, diag.New(&out, true), stats)
	wt.start()

	w := &failingWriter{}
	for i := 0; i < 5; i++ {
		require.True(t, wt.Enqueue(w, "broken", &entry.Entry{Message: "x"}))
	}
	require.NoError(t, wt.Shutdown(time.Second))

	assert.False(t, wt.Enqueue(w, "broken", &entry.Entry{}), "enqueue after shutdown must fail")
	assert.Equal(t, 5, w.writes)
	assert.GreaterOrEqual(t, w.flushes, 1)
	assert.Equal(t, uint64(5), stats.WriterErrors.Load())
	assert.Equal(t, int64(0), stats.QueueDepth.Load())
	assert.Contains(t, out.String(), "logpipe: writer 'broken' failed: disk on fire")
}

// TestWritingThreadShutdownTimeout verifies the timeout when a writer blocks the drain
func TestWritingThreadShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	stats := &Stats{}
	wt := newWritingThread(context.Background(), time.Millisecond, diag.Discard(), stats)
	wt.start()

	wt.Enqueue(blockingWriter(release), "slow", &entry.Entry{})
	time.Sleep(20 * time.Millisecond)

	err := wt.Shutdown(20 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not exit within timeout")

	close(release)
	<-wt.Done()
}

// blockingWriter blocks every write until release is closed
type blockingWriter chan struct{}

func (w blockingWriter) RequiredValues() entry.Values { return 0 }
func (w blockingWriter) Write(*entry.Entry) error    { <-w; return nil }
func (w blockingWriter) Flush() error                { return nil }
func (w blockingWriter) Close() error                { return nil }

var (
	_ writer.Writer = (*failingWriter)(nil)
	_ writer.Writer = blockingWriter(nil)
)
