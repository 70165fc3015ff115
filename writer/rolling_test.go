// FILE: lixenwraith/logpipe/writer/rolling_test.go
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names
}

// message of exactly n bytes including the newline
func sized(i, n int) string {
	prefix := fmt.Sprintf("entry %02d ", i)
	return prefix + strings.Repeat("x", n-len(prefix)-len(Newline))
}

// TestRollingThreshold verifies that no rolled file exceeds the size limit
func TestRollingThreshold(t *testing.T) {
	for _, mode := range []Mode{ModeSync, ModeAsync} {
		t.Run(mode.String(), func(t *testing.T) {
			dir := t.TempDir()
			w := mustNew(t, "rolling file", props.Map{
				"file":     filepath.Join(dir, "app_{count}.log"),
				"format":   "{message}",
				"policies": "size: 100",
			}, testOptions(mode))

			for i := range 10 {
				require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, sized(i, 30))))
			}
			require.NoError(t, w.Close())

			assert.Equal(t, []string{"app_0.log", "app_1.log", "app_2.log", "app_3.log"}, listDir(t, dir))
			var all []string
			for i := range 4 {
				content := readFile(t, filepath.Join(dir, fmt.Sprintf("app_%d.log", i)))
				assert.LessOrEqual(t, len(content), 100)
				all = append(all, strings.Split(strings.TrimSuffix(content, Newline), Newline)...)
			}
			require.Len(t, all, 10)
			for i, line := range all {
				assert.Equal(t, sized(i, 30), line)
			}
		})
	}
}

// TestRollingThresholdCharset verifies that the limit applies to encoded bytes
// including the byte order mark
func TestRollingThresholdCharset(t *testing.T) {
	dir := t.TempDir()
	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "app_{count}.log"),
		"format":   "{message}",
		"policies": "size: 81",
		"charset":  "utf-16le",
	}, testOptions(ModeSync))

	for i := range 3 {
		require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, sized(i, 20))))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"app_0.log", "app_1.log", "app_2.log"}, listDir(t, dir))
	for i := range 3 {
		expected := []byte{0xFF, 0xFE}
		for _, b := range []byte(sized(i, 20) + Newline) {
			expected = append(expected, b, 0)
		}
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("app_%d.log", i)))
		require.NoError(t, err)
		assert.Equal(t, expected, data)
		assert.LessOrEqual(t, len(data), 81)
	}
}

// TestRollingOversizedEntry verifies that an entry larger than the limit lands in its own file
func TestRollingOversizedEntry(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(ModeSync)
	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "app_{count}.log"),
		"format":   "{message}",
		"policies": "size: 10",
	}, opts)

	require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, strings.Repeat("a", 50))))
	require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, "b")))
	require.NoError(t, w.Close())

	assert.Equal(t, lines(strings.Repeat("a", 50)), readFile(t, filepath.Join(dir, "app_0.log")))
	assert.Equal(t, lines("b"), readFile(t, filepath.Join(dir, "app_1.log")))
	assert.Equal(t, uint64(1), opts.Metrics.Rollovers.Load())
}

// TestRollingRetention verifies that exactly the configured number of backups survive
func TestRollingRetention(t *testing.T) {
	dir := t.TempDir()
	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "app_{count}.log"),
		"format":   "{message}",
		"policies": "size: 30",
		"backups":  "2",
	}, testOptions(ModeSync))

	for i := range 6 {
		require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, sized(i, 30))))
		files := listDir(t, dir)
		assert.LessOrEqual(t, len(files), 3, "after entry %d: %v", i, files)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"app_3.log", "app_4.log", "app_5.log"}, listDir(t, dir))
	assert.Equal(t, lines(sized(5, 30)), readFile(t, filepath.Join(dir, "app_5.log")))
}

// TestRollingRetentionForeignFiles verifies that retention only removes files
// matching the path template
func TestRollingRetentionForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"app-backup.log", "app-Fri.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"+Newline), 0o644))
	}

	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "app-{date: EEE}.log"),
		"format":   "{message}",
		"policies": "startup",
		"backups":  "0",
	}, testOptions(ModeSync))
	require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, "current")))
	require.NoError(t, w.Close())

	// testTime is a Saturday
	assert.Equal(t, []string{"app-Sat.log", "app-backup.log"}, listDir(t, dir))
	assert.Equal(t, "old"+Newline, readFile(t, filepath.Join(dir, "app-backup.log")))
}

// TestRollingContinue verifies continuation and the startup policy across restarts
func TestRollingContinue(t *testing.T) {
	tests := []struct {
		name     string
		props    props.Map
		expected []string
	}{
		{"continue by default", props.Map{}, []string{"app_0.log"}},
		{"startup starts a new file", props.Map{"policies": "startup"}, []string{"app_0.log", "app_1.log"}},
		{"no append starts a new file", props.Map{"append": "false"}, []string{"app_0.log", "app_1.log"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := tt.props.Clone()
			p["file"] = filepath.Join(dir, "app_{count}.log")
			p["format"] = "{message}"

			for _, msg := range []string{"first run", "second run"} {
				w, err := New("rolling file", p, testOptions(ModeSync))
				require.NoError(t, err)
				require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, msg)))
				require.NoError(t, w.Close())
			}

			files := listDir(t, dir)
			assert.Equal(t, tt.expected, files)
			if len(files) == 1 {
				assert.Equal(t, lines("first run", "second run"), readFile(t, filepath.Join(dir, files[0])))
			} else {
				assert.Equal(t, lines("second run"), readFile(t, filepath.Join(dir, files[1])))
			}
		})
	}
}

// TestRollingLatest verifies that the latest link follows the current file
func TestRollingLatest(t *testing.T) {
	dir := t.TempDir()
	latest := filepath.Join(dir, "latest.log")
	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "logs", "app_{count}.log"),
		"format":   "{message}",
		"policies": "size: 30",
		"latest":   latest,
	}, testOptions(ModeSync))
	rw := w.(*rollingWriter)

	for i := range 3 {
		require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, sized(i, 30))))
		require.NoError(t, w.Flush())

		current, err := os.Stat(rw.Current())
		require.NoError(t, err)
		linked, err := os.Stat(latest)
		require.NoError(t, err)
		assert.True(t, os.SameFile(current, linked), "entry %d", i)
	}
	assert.Equal(t, lines(sized(2, 30)), readFile(t, latest))
}

// TestRollingDatePath verifies a date placeholder in the path template
func TestRollingDatePath(t *testing.T) {
	dir := t.TempDir()
	w := mustNew(t, "rolling file", props.Map{
		"file":   filepath.Join(dir, "{date: yyyy-MM-dd}", "app.log"),
		"format": "{message}",
	}, testOptions(ModeSync))
	require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, "dated")))
	require.NoError(t, w.Close())

	assert.Equal(t, lines("dated"), readFile(t, filepath.Join(dir, "2024-03-09", "app.log")))
}

// TestRollingGzip verifies that rolled files are compressed and the current one is not
func TestRollingGzip(t *testing.T) {
	dir := t.TempDir()
	w := mustNew(t, "rolling file", props.Map{
		"file":     filepath.Join(dir, "app_{count}.log"),
		"format":   "{message}",
		"policies": "size: 30",
		"convert":  "gzip",
	}, testOptions(ModeSync))

	for i := range 3 {
		require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, sized(i, 30))))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"app_0.log.gz", "app_1.log.gz", "app_2.log"}, listDir(t, dir))
	for i := range 2 {
		f, err := os.Open(filepath.Join(dir, fmt.Sprintf("app_%d.log.gz", i)))
		require.NoError(t, err)
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		data, err := io.ReadAll(zr)
		require.NoError(t, err)
		_ = f.Close()
		assert.Equal(t, lines(sized(i, 30)), string(data))
	}

	// A restart converts the file left behind
	w2, err := New("rolling file", props.Map{
		"file":     filepath.Join(dir, "app_{count}.log"),
		"format":   "{message}",
		"policies": "startup",
		"convert":  "gzip",
	}, testOptions(ModeSync))
	require.NoError(t, err)
	require.NoError(t, w2.Close())
	assert.Equal(t, []string{"app_0.log.gz", "app_1.log.gz", "app_2.log.gz", "app_3.log"}, listDir(t, dir))
}
