// FILE: lixenwraith/logpipe/dynpath/dynpath_test.go
package dynpath

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)

func clock() time.Time { return fixedNow }

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

// TestResolve verifies placeholder substitution
func TestResolve(t *testing.T) {
	dir := t.TempDir()
	pid := strconv.Itoa(os.Getpid())

	tests := []struct {
		template string
		expected string
	}{
		{"app.log", "app.log"},
		{"app_{date: yyyy-MM-dd}.log", "app_2024-03-09.log"},
		{"{date}/app.log", "2024-03-09_14-30-00/app.log"},
		{"app_{pid}.log", "app_" + pid + ".log"},
		{"app_{count}.log", "app_0.log"},
		{"{date: yyyy}/{date: MM}/app_{count}.log", "2024/03/app_0.log"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			p, err := New(filepath.Join(dir, tt.template), WithClock(clock))
			require.NoError(t, err)
			path, err := p.Resolve()
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.expected), path)
			assert.True(t, p.IsValid(path))
		})
	}
}

// TestResolveCount verifies that the counter continues after the highest existing file of the same prefix
func TestResolveCount(t *testing.T) {
	dir := t.TempDir()
	p, err := New(filepath.Join(dir, "app_{date: yyyy-MM-dd}_{count}.log"), WithClock(clock))
	require.NoError(t, err)

	touch(t, filepath.Join(dir, "app_2024-03-09_0.log"), fixedNow)
	touch(t, filepath.Join(dir, "app_2024-03-09_7.log"), fixedNow)
	touch(t, filepath.Join(dir, "app_2024-03-08_12.log"), fixedNow) // different date, ignored
	touch(t, filepath.Join(dir, "other_2024-03-09_99.log"), fixedNow)

	path, err := p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app_2024-03-09_8.log"), path)

	// Converted backups keep their count reserved
	touch(t, filepath.Join(dir, "app_2024-03-09_9.log.gz"), fixedNow)
	path, err = p.Resolve()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app_2024-03-09_10.log"), path)
}

// TestIsValid verifies matching of on-disk names against the template
func TestIsValid(t *testing.T) {
	p, err := New("logs/app_{date: yyyy-MM-dd}_{count}.log")
	require.NoError(t, err)

	assert.True(t, p.IsValid("logs/app_2023-12-31_0.log"))
	assert.True(t, p.IsValid("./logs/app_2023-12-31_15.log"))
	assert.False(t, p.IsValid("logs/app_2023-12-31.log"))
	assert.False(t, p.IsValid("logs/app_latest_1.log"))
	assert.False(t, p.IsValid("logs/app_2023-12-31_1.log.gz"))
	assert.False(t, p.IsValid("other/app_2023-12-31_1.log"))
}

// TestStatic verifies placeholder detection
func TestStatic(t *testing.T) {
	p, err := New("logs/app.log")
	require.NoError(t, err)
	assert.True(t, p.Static())

	p, err = New("logs/app_{pid}.log")
	require.NoError(t, err)
	assert.False(t, p.Static())
}

// TestNewErrors verifies template validation
func TestNewErrors(t *testing.T) {
	for _, template := range []string{
		"",
		"app_{count.log",
		"app_{host}.log",
		"app_{count}_{count}.log",
		"app_{date: yyyy-qq}.log",
	} {
		_, err := New(template)
		assert.Error(t, err, template)
	}
}

// TestAllFiles verifies newest-first ordering and backup pairing
func TestAllFiles(t *testing.T) {
	dir := t.TempDir()
	p, err := New(filepath.Join(dir, "app_{count}.log"))
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, filepath.Join(dir, "app_0.log.gz"), base)
	touch(t, filepath.Join(dir, "app_1.log.gz"), base.Add(time.Minute))
	touch(t, filepath.Join(dir, "app_1.log"), base.Add(time.Second))
	touch(t, filepath.Join(dir, "app_2.log"), base.Add(2*time.Minute))
	touch(t, filepath.Join(dir, "unrelated.log"), base.Add(3*time.Minute))
	touch(t, filepath.Join(dir, "sub", "app_9.log"), base.Add(4*time.Minute))

	files, err := p.AllFiles(".gz")
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(dir, "app_2.log"), files[0].Original)
	assert.Equal(t, filepath.Join(dir, "app_2.log.gz"), files[0].Backup)
	assert.Equal(t, filepath.Join(dir, "app_1.log"), files[1].Original)
	assert.Equal(t, filepath.Join(dir, "app_0.log"), files[2].Original)
	assert.True(t, files[1].ModTime().Equal(base.Add(time.Minute)))

	// Without a suffix only originals count and both names are the same file
	files, err = p.AllFiles("")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, files[0].Original, files[0].Backup)
}

// TestAllFilesTieBreak verifies that equal modification times fall back to the counter
func TestAllFilesTieBreak(t *testing.T) {
	dir := t.TempDir()
	p, err := New(filepath.Join(dir, "app_{count}.log"))
	require.NoError(t, err)

	for _, n := range []string{"3", "10", "2"} {
		touch(t, filepath.Join(dir, "app_"+n+".log"), fixedNow)
	}

	files, err := p.AllFiles("")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "app_10.log"), files[0].Original)
	assert.Equal(t, filepath.Join(dir, "app_3.log"), files[1].Original)
	assert.Equal(t, filepath.Join(dir, "app_2.log"), files[2].Original)
}

// TestAllFilesMissingDirectory verifies that a missing directory yields no files
func TestAllFilesMissingDirectory(t *testing.T) {
	p, err := New(filepath.Join(t.TempDir(), "missing", "app_{count}.log"))
	require.NoError(t, err)
	files, err := p.AllFiles(".gz")
	require.NoError(t, err)
	assert.Empty(t, files)

	path, err := p.Resolve()
	require.NoError(t, err)
	assert.True(t, p.IsValid(path))
}

// TestFileTupleDelete verifies that both files of a pair are removed
func TestFileTupleDelete(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "a.log")
	backup := filepath.Join(dir, "a.log.gz")
	touch(t, original, fixedNow)
	touch(t, backup, fixedNow)

	require.NoError(t, FileTuple{Original: original, Backup: backup}.Delete())
	assert.NoFileExists(t, original)
	assert.NoFileExists(t, backup)

	// Already gone
	assert.NoError(t, FileTuple{Original: original, Backup: backup}.Delete())
}
