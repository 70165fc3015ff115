// FILE: lixenwraith/logpipe/policy/policy_test.go
package policy

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func parseOne(t *testing.T, list string, clock *fakeClock) Policy {
	t.Helper()
	policies, err := Parse(list, WithClock(clock.now), WithLocation(time.UTC))
	require.NoError(t, err)
	require.Len(t, policies, 1)
	return policies[0]
}

// TestParse verifies policy list parsing
func TestParse(t *testing.T) {
	policies, err := Parse("startup, size: 10mb, daily: 03:30,weekly: fri, monthly, hourly")
	require.NoError(t, err)
	assert.Len(t, policies, 6)

	policies, err = Parse("")
	require.NoError(t, err)
	assert.Empty(t, policies)

	for _, bad := range []string{
		"yearly",
		"size",
		"size: lots",
		"daily: 25:00",
		"daily: noon",
		"weekly: someday",
		"startup: now",
		"monthly: 1",
	} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, []string{"daily", "hourly", "monthly", "size", "startup", "weekly"}, Names())
}

// TestStartupPolicy verifies that files from earlier runs are never continued
func TestStartupPolicy(t *testing.T) {
	p := parseOne(t, "startup", &fakeClock{})
	assert.False(t, p.ContinueExistingFile("any.log"))
	assert.True(t, p.ContinueCurrentFile([]byte("x")))
}

// TestSizePolicy verifies the byte threshold and the fresh file exception
func TestSizePolicy(t *testing.T) {
	p := NewSize(10)

	// A fresh file takes one entry even when it exceeds the limit
	assert.True(t, p.ContinueCurrentFile(make([]byte, 25)))
	assert.False(t, p.ContinueCurrentFile([]byte("a")))

	p.Reset()
	assert.True(t, p.ContinueCurrentFile(make([]byte, 6)))
	assert.True(t, p.ContinueCurrentFile(make([]byte, 4)))
	assert.False(t, p.ContinueCurrentFile(make([]byte, 1)))

	path := filepath.Join(t.TempDir(), "existing.log")
	require.NoError(t, os.WriteFile(path, make([]byte, 8), 0644))
	p = NewSize(10)
	assert.True(t, p.ContinueExistingFile(path))
	assert.True(t, p.ContinueCurrentFile(make([]byte, 2)))
	assert.False(t, p.ContinueCurrentFile(make([]byte, 1)))

	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0644))
	assert.False(t, NewSize(10).ContinueExistingFile(path))
	assert.False(t, NewSize(10).ContinueExistingFile(filepath.Join(t.TempDir(), "missing.log")))
}

// TestSizePolicyHeader verifies that header bytes count toward the limit
// without costing a fresh file its first entry
func TestSizePolicyHeader(t *testing.T) {
	p := NewSize(10)
	AccountAll([]Policy{p}, 2)
	assert.True(t, p.ContinueCurrentFile(make([]byte, 8)))
	assert.False(t, p.ContinueCurrentFile(make([]byte, 1)))

	p.Reset()
	AccountAll([]Policy{p, startupPolicy{}}, 4)
	assert.True(t, p.ContinueCurrentFile(make([]byte, 20)))
	assert.False(t, p.ContinueCurrentFile(make([]byte, 1)))

	p.Reset()
	assert.True(t, p.ContinueCurrentFile(make([]byte, 10)))
}

// TestCombinators verifies AND composition across policies
func TestCombinators(t *testing.T) {
	small, large := NewSize(5), NewSize(100)
	policies := []Policy{small, large}

	assert.True(t, ContinueCurrent(policies, []byte("1234")))
	assert.False(t, ContinueCurrent(policies, []byte("56")))

	ResetAll(policies)
	assert.True(t, ContinueCurrent(policies, []byte("12345")))

	path := filepath.Join(t.TempDir(), "f.log")
	require.NoError(t, os.WriteFile(path, []byte("123"), 0644))
	assert.True(t, ContinueExisting(policies, path))
	assert.False(t, ContinueExisting(append(policies, startupPolicy{}), path))
}

// TestDailyPolicy verifies rollover at a configured time of day
func TestDailyPolicy(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)}
	p := parseOne(t, "daily: 12:00", clock)

	assert.True(t, p.ContinueCurrentFile(nil))
	clock.t = time.Date(2024, 3, 13, 11, 59, 59, 0, time.UTC)
	assert.True(t, p.ContinueCurrentFile(nil))
	clock.t = time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	assert.False(t, p.ContinueCurrentFile(nil))

	p.Reset()
	assert.True(t, p.ContinueCurrentFile(nil))
	clock.t = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.False(t, p.ContinueCurrentFile(nil))

	// Existing files are continued only if written after the last boundary
	path := filepath.Join(t.TempDir(), "daily.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	clock.t = time.Date(2024, 3, 13, 13, 0, 0, 0, time.UTC)

	mod := time.Date(2024, 3, 13, 11, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mod, mod))
	assert.False(t, p.ContinueExistingFile(path))

	mod = time.Date(2024, 3, 13, 12, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mod, mod))
	assert.True(t, p.ContinueExistingFile(path))
}

// TestPeriodBoundaries verifies the next boundary of each calendar policy
func TestPeriodBoundaries(t *testing.T) {
	tests := []struct {
		list     string
		now      time.Time
		boundary time.Time
	}{
		{"hourly", time.Date(2024, 3, 13, 10, 15, 0, 0, time.UTC), time.Date(2024, 3, 13, 11, 0, 0, 0, time.UTC)},
		{"daily", time.Date(2024, 3, 13, 10, 15, 0, 0, time.UTC), time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"daily: 03:00", time.Date(2024, 3, 13, 1, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 3, 0, 0, 0, time.UTC)},
		{"weekly", time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
		{"weekly: wednesday", time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"monthly", time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.list+" "+tt.now.Format(time.DateTime), func(t *testing.T) {
			clock := &fakeClock{t: tt.now}
			p := parseOne(t, tt.list, clock)

			clock.t = tt.boundary.Add(-time.Nanosecond)
			assert.True(t, p.ContinueCurrentFile(nil))
			clock.t = tt.boundary
			assert.False(t, p.ContinueCurrentFile(nil))
		})
	}
}

func writeSample(t *testing.T) (string, []byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rolled.log")
	content := bytes.Repeat([]byte("rolled log line\n"), 500)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path, content
}

// TestGzipConverter verifies that a closed file is replaced by its compressed backup
func TestGzipConverter(t *testing.T) {
	path, content := writeSample(t)

	var errs []error
	c, err := ParseConverter("gzip", OnConvertError(func(err error) { errs = append(errs, err) }))
	require.NoError(t, err)
	assert.Equal(t, ".gz", c.BackupSuffix())

	c.Open(path)
	assert.Equal(t, []byte("pass"), c.Write([]byte("pass")))
	c.Close()
	require.NoError(t, c.Shutdown())
	assert.Empty(t, errs)

	assert.NoFileExists(t, path)
	f, err := os.Open(path + ".gz")
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

// TestZstdConverter verifies zstd backups
func TestZstdConverter(t *testing.T) {
	path, content := writeSample(t)

	c, err := ParseConverter("zstd")
	require.NoError(t, err)
	assert.Equal(t, ".zst", c.BackupSuffix())

	c.Open(path)
	c.Close()
	c.Close() // nothing open, no second conversion
	require.NoError(t, c.Shutdown())

	assert.NoFileExists(t, path)
	data, err := os.ReadFile(path + ".zst")
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := dec.DecodeAll(data, nil)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

// TestConverterErrors verifies reporting of failed conversions and unknown names
func TestConverterErrors(t *testing.T) {
	errCh := make(chan error, 1)
	c, err := ParseConverter("gzip", OnConvertError(func(err error) { errCh <- err }))
	require.NoError(t, err)
	c.Open(filepath.Join(t.TempDir(), "vanished.log"))
	c.Close()
	require.NoError(t, c.Shutdown())
	assert.Error(t, <-errCh)

	_, err = ParseConverter("rar")
	assert.Error(t, err)

	nop, err := ParseConverter("")
	require.NoError(t, err)
	assert.Equal(t, "", nop.BackupSuffix())
	assert.IsType(t, NopConverter{}, nop)
}
