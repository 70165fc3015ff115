// FILE: lixenwraith/logpipe/writer/logcat_test.go
//go:build unix

package writer

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

func listenLogd(t *testing.T) (*net.UnixConn, string) {
	t.Helper()
	// Socket paths are limited to about 100 bytes, TempDir can be longer
	dir, err := os.MkdirTemp("", "logd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "logdw")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, path
}

// TestLogcatPacket verifies the logd datagram layout
func TestLogcatPacket(t *testing.T) {
	conn, path := listenLogd(t)
	w := mustNew(t, "logcat", props.Map{"socket": path}, testOptions(ModeSync))

	tests := []struct {
		tag      string
		level    entry.Level
		prio     byte
		expected string
	}{
		{"", entry.LevelInfo, 4, "logpipe"},
		{"net", entry.LevelError, 6, "net"},
		{"ui", entry.LevelTrace, 2, "ui"},
	}
	buf := make([]byte, 8192)
	for _, tt := range tests {
		e := newTestEntry(tt.level, "hello")
		e.Tag = tt.tag
		e.Thread = &entry.Thread{ID: 42, Name: "main"}
		require.NoError(t, w.Write(e))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		n, err := conn.Read(buf)
		require.NoError(t, err)
		packet := buf[:n]

		require.Greater(t, len(packet), 12)
		assert.Equal(t, byte(0), packet[0])
		assert.Equal(t, uint16(42), binary.LittleEndian.Uint16(packet[1:3]))
		assert.Equal(t, uint32(testTime.Unix()), binary.LittleEndian.Uint32(packet[3:7]))
		assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(packet[7:11]))
		assert.Equal(t, tt.prio, packet[11])
		assert.Equal(t, tt.expected+"\x00hello\x00", string(packet[12:]))
	}
}

// TestLogcatLimits verifies payload truncation and the tag pattern
func TestLogcatLimits(t *testing.T) {
	conn, path := listenLogd(t)
	w := mustNew(t, "logcat", props.Map{"socket": path, "tagname": "app-{level}"}, testOptions(ModeAsync))

	require.NoError(t, w.Write(newTestEntry(entry.LevelWarn, strings.Repeat("z", 10000))))
	buf := make([]byte, 16384)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	payload := buf[11:n]
	assert.Len(t, payload, maxLogcatPayload)
	assert.Equal(t, byte(5), payload[0])
	assert.True(t, strings.HasPrefix(string(payload[1:]), "app-WARN\x00zzz"))
	assert.Equal(t, byte(0), payload[len(payload)-1])
}

// TestLogcatMissingDaemon verifies loss accounting without a log daemon
func TestLogcatMissingDaemon(t *testing.T) {
	opts := testOptions(ModeSync)
	w := mustNew(t, "logcat", props.Map{"socket": filepath.Join(t.TempDir(), "missing")}, opts)
	require.NoError(t, w.Write(newTestEntry(entry.LevelInfo, "nobody listens")))
	assert.Equal(t, uint64(1), w.(*logcatWriter).Lost())
}
