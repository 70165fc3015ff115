// FILE: lixenwraith/logpipe/builder_test.go
package logpipe

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/logpipe/props"
	"github.com/lixenwraith/logpipe/writer"
)

// TestBuilder verifies fluent configuration and engine construction
func TestBuilder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "built.log")
	out := &bytes.Buffer{}

	e, err := NewBuilder().
		Level("info").
		WritingThread(true).
		CoalesceMs(1).
		ShutdownTimeoutMs(500).
		ShareRendering(false).
		Timezone("UTC").
		InternalErrorsToStderr(false).
		Writer("file", "file", props.Map{"file": path, "format": "{level} {message}"}).
		Writer("console", "console", props.Map{"stream": "out", "format": "{message}", "writingthread": "false"}).
		Options(WithOutput(out, &bytes.Buffer{})).
		Build()
	require.NoError(t, err)

	cfg := e.Config()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.WritingThread)
	assert.Equal(t, int64(1), cfg.CoalesceMs)
	assert.Equal(t, int64(500), cfg.ShutdownTimeoutMs)
	assert.False(t, cfg.ShareRendering)
	assert.Equal(t, []string{"console", "file"}, cfg.WriterNames())

	e.Log(LevelDebug, "", "hidden")
	e.Log(LevelInfo, "", "built")
	require.NoError(t, e.Shutdown(0))

	assert.Equal(t, []string{"INFO built"}, readLines(t, path))
	assert.Equal(t, "built"+writer.Newline, out.String())
}

// TestBuilderErrors verifies deferred error handling
func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		wantErr string
	}{
		{"invalid level", NewBuilder().Level("chatty"), "invalid level"},
		{"invalid override", NewBuilder().Override("coalesce_ms=soon"), "invalid integer value"},
		{"first error wins", NewBuilder().Level("chatty").Override("unknown=1"), "invalid level"},
		{"writer error", NewBuilder().Writer("f", "file", props.Map{}), "property 'file'"},
		{"validation error", NewBuilder().CoalesceMs(0), "coalesce_ms must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := tt.builder.Build()
			require.Error(t, err)
			assert.Nil(t, e)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestBuilderFromConfig verifies that the source config is copied
func TestBuilderFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "warn"

	b := FromConfig(cfg).Override("level=error")
	require.NoError(t, b.err)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "error", b.cfg.Level)

	e, err := b.Options(WithOutput(&bytes.Buffer{}, &bytes.Buffer{})).Build()
	require.NoError(t, err)
	defer e.Shutdown(time.Second)
	assert.False(t, e.Enabled(LevelWarn, ""), "no writers configured")
}
