// FILE: lixenwraith/logpipe/entry/entry_test.go
package entry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel verifies level name parsing and ordering
func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warning": LevelWarn,
		"Warn":    LevelWarn,
		"error":   LevelError,
		"off":     LevelOff,
	}
	for in, expected := range tests {
		lvl, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, lvl, in)
	}

	_, err := ParseLevel("fatal")
	assert.Error(t, err)

	assert.True(t, LevelTrace < LevelDebug && LevelDebug < LevelInfo && LevelInfo < LevelWarn && LevelWarn < LevelError)
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

// TestContextValue verifies that the last value for a repeated key wins
func TestContextValue(t *testing.T) {
	e := &Entry{Context: []KV{{"user", "a"}, {"req", "1"}, {"user", "b"}}}
	v, ok := e.ContextValue("user")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = e.ContextValue("missing")
	assert.False(t, ok)
}

// TestRenderedCache verifies the cache is set once and keyed
func TestRenderedCache(t *testing.T) {
	e := &Entry{}
	calls := 0
	render := func() string {
		calls++
		return fmt.Sprintf("r%d", calls)
	}

	assert.Equal(t, "r1", e.Rendered("a", render))
	assert.Equal(t, "r1", e.Rendered("a", render))
	assert.Equal(t, 1, calls)

	// A different key is rendered each time and never replaces the cached one
	assert.Equal(t, "r2", e.Rendered("b", render))
	assert.Equal(t, "r3", e.Rendered("b", render))
	assert.Equal(t, "r1", e.Rendered("a", render))
}

type chainErr struct {
	msg   string
	cause error
}

func (c *chainErr) Error() string { return c.msg }
func (c *chainErr) Unwrap() error { return c.cause }

// TestExceptionText verifies rendering of wrapped error chains
func TestExceptionText(t *testing.T) {
	assert.Equal(t, "", ExceptionText(nil))

	root := errors.New("disk full")
	wrapped := fmt.Errorf("write failed: %w", root)
	assert.Equal(t, "write failed: disk full", ExceptionText(wrapped))

	chained := &chainErr{msg: "flush failed", cause: &chainErr{msg: "io error", cause: root}}
	assert.Equal(t, "flush failed\nCaused by: io error\nCaused by: disk full", ExceptionText(chained))

	joined := &chainErr{msg: "close", cause: errors.Join(errors.New("first"), errors.New("second"))}
	assert.Equal(t, "close\nCaused by: first\nsecond\nCaused by: first", ExceptionText(joined))

	e := &Entry{Message: "saving", Exception: chained}
	assert.Equal(t, "saving: flush failed\nCaused by: io error\nCaused by: disk full", e.MessageWithException())
	e.Message = ""
	assert.Equal(t, ExceptionText(chained), e.MessageWithException())
	e.Exception = nil
	assert.Equal(t, "", e.MessageWithException())
}

// TestExceptionTextCycle verifies that a self-referencing chain terminates
func TestExceptionTextCycle(t *testing.T) {
	a := &chainErr{msg: "a"}
	b := &chainErr{msg: "b", cause: a}
	a.cause = b
	text := ExceptionText(a)
	assert.NotEmpty(t, text)
}

// TestExceptionTextTypedNil verifies that nil pointer errors render instead of panicking
func TestExceptionTextTypedNil(t *testing.T) {
	var nilErr *chainErr
	assert.NotPanics(t, func() {
		assert.Equal(t, "<nil>", ExceptionText(nilErr))
	})

	wrapped := &chainErr{msg: "write failed", cause: nilErr}
	assert.NotPanics(t, func() {
		assert.Equal(t, "write failed\nCaused by: <nil>", ExceptionText(wrapped))
	})

	e := &Entry{Message: "saving", Exception: nilErr}
	assert.Equal(t, "saving: <nil>", e.MessageWithException())
}

// TestSafeText verifies panic recovery of text methods
func TestSafeText(t *testing.T) {
	assert.Equal(t, "ok", SafeText(nil, func() string { return "ok" }))

	var nilErr *chainErr
	assert.Equal(t, "<nil>", SafeText(nilErr, func() string { return nilErr.msg }))

	text := SafeText(&chainErr{}, func() string { panic("boom") })
	assert.Equal(t, "%!PANIC=boom", text)
}

// TestValues verifies required value set helpers
func TestValues(t *testing.T) {
	v := ValueLevel | ValueMessage
	assert.True(t, v.Has(ValueLevel))
	assert.False(t, v.Has(ValueLevel|ValueDate))
	assert.False(t, v.NeedsCaller())
	assert.True(t, (v | ValueLine).NeedsCaller())
	assert.Equal(t, "{level,message}", v.String())
	assert.True(t, ValueAll.Has(ValueCaller|ValueTag))
}

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		name   string
		pkg    string
		class  string
		method string
	}{
		{"github.com/a/b.(*Store).Put", "github.com/a/b", "github.com/a/b.Store", "Put"},
		{"github.com/a/b.Store.Get", "github.com/a/b", "github.com/a/b.Store", "Get"},
		{"github.com/a/b.Open", "github.com/a/b", "github.com/a/b", "Open"},
		{"github.com/a/b.Open.func1", "github.com/a/b", "github.com/a/b", "Open"},
		{"github.com/a/b.(*Cache[...]).Load", "github.com/a/b", "github.com/a/b.Cache", "Load"},
		{"main.main", "main", "main", "main"},
	}
	for _, tt := range tests {
		pkg, class, method := splitFuncName(tt.name)
		assert.Equal(t, tt.pkg, pkg, tt.name)
		assert.Equal(t, tt.class, class, tt.name)
		assert.Equal(t, tt.method, method, tt.name)
	}

	assert.Equal(t, "Store", SimpleClassName("github.com/a/b.Store"))
	assert.Equal(t, "b", SimpleClassName("github.com/a/b"))
}

type probe struct{}

//go:noinline
func (probe) where() Caller { return ResolveCaller(0) }

//go:noinline
func plainWhere() Caller { return ResolveCaller(0) }

// TestResolveCaller verifies that one stack walk fills all caller fields
func TestResolveCaller(t *testing.T) {
	c := probe{}.where()
	assert.Equal(t, "github.com/lixenwraith/logpipe/entry", c.Package)
	assert.Equal(t, "github.com/lixenwraith/logpipe/entry.probe", c.ClassName)
	assert.Equal(t, "where", c.Method)
	assert.Equal(t, "entry_test.go", c.File)
	assert.Greater(t, c.Line, 0)

	c = plainWhere()
	assert.Equal(t, "github.com/lixenwraith/logpipe/entry", c.ClassName)
	assert.Equal(t, "plainWhere", c.Method)
}
