// FILE: lixenwraith/logpipe/entry/entry.go

// Package entry defines the log entry record handed from the engine to writers,
// the level enum, and the required-value negotiation between them.
package entry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Thread identifies the logical producer of an entry.
// Go does not expose goroutine identity, producers name themselves.
type Thread struct {
	ID   int64
	Name string
}

// KV is a single context pair. Context is ordered, keys may repeat.
type KV struct {
	Key   string
	Value string
}

// Entry holds everything a renderer might need. Fields not requested by any
// writer are left at their zero value. An Entry must not be mutated after it
// was handed to a writer, except through Rendered.
type Entry struct {
	Timestamp  time.Time
	ProcessID  string
	Thread     *Thread
	Context    []KV
	ClassName  string
	MethodName string
	FileName   string
	LineNumber int
	Level      Level
	Tag        string
	Message    string
	Exception  error

	renderedKey string
	rendered    string
	hasRendered bool
}

// ContextValue returns the last value stored for key
func (e *Entry) ContextValue(key string) (string, bool) {
	for i := len(e.Context) - 1; i >= 0; i-- {
		if e.Context[i].Key == key {
			return e.Context[i].Value, true
		}
	}
	return "", false
}

// Rendered returns the cached rendering for key, calling render on first use.
// Only the first key is cached, later keys are rendered on every call.
func (e *Entry) Rendered(key string, render func() string) string {
	if e.hasRendered {
		if e.renderedKey == key {
			return e.rendered
		}
		return render()
	}
	e.rendered = render()
	e.renderedKey = key
	e.hasRendered = true
	return e.rendered
}

// ExceptionText renders the exception chain, one cause per line
func ExceptionText(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(SafeText(err, err.Error))
	seen := 0
	for cause := causeOf(err); cause != nil && seen < 32; cause = causeOf(cause) {
		msg := SafeText(cause, cause.Error)
		// Wrapped errors usually repeat the cause message, skip pure repeats
		if strings.HasSuffix(sb.String(), msg) {
			seen++
			continue
		}
		sb.WriteString("\nCaused by: ")
		sb.WriteString(msg)
		seen++
	}
	return sb.String()
}

// SafeText returns text() and recovers from its panics the way fmt does:
// a nil pointer receiver renders "<nil>", any other panic a %!PANIC marker
func SafeText(v any, text func() string) (s string) {
	defer func() {
		if r := recover(); r != nil {
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
				s = "<nil>"
				return
			}
			s = fmt.Sprintf("%%!PANIC=%v", r)
		}
	}()
	return text()
}

func causeOf(err error) (next error) {
	defer func() {
		if recover() != nil {
			next = nil
		}
	}()
	if cause := errors.Unwrap(err); cause != nil {
		return cause
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := multi.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

// MessageWithException joins message and exception text the way the message token renders them
func (e *Entry) MessageWithException() string {
	if e.Exception == nil {
		return e.Message
	}
	text := ExceptionText(e.Exception)
	if e.Message == "" {
		return text
	}
	return e.Message + ": " + text
}
