// FILE: lixenwraith/logpipe/policy/policy.go

// Package policy decides when a rolling file writer starts a new file, and
// converts closed files into their backup form.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Policy is evaluated per rolling writer instance. ContinueExistingFile is
// called once against the file found on disk at construction,
// ContinueCurrentFile before every write with the bytes about to be written,
// and Reset right after a new file was opened.
type Policy interface {
	ContinueExistingFile(path string) bool
	ContinueCurrentFile(data []byte) bool
	Reset()
}

// Option customizes policy construction
type Option func(*options)

type options struct {
	now func() time.Time
	loc *time.Location
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLocation sets the time zone of period boundaries, default time.Local
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type constructor func(arg string, o options) (Policy, error)

var registry = map[string]constructor{
	"startup": newStartup,
	"size":    newSize,
	"hourly":  newHourly,
	"daily":   newDaily,
	"weekly":  newWeekly,
	"monthly": newMonthly,
}

// Names returns the registered policy names
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse builds the policies of a comma separated list such as "startup, size: 10mb, daily: 03:00"
func Parse(list string, opts ...Option) ([]Policy, error) {
	o := buildOptions(opts)
	var policies []Policy
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, arg, _ := strings.Cut(item, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		ctor, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown policy '%s' (use %s)", name, strings.Join(Names(), ", "))
		}
		p, err := ctor(strings.TrimSpace(arg), o)
		if err != nil {
			return nil, fmt.Errorf("policy '%s': %w", name, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// ContinueExisting reports whether every policy accepts the existing file
func ContinueExisting(policies []Policy, path string) bool {
	for _, p := range policies {
		if !p.ContinueExistingFile(path) {
			return false
		}
	}
	return true
}

// ContinueCurrent reports whether every policy accepts data for the current
// file. All policies are consulted so their counters stay consistent.
func ContinueCurrent(policies []Policy, data []byte) bool {
	ok := true
	for _, p := range policies {
		if !p.ContinueCurrentFile(data) {
			ok = false
		}
	}
	return ok
}

// accounter is implemented by policies that track bytes written outside of
// entries, such as a charset header
type accounter interface {
	Account(n int64)
}

// AccountAll records n bytes already present in a fresh file. The first entry
// of the file is still always accepted.
func AccountAll(policies []Policy, n int64) {
	if n <= 0 {
		return
	}
	for _, p := range policies {
		if a, ok := p.(accounter); ok {
			a.Account(n)
		}
	}
}

// ResetAll resets every policy
func ResetAll(policies []Policy) {
	for _, p := range policies {
		p.Reset()
	}
}

// startupPolicy never continues a file from a previous run
type startupPolicy struct{}

func newStartup(arg string, _ options) (Policy, error) {
	if arg != "" {
		return nil, fmt.Errorf("takes no argument")
	}
	return startupPolicy{}, nil
}

func (startupPolicy) ContinueExistingFile(string) bool { return false }
func (startupPolicy) ContinueCurrentFile([]byte) bool  { return true }
func (startupPolicy) Reset()                           {}
