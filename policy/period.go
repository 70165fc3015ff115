// FILE: lixenwraith/logpipe/policy/period.go
package policy

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// periodPolicy starts a new file when a calendar boundary passes
type periodPolicy struct {
	o options

	// last returns the most recent boundary at or before t, following the boundary after b
	last      func(t time.Time) time.Time
	following func(b time.Time) time.Time

	next time.Time
}

func newPeriod(o options, last func(time.Time) time.Time, following func(time.Time) time.Time) *periodPolicy {
	p := &periodPolicy{o: o, last: last, following: following}
	p.Reset()
	return p
}

func (p *periodPolicy) ContinueExistingFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().Before(p.last(p.o.now().In(p.o.loc)))
}

func (p *periodPolicy) ContinueCurrentFile([]byte) bool {
	return p.o.now().Before(p.next)
}

func (p *periodPolicy) Reset() {
	p.next = p.following(p.last(p.o.now().In(p.o.loc)))
}

func newHourly(arg string, o options) (Policy, error) {
	if arg != "" {
		return nil, fmt.Errorf("takes no argument")
	}
	return newPeriod(o,
		func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
		},
		func(b time.Time) time.Time {
			return b.Add(time.Hour)
		},
	), nil
}

// newDaily rolls every day at "HH:mm", default midnight
func newDaily(arg string, o options) (Policy, error) {
	hour, minute := 0, 0
	if arg != "" {
		h, m, ok := strings.Cut(arg, ":")
		var errH, errM error
		hour, errH = strconv.Atoi(strings.TrimSpace(h))
		if ok {
			minute, errM = strconv.Atoi(strings.TrimSpace(m))
		}
		if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid time '%s', expected HH:mm", arg)
		}
	}
	return newPeriod(o,
		func(t time.Time) time.Time {
			b := time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
			if b.After(t) {
				b = time.Date(t.Year(), t.Month(), t.Day()-1, hour, minute, 0, 0, t.Location())
			}
			return b
		},
		func(b time.Time) time.Time {
			return time.Date(b.Year(), b.Month(), b.Day()+1, hour, minute, 0, 0, b.Location())
		},
	), nil
}

// newWeekly rolls at midnight of a weekday, default Monday
func newWeekly(arg string, o options) (Policy, error) {
	day := time.Monday
	if arg != "" {
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if a := strings.ToLower(arg); a == name || a == name[:3] {
				day, found = d, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("invalid weekday '%s'", arg)
		}
	}
	return newPeriod(o,
		func(t time.Time) time.Time {
			back := (int(t.Weekday()) - int(day) + 7) % 7
			return time.Date(t.Year(), t.Month(), t.Day()-back, 0, 0, 0, 0, t.Location())
		},
		func(b time.Time) time.Time {
			return time.Date(b.Year(), b.Month(), b.Day()+7, 0, 0, 0, 0, b.Location())
		},
	), nil
}

func newMonthly(arg string, o options) (Policy, error) {
	if arg != "" {
		return nil, fmt.Errorf("takes no argument")
	}
	return newPeriod(o,
		func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		},
		func(b time.Time) time.Time {
			return time.Date(b.Year(), b.Month()+1, 1, 0, 0, 0, 0, b.Location())
		},
	), nil
}
