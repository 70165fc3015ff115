// FILE: lixenwraith/logpipe/dynpath/dynpath.go

// Package dynpath resolves file name templates such as
// "logs/{date: yyyy-MM-dd}/app_{count}.log" into concrete paths and finds the
// files an earlier run produced from the same template.
package dynpath

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/lixenwraith/logpipe/pattern"
)

// DefaultDateLayout is used by {date} without options, safe for file names on every platform
const DefaultDateLayout = "yyyy-MM-dd_HH-mm-ss"

type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segDate
	segPID
	segCount
)

type segment struct {
	kind    segmentKind
	literal string
	date    *pattern.DateLayout
}

// DynamicPath is a compiled path template. It is immutable and safe for concurrent use.
type DynamicPath struct {
	template string // cleaned, slash separated
	segments []segment
	root     string // longest directory without placeholders
	depth    int    // separators in template
	matcher  *regexp.Regexp
	hasCount bool
	now      func() time.Time
}

// Option customizes a DynamicPath
type Option func(*DynamicPath)

// WithClock replaces time.Now, for tests and replay
func WithClock(now func() time.Time) Option {
	return func(p *DynamicPath) {
		p.now = now
	}
}

// New compiles template. Supported placeholders are {date}, {date: <layout>}, {pid} and {count}.
func New(template string, opts ...Option) (*DynamicPath, error) {
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("empty path template")
	}
	clean := filepath.ToSlash(filepath.Clean(template))
	p := &DynamicPath{template: clean, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	firstPlaceholder := -1
	rest := clean
	offset := 0
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unclosed '{' in path template '%s'", template)
		}
		if firstPlaceholder < 0 {
			firstPlaceholder = offset + open
		}
		if open > 0 {
			p.segments = append(p.segments, segment{kind: segLiteral, literal: rest[:open]})
		}
		seg, err := parseSegment(rest[open+1 : open+end])
		if err != nil {
			return nil, fmt.Errorf("%w in path template '%s'", err, template)
		}
		if seg.kind == segCount {
			if p.hasCount {
				return nil, fmt.Errorf("path template '%s' may contain {count} only once", template)
			}
			p.hasCount = true
		}
		p.segments = append(p.segments, seg)
		offset += open + end + 1
		rest = rest[open+end+1:]
	}
	if rest != "" {
		p.segments = append(p.segments, segment{kind: segLiteral, literal: rest})
	}

	if firstPlaceholder < 0 {
		p.root = filepath.Dir(filepath.FromSlash(clean))
	} else {
		p.root = filepath.Dir(filepath.FromSlash(clean[:firstPlaceholder]))
	}
	p.depth = strings.Count(clean, "/")

	expr, err := regexp.Compile("^" + p.expression(nil) + "$")
	if err != nil {
		return nil, fmt.Errorf("invalid path template '%s': %w", template, err)
	}
	p.matcher = expr
	return p, nil
}

func parseSegment(body string) (segment, error) {
	name, options, _ := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	options = strings.TrimSpace(options)
	switch name {
	case "date":
		if options == "" {
			options = DefaultDateLayout
		}
		dl, err := pattern.CompileDate(options, nil)
		if err != nil {
			return segment{}, err
		}
		return segment{kind: segDate, date: dl}, nil
	case "pid":
		return segment{kind: segPID}, nil
	case "count":
		return segment{kind: segCount}, nil
	default:
		return segment{}, fmt.Errorf("unknown placeholder '{%s}'", body)
	}
}

// expression builds the regexp source. With fixed set, date and pid segments
// match their current values only.
func (p *DynamicPath) expression(fixed map[int]string) string {
	var sb strings.Builder
	for i, seg := range p.segments {
		if v, ok := fixed[i]; ok {
			sb.WriteString(regexp.QuoteMeta(v))
			continue
		}
		switch seg.kind {
		case segLiteral:
			sb.WriteString(regexp.QuoteMeta(seg.literal))
		case segDate:
			sb.WriteString("(?:" + seg.date.Regexp() + ")")
		case segPID:
			sb.WriteString(`\d+`)
		case segCount:
			sb.WriteString(`(?P<count>\d+)`)
		}
	}
	return sb.String()
}

// Template returns the cleaned template
func (p *DynamicPath) Template() string {
	return filepath.FromSlash(p.template)
}

// Static reports whether the template has no placeholders
func (p *DynamicPath) Static() bool {
	for _, seg := range p.segments {
		if seg.kind != segLiteral {
			return false
		}
	}
	return true
}

// Resolve renders the template for the current time and process. {count} is
// one past the highest count on disk among files that share the rendered
// date and pid, or 0 if there are none.
func (p *DynamicPath) Resolve() (string, error) {
	now := p.now()
	pid := strconv.Itoa(os.Getpid())

	fixed := make(map[int]string)
	countIndex := -1
	for i, seg := range p.segments {
		switch seg.kind {
		case segDate:
			fixed[i] = seg.date.Format(now)
		case segPID:
			fixed[i] = pid
		case segCount:
			countIndex = i
		}
	}

	if countIndex >= 0 {
		// Converted backups carry an extra suffix and still reserve their count
		expr, err := regexp.Compile("^" + p.expression(fixed) + `(?:\.[^/]+)?$`)
		if err != nil {
			return "", err
		}
		next := int64(0)
		err = p.walk(func(path string, _ fs.FileInfo) {
			if m := expr.FindStringSubmatch(path); m != nil {
				if n, err := strconv.ParseInt(m[expr.SubexpIndex("count")], 10, 64); err == nil && n >= next {
					next = n + 1
				}
			}
		})
		if err != nil {
			return "", err
		}
		fixed[countIndex] = strconv.FormatInt(next, 10)
	}

	var sb strings.Builder
	for i, seg := range p.segments {
		if v, ok := fixed[i]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(seg.literal)
		}
	}
	return filepath.FromSlash(sb.String()), nil
}

// IsValid reports whether path, as returned by Resolve or AllFiles, was produced by this template
func (p *DynamicPath) IsValid(path string) bool {
	return p.matcher.MatchString(filepath.ToSlash(filepath.Clean(path)))
}

// walk visits regular files up to the template's depth below root
func (p *DynamicPath) walk(visit func(slashPath string, info fs.FileInfo)) error {
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != p.root {
				return fs.SkipDir
			}
			if os.IsNotExist(err) || path != p.root {
				return nil
			}
			return err
		}
		slash := filepath.ToSlash(path)
		if d.IsDir() {
			if path != p.root && strings.Count(slash, "/") >= p.depth {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(slash, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan '%s': %w", p.root, err)
	}
	return nil
}

// FileTuple pairs a log file with its post-roll backup. Without a backup
// suffix both name the same file. Either may be missing on disk.
type FileTuple struct {
	Original string
	Backup   string

	modTime time.Time
	count   int64
}

// ModTime returns the latest modification time of the pair
func (t FileTuple) ModTime() time.Time {
	return t.modTime
}

// Delete removes both files, missing files are not an error
func (t FileTuple) Delete() error {
	var err error
	for _, path := range []string{t.Original, t.Backup} {
		if path == "" {
			continue
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierr.Append(err, rmErr)
		}
		if t.Backup == t.Original {
			break
		}
	}
	return err
}

// AllFiles lists the files produced by this template, newest first. Pairs are
// ordered by modification time, ties by the embedded count, then by name.
func (p *DynamicPath) AllFiles(backupSuffix string) ([]FileTuple, error) {
	tuples := make(map[string]*FileTuple)
	countGroup := p.matcher.SubexpIndex("count")

	add := func(original string, info fs.FileInfo) *FileTuple {
		t, ok := tuples[original]
		if !ok {
			t = &FileTuple{Original: filepath.FromSlash(original), Backup: filepath.FromSlash(original + backupSuffix)}
			if countGroup >= 0 {
				if m := p.matcher.FindStringSubmatch(original); m != nil {
					t.count, _ = strconv.ParseInt(m[countGroup], 10, 64)
				}
			}
			tuples[original] = t
		}
		if info.ModTime().After(t.modTime) {
			t.modTime = info.ModTime()
		}
		return t
	}

	err := p.walk(func(path string, info fs.FileInfo) {
		if backupSuffix != "" && strings.HasSuffix(path, backupSuffix) {
			if original := strings.TrimSuffix(path, backupSuffix); p.matcher.MatchString(original) {
				add(original, info)
				return
			}
		}
		if p.matcher.MatchString(path) {
			add(path, info)
		}
	})
	if err != nil {
		return nil, err
	}

	files := make([]FileTuple, 0, len(tuples))
	for _, t := range tuples {
		files = append(files, *t)
	}
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.After(b.modTime)
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.Original > b.Original
	})
	return files, nil
}
