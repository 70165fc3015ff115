// FILE: lixenwraith/logpipe/sanitizer/sanitizer.go

// Package sanitizer rewrites control and non-printable characters in rendered
// log text according to a named policy, and escapes strings for JSON output.
package sanitizer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Filter flags for character matching
const (
	FilterNonPrintable uint64 = 1 << iota // runes not printable per strconv.IsPrint, newline and tab excluded
	FilterControl                         // unicode.IsControl
)

// Transform flags for character transformation
const (
	TransformStrip      uint64 = 1 << iota // drop the character
	TransformHexEncode                     // "<XXYY>" of the UTF-8 bytes
	TransformJSONEscape                    // '\n', '\u0000' style escapes
)

// Policy names a preset rule set, selected by the writer "sanitize" property
type Policy string

const (
	PolicyRaw  Policy = "raw"  // passthrough
	PolicyTxt  Policy = "txt"  // hex-encode non-printables, keep line breaks and tabs
	PolicyJSON Policy = "json" // JSON escapes for control characters
)

type rule struct {
	filter    uint64
	transform uint64
}

var policyRules = map[Policy][]rule{
	PolicyRaw:  {},
	PolicyTxt:  {{filter: FilterNonPrintable, transform: TransformHexEncode}},
	PolicyJSON: {{filter: FilterControl, transform: TransformJSONEscape}},
}

// ParsePolicy resolves a policy name, empty selects PolicyRaw
func ParsePolicy(name string) (Policy, error) {
	if name == "" {
		return PolicyRaw, nil
	}
	p := Policy(name)
	if _, ok := policyRules[p]; !ok {
		return "", fmt.Errorf("unknown sanitize policy '%s' (use raw, txt or json)", name)
	}
	return p, nil
}

// Sanitizer applies an ordered list of rules, first match wins.
// A Sanitizer is stateless and safe for concurrent use.
type Sanitizer struct {
	rules []rule
}

// New creates a Sanitizer with the rules of the given policies
func New(policies ...Policy) *Sanitizer {
	s := &Sanitizer{}
	for _, p := range policies {
		s.rules = append(s.rules, policyRules[p]...)
	}
	return s
}

// Rule appends a custom rule
func (s *Sanitizer) Rule(filter, transform uint64) *Sanitizer {
	s.rules = append(s.rules, rule{filter: filter, transform: transform})
	return s
}

// Passthrough reports whether the sanitizer never changes its input
func (s *Sanitizer) Passthrough() bool {
	return s == nil || len(s.rules) == 0
}

// Append sanitizes data and appends the result to buf
func (s *Sanitizer) Append(buf []byte, data []byte) []byte {
	if s.Passthrough() {
		return append(buf, data...)
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		matched := false
		for _, rl := range s.rules {
			if matches(r, rl.filter) {
				buf = transform(buf, data[i:i+size], r, rl.transform)
				matched = true
				break
			}
		}
		if !matched {
			buf = append(buf, data[i:i+size]...)
		}
		i += size
	}
	return buf
}

// Sanitize is Append for strings
func (s *Sanitizer) Sanitize(data string) string {
	if s.Passthrough() {
		return data
	}
	return string(s.Append(make([]byte, 0, len(data)+8), []byte(data)))
}

func matches(r rune, filter uint64) bool {
	if filter&FilterNonPrintable != 0 && r != '\n' && r != '\t' && !strconv.IsPrint(r) {
		return true
	}
	if filter&FilterControl != 0 && unicode.IsControl(r) {
		return true
	}
	return false
}

func transform(buf []byte, raw []byte, r rune, t uint64) []byte {
	switch {
	case t&TransformStrip != 0:
		return buf
	case t&TransformHexEncode != 0:
		buf = append(buf, '<')
		buf = hex.AppendEncode(buf, raw)
		return append(buf, '>')
	case t&TransformJSONEscape != 0:
		return appendJSONRune(buf, r, raw)
	default:
		return append(buf, raw...)
	}
}

func appendJSONRune(buf []byte, r rune, raw []byte) []byte {
	switch r {
	case '\n':
		return append(buf, '\\', 'n')
	case '\r':
		return append(buf, '\\', 'r')
	case '\t':
		return append(buf, '\\', 't')
	case '\b':
		return append(buf, '\\', 'b')
	case '\f':
		return append(buf, '\\', 'f')
	case '"':
		return append(buf, '\\', '"')
	case '\\':
		return append(buf, '\\', '\\')
	}
	if r < 0x20 || r == 0x7f || r == utf8.RuneError && len(raw) == 1 {
		buf = append(buf, '\\', 'u')
		return appendHex4(buf, r)
	}
	return append(buf, raw...)
}

func appendHex4(buf []byte, r rune) []byte {
	const digits = "0123456789abcdef"
	if r == utf8.RuneError {
		r = 0xfffd
	}
	return append(buf, digits[r>>12&0xf], digits[r>>8&0xf], digits[r>>4&0xf], digits[r&0xf])
}

// AppendJSONString appends s as a quoted JSON string
func AppendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= ' ' && c != '"' && c != '\\' && c < utf8.RuneSelf && c != 0x7f {
			start := i
			for i < len(s) && s[i] >= ' ' && s[i] != '"' && s[i] != '\\' && s[i] < utf8.RuneSelf && s[i] != 0x7f {
				i++
			}
			buf = append(buf, s[start:i]...)
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		buf = appendJSONRune(buf, r, []byte(s[i:i+size]))
		i += size
	}
	return append(buf, '"')
}
