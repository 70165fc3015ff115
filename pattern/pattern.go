// FILE: lixenwraith/logpipe/pattern/pattern.go

// Package pattern compiles format patterns such as
// "{date: HH:mm:ss.SSS} {level|min-size=5} [{thread}] {class}.{method}(): {message}"
// into token lists once, and renders log entries against them without re-parsing.
package pattern

import (
	"time"

	"github.com/lixenwraith/logpipe/entry"
)

// DefaultPattern is used by writers without a format property
const DefaultPattern = "{date} [{thread}] {class}.{method}()\n{level}: {message}"

// Pattern is an immutable compiled format pattern
type Pattern struct {
	source   string
	tokens   []Token
	required entry.Values
}

// Option customizes compilation
type Option func(*options)

type options struct {
	loc *time.Location
}

// WithLocation renders dates in loc instead of the entry's own location
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

// Compile parses pattern. Unknown placeholders fail here, never at render time.
func Compile(pattern string, opts ...Option) (*Pattern, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tokens, err := tokenize(pattern, o.loc)
	if err != nil {
		return nil, err
	}

	p := &Pattern{source: pattern, tokens: tokens}
	for i := range p.tokens {
		p.required |= p.tokens[i].RequiredValues()
	}
	return p, nil
}

// MustCompile is Compile that panics on error, for patterns known at build time
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source pattern
func (p *Pattern) String() string {
	return p.source
}

// Tokens returns a copy of the compiled tokens
func (p *Pattern) Tokens() []Token {
	return append([]Token(nil), p.tokens...)
}

// RequiredValues returns the union of the entry fields all tokens read
func (p *Pattern) RequiredValues() entry.Values {
	return p.required
}

// Render appends the rendering of e to buf
func (p *Pattern) Render(e *entry.Entry, buf []byte) []byte {
	for i := range p.tokens {
		buf = p.tokens[i].Render(e, buf)
	}
	return buf
}

// RenderString renders e into a new string
func (p *Pattern) RenderString(e *entry.Entry) string {
	return string(p.Render(e, make([]byte, 0, 128)))
}
