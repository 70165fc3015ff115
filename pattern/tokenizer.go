// FILE: lixenwraith/logpipe/pattern/tokenizer.go
package pattern

import (
	"strconv"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe/props"
)

var keywords = map[string]Kind{
	"date":         KindDate,
	"timestamp":    KindTimestamp,
	"uptime":       KindUptime,
	"pid":          KindProcessID,
	"thread":       KindThreadName,
	"thread-id":    KindThreadID,
	"context":      KindContext,
	"class":        KindClass,
	"class-name":   KindClassName,
	"package":      KindPackage,
	"method":       KindMethod,
	"file":         KindFile,
	"line":         KindLine,
	"tag":          KindTag,
	"level":        KindLevel,
	"message":      KindMessage,
	"message-only": KindMessageOnly,
	"exception":    KindException,
}

// tokenize splits pattern into literal and placeholder tokens. Adjacent literal
// text, including escaped braces, is merged into one token.
func tokenize(pattern string, loc *time.Location) ([]Token, error) {
	var tokens []Token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, Token{Kind: KindLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				literal.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, props.Errorf("format", "unclosed '{' at position %d in pattern '%s'", i, pattern)
			}
			body := pattern[i+1 : i+1+end]
			if strings.IndexByte(body, '{') >= 0 {
				return nil, props.Errorf("format", "nested '{' at position %d in pattern '%s'", i, pattern)
			}
			tok, err := parsePlaceholder(body, loc)
			if err != nil {
				return nil, err
			}
			flush()
			tokens = append(tokens, tok)
			i += end + 1
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			return nil, props.Errorf("format", "unbalanced '}' at position %d in pattern '%s'", i, pattern)
		default:
			literal.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

// parsePlaceholder parses "keyword[: options][|modifier=value...]"
func parsePlaceholder(body string, loc *time.Location) (Token, error) {
	segments := strings.Split(body, "|")
	head := strings.TrimSpace(segments[0])

	name, options := head, ""
	if idx := strings.IndexByte(head, ':'); idx >= 0 {
		name = strings.TrimSpace(head[:idx])
		options = strings.TrimSpace(head[idx+1:])
	}

	kind, ok := keywords[name]
	if !ok {
		return Token{}, props.Errorf("format", "unknown placeholder '{%s}'", name)
	}

	tok := Token{Kind: kind}
	switch kind {
	case KindDate:
		dl, err := CompileDate(options, loc)
		if err != nil {
			return Token{}, props.Errorf("format", "%v", err)
		}
		tok.date = dl
	case KindTimestamp:
		switch options {
		case "", "seconds":
			tok.text = "seconds"
		case "milliseconds":
			tok.text = "milliseconds"
		default:
			return Token{}, props.Errorf("format", "invalid timestamp unit '%s' (use seconds or milliseconds)", options)
		}
	case KindContext:
		key, def, _ := strings.Cut(options, ",")
		tok.text = strings.TrimSpace(key)
		tok.def = strings.TrimSpace(def)
		if tok.text == "" {
			return Token{}, props.Errorf("format", "{context} requires a key, e.g. {context: user}")
		}
	default:
		if options != "" {
			return Token{}, props.Errorf("format", "placeholder '{%s}' does not accept options", name)
		}
	}

	for _, mod := range segments[1:] {
		for _, kv := range strings.Split(mod, ",") {
			key, value, found := strings.Cut(kv, "=")
			key = strings.TrimSpace(key)
			if !found {
				return Token{}, props.Errorf("format", "invalid modifier '%s' in '{%s}', expected key=value", kv, body)
			}
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return Token{}, props.Errorf("format", "modifier '%s' needs a non-negative integer", key)
			}
			switch key {
			case "min-size":
				tok.minSize = n
			case "indent":
				tok.indent = n
			default:
				return Token{}, props.Errorf("format", "unknown modifier '%s' in '{%s}'", key, body)
			}
		}
	}
	return tok, nil
}
