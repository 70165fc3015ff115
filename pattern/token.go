// FILE: lixenwraith/logpipe/pattern/token.go
package pattern

import (
	"strconv"
	"strings"
	"time"

	"github.com/lixenwraith/logpipe/entry"
)

// Kind identifies what a token renders
type Kind uint8

const (
	KindLiteral Kind = iota
	KindDate
	KindTimestamp
	KindUptime
	KindProcessID
	KindThreadName
	KindThreadID
	KindContext
	KindClass
	KindClassName
	KindPackage
	KindMethod
	KindFile
	KindLine
	KindTag
	KindLevel
	KindMessage
	KindMessageOnly
	KindException
)

var kindNames = map[Kind]string{
	KindLiteral:     "literal",
	KindDate:        "date",
	KindTimestamp:   "timestamp",
	KindUptime:      "uptime",
	KindProcessID:   "pid",
	KindThreadName:  "thread",
	KindThreadID:    "thread-id",
	KindContext:     "context",
	KindClass:       "class",
	KindClassName:   "class-name",
	KindPackage:     "package",
	KindMethod:      "method",
	KindFile:        "file",
	KindLine:        "line",
	KindTag:         "tag",
	KindLevel:       "level",
	KindMessage:     "message",
	KindMessageOnly: "message-only",
	KindException:   "exception",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// processStart anchors the {uptime} token
var processStart = time.Now()

// Token is one compiled element of a pattern. Tokens are immutable after compilation.
type Token struct {
	Kind Kind

	text    string      // literal text, context key, timestamp unit
	def     string      // context default
	date    *DateLayout // KindDate
	minSize int
	indent  int
}

// RequiredValues returns the entry fields this token reads
func (t *Token) RequiredValues() entry.Values {
	switch t.Kind {
	case KindDate, KindTimestamp, KindUptime:
		return entry.ValueDate
	case KindProcessID:
		return entry.ValueProcessID
	case KindThreadName, KindThreadID:
		return entry.ValueThread
	case KindContext:
		return entry.ValueContext
	case KindClass, KindClassName, KindPackage:
		return entry.ValueClass
	case KindMethod:
		return entry.ValueMethod
	case KindFile:
		return entry.ValueFile
	case KindLine:
		return entry.ValueLine
	case KindTag:
		return entry.ValueTag
	case KindLevel:
		return entry.ValueLevel
	case KindMessage:
		return entry.ValueMessage | entry.ValueException
	case KindMessageOnly:
		return entry.ValueMessage
	case KindException:
		return entry.ValueException
	default:
		return 0
	}
}

// Render appends the token's text for e to buf
func (t *Token) Render(e *entry.Entry, buf []byte) []byte {
	start := len(buf)
	buf = t.render(e, buf)

	if t.indent > 0 {
		buf = indentLines(buf, start, t.indent)
	}
	if t.minSize > 0 {
		for n := len([]rune(string(buf[start:]))); n < t.minSize; n++ {
			buf = append(buf, ' ')
		}
	}
	return buf
}

func (t *Token) render(e *entry.Entry, buf []byte) []byte {
	switch t.Kind {
	case KindLiteral:
		return append(buf, t.text...)
	case KindDate:
		if e.Timestamp.IsZero() {
			return buf
		}
		return t.date.Append(buf, e.Timestamp)
	case KindTimestamp:
		if e.Timestamp.IsZero() {
			return buf
		}
		if t.text == "milliseconds" {
			return strconv.AppendInt(buf, e.Timestamp.UnixMilli(), 10)
		}
		return strconv.AppendInt(buf, e.Timestamp.Unix(), 10)
	case KindUptime:
		if e.Timestamp.IsZero() {
			return buf
		}
		return appendUptime(buf, e.Timestamp.Sub(processStart))
	case KindProcessID:
		return append(buf, e.ProcessID...)
	case KindThreadName:
		if e.Thread == nil {
			return buf
		}
		return append(buf, e.Thread.Name...)
	case KindThreadID:
		if e.Thread == nil {
			return buf
		}
		return strconv.AppendInt(buf, e.Thread.ID, 10)
	case KindContext:
		if v, ok := e.ContextValue(t.text); ok {
			return append(buf, v...)
		}
		return append(buf, t.def...)
	case KindClass:
		return append(buf, e.ClassName...)
	case KindClassName:
		return append(buf, entry.SimpleClassName(e.ClassName)...)
	case KindPackage:
		return append(buf, packageOf(e.ClassName)...)
	case KindMethod:
		return append(buf, e.MethodName...)
	case KindFile:
		return append(buf, e.FileName...)
	case KindLine:
		if e.LineNumber <= 0 {
			return buf
		}
		return strconv.AppendInt(buf, int64(e.LineNumber), 10)
	case KindTag:
		return append(buf, e.Tag...)
	case KindLevel:
		return append(buf, e.Level.String()...)
	case KindMessage:
		return append(buf, e.MessageWithException()...)
	case KindMessageOnly:
		return append(buf, e.Message...)
	case KindException:
		return append(buf, entry.ExceptionText(e.Exception)...)
	default:
		return buf
	}
}

// packageOf strips the receiver type from a class name. Plain functions
// already carry the package as class name.
func packageOf(className string) string {
	slash := strings.LastIndexByte(className, '/')
	rest := className[slash+1:]
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return className[:slash+1+i]
	}
	return className
}

func appendUptime(buf []byte, d time.Duration) []byte {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	buf = appendPadded(buf, hours, 2)
	buf = append(buf, ':')
	buf = appendPadded(buf, int(d/time.Minute)%60, 2)
	buf = append(buf, ':')
	return appendPadded(buf, int(d/time.Second)%60, 2)
}

func indentLines(buf []byte, start, indent int) []byte {
	text := string(buf[start:])
	if !strings.Contains(text, "\n") {
		return buf
	}
	pad := strings.Repeat(" ", indent)
	return append(buf[:start], strings.ReplaceAll(text, "\n", "\n"+pad)...)
}
