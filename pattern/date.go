// FILE: lixenwraith/logpipe/pattern/date.go
package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayout is used by {date} tokens and {date} path placeholders without options
const DefaultDateLayout = "yyyy-MM-dd HH:mm:ss"

type datePartKind uint8

const (
	dateLiteral datePartKind = iota
	dateYear
	dateMonth
	dateDay
	dateDayOfYear
	dateHour24
	dateHour12
	dateMinute
	dateSecond
	dateFraction
	dateAmPm
	dateWeekday
	dateZoneOffset // Z: +0100
	dateZoneISO    // X, XX, XXX
	dateZoneAbbrev // z
)

type datePart struct {
	kind    datePartKind
	width   int
	literal string
}

// DateLayout is a compiled date format in the letter convention shared with
// file name templates (yyyy-MM-dd HH:mm:ss.SSS). Rendering never re-parses.
type DateLayout struct {
	source string
	parts  []datePart
	loc    *time.Location
}

// CompileDate compiles layout. An empty layout selects DefaultDateLayout.
func CompileDate(layout string, loc *time.Location) (*DateLayout, error) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	dl := &DateLayout{source: layout, loc: loc}
	runes := []rune(layout)
	var literal []rune

	flush := func() {
		if len(literal) > 0 {
			dl.parts = append(dl.parts, datePart{kind: dateLiteral, literal: string(literal)})
			literal = literal[:0]
		}
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		if r == '\'' {
			// Quoted text, '' is a literal quote
			end := i + 1
			if end < len(runes) && runes[end] == '\'' {
				literal = append(literal, '\'')
				i += 2
				continue
			}
			for end < len(runes) {
				if runes[end] == '\'' {
					if end+1 < len(runes) && runes[end+1] == '\'' {
						literal = append(literal, '\'')
						end += 2
						continue
					}
					break
				}
				literal = append(literal, runes[end])
				end++
			}
			if end >= len(runes) {
				return nil, fmt.Errorf("unterminated quote in date layout '%s'", layout)
			}
			i = end + 1
			continue
		}

		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			literal = append(literal, r)
			i++
			continue
		}

		width := 1
		for i+width < len(runes) && runes[i+width] == r {
			width++
		}

		var kind datePartKind
		switch r {
		case 'y':
			kind = dateYear
		case 'M':
			kind = dateMonth
		case 'd':
			kind = dateDay
		case 'D':
			kind = dateDayOfYear
		case 'H':
			kind = dateHour24
		case 'h':
			kind = dateHour12
		case 'm':
			kind = dateMinute
		case 's':
			kind = dateSecond
		case 'S':
			kind = dateFraction
			if width > 9 {
				return nil, fmt.Errorf("fraction of second supports up to 9 digits in date layout '%s'", layout)
			}
		case 'a':
			kind = dateAmPm
		case 'E':
			kind = dateWeekday
		case 'Z':
			kind = dateZoneOffset
		case 'X':
			kind = dateZoneISO
		case 'z':
			kind = dateZoneAbbrev
		default:
			return nil, fmt.Errorf("unknown date pattern letter '%c' in date layout '%s'", r, layout)
		}
		flush()
		dl.parts = append(dl.parts, datePart{kind: kind, width: width})
		i += width
	}
	flush()
	return dl, nil
}

// String returns the source layout
func (dl *DateLayout) String() string {
	return dl.source
}

// Format renders t
func (dl *DateLayout) Format(t time.Time) string {
	return string(dl.Append(nil, t))
}

// Append renders t into buf
func (dl *DateLayout) Append(buf []byte, t time.Time) []byte {
	if dl.loc != nil {
		t = t.In(dl.loc)
	}
	for _, p := range dl.parts {
		switch p.kind {
		case dateLiteral:
			buf = append(buf, p.literal...)
		case dateYear:
			y := t.Year()
			if p.width == 2 {
				buf = appendPadded(buf, y%100, 2)
			} else {
				buf = appendPadded(buf, y, p.width)
			}
		case dateMonth:
			switch {
			case p.width >= 4:
				buf = append(buf, t.Month().String()...)
			case p.width == 3:
				buf = append(buf, t.Month().String()[:3]...)
			default:
				buf = appendPadded(buf, int(t.Month()), p.width)
			}
		case dateDay:
			buf = appendPadded(buf, t.Day(), p.width)
		case dateDayOfYear:
			buf = appendPadded(buf, t.YearDay(), p.width)
		case dateHour24:
			buf = appendPadded(buf, t.Hour(), p.width)
		case dateHour12:
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			buf = appendPadded(buf, h, p.width)
		case dateMinute:
			buf = appendPadded(buf, t.Minute(), p.width)
		case dateSecond:
			buf = appendPadded(buf, t.Second(), p.width)
		case dateFraction:
			frac := t.Nanosecond()
			for range 9 - p.width {
				frac /= 10
			}
			buf = appendPadded(buf, frac, p.width)
		case dateAmPm:
			if t.Hour() < 12 {
				buf = append(buf, "AM"...)
			} else {
				buf = append(buf, "PM"...)
			}
		case dateWeekday:
			if p.width >= 4 {
				buf = append(buf, t.Weekday().String()...)
			} else {
				buf = append(buf, t.Weekday().String()[:3]...)
			}
		case dateZoneOffset:
			buf = t.AppendFormat(buf, "-0700")
		case dateZoneISO:
			switch p.width {
			case 1:
				buf = t.AppendFormat(buf, "Z07")
			case 2:
				buf = t.AppendFormat(buf, "Z0700")
			default:
				buf = t.AppendFormat(buf, "Z07:00")
			}
		case dateZoneAbbrev:
			buf = t.AppendFormat(buf, "MST")
		}
	}
	return buf
}

// Precision returns the smallest unit the layout distinguishes, used to decide
// whether two timestamps render to the same text
func (dl *DateLayout) Precision() time.Duration {
	precision := 365 * 24 * time.Hour
	for _, p := range dl.parts {
		var d time.Duration
		switch p.kind {
		case dateMonth:
			d = 28 * 24 * time.Hour
		case dateDay, dateDayOfYear, dateWeekday:
			d = 24 * time.Hour
		case dateAmPm:
			d = 12 * time.Hour
		case dateHour24, dateHour12:
			d = time.Hour
		case dateMinute:
			d = time.Minute
		case dateSecond:
			d = time.Second
		case dateFraction:
			d = time.Duration(1)
			for range 9 - p.width {
				d *= 10
			}
		default:
			continue
		}
		precision = min(precision, d)
	}
	return precision
}

// Regexp returns a regular expression source matching any rendering of the layout
func (dl *DateLayout) Regexp() string {
	var sb strings.Builder
	digits := func(width int) {
		sb.WriteString(`\d{`)
		sb.WriteString(strconv.Itoa(width))
		sb.WriteString(",}")
	}
	for _, p := range dl.parts {
		switch p.kind {
		case dateLiteral:
			sb.WriteString(regexp.QuoteMeta(p.literal))
		case dateYear:
			if p.width == 2 {
				sb.WriteString(`\d{2}`)
			} else {
				digits(p.width)
			}
		case dateMonth:
			switch {
			case p.width >= 4:
				sb.WriteString(monthNames(0))
			case p.width == 3:
				sb.WriteString(monthNames(3))
			default:
				digits(p.width)
			}
		case dateFraction:
			sb.WriteString(`\d{`)
			sb.WriteString(strconv.Itoa(p.width))
			sb.WriteString("}")
		case dateAmPm:
			sb.WriteString(`(?:AM|PM)`)
		case dateWeekday:
			if p.width >= 4 {
				sb.WriteString(weekdayNames(0))
			} else {
				sb.WriteString(weekdayNames(3))
			}
		case dateZoneOffset:
			sb.WriteString(`[+-]\d{4}`)
		case dateZoneISO:
			sb.WriteString(`(?:Z|[+-]\d{2}(?::?\d{2})?)`)
		case dateZoneAbbrev:
			sb.WriteString(`[A-Za-z0-9+-]+`)
		default:
			digits(p.width)
		}
	}
	return sb.String()
}

// monthNames returns an alternation of month names, cut to n letters when n > 0
func monthNames(n int) string {
	names := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		names = append(names, m.String())
	}
	return nameAlternation(names, n)
}

// weekdayNames returns an alternation of weekday names, cut to n letters when n > 0
func weekdayNames(n int) string {
	names := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		names = append(names, d.String())
	}
	return nameAlternation(names, n)
}

func nameAlternation(names []string, n int) string {
	for i, name := range names {
		if n > 0 {
			name = name[:n]
		}
		names[i] = regexp.QuoteMeta(name)
	}
	return "(?:" + strings.Join(names, "|") + ")"
}

func appendPadded(buf []byte, v, width int) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	var tmp [20]byte
	digits := strconv.AppendInt(tmp[:0], int64(v), 10)
	for i := len(digits); i < width; i++ {
		buf = append(buf, '0')
	}
	return append(buf, digits...)
}
