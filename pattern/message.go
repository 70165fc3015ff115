// FILE: lixenwraith/logpipe/pattern/message.go
package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/lixenwraith/logpipe/entry"
)

var argDumper = &spew.ConfigState{
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// FormatMessage substitutes each "{}" in template with the next argument.
// "\{}" renders a literal "{}", surplus arguments are ignored and missing ones
// leave the placeholder in place.
func FormatMessage(template string, args ...any) string {
	if len(args) == 0 && !strings.Contains(template, `\{}`) {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template) + 16*len(args))
	next := 0
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '\\' && strings.HasPrefix(template[i+1:], "{}") {
			sb.WriteString("{}")
			i += 2
			continue
		}
		if c == '{' && i+1 < len(template) && template[i+1] == '}' {
			if next < len(args) {
				sb.WriteString(FormatArg(args[next]))
				next++
			} else {
				sb.WriteString("{}")
			}
			i++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// FormatArg renders a single message argument. Scalars use their natural text,
// structs, maps and slices a compact single-line spew dump.
func FormatArg(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case error:
		return entry.SafeText(v, v.Error)
	case fmt.Stringer:
		return entry.SafeText(v, v.String)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return argDumper.Sprintf("%+v", v)
	}
}
