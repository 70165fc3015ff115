// FILE: lixenwraith/logpipe/utility.go
package logpipe

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

var processID = strconv.Itoa(os.Getpid())

// threadIDs hands out logical producer ids, 1 is the engine's default producer
var threadIDs atomic.Int64

func nextThreadID() int64 {
	return threadIDs.Add(1) + 1
}

// fmtErrorf wrapper
func fmtErrorf(format string, args ...any) error {
	if !strings.HasPrefix(format, "logpipe: ") {
		format = "logpipe: " + format
	}
	return fmt.Errorf(format, args...)
}

// parseKeyValue splits a "key=value" string
func parseKeyValue(arg string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(arg), "=", 2)
	if len(parts) != 2 {
		return "", "", fmtErrorf("invalid format in override string '%s', expected key=value", arg)
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", fmtErrorf("key cannot be empty in override string '%s'", arg)
	}
	return key, value, nil
}
