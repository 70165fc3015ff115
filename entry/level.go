// FILE: lixenwraith/logpipe/entry/level.go
package entry

import (
	"fmt"
	"strings"
)

// Level is the severity of a log entry. Levels are ordered, LevelOff disables output.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

// String returns the upper case level name
func (l Level) String() string {
	if l >= LevelTrace && l <= LevelOff {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", int8(l))
}

// ParseLevel converts a level name to a Level, case-insensitive
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off":
		return LevelOff, nil
	default:
		return LevelOff, fmt.Errorf("entry: invalid level '%s' (use trace, debug, info, warn, error, off)", s)
	}
}
