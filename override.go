// FILE: lixenwraith/logpipe/override.go
package logpipe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

// ApplyOverride applies "key=value" overrides to the configuration.
// Engine keys use their TOML names, writer properties use
// "writer.<name>.<property>", and "writer.<name>.type" selects the writer type.
// All overrides are applied to a clone first, so a failing list leaves c unchanged.
//
// Example:
//
//	err := cfg.ApplyOverride(
//	    "level=debug",
//	    "writing_thread=true",
//	    "writer.app.type=rolling file",
//	    "writer.app.file=/var/log/app_{count}.log",
//	    "writer.app.policies=size: 10mb",
//	)
func (c *Config) ApplyOverride(overrides ...string) error {
	cfg := c.Clone()

	var errors []error
	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errors = append(errors, err)
			continue
		}
		if err := applyConfigField(cfg, key, value); err != nil {
			errors = append(errors, err)
		}
	}
	if len(errors) > 0 {
		return combineConfigErrors(errors)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	*c = *cfg
	return nil
}

// combineConfigErrors combines multiple configuration errors into a single error
func combineConfigErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	if len(errors) == 1 {
		return errors[0]
	}

	var sb strings.Builder
	sb.WriteString("logpipe: multiple configuration errors:")
	for i, err := range errors {
		errMsg := strings.TrimPrefix(err.Error(), "logpipe: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyConfigField applies a single key-value override to a Config
func applyConfigField(cfg *Config, key, value string) error {
	if rest, ok := strings.CutPrefix(key, "writer."); ok {
		return applyWriterField(cfg, rest, value)
	}

	switch key {
	case "level":
		if _, err := entry.ParseLevel(value); err != nil {
			return fmtErrorf("invalid level value '%s': %w", value, err)
		}
		cfg.Level = value

	// Writing thread
	case "writing_thread":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for writing_thread '%s': %w", value, err)
		}
		cfg.WritingThread = boolVal
	case "coalesce_ms":
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for coalesce_ms '%s': %w", value, err)
		}
		cfg.CoalesceMs = intVal
	case "shutdown_timeout_ms":
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for shutdown_timeout_ms '%s': %w", value, err)
		}
		cfg.ShutdownTimeoutMs = intVal

	// Rendering
	case "share_rendering":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for share_rendering '%s': %w", value, err)
		}
		cfg.ShareRendering = boolVal
	case "timezone":
		cfg.Timezone = value

	// Internal error handling
	case "internal_errors_to_stderr":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for internal_errors_to_stderr '%s': %w", value, err)
		}
		cfg.InternalErrorsToStderr = boolVal

	// Heartbeat
	case "heartbeat_interval_s":
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for heartbeat_interval_s '%s': %w", value, err)
		}
		cfg.HeartbeatIntervalS = intVal

	default:
		return fmtErrorf("unknown configuration key '%s'", key)
	}
	return nil
}

// applyWriterField handles "<name>.<property>" keys, the property may itself contain dots
func applyWriterField(cfg *Config, key, value string) error {
	name, property, ok := strings.Cut(key, ".")
	if !ok || name == "" || property == "" {
		return fmtErrorf("invalid writer override 'writer.%s', expected writer.<name>.<property>", key)
	}

	wc := cfg.Writers[name]
	if wc.Props == nil {
		wc.Props = props.Map{}
	}
	if property == "type" {
		wc.Type = value
	} else {
		wc.Props[property] = value
	}
	cfg.Writers[name] = wc
	return nil
}
