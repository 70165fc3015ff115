// FILE: lixenwraith/logpipe/writer/registry.go
package writer

import (
	"sort"
	"strings"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/props"
)

type constructor func(p props.Map, opts Options) (Writer, error)

// registry maps writer names to constructors. Names are matched after
// lowercasing and folding '_' and '-' into spaces, so "rolling_file" and
// "rolling file" select the same writer.
var registry = map[string]constructor{
	"console":      newConsole,
	"file":         newFile,
	"rolling file": newRollingFile,
	"shared file":  newSharedFile,
	"json":         newJSON,
	"jdbc":         newJDBC,
	"syslog":       newSyslog,
	"logcat":       newLogcat,
}

// Filter is implemented by every built-in writer
type Filter interface {
	MinLevel() entry.Level
	Tag() (string, bool)
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// Names returns the registered writer names
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the writer registered under name. Configuration problems are
// reported as *props.ConfigError carrying opts.Name.
func New(name string, p props.Map, opts Options) (Writer, error) {
	ctor, ok := registry[normalizeName(name)]
	if !ok {
		return nil, props.WithWriter(&props.ConfigError{
			Key:    "type",
			Reason: "unknown writer '" + name + "' (use " + strings.Join(Names(), ", ") + ")",
		}, opts.Name)
	}
	if p == nil {
		p = props.Map{}
	}
	w, err := ctor(p, opts.withDefaults())
	if err != nil {
		return nil, props.WithWriter(err, opts.Name)
	}
	return w, nil
}
