// FILE: lixenwraith/logpipe/entry/caller.go
package entry

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Caller is the result of one stack walk
type Caller struct {
	Package   string // import path, e.g. github.com/acme/app/store
	ClassName string // Package plus receiver type, or Package for plain functions
	Method    string
	File      string // base name of the source file
	Line      int
}

// ResolveCaller walks the stack once. skip counts frames above ResolveCaller's caller.
func ResolveCaller(skip int) Caller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Caller{}
	}
	c := Caller{File: filepath.Base(file), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Package, c.ClassName, c.Method = splitFuncName(fn.Name())
	}
	return c
}

// splitFuncName maps "github.com/a/b.(*T).M" to ("github.com/a/b", "github.com/a/b.T", "M")
// and "github.com/a/b.F" to ("github.com/a/b", "github.com/a/b", "F")
func splitFuncName(name string) (pkg, class, method string) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", "", name
	}
	dot += slash + 1
	pkg = name[:dot]
	rest := name[dot+1:]

	// Closures: keep the enclosing function name
	if i := strings.Index(rest, ".func"); i >= 0 {
		rest = rest[:i]
	}

	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		recv := strings.Trim(rest[:i], "(*)")
		if j := strings.IndexByte(recv, '['); j >= 0 {
			recv = recv[:j]
		}
		return pkg, pkg + "." + recv, rest[i+1:]
	}
	return pkg, pkg, rest
}

// SimpleClassName returns the class name without its package path
func SimpleClassName(className string) string {
	if i := strings.LastIndexByte(className, '/'); i >= 0 {
		className = className[i+1:]
	}
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		return className[i+1:]
	}
	return className
}
