// FILE: lixenwraith/logpipe/entry/values.go
package entry

import "strings"

// Values is the set of entry fields a writer consumes
type Values uint16

const (
	ValueDate Values = 1 << iota
	ValueProcessID
	ValueThread
	ValueContext
	ValueClass
	ValueMethod
	ValueFile
	ValueLine
	ValueLevel
	ValueMessage
	ValueException
	ValueTag

	// ValueCaller groups the fields filled by one stack walk
	ValueCaller = ValueClass | ValueMethod | ValueFile | ValueLine
	ValueAll    = ValueDate | ValueProcessID | ValueThread | ValueContext | ValueCaller |
		ValueLevel | ValueMessage | ValueException | ValueTag
)

var valueNames = []struct {
	v    Values
	name string
}{
	{ValueDate, "date"},
	{ValueProcessID, "pid"},
	{ValueThread, "thread"},
	{ValueContext, "context"},
	{ValueClass, "class"},
	{ValueMethod, "method"},
	{ValueFile, "file"},
	{ValueLine, "line"},
	{ValueLevel, "level"},
	{ValueMessage, "message"},
	{ValueException, "exception"},
	{ValueTag, "tag"},
}

// Has reports whether all bits of o are set
func (v Values) Has(o Values) bool {
	return v&o == o
}

// NeedsCaller reports whether any caller field is required
func (v Values) NeedsCaller() bool {
	return v&ValueCaller != 0
}

func (v Values) String() string {
	var names []string
	for _, vn := range valueNames {
		if v&vn.v != 0 {
			names = append(names, vn.name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
