// FILE: lixenwraith/logpipe/policy/size.go
package policy

import (
	"fmt"
	"os"

	"github.com/lixenwraith/logpipe/props"
)

// sizePolicy limits a file to a number of bytes. The first entry of a fresh
// file is always accepted so a limit smaller than one entry cannot roll forever.
type sizePolicy struct {
	limit  int64
	count  int64
	header int64 // bytes counted before the first entry
}

func newSize(arg string, _ options) (Policy, error) {
	if arg == "" {
		return nil, fmt.Errorf("needs a maximum size, e.g. size: 10mb")
	}
	limit, err := props.ParseSize(arg)
	if err != nil {
		return nil, err
	}
	return &sizePolicy{limit: limit}, nil
}

// NewSize returns a size policy with a byte limit
func NewSize(limit int64) Policy {
	return &sizePolicy{limit: limit}
}

func (p *sizePolicy) ContinueExistingFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() >= p.limit {
		return false
	}
	p.count = info.Size()
	return true
}

func (p *sizePolicy) ContinueCurrentFile(data []byte) bool {
	n := int64(len(data))
	if p.count > p.header && p.count+n > p.limit {
		return false
	}
	p.count += n
	return true
}

func (p *sizePolicy) Account(n int64) {
	p.count += n
	p.header = p.count
}

func (p *sizePolicy) Reset() {
	p.count = 0
	p.header = 0
}
