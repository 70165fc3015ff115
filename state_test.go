// FILE: lixenwraith/logpipe/state_test.go
package logpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lixenwraith/logpipe/writer"
)

// TestStatsSnapshot verifies that engine and writer counters are merged
func TestStatsSnapshot(t *testing.T) {
	var s Stats
	var m writer.Metrics

	s.Submitted.Add(10)
	s.Written.Add(8)
	s.WriterErrors.Add(2)
	s.Dropped.Add(1)
	s.StackWalks.Add(4)
	s.QueueDepth.Add(3)
	m.Lost.Add(5)
	m.Rollovers.Add(6)
	m.Reconnects.Add(7)

	assert.Equal(t, Snapshot{
		Submitted:    10,
		Written:      8,
		WriterErrors: 2,
		Dropped:      1,
		StackWalks:   4,
		QueueDepth:   3,
		Lost:         5,
		Rollovers:    6,
		Reconnects:   7,
	}, s.snapshot(&m))
}
