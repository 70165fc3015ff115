// FILE: lixenwraith/logpipe/state.go
package logpipe

import (
	"sync/atomic"

	"github.com/lixenwraith/logpipe/writer"
)

// engine lifecycle states
const (
	stateNew uint32 = iota
	stateRunning
	stateShutdown
)

// Stats are the engine's runtime counters
type Stats struct {
	Submitted    atomic.Uint64 // entries handed to writers
	Written      atomic.Uint64 // successful writer calls
	WriterErrors atomic.Uint64 // failed writer calls, reported to diagnostics
	Dropped      atomic.Uint64 // entries for async writers after the writing thread stopped
	StackWalks   atomic.Uint64 // caller resolutions
	QueueDepth   atomic.Int64  // tasks waiting for the writing thread
}

// Snapshot is a point-in-time copy of engine and writer counters
type Snapshot struct {
	Submitted    uint64
	Written      uint64
	WriterErrors uint64
	Dropped      uint64
	StackWalks   uint64
	QueueDepth   int64

	// Writer metrics
	Lost       uint64 // entries dropped by disconnected network and database writers
	Rollovers  uint64
	Reconnects uint64
}

func (s *Stats) snapshot(m *writer.Metrics) Snapshot {
	return Snapshot{
		Submitted:    s.Submitted.Load(),
		Written:      s.Written.Load(),
		WriterErrors: s.WriterErrors.Load(),
		Dropped:      s.Dropped.Load(),
		StackWalks:   s.StackWalks.Load(),
		QueueDepth:   s.QueueDepth.Load(),
		Lost:         m.Lost.Load(),
		Rollovers:    m.Rollovers.Load(),
		Reconnects:   m.Reconnects.Load(),
	}
}
