// FILE: lixenwraith/logpipe/writer/link.go
package writer

import (
	"sync"
	"time"

	"github.com/lixenwraith/logpipe/internal/diag"
)

const (
	minRetryInterval = time.Second
	maxRetryInterval = time.Minute
)

type linkState uint8

const (
	linkDisconnected linkState = iota
	linkConnecting
	linkConnected
)

func (s linkState) String() string {
	switch s {
	case linkConnecting:
		return "connecting"
	case linkConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// link is the connection state machine of network and database sinks.
// Connections are opened lazily. While disconnected and before nextRetryAt
// entries are dropped and counted, never queued. With reconnect disabled
// failures are returned to the caller instead.
type link struct {
	name      string
	mode      Mode
	now       func() time.Time
	diag      *diag.Reporter
	metrics   *Metrics
	reconnect bool

	connect    func() error
	disconnect func() error

	mu          sync.Mutex // serializes sink operations in ModeSync
	state       linkState
	nextRetryAt time.Time
	backoff     time.Duration
	lost        uint64 // since the last successful connect
	connected   bool   // connected at least once
}

func newLink(opts Options, reconnect bool, connect, disconnect func() error) link {
	return link{
		name:       opts.Name,
		mode:       opts.Mode,
		now:        opts.Now,
		diag:       opts.Diag,
		metrics:    opts.Metrics,
		reconnect:  reconnect,
		connect:    connect,
		disconnect: disconnect,
	}
}

func (l *link) lock() {
	if l.mode == ModeSync {
		l.mu.Lock()
	}
}

func (l *link) unlock() {
	if l.mode == ModeSync {
		l.mu.Unlock()
	}
}

// ready connects if needed. It returns false when the caller must drop the entry.
func (l *link) ready() (bool, error) {
	if l.state == linkConnected {
		return true, nil
	}
	start := l.now()
	if l.reconnect && start.Before(l.nextRetryAt) {
		return false, nil
	}

	l.state = linkConnecting
	err := l.connect()
	elapsed := l.now().Sub(start)
	if err != nil {
		l.state = linkDisconnected
		if !l.reconnect {
			return false, err
		}
		l.schedule(elapsed, true)
		l.diag.Printf("writer '%s': failed to connect, next attempt in %s: %v", l.name, l.backoff, err)
		return false, nil
	}

	l.state = linkConnected
	if l.connected {
		l.metrics.Reconnects.Add(1)
		l.diag.Printf("writer '%s': reconnected, %d entries were lost", l.name, l.lost)
	}
	l.connected = true
	l.lost = 0
	l.backoff = 0
	return true, nil
}

// failed handles an I/O error of an established connection that cost entries
func (l *link) failed(err error, entries int, elapsed time.Duration) error {
	if l.disconnect != nil {
		_ = l.disconnect()
	}
	l.state = linkDisconnected
	if !l.reconnect {
		return err
	}
	l.drop(entries)
	l.schedule(elapsed, false)
	l.diag.Printf("writer '%s': %v, %d entries lost, next attempt in %s", l.name, err, entries, l.backoff)
	return nil
}

// schedule sets nextRetryAt to now + max(1s, 2*elapsed), capped at one
// minute. Failed reconnects seed with the previous interval so the wait doubles.
func (l *link) schedule(elapsed time.Duration, retry bool) {
	seed := elapsed
	if retry && l.backoff > seed {
		seed = l.backoff
	}
	l.backoff = min(max(minRetryInterval, 2*seed), maxRetryInterval)
	l.nextRetryAt = l.now().Add(l.backoff)
}

func (l *link) drop(n int) {
	l.lost += uint64(n)
	l.metrics.Lost.Add(uint64(n))
}

// close disconnects if connected
func (l *link) close() error {
	if l.state != linkConnected || l.disconnect == nil {
		l.state = linkDisconnected
		return nil
	}
	l.state = linkDisconnected
	return l.disconnect()
}

// Lost returns the entries lost since the last successful connect
func (l *link) Lost() uint64 {
	l.lock()
	defer l.unlock()
	return l.lost
}

// NextRetryAt returns when a disconnected sink tries again
func (l *link) NextRetryAt() time.Time {
	l.lock()
	defer l.unlock()
	return l.nextRetryAt
}
