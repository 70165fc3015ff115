// FILE: lixenwraith/logpipe/heartbeat.go
package logpipe

import (
	"fmt"
	"runtime"
	"time"
)

// HeartbeatTag is the tag of heartbeat entries, writers select them with tag=heartbeat
const HeartbeatTag = "heartbeat"

// heartbeat emits statistics entries until stop is closed
type heartbeat struct {
	stop     chan struct{}
	done     chan struct{}
	sequence uint64
	started  time.Time
}

// startHeartbeat launches the heartbeat goroutine for interval
func (e *Engine) startHeartbeat(interval time.Duration) {
	hb := &heartbeat{
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: e.now(),
	}
	e.heartbeat = hb

	go func() {
		defer close(hb.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hb.stop:
				return
			case <-ticker.C:
				e.logHeartbeat(hb)
			}
		}
	}()
}

// stopHeartbeat stops the goroutine and waits for a heartbeat in progress
func (e *Engine) stopHeartbeat() {
	if e.heartbeat == nil {
		return
	}
	close(e.heartbeat.stop)
	<-e.heartbeat.done
}

// logHeartbeat writes one process and one runtime statistics entry
func (e *Engine) logHeartbeat(hb *heartbeat) {
	hb.sequence++
	s := e.Stats()
	uptime := e.now().Sub(hb.started)

	e.Log(LevelInfo, HeartbeatTag,
		"type=proc sequence={} uptime_hours={} submitted={} written={} writer_errors={} dropped={} lost={} rollovers={} reconnects={} queue_depth={}",
		hb.sequence, fmt.Sprintf("%.2f", uptime.Hours()),
		s.Submitted, s.Written, s.WriterErrors, s.Dropped, s.Lost, s.Rollovers, s.Reconnects, s.QueueDepth)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	e.Log(LevelInfo, HeartbeatTag,
		"type=sys sequence={} alloc_mb={} sys_mb={} num_gc={} num_goroutine={}",
		hb.sequence,
		fmt.Sprintf("%.2f", float64(memStats.Alloc)/(1000*1000)),
		fmt.Sprintf("%.2f", float64(memStats.Sys)/(1000*1000)),
		memStats.NumGC, runtime.NumGoroutine())
}
