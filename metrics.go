// FILE: lixenwraith/logpipe/metrics.go
package logpipe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports engine Stats as Prometheus metrics. Values are read from
// the engine on every scrape, nothing is cached.
type Collector struct {
	engine *Engine

	submitted    *prometheus.Desc
	written      *prometheus.Desc
	writerErrors *prometheus.Desc
	dropped      *prometheus.Desc
	stackWalks   *prometheus.Desc
	lost         *prometheus.Desc
	rollovers    *prometheus.Desc
	reconnects   *prometheus.Desc
	queueDepth   *prometheus.Desc
	diagnostics  *prometheus.Desc
}

// NewCollector creates a collector for e. An empty namespace defaults to "logpipe".
func NewCollector(e *Engine, namespace string) *Collector {
	if namespace == "" {
		namespace = "logpipe"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		engine:       e,
		submitted:    desc("entries_submitted_total", "Entries handed to writers."),
		written:      desc("writes_total", "Successful writer calls."),
		writerErrors: desc("writer_errors_total", "Failed writer calls."),
		dropped:      desc("entries_dropped_total", "Entries for asynchronous writers after the writing thread stopped."),
		stackWalks:   desc("stack_walks_total", "Caller resolutions."),
		lost:         desc("entries_lost_total", "Entries dropped by disconnected network and database writers."),
		rollovers:    desc("rollovers_total", "Rolling file rollovers."),
		reconnects:   desc("reconnects_total", "Successful writer reconnects."),
		queueDepth:   desc("queue_depth", "Tasks waiting for the writing thread."),
		diagnostics:  desc("diagnostics_total", "Internal diagnostics reported."),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.written
	ch <- c.writerErrors
	ch <- c.dropped
	ch <- c.stackWalks
	ch <- c.lost
	ch <- c.rollovers
	ch <- c.reconnects
	ch <- c.queueDepth
	ch <- c.diagnostics
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.submitted, s.Submitted)
	counter(c.written, s.Written)
	counter(c.writerErrors, s.WriterErrors)
	counter(c.dropped, s.Dropped)
	counter(c.stackWalks, s.StackWalks)
	counter(c.lost, s.Lost)
	counter(c.rollovers, s.Rollovers)
	counter(c.reconnects, s.Reconnects)
	counter(c.diagnostics, c.engine.Diagnostics())

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(s.QueueDepth))
}
