// Package metrics exposes the core runtime's internal depths (scheduler
// queue length, IoManager pending-event count, timer count, hook
// slow-path rate) as prometheus gauges/counters over the node's existing
// /metrics HTTP handler (SPEC_FULL.md's DOMAIN STACK table).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loomrt/loom/hook"
	"github.com/loomrt/loom/process"
)

var (
	schedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loom",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Number of tasks currently queued on the process-wide core scheduler.",
	})
	ioPendingEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loom",
		Subsystem: "iomanager",
		Name:      "pending_events",
		Help:      "Number of (fd, direction) event registrations awaiting a fire.",
	})
	timerCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loom",
		Subsystem: "timer",
		Name:      "registered",
		Help:      "Number of timers currently registered on the core.",
	})
	hookFastPath = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "loom",
		Subsystem: "hook",
		Name:      "fast_path_total",
		Help:      "Hooked I/O calls satisfied without suspending the fiber.",
	}, func() float64 {
		fast, _ := hook.Counts()
		return float64(fast)
	})
	hookSlowPath = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "loom",
		Subsystem: "hook",
		Name:      "slow_path_total",
		Help:      "Hooked I/O calls that registered an event and suspended the fiber.",
	}, func() float64 {
		_, slow := hook.Counts()
		return float64(slow)
	})
)

type coreCollector struct{}

func (coreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- schedulerQueueDepth.Desc()
	ch <- ioPendingEvents.Desc()
	ch <- timerCount.Desc()
}

func (coreCollector) Collect(ch chan<- prometheus.Metric) {
	core := process.Core()
	if core == nil {
		return
	}
	schedulerQueueDepth.Set(float64(core.QueueLen()))
	ioPendingEvents.Set(float64(core.PendingCount()))
	timerCount.Set(float64(core.Manager.Len()))

	ch <- schedulerQueueDepth
	ch <- ioPendingEvents
	ch <- timerCount
}

var registered bool

// Register installs the core collectors into the default prometheus
// registry. Safe to call more than once; only the first call registers.
func Register() {
	if registered {
		return
	}
	registered = true
	prometheus.MustRegister(coreCollector{})
	prometheus.MustRegister(hookFastPath, hookSlowPath)
}
