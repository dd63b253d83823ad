// Package metrics records timings for the hot paths of a render pass:
// payload parsing, layout, reconciliation, filtering and frame encoding.
//
// Collection is on by default and can be switched off with
// TREESCOPE_METRICS=0. Counters are updated atomically so the HTTP server
// may read them while a pass is running.
//
//	func Compute(...) Result {
//	    defer metrics.Timer(metrics.LayoutCompute)()
//	    ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("TREESCOPE_METRICS") != "0")
}

// Enabled reports whether timings are being recorded.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric accumulates durations for one named operation.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	minNs   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.totalNs.Add(ns)

	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.minNs.Load()
		if old != 0 && ns >= old {
			break
		}
		if m.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric's registry name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of recorded samples.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a snapshot suitable for JSON encoding.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.totalNs.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.maxNs.Load()) / 1e6,
		MinMs:   float64(m.minNs.Load()) / 1e6,
	}
}

// Reset clears every sample.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.minNs.Store(0)
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts a measurement and returns the function that stops it.
//
//	defer metrics.Timer(metrics.RenderSVG)()
func Timer(m *TimingMetric) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// TimerWithCallback is Timer that also hands the duration to cb, used to
// feed debug.LogTiming.
func TimerWithCallback(m *TimingMetric, cb func(time.Duration)) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		m.Record(d)
		if cb != nil {
			cb(d)
		}
	}
}

var (
	TreeParse     = newTimingMetric("tree_parse")
	LayoutCompute = newTimingMetric("layout_compute")
	ReconcilePlan = newTimingMetric("reconcile_plan")
	FilterApply   = newTimingMetric("filter_apply")
	RenderSVG     = newTimingMetric("render_svg")
	RenderPNG     = newTimingMetric("render_png")
	DirScan       = newTimingMetric("dir_scan")
)

// AllTimingMetrics returns every registered metric in a fixed order.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		TreeParse,
		LayoutCompute,
		ReconcilePlan,
		FilterApply,
		RenderSVG,
		RenderPNG,
		DirScan,
	}
}

// ResetAll clears every metric.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// AllTimingStats returns stats for the metrics that have samples.
func AllTimingStats() []TimingStats {
	all := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
