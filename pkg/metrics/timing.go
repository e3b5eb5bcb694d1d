// Package metrics provides in-process timing instrumentation for
// impactview: gateway round-trips, graph adaptation, viewport fits and
// exports.
//
// Collection is enabled by default and can be disabled via
// IMPACTVIEW_METRICS=0. `impactview --metrics` prints a summary at exit.
//
//	defer metrics.Timer(metrics.GatewayAnalyze)()
package metrics

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync/atomic"
	"text/tabwriter"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("IMPACTVIEW_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool { return enabled.Load() }

// SetEnabled allows programmatic control of metrics collection.
func SetEnabled(e bool) { enabled.Store(e) }

// TimingMetric tracks count, total, min and max for one operation.
// All methods are safe for concurrent use.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	minNs   atomic.Int64 // 0 means unset
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
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

// Name returns the metric name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a consistent-enough snapshot of the metric.
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

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.minNs.Store(0)
}

// TimingStats holds a snapshot of timing statistics.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer returns a function that records elapsed time when called.
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// Global timing metrics.
var (
	GatewayAnalyze = newTimingMetric("gateway_analyze")
	GatewayChat    = newTimingMetric("gateway_chat")
	GraphBuild     = newTimingMetric("graph_build")
	GraphLayout    = newTimingMetric("graph_layout")
	GraphAnalysis  = newTimingMetric("graph_analysis")
	Fit            = newTimingMetric("viewport_fit")
	MarkdownRender = newTimingMetric("markdown_render")
	ExportPDF      = newTimingMetric("export_pdf")
	ExportImage    = newTimingMetric("export_image")
)

// AllTimingMetrics returns all registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		GatewayAnalyze,
		GatewayChat,
		GraphBuild,
		GraphLayout,
		GraphAnalysis,
		Fit,
		MarkdownRender,
		ExportPDF,
		ExportImage,
	}
}

// ResetAll resets all timing metrics.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// AllTimingStats returns stats for metrics that have data, sorted by name.
func AllTimingStats() []TimingStats {
	var stats []TimingStats
	for _, m := range AllTimingMetrics() {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// WriteSummary prints a table of every metric with data.
func WriteSummary(w io.Writer) error {
	stats := AllTimingStats()
	if len(stats) == 0 {
		_, err := fmt.Fprintln(w, "no metrics recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCOUNT\tAVG(ms)\tMIN(ms)\tMAX(ms)")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", s.Name, s.Count, s.AvgMs, s.MinMs, s.MaxMs)
	}
	return tw.Flush()
}
