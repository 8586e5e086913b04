package metrics

import (
	"time"

	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics/keyword"
	"github.com/VictoriaMetrics/metrics"
)

// Meter defines methods for recording estimator driver metrics.
type Meter interface {
	IncAdmission(result string)
	IncAging(component string)
	IncRotation(component string)
	AddBenchOps(phase, op string, n int)
	ObservePhaseDuration(phase string, d time.Duration)
	SetSketchMemory(sketch string, bytes int64)
}

// Metrics implements Meter using VictoriaMetrics metrics.
type Metrics struct{}

// New creates a new Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// IncAdmission counts one admission decision by its result label.
func (m *Metrics) IncAdmission(result string) {
	metrics.GetOrCreateCounter(labeled(keyword.AdmissionTotalMetricName, "result", result)).Inc()
}

// IncAging counts one aging pass (full reset of a sketch window) of the component.
func (m *Metrics) IncAging(component string) {
	metrics.GetOrCreateCounter(labeled(keyword.AgingTotalMetricName, "component", component)).Inc()
}

// IncRotation counts one window rotation of the component.
func (m *Metrics) IncRotation(component string) {
	metrics.GetOrCreateCounter(labeled(keyword.RotationsTotalMetricName, "component", component)).Inc()
}

// AddBenchOps adds n completed operations of a bench phase.
func (m *Metrics) AddBenchOps(phase, op string, n int) {
	buf := make([]byte, 0, 64)

	buf = append(buf, keyword.BenchOpsTotalMetricName...)
	buf = append(buf, `{phase="`...)
	buf = append(buf, phase...)
	buf = append(buf, `",op="`...)
	buf = append(buf, op...)
	buf = append(buf, `"}`...)

	metrics.GetOrCreateCounter(string(buf)).Add(n)
}

// ObservePhaseDuration records how long a bench phase took into a histogram.
func (m *Metrics) ObservePhaseDuration(phase string, d time.Duration) {
	metrics.GetOrCreateHistogram(labeled(keyword.BenchPhaseDurationMetricName, "phase", phase)).Update(d.Seconds())
}

// SetSketchMemory updates the gauge for the counter table size of a sketch in bytes.
func (m *Metrics) SetSketchMemory(sketch string, bytes int64) {
	metrics.GetOrCreateCounter(labeled(keyword.SketchMemoryMetricName, "sketch", sketch)).Set(uint64(bytes))
}

func labeled(name, label, value string) string {
	buf := make([]byte, 0, 48)

	buf = append(buf, name...)
	buf = append(buf, '{')
	buf = append(buf, label...)
	buf = append(buf, `="`...)
	buf = append(buf, value...)
	buf = append(buf, `"}`...)

	return string(buf)
}
