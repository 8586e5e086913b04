package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics/keyword"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
)

func TestIncAdmission(t *testing.T) {
	name := keyword.AdmissionTotalMetricName + `{result="admitted"}`
	before := metrics.GetOrCreateCounter(name).Get()

	m := New()
	m.IncAdmission(keyword.Admitted)
	m.IncAdmission(keyword.Admitted)

	assert.Equal(t, before+2, metrics.GetOrCreateCounter(name).Get())
}

func TestAddBenchOps(t *testing.T) {
	name := keyword.BenchOpsTotalMetricName + `{phase="mixed",op="incr"}`
	before := metrics.GetOrCreateCounter(name).Get()

	New().AddBenchOps("mixed", "incr", 1000)

	assert.Equal(t, before+1000, metrics.GetOrCreateCounter(name).Get())
}

func TestSetSketchMemory(t *testing.T) {
	m := New()
	m.SetSketchMemory("admission", 2048)
	m.SetSketchMemory("admission", 1024)

	assert.EqualValues(t, 1024, metrics.GetOrCreateCounter(keyword.SketchMemoryMetricName+`{sketch="admission"}`).Get())
}

func TestExposition(t *testing.T) {
	m := New()
	m.IncRotation("rate")
	m.IncAging("admission")
	m.ObservePhaseDuration("single", 150*time.Millisecond)

	var buf bytes.Buffer
	metrics.WritePrometheus(&buf, false)
	out := buf.String()

	assert.Contains(t, out, keyword.RotationsTotalMetricName+`{component="rate"}`)
	assert.Contains(t, out, keyword.AgingTotalMetricName+`{component="admission"}`)
	assert.Contains(t, out, keyword.BenchPhaseDurationMetricName+`_bucket{phase="single"`)
}
