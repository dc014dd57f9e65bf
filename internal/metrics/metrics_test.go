package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelsString(t *testing.T) {
	assert.Equal(t, "", Labels(nil).String())
	assert.Equal(t, `{a="1",b="2"}`, Labels{"b": "2", "a": "1"}.String())
}

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("avstress")
	c1 := r.Counter("x_total", "x", Labels{"k": "v"})
	c2 := r.Counter("x_total", "x", Labels{"k": "v"})
	c3 := r.Counter("x_total", "x", Labels{"k": "w"})

	c1.Inc()
	assert.Equal(t, uint64(1), c2.Value())
	assert.Equal(t, uint64(0), c3.Value())
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("")
	h := r.Histogram("rt_seconds", "rt", nil, []float64{0.5, 0.1, 1})

	h.Observe(0.05)
	h.Observe(0.1)
	h.Observe(0.7)
	h.Observe(3)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `rt_seconds_bucket{le="0.1"} 2`)
	assert.Contains(t, out, `rt_seconds_bucket{le="0.5"} 2`)
	assert.Contains(t, out, `rt_seconds_bucket{le="1"} 3`)
	assert.Contains(t, out, `rt_seconds_bucket{le="+Inf"} 4`)
	assert.Contains(t, out, "rt_seconds_count 4")
	assert.InDelta(t, 0.9625, h.Mean(), 1e-9)
}

func TestTrialMetrics(t *testing.T) {
	m := NewTrialMetrics(NewRegistry("avstress"))
	m.ObserveTrial(TrialOutcome{Block: 1, Type: "V", Responded: true, RT: 400 * time.Millisecond, Verdict: "True", ITI: time.Second})
	m.ObserveTrial(TrialOutcome{Block: 1, Type: "AVI", Verdict: "NA", ITI: time.Second})
	m.ObserveBlock(1, 3*time.Minute)

	var buf bytes.Buffer
	require.NoError(t, m.Registry().WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, `avstress_trials_total{block="1",type="V"} 1`)
	assert.Contains(t, out, `avstress_no_response_total{block="1"} 1`)
	assert.Contains(t, out, `avstress_verdicts_total{verdict="NA"} 1`)
	assert.Contains(t, out, `avstress_block_duration_ms{block="1"} 180000`)
	assert.Equal(t, 1, strings.Count(out, "# TYPE avstress_trials_total counter"))
}

func TestNilTrialMetrics(t *testing.T) {
	var m *TrialMetrics
	m.ObserveTrial(TrialOutcome{})
	m.ObserveBlock(1, time.Second)
	m.ObserveSinkFailure()
	assert.Nil(t, m.Registry())
}

func TestWriteFile(t *testing.T) {
	r := NewRegistry("avstress")
	r.Counter("blocks_total", "blocks", nil).Inc()

	path := filepath.Join(t.TempDir(), "out", "metrics.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "avstress_blocks_total 1")
}
