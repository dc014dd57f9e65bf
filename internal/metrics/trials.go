package metrics

import (
	"strconv"
	"time"
)

// TrialMetrics holds the metrics recorded by the block runner. A nil
// *TrialMetrics is valid and records nothing.
type TrialMetrics struct {
	registry *Registry
}

// NewTrialMetrics creates trial metrics in registry.
func NewTrialMetrics(registry *Registry) *TrialMetrics {
	return &TrialMetrics{registry: registry}
}

// Registry returns the underlying registry.
func (m *TrialMetrics) Registry() *Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TrialOutcome is what the runner reports after each trial.
type TrialOutcome struct {
	Block     int
	Type      string
	Responded bool
	RT        time.Duration
	Verdict   string
	ITI       time.Duration
	FlipLag   time.Duration
}

// ObserveTrial records one completed trial.
func (m *TrialMetrics) ObserveTrial(o TrialOutcome) {
	if m == nil {
		return
	}
	r := m.registry
	block := strconv.Itoa(o.Block)

	r.Counter("trials_total", "Trials presented and logged", Labels{"block": block, "type": o.Type}).Inc()
	r.Counter("verdicts_total", "Scored trials by verdict", Labels{"verdict": o.Verdict}).Inc()
	if o.Responded {
		r.Counter("responses_total", "Trials with a key press inside the window", Labels{"block": block}).Inc()
		r.Histogram("reaction_time_seconds", "Reaction time from onset", Labels{"type": o.Type}, ReactionBuckets).ObserveDuration(o.RT)
	} else {
		r.Counter("no_response_total", "Trials whose window closed without a press", Labels{"block": block}).Inc()
	}
	r.Histogram("iti_seconds", "Scheduled inter-trial interval", Labels{"block": block}, ReactionBuckets).ObserveDuration(o.ITI)
	r.Histogram("onset_lag_seconds", "Time from onset capture until the stimulus frame was flipped", nil, LagBuckets).ObserveDuration(o.FlipLag)
}

// ObserveBlock records a finished block.
func (m *TrialMetrics) ObserveBlock(block int, d time.Duration) {
	if m == nil {
		return
	}
	m.registry.Counter("blocks_total", "Blocks completed", nil).Inc()
	m.registry.Gauge("block_duration_ms", "Wall time of the block", Labels{"block": strconv.Itoa(block)}).Set(d.Milliseconds())
}

// ObserveSinkFailure records a row that could not be written.
func (m *TrialMetrics) ObserveSinkFailure() {
	if m == nil {
		return
	}
	m.registry.Counter("sink_failures_total", "Trial rows that failed to write", nil).Inc()
}
