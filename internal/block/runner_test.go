package block

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/iti"
	"avstress/internal/metrics"
	"avstress/internal/present"
	"avstress/internal/record"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/seed"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

type harness struct {
	display *present.RecordingDisplay
	input   *response.ChannelInput
	sink    *record.MemorySink
	reg     *metrics.Registry

	mu     sync.Mutex
	sleeps []time.Duration
}

func testSeed() seed.Seed {
	var s seed.Seed
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

// newHarness wires a runner whose participant presses key right after each
// stimulus frame. An empty key never responds.
func newHarness(t *testing.T, key string, window time.Duration) (*Runner, *harness) {
	t.Helper()
	catalog, _ := stimulus.NewSimulatedCatalog()

	h := &harness{
		input: response.NewChannelInput(8),
		sink:  &record.MemorySink{},
		reg:   metrics.NewRegistry("avstress"),
	}

	afterFixation := false
	h.display = &present.RecordingDisplay{
		OnFlip: func(f present.Frame) {
			if f.Fixation {
				afterFixation = true
				return
			}
			if afterFixation && key != "" {
				h.input.Press(key)
			}
			afterFixation = false
		},
	}

	keys := scoring.DefaultKeyMap()
	r := NewRunner(Options{
		Factory:      trial.NewFactory(catalog),
		Synchronizer: present.NewSynchronizer(h.display, present.ShapeCircle),
		Collector:    response.NewCollector(h.input, keys.Keys(), window),
		Scorer:       scoring.NewScorer(keys),
		Sink:         h.sink,
		Seed:         testSeed(),
		Metrics:      metrics.NewTrialMetrics(h.reg),
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.mu.Unlock()
			return ctx.Err()
		},
	})
	return r, h
}

func standardBlock(num int) Config {
	return Config{
		Num:         num,
		Types:       trial.AllTypes,
		TotalTrials: 8,
		ITI:         iti.Range{Lo: 1250 * time.Millisecond, Hi: 1500 * time.Millisecond},
	}
}

func expectedLabel(r record.Result) stimulus.ColorLabel {
	if r.Visual.Valid() {
		return r.Visual
	}
	l, _ := stimulus.LabelFromSource(r.Audio)
	return l
}

func TestRunLogsEveryTrial(t *testing.T) {
	r, h := newHarness(t, "r", 2*time.Second)

	summary, err := r.Run(context.Background(), standardBlock(1), "P001")
	require.NoError(t, err)

	rows := h.sink.Rows()
	require.Len(t, rows, 8)
	assert.True(t, h.sink.Exists())
	assert.Equal(t, 8, summary.Completed)
	assert.Equal(t, 8, summary.Responses)

	for i, row := range rows {
		assert.Equal(t, "P001", row.Participant)
		assert.Equal(t, 1, row.Block)
		assert.Equal(t, i+1, row.Trial)
		assert.True(t, row.Responded)
		assert.Equal(t, "r", row.Response)
		assert.Less(t, row.RT, 2*time.Second)
		assert.GreaterOrEqual(t, row.ITI, 1.25)
		assert.LessOrEqual(t, row.ITI, 1.5)

		if row.Type == trial.TypeAVI {
			assert.Equal(t, scoring.VerdictNA, row.Correct)
			continue
		}
		want := scoring.VerdictIncorrect
		if expectedLabel(row) == stimulus.LabelRed {
			want = scoring.VerdictCorrect
		}
		assert.Equal(t, want, row.Correct, "trial %d %s", row.Trial, row.Type)
	}
	assert.Equal(t, summary.Correct+summary.Incorrect+summary.NA, 8)
}

func TestRunNoResponse(t *testing.T) {
	r, h := newHarness(t, "", 10*time.Millisecond)

	summary, err := r.Run(context.Background(), standardBlock(2), "P002")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Responses)

	for _, row := range h.sink.Rows() {
		assert.False(t, row.Responded)
		assert.Equal(t, response.NoResponseKey, row.Response)
		if row.Type == trial.TypeAVI {
			assert.Equal(t, scoring.VerdictNA, row.Correct)
		} else {
			assert.Equal(t, scoring.VerdictIncorrect, row.Correct, "%s without response must be False, not NA", row.Type)
		}
	}
}

func TestRunSequenceOfFrames(t *testing.T) {
	r, h := newHarness(t, "b", time.Second)
	cfg := standardBlock(1)
	cfg.Types = []trial.Type{trial.TypeV}
	cfg.TotalTrials = 2

	_, err := r.Run(context.Background(), cfg, "P001")
	require.NoError(t, err)

	frames := h.display.Frames()
	require.Len(t, frames, 6)
	for i := 0; i < 2; i++ {
		assert.True(t, frames[i*3].Fixation)
		assert.True(t, frames[i*3+1].Visual.Valid())
		assert.Equal(t, present.Frame{}, frames[i*3+2])
	}

	// fixation, ITI, fixation, ITI
	require.Len(t, h.sleeps, 4)
	assert.Equal(t, DefaultFixation, h.sleeps[0])
	assert.Equal(t, DefaultFixation, h.sleeps[2])
}

func TestRunAdaptingBlock(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	cfg := Config{
		Num:         4,
		Types:       trial.AllTypes,
		TotalTrials: 12,
		Adapting:    true,
		AdaptStart:  1250 * time.Millisecond,
		AdaptEnd:    375 * time.Millisecond,
	}

	_, err := r.Run(context.Background(), cfg, "P001")
	require.NoError(t, err)

	rows := h.sink.Rows()
	require.Len(t, rows, 12)
	assert.Equal(t, 1.25, rows[0].ITI)
	assert.Equal(t, 0.375, rows[11].ITI)
	for i := 1; i < len(rows); i++ {
		assert.Less(t, rows[i].ITI, rows[i-1].ITI)
	}
}

func TestRunSinkFailureStopsBlock(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	h.sink.FailAt = 3
	h.sink.Err = errors.New("disk full")

	summary, err := r.Run(context.Background(), standardBlock(1), "P001")
	require.Error(t, err)

	var sinkErr *record.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, 3, sinkErr.Trial)
	assert.Equal(t, 2, summary.Completed)
	assert.Len(t, h.sink.Rows(), 2)
}

func TestRunCancelledAtTrialBoundary(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	r.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		// second call is the first ITI
		if calls == 2 {
			cancel()
		}
		return nil
	}

	summary, err := r.Run(ctx, standardBlock(1), "P001")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Completed)
	assert.Len(t, h.sink.Rows(), 1)
}

func TestRunWritesHeaderOnceAcrossBlocks(t *testing.T) {
	r, _ := newHarness(t, "r", time.Second)
	path := filepath.Join(t.TempDir(), "experiment_results_P001.csv")
	sink, err := record.OpenCSV(path)
	require.NoError(t, err)
	r.sink = sink

	_, err = r.Run(context.Background(), standardBlock(1), "P001")
	require.NoError(t, err)
	_, err = r.Run(context.Background(), standardBlock(2), "P001")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rows, err := record.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 16)
	assert.Equal(t, 1, rows[0].Block)
	assert.Equal(t, 2, rows[15].Block)
}

func TestRunRecordsMetrics(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	_, err := r.Run(context.Background(), standardBlock(1), "P001")
	require.NoError(t, err)

	trials := h.reg.Counter("trials_total", "", metrics.Labels{"block": "1", "type": "AVI"})
	assert.Equal(t, uint64(2), trials.Value())
	assert.Equal(t, uint64(1), h.reg.Counter("blocks_total", "", nil).Value())
}

func TestPracticeLogsNothing(t *testing.T) {
	r, h := newHarness(t, "b", time.Second)
	cfg := Config{
		Num:         0,
		Types:       []trial.Type{trial.TypeA, trial.TypeV},
		TotalTrials: 6,
		ITI:         iti.Range{Lo: time.Second, Hi: 2 * time.Second},
	}

	summary, err := r.Practice(context.Background(), cfg, "P001")
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Completed)
	assert.Empty(t, h.sink.Rows())
	assert.False(t, h.sink.Exists())
}

func TestRunEmptyBlock(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	cfg := standardBlock(1)
	cfg.TotalTrials = 3

	summary, err := r.Run(context.Background(), cfg, "P001")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Planned)
	assert.Empty(t, h.display.Frames())
	assert.False(t, h.sink.Exists())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	r, h := newHarness(t, "r", time.Second)
	cfg := standardBlock(1)
	cfg.Types = nil

	_, err := r.Run(context.Background(), cfg, "P001")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "types", cfgErr.Field)
	assert.Empty(t, h.display.Frames())
}

func TestPlanIsDeterministic(t *testing.T) {
	r, _ := newHarness(t, "", time.Second)
	cfg := standardBlock(3)
	cfg.TotalTrials = 40

	specs1, delays1, err := r.Plan(cfg, "P007")
	require.NoError(t, err)
	specs2, delays2, err := r.Plan(cfg, "P007")
	require.NoError(t, err)
	assert.Equal(t, delays1, delays2)
	for i := range specs1 {
		assert.Equal(t, specs1[i].String(), specs2[i].String())
	}

	other, _, err := r.Plan(cfg, "P008")
	require.NoError(t, err)
	same := true
	for i := range specs1 {
		if specs1[i].String() != other[i].String() {
			same = false
			break
		}
	}
	assert.False(t, same, "different participants should get different orders")
}
