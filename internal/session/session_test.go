package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avstress/internal/block"
	"avstress/internal/iti"
	"avstress/internal/present"
	"avstress/internal/record"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

func TestParticipantID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		hasError bool
	}{
		{"7", "P007", false},
		{"007", "P007", false},
		{" 12 ", "P012", false},
		{"P003", "P003", false},
		{"1234", "P1234", false},
		{"", "", true},
		{"abc", "", true},
		{"-1", "", true},
		{"1.5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParticipantID(tt.input)
			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidParticipant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("AV_Stress_Data", "experiment_results_P001.csv"), LogPath("AV_Stress_Data", "P001"))
}

func TestOpenLogPolicies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment_results_P001.csv")
	require.NoError(t, os.WriteFile(path, []byte("existing\r\n"), 0644))

	_, err := OpenLog(path, Refuse)
	assert.ErrorIs(t, err, ErrLogExists)

	sink, err := OpenLog(path, Append)
	require.NoError(t, err)
	assert.True(t, sink.Exists())
	require.NoError(t, sink.Close())

	sink, err = OpenLog(path, Overwrite)
	require.NoError(t, err)
	assert.False(t, sink.Exists())
	require.NoError(t, sink.Close())

	fresh := filepath.Join(t.TempDir(), "new.csv")
	sink, err = OpenLog(fresh, Refuse)
	require.NoError(t, err)
	assert.False(t, sink.Exists())
	require.NoError(t, sink.Close())
}

type fakeInhibitor struct {
	inhibited int
	released  int
	err       error
}

func (f *fakeInhibitor) Inhibit(string) (func() error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inhibited++
	return func() error {
		f.released++
		return nil
	}, nil
}

const prompt = "*Press space bar to begin*"

func newExperiment(t *testing.T, blocks ...block.Config) (*Experiment, *present.RecordingDisplay, *record.MemorySink) {
	t.Helper()
	catalog, _ := stimulus.NewSimulatedCatalog()
	input := response.NewChannelInput(8)
	sink := &record.MemorySink{}

	afterFixation := false
	display := &present.RecordingDisplay{}
	display.OnFlip = func(f present.Frame) {
		switch {
		case strings.HasSuffix(f.Text, prompt):
			input.Press("space")
		case f.Fixation:
			afterFixation = true
			return
		case afterFixation:
			input.Press("r")
		}
		afterFixation = false
	}

	sync := present.NewSynchronizer(display, present.ShapeSquare)
	keys := scoring.DefaultKeyMap()
	noSleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	runner := block.NewRunner(block.Options{
		Factory:      trial.NewFactory(catalog),
		Synchronizer: sync,
		Collector:    response.NewCollector(input, keys.Keys(), time.Second),
		Scorer:       scoring.NewScorer(keys),
		Sink:         sink,
		Sleep:        noSleep,
	})

	return &Experiment{
		Participant:  "P001",
		Runner:       runner,
		Synchronizer: sync,
		Input:        input,
		Blocks:       blocks,
		Screens: Screens{
			Intro:        []string{"intro one", "intro two"},
			PracticeDone: "practice done",
			Break:        "break",
			Closing:      "thanks",
			Continue:     prompt,
			ContinueKey:  "space",
		},
		Sleep: noSleep,
	}, display, sink
}

func smallBlock(n int) block.Config {
	return block.Config{
		Num:         n,
		Types:       trial.AllTypes,
		TotalTrials: 4,
		ITI:         iti.Range{Lo: time.Second, Hi: time.Second},
	}
}

func texts(frames []present.Frame) []string {
	var out []string
	for _, f := range frames {
		if f.Text != "" && !strings.HasSuffix(f.Text, prompt) {
			out = append(out, f.Text)
		}
	}
	return out
}

func TestExperimentRun(t *testing.T) {
	exp, display, sink := newExperiment(t, smallBlock(1), smallBlock(2), smallBlock(3))
	practice := block.Config{
		Types:       []trial.Type{trial.TypeA, trial.TypeV},
		TotalTrials: 6,
		ITI:         iti.Range{Lo: time.Second, Hi: time.Second},
	}
	exp.Practice = &practice
	inhibitor := &fakeInhibitor{}
	exp.Inhibitor = inhibitor

	report, err := exp.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Practice)
	assert.Equal(t, 6, report.Practice.Completed)
	require.Len(t, report.Blocks, 3)
	assert.Equal(t, 12, report.Trials())
	assert.False(t, report.Finished.Before(report.Started))

	rows := sink.Rows()
	require.Len(t, rows, 12)
	assert.Equal(t, 1, rows[0].Block)
	assert.Equal(t, 3, rows[11].Block)

	assert.Equal(t, []string{"intro one", "intro two", "practice done", "break", "break", "thanks"}, texts(display.Frames()))
	assert.Equal(t, 1, inhibitor.inhibited)
	assert.Equal(t, 1, inhibitor.released)
}

func TestExperimentInhibitFailureIsNotFatal(t *testing.T) {
	exp, _, sink := newExperiment(t, smallBlock(1))
	exp.Inhibitor = &fakeInhibitor{err: errors.New("no session bus")}

	_, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.Rows(), 4)
}

func TestExperimentStopsOnSinkFailure(t *testing.T) {
	exp, display, sink := newExperiment(t, smallBlock(1), smallBlock(2))
	sink.FailAt = 6
	sink.Err = errors.New("disk full")

	report, err := exp.Run(context.Background())
	var sinkErr *record.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, 2, sinkErr.Block)
	assert.Equal(t, 2, sinkErr.Trial)

	require.Len(t, report.Blocks, 2)
	assert.Equal(t, 4, report.Blocks[0].Completed)
	assert.Equal(t, 1, report.Blocks[1].Completed)
	assert.NotContains(t, texts(display.Frames()), "thanks")
}

func TestExperimentRejectsInvalidBlockBeforeStarting(t *testing.T) {
	bad := smallBlock(2)
	bad.Types = nil
	exp, display, _ := newExperiment(t, smallBlock(1), bad)

	_, err := exp.Run(context.Background())
	var cfgErr *block.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, display.Frames())
}

func TestExperimentCancelled(t *testing.T) {
	exp, _, sink := newExperiment(t, smallBlock(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exp.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Rows())
}
