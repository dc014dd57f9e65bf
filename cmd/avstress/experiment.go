package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"avstress/internal/abort"
	"avstress/internal/block"
	"avstress/internal/config"
	"avstress/internal/logging"
	"avstress/internal/metrics"
	"avstress/internal/present"
	"avstress/internal/record"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/seed"
	"avstress/internal/session"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

// surfaces are the devices a session presents on and listens to.
type surfaces struct {
	display   present.Display
	input     *response.ChannelInput
	catalog   *stimulus.Catalog
	inhibitor session.Inhibitor
	sleep     block.SleepFunc
}

// sessionOptions configure one participant session.
type sessionOptions struct {
	cfg         *config.Config
	participant string
	policy      session.OverwritePolicy
	logger      *logging.Logger

	// sink replaces the participant's CSV log when set.
	sink record.Sink
}

// newLogger builds the process logger from the logging section. toFile
// redirects console output into the data directory so log lines do not
// land on the participant's screen.
func newLogger(cfg *config.Config, toFile bool, w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "avstress",
		Writer:     w,
	}
	if toFile && w == nil {
		switch lc.Output {
		case "", "stdout", "stderr", "both":
			lc.Output = "file"
		}
		if lc.FilePath == "" {
			lc.FilePath = filepath.Join(cfg.Session.DataDir, "avstress.log")
		}
	}
	return logging.New(lc)
}

// sessionSeed returns the configured seed or draws a fresh one.
func sessionSeed(cfg *config.Config) (seed.Seed, error) {
	if cfg.Session.Seed != "" {
		return seed.Parse(cfg.Session.Seed)
	}
	return seed.New()
}

// openSink opens the participant's CSV log and, when configured, mirrors it
// into SQLite.
func openSink(opts sessionOptions, sd seed.Seed, started time.Time) (record.Sink, error) {
	if opts.sink != nil {
		return opts.sink, nil
	}
	cfg := opts.cfg
	csvSink, err := session.OpenLog(session.LogPath(cfg.Session.DataDir, opts.participant), opts.policy)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.SQLitePath == "" {
		return csvSink, nil
	}

	db, err := record.OpenSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		csvSink.Close()
		return nil, err
	}
	id := fmt.Sprintf("%s-%s", opts.participant, started.UTC().Format("20060102T150405.000"))
	if err := db.BeginSession(id, opts.participant, sd.String(), started); err != nil {
		db.Close()
		csvSink.Close()
		return nil, err
	}
	return record.Tee{csvSink, db}, nil
}

// runExperiment wires every component of a session and runs it to the end.
func runExperiment(ctx context.Context, opts sessionOptions, surf surfaces) (session.Report, error) {
	cfg := opts.cfg
	logger := opts.logger.WithParticipant(opts.participant)

	shape, err := present.ParseShape(cfg.Session.Shape)
	if err != nil {
		return session.Report{}, err
	}
	blocks, err := cfg.BlockConfigs()
	if err != nil {
		return session.Report{}, err
	}
	var practice *block.Config
	if cfg.Practice.Enabled {
		pc, err := cfg.PracticeBlock()
		if err != nil {
			return session.Report{}, fmt.Errorf("practice: %w", err)
		}
		practice = &pc
	}

	sd, err := sessionSeed(cfg)
	if err != nil {
		return session.Report{}, err
	}
	if err := os.MkdirAll(cfg.Session.DataDir, 0755); err != nil {
		return session.Report{}, fmt.Errorf("create data directory: %w", err)
	}
	started := time.Now()
	sink, err := openSink(opts, sd, started)
	if err != nil {
		return session.Report{}, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("closing trial log", "error", err)
		}
	}()

	if path := cfg.AbortPath(); path != "" {
		actx, w, err := abort.Watch(ctx, path, logger.Logger)
		if err != nil {
			return session.Report{}, err
		}
		defer w.Stop()
		ctx = actx
	}

	keys := scoring.KeyMap{stimulus.LabelRed: cfg.Keys.Red, stimulus.LabelBlue: cfg.Keys.Blue}
	reg := metrics.NewRegistry("avstress")
	sync := present.NewSynchronizer(surf.display, shape)
	runner := block.NewRunner(block.Options{
		Factory:      trial.NewFactory(surf.catalog),
		Synchronizer: sync,
		Collector:    response.NewCollector(surf.input, keys.Keys(), cfg.ResponseWindow()),
		Scorer:       scoring.NewScorer(keys),
		Sink:         sink,
		Seed:         sd,
		Fixation:     cfg.Fixation(),
		Logger:       logger.Logger,
		Metrics:      metrics.NewTrialMetrics(reg),
		Sleep:        surf.sleep,
	})

	logger.Info("session configured",
		"seed", sd.String(),
		"log", session.LogPath(cfg.Session.DataDir, opts.participant),
		"policy", opts.policy.String())

	exp := &session.Experiment{
		Participant:  opts.participant,
		Runner:       runner,
		Synchronizer: sync,
		Input:        surf.input,
		Practice:     practice,
		Blocks:       blocks,
		Screens: session.Screens{
			Intro:        cfg.Text.Intro,
			PracticeDone: cfg.Text.PracticeDone,
			Break:        cfg.Text.Break,
			Closing:      cfg.Text.Closing,
			Continue:     cfg.Text.Continue,
			ContinueKey:  cfg.Session.ContinueKey,
			MinDisplay:   cfg.InstructionTime(),
			BreakDisplay: cfg.BreakTime(),
		},
		Inhibitor: surf.inhibitor,
		Logger:    logger.Logger,
		Sleep:     surf.sleep,
	}
	report, err := exp.Run(ctx)

	if path := cfg.Storage.MetricsPath; path != "" {
		if werr := reg.WriteFile(path); werr != nil {
			logger.Warn("writing metrics", "path", path, "error", werr)
		}
	}
	if err != nil && abort.Aborted(ctx) {
		err = fmt.Errorf("%w after %d trials", abort.ErrAborted, report.Trials())
	}
	return report, err
}

// printReport writes a per-block summary of a finished session.
func printReport(w io.Writer, report session.Report) {
	if report.Practice != nil {
		fmt.Fprintf(w, "Practice: %d trials\n", report.Practice.Completed)
	}
	for _, b := range report.Blocks {
		fmt.Fprintf(w, "Block %d: %d/%d trials, %d responses, accuracy %.1f%%, %s\n",
			b.Block, b.Completed, b.Planned, b.Responses, 100*b.MeanAccuracy(), b.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Total: %d trials logged for %s\n", report.Trials(), report.Participant)
}
