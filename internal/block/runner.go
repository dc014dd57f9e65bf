package block

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"avstress/internal/iti"
	"avstress/internal/metrics"
	"avstress/internal/present"
	"avstress/internal/record"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/seed"
	"avstress/internal/trial"
)

// DefaultFixation is the pre-stimulus fixation interval.
const DefaultFixation = 500 * time.Millisecond

// SleepFunc holds for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options wires a Runner to its collaborators.
type Options struct {
	Factory      *trial.Factory
	Synchronizer *present.Synchronizer
	Collector    *response.Collector
	Scorer       *scoring.Scorer

	// Sink receives logged trials. It may be nil for Practice only.
	Sink record.Sink

	Seed     seed.Seed
	Fixation time.Duration

	Logger  *slog.Logger
	Metrics *metrics.TrialMetrics
	Sleep   SleepFunc
}

// Runner drives blocks of trials. It is not safe for concurrent use; one
// trial is in flight at a time.
type Runner struct {
	factory   *trial.Factory
	sync      *present.Synchronizer
	collector *response.Collector
	scorer    *scoring.Scorer
	sink      record.Sink
	seed      seed.Seed
	fixation  time.Duration
	logger    *slog.Logger
	metrics   *metrics.TrialMetrics
	sleep     SleepFunc

	headerChecked bool
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		factory:   opts.Factory,
		sync:      opts.Synchronizer,
		collector: opts.Collector,
		scorer:    opts.Scorer,
		sink:      opts.Sink,
		seed:      opts.Seed,
		fixation:  opts.Fixation,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		sleep:     opts.Sleep,
	}
	if r.fixation <= 0 {
		r.fixation = DefaultFixation
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.sleep == nil {
		r.sleep = Sleep
	}
	return r
}

// Plan generates the trial sequence and ITI schedule of a block without
// presenting anything. The same seed, participant and block always yield the
// same plan.
func (r *Runner) Plan(cfg Config, participant string) ([]trial.Spec, []iti.Delay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	specs, err := r.factory.Generate(cfg.Types, cfg.TotalTrials, r.seed.Stream(participant, cfg.Num, seed.PurposeTrials))
	if err != nil {
		return nil, nil, fmt.Errorf("block %d: generate trials: %w", cfg.Num, err)
	}

	sched := iti.NewScheduler(cfg.Params(), r.seed.Stream(participant, cfg.Num, seed.PurposeITI))
	delays := make([]iti.Delay, len(specs))
	for i := range specs {
		d, err := sched.Next(i, len(specs))
		if err != nil {
			return nil, nil, &ConfigError{Block: cfg.Num, Field: "iti", Message: err.Error()}
		}
		delays[i] = d
	}
	return specs, delays, nil
}

// Run presents every trial of the block once and appends one row per trial
// to the sink. The header is written before the first row only if the sink
// did not exist. Cancellation is honored at trial boundaries; a trial
// interrupted during its response window is not logged.
func (r *Runner) Run(ctx context.Context, cfg Config, participant string) (Summary, error) {
	if r.sink == nil {
		return Summary{}, errors.New("block: run without a sink")
	}
	return r.run(ctx, cfg, participant, true)
}

// Practice presents the block like Run but logs nothing.
func (r *Runner) Practice(ctx context.Context, cfg Config, participant string) (Summary, error) {
	return r.run(ctx, cfg, participant, false)
}

func (r *Runner) run(ctx context.Context, cfg Config, participant string, logged bool) (summary Summary, err error) {
	logger := r.logger.With("block", cfg.Num)
	if !logged {
		logger = logger.With("practice", true)
	}

	specs, delays, err := r.Plan(cfg, participant)
	if err != nil {
		return Summary{}, err
	}
	summary = Summary{Block: cfg.Num, Planned: len(specs)}
	if len(specs) == 0 {
		logger.Warn("block has no trials", "total_trials", cfg.TotalTrials, "types", len(cfg.Types))
		return summary, nil
	}

	if logged && !r.headerChecked {
		if err := record.Prepare(r.sink); err != nil {
			return summary, &record.SinkError{Block: cfg.Num, Err: err}
		}
		r.headerChecked = true
	}

	logger.Info("block started", "trials", len(specs), "adapting", cfg.Adapting)
	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
	}()

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			logger.Info("block cancelled", "completed", summary.Completed)
			return summary, err
		}

		result, lag, err := r.present(ctx, spec)
		if err != nil {
			return summary, err
		}

		result.Participant = participant
		result.Block = cfg.Num
		result.Trial = i + 1
		result.ITI = delays[i].Seconds

		logger.Debug("trial",
			"trial", result.Trial,
			"type", spec.Type.String(),
			"visual", spec.Visual.String(),
			"audio", result.Audio,
			"key", result.Response,
			"rt", result.RT,
			"correct", result.Correct.String(),
			"iti", result.ITI,
		)

		if logged {
			if err := r.sink.Append(result); err != nil {
				r.metrics.ObserveSinkFailure()
				logger.Error("trial row not written", "trial", result.Trial, "error", err)
				return summary, &record.SinkError{Block: cfg.Num, Trial: result.Trial, Err: err}
			}
			r.metrics.ObserveTrial(metrics.TrialOutcome{
				Block:     cfg.Num,
				Type:      spec.Type.String(),
				Responded: result.Responded,
				RT:        result.RT,
				Verdict:   result.Correct.String(),
				ITI:       delays[i].Wait,
				FlipLag:   lag,
			})
		}
		summary.tally(result)

		if err := r.sleep(ctx, delays[i].Wait); err != nil {
			return summary, err
		}
	}

	if logged {
		r.metrics.ObserveBlock(cfg.Num, time.Since(start))
	}
	logger.Info("block finished",
		"completed", summary.Completed,
		"responses", summary.Responses,
		"accuracy", summary.MeanAccuracy(),
	)
	return summary, nil
}

// present runs one trial up to scoring.
func (r *Runner) present(ctx context.Context, spec trial.Spec) (record.Result, time.Duration, error) {
	if err := r.sync.Fixation(); err != nil {
		return record.Result{}, 0, err
	}
	if err := r.sleep(ctx, r.fixation); err != nil {
		return record.Result{}, 0, err
	}
	if err := r.collector.Clear(); err != nil {
		return record.Result{}, 0, fmt.Errorf("clear input: %w", err)
	}

	onset, err := r.sync.Arm(spec)
	if err != nil {
		return record.Result{}, 0, err
	}
	resp, err := r.collector.Await(ctx, onset.Clock)
	if err != nil {
		return record.Result{}, 0, err
	}
	if err := r.sync.Blank(); err != nil {
		return record.Result{}, 0, err
	}

	verdict, err := r.scorer.Score(spec.Type, spec.Visual, spec.AudioLabel, resp.Key)
	if err != nil {
		r.logger.Error("trial not scorable", "type", spec.Type.String(), "error", err)
		verdict = scoring.VerdictNA
	}

	result := record.Result{
		Type:      spec.Type,
		Visual:    spec.Visual,
		Response:  resp.Key,
		Responded: resp.Responded,
		RT:        resp.RT,
		Correct:   verdict,
	}
	if src := spec.AudioSource(); src != "" {
		result.Audio = filepath.Base(src)
	}
	return result, onset.FlipLag, nil
}

func (s *Summary) tally(r record.Result) {
	s.Completed++
	if r.Responded {
		s.Responses++
	}
	switch r.Correct {
	case scoring.VerdictCorrect:
		s.Correct++
	case scoring.VerdictIncorrect:
		s.Incorrect++
	default:
		s.NA++
	}
}
