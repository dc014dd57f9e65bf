package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"avstress/internal/block"
	"avstress/internal/inhibit"
	"avstress/internal/present"
	"avstress/internal/record"
	"avstress/internal/response"
	"avstress/internal/scoring"
	"avstress/internal/session"
	"avstress/internal/simulate"
	"avstress/internal/stimulus"
	"avstress/internal/terminal"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a session against a virtual participant",
		Long: `Run a complete session in which a virtual participant reads the screens,
perceives each stimulus and presses keys. Use it to check a configuration
end to end and to produce logs for analysis pipelines.

--speed divides fixation, inter-trial intervals and screen times; reaction
times and the response window keep their real length.

Examples:
  avstress simulate -c lab.toml --speed 20
  avstress simulate --dry-run --accuracy 0.8 --miss-rate 0.1
  avstress simulate --show   # draw the session in this terminal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			rawParticipant, _ := cmd.Flags().GetString("participant")
			speed, _ := cmd.Flags().GetFloat64("speed")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			show, _ := cmd.Flags().GetBool("show")
			appendLog, _ := cmd.Flags().GetBool("append")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			if speed <= 0 {
				return fmt.Errorf("--speed must be positive, got %g", speed)
			}
			profile, err := profileFromFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			participant, err := session.ParticipantID(rawParticipant)
			if err != nil {
				return err
			}
			policy, err := resolvePolicy(appendLog, overwrite, session.LogPath(cfg.Session.DataDir, participant), nil, nil)
			if err != nil {
				return err
			}

			sd, err := sessionSeed(cfg)
			if err != nil {
				return err
			}
			cfg.Session.Seed = sd.String()

			logger, err := newLogger(cfg, show, nil)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), stopSignals...)
			defer stop()

			keys := scoring.KeyMap{stimulus.LabelRed: cfg.Keys.Red, stimulus.LabelBlue: cfg.Keys.Blue}
			input := response.NewChannelInput(64)
			p := simulate.NewParticipant(input, keys, cfg.Session.ContinueKey, profile, sd.Stream(participant, 0, "participant"))
			defer p.Stop()

			catalog, err := simulate.Catalog(p)
			if err != nil {
				return err
			}

			var inner present.Display
			if show {
				width, height := terminal.Size(int(os.Stdout.Fd()))
				td := terminal.NewDisplay(os.Stdout, width, height)
				defer td.Close()
				inner = td
			}

			opts := sessionOptions{cfg: cfg, participant: participant, policy: policy, logger: logger}
			var mem *record.MemorySink
			if dryRun {
				mem = &record.MemorySink{}
				opts.sink = mem
			}

			report, err := runExperiment(ctx, opts, surfaces{
				display:   simulate.NewDisplay(p, inner),
				input:     input,
				catalog:   catalog,
				inhibitor: inhibit.Nop{},
				sleep:     scaledSleep(speed),
			})

			out := cmd.OutOrStdout()
			if jsonOut {
				if werr := writeJSON(out, simulateResult(report, p, cfg.Session.Seed, mem)); werr != nil && err == nil {
					err = werr
				}
			} else {
				printReport(out, report)
				fmt.Fprintf(out, "Seed: %s\nPresses: %d, misses: %d\n", cfg.Session.Seed, p.Presses(), p.Misses())
			}
			return err
		},
	}

	def := simulate.DefaultProfile()
	cmd.Flags().StringP("participant", "p", "999", "Participant number")
	cmd.Flags().Float64("speed", 1, "Divide fixation, ITI and screen times by this factor")
	cmd.Flags().Bool("dry-run", false, "Keep trial rows in memory instead of the CSV log")
	cmd.Flags().Bool("show", false, "Draw the session in this terminal")
	cmd.Flags().Bool("append", false, "Append to an existing trial log")
	cmd.Flags().Bool("overwrite", false, "Replace an existing trial log")
	cmd.Flags().Float64("accuracy", def.Accuracy, "Probability of pressing the perceived color")
	cmd.Flags().Float64("miss-rate", def.MissRate, "Probability of not responding")
	cmd.Flags().Float64("visual-dominance", def.VisualDominance, "Probability of following the visual on conflicting trials")
	cmd.Flags().Duration("rt-mean", def.RTMean, "Mean reaction time")
	cmd.Flags().Duration("rt-sd", def.RTSD, "Reaction time standard deviation")
	cmd.Flags().Duration("rt-min", def.RTMin, "Fastest possible reaction")
	cmd.Flags().Duration("read-time", def.ReadTime, "Delay before dismissing a text screen")
	return cmd
}

func profileFromFlags(cmd *cobra.Command) (simulate.Profile, error) {
	var p simulate.Profile
	p.Accuracy, _ = cmd.Flags().GetFloat64("accuracy")
	p.MissRate, _ = cmd.Flags().GetFloat64("miss-rate")
	p.VisualDominance, _ = cmd.Flags().GetFloat64("visual-dominance")
	p.RTMean, _ = cmd.Flags().GetDuration("rt-mean")
	p.RTSD, _ = cmd.Flags().GetDuration("rt-sd")
	p.RTMin, _ = cmd.Flags().GetDuration("rt-min")
	p.ReadTime, _ = cmd.Flags().GetDuration("read-time")

	for name, v := range map[string]float64{"accuracy": p.Accuracy, "miss-rate": p.MissRate, "visual-dominance": p.VisualDominance} {
		if v < 0 || v > 1 {
			return p, fmt.Errorf("--%s must be within [0, 1], got %g", name, v)
		}
	}
	if p.RTMean <= 0 || p.RTSD < 0 || p.RTMin < 0 {
		return p, fmt.Errorf("reaction time flags must not be negative and --rt-mean must be positive")
	}
	return p, nil
}

// scaledSleep returns a SleepFunc running speed times faster than real time.
func scaledSleep(speed float64) block.SleepFunc {
	if speed == 1 {
		return block.Sleep
	}
	return func(ctx context.Context, d time.Duration) error {
		return block.Sleep(ctx, time.Duration(float64(d)/speed))
	}
}

type simulateSummary struct {
	Participant string          `json:"participant"`
	Seed        string          `json:"seed"`
	Trials      int             `json:"trials"`
	Presses     int             `json:"presses"`
	Misses      int             `json:"misses"`
	Blocks      []block.Summary `json:"blocks"`
	Rows        [][]string      `json:"rows,omitempty"`
}

func simulateResult(report session.Report, p *simulate.Participant, seedHex string, mem *record.MemorySink) simulateSummary {
	s := simulateSummary{
		Participant: report.Participant,
		Seed:        seedHex,
		Trials:      report.Trials(),
		Presses:     p.Presses(),
		Misses:      p.Misses(),
		Blocks:      report.Blocks,
	}
	if mem != nil {
		for _, r := range mem.Rows() {
			s.Rows = append(s.Rows, r.Row())
		}
	}
	return s
}
