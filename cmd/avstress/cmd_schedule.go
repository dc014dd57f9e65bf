package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"avstress/internal/block"
	"avstress/internal/config"
	"avstress/internal/seed"
	"avstress/internal/session"
	"avstress/internal/stimulus"
	"avstress/internal/trial"
)

type scheduledTrial struct {
	Block  int     `json:"block"`
	Trial  int     `json:"trial"`
	Type   string  `json:"type"`
	Visual string  `json:"visual"`
	Audio  string  `json:"audio"`
	ITI    float64 `json:"iti"`
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the trial sequence a participant will see",
		Long: `Print the trial order and inter-trial intervals generated for a participant
without presenting anything. A session with the same seed, participant and
block presents exactly this sequence.

Examples:
  avstress schedule -p 7 --seed <hex>            # every block
  avstress schedule -p 7 --seed <hex> --block 4  # one block`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			rawParticipant, _ := cmd.Flags().GetString("participant")
			seedHex, _ := cmd.Flags().GetString("seed")
			only, _ := cmd.Flags().GetInt("block")
			withPractice, _ := cmd.Flags().GetBool("practice")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			participant, err := session.ParticipantID(rawParticipant)
			if err != nil {
				return err
			}
			if seedHex == "" {
				seedHex = cfg.Session.Seed
			}
			if seedHex == "" {
				return fmt.Errorf("schedule needs a seed (--seed or session.seed)")
			}
			sd, err := seed.Parse(seedHex)
			if err != nil {
				return err
			}

			blocks, err := scheduleBlocks(cfg, only, withPractice)
			if err != nil {
				return err
			}

			catalog, _ := stimulus.NewSimulatedCatalog()
			runner := block.NewRunner(block.Options{Factory: trial.NewFactory(catalog), Seed: sd})

			var rows []scheduledTrial
			for _, bc := range blocks {
				specs, delays, err := runner.Plan(bc, participant)
				if err != nil {
					return err
				}
				for i, s := range specs {
					rows = append(rows, scheduledTrial{
						Block:  bc.Num,
						Trial:  i + 1,
						Type:   s.Type.String(),
						Visual: s.Visual.String(),
						Audio:  s.AudioLabel.String(),
						ITI:    delays[i].Seconds,
					})
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BLOCK\tTRIAL\tTYPE\tVISUAL\tAUDIO\tITI")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%.3f\n", r.Block, r.Trial, r.Type, r.Visual, r.Audio, r.ITI)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("participant", "p", "", "Participant number (required)")
	cmd.Flags().String("seed", "", "Session seed as 64 hex characters (default session.seed)")
	cmd.Flags().Int("block", 0, "Only this block number (0 for every block)")
	cmd.Flags().Bool("practice", false, "Include the practice block")
	cmd.MarkFlagRequired("participant")
	return cmd
}

func scheduleBlocks(cfg *config.Config, only int, withPractice bool) ([]block.Config, error) {
	var out []block.Config
	if withPractice && cfg.Practice.Enabled {
		pc, err := cfg.PracticeBlock()
		if err != nil {
			return nil, fmt.Errorf("practice: %w", err)
		}
		out = append(out, pc)
	}
	if only != 0 {
		bc, ok := cfg.Block(only)
		if !ok {
			return nil, fmt.Errorf("no block %d in configuration", only)
		}
		b, err := bc.Block()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", only, err)
		}
		return append(out, b), nil
	}
	blocks, err := cfg.BlockConfigs()
	if err != nil {
		return nil, err
	}
	return append(out, blocks...), nil
}
