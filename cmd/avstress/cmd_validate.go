package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"avstress/internal/config"
	"avstress/internal/health"
)

type validateResult struct {
	Valid     bool           `json:"valid"`
	Blocks    int            `json:"blocks"`
	Trials    int            `json:"trials"`
	Errors    []string       `json:"errors,omitempty"`
	Preflight *health.Report `json:"preflight,omitempty"`
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the lab station",
		Long: `Check the configuration for errors before a session.

With --preflight the station is checked too: data directory, free disk
space, stimulus files (decoded at the configured sample rate) and clock
resolution.
  avstress validate -c lab.toml --preflight`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			preflight, _ := cmd.Flags().GetBool("preflight")
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			res := validateResult{Blocks: len(cfg.Blocks)}
			for _, b := range cfg.Blocks {
				res.Trials += b.TotalTrials
			}
			res.Errors = configErrors(cfg)
			if preflight && len(res.Errors) == 0 {
				w := out
				if jsonOut {
					w = io.Discard
				}
				report, err := runPreflight(cmd.Context(), w, newPreflight(cfg, ""))
				res.Preflight = &report
				if err != nil {
					res.Errors = append(res.Errors, err.Error())
				}
			}
			res.Valid = len(res.Errors) == 0

			if jsonOut {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintf(out, "Configuration OK: %d blocks, %d trials\n", res.Blocks, res.Trials)
			} else {
				for _, e := range res.Errors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}
			if !res.Valid {
				return fmt.Errorf("configuration has %d error(s)", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().Bool("preflight", false, "Also check the data directory, stimuli and clock")
	return cmd
}

func configErrors(cfg *config.Config) []string {
	err := cfg.Validate()
	if err == nil {
		return nil
	}
	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, v := range verrs {
		out = append(out, v.Error())
	}
	return out
}
