// avstress runs the audio-visual color stress experiment.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"avstress/internal/config"
)

var version = "0.3.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "avstress",
		Short: "Audio-visual color stress experiment",
		Long: `avstress presents colored shapes and spoken color words, records which
color key the participant pressed and how fast, and appends one row per
trial to experiment_results_<participant>.csv.

Trial types:
  V    visual only
  A    audio only
  AVC  visual and audio, same color
  AVI  visual and audio, conflicting colors (correct key follows the audio)`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newValidateCmd(),
		newScheduleCmd(),
		newRunCmd(),
		newSimulateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{
					"version": version,
					"go":      runtime.Version(),
					"config":  fmt.Sprint(config.Version),
				})
			}
			fmt.Fprintf(out, "avstress version %s (%s, config v%d)\n", version, runtime.Version(), config.Version)
			return nil
		},
	}
}

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
