package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"gioui.org/app"
	"gioui.org/unit"
	"github.com/spf13/cobra"

	"avstress/internal/audio"
	"avstress/internal/block"
	"avstress/internal/config"
	"avstress/internal/inhibit"
	"avstress/internal/logging"
	"avstress/internal/present"
	"avstress/internal/response"
	"avstress/internal/session"
	"avstress/internal/stimulus"
	"avstress/internal/terminal"
	"avstress/internal/window"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a participant session",
		Long: `Run a full session: instructions, an unlogged practice block, every
configured block with breaks in between, and a closing screen.

Stimuli are drawn in a window (or, with --surface terminal, in this
terminal) and the spoken color words are decoded once at startup and played
through the default audio device. Creating the abort file inside the data
directory, or pressing Ctrl+C, ends the session at the next trial boundary;
every trial already completed stays in the log.

Examples:
  avstress run -c lab.toml -p 7
  avstress run -c lab.toml -p 7 --append   # continue an interrupted session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawParticipant, _ := cmd.Flags().GetString("participant")
			appendLog, _ := cmd.Flags().GetBool("append")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			skipPreflight, _ := cmd.Flags().GetBool("skip-preflight")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if surface, _ := cmd.Flags().GetString("surface"); surface != "" {
				cfg.Display.Surface = surface
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			stdin := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			var participant string
			if rawParticipant != "" {
				participant, err = session.ParticipantID(rawParticipant)
			} else {
				participant, err = promptParticipant(stdin, out)
			}
			if err != nil {
				return err
			}
			policy, err := resolvePolicy(appendLog, overwrite, session.LogPath(cfg.Session.DataDir, participant), stdin, out)
			if err != nil {
				return err
			}
			if !skipPreflight {
				if _, err := runPreflight(cmd.Context(), out, newPreflight(cfg, "")); err != nil {
					return err
				}
			}

			runSession := func() error {
				logger, err := newLogger(cfg, true, nil)
				if err != nil {
					return err
				}
				defer logger.Close()

				ctx, stop := signal.NotifyContext(cmd.Context(), stopSignals...)
				defer stop()

				report, err := runOnDevices(ctx, sessionOptions{
					cfg:         cfg,
					participant: participant,
					policy:      policy,
					logger:      logger,
				})
				printReport(out, report)
				if err != nil && ctx.Err() != nil && report.Trials() > 0 {
					fmt.Fprintf(out, "Session interrupted; %d trials saved to %s\n",
						report.Trials(), session.LogPath(cfg.Session.DataDir, participant))
				}
				return err
			}

			if cfg.Display.Surface == config.SurfaceTerminal {
				return runSession()
			}

			// The window system owns the main goroutine from here on.
			go func() {
				if err := runSession(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					os.Exit(1)
				}
				os.Exit(0)
			}()
			app.Main()
			return nil
		},
	}
	cmd.Flags().StringP("participant", "p", "", "Participant number (prompted when empty)")
	cmd.Flags().Bool("append", false, "Append to an existing trial log")
	cmd.Flags().Bool("overwrite", false, "Replace an existing trial log")
	cmd.Flags().Bool("skip-preflight", false, "Start without checking the station first")
	cmd.Flags().String("surface", "", "Presentation surface: window or terminal (default from config)")
	return cmd
}

// runOnDevices opens the audio device, the presentation surface and its
// key input, and runs the session on them. Everything is released before
// it returns.
func runOnDevices(ctx context.Context, opts sessionOptions) (report session.Report, err error) {
	cfg := opts.cfg
	crash := logging.NewCrashHandler(cfg.Session.DataDir, version, opts.participant, opts.logger)
	defer crash.Recover()

	dev, catalog, err := loadStimuli(cfg)
	if err != nil {
		return report, err
	}
	defer dev.Close()
	defer catalog.StopAll()

	input := response.NewChannelInput(64)
	display, closeDisplay, err := openSurface(ctx, cfg, input)
	if err != nil {
		return report, err
	}
	defer closeDisplay()

	var inhibitor session.Inhibitor = inhibit.Nop{}
	if cfg.Session.InhibitScreensaver {
		inhibitor = inhibit.New("avstress")
	}

	return runExperiment(ctx, opts, surfaces{
		display:   display,
		input:     input,
		catalog:   catalog,
		inhibitor: inhibitor,
		sleep:     block.Sleep,
	})
}

// openSurface opens the configured display and starts feeding its key
// presses into input.
func openSurface(ctx context.Context, cfg *config.Config, input *response.ChannelInput) (present.Display, func(), error) {
	if cfg.Display.Surface == config.SurfaceTerminal {
		width, height := terminal.Size(int(os.Stdout.Fd()))
		kb, err := terminal.OpenKeyboard(ctx, os.Stdin, input)
		if err != nil {
			return nil, nil, fmt.Errorf("open keyboard: %w", err)
		}
		display := terminal.NewDisplay(os.Stdout, width, height)
		return display, func() {
			display.Close()
			kb.Close()
		}, nil
	}

	w := window.New(input, window.Options{
		Title:      "avstress",
		Fullscreen: cfg.Display.Fullscreen,
		Width:      unit.Dp(cfg.Display.Width),
		Height:     unit.Dp(cfg.Display.Height),
	})
	go w.Run()
	return w, func() { w.Close() }, nil
}

// loadStimuli opens the audio device and decodes every stimulus into it.
func loadStimuli(cfg *config.Config) (*audio.Device, *stimulus.Catalog, error) {
	dev, err := audio.OpenDevice(audio.Options{
		SampleRate: cfg.Stimuli.SampleRate,
		BufferSize: cfg.AudioBuffer(),
	})
	if err != nil {
		return nil, nil, err
	}
	catalog, err := stimulus.LoadCatalog(cfg.Stimuli.Dir, cfg.Stimuli.Ext, dev.Opener())
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return dev, catalog, nil
}
