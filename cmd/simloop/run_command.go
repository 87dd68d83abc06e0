package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"simloop/internal/app"
	"simloop/internal/config"
	"simloop/internal/preflight"
	"simloop/internal/sessions"
)

type runFlags struct {
	simulation    string
	frames        int
	fps           int
	format        string
	captureFrames int
	noCapture     bool
	transcode     bool
	params        []string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and record it",
		Long: `Run steps the selected simulation at the configured frame rate and, when
capture is enabled, records every frame it presents. The run ends on Ctrl-C,
after --frames presented frames, or when the simulation fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, flags)
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}
			return runApp(cmd, ctx, cfg, app.Options{Params: params})
		},
	}

	addSimulationFlags(cmd, &flags)
	cmd.Flags().IntVar(&flags.frames, "frames", 0, "Stop after this many presented frames (0 runs until interrupted)")
	cmd.Flags().IntVar(&flags.fps, "fps", 0, "Override the worker frame rate")
	cmd.Flags().StringVar(&flags.format, "format", "", "Capture format (h264, h265, gif, png, jpeg, tiff, bmp)")
	cmd.Flags().IntVar(&flags.captureFrames, "capture-frames", 0, "Finalize the capture after this many frames")
	cmd.Flags().BoolVar(&flags.noCapture, "no-capture", false, "Run without recording")
	cmd.Flags().BoolVar(&flags.transcode, "transcode", false, "Archive finished video captures as AV1")
	return cmd
}

func addSimulationFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().StringVarP(&flags.simulation, "sim", "s", "", "Simulation to run (see 'simloop sims')")
	cmd.Flags().StringArrayVar(&flags.params, "set", nil, "Set a simulation parameter as name=value (repeatable)")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	if flags.simulation != "" {
		cfg.Worker.Simulation = flags.simulation
	}
	if cmd.Flags().Changed("frames") {
		cfg.Worker.Frames = flags.frames
	}
	if flags.fps > 0 {
		cfg.Worker.FPS = flags.fps
	}
	if flags.format != "" {
		cfg.Capture.Format = flags.format
		cfg.Capture.Enabled = true
	}
	if cmd.Flags().Changed("capture-frames") {
		cfg.Capture.FrameCount = flags.captureFrames
	}
	if flags.noCapture {
		cfg.Capture.Enabled = false
	}
	if flags.transcode {
		cfg.Transcode.Enabled = true
	}
}

func parseParams(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(values))
	for _, raw := range values {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", raw)
		}
		params[name] = strings.TrimSpace(value)
	}
	return params, nil
}

// runApp performs the preflight checks, opens the session store and runs the
// app until it finishes or the process is interrupted.
func runApp(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts app.Options) error {
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		msgs := make([]string, 0, len(failed))
		for _, r := range failed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed:\n  %s", strings.Join(msgs, "\n  "))
	}

	logger, err := ctx.newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := sessions.Open(runCtx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	opts.Config = cfg
	opts.Logger = logger
	opts.Store = store
	a, err := app.New(opts)
	if err != nil {
		return err
	}
	summary, err := a.Run(runCtx)
	printSummary(cmd.OutOrStdout(), summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printSummary(out io.Writer, summary app.Summary) {
	fmt.Fprintf(out, "Simulation: %s\n", summary.Simulation)
	fmt.Fprintf(out, "Frames presented: %d (steps %d)\n", summary.Frames, summary.Steps)
	for _, c := range summary.Captures {
		if c.Err != nil {
			fmt.Fprintf(out, "Capture %s failed: %v\n", c.Format, c.Err)
			continue
		}
		fmt.Fprintf(out, "Captured %s: %s (%d frames, %d dropped)\n", c.Format, c.Path, c.Frames, c.Dropped)
		if c.TranscodedPath != "" {
			fmt.Fprintf(out, "Archived: %s\n", c.TranscodedPath)
		}
	}
}
