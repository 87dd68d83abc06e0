package main

import (
	"github.com/spf13/cobra"

	"simloop/internal/app"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var format string
	var supersample int
	var payload string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save a single frame of a simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, flags)
			cfg.Capture.Enabled = true
			cfg.Capture.Format = format
			cfg.Worker.Frames = 0
			cfg.Worker.AutoStart = true
			if supersample > 0 {
				cfg.Capture.Supersample = supersample
			}
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}
			return runApp(cmd, ctx, cfg, app.Options{
				Params:           params,
				Payload:          payload,
				ExitAfterCapture: true,
			})
		},
	}

	addSimulationFlags(cmd, &flags)
	cmd.Flags().StringVar(&format, "format", "png", "Image format (png, jpeg, tiff, bmp)")
	cmd.Flags().IntVar(&supersample, "supersample", 0, "Render at this multiple of the output size")
	cmd.Flags().StringVar(&payload, "payload", "", "Text embedded in PNG snapshots (defaults to the simulation state)")
	return cmd
}
