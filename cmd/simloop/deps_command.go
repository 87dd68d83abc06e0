package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simloop/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check directories and external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			results := preflight.RunAll(cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkLabel(r, color), yesNo(!r.Optional), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Required", "Detail"}, rows))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
}

func checkLabel(r preflight.Result, color bool) string {
	switch {
	case r.Passed:
		return colorize("OK", ansiGreen, color)
	case r.Optional:
		return colorize("MISSING", ansiYellow, color)
	default:
		return colorize("FAIL", ansiRed, color)
	}
}
