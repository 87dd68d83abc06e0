package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simloop/internal/sim"
)

func newSimsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "sims",
		Short:       "List available simulations",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := sim.Default().List()
			if asJSON {
				return writeJSON(cmd, infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Name, info.Title, info.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Title", "Description"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
