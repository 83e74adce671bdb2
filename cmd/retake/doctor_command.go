package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retake/internal/preflight"
	"retake/internal/staging"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			headers := []string{"Check", "OK", "Detail"}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows))
			if leftovers, err := staging.ListLeftovers(cfg.Paths.StagingDir); err == nil && len(leftovers) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d leftover staging file(s) in %s; they are removed by the next edit session once a day old\n", len(leftovers), cfg.Paths.StagingDir)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}
}
