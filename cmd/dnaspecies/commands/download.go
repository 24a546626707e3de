package commands

import (
	"fmt"
	"os"

	"github.com/kiranshivaraju/dnaspecies/internal/intake"
	"github.com/kiranshivaraju/dnaspecies/internal/workflow"
	"github.com/spf13/cobra"
)

func newDownloadCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download RUN_ID",
		Short: "Download the output archive of a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]
			if output == "" {
				output = workflow.ArchiveFilename(runID)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}

			n, err := a.client.Download(cmd.Context(), runID, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return fmt.Errorf("download %s: %w", runID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, intake.HumanSize(n))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default <run_id>_results.zip)")
	return cmd
}
