package commands

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/dnaspecies/internal/results"
	"github.com/spf13/cobra"
)

func newModelsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models registered with the prediction backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No models registered.")
				return nil
			}
			for _, m := range list {
				var info []string
				if m.Info != nil {
					for _, k := range m.Info.Keys() {
						v, _ := m.Info.Get(k)
						info = append(info, k+"="+results.Stringify(v))
					}
				}
				fmt.Fprintln(out, strings.TrimSpace(m.RunID+"  "+strings.Join(info, " ")))
			}
			return nil
		},
	}
}
