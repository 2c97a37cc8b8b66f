package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stats",
		Short:   "Show webhook stats for a workspace",
		Example: `  flowctl stats --workspace ws-1 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, _ := cmd.Flags().GetString("workspace")

			stats, err := apiClient(v).Stats(cmd.Context(), workspace)
			if err != nil {
				return fmt.Errorf("failed to fetch stats: %w", err)
			}
			return render(cmd.OutOrStdout(), v.GetString("output"), stats)
		},
	}

	cmd.Flags().StringP("workspace", "w", "", "workspace ID")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
