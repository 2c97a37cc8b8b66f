package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/telhawk-systems/flowhook/internal/models"
)

func newLogsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read or submit workspace logs",
		Long: `Print the retained log for a workspace, most recent first. With
--history the persisted log is read instead of the in-memory one.`,
		Example: `  flowctl logs --workspace ws-1
  flowctl logs --type api-call --workspace ws-1 --history --limit 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := logTypeFlag(cmd)
			if err != nil {
				return err
			}
			workspace, _ := cmd.Flags().GetString("workspace")
			history, _ := cmd.Flags().GetBool("history")
			limit, _ := cmd.Flags().GetInt("limit")

			c := apiClient(v)
			var records []models.LogRecord
			if history {
				records, err = c.History(cmd.Context(), typ, workspace, limit)
			} else {
				records, err = c.Logs(cmd.Context(), typ, workspace)
			}
			if err != nil {
				return fmt.Errorf("failed to fetch logs: %w", err)
			}
			return render(cmd.OutOrStdout(), v.GetString("output"), records)
		},
	}

	cmd.Flags().StringP("type", "t", string(models.LogTypeWebhook), "log type: webhook, api-call")
	cmd.Flags().StringP("workspace", "w", "", "workspace ID")
	cmd.Flags().Bool("history", false, "read persisted history")
	cmd.Flags().Int("limit", 0, "history limit (server default when 0)")
	_ = cmd.MarkFlagRequired("workspace")

	cmd.AddCommand(newLogsSubmitCommand(v))
	return cmd
}

func newLogsSubmitCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [file|-]",
		Short: "Submit a log entry whose details are read from a JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := logTypeFlag(cmd)
			if err != nil {
				return err
			}
			workspace, _ := cmd.Flags().GetString("workspace")
			node, _ := cmd.Flags().GetString("node")

			details, err := readInput(cmd, args)
			if err != nil {
				return fmt.Errorf("failed to read details: %w", err)
			}
			if !json.Valid(details) {
				return fmt.Errorf("details must be valid JSON")
			}

			err = apiClient(v).SubmitLog(cmd.Context(), typ, models.LogSubmission{
				WorkspaceID: workspace,
				NodeID:      node,
				Details:     json.RawMessage(details),
			})
			if err != nil {
				return fmt.Errorf("submit failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s log recorded for %s\n", typ, workspace)
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", string(models.LogTypeWebhook), "log type: webhook, api-call")
	cmd.Flags().StringP("workspace", "w", "", "workspace ID")
	cmd.Flags().String("node", "", "flow node ID")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func logTypeFlag(cmd *cobra.Command) (models.LogType, error) {
	raw, _ := cmd.Flags().GetString("type")
	switch typ := models.LogType(raw); typ {
	case models.LogTypeWebhook, models.LogTypeAPICall:
		return typ, nil
	default:
		return "", fmt.Errorf("unknown log type %q (supported: webhook, api-call)", raw)
	}
}
