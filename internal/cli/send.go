package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSendCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [file|-]",
		Short: "Send a webhook payload to the server",
		Long:  `POST a payload to /webhooks/{provider} and print the acknowledgement.`,
		Example: `  flowctl send chatwoot.json --workspace ws-1
  flowctl send evolution.json --provider evolution --workspace ws-1 --node node-7`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			workspace, _ := cmd.Flags().GetString("workspace")
			node, _ := cmd.Flags().GetString("node")

			body, err := readInput(cmd, args)
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			ack, err := apiClient(v).SendWebhook(cmd.Context(), provider, workspace, node, body)
			if err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
			return render(cmd.OutOrStdout(), v.GetString("output"), ack)
		},
	}

	cmd.Flags().String("provider", "chatwoot", "provider path segment")
	cmd.Flags().StringP("workspace", "w", "", "workspace ID")
	cmd.Flags().String("node", "", "flow node ID")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}
