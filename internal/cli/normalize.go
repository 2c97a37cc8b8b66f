package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/telhawk-systems/flowhook/internal/normalizer"
)

func newNormalizeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize a webhook payload locally",
		Long: `Run provider detection and field extraction on a payload without a
server. Reads stdin when no file is given.`,
		Example: `  flowctl normalize chatwoot.json
  cat evolution.json | flowctl normalize -o yaml
  flowctl normalize dialogy.json --header "X-Forwarded-For=203.0.113.9"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args)
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			headerPairs, _ := cmd.Flags().GetStringArray("header")
			remoteAddr, _ := cmd.Flags().GetString("remote-addr")
			provider, _ := cmd.Flags().GetString("provider")

			headers, err := parseHeaders(headerPairs)
			if err != nil {
				return err
			}

			event := normalizer.New().Normalize(normalizer.Request{
				Body:       body,
				Headers:    headers,
				RemoteAddr: remoteAddr,
				Method:     http.MethodPost,
				URL:        "/webhooks/" + provider,
			})

			return render(cmd.OutOrStdout(), v.GetString("output"), event)
		},
	}

	cmd.Flags().StringArrayP("header", "H", nil, "request header as Name=Value (repeatable)")
	cmd.Flags().String("remote-addr", "127.0.0.1:0", "simulated client address")
	cmd.Flags().String("provider", "local", "provider path segment used for the event url")
	return cmd
}

func parseHeaders(pairs []string) (http.Header, error) {
	h := http.Header{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected Name=Value", pair)
		}
		h.Add(strings.TrimSpace(name), value)
	}
	return h, nil
}
