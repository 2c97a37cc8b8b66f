package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/telhawk-systems/flowhook/common/logging"
	"github.com/telhawk-systems/flowhook/common/messaging"
	natsclient "github.com/telhawk-systems/flowhook/common/messaging/nats"
	"github.com/telhawk-systems/flowhook/internal/dispatch"
)

func newWatchCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print flow triggers as they are dispatched",
		Long: `Subscribe to the flow trigger subjects on NATS and print each trigger
until interrupted.`,
		Example: `  flowctl watch
  flowctl watch --flow-context chatwoot --workspace ws-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flowContext, _ := cmd.Flags().GetString("flow-context")
			workspace, _ := cmd.Flags().GetString("workspace")

			subject := messaging.SubjectFlowsInboundAll
			if flowContext != "" {
				subject = messaging.FlowInboundSubject(flowContext)
			}

			log := logging.NewWithWriter(cmd.ErrOrStderr(), slog.LevelWarn, "text")
			cfg := natsclient.DefaultConfig()
			cfg.URL = v.GetString("nats_url")
			cfg.Name = "flowctl"

			client, err := natsclient.NewClient(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s on %s\n", subject, cfg.URL)
			return watch(ctx, client, subject, workspace, cmd.OutOrStdout(), v.GetString("output"))
		},
	}

	cmd.Flags().String("flow-context", "", "only watch one flow context (chatwoot, dialogy, evolution)")
	cmd.Flags().StringP("workspace", "w", "", "only print triggers for this workspace")
	return cmd
}

// watch prints triggers received on subject until ctx is done.
func watch(ctx context.Context, sub messaging.Subscriber, subject, workspace string, out io.Writer, format string) error {
	var mu sync.Mutex
	s, err := sub.Subscribe(subject, func(_ context.Context, msg *messaging.Message) error {
		if workspace != "" && msg.Metadata[messaging.HeaderWorkspaceID] != workspace {
			return nil
		}

		var t dispatch.Trigger
		if err := json.Unmarshal(msg.Data, &t); err != nil {
			return fmt.Errorf("decode trigger on %s: %w", msg.Subject, err)
		}

		mu.Lock()
		defer mu.Unlock()
		return render(out, format, t)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer s.Unsubscribe()

	<-ctx.Done()
	return nil
}
