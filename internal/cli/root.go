// Package cli implements flowctl, the operator command line for flowhook.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/flowhook/internal/client"
)

const defaultServer = "http://localhost:8088"

// Execute runs flowctl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the flowctl command tree. Each call returns an
// independent tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "flowhook operator CLI",
		Long: `flowctl talks to a running flowhook server and can normalize
provider webhooks locally.

Send sample Chatwoot, Dialogy or Evolution payloads, read workspace logs,
inspect stats and watch triggers published to the flow engine.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.flowctl/config.yaml)")
	root.PersistentFlags().String("server", defaultServer, "flowhook server URL")
	root.PersistentFlags().StringP("output", "o", "json", "output format: json, yaml")
	root.PersistentFlags().String("nats-url", "nats://localhost:4222", "NATS server URL for watch")

	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("output", root.PersistentFlags().Lookup("output"))
	_ = v.BindPFlag("nats_url", root.PersistentFlags().Lookup("nats-url"))

	root.AddCommand(
		newNormalizeCommand(v),
		newSendCommand(v),
		newLogsCommand(v),
		newStatsCommand(v),
		newWatchCommand(v),
	)
	return root
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("FLOWCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.flowctl")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func apiClient(v *viper.Viper) *client.Client {
	return client.New(v.GetString("server"))
}

// render writes v in the selected output format. Values go through JSON
// first so raw payloads render as structured YAML instead of byte lists.
func render(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return fmt.Errorf("unsupported output format %q (supported: json, yaml)", format)
	}
}

// readInput reads a file argument, or stdin when the argument is "-" or absent.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
