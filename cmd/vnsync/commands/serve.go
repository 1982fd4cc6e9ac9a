package commands

import (
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/imamik/vnsync/cmd/vnsync/handlers"
)

// Serve returns the command that runs the daemon.
func Serve(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full-sync loop, the NATS trigger listener and the metrics endpoint",
		Long: `Run vnsync as a daemon.

The daemon periodically re-derives the expected controller state from the
platform database, pushes it and deletes orphaned controller objects. When
nats.url is configured it also serves sync and delete requests.

Examples:
  # Run against the configured database and controller
  vnsync serve --config /etc/vnsync/vnsync.yaml

  # Debug logging
  vnsync serve -c vnsync.yaml --zap-log-level=debug`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Serve(signals.SetupSignalHandler(), *configPath)
		},
	}
}
