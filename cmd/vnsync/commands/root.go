// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Root returns the root command for the vnsync CLI.
//
// Logging flags (--zap-devel, --zap-log-level, ...) are shared by every
// subcommand.
func Root() *cobra.Command {
	var configPath string

	opts := zap.Options{
		Development: os.Getenv("DEBUG") == "true",
		Level:       zapcore.InfoLevel,
	}
	fs := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(fs)

	cmd := &cobra.Command{
		Use:           "vnsync",
		Short:         "Synchronize platform networks with an SDN controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
		},
	}
	cmd.PersistentFlags().AddGoFlagSet(fs)
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: built-in defaults)")

	// Daemon
	cmd.AddCommand(Serve(&configPath))

	// One-shot operations
	cmd.AddCommand(Sync(&configPath))
	cmd.AddCommand(Delete(&configPath))
	cmd.AddCommand(FullSync(&configPath))
	cmd.AddCommand(Request(&configPath))

	// Utility commands
	cmd.AddCommand(Capabilities(&configPath))
	cmd.AddCommand(Version())

	return cmd
}
