package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vnsync/cmd/vnsync/handlers"
)

var buildInfo = handlers.BuildInfo{Version: "dev", Commit: "none", Built: "unknown"}

// SetVersionInfo records the values injected into main at link time.
func SetVersionInfo(version, commit, date string) {
	buildInfo = handlers.BuildInfo{Version: version, Commit: commit, Built: date}
}

// Version returns the command that prints the build information.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Version(cmd.OutOrStdout(), buildInfo)
		},
	}
}
