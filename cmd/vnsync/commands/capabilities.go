package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vnsync/cmd/vnsync/handlers"
)

// Capabilities returns the command that prints the provider capabilities.
func Capabilities(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print the network services the provider advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Capabilities(cmd.OutOrStdout(), *configPath)
		},
	}
}
