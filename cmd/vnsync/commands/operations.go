package commands

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/vnsync/cmd/vnsync/handlers"
	"github.com/imamik/vnsync/internal/trigger"
)

// Sync returns the command that syncs one entity.
func Sync(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "sync <network|vm|nic> <id>",
		Short:     "Push one local entity and its dependents to the controller",
		Args:      entityArgs,
		ValidArgs: trigger.Entities,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := strconv.ParseInt(args[1], 10, 64)
			return handlers.Sync(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], id)
		},
	}
}

// Delete returns the command that deletes one entity's controller objects.
func Delete(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <network|vm|nic> <id>",
		Short: "Delete the controller objects of one local entity",
		Long: `Delete the controller objects of one local entity.

A network or VM whose interfaces still exist locally is not deleted; the
report names the blocking interfaces.`,
		Args:      entityArgs,
		ValidArgs: trigger.Entities,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := strconv.ParseInt(args[1], 10, 64)
			return handlers.Delete(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], id)
		},
	}
}

// FullSync returns the command that runs one full-sync pass.
func FullSync(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fullsync",
		Short: "Run one full-sync pass and delete orphaned controller objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.FullSync(cmd.Context(), cmd.OutOrStdout(), *configPath)
		},
	}
}

// Request returns the command that asks a running daemon to run an operation.
func Request(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "request <sync|delete> <network|vm|nic> <id> | request fullsync",
		Short: "Send an operation to a running daemon over NATS",
		Example: `  vnsync request sync nic 42
  vnsync request fullsync --timeout 10m`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == trigger.ActionFullSync {
				return nil
			}
			if len(args) != 3 {
				return fmt.Errorf("expected <action> <entity> <id> or fullsync")
			}
			if args[0] != trigger.ActionSync && args[0] != trigger.ActionDelete {
				return fmt.Errorf("unknown action %q", args[0])
			}
			return entityArgs(nil, args[1:])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == trigger.ActionFullSync {
				return handlers.Request(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], "", 0, timeout)
			}
			id, _ := strconv.ParseInt(args[2], 10, 64)
			return handlers.Request(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], args[1], id, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "How long to wait for the reply")
	return cmd
}

// entityArgs validates "<entity> <id>".
func entityArgs(_ *cobra.Command, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <entity> <id>, got %d argument(s)", len(args))
	}
	if !slices.Contains(trigger.Entities, args[0]) {
		return fmt.Errorf("unknown entity %q, expected one of %v", args[0], trigger.Entities)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[1])
	}
	return nil
}
