// Package main is the entry point for the vnsync daemon and CLI.
//
// vnsync keeps an SDN controller's virtual networks, virtual machines,
// interfaces and instance IPs in step with the records of a cloud
// orchestration platform.
//
// Commands: serve, sync, delete, fullsync, request, capabilities, version.
//
// For detailed usage information, run:
//
//	vnsync --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/vnsync/cmd/vnsync/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
