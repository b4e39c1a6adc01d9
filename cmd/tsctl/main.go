// Command tsctl is the operator CLI client for the traffic-switcher
// control API: it wraps the same three real endpoints (port, config,
// status) the server exposes, plus client-side conveniences built from
// them (services, routes, health, current, rollback, deploy, switch).
package main

import (
	"fmt"
	"os"

	"github.com/marshallku/traffic-switcher/cmd/tsctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "tsctl",
		Short: "Traffic Switcher CLI - port-based deployment tool",
	}

	root.PersistentFlags().StringP("api-url", "a", "http://localhost:1143", "API server URL")

	root.AddCommand(
		commands.NewPortCommand(),
		commands.NewConfigCommand(),
		commands.NewStatusCommand(),
		commands.NewServicesCommand(),
		commands.NewRoutesCommand(),
		commands.NewHealthCommand(),
		commands.NewCurrentCommand(),
		commands.NewRollbackCommand(),
		commands.NewSwitchCommand(),
		commands.NewDeployCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
