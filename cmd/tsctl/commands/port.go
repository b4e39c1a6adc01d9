package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewPortCommand updates a service to a new port via POST /config/port.
func NewPortCommand() *cobra.Command {
	var skipHealth bool

	cmd := &cobra.Command{
		Use:   "port <service> <port>",
		Short: "Update a service to use a different port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			var port int
			if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}

			base := apiURL(cmd)
			color.Blue("Updating %s to port %d...", service, port)

			result, status, err := switchPort(base, service, port, skipHealth)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}
			if result.Error != "" {
				color.Red("✗ %s", result.Error)
				return fmt.Errorf("status %d: %s", status, result.Error)
			}

			color.Green("✓ %s (previous_port=%d, current_port=%d)", result.Message, result.PreviousPort, result.CurrentPort)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipHealth, "skip-health", "s", false, "skip the health check before accepting the switch")
	return cmd
}
