package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewSwitchCommand switches a service from an expected current port to a
// new one, refusing if the service isn't actually on the expected port.
func NewSwitchCommand() *cobra.Command {
	var skipHealth bool

	cmd := &cobra.Command{
		Use:   "switch <service> <from> <to>",
		Short: "Switch a service from one port to another",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid from port %q: %w", args[1], err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid to port %q: %w", args[2], err)
			}

			base := apiURL(cmd)
			cfg, err := fetchConfig(base)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}

			svc, ok := findService(cfg, name)
			if !ok {
				color.Red("✗ unknown service %q", name)
				return fmt.Errorf("unknown service %q", name)
			}

			if svc.Port != from {
				color.Red("✗ %s is currently on port %d, not %d", name, svc.Port, from)
				return fmt.Errorf("service %q not on expected port %d", name, from)
			}

			resp, status, err := switchPort(base, name, to, skipHealth)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}
			if status != 200 {
				color.Red("✗ %s", resp.Error)
				return fmt.Errorf("switch failed: %s", resp.Error)
			}

			color.Green("✓ %s switched: %d -> %d", name, resp.PreviousPort, resp.CurrentPort)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipHealth, "skip-health", "s", false, "skip health check before switching")
	return cmd
}
