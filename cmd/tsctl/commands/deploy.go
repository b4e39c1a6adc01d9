package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewDeployCommand performs a blue-green deployment: switch a service from
// its previous live port to the newly deployed port, verifying the service
// is currently on previousPort before doing so.
func NewDeployCommand() *cobra.Command {
	var skipHealth bool

	cmd := &cobra.Command{
		Use:   "deploy <service> <previous_port> <next_port>",
		Short: "Deploy a service by switching from its previous port to the next one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			previousPort, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid previous port %q: %w", args[1], err)
			}
			nextPort, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid next port %q: %w", args[2], err)
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

			if svc.Port != previousPort {
				color.Red("✗ %s is currently on port %d, expected %d", name, svc.Port, previousPort)
				return fmt.Errorf("service %q not on expected port %d", name, previousPort)
			}

			color.Cyan("deploying %s: %d -> %d", name, previousPort, nextPort)

			resp, status, err := switchPort(base, name, nextPort, skipHealth)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}
			if status != 200 {
				color.Red("✗ deployment failed: %s", resp.Error)
				return fmt.Errorf("deploy failed: %s", resp.Error)
			}

			color.Green("✓ %s deployed: %d -> %d", name, resp.PreviousPort, resp.CurrentPort)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipHealth, "skip-health", "s", false, "skip health check before switching")
	return cmd
}
