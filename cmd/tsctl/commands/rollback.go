package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRollbackCommand switches a service back to the port it held before
// its last switch, as recorded in PreviousPort.
func NewRollbackCommand() *cobra.Command {
	var skipHealth bool

	cmd := &cobra.Command{
		Use:   "rollback <service>",
		Short: "Roll back a service to its previous port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
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

			if svc.PreviousPort == 0 {
				color.Red("✗ %s has no previous port to roll back to", name)
				return fmt.Errorf("no previous port recorded for %q", name)
			}

			resp, status, err := switchPort(base, name, svc.PreviousPort, skipHealth)
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}
			if status != 200 {
				color.Red("✗ %s", resp.Error)
				return fmt.Errorf("rollback failed: %s", resp.Error)
			}

			color.Green("✓ %s rolled back: %d -> %d", name, resp.PreviousPort, resp.CurrentPort)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipHealth, "skip-health", "s", false, "skip health check before switching")
	return cmd
}
