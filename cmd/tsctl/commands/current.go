package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewCurrentCommand prints the port a service currently holds.
func NewCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current <service>",
		Short: "Show current port for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := fetchConfig(apiURL(cmd))
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}

			svc, ok := findService(cfg, name)
			if !ok {
				color.Red("✗ unknown service %q", name)
				return fmt.Errorf("unknown service %q", name)
			}

			fmt.Println(svc.Port)
			return nil
		},
	}
}
