package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewServicesCommand lists every service and its current port, derived
// from GET /config.
func NewServicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List all services with their current ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fetchConfig(apiURL(cmd))
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}

			for _, svc := range cfg.Services {
				prev := ""
				if svc.PreviousPort != 0 {
					prev = fmt.Sprintf(" (previous: %d)", svc.PreviousPort)
				}
				fmt.Printf("%s: %s:%d%s\n", svc.Name, svc.Host, svc.Port, prev)
			}
			return nil
		},
	}
}
