package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewStatusCommand reports whether the API is reachable and, if so,
// summarizes the proxy port and active services.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := apiURL(cmd)
			fmt.Println("Traffic Switcher Status:")
			fmt.Println("------------------------")

			if !isLive(base) {
				color.Red("✗ API Server: Not responding at %s", base)
				return nil
			}
			color.Green("✓ API Server: Running at %s", base)

			cfg, err := fetchConfig(base)
			if err != nil {
				color.Red("✗ %v", err)
				return nil
			}

			color.Green("✓ Proxy Server: Port %d", cfg.ProxyPort)
			fmt.Printf("\nActive Services (%d):\n", len(cfg.Services))
			for _, svc := range cfg.Services {
				fmt.Printf("  - %s: port %d\n", svc.Name, svc.Port)
			}
			return nil
		},
	}
}
