package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRoutesCommand lists every configured route, derived from GET /config.
func NewRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List all routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fetchConfig(apiURL(cmd))
			if err != nil {
				color.Red("✗ %v", err)
				return err
			}

			for _, route := range cfg.Routes {
				if route.IsStatic() {
					fmt.Printf("%s -> static:%s\n", route.Domain, route.Static.Root)
					continue
				}
				fmt.Printf("%s -> %s\n", route.Domain, route.Service)
			}
			return nil
		},
	}
}
