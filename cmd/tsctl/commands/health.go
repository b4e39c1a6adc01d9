package commands

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewHealthCommand probes a service's current host:port directly from the
// client with a single GET against the service's health-check path (no
// retries, unlike the Health Prober), and reports the result.
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health <service>",
		Short: "Check health of a service",
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

			hc := svc.EffectiveHealthCheck(cfg.HealthCheck)
			url := "http://" + net.JoinHostPort(svc.Host, strconv.Itoa(svc.Port)) + hc.Path

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				color.Red("✗ %s: unreachable (%v)", name, err)
				return nil
			}
			defer resp.Body.Close()

			color.Green("✓ %s: responded with status %d", name, resp.StatusCode)
			return nil
		},
	}
}
