// Package commands implements the tsctl subcommands, each a thin wrapper
// around the control API's three real endpoints (GET /, GET /config,
// POST /config/port).
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiURL reads the --api-url persistent flag from cmd or any ancestor.
func apiURL(cmd *cobra.Command) string {
	url, _ := cmd.Flags().GetString("api-url")
	if url == "" {
		url, _ = cmd.Root().PersistentFlags().GetString("api-url")
	}
	return url
}

// isLive reports whether GET / succeeds against base.
func isLive(base string) bool {
	resp, err := httpClient.Get(base + "/")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchConfig calls GET /config and decodes the result.
func fetchConfig(base string) (*config.Config, error) {
	resp, err := httpClient.Get(base + "/config")
	if err != nil {
		return nil, fmt.Errorf("contacting %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /config: unexpected status %d", resp.StatusCode)
	}

	var cfg config.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

type portSwitchRequest struct {
	Service         string `json:"service"`
	Port            int    `json:"port"`
	SkipHealthCheck bool   `json:"skip_health_check"`
}

type portSwitchResponse struct {
	Message      string `json:"message"`
	PreviousPort int    `json:"previous_port"`
	CurrentPort  int    `json:"current_port"`
	Error        string `json:"error"`
}

// switchPort calls POST /config/port and returns the decoded response
// regardless of status code, so callers can inspect .Error themselves.
func switchPort(base, service string, port int, skipHealth bool) (*portSwitchResponse, int, error) {
	body, err := json.Marshal(portSwitchRequest{Service: service, Port: port, SkipHealthCheck: skipHealth})
	if err != nil {
		return nil, 0, err
	}

	resp, err := httpClient.Post(base+"/config/port", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("contacting %s: %w", base, err)
	}
	defer resp.Body.Close()

	var result portSwitchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	return &result, resp.StatusCode, nil
}

// findService locates a service by name in cfg.
func findService(cfg *config.Config, name string) (config.Service, bool) {
	for _, svc := range cfg.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return config.Service{}, false
}
