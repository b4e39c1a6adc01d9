// Package config loads, validates, and persists the traffic-switcher
// declarative configuration: services, routes, and the health-check
// defaults that gate port switches.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHealthCheckPath is the path probed when a service or the
	// document omits health_check.path.
	DefaultHealthCheckPath = "/"
	// DefaultRetryCount is the number of probe attempts when omitted.
	DefaultRetryCount = 10
	// DefaultRetryDelaySeconds is the delay between failed probe attempts.
	DefaultRetryDelaySeconds = 1

	// DefaultAPIPort is used by the legacy standalone bootstrap.
	DefaultAPIPort = 1143
	// DefaultProxyPort is used by the legacy standalone bootstrap.
	DefaultProxyPort = 1144

	envConfigPath = "CONFIG_PATH"
	envLegacyPort = "PORT"
	envLegacyHost = "HOST"
	envLegacyProxy = "PROXY_PORT"

	defaultConfigFile = "config.yaml"

	legacyServiceName = "default"
)

// HealthCheckConfig controls the retry loop the Health Prober runs before a
// port switch is accepted.
type HealthCheckConfig struct {
	Path              string `yaml:"path"`
	RetryCount        int    `yaml:"retry_count"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

func (h HealthCheckConfig) withDefaults(fallback HealthCheckConfig) HealthCheckConfig {
	if h.Path == "" {
		h.Path = fallback.Path
	}
	if h.RetryCount == 0 {
		h.RetryCount = fallback.RetryCount
	}
	if h.RetryDelaySeconds == 0 {
		h.RetryDelaySeconds = fallback.RetryDelaySeconds
	}
	return h
}

// Service is a named backend addressable as Host:Port.
type Service struct {
	Name         string             `yaml:"name"`
	Host         string             `yaml:"host"`
	Port         int                `yaml:"port"`
	HealthCheck  *HealthCheckConfig `yaml:"health_check,omitempty"`
	PreviousPort int                `yaml:"previous_port,omitempty"`
}

// EffectiveHealthCheck returns the service's health check configuration
// hydrated with the document-level defaults.
func (s Service) EffectiveHealthCheck(docDefault HealthCheckConfig) HealthCheckConfig {
	if s.HealthCheck == nil {
		return docDefault
	}
	return s.HealthCheck.withDefaults(docDefault)
}

// StaticTarget serves files from a local directory instead of forwarding.
type StaticTarget struct {
	Root     string   `yaml:"root"`
	Index    []string `yaml:"index,omitempty"`
	TryFiles []string `yaml:"try_files,omitempty"`
}

// Route maps an inbound Host value to either a named service or a static
// directive. Exactly one of Service/Static is populated.
type Route struct {
	Domain  string        `yaml:"domain"`
	Service string        `yaml:"service,omitempty"`
	Static  *StaticTarget `yaml:"static,omitempty"`
}

// IsStatic reports whether this route serves files rather than forwarding.
func (r Route) IsStatic() bool {
	return r.Static != nil
}

// Config is the top-level, round-trippable configuration document.
type Config struct {
	APIPort     int               `yaml:"api_port"`
	ProxyPort   int               `yaml:"proxy_port"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
	Services    []Service         `yaml:"services"`
	Routes      []Route           `yaml:"routes"`
}

// Clone deep-copies the Config so callers can mutate a private working copy
// without aliasing slices with the authoritative document.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Services = append([]Service(nil), c.Services...)
	for i := range clone.Services {
		if c.Services[i].HealthCheck != nil {
			hc := *c.Services[i].HealthCheck
			clone.Services[i].HealthCheck = &hc
		}
	}
	clone.Routes = append([]Route(nil), c.Routes...)
	for i := range clone.Routes {
		if c.Routes[i].Static != nil {
			st := *c.Routes[i].Static
			st.Index = append([]string(nil), c.Routes[i].Static.Index...)
			st.TryFiles = append([]string(nil), c.Routes[i].Static.TryFiles...)
			clone.Routes[i].Static = &st
		}
	}
	return &clone
}

// Path resolves the configuration file location from CONFIG_PATH, defaulting
// to "config.yaml" in the working directory.
func Path() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return defaultConfigFile
}

// Load reads and validates the configuration at path, hydrating defaults.
// When the file does not exist and the legacy PORT/HOST/PROXY_PORT
// environment variables are set, a minimal single-service configuration is
// synthesized instead of failing (see original_source/src/env/app.rs).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if cfg, ok := legacyBootstrap(); ok {
				return cfg, nil
			}
			return nil, &IoError{Path: path, Err: err}
		}
		return nil, &IoError{Path: path, Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	hydrateDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically: it is written to a temp sibling file
// and renamed over path, so a crash mid-write never corrupts the original.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &IoError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IoError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IoError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IoError{Path: path, Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &IoError{Path: path, Err: err}
	}

	return nil
}

// hydrateDefaults fills missing health_check fields at the document level.
// Services are left as loaded; their missing fields fall back to the
// document defaults when read through Service.EffectiveHealthCheck.
func hydrateDefaults(cfg *Config) {
	def := HealthCheckConfig{
		Path:              DefaultHealthCheckPath,
		RetryCount:        DefaultRetryCount,
		RetryDelaySeconds: DefaultRetryDelaySeconds,
	}
	cfg.HealthCheck = cfg.HealthCheck.withDefaults(def)
}

// legacyBootstrap synthesizes a minimal Config from PORT/HOST/PROXY_PORT
// when no configuration file is present, matching the original single-
// service standalone mode.
func legacyBootstrap() (*Config, bool) {
	portEnv := os.Getenv(envLegacyPort)
	hostEnv := os.Getenv(envLegacyHost)
	proxyEnv := os.Getenv(envLegacyProxy)

	if portEnv == "" && hostEnv == "" && proxyEnv == "" {
		return nil, false
	}

	port := atoiOr(portEnv, DefaultAPIPort)
	proxyPort := atoiOr(proxyEnv, DefaultProxyPort)
	host := hostEnv
	if host == "" {
		host = "localhost"
	}

	cfg := &Config{
		APIPort:   port,
		ProxyPort: proxyPort,
		HealthCheck: HealthCheckConfig{
			Path:              DefaultHealthCheckPath,
			RetryCount:        DefaultRetryCount,
			RetryDelaySeconds: DefaultRetryDelaySeconds,
		},
		Services: []Service{{
			Name: legacyServiceName,
			Host: host,
			Port: port,
		}},
		Routes: []Route{{
			Domain:  "*",
			Service: legacyServiceName,
		}},
	}
	return cfg, true
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
