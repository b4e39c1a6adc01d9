package config

import "fmt"

// IoError wraps a failure to read or write the configuration file.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("config: io error at %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ParseError wraps a malformed-YAML failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a structurally valid but semantically invalid
// configuration: a missing required field, a zero port, a duplicate
// service name, or a route referencing an unknown service.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("config: schema error: %s", e.Reason)
}

// Validate checks the schema invariants spec.md §3 requires:
//  1. every service-route names a known service
//  2. every service has a non-empty name, host, and a port in (0, 65535]
//  3. service names are unique
func Validate(cfg *Config) error {
	if cfg.APIPort <= 0 {
		return &SchemaError{Reason: "api_port must be a positive port number"}
	}
	if cfg.ProxyPort <= 0 {
		return &SchemaError{Reason: "proxy_port must be a positive port number"}
	}

	seen := make(map[string]struct{}, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc.Name == "" {
			return &SchemaError{Reason: "service missing required field: name"}
		}
		if svc.Host == "" {
			return &SchemaError{Reason: fmt.Sprintf("service %q missing required field: host", svc.Name)}
		}
		if svc.Port <= 0 || svc.Port > 65535 {
			return &SchemaError{Reason: fmt.Sprintf("service %q has invalid port %d", svc.Name, svc.Port)}
		}
		if _, dup := seen[svc.Name]; dup {
			return &SchemaError{Reason: fmt.Sprintf("duplicate service name: %q", svc.Name)}
		}
		seen[svc.Name] = struct{}{}
	}

	for _, route := range cfg.Routes {
		if route.Domain == "" {
			return &SchemaError{Reason: "route missing required field: domain"}
		}
		if route.Static != nil {
			if route.Service != "" {
				return &SchemaError{Reason: fmt.Sprintf("route %q names both a service and a static target", route.Domain)}
			}
			if route.Static.Root == "" {
				return &SchemaError{Reason: fmt.Sprintf("static route %q missing required field: root", route.Domain)}
			}
			continue
		}
		if route.Service == "" {
			return &SchemaError{Reason: fmt.Sprintf("route %q names neither a service nor a static target", route.Domain)}
		}
		if _, ok := seen[route.Service]; !ok {
			return &SchemaError{Reason: fmt.Sprintf("route %q references unknown service %q", route.Domain, route.Service)}
		}
	}

	return nil
}
