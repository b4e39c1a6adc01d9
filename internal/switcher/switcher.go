// Package switcher implements the single mutator of a service's port: the
// validate -> mutate -> probe -> persist sequence that is the only way a
// service's host:port pair changes at runtime.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/health"
	"github.com/marshallku/traffic-switcher/internal/routing"
)

// ErrServiceNotFound is returned when name does not match a known service.
var ErrServiceNotFound = errors.New("switcher: service not found")

// ErrInvalidPort is returned when newPort is zero.
var ErrInvalidPort = errors.New("switcher: invalid port number")

// ErrHealthCheckFailed is returned when the probe against the new port does
// not complete before the retry budget is exhausted. The switch is NOT
// rolled back: the table keeps pointing at newPort, and the caller is
// expected to decide whether to retry, accept it, or switch back
// explicitly. Reverting silently would hide which port the process is
// actually forwarding to, which is strictly worse for an operator mid
// incident.
var ErrHealthCheckFailed = errors.New("switcher: health check failed")

// Switcher coordinates the routing table, the health prober, and config
// persistence to perform the single atomic "move this service to a new
// port" operation.
type Switcher struct {
	table       *routing.Table
	prober      *health.Prober
	configPath  string
	logger      *slog.Logger
	afterSwitch func(service string, ok bool)
}

// New builds a Switcher. afterSwitch, if non-nil, is invoked after every
// attempted switch (successful or not) and is intended for metrics
// recording; it must not block or mutate table.
func New(table *routing.Table, prober *health.Prober, configPath string, logger *slog.Logger, afterSwitch func(service string, ok bool)) *Switcher {
	return &Switcher{
		table:       table,
		prober:      prober,
		configPath:  configPath,
		logger:      logger,
		afterSwitch: afterSwitch,
	}
}

// UpdateServicePort moves service name to newPort, optionally skipping the
// health probe, and reports the port it held immediately beforehand.
//
// The probe runs inside the WithWriteLock closure, before the table's
// exclusive lock is released: spec.md §5 makes the write lock the
// serialization point across the health probe specifically so two
// switches (of the same or different services) can never probe
// concurrently. Persistence failure after a successful switch is logged,
// not returned: the in-memory state remains authoritative and the
// operator is expected to notice via logs or a subsequent GET /config.
func (s *Switcher) UpdateServicePort(ctx context.Context, name string, newPort int, skipHealthCheck bool) (oldPort int, err error) {
	if newPort == 0 {
		return 0, ErrInvalidPort
	}

	var (
		host     string
		snapshot *config.Config
		notFound bool
		healthy  = true
	)

	lockErr := s.table.WithWriteLock(func(cfg *config.Config, services map[string]config.Service) error {
		svc, ok := services[name]
		if !ok {
			notFound = true
			return nil
		}

		oldPort = svc.Port
		svc.PreviousPort = oldPort
		svc.Port = newPort
		services[name] = svc

		for i := range cfg.Services {
			if cfg.Services[i].Name == name {
				cfg.Services[i] = svc
			}
		}

		host = svc.Host
		healthCfg := svc.EffectiveHealthCheck(cfg.HealthCheck)
		snapshot = cfg

		if !skipHealthCheck {
			healthy = s.prober.Probe(ctx, name, host, newPort, healthCfg)
		}
		return nil
	})
	if lockErr != nil {
		return 0, lockErr
	}
	if notFound {
		return 0, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	if s.afterSwitch != nil {
		s.afterSwitch(name, healthy)
	}

	if !healthy {
		return oldPort, fmt.Errorf("%w: service %s at %s:%d", ErrHealthCheckFailed, name, host, newPort)
	}

	if err := config.Save(s.configPath, snapshot); err != nil {
		s.logger.Error("failed to persist config after port switch",
			"service", name, "new_port", newPort, "error", err)
	}

	return oldPort, nil
}
