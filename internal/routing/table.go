// Package routing holds the process-wide routing table: the derived
// domain->RouteTarget and name->Service indices plus the authoritative
// Config they were built from, all guarded by a single reader/writer lock.
//
// A single coarse lock over the three cells is the explicit design-note
// choice in spec.md §9 ("the three-lock design in the source is a
// premature split") — readers only ever hold it for the duration of a
// lookup and a value copy, never across upstream or filesystem I/O.
package routing

import (
	"fmt"
	"sync"

	"github.com/marshallku/traffic-switcher/internal/config"
)

// Wildcard is the domain literal that matches any Host header with no
// exact route.
const Wildcard = "*"

// RouteTarget is either a forward to a named service or a static-file
// directive. Exactly one of the two is meaningful, discriminated by
// IsStatic.
type RouteTarget struct {
	ServiceName string
	Static      *config.StaticTarget
}

// IsStatic reports whether this target serves files rather than forwarding.
func (t RouteTarget) IsStatic() bool {
	return t.Static != nil
}

// Table is the shared, concurrently-readable AppState: Config plus its two
// derived maps, kept in lock-step by every mutation.
type Table struct {
	mu       sync.RWMutex
	cfg      *config.Config
	services map[string]config.Service
	routes   map[string]RouteTarget
}

// NewTable builds a Table from an already-validated Config.
func NewTable(cfg *config.Config) (*Table, error) {
	services, routes, err := deriveIndices(cfg)
	if err != nil {
		return nil, err
	}
	return &Table{cfg: cfg, services: services, routes: routes}, nil
}

// deriveIndices builds the services_map/routes_map views and checks
// invariant 1 of spec.md §3: every service-route names a known service.
// config.Validate already enforces this at load time; this is the
// belt-and-braces check run again on every reload/replace so a caller
// building a Table directly (e.g. in tests) can't skip it.
func deriveIndices(cfg *config.Config) (map[string]config.Service, map[string]RouteTarget, error) {
	services := make(map[string]config.Service, len(cfg.Services))
	for _, svc := range cfg.Services {
		services[svc.Name] = svc
	}

	routes := make(map[string]RouteTarget, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if r.IsStatic() {
			routes[r.Domain] = RouteTarget{Static: r.Static}
			continue
		}
		if _, ok := services[r.Service]; !ok {
			return nil, fmt.Errorf("routing: route %q references unknown service %q", r.Domain, r.Service)
		}
		routes[r.Domain] = RouteTarget{ServiceName: r.Service}
	}

	return services, routes, nil
}

// LookupRoute returns the RouteTarget mapped to domain, falling back to the
// wildcard entry, or reports absence.
func (t *Table) LookupRoute(domain string) (RouteTarget, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if target, ok := t.routes[domain]; ok {
		return target, true
	}
	target, ok := t.routes[Wildcard]
	return target, ok
}

// LookupService returns the Service named name, or reports absence.
func (t *Table) LookupService(name string) (config.Service, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	svc, ok := t.services[name]
	return svc, ok
}

// Config returns a copy of the current authoritative Config, taken under
// the read lock. Changes to the copy do not reach the table; mutate only
// through Replace or WithWriteLock.
func (t *Table) Config() *config.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.Clone()
}

// Replace atomically swaps Config and both derived maps. Used by the
// reload path; a failed validation upstream of this call must never reach
// it, since Replace itself re-derives (and fails on) a bad invariant
// rather than silently leaving a partially-updated table.
func (t *Table) Replace(cfg *config.Config) error {
	services, routes, err := deriveIndices(cfg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
	t.services = services
	t.routes = routes
	return nil
}

// WithWriteLock runs fn while holding the table's exclusive lock and gives
// it direct access to the live Config and services map so it can perform
// the Port Switcher's validate-mutate sequence as a single atomic step.
// fn must not perform network or filesystem I/O other than the health
// probe, which the switcher deliberately runs here to serialize concurrent
// switches (spec.md §4.D, §5).
func (t *Table) WithWriteLock(fn func(cfg *config.Config, services map[string]config.Service) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.cfg, t.services)
}
