// Command server is the traffic-switcher Supervisor: it loads the
// configuration, binds the control-plane and data-plane listeners, and
// runs them concurrently until an interrupt or termination signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/marshallku/traffic-switcher/internal/breaker"
	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/controlapi"
	"github.com/marshallku/traffic-switcher/internal/health"
	"github.com/marshallku/traffic-switcher/internal/logging"
	"github.com/marshallku/traffic-switcher/internal/metrics"
	"github.com/marshallku/traffic-switcher/internal/proxyengine"
	"github.com/marshallku/traffic-switcher/internal/routing"
	"github.com/marshallku/traffic-switcher/internal/switcher"
)

// shutdownTimeout bounds how long in-flight requests get to finish once a
// shutdown signal arrives.
const shutdownTimeout = 30 * time.Second

// controlAPIRateLimit is the steady-state requests/second allowed against
// the mutating control-plane endpoints.
const controlAPIRateLimit = 5

// proxyClientRateLimit and proxyClientBurst bound how fast any single
// client IP may hit the data-plane listener.
const (
	proxyClientRateLimit  = 50
	proxyClientBurst      = 100
	rateLimiterSweepEvery = time.Minute
)

func main() {
	logger := logging.New()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	table, err := routing.NewTable(cfg)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	metrics.Register()

	watcher, err := config.WatchConfig(config.Path(), func(newCfg *config.Config) {
		if err := table.Replace(newCfg); err != nil {
			logger.Error("config hot-reload rejected", "error", err)
			return
		}
		logger.Info("configuration reloaded")
	}, logger)
	if err != nil {
		logger.Warn("could not start config file watcher, hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	prober := health.NewProber()
	sw := switcher.New(table, prober, config.Path(), logger, nil)

	controlServer := &http.Server{
		Addr:    addr(cfg.APIPort),
		Handler: controlapi.New(table, sw, config.Path(), logger, controlAPIRateLimit),
	}

	engine := proxyengine.New(table, breaker.NewRegistry(logger), logger, proxyClientRateLimit, proxyClientBurst)
	proxyServer := &http.Server{
		Addr:    addr(cfg.ProxyPort),
		Handler: engine,
	}

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(rateLimiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				engine.SweepRateLimiters()
			case <-sweepDone:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	serve := func(srv *http.Server, name string) {
		defer wg.Done()
		logger.Info("listening", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("%s: %w", name, err)
		}
	}

	wg.Add(2)
	go serve(controlServer, "control-api")
	go serve(proxyServer, "proxy")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	listenerFailed := false
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("listener failed, shutting down", "error", err)
		listenerFailed = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownWg sync.WaitGroup
	shutdownWg.Add(2)
	go shutdownOne(ctx, controlServer, "control-api", logger, &shutdownWg)
	go shutdownOne(ctx, proxyServer, "proxy", logger, &shutdownWg)
	shutdownWg.Wait()

	wg.Wait()
	close(sweepDone)
	logger.Info("shutdown complete")

	if listenerFailed {
		os.Exit(1)
	}
}

func shutdownOne(ctx context.Context, srv *http.Server, name string, logger *slog.Logger, wg *sync.WaitGroup) {
	defer wg.Done()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "server", name, "error", err)
	}
}

func addr(port int) string {
	return "0.0.0.0:" + strconv.Itoa(port)
}
