// Package controlapi implements the HTTP control plane bound to api_port:
// liveness, config introspection, reload, and the port switch endpoint.
package controlapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/metrics"
	"github.com/marshallku/traffic-switcher/internal/routing"
	"github.com/marshallku/traffic-switcher/internal/switcher"
	"golang.org/x/time/rate"
)

// rateLimitBurst caps the instantaneous burst of mutating requests the
// control API accepts before returning 429. Non-goals exclude
// authenticating this API but not rate-limiting it, and an unauthenticated
// mutation endpoint is a natural flood target.
const rateLimitBurst = 20

type portRequest struct {
	Service         string `json:"service"`
	Port            int    `json:"port"`
	SkipHealthCheck bool   `json:"skip_health_check"`
}

type portResponse struct {
	Message      string `json:"message"`
	PreviousPort int    `json:"previous_port"`
	CurrentPort  int    `json:"current_port"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server wires the routing Table, Port Switcher, and Config Store
// reload path behind the four control-plane endpoints, and serves
// GET /metrics alongside them.
type Server struct {
	table      *routing.Table
	switcher   *switcher.Switcher
	configPath string
	logger     *slog.Logger
	limiter    *rate.Limiter
	mux        *http.ServeMux
}

// New builds a Server and registers its routes.
func New(table *routing.Table, sw *switcher.Switcher, configPath string, logger *slog.Logger, requestsPerSecond float64) *Server {
	s := &Server{
		table:      table,
		switcher:   sw,
		configPath: configPath,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), rateLimitBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleLive)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /config/port", s.rateLimited(s.handlePort))
	mux.HandleFunc("GET /config/reload", s.rateLimited(s.handleReload))
	mux.Handle("GET /metrics", metrics.Handler())
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler. A panic in a handler is logged and
// answered with a 500.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler {
				panic(p)
			}
			s.logger.Error("panic in control API handler", "panic", p, "path", r.URL.Path)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		}
	}()
	s.mux.ServeHTTP(w, r)
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.table.Config())
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	var req portRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	if req.Port == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid port number"})
		return
	}

	oldPort, err := s.switcher.UpdateServicePort(r.Context(), req.Service, req.Port, req.SkipHealthCheck)
	if err != nil {
		s.respondSwitchError(w, req.Service, err)
		return
	}

	metrics.RecordPortSwitch(req.Service, "success")
	writeJSON(w, http.StatusOK, portResponse{
		Message:      "port updated",
		PreviousPort: oldPort,
		CurrentPort:  req.Port,
	})
}

func (s *Server) respondSwitchError(w http.ResponseWriter, service string, err error) {
	switch {
	case errors.Is(err, switcher.ErrServiceNotFound):
		metrics.RecordPortSwitch(service, "not_found")
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, switcher.ErrInvalidPort):
		metrics.RecordPortSwitch(service, "invalid_port")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid port number"})
	case errors.Is(err, switcher.ErrHealthCheckFailed):
		metrics.RecordPortSwitch(service, "health_check_failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		s.logger.Error("unexpected port switch error", "error", err, "service", service)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error("config reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	if err := s.table.Replace(cfg); err != nil {
		s.logger.Error("config reload rejected", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
