// Package api implements the assistant's local HTTP API: command
// submission, read-only history, the live state, user settings, service
// control, Prometheus metrics and a WebSocket feed of bus events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nugget/chatur/internal/assistant"
	"github.com/nugget/chatur/internal/buildinfo"
	"github.com/nugget/chatur/internal/connwatch"
	"github.com/nugget/chatur/internal/conversation"
	"github.com/nugget/chatur/internal/events"
	"github.com/nugget/chatur/internal/processor"
	"github.com/nugget/chatur/internal/settings"
	"github.com/nugget/chatur/internal/supervisor"
)

// Limits for request bodies and list endpoints.
const (
	maxBodyBytes   = 64 << 10
	defaultHistory = 50
	maxHistory     = 100
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// CommandRunner processes one utterance. *processor.Processor
// satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, text string) processor.Result
}

// HistoryReader returns recent exchanges, oldest first.
type HistoryReader interface {
	Recent(limit int, sessionID string) ([]conversation.Exchange, error)
}

// StateReader reports the activation state.
type StateReader interface {
	State() assistant.State
}

// SettingsStore is the subset of *settings.Store the API uses.
type SettingsStore interface {
	List(namespace string) (map[string]string, error)
	Set(namespace, key, value string) error
}

// ServiceController accepts supervisor commands. *supervisor.Managed
// satisfies it.
type ServiceController interface {
	Send(ctx context.Context, cmd supervisor.Command) (<-chan supervisor.Status, error)
}

// DependencyReporter reports collaborator health. *connwatch.Manager
// satisfies it.
type DependencyReporter interface {
	Status() map[string]connwatch.ServiceStatus
}

// Config wires a Server. Every collaborator is optional; routes whose
// collaborator is missing answer 503.
type Config struct {
	Address      string
	Port         int
	Commands     CommandRunner
	History      HistoryReader
	State        StateReader
	Settings     SettingsStore
	Service      ServiceController
	Dependencies DependencyReporter
	Bus          *events.Bus
	// Gatherer backs /metrics (default prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer
	// ServiceTimeout bounds how long a service command may wait for the
	// control loop (default 10s).
	ServiceTimeout time.Duration
	Logger         *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	address        string
	port           int
	commands       CommandRunner
	history        HistoryReader
	state          StateReader
	settings       SettingsStore
	service        ServiceController
	deps           DependencyReporter
	gatherer       prometheus.Gatherer
	serviceTimeout time.Duration
	hub            *hub
	logger         *slog.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.ServiceTimeout <= 0 {
		cfg.ServiceTimeout = 10 * time.Second
	}
	return &Server{
		address:        cfg.Address,
		port:           cfg.Port,
		commands:       cfg.Commands,
		history:        cfg.History,
		state:          cfg.State,
		settings:       cfg.Settings,
		service:        cfg.Service,
		deps:           cfg.Dependencies,
		gatherer:       cfg.Gatherer,
		serviceTimeout: cfg.ServiceTimeout,
		hub:            newHub(cfg.Bus, cfg.Logger),
		logger:         cfg.Logger,
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)

	mux.HandleFunc("POST /v1/command", s.handleCommand)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/state", s.handleState)

	mux.HandleFunc("GET /v1/settings", s.handleSettingsGet)
	mux.HandleFunc("PUT /v1/settings", s.handleSettingsPut)

	mux.HandleFunc("POST /v1/service/{command}", s.handleService)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", s.handleWS)

	return s.withLogging(mux)
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and closes WebSocket clients.
// A Start that has not begun listening yet returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) ok(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().Round(time.Second).String(),
	}
	if s.deps != nil {
		deps := s.deps.Status()
		resp["dependencies"] = deps
		for _, d := range deps {
			if !d.Ready {
				resp["status"] = "degraded"
			}
		}
	}
	if s.state != nil {
		resp["state"] = s.state.State()
	}
	s.ok(w, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.ok(w, buildinfo.RuntimeInfo())
}

type commandRequest struct {
	Text string `json:"text"`
}

type commandResponse struct {
	Response string `json:"response"`
	Intent   string `json:"intent"`
	Language string `json:"language,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "command processing is not available")
		return
	}
	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.errorResponse(w, http.StatusBadRequest, "text is required")
		return
	}

	res := s.commands.Run(r.Context(), text)
	resp := commandResponse{
		Response: res.Response,
		Intent:   string(res.Intent.Kind()),
		Language: res.Intent.Language(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	s.ok(w, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "history is not available")
		return
	}
	limit := min(max(parseIntParam(r, "limit", defaultHistory), 1), maxHistory)

	exchanges, err := s.history.Recent(limit, r.URL.Query().Get("session"))
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "history query failed")
		return
	}
	// Newest first for display.
	out := make([]conversation.Exchange, 0, len(exchanges))
	for i := len(exchanges) - 1; i >= 0; i-- {
		out = append(out, exchanges[i])
	}
	s.ok(w, map[string]any{"exchanges": out, "count": len(out)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "assistant state is not available")
		return
	}
	st := s.state.State()
	s.ok(w, map[string]any{
		"state":  st,
		"active": st != assistant.Idle,
	})
}

func settingsNamespace(r *http.Request) string {
	if ns := strings.TrimSpace(r.URL.Query().Get("namespace")); ns != "" {
		return ns
	}
	return settings.NamespaceUser
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "settings are not available")
		return
	}
	ns := settingsNamespace(r)
	values, err := s.settings.List(ns)
	if err != nil {
		s.logger.Error("settings list failed", "namespace", ns, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "settings query failed")
		return
	}
	s.ok(w, map[string]any{"namespace": ns, "settings": values})
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "settings are not available")
		return
	}
	var values map[string]string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&values); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "body must be a JSON object of string values")
		return
	}
	if len(values) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "no settings given")
		return
	}
	ns := settingsNamespace(r)
	for k, v := range values {
		if strings.TrimSpace(k) == "" {
			s.errorResponse(w, http.StatusBadRequest, "setting keys must not be empty")
			return
		}
		if err := s.settings.Set(ns, k, v); err != nil {
			s.logger.Error("settings update failed", "namespace", ns, "key", k, "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "settings update failed")
			return
		}
	}
	s.logger.Info("settings updated", "namespace", ns, "keys", len(values))
	s.handleSettingsGet(w, r)
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "no supervised service")
		return
	}
	cmd, err := supervisor.ParseCommand(r.PathValue("command"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.serviceTimeout)
	defer cancel()

	reply, err := s.service.Send(ctx, cmd)
	if err != nil {
		if errors.Is(err, supervisor.ErrClosed) {
			s.errorResponse(w, http.StatusConflict, err.Error())
			return
		}
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	select {
	case st := <-reply:
		s.ok(w, map[string]any{
			"command":  cmd,
			"service":  st.Service,
			"state":    st.State(),
			"error":    st.Error,
			"restarts": st.Restarts,
		})
	case <-ctx.Done():
		s.errorResponse(w, http.StatusGatewayTimeout, "service command did not complete in time")
	}
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
