// ABOUTME: HTTP transport adapter: health, tool discovery, and the /mcp endpoint.
// ABOUTME: Composes the auth gate in front of the protocol engine when enabled.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skycast/weather-mcp/internal/auth"
	"github.com/skycast/weather-mcp/internal/mcp"
	"github.com/skycast/weather-mcp/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Config holds configuration for the HTTP server.
type Config struct {
	Addr     string
	Registry *tools.Registry
	// Engine is the shared per-process protocol session.
	Engine *mcp.Engine
	// Validator enables the bearer-token gate on /tools and /mcp. Nil means
	// auth is disabled; the caller is responsible for logging that loudly.
	Validator *auth.Validator
	// RequiredRole, when set, role-gates /mcp in addition to token validation.
	RequiredRole string
	Logger       *slog.Logger
}

// Server exposes the protocol engine over HTTP.
type Server struct {
	cfg    Config
	router *chi.Mux
	logger *slog.Logger
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, router: chi.NewRouter(), logger: logger}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/", s.handleRoot)

	s.router.Group(func(r chi.Router) {
		if cfg.Validator != nil {
			r.Use(auth.Middleware(cfg.Validator, logger))
		}
		r.Get("/tools", s.handleTools)

		r.Group(func(r chi.Router) {
			if cfg.Validator != nil && cfg.RequiredRole != "" {
				r.Use(auth.RequireRole(cfg.RequiredRole))
			}
			r.Post("/mcp", s.handleMCP)
		})
	})

	return s, nil
}

// Router exposes the root HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": mcp.ServerName,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "MCP Weather Server",
		"version": mcp.ServerVersion,
		"endpoints": map[string]string{
			"health": "/health",
			"mcp":    "/mcp",
			"tools":  "/tools",
		},
	})
}

// handleTools mirrors tools/list without requiring the session handshake.
func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.cfg.Registry.List(),
	})
}

// handleMCP processes one JSON-RPC exchange per request body.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		writeRPC(w, s.logger, http.StatusOK, mcp.NewError(nil, mcp.CodeParseError, "failed to read request body", nil))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		writeRPC(w, s.logger, http.StatusOK, mcp.NewError(nil, mcp.CodeInvalidRequest, "request body too large", nil))
		return
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, s.logger, http.StatusOK, mcp.NewError(nil, mcp.CodeParseError, "invalid JSON", nil))
		return
	}

	s.logger.Debug("MCP request", "method", req.Method, "is_notification", req.IsNotification())

	resp := s.cfg.Engine.Handle(r.Context(), &req)
	if resp == nil {
		// Notifications carry no response body.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	status := http.StatusOK
	if resp.Error != nil && resp.Error.Code == mcp.CodeInternalError {
		// Internal faults surface as HTTP 500 with the JSON-RPC envelope
		// still echoing the request id.
		status = http.StatusInternalServerError
	}
	writeRPC(w, s.logger, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPC(w http.ResponseWriter, logger *slog.Logger, status int, resp *mcp.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
