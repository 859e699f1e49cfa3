package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/mamori/internal/assess"
	"github.com/ashita-ai/mamori/internal/intervention"
	"github.com/ashita-ai/mamori/internal/ratelimit"
	"github.com/ashita-ai/mamori/internal/storage"
)

// Server is the Mamori HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Broker, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	DB              *storage.DB
	AssessSvc       *assess.Service
	InterventionSvc *intervention.Service
	Logger          *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	Broker    *Broker
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// OpenAPI spec served at GET /openapi.yaml when non-empty.
	OpenAPISpec []byte

	// Extension points for embedders.
	ExtraRoutes []func(*http.ServeMux)
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		AssessSvc:           cfg.AssessSvc,
		InterventionSvc:     cfg.InterventionSvc,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	rl := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)

	mux := http.NewServeMux()

	// Analysis.
	mux.Handle("POST /v1/analyze", rl(http.HandlerFunc(h.HandleAnalyze)))

	// Intervention lifecycle.
	mux.Handle("POST /v1/interventions", rl(http.HandlerFunc(h.HandleInitiateIntervention)))
	mux.Handle("GET /v1/interventions", rl(http.HandlerFunc(h.HandleListInterventions)))
	mux.Handle("GET /v1/interventions/{intervention_id}", rl(http.HandlerFunc(h.HandleGetIntervention)))
	mux.Handle("POST /v1/interventions/{intervention_id}/assessment", rl(http.HandlerFunc(h.HandleUpdateAssessment)))
	mux.Handle("POST /v1/interventions/{intervention_id}/safety-plan", rl(http.HandlerFunc(h.HandleCreateSafetyPlan)))
	mux.Handle("POST /v1/interventions/{intervention_id}/resolve", rl(http.HandlerFunc(h.HandleResolveIntervention)))
	mux.Handle("GET /v1/interventions/{intervention_id}/audit", rl(http.HandlerFunc(h.HandleAuditTrail)))

	// Subscription endpoint (no rate limit, long-lived connection).
	mux.Handle("GET /v1/subscribe", http.HandlerFunc(h.HandleSubscribe))

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// OpenAPI spec (no rate limit).
	if len(cfg.OpenAPISpec) > 0 {
		spec := cfg.OpenAPISpec
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			w.Write(spec)
		})
	}

	// Embedder routes share the mux and the middleware chain below.
	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	// Embedder middlewares wrap outermost, first-registered outermost.
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers for use in tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
