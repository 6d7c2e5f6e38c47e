package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/cloudmailbot/internal/instrumentation"
)

// MCPEndpointPath is where the streamable HTTP transport is mounted.
const MCPEndpointPath = "/mcp"

// MCPHTTPServer serves the MCP streamable HTTP transport next to the
// health endpoints.
type MCPHTTPServer struct {
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
}

// MCPHTTPConfig configures NewMCPHTTPServer.
type MCPHTTPConfig struct {
	// DisableStreaming turns off SSE streaming of responses for clients
	// that cannot consume it.
	DisableStreaming bool
	// Health registers /healthz, /readyz and /healthz/detailed when set.
	Health *HealthChecker
	// Metrics records one http_requests_total sample per request when set.
	Metrics *instrumentation.Metrics
}

// NewMCPHTTPServer wires mcpSrv behind MCPEndpointPath.
func NewMCPHTTPServer(mcpSrv *mcpserver.MCPServer, cfg MCPHTTPConfig) *MCPHTTPServer {
	opts := []mcpserver.StreamableHTTPOption{mcpserver.WithEndpointPath(MCPEndpointPath)}
	if cfg.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}

	mux := http.NewServeMux()
	mux.Handle(MCPEndpointPath, mcpserver.NewStreamableHTTPServer(mcpSrv, opts...))
	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(mux)
	}

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		handler = metricsMiddleware(cfg.Metrics, handler)
	}
	return &MCPHTTPServer{handler: handler}
}

// Handler returns the root handler, for tests and embedding.
func (s *MCPHTTPServer) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Shutdown. ready, when non-nil,
// is closed once the listener is bound.
func (s *MCPHTTPServer) Start(addr string, ready chan<- struct{}) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("starting MCP HTTP server", "addr", ln.Addr().String(), "endpoint", MCPEndpointPath)
	if ready != nil {
		close(ready)
	}
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *MCPHTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func metricsMiddleware(m *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Context(), r.Method, pathLabel(r.URL.Path), rec.status, time.Since(start))
	})
}

// pathLabel bounds the metric label to the mounted routes.
func pathLabel(path string) string {
	switch path {
	case MCPEndpointPath, "/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return "other"
	}
}
