package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/teemow/cloudmailbot/internal/binding"
	"github.com/teemow/cloudmailbot/internal/cloudmail"
	"github.com/teemow/cloudmailbot/internal/commands"
	"github.com/teemow/cloudmailbot/internal/config"
	"github.com/teemow/cloudmailbot/internal/instrumentation"
)

// ServerContext owns the long-lived dependencies shared by every front end:
// the CloudMail client, the binding store and the command router.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	config      *config.Config
	client      *cloudmail.Client
	store       binding.Store
	router      *commands.Router
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	clientOpts  []cloudmail.Option
	mu          sync.RWMutex
	shutdown    bool
}

// Option customizes NewServerContext.
type Option func(*ServerContext)

// WithStore uses store instead of opening the configured backend.
func WithStore(store binding.Store) Option {
	return func(sc *ServerContext) { sc.store = store }
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = logger }
}

// WithMetrics enables metrics recording.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithAuditLogger enables audit logging of command invocations.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) { sc.auditLogger = al }
}

// withHTTPClient is used by tests to point the CloudMail client at a fake.
func withHTTPClient(hc *http.Client) Option {
	return func(sc *ServerContext) {
		sc.clientOpts = append(sc.clientOpts, cloudmail.WithHTTPClient(hc))
	}
}

// NewServerContext wires the CloudMail client, the binding store and the
// router from cfg.
func NewServerContext(ctx context.Context, cfg *config.Config, opts ...Option) (*ServerContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		config: cfg,
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.logger == nil {
		sc.logger = slog.Default()
	}

	if sc.store == nil {
		store, err := binding.Open(shutdownCtx, cfg.Store, sc.logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open binding store: %w", err)
		}
		sc.store = store
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		sc.logger.Warn("CloudMail configuration incomplete, commands will report it", "missing", missing)
	}

	clientOpts := append([]cloudmail.Option{
		cloudmail.WithLogger(sc.logger),
		cloudmail.WithMetrics(sc.metrics),
	}, sc.clientOpts...)
	sc.client = cloudmail.New(cloudmail.Config{
		BaseURL:       cfg.APIBaseURL,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Timeout:       cfg.HTTPTimeout,
	}, clientOpts...)

	handler := commands.NewHandler(sc.client, sc.store, cfg.EmailDomain, sc.logger)
	sc.router = commands.NewRouter(handler, commands.RouterOptions{
		IsAdmin: cfg.IsAdmin,
		Metrics: sc.metrics,
		Audit:   sc.auditLogger,
		Logger:  sc.logger,
	})

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the loaded configuration.
func (sc *ServerContext) Config() *config.Config {
	return sc.config
}

// Client returns the CloudMail client.
func (sc *ServerContext) Client() *cloudmail.Client {
	return sc.client
}

// Store returns the binding store.
func (sc *ServerContext) Store() binding.Store {
	return sc.store
}

// Router returns the command router.
func (sc *ServerContext) Router() *commands.Router {
	return sc.router
}

// Logger returns the shared logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, or nil when metrics are disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil when auditing is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the context and closes the binding store. It is safe to
// call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			return fmt.Errorf("failed to close binding store: %w", err)
		}
	}
	return nil
}
