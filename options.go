package mamori

import (
	"io/fs"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	notifyURL       string
	logger          *slog.Logger
	version         string
	extractors      []Extractor
	historyStore    HistoryStore
	responder       Responder
	scheduler       FollowUpScheduler
	audit           AuditSink
	eventHooks      []EventHook
	routeRegistrars []RouteRegistrar
	middlewares     []Middleware
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (MAMORI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY (NOTIFY_URL env var).
// Set this when using a connection pooler (e.g. PgBouncer) for queries — LISTEN/NOTIFY
// requires a direct (non-pooled) connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithExtractors replaces the built-in extractor set (keyword, pattern,
// linguistic, typing) with the given extractors. The set replaces, never
// augments: callers who want the built-ins plus their own should not use
// this option and instead contribute lexicon overrides via MAMORI_LEXICON_DIR.
func WithExtractors(extractors ...Extractor) Option {
	return func(o *resolvedOptions) { o.extractors = extractors }
}

// WithHistoryStore replaces Postgres as the persistent assessment history
// behind the in-memory cache. Only the last call wins.
func WithHistoryStore(s HistoryStore) Option {
	return func(o *resolvedOptions) { o.historyStore = s }
}

// WithResponder replaces the configured responder (webhook when
// MAMORI_RESPONDER_WEBHOOK_URL is set, logging otherwise).
// Only the last call wins.
func WithResponder(r Responder) Option {
	return func(o *resolvedOptions) { o.responder = r }
}

// WithFollowUpScheduler replaces the logging follow-up scheduler.
// Only the last call wins.
func WithFollowUpScheduler(s FollowUpScheduler) Option {
	return func(o *resolvedOptions) { o.scheduler = s }
}

// WithAuditSink replaces the append-only Postgres audit log with an external
// sink. Only the last call wins. The sink is called in the background and
// must tolerate concurrent Record calls.
func WithAuditSink(s AuditSink) Option {
	return func(o *resolvedOptions) { o.audit = s }
}

// WithEventHook registers an event hook to receive crisis lifecycle
// notifications. Multiple hooks may be registered; all registered hooks
// receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the embedded migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
