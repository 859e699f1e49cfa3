// Package mamori is the public API for embedding the Mamori crisis detection
// and intervention engine.
//
// Platform and plugin consumers import this package to construct and extend
// the server without forking it:
//
//	app, err := mamori.New(
//	    mamori.WithVersion(version),
//	    mamori.WithLogger(logger),
//	    mamori.WithEventHook(myPagingHook{}),
//	    mamori.WithResponder(myDispatchClient{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: mamori (root) imports
// internal/*, but internal/* never imports mamori (root). Public types
// (Event, Assessment, etc.) are standalone structs with no internal imports;
// conversion helpers (toPublicEvent, toInternalAssessment) live here because
// this is the only file that sees both sides of the boundary.
package mamori

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/mamori/api"
	"github.com/ashita-ai/mamori/internal/assess"
	"github.com/ashita-ai/mamori/internal/config"
	"github.com/ashita-ai/mamori/internal/extract"
	"github.com/ashita-ai/mamori/internal/history"
	"github.com/ashita-ai/mamori/internal/intervention"
	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/mcp"
	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/ratelimit"
	"github.com/ashita-ai/mamori/internal/responder"
	"github.com/ashita-ai/mamori/internal/server"
	"github.com/ashita-ai/mamori/internal/storage"
	"github.com/ashita-ai/mamori/internal/telemetry"
	"github.com/ashita-ai/mamori/migrations"
)

// App is the Mamori server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	broker       *server.Broker    // nil when no notify connection
	audit        *server.AuditSink // nil when an embedder sink is installed
	cache        *history.Cache
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Mamori server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("mamori starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run embedded migrations, then extra (embedder) migrations.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	// Verify critical tables exist after migration.
	var schemaOK bool
	if err := db.Pool().QueryRow(context.Background(),
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'crisis_interventions')`,
	).Scan(&schemaOK); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("schema verification: %w", err)
	}
	if !schemaOK {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("critical table 'crisis_interventions' does not exist after migration")
	}

	// Load lexicons: embedded defaults first, then an optional override
	// directory layering on top.
	lexFS := []fs.FS{lexicon.DefaultFS()}
	if cfg.LexiconDir != "" {
		lexFS = append(lexFS, os.DirFS(cfg.LexiconDir))
		logger.Info("lexicon overrides", "dir", cfg.LexiconDir)
	}
	lexicons, err := lexicon.Load(logger, lexFS...)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("lexicon: %w", err)
	}

	// Extractor set — external override replaces the built-ins entirely.
	var extractors []extract.Extractor
	if len(o.extractors) > 0 {
		for _, x := range o.extractors {
			extractors = append(extractors, &extractorAdapter{x: x})
		}
		logger.Info("extractors: external", "count", len(extractors))
	} else {
		extractors = extract.Defaults(
			extract.NewBehaviorHistory(10),
			extract.DefaultLinguisticConfig(),
			extract.DefaultTypingConfig(),
		)
	}

	// Historical risk analyzer: TTL cache in front of Postgres (or an
	// external history store).
	cache := history.NewCache(cfg.CacheTTL, cfg.CacheMaxPerUser)
	var persistent history.Store = db
	if o.historyStore != nil {
		persistent = &historyStoreAdapter{s: o.historyStore}
	}
	cached := history.NewCachedStore(cache, persistent)
	analyzer := history.NewAnalyzer(cached, db, cfg.HistoryWindow, logger)

	// Adapt event hooks from public mamori.EventHook to internal server.CrisisHook.
	var hooks []server.CrisisHook
	for _, h := range o.eventHooks {
		hooks = append(hooks, &crisisHookAdapter{hook: h})
	}
	events := server.NewEventPublisher(db, hooks, logger)

	// Audit sink — external override replaces the Postgres audit log.
	var dbAudit *server.AuditSink
	var auditSink assess.AuditSink
	if o.audit != nil {
		auditSink = &auditSinkAdapter{s: o.audit}
	} else {
		dbAudit = server.NewAuditSink(db, logger)
		auditSink = dbAudit
	}

	// Responder: option override, configured webhook, or logging fallback.
	var respond intervention.Responder
	switch {
	case o.responder != nil:
		respond = &responderAdapter{r: o.responder}
		logger.Info("responder: external")
	case cfg.ResponderWebhookURL != "":
		respond = responder.NewWebhook(cfg.ResponderWebhookURL, cfg.ResponderTimeout, logger)
		logger.Info("responder: webhook", "timeout", cfg.ResponderTimeout)
	default:
		respond = responder.Log{Logger: logger}
		logger.Info("responder: log only (no webhook configured)")
	}

	var scheduler intervention.Scheduler = responder.LogScheduler{Logger: logger}
	if o.scheduler != nil {
		scheduler = &schedulerAdapter{s: o.scheduler}
	}

	// Core services, shared by HTTP and MCP handlers.
	assessSvc := assess.New(extractors, lexicons, analyzer, cached, db, auditSink, events, logger)
	interventionSvc := intervention.New(db, respond, scheduler, auditSink, events, logger)

	// MCP server.
	mcpSrv := mcp.New(assessSvc, interventionSvc, logger)

	// SSE broker (requires LISTEN/NOTIFY connection).
	var broker *server.Broker
	if db.NotifyConn() != nil {
		broker = server.NewBroker(db, logger)
	} else {
		logger.Info("SSE broker: disabled (no notify connection)")
	}

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Adapt route registrars and middlewares to the internal server formats.
	var extraRoutes []func(*http.ServeMux)
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, fn)
	}
	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	// Create HTTP server (MCP mounted at /mcp).
	srv := server.New(server.ServerConfig{
		DB:                  db,
		AssessSvc:           assessSvc,
		InterventionSvc:     interventionSvc,
		Logger:              logger,
		Limiter:             limiter,
		Broker:              broker,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         extraRoutes,
		Middlewares:         middlewares,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		broker:       broker,
		audit:        dbAudit,
		cache:        cache,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the SSE broker and the HTTP server, then blocks until ctx is
// cancelled or a fatal server error occurs. On return, Shutdown is called
// automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	if a.broker != nil {
		go a.broker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops accepting HTTP requests and drains in-flight ones, waits
// for background audit writes to land, then closes the assessment cache,
// rate limiter, OTEL provider, and database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("mamori shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	// Audit writes run detached from request contexts; they must finish
	// before the pool closes underneath them.
	if a.audit != nil {
		a.audit.Wait()
	}

	a.cache.Close()
	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close(context.Background())

	a.logger.Info("mamori stopped")
	return nil
}

// ── Adapters (defined here because this file imports both sides) ───────────────

// extractorAdapter wraps a public mamori.Extractor to satisfy extract.Extractor.
type extractorAdapter struct {
	x Extractor
}

func (a *extractorAdapter) Name() string { return a.x.Name() }

func (a *extractorAdapter) Extract(ctx context.Context, in extract.Input) ([]model.Indicator, error) {
	indicators, err := a.x.Extract(ctx, in.UserID, in.Raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.Indicator, 0, len(indicators))
	for _, ind := range indicators {
		internal, err := toInternalIndicator(ind)
		if err != nil {
			return nil, fmt.Errorf("extractor %s: %w", a.x.Name(), err)
		}
		out = append(out, internal)
	}
	return out, nil
}

// historyStoreAdapter wraps a public mamori.HistoryStore to satisfy history.Store.
type historyStoreAdapter struct {
	s HistoryStore
}

func (a *historyStoreAdapter) RecentAssessments(ctx context.Context, userID string, window time.Duration) ([]model.CrisisAssessment, error) {
	assessments, err := a.s.RecentAssessments(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	out := make([]model.CrisisAssessment, 0, len(assessments))
	for _, p := range assessments {
		internal, err := toInternalAssessment(p)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		out = append(out, internal)
	}
	return out, nil
}

// responderAdapter wraps a public mamori.Responder to satisfy intervention.Responder.
type responderAdapter struct {
	r Responder
}

func (a *responderAdapter) Notify(ctx context.Context, tier model.ResponderTier, interventionID uuid.UUID) error {
	return a.r.Notify(ctx, Tier(tier), interventionID)
}

// schedulerAdapter wraps a public mamori.FollowUpScheduler to satisfy intervention.Scheduler.
type schedulerAdapter struct {
	s FollowUpScheduler
}

func (a *schedulerAdapter) Schedule(ctx context.Context, interventionID uuid.UUID, plan model.FollowUpPlan) error {
	return a.s.Schedule(ctx, interventionID, toPublicFollowUpPlan(plan))
}

// auditSinkAdapter wraps a public mamori.AuditSink to satisfy the service
// audit interfaces. Record never returns an error; a sink that fails must
// log internally.
type auditSinkAdapter struct {
	s AuditSink
}

func (a *auditSinkAdapter) Record(ctx context.Context, entry model.AuditEntry) {
	a.s.Record(ctx, toPublicAuditEntry(entry))
}

// crisisHookAdapter wraps a mamori.EventHook to satisfy server.CrisisHook.
// It converts internal model types to public mamori types at the boundary.
type crisisHookAdapter struct {
	hook EventHook
}

func (a *crisisHookAdapter) OnCrisisDetected(ctx context.Context, event model.CrisisEvent) error {
	return a.hook.OnCrisisDetected(ctx, toPublicEvent(event))
}

func (a *crisisHookAdapter) OnInterventionEscalated(ctx context.Context, event model.CrisisEvent) error {
	return a.hook.OnInterventionEscalated(ctx, toPublicEvent(event))
}

// ── Type converters ────────────────────────────────────────────────────────────

// toPublicEvent converts an internal model.CrisisEvent to the public mamori.Event.
// Lives here because this is the only file that imports both sides of the boundary.
func toPublicEvent(e model.CrisisEvent) Event {
	return Event{
		Type:           string(e.Type),
		UserID:         e.UserID,
		AssessmentID:   e.AssessmentID,
		InterventionID: e.InterventionID,
		Severity:       Severity(e.Severity.String()),
		Detail:         e.Detail,
		OccurredAt:     e.OccurredAt,
	}
}

// toPublicFollowUpPlan converts an internal model.FollowUpPlan to the public type.
func toPublicFollowUpPlan(p model.FollowUpPlan) FollowUpPlan {
	return FollowUpPlan{
		ContactWithin:    p.ImmediateContactWithin,
		Appointments:     p.Appointments,
		ResponsibleParty: p.ResponsibleParty,
		NextContactAt:    p.NextContactAt,
	}
}

// toPublicAuditEntry converts an internal model.AuditEntry to the public type.
func toPublicAuditEntry(e model.AuditEntry) AuditEntry {
	return AuditEntry{
		RequestID:    e.RequestID,
		EventType:    string(e.EventType),
		Actor:        e.Actor,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		Outcome:      e.Outcome,
	}
}

// toInternalAssessment converts a public mamori.Assessment for the analyzer.
func toInternalAssessment(a Assessment) (model.CrisisAssessment, error) {
	sev, err := model.ParseSeverity(string(a.Severity))
	if err != nil {
		return model.CrisisAssessment{}, err
	}
	return model.CrisisAssessment{
		ID:                a.ID,
		UserID:            a.UserID,
		IsInCrisis:        a.InCrisis,
		Severity:          sev,
		Confidence:        a.Confidence,
		RequiresImmediate: a.RequiresImmediate,
		Timestamp:         a.Timestamp,
	}, nil
}

// toInternalIndicator converts a public mamori.Indicator for the aggregator.
func toInternalIndicator(i Indicator) (model.Indicator, error) {
	sev, err := model.ParseSeverity(string(i.Severity))
	if err != nil {
		return model.Indicator{}, err
	}
	ts := i.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return model.Indicator{
		Kind:       model.IndicatorKind(i.Kind),
		Severity:   sev,
		Confidence: i.Confidence,
		Language:   i.Language,
		Detail:     i.Detail,
		Timestamp:  ts,
	}, nil
}
