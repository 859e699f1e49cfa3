package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/mamori/internal/assess"
	"github.com/ashita-ai/mamori/internal/intervention"
	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	assessSvc           *assess.Service
	interventionSvc     *intervention.Service
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker.
type HandlersDeps struct {
	DB                  *storage.DB
	AssessSvc           *assess.Service
	InterventionSvc     *intervention.Service
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		assessSvc:           d.AssessSvc,
		interventionSvc:     d.InterventionSvc,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleAnalyze handles POST /v1/analyze.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalyzeRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	assessment, err := h.assessSvc.Analyze(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, assessment)
}

// HandleInitiateIntervention handles POST /v1/interventions.
func (h *Handlers) HandleInitiateIntervention(w http.ResponseWriter, r *http.Request) {
	var req model.InitiateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	iv, err := h.interventionSvc.Initiate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, iv)
}

// HandleListInterventions handles GET /v1/interventions.
// Supports severity, type and assigned_to query filters; only unresolved
// cases are returned, most severe first.
func (h *Handlers) HandleListInterventions(w http.ResponseWriter, r *http.Request) {
	var filters model.ActiveCrisisFilters

	if v := r.URL.Query().Get("severity"); v != "" {
		sev, err := model.ParseSeverity(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid severity: "+v)
			return
		}
		filters.Severity = &sev
	}
	if v := r.URL.Query().Get("type"); v != "" {
		ct := model.CrisisType(v)
		if !model.ValidCrisisType(ct) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidCrisisType, "invalid crisis type: "+v)
			return
		}
		filters.CrisisType = &ct
	}
	if v := r.URL.Query().Get("assigned_to"); v != "" {
		filters.AssignedTo = &v
	}

	active, err := h.interventionSvc.GetActive(r.Context(), filters)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, active)
}

// HandleGetIntervention handles GET /v1/interventions/{intervention_id}.
func (h *Handlers) HandleGetIntervention(w http.ResponseWriter, r *http.Request) {
	id, err := parseInterventionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	iv, err := h.interventionSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, iv)
}

// HandleUpdateAssessment handles POST /v1/interventions/{intervention_id}/assessment.
func (h *Handlers) HandleUpdateAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := parseInterventionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.UpdateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	iv, err := h.interventionSvc.UpdateAssessment(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, iv)
}

// HandleCreateSafetyPlan handles POST /v1/interventions/{intervention_id}/safety-plan.
func (h *Handlers) HandleCreateSafetyPlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseInterventionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.SafetyPlanRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	plan, err := h.interventionSvc.CreateSafetyPlan(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, plan)
}

// HandleResolveIntervention handles POST /v1/interventions/{intervention_id}/resolve.
func (h *Handlers) HandleResolveIntervention(w http.ResponseWriter, r *http.Request) {
	id, err := parseInterventionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.ResolveRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	iv, err := h.interventionSvc.Resolve(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, iv)
}

// HandleAuditTrail handles GET /v1/interventions/{intervention_id}/audit.
// Returns the append-only audit records for one case, oldest first.
func (h *Handlers) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, err := parseInterventionID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	if h.db == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"audit trail not available")
		return
	}

	// 404 for unknown cases rather than an empty trail.
	if _, err := h.interventionSvc.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	limit := queryLimit(r, 200)
	trail, err := h.db.AuditTrail(r.Context(), "intervention", id.String(), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trail)
}

// HandleSubscribe handles GET /v1/subscribe (SSE).
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"SSE not available (LISTEN/NOTIFY not configured)")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	// Without this, idle SSE connections are killed after WriteTimeout (default 30s).
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			pgStatus = "disconnected"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	} else {
		pgStatus = "not configured"
	}

	resp := model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	if h.broker != nil {
		resp.SSEBroker = "running"
	}

	writeJSON(w, r, httpStatus, resp)
}

// --- Shared helpers ---

func parseInterventionID(r *http.Request) (uuid.UUID, error) {
	idStr := r.PathValue("intervention_id")
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("intervention_id is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid intervention_id: %s", idStr)
	}
	return id, nil
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
