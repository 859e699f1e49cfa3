package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/assess"
	"github.com/ashita-ai/mamori/internal/extract"
	"github.com/ashita-ai/mamori/internal/history"
	"github.com/ashita-ai/mamori/internal/intervention"
	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/server"
)

// memStore is an in-memory intervention store for handler tests.
type memStore struct {
	mu    sync.Mutex
	cases map[uuid.UUID]model.CrisisIntervention
	plans map[uuid.UUID]model.SafetyPlan
}

func newMemStore() *memStore {
	return &memStore{
		cases: make(map[uuid.UUID]model.CrisisIntervention),
		plans: make(map[uuid.UUID]model.SafetyPlan),
	}
}

func (m *memStore) InsertIntervention(_ context.Context, iv model.CrisisIntervention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[iv.ID] = iv
	return nil
}

func (m *memStore) GetIntervention(_ context.Context, id uuid.UUID) (model.CrisisIntervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iv, ok := m.cases[id]
	if !ok {
		return model.CrisisIntervention{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return iv, nil
}

func (m *memStore) UpdateIntervention(_ context.Context, iv model.CrisisIntervention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[iv.ID]; !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, iv.ID)
	}
	m.cases[iv.ID] = iv
	return nil
}

func (m *memStore) InsertSafetyPlan(_ context.Context, plan model.SafetyPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	return nil
}

func (m *memStore) ActiveInterventions(_ context.Context, filters model.ActiveCrisisFilters) ([]model.CrisisIntervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CrisisIntervention
	for _, iv := range m.cases {
		if iv.Status == model.StatusResolved {
			continue
		}
		if filters.Severity != nil && iv.Severity != *filters.Severity {
			continue
		}
		if filters.CrisisType != nil && iv.CrisisType != *filters.CrisisType {
			continue
		}
		if filters.AssignedTo != nil && iv.AssignedTo != *filters.AssignedTo {
			continue
		}
		out = append(out, iv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].ReportedAt.Before(out[j].ReportedAt)
	})
	return out, nil
}

type noopResponder struct{}

func (noopResponder) Notify(context.Context, model.ResponderTier, uuid.UUID) error { return nil }

type noopScheduler struct{}

func (noopScheduler) Schedule(context.Context, uuid.UUID, model.FollowUpPlan) error { return nil }

type noopAudit struct{}

func (noopAudit) Record(context.Context, model.AuditEntry) {}

type stubHistoryStore struct{}

func (stubHistoryStore) RecentAssessments(context.Context, string, time.Duration) ([]model.CrisisAssessment, error) {
	return nil, nil
}

// capturingHook records crisis events delivered through the publisher.
type capturingHook struct {
	mu     sync.Mutex
	events []model.CrisisEvent
}

func (c *capturingHook) OnCrisisDetected(_ context.Context, event model.CrisisEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingHook) OnInterventionEscalated(_ context.Context, event model.CrisisEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingHook) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestServer builds a server with in-memory collaborators and no database.
func newTestServer(t *testing.T, hooks ...server.CrisisHook) (*server.Server, *capturingHook) {
	t.Helper()
	logger := testLogger()

	hook := &capturingHook{}
	allHooks := append([]server.CrisisHook{hook}, hooks...)
	events := server.NewEventPublisher(nil, allHooks, logger)

	lexicons, err := lexicon.Load(logger, lexicon.DefaultFS())
	require.NoError(t, err)
	extractors := extract.Defaults(
		extract.NewBehaviorHistory(10),
		extract.DefaultLinguisticConfig(),
		extract.DefaultTypingConfig(),
	)
	analyzer := history.NewAnalyzer(stubHistoryStore{}, nil, 24*time.Hour, logger)
	assessSvc := assess.New(extractors, lexicons, analyzer, nil, nil, noopAudit{}, events, logger)

	interventionSvc := intervention.New(newMemStore(), noopResponder{}, noopScheduler{}, noopAudit{}, events, logger)

	srv := server.New(server.ServerConfig{
		AssessSvc:           assessSvc,
		InterventionSvc:     interventionSvc,
		Logger:              logger,
		Port:                0,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
	return srv, hook
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data field of the response envelope into target.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, target any) model.ResponseMeta {
	t.Helper()
	var envelope struct {
		Data json.RawMessage    `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if target != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, target))
	}
	return envelope.Meta
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.APIError {
	t.Helper()
	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, hook := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/analyze", model.AnalyzeRequest{
		Text:   "I want to kill myself tonight, I have a plan",
		UserID: "user-http-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a model.CrisisAssessment
	meta := decodeData(t, rec, &a)
	assert.NotEmpty(t, meta.RequestID)
	assert.Equal(t, model.SeverityImmediate, a.Severity)
	assert.True(t, a.IsInCrisis)
	assert.True(t, a.RequiresImmediate)

	// The crisis-detected hook fires asynchronously.
	assert.Eventually(t, func() bool { return hook.count() >= 1 },
		time.Second, 10*time.Millisecond, "expected crisis hook to fire")
}

func TestAnalyzeEndpointRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/analyze", model.AnalyzeRequest{UserID: "u"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeInvalidInput, apiErr.Error.Code)
}

func TestAnalyzeEndpointRejectsUnknownFields(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/analyze", map[string]any{
		"text":          "hello",
		"unknown_field": true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterventionLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	// Initiate.
	rec := doJSON(t, h, http.MethodPost, "/v1/interventions", model.InitiateRequest{
		UserID:      "user-lifecycle",
		CrisisType:  model.CrisisSuicidalIdeation,
		InitiatedBy: "counselor-1",
		Description: "flagged by triage",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var iv model.CrisisIntervention
	decodeData(t, rec, &iv)
	assert.Equal(t, model.StatusActive, iv.Status)
	assert.Equal(t, model.SeverityModerate, iv.Severity)

	// Fetch it back.
	rec = doJSON(t, h, http.MethodGet, "/v1/interventions/"+iv.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Record a reassessment.
	rec = doJSON(t, h, http.MethodPost, "/v1/interventions/"+iv.ID.String()+"/assessment", model.UpdateRequest{
		Risk:       model.RiskAssessment{RiskLevel: model.RiskHigh},
		AssessorID: "clinician-2",
		Actions:    []model.ActionInput{{Action: "phone check-in"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &iv)
	require.Len(t, iv.Actions, 1)
	assert.Equal(t, "clinician-2", iv.Actions[0].PerformedBy)
	assert.Equal(t, model.SeverityHigh, iv.Severity, "severity follows the new risk level")

	// Attach a safety plan.
	rec = doJSON(t, h, http.MethodPost, "/v1/interventions/"+iv.ID.String()+"/safety-plan", model.SafetyPlanRequest{
		UserID:           "user-lifecycle",
		CopingStrategies: []string{"call a friend"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var plan model.SafetyPlan
	decodeData(t, rec, &plan)
	assert.Equal(t, iv.ID, plan.InterventionID)

	// Resolve.
	rec = doJSON(t, h, http.MethodPost, "/v1/interventions/"+iv.ID.String()+"/resolve", model.ResolveRequest{
		Disposition:   model.Disposition{Outcome: "stabilized"},
		Effectiveness: 8,
		ResolverID:    "clinician-2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &iv)
	assert.Equal(t, model.StatusResolved, iv.Status)

	// Further mutation conflicts.
	rec = doJSON(t, h, http.MethodPost, "/v1/interventions/"+iv.ID.String()+"/resolve", model.ResolveRequest{
		Disposition:   model.Disposition{Outcome: "again"},
		Effectiveness: 5,
		ResolverID:    "clinician-2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeAlreadyResolved, apiErr.Error.Code)
}

func TestGetInterventionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/interventions/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeNotFound, apiErr.Error.Code)
}

func TestGetInterventionInvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/interventions/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInterventionsFilters(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, ct := range []model.CrisisType{model.CrisisSuicidalIdeation, model.CrisisPanicAttack} {
		rec := doJSON(t, h, http.MethodPost, "/v1/interventions", model.InitiateRequest{
			UserID:      "user-filters",
			CrisisType:  ct,
			InitiatedBy: "counselor-1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/interventions?type=suicidal_ideation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []model.CrisisIntervention
	decodeData(t, rec, &active)
	require.Len(t, active, 1)
	assert.Equal(t, model.CrisisSuicidalIdeation, active[0].CrisisType)

	rec = doJSON(t, h, http.MethodGet, "/v1/interventions?severity=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/interventions?type=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeInvalidCrisisType, apiErr.Error.Code)
}

func TestInitiateInvalidCrisisType(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/interventions", model.InitiateRequest{
		UserID:      "u",
		CrisisType:  model.CrisisType("alien_abduction"),
		InitiatedBy: "counselor-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, model.ErrCodeInvalidCrisisType, apiErr.Error.Code)
}

func TestHealthWithoutDatabase(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health model.HealthResponse
	decodeData(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "not configured", health.Postgres)
}

func TestSubscribeUnavailableWithoutBroker(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/subscribe", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
