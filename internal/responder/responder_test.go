package responder_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/responder"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWebhookNotify(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	id := uuid.New()
	w := responder.NewWebhook(srv.URL, 5*time.Second, testLogger())
	require.NoError(t, w.Notify(context.Background(), model.TierEmergency, id))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "emergency", gotBody["tier"])
	assert.Equal(t, id.String(), gotBody["intervention_id"])
	assert.NotEmpty(t, gotBody["sent_at"])
}

func TestWebhookNotifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := responder.NewWebhook(srv.URL, 5*time.Second, testLogger())
	err := w.Notify(context.Background(), model.TierUrgent, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifyUnreachable(t *testing.T) {
	w := responder.NewWebhook("http://127.0.0.1:1", time.Second, testLogger())
	err := w.Notify(context.Background(), model.TierCounselor, uuid.New())
	assert.Error(t, err)
}

func TestLogResponder(t *testing.T) {
	l := responder.Log{Logger: testLogger()}
	assert.NoError(t, l.Notify(context.Background(), model.TierResources, uuid.New()))
}

func TestLogScheduler(t *testing.T) {
	s := responder.LogScheduler{Logger: testLogger()}
	err := s.Schedule(context.Background(), uuid.New(), model.FollowUpPlan{
		ImmediateContactWithin: "within 24 hours",
		ResponsibleParty:       "clinician-1",
	})
	assert.NoError(t, err)
}
