package server

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/mamori/internal/model"
)

type stubAuditWriter struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	calls   int
	failFor int           // first failFor calls return a transient error
	release chan struct{} // when non-nil, every write blocks until closed
}

func (w *stubAuditWriter) InsertAuditEntry(_ context.Context, e model.AuditEntry) error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls <= w.failFor {
		return &pgconn.PgError{Code: "40001"}
	}
	w.entries = append(w.entries, e)
	return nil
}

func (w *stubAuditWriter) snapshot() ([]model.AuditEntry, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.AuditEntry(nil), w.entries...), w.calls
}

func TestAuditRecordNeverBlocksCaller(t *testing.T) {
	release := make(chan struct{})
	w := &stubAuditWriter{release: release}
	sink := &AuditSink{db: w, logger: slog.Default()}

	start := time.Now()
	sink.Record(context.Background(), model.AuditEntry{
		EventType:  model.EventAssessmentProduced,
		Actor:      "engine",
		ResourceID: "assessment-1",
	})
	elapsed := time.Since(start)

	// The write is stalled behind the release channel; Record must have
	// handed it off without waiting.
	assert.Less(t, elapsed, 100*time.Millisecond, "Record must not wait on the store")

	close(release)
	sink.Wait()

	entries, _ := w.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, model.EventAssessmentProduced, entries[0].EventType)
}

func TestAuditRecordRetriesTransientFailures(t *testing.T) {
	w := &stubAuditWriter{failFor: 2}
	sink := &AuditSink{db: w, logger: slog.Default()}

	sink.Record(context.Background(), model.AuditEntry{
		EventType:  model.EventInterventionResolved,
		Actor:      "counselor-1",
		ResourceID: "case-1",
	})
	sink.Wait()

	entries, calls := w.snapshot()
	require.Len(t, entries, 1, "entry must land once the conflict clears")
	assert.Equal(t, 3, calls)
}

func TestAuditWaitDrainsAllWrites(t *testing.T) {
	w := &stubAuditWriter{}
	sink := &AuditSink{db: w, logger: slog.Default()}

	for i := 0; i < 20; i++ {
		sink.Record(context.Background(), model.AuditEntry{
			EventType: model.EventInterventionUpdated,
			Actor:     "counselor-1",
		})
	}
	sink.Wait()

	entries, _ := w.snapshot()
	assert.Len(t, entries, 20)
}
