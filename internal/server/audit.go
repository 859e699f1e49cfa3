package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashita-ai/mamori/internal/model"
	"github.com/ashita-ai/mamori/internal/storage"
)

// auditWriteTimeout bounds one background audit write including retries.
const auditWriteTimeout = 5 * time.Second

// auditWriter is the slice of storage the sink needs. *storage.DB satisfies it.
type auditWriter interface {
	InsertAuditEntry(ctx context.Context, e model.AuditEntry) error
}

// AuditSink writes compliance records to the crisis audit log. Writes are
// best effort in the background: a dropped audit entry is logged loudly but
// never fails, delays, or blocks the clinical operation that produced it.
type AuditSink struct {
	db     auditWriter
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAuditSink creates an audit sink backed by the database.
func NewAuditSink(db *storage.DB, logger *slog.Logger) *AuditSink {
	return &AuditSink{db: db, logger: logger}
}

// Record appends one audit entry from a background goroutine; the caller
// never waits. The write uses its own timeout, detached from the request
// context, so audit persistence survives client disconnects, and transient
// database errors are retried.
func (s *AuditSink) Record(_ context.Context, entry model.AuditEntry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		err := storage.WithRetry(writeCtx, 2, 50*time.Millisecond, func() error {
			return s.db.InsertAuditEntry(writeCtx, entry)
		})
		if err != nil {
			s.logger.Error("audit write failed",
				"event_type", entry.EventType,
				"resource_id", entry.ResourceID,
				"error", err)
		}
	}()
}

// Wait blocks until all in-flight audit writes have finished. Called on
// shutdown before the database pool closes.
func (s *AuditSink) Wait() {
	s.wg.Wait()
}
