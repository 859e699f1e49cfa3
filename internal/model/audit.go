package model

// AuditEntry is one append-only compliance record. Every assessment and
// every state transition produces one. Writes are best effort with retry at
// the boundary; a dropped audit write never fails or blocks the operation
// that produced it.
type AuditEntry struct {
	RequestID    string         `json:"request_id,omitempty"`
	EventType    EventType      `json:"event_type"`
	Actor        string         `json:"actor"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	Outcome      string         `json:"outcome"`
}
