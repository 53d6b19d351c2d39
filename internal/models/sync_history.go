package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncHistoryEntry is one line of the in-memory sync audit trail. It is
// observability data, not a source of truth.
type SyncHistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Operation string      `json:"operation"`
	ScopeID   uuid.UUID   `json:"scope_id"`
	Success   bool        `json:"success"`
	Detail    interface{} `json:"detail,omitempty"`
	Error     string      `json:"error,omitempty"`
}
