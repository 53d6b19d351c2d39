package sync

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therapyflow/calsync/internal/models"
)

// DefaultHistorySize bounds the in-memory audit trail.
const DefaultHistorySize = 1000

// History is an append-only, bounded log of sync operation outcomes,
// newest first. Observability data only; losing it is harmless.
type History struct {
	mu      sync.Mutex
	entries []models.SyncHistoryEntry
	maxSize int
}

func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultHistorySize
	}
	return &History{maxSize: maxSize}
}

// Record prepends an entry, evicting the oldest past capacity.
func (h *History) Record(entry models.SyncHistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]models.SyncHistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[:h.maxSize]
	}
}

// List returns up to limit most recent entries. limit <= 0 means all.
func (h *History) List(limit int) []models.SyncHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.SyncHistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

// ListByScope returns up to limit most recent entries for one scope.
func (h *History) ListByScope(scopeID uuid.UUID, limit int) []models.SyncHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.SyncHistoryEntry
	for _, e := range h.entries {
		if e.ScopeID != scopeID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SuccessRate computes successes/total over the trailing window.
// Returns 1.0 when no entries fall inside the window.
func (h *History) SuccessRate(window time.Duration) float64 {
	cutoff := time.Now().Add(-window)

	h.mu.Lock()
	defer h.mu.Unlock()

	var total, ok int
	for _, e := range h.entries {
		if e.Timestamp.Before(cutoff) {
			// Entries are newest first; everything past here is older.
			break
		}
		total++
		if e.Success {
			ok++
		}
	}

	if total == 0 {
		return 1.0
	}
	return float64(ok) / float64(total)
}
