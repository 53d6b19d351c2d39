package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/therapyflow/calsync/internal/models"
)

type ConflictKind string

const (
	// ConflictOverlap: the proposed slot directly overlaps an appointment.
	ConflictOverlap ConflictKind = "overlap"
	// ConflictBuffer: the proposed slot violates the between-session buffer.
	ConflictBuffer ConflictKind = "buffer"
)

type Conflict struct {
	Kind        ConflictKind        `json:"kind"`
	Appointment *models.Appointment `json:"appointment"`
}

// CheckConflicts scans same-day appointments for a proposed slot and flags
// direct overlaps and buffer violations. Cancelled appointments are ignored;
// excludeID lets a reschedule skip the appointment being moved.
func (e *Engine) CheckConflicts(ctx context.Context, therapistID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]Conflict, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end time must be after start time")
	}

	sameDay, err := e.appts.ListForDay(ctx, therapistID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load same-day appointments: %w", err)
	}

	buffer := e.cfg.ConflictBuffer
	var conflicts []Conflict

	for _, appt := range sameDay {
		if appt.Status == models.StatusCancelled {
			continue
		}
		if excludeID != nil && appt.ID == *excludeID {
			continue
		}

		if start.Before(appt.EndTime) && end.After(appt.StartTime) {
			conflicts = append(conflicts, Conflict{Kind: ConflictOverlap, Appointment: appt})
			continue
		}

		if start.Before(appt.EndTime.Add(buffer)) && end.After(appt.StartTime.Add(-buffer)) {
			conflicts = append(conflicts, Conflict{Kind: ConflictBuffer, Appointment: appt})
		}
	}

	return conflicts, nil
}
