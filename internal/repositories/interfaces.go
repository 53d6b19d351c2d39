package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/therapyflow/calsync/internal/models"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	GetByExternalEventID(ctx context.Context, externalEventID string) (*models.Appointment, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID, since *time.Time) ([]*models.Appointment, error)
	ListForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]*models.Appointment, error)
	// ListLinkedInWindow returns non-cancelled appointments in [from, to]
	// that carry an external event link. Used by the deletion sweep.
	ListLinkedInWindow(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*models.Appointment, error)
	Update(ctx context.Context, appt *models.Appointment) error
	Cancel(ctx context.Context, id uuid.UUID, reason models.CancelReason) error
	SetExternalLink(ctx context.Context, id uuid.UUID, externalEventID, externalCalendarID string, syncedAt time.Time) error
	SetLastExternalSync(ctx context.Context, id uuid.UUID, syncedAt time.Time) error
}

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListByTherapist(ctx context.Context, therapistID uuid.UUID) ([]*models.Client, error)
}

// SyncStatusRepository tracks per-scope sync completion timestamps.
type SyncStatusRepository interface {
	SetLastSync(ctx context.Context, therapistID uuid.UUID, completedAt time.Time) error
	GetLastSync(ctx context.Context, therapistID uuid.UUID) (time.Time, error)
}
