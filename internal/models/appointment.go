package models

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentType string

const (
	TypeTherapy      AppointmentType = "therapy"
	TypeIntake       AppointmentType = "intake"
	TypeAssessment   AppointmentType = "assessment"
	TypeGroup        AppointmentType = "group"
	TypeFamily       AppointmentType = "family"
	TypeConsultation AppointmentType = "consultation"
	TypeEmergency    AppointmentType = "emergency"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// CancelReason is the persisted reason for a sync-driven cancellation.
// Kept as a closed enum so the two provider-driven paths stay distinguishable.
type CancelReason string

const (
	// ReasonCancelledExternally: the provider still lists the event, with status "cancelled".
	ReasonCancelledExternally CancelReason = "cancelled_externally"
	// ReasonDeletedExternally: the event vanished from the provider entirely.
	ReasonDeletedExternally CancelReason = "deleted_externally"
)

// Appointment is the locally owned calendar entry. ExternalEventID nil means
// the appointment has never been linked to the provider and is exempt from
// deletion-detection sweeps.
type Appointment struct {
	ID                 uuid.UUID         `json:"id"`
	ClientID           uuid.UUID         `json:"client_id"`
	TherapistID        uuid.UUID         `json:"therapist_id"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	Type               AppointmentType   `json:"type"`
	Status             AppointmentStatus `json:"status"`
	Location           string            `json:"location,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	VideoLink          string            `json:"video_link,omitempty"`
	ReminderMinutes    int               `json:"reminder_minutes"`
	ReminderSent       bool              `json:"reminder_sent"`
	RecurrenceRule     string            `json:"recurrence_rule,omitempty"`
	RecurrenceID       *uuid.UUID        `json:"recurrence_id,omitempty"`
	ExternalEventID    *string           `json:"external_event_id,omitempty"`
	ExternalCalendarID string            `json:"external_calendar_id,omitempty"`
	LastExternalSync   *time.Time        `json:"last_external_sync,omitempty"`
	CancelReason       *CancelReason     `json:"cancel_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          *time.Time        `json:"updated_at,omitempty"`
}

// Linked reports whether the appointment is tied to an external event.
func (a *Appointment) Linked() bool {
	return a.ExternalEventID != nil && *a.ExternalEventID != ""
}
