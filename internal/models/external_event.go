package models

import "time"

// ExternalEvent is the validated, transient representation of a provider
// calendar entry. It is built by a strict parse step at the API boundary,
// consumed by the mapper, and never persisted.
type ExternalEvent struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Start       *time.Time      `json:"start,omitempty"` // nil for all-day or missing
	End         *time.Time      `json:"end,omitempty"`
	AllDay      bool            `json:"all_day"`
	Attendees   []EventAttendee `json:"attendees,omitempty"`
	Reminders   []EventReminder `json:"reminders,omitempty"`
	Recurrence  string          `json:"recurrence,omitempty"`
	Status      string          `json:"status"` // confirmed, tentative, cancelled
	Updated     time.Time       `json:"updated"`
}

type EventAttendee struct {
	Email     string `json:"email"`
	Organizer bool   `json:"organizer"`
}

type EventReminder struct {
	Method  string `json:"method"` // popup, email
	Minutes int    `json:"minutes"`
}

// Cancelled reports whether the provider marked the event cancelled.
func (e *ExternalEvent) Cancelled() bool {
	return e.Status == "cancelled"
}
