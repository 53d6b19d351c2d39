package sync

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/therapyflow/calsync/internal/models"
	"github.com/therapyflow/calsync/internal/repositories"
)

// typeKeywords maps summary/description keywords to appointment types.
// Order matters: the first hit wins.
var typeKeywords = []struct {
	keyword string
	apptType models.AppointmentType
}{
	{"intake", models.TypeIntake},
	{"assessment", models.TypeAssessment},
	{"group", models.TypeGroup},
	{"family", models.TypeFamily},
	{"consultation", models.TypeConsultation},
	{"emergency", models.TypeEmergency},
}

// videoDomains are conferencing hosts recognized in the location field.
var videoDomains = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"webex.com",
}

var videoLinkPattern = regexp.MustCompile(`https?://[^\s<>"]*(?:zoom\.us|meet\.google\.com|teams\.microsoft\.com|webex\.com)[^\s<>"]*`)

// DefaultReminderMinutes is used when the external event carries no popup override.
const DefaultReminderMinutes = 60

// InferAppointmentType scans the combined summary and description for type
// keywords, defaulting to therapy.
func InferAppointmentType(summary, description string) models.AppointmentType {
	text := strings.ToLower(summary + " " + description)
	for _, tk := range typeKeywords {
		if strings.Contains(text, tk.keyword) {
			return tk.apptType
		}
	}
	return models.TypeTherapy
}

// InferStatus maps the external event onto a local appointment status.
func InferStatus(ev *models.ExternalEvent, now time.Time) models.AppointmentStatus {
	if ev.Cancelled() {
		return models.StatusCancelled
	}
	if ev.End != nil && ev.End.Before(now) {
		return models.StatusCompleted
	}
	return models.StatusScheduled
}

// ExtractVideoLink prefers a conferencing URL in the location field, then
// falls back to scanning the description.
func ExtractVideoLink(location, description string) string {
	for _, domain := range videoDomains {
		if strings.Contains(location, domain) {
			return strings.TrimSpace(location)
		}
	}
	return videoLinkPattern.FindString(description)
}

// ExtractReminderMinutes returns the popup reminder override, or the default.
func ExtractReminderMinutes(ev *models.ExternalEvent) int {
	for _, r := range ev.Reminders {
		if r.Method == "popup" && r.Minutes > 0 {
			return r.Minutes
		}
	}
	return DefaultReminderMinutes
}

// ParseClientName extracts a client name from the event summary: the text
// before the first " - " separator, or the whole summary. The first word
// becomes the first name, the remainder the last name.
func ParseClientName(summary string) (first, last string) {
	name := summary
	if idx := strings.Index(summary, " - "); idx >= 0 {
		name = summary[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	parts := strings.Fields(name)
	first = parts[0]
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

// Mapper translates external events into local records, resolving or creating
// the owning client. Pure translation except for the client repository lookups.
type Mapper struct {
	clients repositories.ClientRepository
}

func NewMapper(clients repositories.ClientRepository) *Mapper {
	return &Mapper{clients: clients}
}

// ResolveClient finds the client an inbound event belongs to: by a
// non-organizer attendee email first, then by case-insensitive first+last
// name. An unmatched event gets a freshly created client. The bool reports
// whether a client was created.
func (m *Mapper) ResolveClient(ctx context.Context, therapistID uuid.UUID, ev *models.ExternalEvent) (*models.Client, bool, error) {
	first, last := ParseClientName(ev.Summary)
	if first == "" {
		return nil, false, fmt.Errorf("event %s has no usable client name", ev.ID)
	}

	email := attendeeEmail(ev)

	existing, err := m.clients.ListByTherapist(ctx, therapistID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list clients: %w", err)
	}

	if email != "" {
		for _, c := range existing {
			if c.Email != nil && strings.EqualFold(*c.Email, email) {
				return c, false, nil
			}
		}
	}

	for _, c := range existing {
		if strings.EqualFold(c.FirstName, first) && strings.EqualFold(c.LastName, last) {
			return c, false, nil
		}
	}

	client := &models.Client{
		FirstName:   first,
		LastName:    last,
		TherapistID: therapistID,
		Status:      models.ClientActive,
	}
	if email != "" {
		client.Email = &email
	}
	if err := m.clients.Create(ctx, client); err != nil {
		return nil, false, fmt.Errorf("failed to create client: %w", err)
	}
	return client, true, nil
}

// AppointmentFromEvent builds a new local appointment from a mapped event.
func (m *Mapper) AppointmentFromEvent(ev *models.ExternalEvent, clientID, therapistID uuid.UUID, calendarID string, now time.Time) *models.Appointment {
	end := endOrDefault(ev)
	syncedAt := now

	return &models.Appointment{
		ClientID:           clientID,
		TherapistID:        therapistID,
		StartTime:          *ev.Start,
		EndTime:            end,
		Type:               InferAppointmentType(ev.Summary, ev.Description),
		Status:             InferStatus(ev, now),
		Location:           ev.Location,
		Notes:              ev.Description,
		VideoLink:          ExtractVideoLink(ev.Location, ev.Description),
		ReminderMinutes:    ExtractReminderMinutes(ev),
		RecurrenceRule:     ev.Recurrence,
		ExternalEventID:    &ev.ID,
		ExternalCalendarID: calendarID,
		LastExternalSync:   &syncedAt,
	}
}

// attendeeEmail returns the first non-organizer attendee email, if any.
func attendeeEmail(ev *models.ExternalEvent) string {
	for _, a := range ev.Attendees {
		if !a.Organizer && a.Email != "" {
			return a.Email
		}
	}
	return ""
}

// endOrDefault falls back to a one-hour session when the event has no end.
func endOrDefault(ev *models.ExternalEvent) time.Time {
	if ev.End != nil {
		return *ev.End
	}
	return ev.Start.Add(time.Hour)
}
