package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therapyflow/calsync/internal/models"
)

func TestInferAppointmentType(t *testing.T) {
	tests := []struct {
		name        string
		summary     string
		description string
		want        models.AppointmentType
	}{
		{"default therapy", "Jane Doe - session", "", models.TypeTherapy},
		{"intake in summary", "Jane Doe - Intake", "", models.TypeIntake},
		{"assessment case-insensitive", "Jane Doe - ASSESSMENT", "", models.TypeAssessment},
		{"keyword in description", "Jane Doe", "family session follow-up", models.TypeFamily},
		{"group", "Tuesday group", "", models.TypeGroup},
		{"consultation", "Dr. Smith consultation", "", models.TypeConsultation},
		{"emergency", "Jane Doe - emergency slot", "", models.TypeEmergency},
		{"first keyword wins", "intake assessment", "", models.TypeIntake},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferAppointmentType(tt.summary, tt.description))
		})
	}
}

func TestInferStatus(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, models.StatusCancelled, InferStatus(&models.ExternalEvent{Status: "cancelled", End: &future}, now))
	assert.Equal(t, models.StatusCompleted, InferStatus(&models.ExternalEvent{Status: "confirmed", End: &past}, now))
	assert.Equal(t, models.StatusScheduled, InferStatus(&models.ExternalEvent{Status: "confirmed", End: &future}, now))
	assert.Equal(t, models.StatusScheduled, InferStatus(&models.ExternalEvent{Status: "confirmed"}, now), "No end time means not yet completed")
}

func TestExtractVideoLink(t *testing.T) {
	tests := []struct {
		name        string
		location    string
		description string
		want        string
	}{
		{"zoom in location", "https://zoom.us/j/123456", "", "https://zoom.us/j/123456"},
		{"meet in description", "Office A", "Join: https://meet.google.com/abc-defg-hij today", "https://meet.google.com/abc-defg-hij"},
		{"location wins over description", "https://teams.microsoft.com/l/meetup", "https://zoom.us/j/999", "https://teams.microsoft.com/l/meetup"},
		{"plain address", "123 Main St", "bring forms", ""},
		{"non-conferencing url ignored", "", "see https://example.com/prep", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoLink(tt.location, tt.description))
		})
	}
}

func TestExtractReminderMinutes(t *testing.T) {
	ev := &models.ExternalEvent{Reminders: []models.EventReminder{
		{Method: "email", Minutes: 1440},
		{Method: "popup", Minutes: 30},
	}}
	assert.Equal(t, 30, ExtractReminderMinutes(ev))

	assert.Equal(t, DefaultReminderMinutes, ExtractReminderMinutes(&models.ExternalEvent{}))
	assert.Equal(t, DefaultReminderMinutes, ExtractReminderMinutes(&models.ExternalEvent{
		Reminders: []models.EventReminder{{Method: "email", Minutes: 10}},
	}))
}

func TestParseClientName(t *testing.T) {
	tests := []struct {
		summary   string
		wantFirst string
		wantLast  string
	}{
		{"Jane Doe - therapy", "Jane", "Doe"},
		{"Jane Doe", "Jane", "Doe"},
		{"Jane - intake", "Jane", ""},
		{"Mary Jane Watson - session", "Mary", "Jane Watson"},
		{"  Jane Doe  ", "Jane", "Doe"},
		{"   ", "", ""},
		{" - therapy", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			first, last := ParseClientName(tt.summary)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestResolveClient_MatchesByAttendeeEmail(t *testing.T) {
	clients := newFakeClientRepo()
	mapper := NewMapper(clients)
	therapistID := uuid.New()
	ctx := context.Background()

	email := "jane@example.com"
	// Stored under a different spelling; the email match must still find her.
	existing := &models.Client{FirstName: "Janet", LastName: "Doe", Email: &email, TherapistID: therapistID, Status: models.ClientActive}
	require.NoError(t, clients.Create(ctx, existing))

	ev := &models.ExternalEvent{
		ID:      "evt_1",
		Summary: "Jane Doe - therapy",
		Attendees: []models.EventAttendee{
			{Email: "therapist@example.com", Organizer: true},
			{Email: "JANE@example.com"},
		},
	}

	client, created, err := mapper.ResolveClient(ctx, therapistID, ev)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, client.ID)
	assert.Equal(t, 1, clients.count())
}

func TestResolveClient_MatchesByName(t *testing.T) {
	clients := newFakeClientRepo()
	mapper := NewMapper(clients)
	therapistID := uuid.New()
	ctx := context.Background()

	existing := &models.Client{FirstName: "jane", LastName: "doe", TherapistID: therapistID, Status: models.ClientActive}
	require.NoError(t, clients.Create(ctx, existing))

	client, created, err := mapper.ResolveClient(ctx, therapistID, &models.ExternalEvent{ID: "evt_1", Summary: "Jane Doe - therapy"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, client.ID)
}

func TestResolveClient_CreatesWhenUnmatched(t *testing.T) {
	clients := newFakeClientRepo()
	mapper := NewMapper(clients)
	therapistID := uuid.New()
	ctx := context.Background()

	ev := &models.ExternalEvent{
		ID:        "evt_1",
		Summary:   "Jane Doe - therapy",
		Attendees: []models.EventAttendee{{Email: "jane@example.com"}},
	}

	client, created, err := mapper.ResolveClient(ctx, therapistID, ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Jane", client.FirstName)
	assert.Equal(t, "Doe", client.LastName)
	require.NotNil(t, client.Email)
	assert.Equal(t, "jane@example.com", *client.Email)
	assert.Equal(t, models.ClientActive, client.Status)
}

func TestResolveClient_RejectsEmptyName(t *testing.T) {
	mapper := NewMapper(newFakeClientRepo())

	_, _, err := mapper.ResolveClient(context.Background(), uuid.New(), &models.ExternalEvent{ID: "evt_1", Summary: " - therapy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable client name")
}

func TestAppointmentFromEvent(t *testing.T) {
	mapper := NewMapper(newFakeClientRepo())
	clientID := uuid.New()
	therapistID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)

	t.Run("full event", func(t *testing.T) {
		end := start.Add(90 * time.Minute)
		ev := &models.ExternalEvent{
			ID:          "evt_1",
			Summary:     "Jane Doe - assessment",
			Description: "Initial scoring https://zoom.us/j/42",
			Location:    "Office A",
			Start:       &start,
			End:         &end,
			Status:      "confirmed",
			Reminders:   []models.EventReminder{{Method: "popup", Minutes: 15}},
		}

		appt := mapper.AppointmentFromEvent(ev, clientID, therapistID, "primary", now)
		assert.Equal(t, clientID, appt.ClientID)
		assert.Equal(t, therapistID, appt.TherapistID)
		assert.Equal(t, models.TypeAssessment, appt.Type)
		assert.Equal(t, models.StatusScheduled, appt.Status)
		assert.True(t, appt.EndTime.Equal(end))
		assert.Equal(t, "https://zoom.us/j/42", appt.VideoLink)
		assert.Equal(t, 15, appt.ReminderMinutes)
		assert.Equal(t, "primary", appt.ExternalCalendarID)
		require.NotNil(t, appt.ExternalEventID)
		assert.Equal(t, "evt_1", *appt.ExternalEventID)
		require.NotNil(t, appt.LastExternalSync)
		assert.True(t, appt.LastExternalSync.Equal(now))
	})

	t.Run("missing end defaults to one hour", func(t *testing.T) {
		ev := &models.ExternalEvent{ID: "evt_2", Summary: "Jane Doe", Start: &start, Status: "confirmed"}
		appt := mapper.AppointmentFromEvent(ev, clientID, therapistID, "primary", now)
		assert.True(t, appt.EndTime.Equal(start.Add(time.Hour)))
	})
}
