package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/therapyflow/calsync/internal/models"
)

// DefaultCalendarID is the provider's alias for the account's main calendar.
const DefaultCalendarID = "primary"

// MaxPageSize is the provider's hard cap for a single events page.
const MaxPageSize = 2500

// ErrMalformedEvent is returned by the parse step when a provider payload
// cannot be turned into a valid ExternalEvent.
var ErrMalformedEvent = errors.New("malformed event payload")

// EventPage is one page of parsed external events.
type EventPage struct {
	Events        []models.ExternalEvent
	NextPageToken string
}

// EventPayload is the outbound representation of a local appointment,
// built by the sync engine before an insert or update call.
type EventPayload struct {
	Summary         string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time
	AttendeeEmails  []string
	ReminderMinutes int
	ColorID         string
	RecurrenceRule  string
}

// Service is the calendar provider API consumed by the sync engine.
type Service interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*EventPage, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*models.ExternalEvent, error)
	InsertEvent(ctx context.Context, calendarID string, payload *EventPayload) (string, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, payload *EventPayload) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// GoogleService implements Service against the Google Calendar v3 API.
type GoogleService struct {
	creds CredentialProvider
}

func NewGoogleService(creds CredentialProvider) *GoogleService {
	return &GoogleService{creds: creds}
}

func (g *GoogleService) api(ctx context.Context) (*calendar.Service, error) {
	httpClient, err := g.creds.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents fetches one page of events in [timeMin, timeMax). Recurring
// events are expanded to single instances, ordered by start time. Malformed
// items are quarantined: skipped at the boundary, never passed to the mapper.
func (g *GoogleService) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*EventPage, error) {
	svc, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(true).
		MaxResults(MaxPageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	page := &EventPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		ev, err := ParseEvent(item)
		if err != nil {
			continue
		}
		page.Events = append(page.Events, *ev)
	}
	return page, nil
}

func (g *GoogleService) GetEvent(ctx context.Context, calendarID, eventID string) (*models.ExternalEvent, error) {
	svc, err := g.api(ctx)
	if err != nil {
		return nil, err
	}

	item, err := svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	return ParseEvent(item)
}

func (g *GoogleService) InsertEvent(ctx context.Context, calendarID string, payload *EventPayload) (string, error) {
	svc, err := g.api(ctx)
	if err != nil {
		return "", err
	}

	created, err := svc.Events.Insert(calendarID, buildEvent(payload)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleService) UpdateEvent(ctx context.Context, calendarID, eventID string, payload *EventPayload) error {
	svc, err := g.api(ctx)
	if err != nil {
		return err
	}

	_, err = svc.Events.Update(calendarID, eventID, buildEvent(payload)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return nil
}

func (g *GoogleService) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	svc, err := g.api(ctx)
	if err != nil {
		return err
	}

	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// ParseEvent strictly converts a provider payload into an ExternalEvent.
// Payloads without an id are rejected; timed fields must parse as RFC3339.
func ParseEvent(item *calendar.Event) (*models.ExternalEvent, error) {
	if item == nil || item.Id == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}

	ev := &models.ExternalEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
	}

	if item.Updated != "" {
		updated, err := time.Parse(time.RFC3339, item.Updated)
		if err != nil {
			return nil, fmt.Errorf("%w: bad updated timestamp %q", ErrMalformedEvent, item.Updated)
		}
		ev.Updated = updated
	}

	start, allDay, err := parseEventTime(item.Start)
	if err != nil {
		return nil, err
	}
	end, _, err := parseEventTime(item.End)
	if err != nil {
		return nil, err
	}
	ev.Start = start
	ev.End = end
	ev.AllDay = allDay

	for _, a := range item.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		ev.Attendees = append(ev.Attendees, models.EventAttendee{
			Email:     a.Email,
			Organizer: a.Organizer,
		})
	}

	if item.Reminders != nil {
		for _, o := range item.Reminders.Overrides {
			if o == nil {
				continue
			}
			ev.Reminders = append(ev.Reminders, models.EventReminder{
				Method:  o.Method,
				Minutes: int(o.Minutes),
			})
		}
	}

	for _, rule := range item.Recurrence {
		if len(rule) > 0 {
			ev.Recurrence = rule
			break
		}
	}

	return ev, nil
}

// parseEventTime handles the timed/all-day split: DateTime is RFC3339,
// Date alone marks an all-day event.
func parseEventTime(edt *calendar.EventDateTime) (*time.Time, bool, error) {
	if edt == nil {
		return nil, false, nil
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return nil, false, fmt.Errorf("%w: bad datetime %q", ErrMalformedEvent, edt.DateTime)
		}
		return &t, false, nil
	}
	if edt.Date != "" {
		return nil, true, nil
	}
	return nil, false, nil
}

func buildEvent(payload *EventPayload) *calendar.Event {
	ev := &calendar.Event{
		Summary:     payload.Summary,
		Description: payload.Description,
		Location:    payload.Location,
		Start:       &calendar.EventDateTime{DateTime: payload.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: payload.End.Format(time.RFC3339)},
		ColorId:     payload.ColorID,
	}

	for _, email := range payload.AttendeeEmails {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{Email: email})
	}

	if payload.ReminderMinutes > 0 {
		ev.Reminders = &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(payload.ReminderMinutes)},
				{Method: "email", Minutes: int64(payload.ReminderMinutes)},
			},
			ForceSendFields: []string{"UseDefault"},
		}
	}

	if payload.RecurrenceRule != "" {
		ev.Recurrence = []string{payload.RecurrenceRule}
	}

	return ev
}

// IsNotFound reports whether err is the provider's "event vanished" answer.
// 410 Gone shows up for events deleted long enough ago to be purged.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
