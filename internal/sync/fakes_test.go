package sync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/therapyflow/calsync/internal/calendar"
	"github.com/therapyflow/calsync/internal/models"
	"github.com/therapyflow/calsync/internal/repositories"
)

// In-memory fakes for engine tests. They mirror the Postgres repositories'
// behavior closely enough for reconciliation logic: sentinel ErrNotFound,
// unique external event ids, copies on read.

type fakeAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*models.Appointment
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: make(map[uuid.UUID]*models.Appointment)}
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ExternalEventID != nil {
		for _, a := range r.appts {
			if a.ExternalEventID != nil && *a.ExternalEventID == *appt.ExternalEventID {
				return fmt.Errorf("duplicate external event id %s", *appt.ExternalEventID)
			}
		}
	}

	appt.ID = uuid.New()
	appt.CreatedAt = time.Now()
	stored := *appt
	r.appts[appt.ID] = &stored
	return nil
}

func (r *fakeAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (r *fakeAppointmentRepo) GetByExternalEventID(ctx context.Context, externalEventID string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, appt := range r.appts {
		if appt.ExternalEventID != nil && *appt.ExternalEventID == externalEventID {
			copied := *appt
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAppointmentRepo) ListByTherapist(ctx context.Context, therapistID uuid.UUID, since *time.Time) ([]*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Appointment
	for _, appt := range r.appts {
		if appt.TherapistID != therapistID {
			continue
		}
		if since != nil && appt.StartTime.Before(*since) {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListForDay(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]*models.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Appointment
	for _, appt := range r.appts {
		if appt.TherapistID != therapistID {
			continue
		}
		if appt.StartTime.Before(dayStart) || !appt.StartTime.Before(dayEnd) {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) ListLinkedInWindow(ctx context.Context, therapistID uuid.UUID, from, to time.Time) ([]*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Appointment
	for _, appt := range r.appts {
		if appt.TherapistID != therapistID || appt.ExternalEventID == nil {
			continue
		}
		if appt.Status == models.StatusCancelled {
			continue
		}
		if appt.StartTime.Before(from) || appt.StartTime.After(to) {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeAppointmentRepo) Update(ctx context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[appt.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *appt
	r.appts[appt.ID] = &stored
	return nil
}

func (r *fakeAppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, reason models.CancelReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	appt.Status = models.StatusCancelled
	appt.CancelReason = &reason
	return nil
}

func (r *fakeAppointmentRepo) SetExternalLink(ctx context.Context, id uuid.UUID, externalEventID, externalCalendarID string, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	appt.ExternalEventID = &externalEventID
	appt.ExternalCalendarID = externalCalendarID
	appt.LastExternalSync = &syncedAt
	return nil
}

func (r *fakeAppointmentRepo) SetLastExternalSync(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	appt.LastExternalSync = &syncedAt
	return nil
}

func (r *fakeAppointmentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appts)
}

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*models.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[uuid.UUID]*models.Client)}
}

func (r *fakeClientRepo) Create(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client.ID = uuid.New()
	client.CreatedAt = time.Now()
	stored := *client
	r.clients[client.ID] = &stored
	return nil
}

func (r *fakeClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *client
	return &copied, nil
}

func (r *fakeClientRepo) ListByTherapist(ctx context.Context, therapistID uuid.UUID) ([]*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Client
	for _, client := range r.clients {
		if client.TherapistID == therapistID {
			copied := *client
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeClientRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

type fakeStatusRepo struct {
	mu    sync.Mutex
	times map[uuid.UUID]time.Time
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{times: make(map[uuid.UUID]time.Time)}
}

func (r *fakeStatusRepo) SetLastSync(ctx context.Context, therapistID uuid.UUID, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times[therapistID] = completedAt
	return nil
}

func (r *fakeStatusRepo) GetLastSync(ctx context.Context, therapistID uuid.UUID) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.times[therapistID], nil
}

type fakeCredentials struct {
	connected  bool
	refreshErr error
}

func (c *fakeCredentials) IsConnected() bool { return c.connected }

func (c *fakeCredentials) RefreshIfNeeded(ctx context.Context) error { return c.refreshErr }

func (c *fakeCredentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	return http.DefaultClient, nil
}

// fakeCalendar serves pre-built pages and records outbound writes.
type fakeCalendar struct {
	mu sync.Mutex

	pages    []calendar.EventPage
	pageErrs []error

	insertErr error
	updateErr error
	deleteErr error

	inserted []calendar.EventPayload
	updated  []string
	deleted  []string

	nextID int
}

func newFakeCalendar(events ...models.ExternalEvent) *fakeCalendar {
	return &fakeCalendar{pages: []calendar.EventPage{{Events: events}}}
}

func (f *fakeCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*calendar.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &idx)
	}

	if idx < len(f.pageErrs) && f.pageErrs[idx] != nil {
		return nil, f.pageErrs[idx]
	}
	if idx >= len(f.pages) {
		return &calendar.EventPage{}, nil
	}

	page := f.pages[idx]
	if idx+1 < len(f.pages) || (idx+1 < len(f.pageErrs) && f.pageErrs[idx+1] != nil) {
		page.NextPageToken = fmt.Sprintf("page-%d", idx+1)
	}
	return &page, nil
}

func (f *fakeCalendar) GetEvent(ctx context.Context, calendarID, eventID string) (*models.ExternalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, page := range f.pages {
		for _, ev := range page.Events {
			if ev.ID == eventID {
				copied := ev
				return &copied, nil
			}
		}
	}
	return nil, &googleapi.Error{Code: 404}
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, calendarID string, payload *calendar.EventPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.nextID++
	f.inserted = append(f.inserted, *payload)
	return fmt.Sprintf("evt_new_%d", f.nextID), nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, calendarID, eventID string, payload *calendar.EventPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}
