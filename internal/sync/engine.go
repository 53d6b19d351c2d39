package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/therapyflow/calsync/internal/calendar"
	"github.com/therapyflow/calsync/internal/models"
	"github.com/therapyflow/calsync/internal/repositories"
)

// ErrNotLinked is returned by push operations on appointments that were
// never pushed to the external calendar.
var ErrNotLinked = errors.New("appointment has no external event link")

// Engine configuration. Zero values fall back to the defaults below.
type Config struct {
	CalendarID     string
	WindowStart    time.Time
	WindowEnd      time.Time
	BatchSize      int
	PageDelay      time.Duration
	ConflictBuffer time.Duration
	Retry          RetryConfig
}

const defaultBatchSize = 50
const defaultConflictBuffer = 15 * time.Minute

// Default full-sync window. Wide enough to cover historical records and
// far-future recurring sessions.
var (
	defaultWindowStart = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	defaultWindowEnd   = time.Date(2030, time.December, 31, 23, 59, 59, 0, time.UTC)
)

func (c *Config) applyDefaults() {
	if c.CalendarID == "" {
		c.CalendarID = calendar.DefaultCalendarID
	}
	if c.WindowStart.IsZero() {
		c.WindowStart = defaultWindowStart
	}
	if c.WindowEnd.IsZero() {
		c.WindowEnd = defaultWindowEnd
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ConflictBuffer <= 0 {
		c.ConflictBuffer = defaultConflictBuffer
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryConfig
	}
}

// SyncOptions are the per-invocation knobs of SyncFromExternal.
type SyncOptions struct {
	TimeMin     *time.Time
	TimeMax     *time.Time
	ForceUpdate bool
	CalendarID  string
}

// Engine reconciles local appointments against the external calendar in both
// directions. Construct one per process and share it; the single-flight guard
// is process-wide, not per-scope.
type Engine struct {
	creds   calendar.CredentialProvider
	cal     calendar.Service
	appts   repositories.AppointmentRepository
	clients repositories.ClientRepository
	status  repositories.SyncStatusRepository
	queue   *OperationQueue
	history *History
	mapper  *Mapper
	logger  *slog.Logger
	cfg     Config

	running atomic.Bool
	now     func() time.Time
}

func NewEngine(
	creds calendar.CredentialProvider,
	cal calendar.Service,
	appts repositories.AppointmentRepository,
	clients repositories.ClientRepository,
	status repositories.SyncStatusRepository,
	queue *OperationQueue,
	history *History,
	logger *slog.Logger,
	cfg Config,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		creds:   creds,
		cal:     cal,
		appts:   appts,
		clients: clients,
		status:  status,
		queue:   queue,
		history: history,
		mapper:  NewMapper(clients),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Busy reports whether a sync is currently executing.
func (e *Engine) Busy() bool {
	return e.running.Load()
}

// SyncFromExternal reconciles all appointments for one scope against the
// external calendar in the given window. It never returns an error for
// per-event or per-page problems; failures accumulate in the result's error
// list. At most one sync executes at a time process-wide.
func (e *Engine) SyncFromExternal(ctx context.Context, therapistID uuid.UUID, opts SyncOptions) *models.SyncResult {
	result := &models.SyncResult{}

	if !e.running.CompareAndSwap(false, true) {
		result.InProgress = true
		result.AddError("sync already in progress")
		return result
	}
	defer e.running.Store(false)

	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = e.cfg.CalendarID
	}
	timeMin := e.cfg.WindowStart
	if opts.TimeMin != nil {
		timeMin = *opts.TimeMin
	}
	timeMax := e.cfg.WindowEnd
	if opts.TimeMax != nil {
		timeMax = *opts.TimeMax
	}

	defer func() {
		e.history.Record(models.SyncHistoryEntry{
			Operation: "sync_from_external",
			ScopeID:   therapistID,
			Success:   result.Success(),
			Detail:    *result,
			Error:     strings.Join(result.Errors, "; "),
		})
	}()

	if !e.creds.IsConnected() {
		result.AddError("calendar not connected")
		return result
	}
	if err := e.creds.RefreshIfNeeded(ctx); err != nil {
		result.AddError(fmt.Sprintf("re-authentication required: %v", err))
		return result
	}

	e.logger.Info("sync started",
		slog.String("therapist_id", therapistID.String()),
		slog.String("calendar_id", calendarID),
		slog.Time("time_min", timeMin),
		slog.Time("time_max", timeMax),
		slog.Bool("force_update", opts.ForceUpdate),
	)

	events, seen, complete := e.fetchAllEvents(ctx, calendarID, timeMin, timeMax, result)

	e.processBatches(ctx, therapistID, calendarID, events, opts.ForceUpdate, result)

	// The sweep trusts the lookup map to be a complete picture of the
	// window. A partial fetch would cancel appointments whose events sit in
	// pages we never saw, so it only runs after a clean paging pass.
	if complete {
		e.sweepDeleted(ctx, therapistID, timeMin, timeMax, seen, result)
	} else {
		e.logger.Warn("skipping deletion sweep after partial event fetch",
			slog.String("therapist_id", therapistID.String()),
		)
	}

	if err := e.status.SetLastSync(ctx, therapistID, e.now()); err != nil {
		e.logger.Error("failed to record sync completion", slog.String("error", err.Error()))
	}

	e.logger.Info("sync finished",
		slog.String("therapist_id", therapistID.String()),
		slog.Int("synced", result.Synced),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("deleted", result.Deleted),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)),
	)

	return result
}

// fetchAllEvents pages through the window, pausing between pages to stay
// under provider rate limits. A failed page stops paging but keeps the events
// already retrieved; the bool reports whether the fetch covered every page.
func (e *Engine) fetchAllEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, result *models.SyncResult) ([]models.ExternalEvent, map[string]struct{}, bool) {
	var events []models.ExternalEvent
	seen := make(map[string]struct{})

	pageToken := ""
	for {
		page, err := e.cal.ListEvents(ctx, calendarID, timeMin, timeMax, pageToken)
		if err != nil {
			result.AddError(fmt.Sprintf("page fetch failed: %v", err))
			return events, seen, false
		}

		for _, ev := range page.Events {
			events = append(events, ev)
			seen[ev.ID] = struct{}{}
		}

		if page.NextPageToken == "" {
			return events, seen, true
		}
		pageToken = page.NextPageToken

		select {
		case <-ctx.Done():
			result.AddError(fmt.Sprintf("page fetch interrupted: %v", ctx.Err()))
			return events, seen, false
		case <-time.After(e.cfg.PageDelay):
		}
	}
}

// processBatches reconciles events in fixed-size batches with intra-batch
// parallelism. One event's failure never aborts its batch siblings.
func (e *Engine) processBatches(ctx context.Context, therapistID uuid.UUID, calendarID string, events []models.ExternalEvent, force bool, result *models.SyncResult) {
	var mu sync.Mutex

	for start := 0; start < len(events); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(events) {
			end = len(events)
		}

		var g errgroup.Group
		for _, ev := range events[start:end] {
			g.Go(func() error {
				out, err := e.reconcileEvent(ctx, therapistID, calendarID, &ev, force)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.AddError(fmt.Sprintf("event %q (%s): %v", ev.Summary, ev.ID, err))
					return nil
				}
				result.Synced++
				switch out {
				case outcomeCreated:
					result.Created++
				case outcomeUpdated:
					result.Updated++
				case outcomeDeleted:
					result.Deleted++
				case outcomeSkipped:
					result.Skipped++
				}
				return nil
			})
		}
		g.Wait()
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeDeleted
)

// reconcileEvent makes local state agree with one external event.
func (e *Engine) reconcileEvent(ctx context.Context, therapistID uuid.UUID, calendarID string, ev *models.ExternalEvent, force bool) (outcome, error) {
	if ev.Cancelled() {
		return e.propagateCancellation(ctx, ev)
	}

	// Insufficient data to represent locally.
	if ev.Start == nil || strings.TrimSpace(ev.Summary) == "" {
		return outcomeSkipped, nil
	}
	// Only timed appointments are represented.
	if ev.AllDay {
		return outcomeSkipped, nil
	}

	existing, err := e.appts.GetByExternalEventID(ctx, ev.ID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return outcomeSkipped, err
	}

	if existing != nil {
		return e.reconcileExisting(ctx, existing, ev, force)
	}

	return e.createFromEvent(ctx, therapistID, calendarID, ev)
}

func (e *Engine) propagateCancellation(ctx context.Context, ev *models.ExternalEvent) (outcome, error) {
	appt, err := e.appts.GetByExternalEventID(ctx, ev.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}
	if appt.Status == models.StatusCancelled {
		return outcomeSkipped, nil
	}

	if err := e.appts.Cancel(ctx, appt.ID, models.ReasonCancelledExternally); err != nil {
		return outcomeSkipped, err
	}
	return outcomeDeleted, nil
}

func (e *Engine) reconcileExisting(ctx context.Context, appt *models.Appointment, ev *models.ExternalEvent, force bool) (outcome, error) {
	externallyNewer := appt.LastExternalSync == nil ||
		ev.Updated.After(*appt.LastExternalSync)

	needsUpdate := force || externallyNewer
	if !needsUpdate {
		// Correction check: the provider's updated timestamp is not always
		// trustworthy, so compare the fields that matter regardless.
		if e.needsCorrection(ctx, appt, ev) {
			needsUpdate = true
		}
	}

	if !needsUpdate {
		return outcomeSkipped, nil
	}

	e.applyEvent(appt, ev)
	if err := e.appts.Update(ctx, appt); err != nil {
		return outcomeSkipped, err
	}
	return outcomeUpdated, nil
}

// needsCorrection compares the fields a drifted event would disagree on.
// A client-name mismatch is deliberately not a correction trigger: it is
// logged for manual review and never re-linked automatically.
func (e *Engine) needsCorrection(ctx context.Context, appt *models.Appointment, ev *models.ExternalEvent) bool {
	if !appt.StartTime.Equal(*ev.Start) {
		return true
	}
	if !appt.EndTime.Equal(endOrDefault(ev)) {
		return true
	}
	if appt.Location != ev.Location {
		return true
	}
	if appt.Type != InferAppointmentType(ev.Summary, ev.Description) {
		return true
	}
	if (appt.Status == models.StatusCancelled) != ev.Cancelled() {
		return true
	}

	first, last := ParseClientName(ev.Summary)
	if first != "" {
		if client, err := e.clients.GetByID(ctx, appt.ClientID); err == nil {
			if !strings.EqualFold(client.FirstName, first) || !strings.EqualFold(client.LastName, last) {
				e.logger.Warn("client name mismatch on linked event; flagging for manual review",
					slog.String("appointment_id", appt.ID.String()),
					slog.String("event_id", ev.ID),
					slog.String("local_name", client.FullName()),
					slog.String("event_name", strings.TrimSpace(first+" "+last)),
				)
			}
		}
	}

	return false
}

// applyEvent performs the field-level update of a linked appointment.
func (e *Engine) applyEvent(appt *models.Appointment, ev *models.ExternalEvent) {
	now := e.now()

	appt.StartTime = *ev.Start
	appt.EndTime = endOrDefault(ev)
	appt.Location = ev.Location
	appt.Notes = ev.Description
	appt.Type = InferAppointmentType(ev.Summary, ev.Description)
	appt.Status = InferStatus(ev, now)
	appt.VideoLink = ExtractVideoLink(ev.Location, ev.Description)
	appt.ReminderMinutes = ExtractReminderMinutes(ev)
	appt.RecurrenceRule = ev.Recurrence
	appt.LastExternalSync = &now
}

func (e *Engine) createFromEvent(ctx context.Context, therapistID uuid.UUID, calendarID string, ev *models.ExternalEvent) (outcome, error) {
	client, created, err := e.mapper.ResolveClient(ctx, therapistID, ev)
	if err != nil {
		return outcomeSkipped, err
	}
	if created {
		e.logger.Info("created client from inbound event",
			slog.String("client_id", client.ID.String()),
			slog.String("name", client.FullName()),
			slog.String("event_id", ev.ID),
		)
	}

	appt := e.mapper.AppointmentFromEvent(ev, client.ID, therapistID, calendarID, e.now())
	if err := e.appts.Create(ctx, appt); err != nil {
		return outcomeSkipped, err
	}
	return outcomeCreated, nil
}

// sweepDeleted cancels linked appointments whose external events vanished
// from the window. Runs as a targeted range query so wide windows stay cheap.
func (e *Engine) sweepDeleted(ctx context.Context, therapistID uuid.UUID, timeMin, timeMax time.Time, seen map[string]struct{}, result *models.SyncResult) {
	linked, err := e.appts.ListLinkedInWindow(ctx, therapistID, timeMin, timeMax)
	if err != nil {
		result.AddError(fmt.Sprintf("deletion sweep query failed: %v", err))
		return
	}

	for _, appt := range linked {
		if _, ok := seen[*appt.ExternalEventID]; ok {
			continue
		}
		if err := e.appts.Cancel(ctx, appt.ID, models.ReasonDeletedExternally); err != nil {
			result.AddError(fmt.Sprintf("failed to cancel vanished appointment %s: %v", appt.ID, err))
			continue
		}
		e.logger.Info("appointment cancelled: event deleted externally",
			slog.String("appointment_id", appt.ID.String()),
			slog.String("event_id", *appt.ExternalEventID),
		)
		result.Deleted++
	}
}
