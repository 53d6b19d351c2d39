package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/therapyflow/calsync/internal/calendar"
	"github.com/therapyflow/calsync/internal/models"
)

// eventColors keys the provider's color palette off the appointment type.
var eventColors = map[models.AppointmentType]string{
	models.TypeTherapy:      "7",  // peacock
	models.TypeIntake:       "2",  // sage
	models.TypeAssessment:   "5",  // banana
	models.TypeGroup:        "3",  // grape
	models.TypeFamily:       "4",  // flamingo
	models.TypeConsultation: "6",  // tangerine
	models.TypeEmergency:    "11", // tomato
}

// PushCreate inserts the appointment into the external calendar and links it
// locally. Unlike SyncFromExternal, push operations return errors: the caller
// (an appointment mutation handler) decides how to surface the failure while
// keeping the local mutation committed.
func (e *Engine) PushCreate(ctx context.Context, appt *models.Appointment) error {
	payload, err := e.buildPayload(ctx, appt)
	if err != nil {
		return err
	}
	calendarID := e.pushCalendarID(appt)

	var eventID string
	err = <-e.queue.Enqueue(ctx, "push_create", func(opCtx context.Context) error {
		return WithRetry(opCtx, "insert event", e.cfg.Retry, func(c context.Context) error {
			id, insertErr := e.cal.InsertEvent(c, calendarID, payload)
			if insertErr != nil {
				return insertErr
			}
			eventID = id
			return nil
		})
	})

	e.recordPush("push_create", appt, err)
	if err != nil {
		return err
	}

	if err := e.appts.SetExternalLink(ctx, appt.ID, eventID, calendarID, e.now()); err != nil {
		return fmt.Errorf("event created but link not persisted: %w", err)
	}
	appt.ExternalEventID = &eventID
	appt.ExternalCalendarID = calendarID
	return nil
}

// PushUpdate rewrites the linked external event. A vanished event (404) is
// recreated rather than failed.
func (e *Engine) PushUpdate(ctx context.Context, appt *models.Appointment) error {
	if !appt.Linked() {
		return ErrNotLinked
	}

	payload, err := e.buildPayload(ctx, appt)
	if err != nil {
		return err
	}
	calendarID := e.pushCalendarID(appt)
	eventID := *appt.ExternalEventID

	var recreatedID string
	err = <-e.queue.Enqueue(ctx, "push_update", func(opCtx context.Context) error {
		updateErr := WithRetry(opCtx, "update event", e.cfg.Retry, func(c context.Context) error {
			return e.cal.UpdateEvent(c, calendarID, eventID, payload)
		})
		if updateErr == nil {
			return nil
		}
		if !calendar.IsNotFound(updateErr) {
			return updateErr
		}

		// Event vanished externally; recreate instead of failing.
		e.logger.Warn("event missing on update, recreating",
			slog.String("appointment_id", appt.ID.String()),
			slog.String("event_id", eventID),
		)
		return WithRetry(opCtx, "insert event", e.cfg.Retry, func(c context.Context) error {
			id, insertErr := e.cal.InsertEvent(c, calendarID, payload)
			if insertErr != nil {
				return insertErr
			}
			recreatedID = id
			return nil
		})
	})

	e.recordPush("push_update", appt, err)
	if err != nil {
		return err
	}

	if recreatedID != "" {
		if err := e.appts.SetExternalLink(ctx, appt.ID, recreatedID, calendarID, e.now()); err != nil {
			return fmt.Errorf("event recreated but link not persisted: %w", err)
		}
		appt.ExternalEventID = &recreatedID
		return nil
	}
	return e.appts.SetLastExternalSync(ctx, appt.ID, e.now())
}

// PushDelete removes the linked external event. Already-deleted (404) counts
// as satisfied.
func (e *Engine) PushDelete(ctx context.Context, appt *models.Appointment) error {
	if !appt.Linked() {
		return ErrNotLinked
	}

	calendarID := e.pushCalendarID(appt)
	eventID := *appt.ExternalEventID

	err := <-e.queue.Enqueue(ctx, "push_delete", func(opCtx context.Context) error {
		deleteErr := WithRetry(opCtx, "delete event", e.cfg.Retry, func(c context.Context) error {
			return e.cal.DeleteEvent(c, calendarID, eventID)
		})
		if deleteErr != nil && calendar.IsNotFound(deleteErr) {
			return nil
		}
		return deleteErr
	})

	e.recordPush("push_delete", appt, err)
	if err != nil {
		return err
	}
	return e.appts.SetLastExternalSync(ctx, appt.ID, e.now())
}

// buildPayload assembles the external event body for a local appointment.
func (e *Engine) buildPayload(ctx context.Context, appt *models.Appointment) (*calendar.EventPayload, error) {
	client, err := e.clients.GetByID(ctx, appt.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client for push: %w", err)
	}

	payload := &calendar.EventPayload{
		Summary:         client.FullName() + " - " + typeLabel(appt.Type),
		Description:     buildDescription(appt, client, e.now()),
		Location:        appt.Location,
		Start:           appt.StartTime,
		End:             appt.EndTime,
		ReminderMinutes: appt.ReminderMinutes,
		ColorID:         eventColors[appt.Type],
		RecurrenceRule:  appt.RecurrenceRule,
	}
	if payload.ReminderMinutes == 0 {
		payload.ReminderMinutes = DefaultReminderMinutes
	}
	if client.Email != nil && *client.Email != "" {
		payload.AttendeeEmails = []string{*client.Email}
	}
	return payload, nil
}

func buildDescription(appt *models.Appointment, client *models.Client, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Appointment Type: %s\n", typeLabel(appt.Type))
	fmt.Fprintf(&b, "Client: %s\n", client.FullName())
	if client.Email != nil && *client.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", *client.Email)
	}
	if appt.Notes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", appt.Notes)
	}
	fmt.Fprintf(&b, "\nSynced at %s", now.UTC().Format(time.RFC3339))
	return b.String()
}

func typeLabel(t models.AppointmentType) string {
	s := string(t)
	if s == "" {
		return "Therapy"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Engine) pushCalendarID(appt *models.Appointment) string {
	if appt.ExternalCalendarID != "" {
		return appt.ExternalCalendarID
	}
	return e.cfg.CalendarID
}

func (e *Engine) recordPush(operation string, appt *models.Appointment, err error) {
	entry := models.SyncHistoryEntry{
		Operation: operation,
		ScopeID:   appt.TherapistID,
		Success:   err == nil,
		Detail:    map[string]string{"appointment_id": appt.ID.String()},
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.history.Record(entry)
}
