package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// appointmentReminderOffsets are the two lead times this
// schedules a reminder at: 24 hours and 2 hours before the appointment.
var appointmentReminderOffsets = []time.Duration{24 * time.Hour, 2 * time.Hour}

// ScheduleAppointmentReminders queues the reminder pair for one appointment.
// There is no Appointment aggregate in the persistence model (only the
// appointments:view/appointments:edit RBAC scopes reference appointments,
// governing an out-of-scope admin surface),
// so the appointment id lives only as ScheduledMessage.Metadata tagging —
// CancelAppointmentReminders below finds rows by that tag, not by a foreign
// key.
func (s *Service) ScheduleAppointmentReminders(ctx context.Context, tenantID, customerID, appointmentID uuid.UUID, appointmentAt time.Time, templateID *uuid.UUID, content string) error {
	for _, offset := range appointmentReminderOffsets {
		dueAt := appointmentAt.Add(-offset)
		if dueAt.Before(time.Now()) {
			continue
		}
		if _, err := s.scheduling.CreateScheduledMessage(ctx, domain.ScheduledMessage{
			TenantID:    tenantID,
			CustomerID:  &customerID,
			TemplateID:  templateID,
			Content:     content,
			Type:        domain.MessageReminder,
			ScheduledAt: dueAt,
			Metadata:    map[string]any{"appointment_id": appointmentID.String()},
		}); err != nil {
			return err
		}
	}
	return nil
}

// CancelAppointmentReminders cancels every still-pending reminder tagged
// with appointmentID, transitioning the associated pending
// ScheduledMessages to canceled.
func (s *Service) CancelAppointmentReminders(ctx context.Context, tenantID, appointmentID uuid.UUID) error {
	return s.scheduling.CancelByAppointment(ctx, tenantID, appointmentID)
}
