package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// AppointmentService books appointments and drives their lifecycle.
type AppointmentService struct{ *deps }

// BookInput is a booking request. PatientID is only read when an admin books on behalf
// of a patient; EndTime defaults to the configured appointment length.
type BookInput struct {
	PatientID string
	DoctorID  string
	StartTime time.Time
	EndTime   *time.Time
	Reason    string
	Notes     string
}

func (s *AppointmentService) slot(start time.Time, end *time.Time) (time.Time, time.Time, error) {
	if !start.After(s.now()) {
		return time.Time{}, time.Time{}, models.Invalid("appointments must start in the future")
	}
	if end == nil {
		return start, start.Add(time.Duration(s.cfg.AppointmentDefaultMinutes) * time.Minute), nil
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, models.ErrInvalidTimeRange
	}
	return start, *end, nil
}

// checkAvailable rejects a slot that collides with another active appointment or a
// day-off of the doctor. Must run inside a transaction.
func checkAvailable(ctx context.Context, tx store.Store, doctorID string, start, end time.Time, excludeID string) error {
	busy, err := tx.Appointments().ListActiveOverlapping(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(busy) > 0 {
		return models.ErrSlotUnavailable
	}
	off, err := tx.DayOffs().ListOverlapping(ctx, doctorID, start, end)
	if err != nil {
		return err
	}
	if len(off) > 0 {
		return fmt.Errorf("%w: doctor is on leave", models.ErrSlotUnavailable)
	}
	return nil
}

// Book creates an appointment. New appointments always wait for the doctor's
// confirmation.
func (s *AppointmentService) Book(ctx context.Context, actor Actor, in BookInput) (*models.Appointment, error) {
	start, end, err := s.slot(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	var appt *models.Appointment
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		patientID := in.PatientID
		switch {
		case actor.Is(models.RolePatient):
			p, err := patientOf(ctx, tx, actor)
			if err != nil {
				return err
			}
			patientID = p.ID
		case actor.Is(models.RoleAdmin):
			if patientID == "" {
				return models.Invalid("patientId is required")
			}
			if _, err := tx.Patients().GetByID(ctx, patientID); err != nil {
				return fmt.Errorf("patient: %w", err)
			}
		default:
			return forbidden("only patients and admins can book appointments")
		}

		if _, err := tx.Doctors().GetByID(ctx, in.DoctorID); err != nil {
			return fmt.Errorf("doctor: %w", err)
		}
		if err := checkAvailable(ctx, tx, in.DoctorID, start, end, ""); err != nil {
			return err
		}
		a, err := models.NewAppointment(patientID, in.DoctorID, start, end, in.Reason, in.Notes)
		if err != nil {
			return err
		}
		appt = a
		return tx.Appointments().Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// authorizeAppointment checks the actor takes part in the appointment. Admins see everything;
// patients and doctors only their own.
func authorizeAppointment(ctx context.Context, st store.Store, actor Actor, a *models.Appointment) error {
	if actor.Is(models.RoleAdmin) {
		return nil
	}
	patientID, doctorID, err := ownerIDs(ctx, st, actor)
	if err != nil {
		return err
	}
	if (patientID != "" && patientID == a.PatientID) || (doctorID != "" && doctorID == a.DoctorID) {
		return nil
	}
	return forbidden("not your appointment")
}

// Get returns one appointment the actor takes part in.
func (s *AppointmentService) Get(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	a, err := s.store.Appointments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeAppointment(ctx, s.store, actor, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns appointments visible to the actor. Patients and doctors are pinned to
// their own calendar whatever the filter says.
func (s *AppointmentService) List(ctx context.Context, actor Actor, f store.AppointmentFilter, page store.Page) ([]models.Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, models.ErrInvalidStatus
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePatient, models.RoleDoctor:
		patientID, doctorID, err := ownerIDs(ctx, s.store, actor)
		if err != nil {
			return nil, 0, err
		}
		if patientID != "" {
			f.PatientID = patientID
		}
		if doctorID != "" {
			f.DoctorID = doctorID
		}
	default:
		return nil, 0, forbidden("appointments are not visible to this role")
	}
	return s.store.Appointments().List(ctx, f, page)
}

// mutate loads the appointment under lock, checks access and saves what fn changed.
func (s *AppointmentService) mutate(ctx context.Context, actor Actor, id string, doctorOnly bool, fn func(a *models.Appointment) error) (*models.Appointment, error) {
	var appt *models.Appointment
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		a, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if doctorOnly && actor.Is(models.RolePatient) {
			return forbidden("only the doctor can do this")
		}
		if err := authorizeAppointment(ctx, tx, actor, a); err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if a.Status.VoidsPayment() {
			if err := cancelAppointmentPayment(ctx, tx, a.ID); err != nil {
				return err
			}
		}
		appt = a
		return tx.Appointments().Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Accept confirms a waiting appointment.
func (s *AppointmentService) Accept(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	return s.mutate(ctx, actor, id, true, (*models.Appointment).Accept)
}

// Complete closes an accepted appointment.
func (s *AppointmentService) Complete(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	return s.mutate(ctx, actor, id, true, (*models.Appointment).Complete)
}

// MarkNoShow records that the patient did not come.
func (s *AppointmentService) MarkNoShow(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	return s.mutate(ctx, actor, id, true, (*models.Appointment).MarkPatientNotComing)
}

// Cancel cancels an appointment. A reason is mandatory.
func (s *AppointmentService) Cancel(ctx context.Context, actor Actor, id, reason string) (*models.Appointment, error) {
	return s.mutate(ctx, actor, id, false, func(a *models.Appointment) error {
		return a.Cancel(actor.UserID, reason, s.now())
	})
}

// Reschedule moves an active appointment to a free slot and sends it back for
// confirmation.
func (s *AppointmentService) Reschedule(ctx context.Context, actor Actor, id string, start time.Time, end *time.Time) (*models.Appointment, error) {
	if end == nil {
		current, err := s.store.Appointments().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		d := start.Add(current.EndTime.Sub(current.StartTime))
		end = &d
	}
	start, stop, err := s.slot(start, end)
	if err != nil {
		return nil, err
	}

	var appt *models.Appointment
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		a, err := tx.Appointments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeAppointment(ctx, tx, actor, a); err != nil {
			return err
		}
		if !a.Status.Active() {
			return models.ErrInvalidTransition
		}
		if err := checkAvailable(ctx, tx, a.DoctorID, start, stop, a.ID); err != nil {
			return err
		}
		if err := a.Reschedule(start, stop); err != nil {
			return err
		}
		appt = a
		return tx.Appointments().Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// cancelAppointmentPayment drops the pending payment of an appointment that can no longer
// be billed. A settled payment is left as it is.
func cancelAppointmentPayment(ctx context.Context, tx store.Store, appointmentID string) error {
	p, err := tx.Payments().FindOpenForAppointment(ctx, appointmentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != models.PaymentPending {
		return nil
	}
	if err := p.Cancel(); err != nil {
		return err
	}
	return tx.Payments().Update(ctx, p)
}
