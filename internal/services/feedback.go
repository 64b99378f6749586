package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// FeedbackService collects patient ratings of completed appointments.
type FeedbackService struct{ *deps }

// Submit records the actor's rating of one of their completed appointments. Each
// appointment takes one rating.
func (s *FeedbackService) Submit(ctx context.Context, actor Actor, appointmentID string, rating int, comment string) (*models.Feedback, error) {
	f := &models.Feedback{AppointmentID: appointmentID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		p, err := patientOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		appt, err := tx.Appointments().GetByID(ctx, appointmentID)
		if err != nil {
			return fmt.Errorf("appointment: %w", err)
		}
		if appt.PatientID != p.ID {
			return forbidden("not your appointment")
		}
		if appt.Status != models.StatusCompleted {
			return models.Invalid("only completed appointments can be rated")
		}
		if _, err := tx.Feedback().GetByAppointment(ctx, appointmentID); err == nil {
			return fmt.Errorf("appointment already rated: %w", store.ErrConflict)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		f.PatientID = p.ID
		f.DoctorID = appt.DoctorID
		return tx.Feedback().Create(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ForDoctor lists a doctor's feedback with the rating summary.
func (s *FeedbackService) ForDoctor(ctx context.Context, doctorID string) ([]models.Feedback, models.RatingSummary, error) {
	if _, err := s.store.Doctors().GetByID(ctx, doctorID); err != nil {
		return nil, models.RatingSummary{}, err
	}
	items, err := s.store.Feedback().ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, models.RatingSummary{}, err
	}
	return items, models.Summarize(doctorID, items), nil
}
