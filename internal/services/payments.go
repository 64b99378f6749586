package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// PaymentService raises and settles payments.
type PaymentService struct{ *deps }

func authorizePayment(ctx context.Context, st store.Store, actor Actor, p *models.Payment) error {
	if actor.Is(models.RoleAdmin, models.RolePharmacist) {
		return nil
	}
	if actor.Is(models.RolePatient) {
		patient, err := patientOf(ctx, st, actor)
		if err != nil {
			return err
		}
		if patient.ID == p.PatientID {
			return nil
		}
	}
	return forbidden("not your payment")
}

// CreateForAppointment raises the consultation payment of an accepted or completed
// appointment, priced at the doctor's fee. An appointment has at most one open payment.
func (s *PaymentService) CreateForAppointment(ctx context.Context, actor Actor, appointmentID string) (*models.Payment, error) {
	var pay *models.Payment
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		appt, err := tx.Appointments().GetByID(ctx, appointmentID)
		if err != nil {
			return fmt.Errorf("appointment: %w", err)
		}
		if !actor.Is(models.RoleAdmin) {
			patient, err := patientOf(ctx, tx, actor)
			if err != nil {
				return err
			}
			if patient.ID != appt.PatientID {
				return forbidden("not your appointment")
			}
		}
		if appt.Status != models.StatusAccepted && appt.Status != models.StatusCompleted {
			return models.Invalid("only accepted or completed appointments can be paid")
		}
		_, err = tx.Payments().FindOpenForAppointment(ctx, appt.ID)
		if err == nil {
			return fmt.Errorf("appointment already has a payment: %w", store.ErrConflict)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		fee, err := feeOf(ctx, tx, appt.DoctorID)
		if err != nil {
			return err
		}
		pay = &models.Payment{
			PatientID:     appt.PatientID,
			AppointmentID: &appt.ID,
			Amount:        fee,
			Status:        models.PaymentPending,
		}
		return tx.Payments().Create(ctx, pay)
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// CreateForPrescription raises a fresh payment for a prepared prescription whose earlier
// payment was cancelled. The amount is recomputed from the dispensed quantities.
func (s *PaymentService) CreateForPrescription(ctx context.Context, actor Actor, prescriptionID string) (*models.Payment, error) {
	var pay *models.Payment
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		rx, err := tx.Prescriptions().GetByID(ctx, prescriptionID)
		if err != nil {
			return fmt.Errorf("prescription: %w", err)
		}
		if err := authorizePrescription(ctx, tx, actor, rx); err != nil {
			return err
		}
		if rx.Status != models.PrescriptionWaitingPayment {
			return models.Invalid("only prepared prescriptions can be paid")
		}
		open, _, err := tx.Payments().List(ctx, store.PaymentFilter{PrescriptionID: rx.ID}, store.Page{})
		if err != nil {
			return err
		}
		for _, p := range open {
			if p.Status != models.PaymentCancel {
				return fmt.Errorf("prescription already has a payment: %w", store.ErrConflict)
			}
		}
		total := decimal.Zero
		for _, l := range rx.Medicines {
			if l.ActualQuantity == nil || l.Medicine == nil {
				continue
			}
			total = total.Add(l.Medicine.Price.Mul(decimal.NewFromInt(int64(*l.ActualQuantity))))
		}
		pay = &models.Payment{
			PatientID:      rx.PatientID,
			PrescriptionID: &rx.ID,
			Amount:         total,
			Status:         models.PaymentPending,
		}
		return tx.Payments().Create(ctx, pay)
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}

func (s *PaymentService) Get(ctx context.Context, actor Actor, id string) (*models.Payment, error) {
	p, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePayment(ctx, s.store, actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns payments visible to the actor. Patients only see their own.
func (s *PaymentService) List(ctx context.Context, actor Actor, f store.PaymentFilter, page store.Page) ([]models.Payment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, models.ErrInvalidStatus
	}
	switch {
	case actor.Is(models.RolePatient):
		patient, err := patientOf(ctx, s.store, actor)
		if err != nil {
			return nil, 0, err
		}
		f.PatientID = patient.ID
	case actor.Is(models.RoleAdmin, models.RolePharmacist):
	default:
		return nil, 0, forbidden("payments are not visible to this role")
	}
	return s.store.Payments().List(ctx, f, page)
}

// PayInput settles a payment, optionally redeeming a compensation code.
type PayInput struct {
	Method string
	Code   string
}

// Pay settles a pending payment. A redeemed code is marked used and a prescription
// payment completes its prescription, in the same transaction.
func (s *PaymentService) Pay(ctx context.Context, actor Actor, id string, in PayInput) (*models.Payment, error) {
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = "cash"
	}
	var pay *models.Payment
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		p, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizePayment(ctx, tx, actor, p); err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return models.ErrInvalidTransition
		}

		if code := strings.TrimSpace(in.Code); code != "" {
			c, err := tx.CompensationCodes().GetByCode(ctx, code)
			if errors.Is(err, store.ErrNotFound) {
				return models.Invalid("unknown compensation code")
			}
			if err != nil {
				return err
			}
			if err := c.Redeem(p.PatientID, s.now()); err != nil {
				return err
			}
			p.ApplyCode(c)
			if err := tx.CompensationCodes().Update(ctx, c); err != nil {
				return err
			}
		}

		if err := p.MarkPaid(method, s.now()); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
		if p.PrescriptionID != nil {
			rx, err := tx.Prescriptions().GetByID(ctx, *p.PrescriptionID)
			if err != nil {
				return err
			}
			if err := rx.MarkPaid(); err != nil {
				return err
			}
			if err := tx.Prescriptions().Update(ctx, rx); err != nil {
				return err
			}
		}
		pay = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("payment_id", pay.ID).
		Str("total", pay.Total().StringFixed(2)).
		Bool("compensated", pay.CompensationCodeID != nil).
		Msg("payment settled")
	return pay, nil
}

// Cancel drops a pending payment. A prescription it belonged to stays waiting for payment.
func (s *PaymentService) Cancel(ctx context.Context, actor Actor, id string) (*models.Payment, error) {
	var pay *models.Payment
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		p, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizePayment(ctx, tx, actor, p); err != nil {
			return err
		}
		if err := p.Cancel(); err != nil {
			return err
		}
		pay = p
		return tx.Payments().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return pay, nil
}
