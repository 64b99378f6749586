package services

import (
	"context"
	"errors"
	"fmt"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// PrescriptionService handles doctors' orders and their fulfilment by the pharmacy.
type PrescriptionService struct{ *deps }

// PrescriptionLineInput is one ordered medicine.
type PrescriptionLineInput struct {
	MedicineID string
	Quantity   int
	Dosage     string
	Note       string
}

// CreatePrescriptionInput is a doctor's order for an appointment.
type CreatePrescriptionInput struct {
	AppointmentID string
	Note          string
	Lines         []PrescriptionLineInput
}

// Create records a prescription written by the actor for one of their accepted or
// completed appointments.
func (s *PrescriptionService) Create(ctx context.Context, actor Actor, in CreatePrescriptionInput) (*models.Prescription, error) {
	if len(in.Lines) == 0 {
		return nil, models.Invalid("a prescription needs at least one medicine")
	}
	var rx *models.Prescription
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		doctor, err := doctorOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		appt, err := tx.Appointments().GetByID(ctx, in.AppointmentID)
		if err != nil {
			return fmt.Errorf("appointment: %w", err)
		}
		if appt.DoctorID != doctor.ID {
			return forbidden("not your appointment")
		}
		if appt.Status != models.StatusAccepted && appt.Status != models.StatusCompleted {
			return models.Invalid("prescriptions can only be written for accepted or completed appointments")
		}

		p := &models.Prescription{
			AppointmentID: &appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      doctor.ID,
			Status:        models.PrescriptionPendingPrepare,
			Note:          in.Note,
		}
		for _, l := range in.Lines {
			if _, err := tx.Medicines().GetByID(ctx, l.MedicineID); err != nil {
				return fmt.Errorf("medicine %s: %w", l.MedicineID, err)
			}
			line := models.PrescriptionMedicine{
				MedicineID: l.MedicineID,
				Quantity:   l.Quantity,
				Dosage:     l.Dosage,
				Note:       l.Note,
			}
			if err := line.Validate(); err != nil {
				return err
			}
			p.Medicines = append(p.Medicines, line)
		}
		if err := tx.Prescriptions().Create(ctx, p); err != nil {
			return err
		}
		rx = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Prescriptions().GetByID(ctx, rx.ID)
}

// authorizePrescription lets pharmacists and admins see every prescription, doctors and
// patients only their own.
func authorizePrescription(ctx context.Context, st store.Store, actor Actor, p *models.Prescription) error {
	if actor.Is(models.RoleAdmin, models.RolePharmacist) {
		return nil
	}
	patientID, doctorID, err := ownerIDs(ctx, st, actor)
	if err != nil {
		return err
	}
	if (patientID != "" && patientID == p.PatientID) || (doctorID != "" && doctorID == p.DoctorID) {
		return nil
	}
	return forbidden("not your prescription")
}

func (s *PrescriptionService) Get(ctx context.Context, actor Actor, id string) (*models.Prescription, error) {
	p, err := s.store.Prescriptions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePrescription(ctx, s.store, actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns prescriptions visible to the actor.
func (s *PrescriptionService) List(ctx context.Context, actor Actor, f store.PrescriptionFilter, page store.Page) ([]models.Prescription, int, error) {
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
	return s.store.Prescriptions().List(ctx, f, page)
}

// DispenseResult is the prepared prescription and the payment raised for it.
type DispenseResult struct {
	Prescription *models.Prescription `json:"prescription"`
	Payment      *models.Payment      `json:"payment"`
}

// Dispense prepares a pending prescription: stock is taken under row locks, actual
// quantities are recorded and a pending payment for what was handed out is raised, all
// in one transaction.
func (s *PrescriptionService) Dispense(ctx context.Context, actor Actor, id string, lines []models.DispenseLine) (*DispenseResult, error) {
	if !actor.Is(models.RolePharmacist) {
		return nil, forbidden("only pharmacists dispense prescriptions")
	}
	res := &DispenseResult{}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		pharmacist, err := tx.Pharmacists().GetByUserID(ctx, actor.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return forbidden("no pharmacist profile for this account")
		}
		if err != nil {
			return err
		}
		p, err := tx.Prescriptions().GetByID(ctx, id)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(p.Medicines))
		for _, l := range p.Medicines {
			ids = append(ids, l.MedicineID)
		}
		meds, err := tx.Medicines().GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		stock := make(map[string]*models.Medicine, len(meds))
		for i := range meds {
			stock[meds[i].ID] = &meds[i]
		}

		total, err := p.Dispense(pharmacist.ID, lines, stock, s.now())
		if err != nil {
			return err
		}
		for _, m := range stock {
			if err := tx.Medicines().Update(ctx, m); err != nil {
				return err
			}
		}
		if err := tx.Prescriptions().Update(ctx, p); err != nil {
			return err
		}
		pay := &models.Payment{
			PatientID:      p.PatientID,
			PrescriptionID: &p.ID,
			Amount:         total,
			Status:         models.PaymentPending,
		}
		if err := tx.Payments().Create(ctx, pay); err != nil {
			return err
		}
		res.Prescription, res.Payment = p, pay
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("prescription_id", id).
		Str("payment_id", res.Payment.ID).
		Str("amount", res.Payment.Amount.StringFixed(2)).
		Msg("prescription dispensed")
	return res, nil
}

// Cancel stops a prescription that has not been paid. When it was already prepared the
// taken stock goes back on the shelf and its pending payment is cancelled.
func (s *PrescriptionService) Cancel(ctx context.Context, actor Actor, id, reason string) (*models.Prescription, error) {
	if actor.Is(models.RolePatient) {
		return nil, forbidden("patients cannot cancel prescriptions")
	}
	var rx *models.Prescription
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		p, err := tx.Prescriptions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizePrescription(ctx, tx, actor, p); err != nil {
			return err
		}
		prepared := p.Status == models.PrescriptionWaitingPayment
		if err := p.Cancel(reason); err != nil {
			return err
		}
		if prepared {
			if err := returnStock(ctx, tx, p); err != nil {
				return err
			}
			if err := cancelPendingPayments(ctx, tx, p.ID); err != nil {
				return err
			}
		}
		rx = p
		return tx.Prescriptions().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return rx, nil
}

func returnStock(ctx context.Context, tx store.Store, p *models.Prescription) error {
	for _, l := range p.Medicines {
		if l.ActualQuantity == nil || *l.ActualQuantity == 0 {
			continue
		}
		m, err := tx.Medicines().GetByID(ctx, l.MedicineID)
		if err != nil {
			return err
		}
		if err := m.Restock(*l.ActualQuantity); err != nil {
			return err
		}
		if err := tx.Medicines().Update(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func cancelPendingPayments(ctx context.Context, tx store.Store, prescriptionID string) error {
	pending, _, err := tx.Payments().List(ctx, store.PaymentFilter{
		PrescriptionID: prescriptionID,
		Status:         models.PaymentPending,
	}, store.Page{})
	if err != nil {
		return err
	}
	for i := range pending {
		if err := pending[i].Cancel(); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, &pending[i]); err != nil {
			return err
		}
	}
	return nil
}
