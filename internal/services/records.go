package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// MedicalRecordService lets doctors keep notes on their patients.
type MedicalRecordService struct{ *deps }

// RecordInput creates a medical record.
type RecordInput struct {
	PatientID     string
	AppointmentID *string
	RecordType    models.MedicalRecordType
	RecordDate    *time.Time
	Title         string
	Symptoms      string
	Diagnosis     string
	Treatment     string
	Notes         string
}

// Create records a note written by the actor. A linked appointment must be theirs and
// the patient's.
func (s *MedicalRecordService) Create(ctx context.Context, actor Actor, in RecordInput) (*models.MedicalRecord, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.Invalid("title is required")
	}
	if in.RecordType != "" && !in.RecordType.Valid() {
		return nil, models.Invalid("unknown record type")
	}
	var rec *models.MedicalRecord
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		doctor, err := doctorOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		if _, err := tx.Patients().GetByID(ctx, in.PatientID); err != nil {
			return fmt.Errorf("patient: %w", err)
		}
		if in.AppointmentID != nil {
			appt, err := tx.Appointments().GetByID(ctx, *in.AppointmentID)
			if err != nil {
				return fmt.Errorf("appointment: %w", err)
			}
			if appt.DoctorID != doctor.ID || appt.PatientID != in.PatientID {
				return models.Invalid("appointment does not match this doctor and patient")
			}
		}
		date := s.now()
		if in.RecordDate != nil {
			date = *in.RecordDate
		}
		kind := in.RecordType
		if kind == "" {
			kind = models.RecordTypeConsultation
		}
		rec = &models.MedicalRecord{
			PatientID:     in.PatientID,
			DoctorID:      doctor.ID,
			AppointmentID: in.AppointmentID,
			RecordType:    kind,
			RecordDate:    date,
			Title:         strings.TrimSpace(in.Title),
			Symptoms:      in.Symptoms,
			Diagnosis:     in.Diagnosis,
			Treatment:     in.Treatment,
			Notes:         in.Notes,
		}
		return tx.MedicalRecords().Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// canReadRecords lets admins and doctors read any record and patients their own.
func canReadRecords(ctx context.Context, st store.Store, actor Actor, patientID string) error {
	switch actor.Role {
	case models.RoleAdmin, models.RoleDoctor:
		return nil
	case models.RolePatient:
		p, err := patientOf(ctx, st, actor)
		if err != nil {
			return err
		}
		if p.ID == patientID {
			return nil
		}
	}
	return forbidden("not your medical record")
}

func (s *MedicalRecordService) Get(ctx context.Context, actor Actor, id string) (*models.MedicalRecord, error) {
	rec, err := s.store.MedicalRecords().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canReadRecords(ctx, s.store, actor, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MedicalRecordService) ListForPatient(ctx context.Context, actor Actor, patientID string, page store.Page) ([]models.MedicalRecord, int, error) {
	if err := canReadRecords(ctx, s.store, actor, patientID); err != nil {
		return nil, 0, err
	}
	return s.store.MedicalRecords().ListByPatient(ctx, patientID, page)
}

// RecordUpdate holds editable record fields. Nil fields stay untouched.
type RecordUpdate struct {
	RecordType *models.MedicalRecordType
	Title      *string
	Symptoms   *string
	Diagnosis  *string
	Treatment  *string
	Notes      *string
}

// authorizeAuthor lets admins and the writing doctor change a record.
func authorizeAuthor(ctx context.Context, st store.Store, actor Actor, rec *models.MedicalRecord) error {
	if actor.Is(models.RoleAdmin) {
		return nil
	}
	d, err := doctorOf(ctx, st, actor)
	if err != nil {
		return err
	}
	if d.ID != rec.DoctorID {
		return forbidden("only the writing doctor can change this record")
	}
	return nil
}

func (s *MedicalRecordService) Update(ctx context.Context, actor Actor, id string, in RecordUpdate) (*models.MedicalRecord, error) {
	var rec *models.MedicalRecord
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		r, err := tx.MedicalRecords().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeAuthor(ctx, tx, actor, r); err != nil {
			return err
		}
		if in.RecordType != nil {
			if !in.RecordType.Valid() {
				return models.Invalid("unknown record type")
			}
			r.RecordType = *in.RecordType
		}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return models.Invalid("title is required")
			}
			r.Title = strings.TrimSpace(*in.Title)
		}
		if in.Symptoms != nil {
			r.Symptoms = *in.Symptoms
		}
		if in.Diagnosis != nil {
			r.Diagnosis = *in.Diagnosis
		}
		if in.Treatment != nil {
			r.Treatment = *in.Treatment
		}
		if in.Notes != nil {
			r.Notes = *in.Notes
		}
		rec = r
		return tx.MedicalRecords().Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MedicalRecordService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.store.WithinTx(ctx, func(tx store.Store) error {
		r, err := tx.MedicalRecords().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeAuthor(ctx, tx, actor, r); err != nil {
			return err
		}
		return tx.MedicalRecords().Delete(ctx, id)
	})
}
