package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/mailer"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

const (
	codeLength   = 10
	codeAttempts = 5
)

// ScheduleService manages doctor day-offs and their effect on booked appointments.
type ScheduleService struct{ *deps }

// DayOffInput declares a period the doctor is away. DoctorID is only read for admins;
// doctors always declare their own.
type DayOffInput struct {
	DoctorID  string
	StartTime time.Time
	EndTime   time.Time
	Reason    string
}

// DayOffResult reports what a day-off declaration changed.
type DayOffResult struct {
	DayOff   *models.DoctorDayOff      `json:"dayOff"`
	Affected []models.Appointment      `json:"affectedAppointments"`
	Codes    []models.CompensationCode `json:"compensationCodes"`
}

// DeclareDayOff records the day-off, moves every active appointment it overlaps to
// doctor_day_off, drops their pending payments and issues each affected patient a
// compensation code, all in one transaction.
func (s *ScheduleService) DeclareDayOff(ctx context.Context, actor Actor, in DayOffInput) (*DayOffResult, error) {
	if !in.EndTime.After(in.StartTime) {
		return nil, models.ErrInvalidTimeRange
	}

	res := &DayOffResult{}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		doctor, err := s.targetDoctor(ctx, tx, actor, in.DoctorID)
		if err != nil {
			return err
		}
		off := &models.DoctorDayOff{
			DoctorID:  doctor.ID,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Reason:    in.Reason,
		}
		if err := tx.DayOffs().Create(ctx, off); err != nil {
			return err
		}
		res.DayOff = off

		affected, err := tx.Appointments().ListActiveOverlapping(ctx, doctor.ID, in.StartTime, in.EndTime, "")
		if err != nil {
			return err
		}
		for i := range affected {
			a := &affected[i]
			code, err := s.compensate(ctx, tx, doctor, a)
			if err != nil {
				return err
			}
			codeID := ""
			if code != nil {
				codeID = code.ID
				res.Codes = append(res.Codes, *code)
			}
			if err := a.MarkDoctorDayOff(codeID); err != nil {
				return err
			}
			if err := cancelAppointmentPayment(ctx, tx, a.ID); err != nil {
				return err
			}
			if err := tx.Appointments().Update(ctx, a); err != nil {
				return err
			}
		}
		res.Affected = affected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", res.DayOff.DoctorID).
		Str("day_off_id", res.DayOff.ID).
		Int("affected", len(res.Affected)).
		Int("codes", len(res.Codes)).
		Msg("doctor day-off declared")
	s.notifyAffected(ctx, res)
	return res, nil
}

func (s *ScheduleService) targetDoctor(ctx context.Context, tx store.Store, actor Actor, doctorID string) (*models.Doctor, error) {
	switch {
	case actor.Is(models.RoleDoctor):
		d, err := doctorOf(ctx, tx, actor)
		if err != nil {
			return nil, err
		}
		if doctorID != "" && doctorID != d.ID {
			return nil, forbidden("doctors can only manage their own day-offs")
		}
		return d, nil
	case actor.Is(models.RoleAdmin):
		if doctorID == "" {
			return nil, models.Invalid("doctorId is required")
		}
		d, err := tx.Doctors().GetByID(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("doctor: %w", err)
		}
		return d, nil
	}
	return nil, forbidden("only doctors and admins manage day-offs")
}

// compensate issues the code for one cancelled appointment. The configured percentage
// is capped at the doctor's fee; with no percentage the fee is refunded flat. Nothing is
// issued when both are zero.
func (s *ScheduleService) compensate(ctx context.Context, tx store.Store, doctor *models.Doctor, a *models.Appointment) (*models.CompensationCode, error) {
	pct := s.cfg.CompensationDayOffPercent
	if pct == 0 && !doctor.ConsultationFee.IsPositive() {
		return nil, nil
	}
	patientID := a.PatientID
	expires := s.now().AddDate(0, 0, s.cfg.CompensationCodeValidDays)
	code := &models.CompensationCode{
		PatientID:          &patientID,
		Amount:             doctor.ConsultationFee,
		DiscountPercentage: pct,
		Reason:             fmt.Sprintf("doctor day-off on %s", a.StartTime.Format("2006-01-02 15:04")),
		ExpiresAt:          &expires,
	}
	if err := createCode(ctx, tx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// createCode stores c under a fresh random code, retrying on collisions.
func createCode(ctx context.Context, tx store.Store, c *models.CompensationCode) error {
	for i := 0; i < codeAttempts; i++ {
		code, err := utils.GenerateCode(codeLength)
		if err != nil {
			return err
		}
		c.Code = code
		c.ID = ""
		err = tx.CompensationCodes().Create(ctx, c)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("could not allocate a unique compensation code: %w", store.ErrConflict)
}

func (s *ScheduleService) notifyAffected(ctx context.Context, res *DayOffResult) {
	codes := make(map[string]string, len(res.Codes))
	for _, c := range res.Codes {
		codes[c.ID] = c.Code
	}
	for _, a := range res.Affected {
		if a.CompensationCodeID == nil {
			continue
		}
		p, err := s.store.Patients().GetByID(ctx, a.PatientID)
		if err != nil || p.User == nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID).Msg("cannot notify patient of day-off")
			continue
		}
		s.send(mailer.CompensationEmail(p.User.Email, p.User.FullName(),
			a.StartTime.Format("Mon 02 Jan 2006 15:04"), codes[*a.CompensationCodeID]))
	}
}

// ListDayOffs returns the doctor's day-offs that have not ended before from.
func (s *ScheduleService) ListDayOffs(ctx context.Context, doctorID string, from time.Time) ([]models.DoctorDayOff, error) {
	if _, err := s.store.Doctors().GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.store.DayOffs().ListByDoctor(ctx, doctorID, from)
}

// DeleteDayOff withdraws a day-off. Appointments it already moved stay terminal.
func (s *ScheduleService) DeleteDayOff(ctx context.Context, actor Actor, id string) error {
	return s.store.WithinTx(ctx, func(tx store.Store) error {
		off, err := tx.DayOffs().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Is(models.RoleAdmin) {
			d, err := doctorOf(ctx, tx, actor)
			if err != nil {
				return err
			}
			if d.ID != off.DoctorID {
				return forbidden("doctors can only manage their own day-offs")
			}
		}
		return tx.DayOffs().Delete(ctx, id)
	})
}

// feeOf returns the doctor's consultation fee, used as an appointment's price.
func feeOf(ctx context.Context, st store.Store, doctorID string) (decimal.Decimal, error) {
	d, err := st.Doctors().GetByID(ctx, doctorID)
	if err != nil {
		return decimal.Zero, err
	}
	return d.ConsultationFee, nil
}
