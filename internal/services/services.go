// Package services holds the clinic's use cases. Handlers translate HTTP into calls on
// these services; every rule that spans more than one row lives here and runs inside a
// store transaction.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/mailer"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   models.Role
}

// Is reports whether the actor has one of roles.
func (a Actor) Is(roles ...models.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// Mailer queues outbound email. *mailer.Dispatcher satisfies it.
type Mailer interface {
	Enqueue(msg mailer.Message) bool
}

// Services bundles every use case over one store.
type Services struct {
	Auth          *AuthService
	Directory     *DirectoryService
	Appointments  *AppointmentService
	Schedule      *ScheduleService
	Medicines     *MedicineService
	Prescriptions *PrescriptionService
	Payments      *PaymentService
	Compensation  *CompensationService
	Feedback      *FeedbackService
	Records       *MedicalRecordService
}

// deps is shared by all services.
type deps struct {
	store  store.Store
	cfg    *config.Config
	mail   Mailer
	logger zerolog.Logger
	now    func() time.Time
}

// Option adjusts the shared dependencies.
type Option func(*deps)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// New wires every service.
func New(st store.Store, cfg *config.Config, mail Mailer, logger zerolog.Logger, opts ...Option) *Services {
	d := &deps{store: st, cfg: cfg, mail: mail, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return &Services{
		Auth:          &AuthService{d},
		Directory:     &DirectoryService{d},
		Appointments:  &AppointmentService{d},
		Schedule:      &ScheduleService{d},
		Medicines:     &MedicineService{d},
		Prescriptions: &PrescriptionService{d},
		Payments:      &PaymentService{d},
		Compensation:  &CompensationService{d},
		Feedback:      &FeedbackService{d},
		Records:       &MedicalRecordService{d},
	}
}

func (d *deps) send(msg mailer.Message, err error) {
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to build email")
		return
	}
	if d.mail == nil {
		return
	}
	d.mail.Enqueue(msg)
}

func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", models.ErrForbidden, msg)
}

// patientOf loads the patient profile of the actor.
func patientOf(ctx context.Context, st store.Store, a Actor) (*models.Patient, error) {
	if a.Role != models.RolePatient {
		return nil, forbidden("patients only")
	}
	p, err := st.Patients().GetByUserID(ctx, a.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, forbidden("no patient profile for this account")
	}
	return p, err
}

// doctorOf loads the doctor profile of the actor.
func doctorOf(ctx context.Context, st store.Store, a Actor) (*models.Doctor, error) {
	if a.Role != models.RoleDoctor {
		return nil, forbidden("doctors only")
	}
	d, err := st.Doctors().GetByUserID(ctx, a.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, forbidden("no doctor profile for this account")
	}
	return d, err
}

// ownerIDs resolves the patient and doctor profile ids that the actor can act as. Only
// one of them is set for patients and doctors; both are empty for other roles.
func ownerIDs(ctx context.Context, st store.Store, a Actor) (patientID, doctorID string, err error) {
	switch a.Role {
	case models.RolePatient:
		p, err := patientOf(ctx, st, a)
		if err != nil {
			return "", "", err
		}
		return p.ID, "", nil
	case models.RoleDoctor:
		d, err := doctorOf(ctx, st, a)
		if err != nil {
			return "", "", err
		}
		return "", d.ID, nil
	}
	return "", "", nil
}

// parseDate reads a YYYY-MM-DD date. An empty string clears the value.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, models.Invalid("dates must use the YYYY-MM-DD format")
	}
	return &t, nil
}
