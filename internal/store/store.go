// Package store holds the repository interfaces the services persist through, with a
// gorm/MySQL implementation and an in-memory one.
package store

import (
	"context"
	"errors"
	"time"

	"clinic-app-server/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write breaks a unique key.
	ErrConflict = errors.New("record already exists")
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// Store gives access to every repository. Repositories obtained from the store passed to
// a WithinTx callback share that transaction and lock the rows they read.
type Store interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Specializations() SpecializationRepository
	Doctors() DoctorRepository
	Patients() PatientRepository
	Pharmacists() PharmacistRepository
	Appointments() AppointmentRepository
	DayOffs() DayOffRepository
	CompensationCodes() CompensationCodeRepository
	Medicines() MedicineRepository
	Prescriptions() PrescriptionRepository
	Payments() PaymentRepository
	Feedback() FeedbackRepository
	MedicalRecords() MedicalRecordRepository

	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, role models.Role, page Page) ([]models.User, int, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Update(ctx context.Context, t *models.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type SpecializationRepository interface {
	Create(ctx context.Context, s *models.Specialization) error
	GetByID(ctx context.Context, id string) (*models.Specialization, error)
	Update(ctx context.Context, s *models.Specialization) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Specialization, error)
}

// DoctorFilter narrows a doctor listing.
type DoctorFilter struct {
	SpecializationID string
}

type DoctorRepository interface {
	Create(ctx context.Context, d *models.Doctor) error
	GetByID(ctx context.Context, id string) (*models.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*models.Doctor, error)
	Update(ctx context.Context, d *models.Doctor) error
	List(ctx context.Context, f DoctorFilter, page Page) ([]models.Doctor, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *models.Patient) error
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	GetByUserID(ctx context.Context, userID string) (*models.Patient, error)
	Update(ctx context.Context, p *models.Patient) error
	List(ctx context.Context, page Page) ([]models.Patient, int, error)
}

type PharmacistRepository interface {
	Create(ctx context.Context, p *models.Pharmacist) error
	GetByUserID(ctx context.Context, userID string) (*models.Pharmacist, error)
	List(ctx context.Context, page Page) ([]models.Pharmacist, int, error)
}

// AppointmentFilter narrows an appointment listing. Zero values match everything.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	Status    models.AppointmentStatus
	From      time.Time
	To        time.Time
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	Update(ctx context.Context, a *models.Appointment) error
	List(ctx context.Context, f AppointmentFilter, page Page) ([]models.Appointment, int, error)
	// ListActiveOverlapping returns the doctor's waiting or accepted appointments that
	// intersect [start, end), skipping excludeID.
	ListActiveOverlapping(ctx context.Context, doctorID string, start, end time.Time, excludeID string) ([]models.Appointment, error)
}

type DayOffRepository interface {
	Create(ctx context.Context, d *models.DoctorDayOff) error
	GetByID(ctx context.Context, id string) (*models.DoctorDayOff, error)
	Delete(ctx context.Context, id string) error
	ListByDoctor(ctx context.Context, doctorID string, from time.Time) ([]models.DoctorDayOff, error)
	ListOverlapping(ctx context.Context, doctorID string, start, end time.Time) ([]models.DoctorDayOff, error)
}

type CompensationCodeRepository interface {
	Create(ctx context.Context, c *models.CompensationCode) error
	GetByID(ctx context.Context, id string) (*models.CompensationCode, error)
	GetByCode(ctx context.Context, code string) (*models.CompensationCode, error)
	Update(ctx context.Context, c *models.CompensationCode) error
	ListByPatient(ctx context.Context, patientID string) ([]models.CompensationCode, error)
}

// MedicineFilter narrows a medicine listing.
type MedicineFilter struct {
	Name       string
	OutOfStock *bool
}

type MedicineRepository interface {
	Create(ctx context.Context, m *models.Medicine) error
	GetByID(ctx context.Context, id string) (*models.Medicine, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Medicine, error)
	Update(ctx context.Context, m *models.Medicine) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f MedicineFilter, page Page) ([]models.Medicine, int, error)
}

// PrescriptionFilter narrows a prescription listing.
type PrescriptionFilter struct {
	PatientID string
	DoctorID  string
	Status    models.PrescriptionStatus
}

type PrescriptionRepository interface {
	// Create stores the prescription together with its medicine lines.
	Create(ctx context.Context, p *models.Prescription) error
	// GetByID loads the prescription with its lines.
	GetByID(ctx context.Context, id string) (*models.Prescription, error)
	// Update saves the prescription and its lines.
	Update(ctx context.Context, p *models.Prescription) error
	List(ctx context.Context, f PrescriptionFilter, page Page) ([]models.Prescription, int, error)
}

// PaymentFilter narrows a payment listing.
type PaymentFilter struct {
	PatientID      string
	PrescriptionID string
	Status         models.PaymentStatus
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
	List(ctx context.Context, f PaymentFilter, page Page) ([]models.Payment, int, error)
	// FindOpenForAppointment returns the pending or paid payment of an appointment.
	FindOpenForAppointment(ctx context.Context, appointmentID string) (*models.Payment, error)
}

type FeedbackRepository interface {
	Create(ctx context.Context, f *models.Feedback) error
	GetByAppointment(ctx context.Context, appointmentID string) (*models.Feedback, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]models.Feedback, error)
}

type MedicalRecordRepository interface {
	Create(ctx context.Context, r *models.MedicalRecord) error
	GetByID(ctx context.Context, id string) (*models.MedicalRecord, error)
	Update(ctx context.Context, r *models.MedicalRecord) error
	Delete(ctx context.Context, id string) error
	ListByPatient(ctx context.Context, patientID string, page Page) ([]models.MedicalRecord, int, error)
}
