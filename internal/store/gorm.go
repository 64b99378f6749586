package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-app-server/internal/models"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithinTx runs fn inside a database transaction. Reads made through the transaction
// store use SELECT ... FOR UPDATE.
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

// read returns a query handle, locking rows when running inside a transaction.
func (s *GormStore) read(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (s *GormStore) write(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Omit(clause.Associations)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	return err
}

func first[T any](q *gorm.DB, where string, args ...interface{}) (*T, error) {
	var out T
	if err := q.Where(where, args...).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func list[T any](q *gorm.DB, page Page, order string, preloads ...string) ([]T, int, error) {
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Model(new(T)).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset)
	}
	for _, p := range preloads {
		q = q.Preload(p)
	}
	var out []T
	if err := q.Order(order).Find(&out).Error; err != nil {
		return nil, 0, translate(err)
	}
	return out, int(total), nil
}

func (s *GormStore) Users() UserRepository                         { return gormUsers{s} }
func (s *GormStore) RefreshTokens() RefreshTokenRepository         { return gormRefreshTokens{s} }
func (s *GormStore) Specializations() SpecializationRepository     { return gormSpecializations{s} }
func (s *GormStore) Doctors() DoctorRepository                     { return gormDoctors{s} }
func (s *GormStore) Patients() PatientRepository                   { return gormPatients{s} }
func (s *GormStore) Pharmacists() PharmacistRepository             { return gormPharmacists{s} }
func (s *GormStore) Appointments() AppointmentRepository           { return gormAppointments{s} }
func (s *GormStore) DayOffs() DayOffRepository                     { return gormDayOffs{s} }
func (s *GormStore) CompensationCodes() CompensationCodeRepository { return gormCodes{s} }
func (s *GormStore) Medicines() MedicineRepository                 { return gormMedicines{s} }
func (s *GormStore) Prescriptions() PrescriptionRepository         { return gormPrescriptions{s} }
func (s *GormStore) Payments() PaymentRepository                   { return gormPayments{s} }
func (s *GormStore) Feedback() FeedbackRepository                  { return gormFeedback{s} }
func (s *GormStore) MedicalRecords() MedicalRecordRepository       { return gormRecords{s} }

// -- Users --

type gormUsers struct{ s *GormStore }

func (r gormUsers) Create(ctx context.Context, u *models.User) error {
	return translate(r.s.write(ctx).Create(u).Error)
}

func (r gormUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return first[models.User](r.s.read(ctx), "id = ?", id)
}

func (r gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](r.s.read(ctx), "email = ?", strings.ToLower(email))
}

func (r gormUsers) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return first[models.User](r.s.read(ctx), "verification_token = ?", token)
}

func (r gormUsers) Update(ctx context.Context, u *models.User) error {
	return translate(r.s.write(ctx).Save(u).Error)
}

func (r gormUsers) Delete(ctx context.Context, id string) error {
	res := r.s.write(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormUsers) List(ctx context.Context, role models.Role, page Page) ([]models.User, int, error) {
	q := r.s.read(ctx)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	return list[models.User](q, page, "created_at desc")
}

// -- Refresh tokens --

type gormRefreshTokens struct{ s *GormStore }

func (r gormRefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	return translate(r.s.write(ctx).Create(t).Error)
}

func (r gormRefreshTokens) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return first[models.RefreshToken](r.s.read(ctx), "token = ?", token)
}

func (r gormRefreshTokens) Update(ctx context.Context, t *models.RefreshToken) error {
	return translate(r.s.write(ctx).Save(t).Error)
}

func (r gormRefreshTokens) RevokeAllForUser(ctx context.Context, userID string) error {
	return translate(r.s.write(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error)
}

// -- Specializations --

type gormSpecializations struct{ s *GormStore }

func (r gormSpecializations) Create(ctx context.Context, sp *models.Specialization) error {
	return translate(r.s.write(ctx).Create(sp).Error)
}

func (r gormSpecializations) GetByID(ctx context.Context, id string) (*models.Specialization, error) {
	return first[models.Specialization](r.s.read(ctx), "id = ?", id)
}

func (r gormSpecializations) Update(ctx context.Context, sp *models.Specialization) error {
	return translate(r.s.write(ctx).Save(sp).Error)
}

func (r gormSpecializations) Delete(ctx context.Context, id string) error {
	res := r.s.write(ctx).Delete(&models.Specialization{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSpecializations) List(ctx context.Context) ([]models.Specialization, error) {
	out, _, err := list[models.Specialization](r.s.read(ctx), Page{}, "name asc")
	return out, err
}

// -- Doctors --

type gormDoctors struct{ s *GormStore }

func (r gormDoctors) Create(ctx context.Context, d *models.Doctor) error {
	return translate(r.s.write(ctx).Create(d).Error)
}

func (r gormDoctors) GetByID(ctx context.Context, id string) (*models.Doctor, error) {
	return first[models.Doctor](r.s.read(ctx).Preload("User").Preload("Specialization"), "id = ?", id)
}

func (r gormDoctors) GetByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	return first[models.Doctor](r.s.read(ctx).Preload("User").Preload("Specialization"), "user_id = ?", userID)
}

func (r gormDoctors) Update(ctx context.Context, d *models.Doctor) error {
	return translate(r.s.write(ctx).Save(d).Error)
}

func (r gormDoctors) List(ctx context.Context, f DoctorFilter, page Page) ([]models.Doctor, int, error) {
	q := r.s.read(ctx)
	if f.SpecializationID != "" {
		q = q.Where("specialization_id = ?", f.SpecializationID)
	}
	return list[models.Doctor](q, page, "created_at asc", "User", "Specialization")
}

// -- Patients --

type gormPatients struct{ s *GormStore }

func (r gormPatients) Create(ctx context.Context, p *models.Patient) error {
	return translate(r.s.write(ctx).Create(p).Error)
}

func (r gormPatients) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	return first[models.Patient](r.s.read(ctx).Preload("User"), "id = ?", id)
}

func (r gormPatients) GetByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	return first[models.Patient](r.s.read(ctx).Preload("User"), "user_id = ?", userID)
}

func (r gormPatients) Update(ctx context.Context, p *models.Patient) error {
	return translate(r.s.write(ctx).Save(p).Error)
}

func (r gormPatients) List(ctx context.Context, page Page) ([]models.Patient, int, error) {
	return list[models.Patient](r.s.read(ctx), page, "created_at desc", "User")
}

// -- Pharmacists --

type gormPharmacists struct{ s *GormStore }

func (r gormPharmacists) Create(ctx context.Context, p *models.Pharmacist) error {
	return translate(r.s.write(ctx).Create(p).Error)
}

func (r gormPharmacists) GetByUserID(ctx context.Context, userID string) (*models.Pharmacist, error) {
	return first[models.Pharmacist](r.s.read(ctx).Preload("User"), "user_id = ?", userID)
}

func (r gormPharmacists) List(ctx context.Context, page Page) ([]models.Pharmacist, int, error) {
	return list[models.Pharmacist](r.s.read(ctx), page, "created_at desc", "User")
}

// -- Appointments --

type gormAppointments struct{ s *GormStore }

func (r gormAppointments) Create(ctx context.Context, a *models.Appointment) error {
	return translate(r.s.write(ctx).Create(a).Error)
}

func (r gormAppointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	return first[models.Appointment](r.s.read(ctx), "id = ?", id)
}

func (r gormAppointments) Update(ctx context.Context, a *models.Appointment) error {
	return translate(r.s.write(ctx).Save(a).Error)
}

func (r gormAppointments) List(ctx context.Context, f AppointmentFilter, page Page) ([]models.Appointment, int, error) {
	q := r.s.read(ctx)
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("start_time >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", f.To)
	}
	return list[models.Appointment](q, page, "start_time asc")
}

func (r gormAppointments) ListActiveOverlapping(ctx context.Context, doctorID string, start, end time.Time, excludeID string) ([]models.Appointment, error) {
	q := r.s.read(ctx).
		Where("doctor_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			doctorID, models.ActiveAppointmentStatuses, end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var out []models.Appointment
	if err := q.Order("start_time asc").Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// -- Day-offs --

type gormDayOffs struct{ s *GormStore }

func (r gormDayOffs) Create(ctx context.Context, d *models.DoctorDayOff) error {
	return translate(r.s.write(ctx).Create(d).Error)
}

func (r gormDayOffs) GetByID(ctx context.Context, id string) (*models.DoctorDayOff, error) {
	return first[models.DoctorDayOff](r.s.read(ctx), "id = ?", id)
}

func (r gormDayOffs) Delete(ctx context.Context, id string) error {
	res := r.s.write(ctx).Delete(&models.DoctorDayOff{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormDayOffs) ListByDoctor(ctx context.Context, doctorID string, from time.Time) ([]models.DoctorDayOff, error) {
	var out []models.DoctorDayOff
	err := r.s.read(ctx).Where("doctor_id = ? AND end_time > ?", doctorID, from).
		Order("start_time asc").Find(&out).Error
	return out, translate(err)
}

func (r gormDayOffs) ListOverlapping(ctx context.Context, doctorID string, start, end time.Time) ([]models.DoctorDayOff, error) {
	var out []models.DoctorDayOff
	err := r.s.read(ctx).Where("doctor_id = ? AND start_time < ? AND end_time > ?", doctorID, end, start).
		Order("start_time asc").Find(&out).Error
	return out, translate(err)
}

// -- Compensation codes --

type gormCodes struct{ s *GormStore }

func (r gormCodes) Create(ctx context.Context, c *models.CompensationCode) error {
	return translate(r.s.write(ctx).Create(c).Error)
}

func (r gormCodes) GetByID(ctx context.Context, id string) (*models.CompensationCode, error) {
	return first[models.CompensationCode](r.s.read(ctx), "id = ?", id)
}

func (r gormCodes) GetByCode(ctx context.Context, code string) (*models.CompensationCode, error) {
	return first[models.CompensationCode](r.s.read(ctx), "code = ?", strings.ToUpper(code))
}

func (r gormCodes) Update(ctx context.Context, c *models.CompensationCode) error {
	return translate(r.s.write(ctx).Save(c).Error)
}

func (r gormCodes) ListByPatient(ctx context.Context, patientID string) ([]models.CompensationCode, error) {
	var out []models.CompensationCode
	err := r.s.read(ctx).Where("patient_id = ?", patientID).Order("created_at desc").Find(&out).Error
	return out, translate(err)
}

// -- Medicines --

type gormMedicines struct{ s *GormStore }

func (r gormMedicines) Create(ctx context.Context, m *models.Medicine) error {
	return translate(r.s.write(ctx).Create(m).Error)
}

func (r gormMedicines) GetByID(ctx context.Context, id string) (*models.Medicine, error) {
	return first[models.Medicine](r.s.read(ctx), "id = ?", id)
}

func (r gormMedicines) GetByIDs(ctx context.Context, ids []string) ([]models.Medicine, error) {
	var out []models.Medicine
	// Fixed order keeps lock acquisition consistent between concurrent dispenses.
	err := r.s.read(ctx).Where("id IN ?", ids).Order("id asc").Find(&out).Error
	return out, translate(err)
}

func (r gormMedicines) Update(ctx context.Context, m *models.Medicine) error {
	return translate(r.s.write(ctx).Save(m).Error)
}

func (r gormMedicines) Delete(ctx context.Context, id string) error {
	res := r.s.write(ctx).Delete(&models.Medicine{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormMedicines) List(ctx context.Context, f MedicineFilter, page Page) ([]models.Medicine, int, error) {
	q := r.s.read(ctx)
	if f.Name != "" {
		q = q.Where("name LIKE ?", "%"+f.Name+"%")
	}
	if f.OutOfStock != nil {
		q = q.Where("is_out_of_stock = ?", *f.OutOfStock)
	}
	return list[models.Medicine](q, page, "name asc")
}

// -- Prescriptions --

type gormPrescriptions struct{ s *GormStore }

func (r gormPrescriptions) Create(ctx context.Context, p *models.Prescription) error {
	return translate(r.s.db.WithContext(ctx).Omit("Medicines.Medicine").Create(p).Error)
}

func (r gormPrescriptions) GetByID(ctx context.Context, id string) (*models.Prescription, error) {
	return first[models.Prescription](r.s.read(ctx).Preload("Medicines").Preload("Medicines.Medicine"), "id = ?", id)
}

func (r gormPrescriptions) Update(ctx context.Context, p *models.Prescription) error {
	return r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return translate(err)
		}
		for i := range p.Medicines {
			if err := tx.Omit(clause.Associations).Save(&p.Medicines[i]).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (r gormPrescriptions) List(ctx context.Context, f PrescriptionFilter, page Page) ([]models.Prescription, int, error) {
	q := r.s.read(ctx)
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return list[models.Prescription](q, page, "created_at desc", "Medicines")
}

// -- Payments --

type gormPayments struct{ s *GormStore }

func (r gormPayments) Create(ctx context.Context, p *models.Payment) error {
	return translate(r.s.write(ctx).Create(p).Error)
}

func (r gormPayments) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return first[models.Payment](r.s.read(ctx), "id = ?", id)
}

func (r gormPayments) Update(ctx context.Context, p *models.Payment) error {
	return translate(r.s.write(ctx).Save(p).Error)
}

func (r gormPayments) List(ctx context.Context, f PaymentFilter, page Page) ([]models.Payment, int, error) {
	q := r.s.read(ctx)
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.PrescriptionID != "" {
		q = q.Where("prescription_id = ?", f.PrescriptionID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return list[models.Payment](q, page, "created_at desc")
}

func (r gormPayments) FindOpenForAppointment(ctx context.Context, appointmentID string) (*models.Payment, error) {
	return first[models.Payment](r.s.read(ctx), "appointment_id = ? AND status IN ?",
		appointmentID, []models.PaymentStatus{models.PaymentPending, models.PaymentPaid})
}

// -- Feedback --

type gormFeedback struct{ s *GormStore }

func (r gormFeedback) Create(ctx context.Context, f *models.Feedback) error {
	return translate(r.s.write(ctx).Create(f).Error)
}

func (r gormFeedback) GetByAppointment(ctx context.Context, appointmentID string) (*models.Feedback, error) {
	return first[models.Feedback](r.s.read(ctx), "appointment_id = ?", appointmentID)
}

func (r gormFeedback) ListByDoctor(ctx context.Context, doctorID string) ([]models.Feedback, error) {
	var out []models.Feedback
	err := r.s.read(ctx).Where("doctor_id = ?", doctorID).Order("created_at desc").Find(&out).Error
	return out, translate(err)
}

// -- Medical records --

type gormRecords struct{ s *GormStore }

func (r gormRecords) Create(ctx context.Context, rec *models.MedicalRecord) error {
	return translate(r.s.write(ctx).Create(rec).Error)
}

func (r gormRecords) GetByID(ctx context.Context, id string) (*models.MedicalRecord, error) {
	return first[models.MedicalRecord](r.s.read(ctx), "id = ?", id)
}

func (r gormRecords) Update(ctx context.Context, rec *models.MedicalRecord) error {
	return translate(r.s.write(ctx).Save(rec).Error)
}

func (r gormRecords) Delete(ctx context.Context, id string) error {
	res := r.s.write(ctx).Delete(&models.MedicalRecord{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormRecords) ListByPatient(ctx context.Context, patientID string, page Page) ([]models.MedicalRecord, int, error) {
	return list[models.MedicalRecord](r.s.read(ctx).Where("patient_id = ?", patientID), page, "record_date desc")
}
