package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"clinic-app-server/internal/models"
)

// MemoryStore is an in-process Store used by tests and the --in-memory demo mode.
// Transactions are serialised and roll back by restoring a snapshot.
type MemoryStore struct {
	st   *memState
	inTx bool
}

type memState struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	users           map[string]models.User
	refreshTokens   map[string]models.RefreshToken
	specializations map[string]models.Specialization
	doctors         map[string]models.Doctor
	patients        map[string]models.Patient
	pharmacists     map[string]models.Pharmacist
	appointments    map[string]models.Appointment
	dayOffs         map[string]models.DoctorDayOff
	codes           map[string]models.CompensationCode
	medicines       map[string]models.Medicine
	prescriptions   map[string]models.Prescription
	payments        map[string]models.Payment
	feedback        map[string]models.Feedback
	records         map[string]models.MedicalRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{data: &memData{
		users:           map[string]models.User{},
		refreshTokens:   map[string]models.RefreshToken{},
		specializations: map[string]models.Specialization{},
		doctors:         map[string]models.Doctor{},
		patients:        map[string]models.Patient{},
		pharmacists:     map[string]models.Pharmacist{},
		appointments:    map[string]models.Appointment{},
		dayOffs:         map[string]models.DoctorDayOff{},
		codes:           map[string]models.CompensationCode{},
		medicines:       map[string]models.Medicine{},
		prescriptions:   map[string]models.Prescription{},
		payments:        map[string]models.Payment{},
		feedback:        map[string]models.Feedback{},
		records:         map[string]models.MedicalRecord{},
	}}}
}

func cloneMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	prescriptions := make(map[string]models.Prescription, len(d.prescriptions))
	for k, p := range d.prescriptions {
		p.Medicines = append([]models.PrescriptionMedicine(nil), p.Medicines...)
		prescriptions[k] = p
	}
	return &memData{
		users:           cloneMap(d.users),
		refreshTokens:   cloneMap(d.refreshTokens),
		specializations: cloneMap(d.specializations),
		doctors:         cloneMap(d.doctors),
		patients:        cloneMap(d.patients),
		pharmacists:     cloneMap(d.pharmacists),
		appointments:    cloneMap(d.appointments),
		dayOffs:         cloneMap(d.dayOffs),
		codes:           cloneMap(d.codes),
		medicines:       cloneMap(d.medicines),
		prescriptions:   prescriptions,
		payments:        cloneMap(d.payments),
		feedback:        cloneMap(d.feedback),
		records:         cloneMap(d.records),
	}
}

// WithinTx runs fn with exclusive access to the store and restores the previous state
// when fn fails.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.RLock()
	snapshot := s.st.data.clone()
	s.st.mu.RUnlock()

	if err := fn(&MemoryStore{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.data = snapshot
		s.st.mu.Unlock()
		return err
	}
	return nil
}

// writeLock serialises a write with running transactions, unless it is part of one.
func (s *MemoryStore) writeLock() func() {
	if !s.inTx {
		s.st.txMu.Lock()
	}
	s.st.mu.Lock()
	return func() {
		s.st.mu.Unlock()
		if !s.inTx {
			s.st.txMu.Unlock()
		}
	}
}

func (s *MemoryStore) readLock() func() {
	s.st.mu.RLock()
	return s.st.mu.RUnlock
}

type entity[T any] interface {
	*T
	Base() *models.BaseModel
}

type saveHook interface {
	BeforeSave(tx *gorm.DB) error
}

func beforeSave(v interface{}) error {
	if h, ok := v.(saveHook); ok {
		return h.BeforeSave(nil)
	}
	return nil
}

func memCreate[T any, P entity[T]](m map[string]T, v P) error {
	if err := beforeSave(v); err != nil {
		return err
	}
	b := v.Base()
	b.EnsureID()
	if _, ok := m[b.ID]; ok {
		return ErrConflict
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	m[b.ID] = *v
	return nil
}

func memUpdate[T any, P entity[T]](m map[string]T, v P) error {
	if err := beforeSave(v); err != nil {
		return err
	}
	b := v.Base()
	if _, ok := m[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now()
	m[b.ID] = *v
	return nil
}

func memGet[T any](m map[string]T, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func memDelete[T any](m map[string]T, id string) error {
	if _, ok := m[id]; !ok {
		return ErrNotFound
	}
	delete(m, id)
	return nil
}

func memFind[T any](m map[string]T, match func(*T) bool) (*T, error) {
	for _, v := range m {
		v := v
		if match(&v) {
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func memFilter[T any](m map[string]T, match func(*T) bool, less func(a, b *T) bool) []T {
	out := make([]T, 0)
	for _, v := range m {
		v := v
		if match == nil || match(&v) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

func paginate[T any](items []T, p Page) ([]T, int) {
	total := len(items)
	if p.Limit <= 0 {
		return items, total
	}
	if p.Offset >= total {
		return []T{}, total
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return items[p.Offset:end], total
}

func newestFirst[T any, P entity[T]](a, b *T) bool {
	return P(a).Base().CreatedAt.After(P(b).Base().CreatedAt)
}

func oldestFirst[T any, P entity[T]](a, b *T) bool {
	return P(a).Base().CreatedAt.Before(P(b).Base().CreatedAt)
}

func (s *MemoryStore) Users() UserRepository                         { return memUsers{s} }
func (s *MemoryStore) RefreshTokens() RefreshTokenRepository         { return memRefreshTokens{s} }
func (s *MemoryStore) Specializations() SpecializationRepository     { return memSpecializations{s} }
func (s *MemoryStore) Doctors() DoctorRepository                     { return memDoctors{s} }
func (s *MemoryStore) Patients() PatientRepository                   { return memPatients{s} }
func (s *MemoryStore) Pharmacists() PharmacistRepository             { return memPharmacists{s} }
func (s *MemoryStore) Appointments() AppointmentRepository           { return memAppointments{s} }
func (s *MemoryStore) DayOffs() DayOffRepository                     { return memDayOffs{s} }
func (s *MemoryStore) CompensationCodes() CompensationCodeRepository { return memCodes{s} }
func (s *MemoryStore) Medicines() MedicineRepository                 { return memMedicines{s} }
func (s *MemoryStore) Prescriptions() PrescriptionRepository         { return memPrescriptions{s} }
func (s *MemoryStore) Payments() PaymentRepository                   { return memPayments{s} }
func (s *MemoryStore) Feedback() FeedbackRepository                  { return memFeedback{s} }
func (s *MemoryStore) MedicalRecords() MedicalRecordRepository       { return memRecords{s} }

// -- Users --

type memUsers struct{ s *MemoryStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	defer r.s.writeLock()()
	u.Email = strings.ToLower(u.Email)
	if _, err := memFind(r.s.st.data.users, func(x *models.User) bool { return x.Email == u.Email }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.users, u)
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.users, id)
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.s.readLock()()
	email = strings.ToLower(email)
	return memFind(r.s.st.data.users, func(x *models.User) bool { return x.Email == email })
}

func (r memUsers) GetByVerificationToken(_ context.Context, token string) (*models.User, error) {
	defer r.s.readLock()()
	if token == "" {
		return nil, ErrNotFound
	}
	return memFind(r.s.st.data.users, func(x *models.User) bool { return x.VerificationToken == token })
}

func (r memUsers) Update(_ context.Context, u *models.User) error {
	defer r.s.writeLock()()
	u.Email = strings.ToLower(u.Email)
	if _, err := memFind(r.s.st.data.users, func(x *models.User) bool { return x.Email == u.Email && x.ID != u.ID }); err == nil {
		return ErrConflict
	}
	return memUpdate(r.s.st.data.users, u)
}

func (r memUsers) Delete(_ context.Context, id string) error {
	defer r.s.writeLock()()
	return memDelete(r.s.st.data.users, id)
}

func (r memUsers) List(_ context.Context, role models.Role, page Page) ([]models.User, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.users,
		func(x *models.User) bool { return role == "" || x.Role == role },
		newestFirst[models.User])
	out, total := paginate(items, page)
	return out, total, nil
}

// -- Refresh tokens --

type memRefreshTokens struct{ s *MemoryStore }

func (r memRefreshTokens) Create(_ context.Context, t *models.RefreshToken) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.refreshTokens, t)
}

func (r memRefreshTokens) GetByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	defer r.s.readLock()()
	return memFind(r.s.st.data.refreshTokens, func(x *models.RefreshToken) bool { return x.Token == token })
}

func (r memRefreshTokens) Update(_ context.Context, t *models.RefreshToken) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.refreshTokens, t)
}

func (r memRefreshTokens) RevokeAllForUser(_ context.Context, userID string) error {
	defer r.s.writeLock()()
	for id, t := range r.s.st.data.refreshTokens {
		if t.UserID == userID {
			t.IsRevoked = true
			r.s.st.data.refreshTokens[id] = t
		}
	}
	return nil
}

// -- Specializations --

type memSpecializations struct{ s *MemoryStore }

func (r memSpecializations) Create(_ context.Context, sp *models.Specialization) error {
	defer r.s.writeLock()()
	if _, err := memFind(r.s.st.data.specializations, func(x *models.Specialization) bool {
		return strings.EqualFold(x.Name, sp.Name)
	}); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.specializations, sp)
}

func (r memSpecializations) GetByID(_ context.Context, id string) (*models.Specialization, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.specializations, id)
}

func (r memSpecializations) Update(_ context.Context, sp *models.Specialization) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.specializations, sp)
}

func (r memSpecializations) Delete(_ context.Context, id string) error {
	defer r.s.writeLock()()
	return memDelete(r.s.st.data.specializations, id)
}

func (r memSpecializations) List(_ context.Context) ([]models.Specialization, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.specializations, nil, func(a, b *models.Specialization) bool {
		return a.Name < b.Name
	}), nil
}

// -- Doctors --

type memDoctors struct{ s *MemoryStore }

func (r memDoctors) Create(_ context.Context, d *models.Doctor) error {
	defer r.s.writeLock()()
	if _, err := memFind(r.s.st.data.doctors, func(x *models.Doctor) bool { return x.UserID == d.UserID }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.doctors, d)
}

// withRelations fills User and Specialization the way the gorm store preloads them.
func (r memDoctors) withRelations(d *models.Doctor) *models.Doctor {
	if u, ok := r.s.st.data.users[d.UserID]; ok {
		d.User = &u
	}
	if d.SpecializationID != nil {
		if sp, ok := r.s.st.data.specializations[*d.SpecializationID]; ok {
			d.Specialization = &sp
		}
	}
	return d
}

func (r memDoctors) GetByID(_ context.Context, id string) (*models.Doctor, error) {
	defer r.s.readLock()()
	d, err := memGet(r.s.st.data.doctors, id)
	if err != nil {
		return nil, err
	}
	return r.withRelations(d), nil
}

func (r memDoctors) GetByUserID(_ context.Context, userID string) (*models.Doctor, error) {
	defer r.s.readLock()()
	d, err := memFind(r.s.st.data.doctors, func(x *models.Doctor) bool { return x.UserID == userID })
	if err != nil {
		return nil, err
	}
	return r.withRelations(d), nil
}

func (r memDoctors) Update(_ context.Context, d *models.Doctor) error {
	defer r.s.writeLock()()
	cp := *d
	cp.User, cp.Specialization = nil, nil
	if err := memUpdate(r.s.st.data.doctors, &cp); err != nil {
		return err
	}
	d.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r memDoctors) List(_ context.Context, f DoctorFilter, page Page) ([]models.Doctor, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.doctors, func(x *models.Doctor) bool {
		return f.SpecializationID == "" || (x.SpecializationID != nil && *x.SpecializationID == f.SpecializationID)
	}, oldestFirst[models.Doctor])
	out, total := paginate(items, page)
	for i := range out {
		r.withRelations(&out[i])
	}
	return out, total, nil
}

// -- Patients --

type memPatients struct{ s *MemoryStore }

func (r memPatients) Create(_ context.Context, p *models.Patient) error {
	defer r.s.writeLock()()
	if _, err := memFind(r.s.st.data.patients, func(x *models.Patient) bool { return x.UserID == p.UserID }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.patients, p)
}

func (r memPatients) withUser(p *models.Patient) *models.Patient {
	if u, ok := r.s.st.data.users[p.UserID]; ok {
		p.User = &u
	}
	return p
}

func (r memPatients) GetByID(_ context.Context, id string) (*models.Patient, error) {
	defer r.s.readLock()()
	p, err := memGet(r.s.st.data.patients, id)
	if err != nil {
		return nil, err
	}
	return r.withUser(p), nil
}

func (r memPatients) GetByUserID(_ context.Context, userID string) (*models.Patient, error) {
	defer r.s.readLock()()
	p, err := memFind(r.s.st.data.patients, func(x *models.Patient) bool { return x.UserID == userID })
	if err != nil {
		return nil, err
	}
	return r.withUser(p), nil
}

func (r memPatients) Update(_ context.Context, p *models.Patient) error {
	defer r.s.writeLock()()
	cp := *p
	cp.User = nil
	if err := memUpdate(r.s.st.data.patients, &cp); err != nil {
		return err
	}
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r memPatients) List(_ context.Context, page Page) ([]models.Patient, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.patients, nil, newestFirst[models.Patient])
	out, total := paginate(items, page)
	for i := range out {
		r.withUser(&out[i])
	}
	return out, total, nil
}

// -- Pharmacists --

type memPharmacists struct{ s *MemoryStore }

func (r memPharmacists) Create(_ context.Context, p *models.Pharmacist) error {
	defer r.s.writeLock()()
	if _, err := memFind(r.s.st.data.pharmacists, func(x *models.Pharmacist) bool { return x.UserID == p.UserID }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.pharmacists, p)
}

func (r memPharmacists) GetByUserID(_ context.Context, userID string) (*models.Pharmacist, error) {
	defer r.s.readLock()()
	p, err := memFind(r.s.st.data.pharmacists, func(x *models.Pharmacist) bool { return x.UserID == userID })
	if err != nil {
		return nil, err
	}
	if u, ok := r.s.st.data.users[p.UserID]; ok {
		p.User = &u
	}
	return p, nil
}

func (r memPharmacists) List(_ context.Context, page Page) ([]models.Pharmacist, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.pharmacists, nil, newestFirst[models.Pharmacist])
	out, total := paginate(items, page)
	for i := range out {
		if u, ok := r.s.st.data.users[out[i].UserID]; ok {
			out[i].User = &u
		}
	}
	return out, total, nil
}

// -- Appointments --

type memAppointments struct{ s *MemoryStore }

func (r memAppointments) Create(_ context.Context, a *models.Appointment) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.appointments, a)
}

func (r memAppointments) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.appointments, id)
}

func (r memAppointments) Update(_ context.Context, a *models.Appointment) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.appointments, a)
}

func byStartTime(a, b *models.Appointment) bool { return a.StartTime.Before(b.StartTime) }

func (r memAppointments) List(_ context.Context, f AppointmentFilter, page Page) ([]models.Appointment, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.appointments, func(x *models.Appointment) bool {
		return (f.PatientID == "" || x.PatientID == f.PatientID) &&
			(f.DoctorID == "" || x.DoctorID == f.DoctorID) &&
			(f.Status == "" || x.Status == f.Status) &&
			(f.From.IsZero() || !x.StartTime.Before(f.From)) &&
			(f.To.IsZero() || x.StartTime.Before(f.To))
	}, byStartTime)
	out, total := paginate(items, page)
	return out, total, nil
}

func (r memAppointments) ListActiveOverlapping(_ context.Context, doctorID string, start, end time.Time, excludeID string) ([]models.Appointment, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.appointments, func(x *models.Appointment) bool {
		return x.DoctorID == doctorID && x.ID != excludeID && x.Status.Active() && x.Overlaps(start, end)
	}, byStartTime), nil
}

// -- Day-offs --

type memDayOffs struct{ s *MemoryStore }

func (r memDayOffs) Create(_ context.Context, d *models.DoctorDayOff) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.dayOffs, d)
}

func (r memDayOffs) GetByID(_ context.Context, id string) (*models.DoctorDayOff, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.dayOffs, id)
}

func (r memDayOffs) Delete(_ context.Context, id string) error {
	defer r.s.writeLock()()
	return memDelete(r.s.st.data.dayOffs, id)
}

func dayOffByStart(a, b *models.DoctorDayOff) bool { return a.StartTime.Before(b.StartTime) }

func (r memDayOffs) ListByDoctor(_ context.Context, doctorID string, from time.Time) ([]models.DoctorDayOff, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.dayOffs, func(x *models.DoctorDayOff) bool {
		return x.DoctorID == doctorID && x.EndTime.After(from)
	}, dayOffByStart), nil
}

func (r memDayOffs) ListOverlapping(_ context.Context, doctorID string, start, end time.Time) ([]models.DoctorDayOff, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.dayOffs, func(x *models.DoctorDayOff) bool {
		return x.DoctorID == doctorID && x.Overlaps(start, end)
	}, dayOffByStart), nil
}

// -- Compensation codes --

type memCodes struct{ s *MemoryStore }

func (r memCodes) Create(_ context.Context, c *models.CompensationCode) error {
	defer r.s.writeLock()()
	c.Code = strings.ToUpper(c.Code)
	if _, err := memFind(r.s.st.data.codes, func(x *models.CompensationCode) bool { return x.Code == c.Code }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.codes, c)
}

func (r memCodes) GetByID(_ context.Context, id string) (*models.CompensationCode, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.codes, id)
}

func (r memCodes) GetByCode(_ context.Context, code string) (*models.CompensationCode, error) {
	defer r.s.readLock()()
	code = strings.ToUpper(code)
	return memFind(r.s.st.data.codes, func(x *models.CompensationCode) bool { return x.Code == code })
}

func (r memCodes) Update(_ context.Context, c *models.CompensationCode) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.codes, c)
}

func (r memCodes) ListByPatient(_ context.Context, patientID string) ([]models.CompensationCode, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.codes, func(x *models.CompensationCode) bool {
		return x.PatientID != nil && *x.PatientID == patientID
	}, newestFirst[models.CompensationCode]), nil
}

// -- Medicines --

type memMedicines struct{ s *MemoryStore }

func (r memMedicines) Create(_ context.Context, m *models.Medicine) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.medicines, m)
}

func (r memMedicines) GetByID(_ context.Context, id string) (*models.Medicine, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.medicines, id)
}

func (r memMedicines) GetByIDs(_ context.Context, ids []string) ([]models.Medicine, error) {
	defer r.s.readLock()()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return memFilter(r.s.st.data.medicines, func(x *models.Medicine) bool { return want[x.ID] },
		func(a, b *models.Medicine) bool { return a.ID < b.ID }), nil
}

func (r memMedicines) Update(_ context.Context, m *models.Medicine) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.medicines, m)
}

func (r memMedicines) Delete(_ context.Context, id string) error {
	defer r.s.writeLock()()
	return memDelete(r.s.st.data.medicines, id)
}

func (r memMedicines) List(_ context.Context, f MedicineFilter, page Page) ([]models.Medicine, int, error) {
	defer r.s.readLock()()
	name := strings.ToLower(f.Name)
	items := memFilter(r.s.st.data.medicines, func(x *models.Medicine) bool {
		return (name == "" || strings.Contains(strings.ToLower(x.Name), name)) &&
			(f.OutOfStock == nil || x.IsOutOfStock == *f.OutOfStock)
	}, func(a, b *models.Medicine) bool { return a.Name < b.Name })
	out, total := paginate(items, page)
	return out, total, nil
}

// -- Prescriptions --

type memPrescriptions struct{ s *MemoryStore }

// stripped copies p without preloaded medicines so stored rows hold only their own columns.
func stripped(p *models.Prescription) models.Prescription {
	cp := *p
	cp.Medicines = make([]models.PrescriptionMedicine, len(p.Medicines))
	for i, l := range p.Medicines {
		l.Medicine = nil
		cp.Medicines[i] = l
	}
	return cp
}

func (r memPrescriptions) Create(_ context.Context, p *models.Prescription) error {
	defer r.s.writeLock()()
	if err := beforeSave(p); err != nil {
		return err
	}
	p.EnsureID()
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Medicines {
		l := &p.Medicines[i]
		if err := l.Validate(); err != nil {
			return err
		}
		l.EnsureID()
		l.PrescriptionID = p.ID
		l.CreatedAt, l.UpdatedAt = now, now
	}
	r.s.st.data.prescriptions[p.ID] = stripped(p)
	return nil
}

func (r memPrescriptions) withMedicines(p *models.Prescription) *models.Prescription {
	lines := make([]models.PrescriptionMedicine, len(p.Medicines))
	for i, l := range p.Medicines {
		if m, ok := r.s.st.data.medicines[l.MedicineID]; ok {
			l.Medicine = &m
		}
		lines[i] = l
	}
	p.Medicines = lines
	return p
}

func (r memPrescriptions) GetByID(_ context.Context, id string) (*models.Prescription, error) {
	defer r.s.readLock()()
	p, err := memGet(r.s.st.data.prescriptions, id)
	if err != nil {
		return nil, err
	}
	return r.withMedicines(p), nil
}

func (r memPrescriptions) Update(_ context.Context, p *models.Prescription) error {
	defer r.s.writeLock()()
	if _, ok := r.s.st.data.prescriptions[p.ID]; !ok {
		return ErrNotFound
	}
	if err := beforeSave(p); err != nil {
		return err
	}
	for i := range p.Medicines {
		if err := p.Medicines[i].Validate(); err != nil {
			return err
		}
	}
	p.UpdatedAt = time.Now()
	r.s.st.data.prescriptions[p.ID] = stripped(p)
	return nil
}

func (r memPrescriptions) List(_ context.Context, f PrescriptionFilter, page Page) ([]models.Prescription, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.prescriptions, func(x *models.Prescription) bool {
		return (f.PatientID == "" || x.PatientID == f.PatientID) &&
			(f.DoctorID == "" || x.DoctorID == f.DoctorID) &&
			(f.Status == "" || x.Status == f.Status)
	}, newestFirst[models.Prescription])
	out, total := paginate(items, page)
	for i := range out {
		out[i].Medicines = append([]models.PrescriptionMedicine(nil), out[i].Medicines...)
	}
	return out, total, nil
}

// -- Payments --

type memPayments struct{ s *MemoryStore }

func (r memPayments) Create(_ context.Context, p *models.Payment) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.payments, p)
}

func (r memPayments) GetByID(_ context.Context, id string) (*models.Payment, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.payments, id)
}

func (r memPayments) Update(_ context.Context, p *models.Payment) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.payments, p)
}

func (r memPayments) List(_ context.Context, f PaymentFilter, page Page) ([]models.Payment, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.payments, func(x *models.Payment) bool {
		return (f.PatientID == "" || x.PatientID == f.PatientID) &&
			(f.PrescriptionID == "" || (x.PrescriptionID != nil && *x.PrescriptionID == f.PrescriptionID)) &&
			(f.Status == "" || x.Status == f.Status)
	}, newestFirst[models.Payment])
	out, total := paginate(items, page)
	return out, total, nil
}

func (r memPayments) FindOpenForAppointment(_ context.Context, appointmentID string) (*models.Payment, error) {
	defer r.s.readLock()()
	return memFind(r.s.st.data.payments, func(x *models.Payment) bool {
		return x.AppointmentID != nil && *x.AppointmentID == appointmentID && x.Status != models.PaymentCancel
	})
}

// -- Feedback --

type memFeedback struct{ s *MemoryStore }

func (r memFeedback) Create(_ context.Context, f *models.Feedback) error {
	defer r.s.writeLock()()
	if _, err := memFind(r.s.st.data.feedback, func(x *models.Feedback) bool { return x.AppointmentID == f.AppointmentID }); err == nil {
		return ErrConflict
	}
	return memCreate(r.s.st.data.feedback, f)
}

func (r memFeedback) GetByAppointment(_ context.Context, appointmentID string) (*models.Feedback, error) {
	defer r.s.readLock()()
	return memFind(r.s.st.data.feedback, func(x *models.Feedback) bool { return x.AppointmentID == appointmentID })
}

func (r memFeedback) ListByDoctor(_ context.Context, doctorID string) ([]models.Feedback, error) {
	defer r.s.readLock()()
	return memFilter(r.s.st.data.feedback, func(x *models.Feedback) bool { return x.DoctorID == doctorID },
		newestFirst[models.Feedback]), nil
}

// -- Medical records --

type memRecords struct{ s *MemoryStore }

func (r memRecords) Create(_ context.Context, rec *models.MedicalRecord) error {
	defer r.s.writeLock()()
	return memCreate(r.s.st.data.records, rec)
}

func (r memRecords) GetByID(_ context.Context, id string) (*models.MedicalRecord, error) {
	defer r.s.readLock()()
	return memGet(r.s.st.data.records, id)
}

func (r memRecords) Update(_ context.Context, rec *models.MedicalRecord) error {
	defer r.s.writeLock()()
	return memUpdate(r.s.st.data.records, rec)
}

func (r memRecords) Delete(_ context.Context, id string) error {
	defer r.s.writeLock()()
	return memDelete(r.s.st.data.records, id)
}

func (r memRecords) ListByPatient(_ context.Context, patientID string, page Page) ([]models.MedicalRecord, int, error) {
	defer r.s.readLock()()
	items := memFilter(r.s.st.data.records, func(x *models.MedicalRecord) bool { return x.PatientID == patientID },
		func(a, b *models.MedicalRecord) bool { return a.RecordDate.After(b.RecordDate) })
	out, total := paginate(items, page)
	return out, total, nil
}
