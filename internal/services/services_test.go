package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/config"
	"clinic-app-server/internal/mailer"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Enqueue(msg mailer.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return true
}

func (m *fakeMailer) last() (mailer.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type testEnv struct {
	svc   *Services
	store *store.MemoryStore
	mail  *fakeMailer
	cfg   *config.Config
	now   time.Time

	admin      Actor
	doctor     Actor
	doctorID   string
	patient    Actor
	patientID  string
	other      Actor
	otherID    string
	pharmacist Actor
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "test-access",
		JWTRefreshSecret:          "test-refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		VerificationTokenExpiry:   24,
		OTPExpiryMinutes:          10,
		OTPMaxAttempts:            5,
		AppointmentDefaultMinutes: 30,
		CompensationDayOffPercent: 100,
		CompensationCodeValidDays: 90,
		AppURL:                    "http://localhost:3001",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemoryStore(),
		mail:  &fakeMailer{},
		cfg:   testConfig(),
		now:   time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	env.svc = New(env.store, env.cfg, env.mail, zerolog.Nop(), WithClock(func() time.Time { return env.now }))

	ctx := context.Background()
	env.admin = env.createUser(t, "admin@clinic.test", models.RoleAdmin)
	env.doctor = env.createUser(t, "doc@clinic.test", models.RoleDoctor)
	env.patient = env.createUser(t, "pat@clinic.test", models.RolePatient)
	env.other = env.createUser(t, "other@clinic.test", models.RolePatient)
	env.pharmacist = env.createUser(t, "pharm@clinic.test", models.RolePharmacist)

	d, err := env.store.Doctors().GetByUserID(ctx, env.doctor.UserID)
	if err != nil {
		t.Fatal(err)
	}
	env.doctorID = d.ID
	p, err := env.store.Patients().GetByUserID(ctx, env.patient.UserID)
	if err != nil {
		t.Fatal(err)
	}
	env.patientID = p.ID
	o, err := env.store.Patients().GetByUserID(ctx, env.other.UserID)
	if err != nil {
		t.Fatal(err)
	}
	env.otherID = o.ID
	return env
}

func (env *testEnv) createUser(t *testing.T, email string, role models.Role) Actor {
	t.Helper()
	u, err := env.svc.Directory.CreateUser(context.Background(), CreateUserInput{
		Email:           email,
		Password:        "password123",
		FirstName:       "Test",
		LastName:        string(role),
		Role:            role,
		ConsultationFee: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return Actor{UserID: u.ID, Role: role}
}

// book creates an appointment for the default patient starting hours after now.
func (env *testEnv) book(t *testing.T, hours int) *models.Appointment {
	t.Helper()
	a, err := env.svc.Appointments.Book(context.Background(), env.patient, BookInput{
		DoctorID:  env.doctorID,
		StartTime: env.now.Add(time.Duration(hours) * time.Hour),
		Reason:    "checkup",
	})
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	return a
}

func assertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

func assertValidation(t *testing.T, err error) {
	t.Helper()
	if !models.IsValidation(err) {
		t.Fatalf("error = %v, want a validation error", err)
	}
}
