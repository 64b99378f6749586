package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

type pharmacyFixture struct {
	env         *testEnv
	appointment *models.Appointment
	aspirin     *models.Medicine
	syrup       *models.Medicine
}

func newPharmacyFixture(t *testing.T) *pharmacyFixture {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.book(t, 2)
	if _, err := env.svc.Appointments.Accept(ctx, env.doctor, a.ID); err != nil {
		t.Fatal(err)
	}
	aspirin, err := env.svc.Medicines.Create(ctx, MedicineInput{Name: "Aspirin", Quantity: 10, Price: decimal.RequireFromString("2.50")})
	if err != nil {
		t.Fatal(err)
	}
	syrup, err := env.svc.Medicines.Create(ctx, MedicineInput{Name: "Cough syrup", Quantity: 1, Price: decimal.NewFromInt(8)})
	if err != nil {
		t.Fatal(err)
	}
	return &pharmacyFixture{env: env, appointment: a, aspirin: aspirin, syrup: syrup}
}

func (f *pharmacyFixture) prescribe(t *testing.T, aspirinQty, syrupQty int) *models.Prescription {
	t.Helper()
	p, err := f.env.svc.Prescriptions.Create(context.Background(), f.env.doctor, CreatePrescriptionInput{
		AppointmentID: f.appointment.ID,
		Lines: []PrescriptionLineInput{
			{MedicineID: f.aspirin.ID, Quantity: aspirinQty, Dosage: "1x daily"},
			{MedicineID: f.syrup.ID, Quantity: syrupQty, Dosage: "10ml"},
		},
	})
	if err != nil {
		t.Fatalf("Create prescription error = %v", err)
	}
	return p
}

func lineFor(p *models.Prescription, medicineID string) models.PrescriptionMedicine {
	for _, l := range p.Medicines {
		if l.MedicineID == medicineID {
			return l
		}
	}
	return models.PrescriptionMedicine{}
}

func TestCreatePrescriptionRules(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()

	p := f.prescribe(t, 4, 1)
	if p.Status != models.PrescriptionPendingPrepare || p.PatientID != f.env.patientID || len(p.Medicines) != 2 {
		t.Fatalf("prescription = %+v", p)
	}

	_, err := f.env.svc.Prescriptions.Create(ctx, f.env.patient, CreatePrescriptionInput{AppointmentID: f.appointment.ID,
		Lines: []PrescriptionLineInput{{MedicineID: f.aspirin.ID, Quantity: 1}}})
	assertErrorIs(t, err, models.ErrForbidden)

	waiting := f.env.book(t, 6)
	_, err = f.env.svc.Prescriptions.Create(ctx, f.env.doctor, CreatePrescriptionInput{AppointmentID: waiting.ID,
		Lines: []PrescriptionLineInput{{MedicineID: f.aspirin.ID, Quantity: 1}}})
	assertValidation(t, err)
}

func TestDispenseTakesStockAndRaisesPayment(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 4, 1)
	aspirinLine := lineFor(p, f.aspirin.ID)
	three := 3

	res, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, []models.DispenseLine{
		{LineID: aspirinLine.ID, ActualQuantity: &three, Note: "only three left on the shelf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Prescription.Status != models.PrescriptionWaitingPayment {
		t.Errorf("status = %s", res.Prescription.Status)
	}
	// 3 × 2.50 + 1 × 8
	if !res.Payment.Amount.Equal(decimal.RequireFromString("15.50")) {
		t.Errorf("payment amount = %s, want 15.50", res.Payment.Amount)
	}

	aspirin, _ := f.env.store.Medicines().GetByID(ctx, f.aspirin.ID)
	syrup, _ := f.env.store.Medicines().GetByID(ctx, f.syrup.ID)
	if aspirin.Quantity != 7 || aspirin.IsOutOfStock {
		t.Errorf("aspirin = %d / out %v", aspirin.Quantity, aspirin.IsOutOfStock)
	}
	if syrup.Quantity != 0 || !syrup.IsOutOfStock {
		t.Errorf("syrup = %d / out %v, want 0 / true", syrup.Quantity, syrup.IsOutOfStock)
	}

	stored, _ := f.env.store.Prescriptions().GetByID(ctx, p.ID)
	if got := lineFor(stored, f.aspirin.ID).ActualQuantity; got == nil || *got != 3 {
		t.Errorf("actual quantity = %v, want 3", got)
	}

	_, err = f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	assertErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDispenseRollsBackOnInsufficientStock(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 4, 2)

	_, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	assertErrorIs(t, err, models.ErrInsufficientStock)

	aspirin, _ := f.env.store.Medicines().GetByID(ctx, f.aspirin.ID)
	if aspirin.Quantity != 10 {
		t.Errorf("aspirin stock = %d after failed dispense, want 10", aspirin.Quantity)
	}
	stored, _ := f.env.store.Prescriptions().GetByID(ctx, p.ID)
	if stored.Status != models.PrescriptionPendingPrepare {
		t.Errorf("status = %s after failed dispense", stored.Status)
	}
}

func TestDispenseValidatesLines(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 4, 1)
	line := lineFor(p, f.aspirin.ID)
	two, five, negative := 2, 5, -1

	cases := []struct {
		name string
		in   models.DispenseLine
		want error
	}{
		{"negative", models.DispenseLine{LineID: line.ID, ActualQuantity: &negative, Note: "x"}, models.ErrNegativeQuantity},
		{"over", models.DispenseLine{LineID: line.ID, ActualQuantity: &five, Note: "x"}, models.ErrOverDispense},
		{"no note", models.DispenseLine{LineID: line.ID, ActualQuantity: &two}, models.ErrDispenseNoteRequired},
		{"unknown line", models.DispenseLine{LineID: "nope"}, models.ErrUnknownLine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, []models.DispenseLine{tc.in})
			assertErrorIs(t, err, tc.want)
		})
	}

	_, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.doctor, p.ID, nil)
	assertErrorIs(t, err, models.ErrForbidden)
}

func TestPayPrescriptionWithCode(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 2, 1)
	res, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	patientID := f.env.patientID
	code, err := f.env.svc.Compensation.Issue(ctx, IssueInput{PatientID: &patientID, DiscountPercentage: 50, Amount: decimal.NewFromInt(5)})
	if err != nil {
		t.Fatal(err)
	}

	preview, err := f.env.svc.Compensation.Preview(ctx, f.env.patient, code.Code, res.Payment.Amount)
	if err != nil {
		t.Fatal(err)
	}
	// 50% of 13 is 6.50, capped at 5.
	if !preview.Discount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("preview discount = %s, want 5", preview.Discount)
	}

	_, err = f.env.svc.Payments.Pay(ctx, f.env.other, res.Payment.ID, PayInput{Code: code.Code})
	assertErrorIs(t, err, models.ErrForbidden)

	paid, err := f.env.svc.Payments.Pay(ctx, f.env.patient, res.Payment.ID, PayInput{Method: "card", Code: code.Code})
	if err != nil {
		t.Fatal(err)
	}
	if paid.Status != models.PaymentPaid || !paid.Total().Equal(decimal.NewFromInt(8)) {
		t.Errorf("paid = %s total %s, want paid 8", paid.Status, paid.Total())
	}
	rx, _ := f.env.store.Prescriptions().GetByID(ctx, p.ID)
	if rx.Status != models.PrescriptionCompleted {
		t.Errorf("prescription = %s, want completed", rx.Status)
	}
	used, _ := f.env.store.CompensationCodes().GetByID(ctx, code.ID)
	if !used.IsUsed || used.UsedAt == nil {
		t.Error("code not marked used")
	}

	_, err = f.env.svc.Payments.Pay(ctx, f.env.patient, res.Payment.ID, PayInput{})
	assertErrorIs(t, err, models.ErrInvalidTransition)
}

func TestPayRejectsForeignCodeAndKeepsItUnused(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	appt := f.appointment

	pay, err := f.env.svc.Payments.CreateForAppointment(ctx, f.env.patient, appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !pay.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("appointment payment = %s, want doctor fee 50", pay.Amount)
	}
	_, err = f.env.svc.Payments.CreateForAppointment(ctx, f.env.patient, appt.ID)
	assertErrorIs(t, err, store.ErrConflict)

	otherID := f.env.otherID
	code, err := f.env.svc.Compensation.Issue(ctx, IssueInput{PatientID: &otherID, Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.env.svc.Payments.Pay(ctx, f.env.patient, pay.ID, PayInput{Code: code.Code})
	assertErrorIs(t, err, models.ErrCodeNotOwned)

	stored, _ := f.env.store.Payments().GetByID(ctx, pay.ID)
	if stored.Status != models.PaymentPending || stored.CompensationCodeID != nil {
		t.Errorf("payment changed after failed pay: %+v", stored)
	}
}

func TestCancelPreparedPrescriptionReturnsStock(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 4, 1)
	res, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.env.svc.Prescriptions.Cancel(ctx, f.env.pharmacist, p.ID, "")
	assertErrorIs(t, err, models.ErrCancelReasonRequired)

	rx, err := f.env.svc.Prescriptions.Cancel(ctx, f.env.pharmacist, p.ID, "patient never collected")
	if err != nil {
		t.Fatal(err)
	}
	if rx.Status != models.PrescriptionCancelled {
		t.Errorf("status = %s", rx.Status)
	}
	aspirin, _ := f.env.store.Medicines().GetByID(ctx, f.aspirin.ID)
	syrup, _ := f.env.store.Medicines().GetByID(ctx, f.syrup.ID)
	if aspirin.Quantity != 10 || syrup.Quantity != 1 || syrup.IsOutOfStock {
		t.Errorf("stock not returned: aspirin %d syrup %d", aspirin.Quantity, syrup.Quantity)
	}
	pay, _ := f.env.store.Payments().GetByID(ctx, res.Payment.ID)
	if pay.Status != models.PaymentCancel {
		t.Errorf("payment = %s, want cancel", pay.Status)
	}
}

func TestCancelledPaymentKeepsPrescriptionWaiting(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 1, 1)
	res, err := f.env.svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.env.svc.Payments.Cancel(ctx, f.env.patient, res.Payment.ID); err != nil {
		t.Fatal(err)
	}
	rx, _ := f.env.store.Prescriptions().GetByID(ctx, p.ID)
	if rx.Status != models.PrescriptionWaitingPayment {
		t.Errorf("prescription = %s, want waiting_payment", rx.Status)
	}

	again, err := f.env.svc.Payments.CreateForPrescription(ctx, f.env.pharmacist, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Amount.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("new payment = %s, want 10.50", again.Amount)
	}
}

func TestRestockClearsOutOfStock(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	zero := 0
	m, err := f.env.svc.Medicines.Update(ctx, f.syrup.ID, MedicineUpdate{Quantity: &zero})
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsOutOfStock {
		t.Fatal("medicine with zero stock not flagged")
	}
	m, err = f.env.svc.Medicines.Restock(ctx, f.syrup.ID, 5)
	if err != nil {
		t.Fatal(err)
	}
	if m.IsOutOfStock || m.Quantity != 5 {
		t.Errorf("after restock = %d / out %v", m.Quantity, m.IsOutOfStock)
	}
	_, err = f.env.svc.Medicines.Restock(ctx, f.syrup.ID, 0)
	assertValidation(t, err)
}

var errStoreDown = errors.New("connection refused")

// brokenPharmacists fails profile lookups the way an unreachable database would.
type brokenPharmacists struct{ store.PharmacistRepository }

func (brokenPharmacists) GetByUserID(context.Context, string) (*models.Pharmacist, error) {
	return nil, errStoreDown
}

type brokenPharmacyStore struct{ store.Store }

func (s brokenPharmacyStore) Pharmacists() store.PharmacistRepository {
	return brokenPharmacists{s.Store.Pharmacists()}
}

func (s brokenPharmacyStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx store.Store) error {
		return fn(brokenPharmacyStore{tx})
	})
}

func TestDispenseReportsStoreFailures(t *testing.T) {
	f := newPharmacyFixture(t)
	ctx := context.Background()
	p := f.prescribe(t, 1, 1)
	svc := New(brokenPharmacyStore{f.env.store}, f.env.cfg, f.env.mail, zerolog.Nop())

	_, err := svc.Prescriptions.Dispense(ctx, f.env.pharmacist, p.ID, nil)
	assertErrorIs(t, err, errStoreDown)
	if errors.Is(err, models.ErrForbidden) {
		t.Errorf("store failure reported as forbidden: %v", err)
	}

	// A pharmacist account without a profile row is still refused.
	ghost := Actor{UserID: "no-such-user", Role: models.RolePharmacist}
	_, err = f.env.svc.Prescriptions.Dispense(ctx, ghost, p.ID, nil)
	assertErrorIs(t, err, models.ErrForbidden)
}
