package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestAppointment(t *testing.T) *Appointment {
	t.Helper()
	a, err := NewAppointment("p1", "d1", t0, t0.Add(30*time.Minute), "checkup", "")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAppointmentTransitions(t *testing.T) {
	cases := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		ok   bool
	}{
		{StatusWaitingForConfirmation, StatusAccepted, true},
		{StatusWaitingForConfirmation, StatusCompleted, false},
		{StatusWaitingForConfirmation, StatusPatientNotComing, false},
		{StatusWaitingForConfirmation, StatusDoctorDayOff, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusPatientNotComing, true},
		{StatusAccepted, StatusWaitingForConfirmation, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusDoctorDayOff, StatusAccepted, false},
		{StatusPatientNotComing, StatusCompleted, false},
	}
	for _, tc := range cases {
		a := &Appointment{Status: tc.from}
		if got := a.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestNewAppointmentWaitsForConfirmation(t *testing.T) {
	a := newTestAppointment(t)
	if a.Status != StatusWaitingForConfirmation {
		t.Errorf("status = %s", a.Status)
	}
	if _, err := NewAppointment("p", "d", t0, t0, "", ""); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("zero-length error = %v", err)
	}
}

func TestAppointmentCancelRecordsFields(t *testing.T) {
	a := newTestAppointment(t)
	if err := a.Cancel("u1", "   ", t0); !errors.Is(err, ErrCancelReasonRequired) {
		t.Fatalf("blank reason error = %v", err)
	}
	if a.Status != StatusWaitingForConfirmation || a.CheckCancellation() != nil {
		t.Fatal("failed cancel changed the appointment")
	}
	if err := a.Cancel("u1", " moved away ", t0); err != nil {
		t.Fatal(err)
	}
	if *a.CancelReason != "moved away" || *a.CancelledBy != "u1" || !a.CancelledAt.Equal(t0) {
		t.Errorf("cancellation fields = %v %v %v", *a.CancelReason, *a.CancelledBy, a.CancelledAt)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestCheckCancellation(t *testing.T) {
	reason := "x"
	a := newTestAppointment(t)
	a.CancelReason = &reason
	if err := a.CheckCancellation(); !errors.Is(err, ErrCancellationFields) {
		t.Errorf("fields on active appointment: %v", err)
	}
	b := newTestAppointment(t)
	b.Status = StatusCancelled
	if err := b.CheckCancellation(); !errors.Is(err, ErrCancellationFields) {
		t.Errorf("cancelled without fields: %v", err)
	}
}

func TestAppointmentOverlaps(t *testing.T) {
	a := newTestAppointment(t)
	if a.Overlaps(t0.Add(30*time.Minute), t0.Add(time.Hour)) {
		t.Error("adjacent slot reported as overlapping")
	}
	if !a.Overlaps(t0.Add(29*time.Minute), t0.Add(time.Hour)) {
		t.Error("overlapping slot not detected")
	}
}

func TestCompensationDiscount(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name   string
		code   CompensationCode
		base   string
		expect string
	}{
		{"percent only", CompensationCode{DiscountPercentage: 20}, "50", "10"},
		{"percent capped by amount", CompensationCode{DiscountPercentage: 50, Amount: d("5")}, "40", "5"},
		{"percent under cap", CompensationCode{DiscountPercentage: 10, Amount: d("5")}, "40", "4"},
		{"flat amount", CompensationCode{Amount: d("15")}, "40", "15"},
		{"flat amount above base", CompensationCode{Amount: d("60")}, "40", "40"},
		{"full refund", CompensationCode{DiscountPercentage: 100}, "33.33", "33.33"},
		{"zero base", CompensationCode{Amount: d("5")}, "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.code.Discount(d(tc.base)); !got.Equal(d(tc.expect)) {
				t.Errorf("Discount(%s) = %s, want %s", tc.base, got, tc.expect)
			}
		})
	}
}

func TestCompensationRedeem(t *testing.T) {
	owner := "p1"
	exp := t0.Add(time.Hour)
	c := &CompensationCode{Code: "ABC", PatientID: &owner, Amount: decimal.NewFromInt(5), ExpiresAt: &exp}

	if err := c.Redeem("p2", t0); !errors.Is(err, ErrCodeNotOwned) {
		t.Errorf("foreign patient: %v", err)
	}
	if err := c.Redeem("p1", exp); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("at expiry: %v", err)
	}
	if err := c.Redeem("p1", t0); err != nil {
		t.Fatal(err)
	}
	if !c.IsUsed || !c.UsedAt.Equal(t0) {
		t.Error("code not marked used")
	}
	if err := c.Redeem("p1", t0); !errors.Is(err, ErrCodeUsed) {
		t.Errorf("second redeem: %v", err)
	}
}

func TestCompensationValidate(t *testing.T) {
	bad := []CompensationCode{
		{Code: "A", DiscountPercentage: 101},
		{Code: "A", DiscountPercentage: -1},
		{Code: "A", Amount: decimal.NewFromInt(-1), DiscountPercentage: 10},
		{Code: "A"},
		{DiscountPercentage: 10},
	}
	for i := range bad {
		if err := bad[i].Validate(); !IsValidation(err) {
			t.Errorf("case %d: Validate() = %v, want validation error", i, err)
		}
	}
}

func TestCompensationValidateDiscountIgnoresCode(t *testing.T) {
	draft := CompensationCode{DiscountPercentage: 20}
	if err := draft.ValidateDiscount(); err != nil {
		t.Errorf("ValidateDiscount() = %v, want nil for a code not yet allocated", err)
	}
	if err := draft.Validate(); !IsValidation(err) {
		t.Errorf("Validate() = %v, want the missing code reported", err)
	}
	if err := (&CompensationCode{DiscountPercentage: 150}).ValidateDiscount(); !errors.Is(err, ErrInvalidDiscount) {
		t.Errorf("ValidateDiscount() = %v, want %v", err, ErrInvalidDiscount)
	}
}

func TestParsePrescriptionStatus(t *testing.T) {
	cases := map[string]PrescriptionStatus{
		"pending_prepare": PrescriptionPendingPrepare,
		"WAITING_PAYMENT": PrescriptionWaitingPayment,
		"pending":         PrescriptionPendingPrepare,
		"dispensed":       PrescriptionCompleted,
		" cancelled ":     PrescriptionCancelled,
	}
	for in, want := range cases {
		got, err := ParsePrescriptionStatus(in)
		if err != nil || got != want {
			t.Errorf("ParsePrescriptionStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePrescriptionStatus("shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("unknown status error = %v", err)
	}
}

func testPrescription() (*Prescription, map[string]*Medicine) {
	p := &Prescription{
		Status: PrescriptionPendingPrepare,
		Medicines: []PrescriptionMedicine{
			{BaseModel: BaseModel{ID: "l1"}, MedicineID: "m1", Quantity: 3},
			{BaseModel: BaseModel{ID: "l2"}, MedicineID: "m2", Quantity: 2},
		},
	}
	stock := map[string]*Medicine{
		"m1": {BaseModel: BaseModel{ID: "m1"}, Name: "A", Quantity: 5, Price: decimal.NewFromInt(2)},
		"m2": {BaseModel: BaseModel{ID: "m2"}, Name: "B", Quantity: 2, Price: decimal.RequireFromString("1.25")},
	}
	return p, stock
}

func TestPrescriptionDispense(t *testing.T) {
	p, stock := testPrescription()
	one := 1
	total, err := p.Dispense("ph1", []DispenseLine{{LineID: "l1", ActualQuantity: &one, Note: "short"}}, stock, t0)
	if err != nil {
		t.Fatal(err)
	}
	// 1 × 2 + 2 × 1.25
	if !total.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("total = %s, want 4.5", total)
	}
	if p.Status != PrescriptionWaitingPayment || *p.PharmacistID != "ph1" || !p.DispensedAt.Equal(t0) {
		t.Errorf("prescription = %+v", p)
	}
	if stock["m1"].Quantity != 4 || stock["m2"].Quantity != 0 || !stock["m2"].IsOutOfStock {
		t.Errorf("stock = %d, %d", stock["m1"].Quantity, stock["m2"].Quantity)
	}
	if *p.Medicines[0].ActualQuantity != 1 || p.Medicines[0].Note != "short" || *p.Medicines[1].ActualQuantity != 2 {
		t.Errorf("lines = %+v", p.Medicines)
	}
	if _, err := p.Dispense("ph1", nil, stock, t0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second dispense: %v", err)
	}
}

func TestPrescriptionDispenseLeavesStockOnFailure(t *testing.T) {
	p, stock := testPrescription()
	stock["m2"].Quantity = 1
	if _, err := p.Dispense("ph1", nil, stock, t0); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("error = %v", err)
	}
	if stock["m1"].Quantity != 5 || p.Status != PrescriptionPendingPrepare || p.Medicines[0].ActualQuantity != nil {
		t.Error("failed dispense left partial changes")
	}
}

func TestPrescriptionCancel(t *testing.T) {
	p := &Prescription{Status: PrescriptionCompleted}
	if err := p.Cancel("no longer needed"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel completed: %v", err)
	}
	p.Status = PrescriptionPendingPrepare
	if err := p.Cancel(""); !errors.Is(err, ErrCancelReasonRequired) {
		t.Errorf("blank reason: %v", err)
	}
	if err := p.Cancel("no longer needed"); err != nil || p.Status != PrescriptionCancelled {
		t.Errorf("cancel = %v, status %s", err, p.Status)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	apptID := "a1"
	p := &Payment{PatientID: "p1", AppointmentID: &apptID, Amount: decimal.NewFromInt(40), Status: PaymentPending}
	code := &CompensationCode{BaseModel: BaseModel{ID: "c1"}, DiscountPercentage: 25}
	p.ApplyCode(code)
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if !p.Total().Equal(decimal.NewFromInt(30)) {
		t.Errorf("total = %s, want 30", p.Total())
	}
	if err := p.MarkPaid("card", t0); err != nil {
		t.Fatal(err)
	}
	if err := p.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel paid: %v", err)
	}

	both := &Payment{AppointmentID: &apptID, PrescriptionID: &apptID, Status: PaymentPending}
	if err := both.Validate(); !IsValidation(err) {
		t.Errorf("payment for two items: %v", err)
	}
}

func TestMedicineStockFlag(t *testing.T) {
	m := &Medicine{Name: "A", Quantity: 1}
	if err := m.Take(2); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("take too many: %v", err)
	}
	if err := m.Take(1); err != nil || !m.IsOutOfStock {
		t.Errorf("take last: %v, out %v", err, m.IsOutOfStock)
	}
	if err := m.Restock(3); err != nil || m.IsOutOfStock || m.Quantity != 3 {
		t.Errorf("restock: %v, %+v", err, m)
	}
	if err := m.Restock(0); !IsValidation(err) {
		t.Errorf("restock zero: %v", err)
	}
}

func TestFeedbackRating(t *testing.T) {
	for _, r := range []int{0, 6, -1} {
		if err := (&Feedback{Rating: r}).Validate(); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: %v", r, err)
		}
	}
	s := Summarize("d1", []Feedback{{Rating: 5}, {Rating: 4}})
	if s.Count != 2 || s.Average != 4.5 {
		t.Errorf("summary = %+v", s)
	}
}
