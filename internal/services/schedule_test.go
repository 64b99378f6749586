package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
)

func TestDeclareDayOffCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inside := env.book(t, 25)
	accepted := env.book(t, 27)
	outside := env.book(t, 72)
	if _, err := env.svc.Appointments.Accept(ctx, env.doctor, accepted.ID); err != nil {
		t.Fatal(err)
	}

	res, err := env.svc.Schedule.DeclareDayOff(ctx, env.doctor, DayOffInput{
		StartTime: env.now.Add(24 * time.Hour),
		EndTime:   env.now.Add(48 * time.Hour),
		Reason:    "conference",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Affected) != 2 || len(res.Codes) != 2 {
		t.Fatalf("affected %d, codes %d, want 2 and 2", len(res.Affected), len(res.Codes))
	}

	for _, id := range []string{inside.ID, accepted.ID} {
		a, err := env.store.Appointments().GetByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if a.Status != models.StatusDoctorDayOff || a.CompensationCodeID == nil {
			t.Fatalf("appointment %s = %s / code %v", id, a.Status, a.CompensationCodeID)
		}
		code, err := env.store.CompensationCodes().GetByID(ctx, *a.CompensationCodeID)
		if err != nil {
			t.Fatal(err)
		}
		if *code.PatientID != env.patientID || code.DiscountPercentage != 100 {
			t.Errorf("code = %+v", code)
		}
		if !code.Amount.Equal(decimal.NewFromInt(50)) {
			t.Errorf("code cap = %s, want 50", code.Amount)
		}
	}
	a, _ := env.store.Appointments().GetByID(ctx, outside.ID)
	if a.Status != models.StatusWaitingForConfirmation {
		t.Errorf("appointment outside the day-off moved to %s", a.Status)
	}
	if _, ok := env.mail.last(); !ok {
		t.Error("affected patients were not emailed")
	}

	_, err = env.svc.Appointments.Book(ctx, env.other, BookInput{DoctorID: env.doctorID, StartTime: env.now.Add(30 * time.Hour)})
	assertErrorIs(t, err, models.ErrSlotUnavailable)
}

func TestDayOffAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := DayOffInput{StartTime: env.now.Add(time.Hour), EndTime: env.now.Add(2 * time.Hour)}

	_, err := env.svc.Schedule.DeclareDayOff(ctx, env.patient, in)
	assertErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.Schedule.DeclareDayOff(ctx, env.admin, in)
	assertValidation(t, err)

	in.DoctorID = env.doctorID
	res, err := env.svc.Schedule.DeclareDayOff(ctx, env.admin, in)
	if err != nil {
		t.Fatal(err)
	}
	list, err := env.svc.Schedule.ListDayOffs(ctx, env.doctorID, env.now)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListDayOffs() = %d, %v", len(list), err)
	}
	if err := env.svc.Schedule.DeleteDayOff(ctx, env.doctor, res.DayOff.ID); err != nil {
		t.Fatal(err)
	}
}
