package services

import (
	"context"
	"testing"
	"time"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

func TestBookStartsWaitingWithDefaultLength(t *testing.T) {
	env := newTestEnv(t)
	a := env.book(t, 2)

	if a.Status != models.StatusWaitingForConfirmation {
		t.Errorf("status = %s, want %s", a.Status, models.StatusWaitingForConfirmation)
	}
	if got := a.EndTime.Sub(a.StartTime); got != 30*time.Minute {
		t.Errorf("length = %v, want 30m", got)
	}
	if a.PatientID != env.patientID {
		t.Errorf("patient = %s, want %s", a.PatientID, env.patientID)
	}
}

func TestBookRejectsPastAndOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Appointments.Book(ctx, env.patient, BookInput{DoctorID: env.doctorID, StartTime: env.now.Add(-time.Hour)})
	assertValidation(t, err)

	env.book(t, 2)
	_, err = env.svc.Appointments.Book(ctx, env.other, BookInput{
		DoctorID:  env.doctorID,
		StartTime: env.now.Add(2*time.Hour + 15*time.Minute),
	})
	assertErrorIs(t, err, models.ErrSlotUnavailable)

	// Back-to-back slots do not overlap.
	if _, err := env.svc.Appointments.Book(ctx, env.other, BookInput{
		DoctorID:  env.doctorID,
		StartTime: env.now.Add(2*time.Hour + 30*time.Minute),
	}); err != nil {
		t.Fatalf("adjacent booking error = %v", err)
	}
}

func TestBookFreesSlotAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.book(t, 3)

	if _, err := env.svc.Appointments.Cancel(ctx, env.patient, a.ID, "cannot make it"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Appointments.Book(ctx, env.other, BookInput{DoctorID: env.doctorID, StartTime: a.StartTime}); err != nil {
		t.Fatalf("booking a cancelled slot error = %v", err)
	}
}

func TestCancelRequiresReasonAndRecordsFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.book(t, 2)

	_, err := env.svc.Appointments.Cancel(ctx, env.patient, a.ID, "   ")
	assertErrorIs(t, err, models.ErrCancelReasonRequired)

	stored, err := env.store.Appointments().GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusWaitingForConfirmation || stored.CancelledAt != nil {
		t.Fatalf("failed cancel changed the row: %+v", stored)
	}

	got, err := env.svc.Appointments.Cancel(ctx, env.patient, a.ID, "feeling better")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCancelled || got.CancelledAt == nil || *got.CancelledBy != env.patient.UserID || *got.CancelReason != "feeling better" {
		t.Errorf("cancelled appointment = %+v", got)
	}
	if err := got.CheckCancellation(); err != nil {
		t.Errorf("CheckCancellation() = %v", err)
	}
}

func TestLifecycleAndAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.book(t, 2)

	_, err := env.svc.Appointments.Accept(ctx, env.patient, a.ID)
	assertErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.Appointments.Get(ctx, env.other, a.ID)
	assertErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.Appointments.Complete(ctx, env.doctor, a.ID)
	assertErrorIs(t, err, models.ErrInvalidTransition)

	if _, err := env.svc.Appointments.Accept(ctx, env.doctor, a.ID); err != nil {
		t.Fatal(err)
	}
	done, err := env.svc.Appointments.Complete(ctx, env.doctor, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s", done.Status)
	}

	_, err = env.svc.Appointments.Cancel(ctx, env.doctor, a.ID, "too late")
	assertErrorIs(t, err, models.ErrInvalidTransition)
}

func TestListPinsPatientsToOwnAppointments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.book(t, 2)
	if _, err := env.svc.Appointments.Book(ctx, env.other, BookInput{DoctorID: env.doctorID, StartTime: env.now.Add(5 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	mine, total, err := env.svc.Appointments.List(ctx, env.patient, store.AppointmentFilter{PatientID: env.otherID}, store.Page{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || mine[0].PatientID != env.patientID {
		t.Errorf("patient listing = %d items, first patient %s", total, mine[0].PatientID)
	}

	_, total, err = env.svc.Appointments.List(ctx, env.doctor, store.AppointmentFilter{}, store.Page{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("doctor sees %d appointments, want 2", total)
	}

	_, _, err = env.svc.Appointments.List(ctx, env.pharmacist, store.AppointmentFilter{}, store.Page{Limit: 10})
	assertErrorIs(t, err, models.ErrForbidden)
}

func TestRescheduleResetsToWaiting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.book(t, 2)
	b := env.book(t, 4)
	if _, err := env.svc.Appointments.Accept(ctx, env.doctor, a.ID); err != nil {
		t.Fatal(err)
	}

	_, err := env.svc.Appointments.Reschedule(ctx, env.patient, a.ID, b.StartTime, nil)
	assertErrorIs(t, err, models.ErrSlotUnavailable)

	moved, err := env.svc.Appointments.Reschedule(ctx, env.patient, a.ID, env.now.Add(6*time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}
	if moved.Status != models.StatusWaitingForConfirmation {
		t.Errorf("status = %s, want waiting", moved.Status)
	}
	if moved.EndTime.Sub(moved.StartTime) != 30*time.Minute {
		t.Errorf("length changed to %v", moved.EndTime.Sub(moved.StartTime))
	}

	// Rescheduling onto its own slot is not a collision.
	if _, err := env.svc.Appointments.Reschedule(ctx, env.patient, a.ID, moved.StartTime.Add(10*time.Minute), nil); err != nil {
		t.Errorf("overlapping own slot error = %v", err)
	}
}
