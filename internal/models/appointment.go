package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusWaitingForConfirmation AppointmentStatus = "waiting_for_confirmation"
	StatusAccepted               AppointmentStatus = "accepted"
	StatusCancelled              AppointmentStatus = "cancelled"
	StatusCompleted              AppointmentStatus = "completed"
	StatusPatientNotComing       AppointmentStatus = "patient_not_coming"
	StatusDoctorDayOff           AppointmentStatus = "doctor_day_off"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusWaitingForConfirmation: {StatusAccepted, StatusCancelled, StatusDoctorDayOff},
	StatusAccepted:               {StatusCompleted, StatusCancelled, StatusPatientNotComing, StatusDoctorDayOff},
}

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusWaitingForConfirmation, StatusAccepted, StatusCancelled,
		StatusCompleted, StatusPatientNotComing, StatusDoctorDayOff:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies the doctor's calendar.
func (s AppointmentStatus) Active() bool {
	return s == StatusWaitingForConfirmation || s == StatusAccepted
}

// VoidsPayment reports whether an appointment in status s can no longer be billed, so a
// pending consultation payment must be dropped.
func (s AppointmentStatus) VoidsPayment() bool {
	return s == StatusCancelled || s == StatusPatientNotComing || s == StatusDoctorDayOff
}

// ActiveAppointmentStatuses are the statuses that block a time slot.
var ActiveAppointmentStatuses = []AppointmentStatus{StatusWaitingForConfirmation, StatusAccepted}

// Appointment represents a scheduled medical appointment
type Appointment struct {
	BaseModel
	PatientID          string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID           string            `gorm:"size:36;index;not null" json:"doctorId"`
	StartTime          time.Time         `gorm:"index" json:"startTime"`
	EndTime            time.Time         `json:"endTime"`
	Status             AppointmentStatus `gorm:"size:30;default:'waiting_for_confirmation';index" json:"status"`
	Reason             string            `gorm:"size:255" json:"reason"`
	Notes              string            `gorm:"type:text" json:"notes"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
	CancelledBy        *string           `gorm:"size:36" json:"cancelledBy,omitempty"`
	CancelReason       *string           `gorm:"size:255" json:"cancelReason,omitempty"`
	CompensationCodeID *string           `gorm:"size:36" json:"compensationCodeId,omitempty"`

	// Relations
	Patient          *Patient          `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor           *Doctor           `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	CompensationCode *CompensationCode `gorm:"foreignKey:CompensationCodeID" json:"compensationCode,omitempty"`
}

// NewAppointment builds an appointment in its initial state.
func NewAppointment(patientID, doctorID string, start, end time.Time, reason, notes string) (*Appointment, error) {
	if !end.After(start) {
		return nil, ErrInvalidTimeRange
	}
	return &Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Reason:    reason,
		Notes:     notes,
		Status:    StatusWaitingForConfirmation,
	}, nil
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (a *Appointment) CanTransitionTo(next AppointmentStatus) bool {
	for _, s := range appointmentTransitions[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Overlaps reports whether the appointment intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}

func (a *Appointment) transition(next AppointmentStatus) error {
	if !a.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	a.Status = next
	return nil
}

// Accept confirms a waiting appointment.
func (a *Appointment) Accept() error { return a.transition(StatusAccepted) }

// Complete closes an accepted appointment.
func (a *Appointment) Complete() error { return a.transition(StatusCompleted) }

// MarkPatientNotComing records a no-show.
func (a *Appointment) MarkPatientNotComing() error { return a.transition(StatusPatientNotComing) }

// MarkDoctorDayOff moves the appointment out of the calendar because the doctor is away,
// linking the compensation code handed to the patient.
func (a *Appointment) MarkDoctorDayOff(codeID string) error {
	if err := a.transition(StatusDoctorDayOff); err != nil {
		return err
	}
	if codeID != "" {
		a.CompensationCodeID = &codeID
	}
	return nil
}

// Cancel moves the appointment to cancelled and records who, why and when.
func (a *Appointment) Cancel(by, reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCancelReasonRequired
	}
	if by == "" {
		return Invalid("cancelling user is required")
	}
	if err := a.transition(StatusCancelled); err != nil {
		return err
	}
	a.CancelledAt = &at
	a.CancelledBy = &by
	a.CancelReason = &reason
	return nil
}

// Reschedule moves the appointment to a new slot and sends it back for confirmation.
func (a *Appointment) Reschedule(start, end time.Time) error {
	if !a.Status.Active() {
		return ErrInvalidTransition
	}
	if !end.After(start) {
		return ErrInvalidTimeRange
	}
	a.StartTime = start
	a.EndTime = end
	a.Status = StatusWaitingForConfirmation
	return nil
}

// CheckCancellation verifies cancelled_at, cancelled_by and cancel_reason are set
// exactly when the appointment is cancelled.
func (a *Appointment) CheckCancellation() error {
	set := a.CancelledAt != nil && a.CancelledBy != nil && a.CancelReason != nil &&
		strings.TrimSpace(*a.CancelReason) != ""
	none := a.CancelledAt == nil && a.CancelledBy == nil && a.CancelReason == nil
	if a.Status == StatusCancelled && !set {
		return ErrCancellationFields
	}
	if a.Status != StatusCancelled && !none {
		return ErrCancellationFields
	}
	return nil
}

// Validate checks the row-level invariants.
func (a *Appointment) Validate() error {
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}
	if !a.EndTime.After(a.StartTime) {
		return ErrInvalidTimeRange
	}
	return a.CheckCancellation()
}

// BeforeSave refuses to write a row that breaks the appointment invariants.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = StatusWaitingForConfirmation
	}
	return a.Validate()
}
