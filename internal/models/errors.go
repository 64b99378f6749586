package models

import "errors"

// ValidationError marks a request that breaks a domain rule. Handlers map it to 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalid builds a ValidationError.
func Invalid(msg string) error { return &ValidationError{msg: msg} }

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	ErrInvalidTransition    = Invalid("status transition not allowed")
	ErrCancelReasonRequired = Invalid("a cancellation reason is required")
	ErrCancellationFields   = Invalid("cancellation fields must be set if and only if the appointment is cancelled")
	ErrInvalidTimeRange     = Invalid("end time must be after start time")
	ErrInvalidRating        = Invalid("rating must be between 1 and 5")
	ErrNegativeQuantity     = Invalid("quantity must be a non-negative integer")
	ErrOverDispense         = Invalid("actual quantity cannot exceed the ordered quantity")
	ErrDispenseNoteRequired = Invalid("a note is required when the dispensed quantity differs from the ordered quantity")
	ErrInsufficientStock    = Invalid("insufficient stock")
	ErrUnknownLine          = Invalid("line does not belong to this prescription")
	ErrCodeUsed             = Invalid("compensation code already used")
	ErrCodeExpired          = Invalid("compensation code expired")
	ErrCodeNotOwned         = Invalid("compensation code was issued to another patient")
	ErrInvalidDiscount      = Invalid("discount percentage must be between 0 and 100 and amount must not be negative")
	ErrInvalidStatus        = Invalid("unknown status")

	// ErrUnauthorized is returned when credentials or one-time codes do not check out.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor may not touch the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrSlotUnavailable is returned when a booking overlaps the doctor's calendar.
	ErrSlotUnavailable = errors.New("doctor is not available in the requested time slot")
)
