package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentCancel  PaymentStatus = "cancel"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPaid || s == PaymentPending || s == PaymentCancel
}

// Payment is money owed by a patient for an appointment or a dispensed prescription.
type Payment struct {
	BaseModel
	PatientID          string              `gorm:"size:36;index;not null" json:"patientId"`
	AppointmentID      *string             `gorm:"size:36;index" json:"appointmentId,omitempty"`
	PrescriptionID     *string             `gorm:"size:36;index" json:"prescriptionId,omitempty"`
	Amount             decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"amount"`
	CompensationCodeID *string             `gorm:"size:36" json:"compensationCodeId,omitempty"`
	CompensationAmount decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"compensationAmount"`
	Status             PaymentStatus       `gorm:"size:20;default:'pending';index" json:"status"`
	Method             string              `gorm:"size:30" json:"method,omitempty"`
	PaidAt             *time.Time          `json:"paidAt,omitempty"`
}

// Total is what the patient pays after compensation.
func (p *Payment) Total() decimal.Decimal {
	if p.CompensationAmount.Valid {
		return p.Amount.Sub(p.CompensationAmount.Decimal)
	}
	return p.Amount
}

// Validate checks the payment refers to exactly one billable item and amounts make sense.
func (p *Payment) Validate() error {
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	if (p.AppointmentID == nil) == (p.PrescriptionID == nil) {
		return Invalid("payment must reference either an appointment or a prescription")
	}
	if p.Amount.IsNegative() {
		return Invalid("amount must not be negative")
	}
	if p.CompensationAmount.Valid {
		if p.CompensationCodeID == nil {
			return Invalid("compensation amount requires a compensation code")
		}
		if p.CompensationAmount.Decimal.IsNegative() || p.CompensationAmount.Decimal.GreaterThan(p.Amount) {
			return Invalid("compensation amount out of range")
		}
	}
	return nil
}

// BeforeSave refuses inconsistent payments.
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = PaymentPending
	}
	return p.Validate()
}

// ApplyCode records the discount granted by code. The caller redeems the code.
func (p *Payment) ApplyCode(code *CompensationCode) {
	p.CompensationCodeID = &code.ID
	p.CompensationAmount = decimal.NewNullDecimal(code.Discount(p.Amount))
}

// MarkPaid settles a pending payment.
func (p *Payment) MarkPaid(method string, at time.Time) error {
	if p.Status != PaymentPending {
		return ErrInvalidTransition
	}
	p.Status = PaymentPaid
	p.Method = method
	p.PaidAt = &at
	return nil
}

// Cancel drops a pending payment.
func (p *Payment) Cancel() error {
	if p.Status != PaymentPending {
		return ErrInvalidTransition
	}
	p.Status = PaymentCancel
	return nil
}
