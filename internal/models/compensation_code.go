package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CompensationCode is a voucher handed to a patient, for example after a doctor day-off
// cancelled their appointment.
type CompensationCode struct {
	BaseModel
	Code               string          `gorm:"uniqueIndex;size:32;not null" json:"code"`
	PatientID          *string         `gorm:"size:36;index" json:"patientId,omitempty"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	DiscountPercentage int             `gorm:"not null;default:0" json:"discountPercentage"`
	Reason             string          `gorm:"size:255" json:"reason"`
	ExpiresAt          *time.Time      `json:"expiresAt,omitempty"`
	IsUsed             bool            `gorm:"default:false" json:"isUsed"`
	UsedAt             *time.Time      `json:"usedAt,omitempty"`
}

// Validate checks a stored code: it needs its code string and a valid discount.
func (c *CompensationCode) Validate() error {
	if c.Code == "" {
		return Invalid("code is required")
	}
	return c.ValidateDiscount()
}

// ValidateDiscount checks the amount and percentage ranges. It is what an issue request
// can be checked against before a code string is allocated.
func (c *CompensationCode) ValidateDiscount() error {
	if c.DiscountPercentage < 0 || c.DiscountPercentage > 100 || c.Amount.IsNegative() {
		return ErrInvalidDiscount
	}
	if c.DiscountPercentage == 0 && !c.Amount.IsPositive() {
		return Invalid("either amount or discount percentage must be positive")
	}
	return nil
}

// BeforeSave refuses out-of-range discounts.
func (c *CompensationCode) BeforeSave(tx *gorm.DB) error {
	return c.Validate()
}

// Discount returns how much the code takes off base. A positive percentage governs and
// the flat amount caps it; without a percentage the flat amount applies. The result never
// exceeds base.
func (c *CompensationCode) Discount(base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	if c.DiscountPercentage > 0 {
		d = base.Mul(decimal.NewFromInt(int64(c.DiscountPercentage))).Div(hundred).Round(2)
		if c.Amount.IsPositive() && d.GreaterThan(c.Amount) {
			d = c.Amount
		}
	} else {
		d = c.Amount
	}
	if d.GreaterThan(base) {
		d = base
	}
	return d
}

// CheckRedeemable reports why patientID cannot use the code at now, if anything.
func (c *CompensationCode) CheckRedeemable(patientID string, now time.Time) error {
	if c.IsUsed {
		return ErrCodeUsed
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrCodeExpired
	}
	if c.PatientID != nil && *c.PatientID != patientID {
		return ErrCodeNotOwned
	}
	return nil
}

// Redeem marks the code used.
func (c *CompensationCode) Redeem(patientID string, now time.Time) error {
	if err := c.CheckRedeemable(patientID, now); err != nil {
		return err
	}
	c.IsUsed = true
	c.UsedAt = &now
	return nil
}
