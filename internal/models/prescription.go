package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PrescriptionStatus represents where a prescription is in the pharmacy flow.
type PrescriptionStatus string

const (
	PrescriptionPendingPrepare PrescriptionStatus = "pending_prepare"
	PrescriptionWaitingPayment PrescriptionStatus = "waiting_payment"
	PrescriptionCompleted      PrescriptionStatus = "completed"
	PrescriptionCancelled      PrescriptionStatus = "cancelled"

	// Values written by the superseded schema.
	legacyPrescriptionPending   PrescriptionStatus = "pending"
	legacyPrescriptionDispensed PrescriptionStatus = "dispensed"
)

var prescriptionTransitions = map[PrescriptionStatus][]PrescriptionStatus{
	PrescriptionPendingPrepare: {PrescriptionWaitingPayment, PrescriptionCancelled},
	PrescriptionWaitingPayment: {PrescriptionCompleted, PrescriptionCancelled},
}

// ParsePrescriptionStatus accepts current and legacy status names and returns the
// current one.
func ParsePrescriptionStatus(s string) (PrescriptionStatus, error) {
	switch st := PrescriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PrescriptionPendingPrepare, PrescriptionWaitingPayment, PrescriptionCompleted, PrescriptionCancelled:
		return st, nil
	case legacyPrescriptionPending:
		return PrescriptionPendingPrepare, nil
	case legacyPrescriptionDispensed:
		return PrescriptionCompleted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Prescription is a doctor's order for medicines, fulfilled by the pharmacy.
type Prescription struct {
	BaseModel
	AppointmentID *string            `gorm:"size:36;index" json:"appointmentId,omitempty"`
	PatientID     string             `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID      string             `gorm:"size:36;index;not null" json:"doctorId"`
	PharmacistID  *string            `gorm:"size:36;index" json:"pharmacistId,omitempty"`
	Status        PrescriptionStatus `gorm:"size:30;default:'pending_prepare';index" json:"status"`
	Note          string             `gorm:"type:text" json:"note"`
	DispensedAt   *time.Time         `json:"dispensedAt,omitempty"`
	CancelReason  *string            `gorm:"size:255" json:"cancelReason,omitempty"`

	// Relations
	Medicines []PrescriptionMedicine `gorm:"foreignKey:PrescriptionID" json:"medicines"`
}

// PrescriptionMedicine is one line of a prescription. ActualQuantity is what the pharmacy
// handed out and may be lower than Quantity when stock ran short.
type PrescriptionMedicine struct {
	BaseModel
	PrescriptionID string `gorm:"size:36;index;not null" json:"prescriptionId"`
	MedicineID     string `gorm:"size:36;index;not null" json:"medicineId"`
	Quantity       int    `gorm:"not null" json:"quantity"`
	ActualQuantity *int   `json:"actualQuantity,omitempty"`
	Dosage         string `gorm:"size:255" json:"dosage"`
	Note           string `gorm:"type:text" json:"note"`

	// Relations
	Medicine *Medicine `gorm:"foreignKey:MedicineID" json:"medicine,omitempty"`
}

// Validate checks ordered and actual quantities.
func (l *PrescriptionMedicine) Validate() error {
	if l.MedicineID == "" {
		return Invalid("medicine is required")
	}
	if l.Quantity <= 0 {
		return Invalid("ordered quantity must be positive")
	}
	if l.ActualQuantity != nil && *l.ActualQuantity < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// BeforeSave rejects negative quantities.
func (l *PrescriptionMedicine) BeforeSave(tx *gorm.DB) error {
	return l.Validate()
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (p *Prescription) CanTransitionTo(next PrescriptionStatus) bool {
	for _, s := range prescriptionTransitions[p.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Validate checks the status is current and the lines are sane.
func (p *Prescription) Validate() error {
	if _, err := ParsePrescriptionStatus(string(p.Status)); err != nil {
		return err
	}
	for i := range p.Medicines {
		if err := p.Medicines[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BeforeSave normalises legacy statuses before writing.
func (p *Prescription) BeforeSave(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = PrescriptionPendingPrepare
	}
	st, err := ParsePrescriptionStatus(string(p.Status))
	if err != nil {
		return err
	}
	p.Status = st
	return nil
}

// AfterFind maps rows written with the superseded status names.
func (p *Prescription) AfterFind(tx *gorm.DB) error {
	if st, err := ParsePrescriptionStatus(string(p.Status)); err == nil {
		p.Status = st
	}
	return nil
}

// Cancel stops the prescription. Completed prescriptions cannot be cancelled.
func (p *Prescription) Cancel(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCancelReasonRequired
	}
	if !p.CanTransitionTo(PrescriptionCancelled) {
		return ErrInvalidTransition
	}
	p.Status = PrescriptionCancelled
	p.CancelReason = &reason
	return nil
}

// MarkPaid completes a prescription waiting for payment.
func (p *Prescription) MarkPaid() error {
	if !p.CanTransitionTo(PrescriptionCompleted) {
		return ErrInvalidTransition
	}
	p.Status = PrescriptionCompleted
	return nil
}

// DispenseLine is the pharmacist's input for one prescription line.
type DispenseLine struct {
	LineID         string
	ActualQuantity *int
	Note           string
}

// Dispense fills every line from stock. Lines without an entry are filled with the
// ordered quantity. stock must hold every medicine referenced by the prescription and is
// decremented in place. It returns the amount due for what was handed out.
func (p *Prescription) Dispense(pharmacistID string, lines []DispenseLine, stock map[string]*Medicine, at time.Time) (decimal.Decimal, error) {
	if !p.CanTransitionTo(PrescriptionWaitingPayment) {
		return decimal.Zero, ErrInvalidTransition
	}
	byLine := make(map[string]DispenseLine, len(lines))
	for _, in := range lines {
		byLine[in.LineID] = in
	}
	for id := range byLine {
		if !p.hasLine(id) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownLine, id)
		}
	}

	// Validate everything before touching stock so a failure leaves no partial state.
	actuals := make([]int, len(p.Medicines))
	need := make(map[string]int)
	for i := range p.Medicines {
		line := &p.Medicines[i]
		actual := line.Quantity
		in, ok := byLine[line.ID]
		if ok && in.ActualQuantity != nil {
			actual = *in.ActualQuantity
		}
		if actual < 0 {
			return decimal.Zero, ErrNegativeQuantity
		}
		if actual > line.Quantity {
			return decimal.Zero, ErrOverDispense
		}
		if actual != line.Quantity && strings.TrimSpace(in.Note) == "" {
			return decimal.Zero, ErrDispenseNoteRequired
		}
		if _, ok := stock[line.MedicineID]; !ok {
			return decimal.Zero, fmt.Errorf("%w: medicine %s", ErrInsufficientStock, line.MedicineID)
		}
		actuals[i] = actual
		need[line.MedicineID] += actual
	}
	for id, n := range need {
		if m := stock[id]; n > m.Quantity {
			return decimal.Zero, fmt.Errorf("%w: %s has %d, %d needed", ErrInsufficientStock, m.Name, m.Quantity, n)
		}
	}

	total := decimal.Zero
	for i := range p.Medicines {
		line := &p.Medicines[i]
		m := stock[line.MedicineID]
		if err := m.Take(actuals[i]); err != nil {
			return decimal.Zero, err
		}
		actual := actuals[i]
		line.ActualQuantity = &actual
		if in, ok := byLine[line.ID]; ok && in.Note != "" {
			line.Note = strings.TrimSpace(in.Note)
		}
		total = total.Add(m.Price.Mul(decimal.NewFromInt(int64(actual))))
	}

	p.Status = PrescriptionWaitingPayment
	p.PharmacistID = &pharmacistID
	p.DispensedAt = &at
	return total, nil
}

func (p *Prescription) hasLine(id string) bool {
	for i := range p.Medicines {
		if p.Medicines[i].ID == id {
			return true
		}
	}
	return false
}
