package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Specialization is a medical field a doctor practices in.
type Specialization struct {
	BaseModel
	Name        string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

// Doctor is the doctor profile of a User with RoleDoctor.
type Doctor struct {
	BaseModel
	UserID           string          `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	SpecializationID *string         `gorm:"size:36;index" json:"specializationId,omitempty"`
	Bio              string          `gorm:"type:text" json:"bio"`
	ExperienceYears  int             `gorm:"default:0" json:"experienceYears"`
	ConsultationFee  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"consultationFee"`

	// Relations
	User           *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Specialization *Specialization `gorm:"foreignKey:SpecializationID" json:"specialization,omitempty"`
}

// Patient is the patient profile of a User with RolePatient.
type Patient struct {
	BaseModel
	UserID           string     `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	DateOfBirth      *time.Time `json:"dateOfBirth,omitempty"`
	Gender           string     `gorm:"size:20" json:"gender,omitempty"`
	BloodType        string     `gorm:"size:5" json:"bloodType,omitempty"`
	Address          string     `gorm:"size:255" json:"address,omitempty"`
	EmergencyContact string     `gorm:"size:100" json:"emergencyContact,omitempty"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Pharmacist is the pharmacist profile of a User with RolePharmacist.
type Pharmacist struct {
	BaseModel
	UserID        string `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	LicenseNumber string `gorm:"size:50" json:"licenseNumber"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
