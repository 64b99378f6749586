package models

import (
	"time"
)

// MedicalRecordType represents the type of medical record
type MedicalRecordType string

const (
	RecordTypeConsultation     MedicalRecordType = "ConsultationNote"
	RecordTypeLabResult        MedicalRecordType = "LabResult"
	RecordTypeImagingReport    MedicalRecordType = "ImagingReport"
	RecordTypeVaccination      MedicalRecordType = "VaccinationRecord"
	RecordTypeAllergy          MedicalRecordType = "AllergyRecord"
	RecordTypeDischargeSummary MedicalRecordType = "DischargeSummary"
)

// MedicalRecord represents a patient's medical record
type MedicalRecord struct {
	BaseModel
	PatientID     string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID      string            `gorm:"size:36;index;not null" json:"doctorId"`
	AppointmentID *string           `gorm:"size:36;index" json:"appointmentId,omitempty"`
	RecordType    MedicalRecordType `gorm:"size:50" json:"recordType"`
	RecordDate    time.Time         `json:"date"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Symptoms      string            `gorm:"type:text" json:"symptoms"`
	Diagnosis     string            `gorm:"type:text" json:"diagnosis"`
	Treatment     string            `gorm:"type:text" json:"treatment"`
	Notes         string            `gorm:"type:text" json:"notes"`
}

// Valid reports whether t is a known record type.
func (t MedicalRecordType) Valid() bool {
	switch t {
	case RecordTypeConsultation, RecordTypeLabResult, RecordTypeImagingReport,
		RecordTypeVaccination, RecordTypeAllergy, RecordTypeDischargeSummary:
		return true
	}
	return false
}
