package models

import (
	"gorm.io/gorm"
)

// Feedback is a patient's rating of a completed appointment.
type Feedback struct {
	BaseModel
	AppointmentID string `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	PatientID     string `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID      string `gorm:"size:36;index;not null" json:"doctorId"`
	Rating        int    `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment       string `gorm:"type:text" json:"comment"`
}

// Validate enforces the 1..5 rating range.
func (f *Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// BeforeSave rejects out-of-range ratings.
func (f *Feedback) BeforeSave(tx *gorm.DB) error {
	return f.Validate()
}

// RatingSummary aggregates feedback for a doctor.
type RatingSummary struct {
	DoctorID string  `json:"doctorId"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// Summarize computes count and average rating.
func Summarize(doctorID string, items []Feedback) RatingSummary {
	s := RatingSummary{DoctorID: doctorID, Count: len(items)}
	if len(items) == 0 {
		return s
	}
	sum := 0
	for _, f := range items {
		sum += f.Rating
	}
	s.Average = float64(sum) / float64(len(items))
	return s
}
