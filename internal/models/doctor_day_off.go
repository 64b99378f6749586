package models

import (
	"time"

	"gorm.io/gorm"
)

// DoctorDayOff is a period the doctor declared unavailable.
type DoctorDayOff struct {
	BaseModel
	DoctorID  string    `gorm:"size:36;index;not null" json:"doctorId"`
	StartTime time.Time `gorm:"index" json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Reason    string    `gorm:"size:255" json:"reason"`
}

// Validate checks the period is well formed.
func (d *DoctorDayOff) Validate() error {
	if d.DoctorID == "" {
		return Invalid("doctor is required")
	}
	if !d.EndTime.After(d.StartTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// BeforeSave rejects empty periods.
func (d *DoctorDayOff) BeforeSave(tx *gorm.DB) error {
	return d.Validate()
}

// Overlaps reports whether the day-off intersects [start, end).
func (d *DoctorDayOff) Overlaps(start, end time.Time) bool {
	return d.StartTime.Before(end) && start.Before(d.EndTime)
}
