package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	base.EnsureID()
	return nil
}

// EnsureID assigns a UUID when none is set yet.
func (base *BaseModel) EnsureID() {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
}

// Base exposes the common columns to generic persistence helpers.
func (base *BaseModel) Base() *BaseModel { return base }

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN      string
	LogLevel logger.LogLevel
}

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&Specialization{},
		&Doctor{},
		&Patient{},
		&Pharmacist{},
		&CompensationCode{},
		&Appointment{},
		&DoctorDayOff{},
		&Medicine{},
		&Prescription{},
		&PrescriptionMedicine{},
		&Payment{},
		&Feedback{},
		&MedicalRecord{},
	}
}

// OpenDB opens the MySQL connection without touching the schema.
func OpenDB(config DatabaseConfig) (*gorm.DB, error) {
	level := config.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	return gorm.Open(mysql.Open(config.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// InitDB initializes database connection and migrates the schema.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	db, err := OpenDB(config)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
