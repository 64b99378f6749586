package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient, RolePharmacist:
		return true
	}
	return false
}

// User represents a login account. Doctors, patients and pharmacists have a profile row
// pointing back here.
type User struct {
	BaseModel
	Email                   string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password                string     `gorm:"size:255;not null" json:"-"`
	FirstName               string     `gorm:"size:100" json:"firstName"`
	LastName                string     `gorm:"size:100" json:"lastName"`
	Role                    Role       `gorm:"size:20;default:'patient'" json:"role"`
	PhoneNumber             string     `gorm:"size:30" json:"phoneNumber,omitempty"`
	IsVerified              bool       `gorm:"default:false" json:"isVerified"`
	VerificationToken       string     `gorm:"size:255;index" json:"-"`
	VerificationTokenExpiry *time.Time `json:"-"`
	OTPHash                 string     `gorm:"size:255" json:"-"`
	OTPExpiresAt            *time.Time `json:"-"`
	OTPAttempts             int        `gorm:"default:0" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Role        Role      `json:"role"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		PhoneNumber: u.PhoneNumber,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
