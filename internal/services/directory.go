package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/store"
)

// DirectoryService manages staff accounts, specializations and profiles.
type DirectoryService struct{ *deps }

// -- Users --

// CreateUserInput is the admin form for any account. Profile fields apply to the role
// they belong to.
type CreateUserInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        models.Role

	SpecializationID *string
	Bio              string
	ExperienceYears  int
	ConsultationFee  decimal.Decimal
	LicenseNumber    string
}

// CreateUser creates an account together with the profile row its role needs. Accounts
// created by an admin count as verified.
func (s *DirectoryService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, models.Invalid("unknown role")
	}
	if in.ConsultationFee.IsNegative() || in.ExperienceYears < 0 {
		return nil, models.Invalid("consultation fee and experience must not be negative")
	}
	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
		Role:        in.Role,
		IsVerified:  true,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		switch in.Role {
		case models.RoleDoctor:
			if in.SpecializationID != nil {
				if _, err := tx.Specializations().GetByID(ctx, *in.SpecializationID); err != nil {
					return fmt.Errorf("specialization: %w", err)
				}
			}
			return tx.Doctors().Create(ctx, &models.Doctor{
				UserID:           user.ID,
				SpecializationID: in.SpecializationID,
				Bio:              in.Bio,
				ExperienceYears:  in.ExperienceYears,
				ConsultationFee:  in.ConsultationFee,
			})
		case models.RolePatient:
			return tx.Patients().Create(ctx, &models.Patient{UserID: user.ID})
		case models.RolePharmacist:
			return tx.Pharmacists().Create(ctx, &models.Pharmacist{UserID: user.ID, LicenseNumber: in.LicenseNumber})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *DirectoryService) ListUsers(ctx context.Context, role models.Role, page store.Page) ([]models.User, int, error) {
	if role != "" && !role.Valid() {
		return nil, 0, models.Invalid("unknown role")
	}
	return s.store.Users().List(ctx, role, page)
}

func (s *DirectoryService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// UpdateUser lets an admin change account details.
func (s *DirectoryService) UpdateUser(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProfile(user, in)
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account and revokes its sessions.
func (s *DirectoryService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if actor.UserID == id {
		return models.Invalid("you cannot delete your own account")
	}
	return s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.RefreshTokens().RevokeAllForUser(ctx, id); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
}

// -- Specializations --

func (s *DirectoryService) CreateSpecialization(ctx context.Context, name, description string) (*models.Specialization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.Invalid("specialization name is required")
	}
	sp := &models.Specialization{Name: name, Description: description}
	if err := s.store.Specializations().Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *DirectoryService) ListSpecializations(ctx context.Context) ([]models.Specialization, error) {
	return s.store.Specializations().List(ctx)
}

func (s *DirectoryService) UpdateSpecialization(ctx context.Context, id string, name, description *string) (*models.Specialization, error) {
	sp, err := s.store.Specializations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, models.Invalid("specialization name is required")
		}
		sp.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		sp.Description = *description
	}
	if err := s.store.Specializations().Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *DirectoryService) DeleteSpecialization(ctx context.Context, id string) error {
	return s.store.Specializations().Delete(ctx, id)
}

// -- Doctors --

func (s *DirectoryService) ListDoctors(ctx context.Context, f store.DoctorFilter, page store.Page) ([]models.Doctor, int, error) {
	return s.store.Doctors().List(ctx, f, page)
}

func (s *DirectoryService) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	return s.store.Doctors().GetByID(ctx, id)
}

// DoctorUpdate holds editable doctor profile fields. Nil fields stay untouched.
type DoctorUpdate struct {
	SpecializationID *string
	Bio              *string
	ExperienceYears  *int
	ConsultationFee  *decimal.Decimal
}

// UpdateDoctor edits a doctor profile. Doctors may only edit their own.
func (s *DirectoryService) UpdateDoctor(ctx context.Context, actor Actor, id string, in DoctorUpdate) (*models.Doctor, error) {
	d, err := s.store.Doctors().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(models.RoleAdmin) && d.UserID != actor.UserID {
		return nil, forbidden("doctors can only edit their own profile")
	}
	if in.SpecializationID != nil {
		if _, err := s.store.Specializations().GetByID(ctx, *in.SpecializationID); err != nil {
			return nil, fmt.Errorf("specialization: %w", err)
		}
		d.SpecializationID = in.SpecializationID
		d.Specialization = nil
	}
	if in.Bio != nil {
		d.Bio = *in.Bio
	}
	if in.ExperienceYears != nil {
		if *in.ExperienceYears < 0 {
			return nil, models.Invalid("experience must not be negative")
		}
		d.ExperienceYears = *in.ExperienceYears
	}
	if in.ConsultationFee != nil {
		if in.ConsultationFee.IsNegative() {
			return nil, models.Invalid("consultation fee must not be negative")
		}
		d.ConsultationFee = *in.ConsultationFee
	}
	if err := s.store.Doctors().Update(ctx, d); err != nil {
		return nil, err
	}
	return s.store.Doctors().GetByID(ctx, id)
}

// -- Patients --

func (s *DirectoryService) ListPatients(ctx context.Context, page store.Page) ([]models.Patient, int, error) {
	return s.store.Patients().List(ctx, page)
}

// GetPatient returns a patient profile. Patients only see their own.
func (s *DirectoryService) GetPatient(ctx context.Context, actor Actor, id string) (*models.Patient, error) {
	p, err := s.store.Patients().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(models.RolePatient) && p.UserID != actor.UserID {
		return nil, forbidden("patients can only view their own profile")
	}
	return p, nil
}

// ListDoctorPatients returns the patients who have at least one appointment with the
// doctor, most recent appointment first. Doctors get their own patients; admins name the
// doctor.
func (s *DirectoryService) ListDoctorPatients(ctx context.Context, actor Actor, doctorID string) ([]models.Patient, error) {
	switch {
	case actor.Is(models.RoleDoctor):
		d, err := doctorOf(ctx, s.store, actor)
		if err != nil {
			return nil, err
		}
		if doctorID != "" && doctorID != d.ID {
			return nil, forbidden("doctors can only list their own patients")
		}
		doctorID = d.ID
	case actor.Is(models.RoleAdmin):
		if doctorID == "" {
			return nil, models.Invalid("doctorId is required")
		}
		if _, err := s.store.Doctors().GetByID(ctx, doctorID); err != nil {
			return nil, fmt.Errorf("doctor: %w", err)
		}
	default:
		return nil, forbidden("only doctors and admins can view patient lists")
	}

	appts, _, err := s.store.Appointments().List(ctx, store.AppointmentFilter{DoctorID: doctorID}, store.Page{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(appts))
	patients := make([]models.Patient, 0, len(appts))
	for _, a := range appts {
		if seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true
		p, err := s.store.Patients().GetByID(ctx, a.PatientID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, nil
}

// MyPatientProfile returns the actor's own patient profile.
func (s *DirectoryService) MyPatientProfile(ctx context.Context, actor Actor) (*models.Patient, error) {
	return patientOf(ctx, s.store, actor)
}

// PatientUpdate holds editable patient profile fields. Nil fields stay untouched.
type PatientUpdate struct {
	DateOfBirth      *string
	Gender           *string
	BloodType        *string
	Address          *string
	EmergencyContact *string
}

// UpdateMyPatientProfile edits the actor's own patient profile.
func (s *DirectoryService) UpdateMyPatientProfile(ctx context.Context, actor Actor, in PatientUpdate) (*models.Patient, error) {
	p, err := patientOf(ctx, s.store, actor)
	if err != nil {
		return nil, err
	}
	if in.DateOfBirth != nil {
		dob, err := parseDate(*in.DateOfBirth)
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = dob
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.BloodType != nil {
		p.BloodType = *in.BloodType
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = *in.EmergencyContact
	}
	if err := s.store.Patients().Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// -- Pharmacists --

func (s *DirectoryService) ListPharmacists(ctx context.Context, page store.Page) ([]models.Pharmacist, int, error) {
	return s.store.Pharmacists().List(ctx, page)
}

// MyPharmacistProfile returns the actor's pharmacist profile.
func (s *DirectoryService) MyPharmacistProfile(ctx context.Context, actor Actor) (*models.Pharmacist, error) {
	if !actor.Is(models.RolePharmacist) {
		return nil, forbidden("pharmacists only")
	}
	p, err := s.store.Pharmacists().GetByUserID(ctx, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, forbidden("no pharmacist profile for this account")
	}
	return p, err
}
