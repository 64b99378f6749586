package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// UserHandler handles account administration and the pharmacist directory.
type UserHandler struct {
	Directory *services.DirectoryService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(directory *services.DirectoryService) *UserHandler {
	return &UserHandler{Directory: directory}
}

// CreateUserRequest is the admin form for any kind of account. Doctor and pharmacist
// fields only apply to those roles.
type CreateUserRequest struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	PhoneNumber string `json:"phoneNumber" binding:"omitempty,max=30"`
	Role        string `json:"role" binding:"required,oneof=admin doctor patient pharmacist"`

	SpecializationID *string         `json:"specializationId" binding:"omitempty,uuid"`
	Bio              string          `json:"bio"`
	ExperienceYears  int             `json:"experienceYears" binding:"min=0"`
	ConsultationFee  decimal.Decimal `json:"consultationFee"`
	LicenseNumber    string          `json:"licenseNumber" binding:"omitempty,max=50"`
}

// CreateUser handles creating a new user (admin only).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Directory.CreateUser(c.Request.Context(), services.CreateUserInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		PhoneNumber:      req.PhoneNumber,
		Role:             models.Role(req.Role),
		SpecializationID: req.SpecializationID,
		Bio:              req.Bio,
		ExperienceYears:  req.ExperienceYears,
		ConsultationFee:  req.ConsultationFee,
		LicenseNumber:    req.LicenseNumber,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "User created successfully", user.Sanitize())
}

func sanitizeUsers(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}

// GetUsers lists accounts, optionally filtered by ?role=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	page := utils.PageFromQuery(c)
	users, total, err := h.Directory.ListUsers(c.Request.Context(), models.Role(c.Query("role")), page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Users fetched successfully", sanitizeUsers(users), total, page)
}

// GetUserByID handles fetching a single user.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.Directory.GetUser(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUser handles updating an account's details (admin only).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, err := h.Directory.UpdateUser(c.Request.Context(), id, req.toUpdate())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting an account (admin only).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Directory.DeleteUser(c.Request.Context(), actor, id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User deleted successfully", nil)
}

// GetDoctorPatients lists the patients a doctor has appointments with. Doctors see their
// own; admins pass ?doctorId.
func (h *UserHandler) GetDoctorPatients(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	patients, err := h.Directory.ListDoctorPatients(c.Request.Context(), actor, c.Query("doctorId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// GetPharmacists lists pharmacists.
func (h *UserHandler) GetPharmacists(c *gin.Context) {
	page := utils.PageFromQuery(c)
	items, total, err := h.Directory.ListPharmacists(c.Request.Context(), page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Pharmacists fetched successfully", items, total, page)
}

// GetMyPharmacistProfile returns the caller's pharmacist profile.
func (h *UserHandler) GetMyPharmacistProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p, err := h.Directory.MyPharmacistProfile(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Pharmacist profile fetched successfully", p)
}
