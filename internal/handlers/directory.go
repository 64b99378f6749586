package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// DirectoryHandler serves specializations, doctors and patient profiles.
type DirectoryHandler struct {
	Directory *services.DirectoryService
	Feedback  *services.FeedbackService
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(directory *services.DirectoryService, feedback *services.FeedbackService) *DirectoryHandler {
	return &DirectoryHandler{Directory: directory, Feedback: feedback}
}

// SpecializationRequest creates a specialization.
type SpecializationRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

func (h *DirectoryHandler) CreateSpecialization(c *gin.Context) {
	var req SpecializationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	sp, err := h.Directory.CreateSpecialization(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Specialization created successfully", sp)
}

func (h *DirectoryHandler) GetSpecializations(c *gin.Context) {
	items, err := h.Directory.ListSpecializations(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specializations fetched successfully", items)
}

// UpdateSpecializationRequest edits a specialization.
type UpdateSpecializationRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
}

func (h *DirectoryHandler) UpdateSpecialization(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateSpecializationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	sp, err := h.Directory.UpdateSpecialization(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialization updated successfully", sp)
}

func (h *DirectoryHandler) DeleteSpecialization(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Directory.DeleteSpecialization(c.Request.Context(), id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialization deleted successfully", nil)
}

// GetDoctors lists doctors, optionally filtered by ?specializationId=.
func (h *DirectoryHandler) GetDoctors(c *gin.Context) {
	page := utils.PageFromQuery(c)
	f := store.DoctorFilter{SpecializationID: c.Query("specializationId")}
	items, total, err := h.Directory.ListDoctors(c.Request.Context(), f, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Doctors fetched successfully", items, total, page)
}

func (h *DirectoryHandler) GetDoctorByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	d, err := h.Directory.GetDoctor(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", d)
}

// UpdateDoctorRequest edits a doctor profile.
type UpdateDoctorRequest struct {
	SpecializationID *string          `json:"specializationId" binding:"omitempty,uuid"`
	Bio              *string          `json:"bio"`
	ExperienceYears  *int             `json:"experienceYears" binding:"omitempty,min=0"`
	ConsultationFee  *decimal.Decimal `json:"consultationFee"`
}

// UpdateDoctor edits a doctor profile. Doctors may only edit their own.
func (h *DirectoryHandler) UpdateDoctor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	d, err := h.Directory.UpdateDoctor(c.Request.Context(), actor, id, services.DoctorUpdate{
		SpecializationID: req.SpecializationID,
		Bio:              req.Bio,
		ExperienceYears:  req.ExperienceYears,
		ConsultationFee:  req.ConsultationFee,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Doctor updated successfully", d)
}

// DoctorFeedback is a doctor's ratings with their summary.
type DoctorFeedback struct {
	Summary models.RatingSummary `json:"summary"`
	Items   []models.Feedback    `json:"items"`
}

// GetDoctorFeedback lists a doctor's ratings and their average.
func (h *DirectoryHandler) GetDoctorFeedback(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	items, summary, err := h.Feedback.ForDoctor(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Feedback fetched successfully", DoctorFeedback{Summary: summary, Items: items})
}

// GetPatients lists patient profiles (staff only).
func (h *DirectoryHandler) GetPatients(c *gin.Context) {
	page := utils.PageFromQuery(c)
	items, total, err := h.Directory.ListPatients(c.Request.Context(), page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Patients fetched successfully", items, total, page)
}

func (h *DirectoryHandler) GetPatientByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.Directory.GetPatient(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient fetched successfully", p)
}

func (h *DirectoryHandler) GetMyPatientProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p, err := h.Directory.MyPatientProfile(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient profile fetched successfully", p)
}

// UpdatePatientRequest edits the caller's patient profile. DateOfBirth is YYYY-MM-DD.
type UpdatePatientRequest struct {
	DateOfBirth      *string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
	Gender           *string `json:"gender" binding:"omitempty,max=20"`
	BloodType        *string `json:"bloodType" binding:"omitempty,max=5"`
	Address          *string `json:"address" binding:"omitempty,max=255"`
	EmergencyContact *string `json:"emergencyContact" binding:"omitempty,max=100"`
}

func (h *DirectoryHandler) UpdateMyPatientProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	p, err := h.Directory.UpdateMyPatientProfile(c.Request.Context(), actor, services.PatientUpdate{
		DateOfBirth:      req.DateOfBirth,
		Gender:           req.Gender,
		BloodType:        req.BloodType,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient profile updated successfully", p)
}
