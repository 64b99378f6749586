package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// MedicalRecordHandler handles medical record related requests.
type MedicalRecordHandler struct {
	Records *services.MedicalRecordService
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(records *services.MedicalRecordService) *MedicalRecordHandler {
	return &MedicalRecordHandler{Records: records}
}

// CreateMedicalRecordRequest represents the request body for creating a medical record.
type CreateMedicalRecordRequest struct {
	PatientID     string     `json:"patientId" binding:"required,uuid"`
	AppointmentID *string    `json:"appointmentId" binding:"omitempty,uuid"`
	RecordType    string     `json:"recordType" binding:"omitempty,oneof=ConsultationNote LabResult ImagingReport VaccinationRecord AllergyRecord DischargeSummary"`
	RecordDate    *time.Time `json:"date"`
	Title         string     `json:"title" binding:"required,max=255"`
	Symptoms      string     `json:"symptoms"`
	Diagnosis     string     `json:"diagnosis"`
	Treatment     string     `json:"treatment"`
	Notes         string     `json:"notes"`
}

// CreateMedicalRecord handles creating a new medical record.
// Only accessible by doctors.
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	rec, err := h.Records.Create(c.Request.Context(), actor, services.RecordInput{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		RecordType:    models.MedicalRecordType(req.RecordType),
		RecordDate:    req.RecordDate,
		Title:         req.Title,
		Symptoms:      req.Symptoms,
		Diagnosis:     req.Diagnosis,
		Treatment:     req.Treatment,
		Notes:         req.Notes,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Medical record created successfully", rec)
}

// GetMedicalRecordsForPatient lists a patient's records, newest first.
func (h *MedicalRecordHandler) GetMedicalRecordsForPatient(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	patientID, ok := idParam(c, "patientId")
	if !ok {
		return
	}
	page := utils.PageFromQuery(c)
	items, total, err := h.Records.ListForPatient(c.Request.Context(), actor, patientID, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Medical records fetched successfully", items, total, page)
}

// GetMedicalRecordByID handles fetching a single medical record.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record fetched successfully", rec)
}

// UpdateMedicalRecordRequest represents the request body for editing a medical record.
type UpdateMedicalRecordRequest struct {
	RecordType *string `json:"recordType" binding:"omitempty,oneof=ConsultationNote LabResult ImagingReport VaccinationRecord AllergyRecord DischargeSummary"`
	Title      *string `json:"title" binding:"omitempty,min=1,max=255"`
	Symptoms   *string `json:"symptoms"`
	Diagnosis  *string `json:"diagnosis"`
	Treatment  *string `json:"treatment"`
	Notes      *string `json:"notes"`
}

// UpdateMedicalRecord edits a record. Only its author or an admin may.
func (h *MedicalRecordHandler) UpdateMedicalRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	in := services.RecordUpdate{
		Title:     req.Title,
		Symptoms:  req.Symptoms,
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
	}
	if req.RecordType != nil {
		t := models.MedicalRecordType(*req.RecordType)
		in.RecordType = &t
	}
	rec, err := h.Records.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record updated successfully", rec)
}

// DeleteMedicalRecord removes a record. Only its author or an admin may.
func (h *MedicalRecordHandler) DeleteMedicalRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Records.Delete(c.Request.Context(), actor, id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record deleted successfully", nil)
}
