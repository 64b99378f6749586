package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// PrescriptionHandler handles doctors' orders and pharmacy dispensing.
type PrescriptionHandler struct {
	Prescriptions *services.PrescriptionService
}

// NewPrescriptionHandler creates a new PrescriptionHandler.
func NewPrescriptionHandler(prescriptions *services.PrescriptionService) *PrescriptionHandler {
	return &PrescriptionHandler{Prescriptions: prescriptions}
}

// PrescriptionLineRequest is one ordered medicine.
type PrescriptionLineRequest struct {
	MedicineID string `json:"medicineId" binding:"required,uuid"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	Dosage     string `json:"dosage" binding:"max=255"`
	Note       string `json:"note"`
}

// CreatePrescriptionRequest is a doctor's order for one of their appointments.
type CreatePrescriptionRequest struct {
	AppointmentID string                    `json:"appointmentId" binding:"required,uuid"`
	Note          string                    `json:"note"`
	Medicines     []PrescriptionLineRequest `json:"medicines" binding:"required,min=1,dive"`
}

func (h *PrescriptionHandler) CreatePrescription(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	in := services.CreatePrescriptionInput{AppointmentID: req.AppointmentID, Note: req.Note}
	for _, l := range req.Medicines {
		in.Lines = append(in.Lines, services.PrescriptionLineInput{
			MedicineID: l.MedicineID,
			Quantity:   l.Quantity,
			Dosage:     l.Dosage,
			Note:       l.Note,
		})
	}
	rx, err := h.Prescriptions.Create(c.Request.Context(), actor, in)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Prescription created successfully", rx)
}

// GetPrescriptions lists prescriptions visible to the caller. ?status= accepts current
// and legacy status names.
func (h *PrescriptionHandler) GetPrescriptions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	f := store.PrescriptionFilter{PatientID: c.Query("patientId"), DoctorID: c.Query("doctorId")}
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParsePrescriptionStatus(raw)
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		f.Status = st
	}
	page := utils.PageFromQuery(c)
	items, total, err := h.Prescriptions.List(c.Request.Context(), actor, f, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Prescriptions fetched successfully", items, total, page)
}

func (h *PrescriptionHandler) GetPrescriptionByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	rx, err := h.Prescriptions.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prescription fetched successfully", rx)
}

// DispenseLineRequest overrides what is handed out for one line. A quantity different
// from the ordered one needs a note.
type DispenseLineRequest struct {
	LineID         string `json:"lineId" binding:"required,uuid"`
	ActualQuantity *int   `json:"actualQuantity"`
	Note           string `json:"note"`
}

// DispenseRequest lists line overrides. Lines not mentioned are filled in full.
type DispenseRequest struct {
	Lines []DispenseLineRequest `json:"lines" binding:"dive"`
}

// DispensePrescription prepares a prescription and raises its payment.
func (h *PrescriptionHandler) DispensePrescription(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req DispenseRequest
	if c.Request.ContentLength != 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	lines := make([]models.DispenseLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, models.DispenseLine{LineID: l.LineID, ActualQuantity: l.ActualQuantity, Note: l.Note})
	}
	res, err := h.Prescriptions.Dispense(c.Request.Context(), actor, id, lines)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prescription dispensed successfully", res)
}

// CancelPrescriptionRequest carries the mandatory cancellation reason.
type CancelPrescriptionRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

func (h *PrescriptionHandler) CancelPrescription(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelPrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	rx, err := h.Prescriptions.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prescription cancelled successfully", rx)
}
