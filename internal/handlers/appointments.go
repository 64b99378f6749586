package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments *services.AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// PatientID is only read when an admin books on behalf of a patient. Any status sent by
// the client is ignored: new appointments wait for the doctor's confirmation.
type CreateAppointmentRequest struct {
	DoctorID  string     `json:"doctorId" binding:"required,uuid"`
	PatientID string     `json:"patientId" binding:"omitempty,uuid"`
	StartTime time.Time  `json:"startTime" binding:"required"`
	EndTime   *time.Time `json:"endTime"`
	Reason    string     `json:"reason" binding:"required,max=255"`
	Notes     string     `json:"notes"`
}

// CreateAppointment handles booking a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Appointments.Book(c.Request.Context(), actor, services.BookInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appt)
}

// GetAppointments lists the caller's appointments. Filters: status, from, to, and for
// admins doctorId and patientId.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	f := store.AppointmentFilter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
		Status:    models.AppointmentStatus(c.Query("status")),
		From:      from,
		To:        to,
	}
	page := utils.PageFromQuery(c)

	items, total, err := h.Appointments.List(c.Request.Context(), actor, f, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Appointments fetched successfully", items, total, page)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by the involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	appt, err := h.Appointments.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt)
}

// UpdateAppointmentStatusRequest represents the request body for moving an appointment
// along its lifecycle. Reason is required when cancelling.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted completed patient_not_coming cancelled"`
	Reason string `json:"reason" binding:"max=255"`
}

// UpdateAppointmentStatus handles status changes. Only the doctor (or an admin) accepts,
// completes or marks a no-show; either party may cancel.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		appt *models.Appointment
		err  error
	)
	switch models.AppointmentStatus(req.Status) {
	case models.StatusAccepted:
		appt, err = h.Appointments.Accept(ctx, actor, id)
	case models.StatusCompleted:
		appt, err = h.Appointments.Complete(ctx, actor, id)
	case models.StatusPatientNotComing:
		appt, err = h.Appointments.MarkNoShow(ctx, actor, id)
	case models.StatusCancelled:
		appt, err = h.Appointments.Cancel(ctx, actor, id, req.Reason)
	}
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt)
}

// CancelAppointmentRequest carries the mandatory cancellation reason.
type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// CancelAppointment cancels an appointment. A missing or blank reason is rejected.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.Appointments.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled successfully", appt)
}

// RescheduleAppointmentRequest represents the request body for rescheduling an appointment.
// Without an end time the appointment keeps its length.
type RescheduleAppointmentRequest struct {
	StartTime time.Time  `json:"startTime" binding:"required"`
	EndTime   *time.Time `json:"endTime"`
}

// RescheduleAppointment moves an active appointment and sends it back for confirmation.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.Appointments.Reschedule(c.Request.Context(), actor, id, req.StartTime, req.EndTime)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}
