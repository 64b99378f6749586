package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"clinic-app-server/internal/models"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/store"
	"clinic-app-server/internal/utils"
)

// PaymentHandler handles payments and compensation codes.
type PaymentHandler struct {
	Payments     *services.PaymentService
	Compensation *services.CompensationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService, compensation *services.CompensationService) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Compensation: compensation}
}

// CreatePaymentRequest raises a payment for exactly one billable item.
type CreatePaymentRequest struct {
	AppointmentID  string `json:"appointmentId" binding:"omitempty,uuid"`
	PrescriptionID string `json:"prescriptionId" binding:"omitempty,uuid"`
}

// CreatePayment raises a consultation payment, or a fresh payment for a prepared
// prescription whose earlier payment was cancelled.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if (req.AppointmentID == "") == (req.PrescriptionID == "") {
		utils.BadRequest(c, "Exactly one of appointmentId and prescriptionId is required")
		return
	}
	var (
		pay *models.Payment
		err error
	)
	if req.AppointmentID != "" {
		pay, err = h.Payments.CreateForAppointment(c.Request.Context(), actor, req.AppointmentID)
	} else {
		pay, err = h.Payments.CreateForPrescription(c.Request.Context(), actor, req.PrescriptionID)
	}
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Payment created successfully", pay)
}

// GetPayments lists payments visible to the caller, filtered by ?status=.
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	f := store.PaymentFilter{
		PatientID:      c.Query("patientId"),
		PrescriptionID: c.Query("prescriptionId"),
		Status:         models.PaymentStatus(c.Query("status")),
	}
	page := utils.PageFromQuery(c)
	items, total, err := h.Payments.List(c.Request.Context(), actor, f, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Paginated(c, "Payments fetched successfully", items, total, page)
}

func (h *PaymentHandler) GetPaymentByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pay, err := h.Payments.Get(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Payment fetched successfully", pay)
}

// PayRequest settles a payment, optionally redeeming a compensation code.
type PayRequest struct {
	Method string `json:"method" binding:"omitempty,max=30"`
	Code   string `json:"code" binding:"omitempty,max=32"`
}

func (h *PaymentHandler) PayPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PayRequest
	if c.Request.ContentLength != 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	pay, err := h.Payments.Pay(c.Request.Context(), actor, id, services.PayInput{Method: req.Method, Code: req.Code})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Payment settled successfully", pay)
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pay, err := h.Payments.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Payment cancelled successfully", pay)
}

// -- Compensation codes --

// IssueCodeRequest is an admin-issued compensation code. Without a patient the code is
// usable by anyone.
type IssueCodeRequest struct {
	PatientID          *string         `json:"patientId" binding:"omitempty,uuid"`
	Amount             decimal.Decimal `json:"amount"`
	DiscountPercentage int             `json:"discountPercentage" binding:"min=0,max=100"`
	Reason             string          `json:"reason" binding:"max=255"`
	ExpiresAt          *time.Time      `json:"expiresAt"`
}

func (h *PaymentHandler) IssueCode(c *gin.Context) {
	var req IssueCodeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	code, err := h.Compensation.Issue(c.Request.Context(), services.IssueInput{
		PatientID:          req.PatientID,
		Amount:             req.Amount,
		DiscountPercentage: req.DiscountPercentage,
		Reason:             req.Reason,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Compensation code issued successfully", code)
}

// GetMyCodes lists the caller's compensation codes.
func (h *PaymentHandler) GetMyCodes(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.Compensation.ListMine(c.Request.Context(), actor)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Compensation codes fetched successfully", items)
}

// GetPatientCodes lets staff list a patient's codes.
func (h *PaymentHandler) GetPatientCodes(c *gin.Context) {
	patientID, ok := idParam(c, "patientId")
	if !ok {
		return
	}
	items, err := h.Compensation.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Compensation codes fetched successfully", items)
}

// PreviewCode shows what ?amount= becomes after the code, without redeeming it.
func (h *PaymentHandler) PreviewCode(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	base, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		utils.BadRequest(c, "Invalid amount")
		return
	}
	preview, err := h.Compensation.Preview(c.Request.Context(), actor, c.Param("code"), base)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Compensation code is valid", preview)
}
