package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// FeedbackHandler collects ratings of completed appointments.
type FeedbackHandler struct {
	Feedback *services.FeedbackService
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedback *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{Feedback: feedback}
}

// FeedbackRequest rates an appointment from 1 to 5.
type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"max=2000"`
}

// SubmitFeedback rates one of the caller's completed appointments.
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req FeedbackRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	f, err := h.Feedback.Submit(c.Request.Context(), actor, id, req.Rating, req.Comment)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Feedback submitted successfully", f)
}
