package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"
)

// ScheduleHandler handles doctor day-offs.
type ScheduleHandler struct {
	Schedule *services.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedule *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{Schedule: schedule}
}

// DayOffRequest declares a day-off. DoctorID is required for admins and ignored for
// doctors, who always declare their own.
type DayOffRequest struct {
	DoctorID  string    `json:"doctorId" binding:"omitempty,uuid"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	Reason    string    `json:"reason" binding:"max=255"`
}

// DeclareDayOff records a day-off and moves the appointments it overlaps to
// doctor_day_off, issuing each patient a compensation code.
func (h *ScheduleHandler) DeclareDayOff(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req DayOffRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	res, err := h.Schedule.DeclareDayOff(c.Request.Context(), actor, services.DayOffInput{
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Day-off declared successfully", res)
}

// GetDoctorDayOffs lists a doctor's day-offs that have not ended before ?from= (default
// now).
func (h *ScheduleHandler) GetDoctorDayOffs(c *gin.Context) {
	doctorID, ok := idParam(c, "id")
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	if from.IsZero() {
		from = time.Now()
	}
	items, err := h.Schedule.ListDayOffs(c.Request.Context(), doctorID, from)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Day-offs fetched successfully", items)
}

// DeleteDayOff withdraws a day-off. Appointments it already moved keep their status.
func (h *ScheduleHandler) DeleteDayOff(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Schedule.DeleteDayOff(c.Request.Context(), actor, id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Day-off deleted successfully", nil)
}
