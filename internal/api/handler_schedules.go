package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/model"
	"lift-maintenance-backend/internal/sched"
	"lift-maintenance-backend/internal/store"
)

// ScheduleResponse is the wire shape of one schedule.
type ScheduleResponse struct {
	ID                  int64   `json:"id"`
	EquipmentID         int64   `json:"equipment_id"`
	EquipmentNumber     string  `json:"equipment_number"`
	ZoneID              int64   `json:"zone_id"`
	BaselinePlannedDate string  `json:"baseline_planned_date"`
	CurrentPlannedDate  *string `json:"current_planned_date"`
	DueDate             string  `json:"due_date"`
	LastSkippedDate     *string `json:"last_skipped_date,omitempty"`
	TimeSlot            string  `json:"time_slot"`
	Batch               string  `json:"batch"`
	Status              string  `json:"status"`
	IsLate              bool    `json:"is_late"`
	SkippedCount        int     `json:"skipped_count"`
	WorkOrderNumber     *string `json:"work_order_number,omitempty"`
	FixedEngineerID     *int64  `json:"fixed_engineer_id,omitempty"`
	RotatingEngineerID  *int64  `json:"rotating_engineer_id,omitempty"`
}

func toScheduleResponse(s *model.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		ID:                  s.ID,
		EquipmentID:         s.EquipmentID,
		EquipmentNumber:     s.Equipment.Number,
		ZoneID:              s.ZoneID,
		BaselinePlannedDate: string(s.BaselinePlannedDate),
		DueDate:             string(s.DueDate),
		TimeSlot:            string(s.TimeSlot),
		Batch:               string(s.Batch),
		Status:              string(s.Status),
		IsLate:              s.IsLate,
		SkippedCount:        s.SkippedCount,
		WorkOrderNumber:     s.WorkOrderNumber,
		FixedEngineerID:     s.FixedEngineerID,
		RotatingEngineerID:  s.RotatingEngineerID,
	}
	if s.CurrentPlannedDate != nil {
		d := string(*s.CurrentPlannedDate)
		resp.CurrentPlannedDate = &d
	}
	if s.LastSkippedDate != nil {
		d := string(*s.LastSkippedDate)
		resp.LastSkippedDate = &d
	}
	return resp
}

type createScheduleRequest struct {
	EquipmentID             int64   `json:"equipment_id" binding:"required"`
	PlannedDate             string  `json:"planned_date" binding:"required"`
	CurrentPlannedDate      *string `json:"current_planned_date"`
	Batch                   *string `json:"batch"`
	TimeSlot                string  `json:"time_slot"`
	WorkOrderNumber         *string `json:"work_order_number"`
	FixedEngineerID         *int64  `json:"fixed_engineer_id"`
	RotatingEngineerID      *int64  `json:"rotating_engineer_id"`
	AllowIneligibleLateSlot bool    `json:"allow_ineligible_late_slot"`
}

// PostSchedule handles POST /api/schedules.
func (h *Handler) PostSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	create := sched.CreateRequest{
		EquipmentID:             req.EquipmentID,
		R0:                      civdate.DateKey(req.PlannedDate),
		TimeSlot:                model.TimeSlot(req.TimeSlot),
		WorkOrderNumber:         req.WorkOrderNumber,
		FixedEngineerID:         req.FixedEngineerID,
		RotatingEngineerID:      req.RotatingEngineerID,
		AllowIneligibleLateSlot: req.AllowIneligibleLateSlot,
	}
	if req.CurrentPlannedDate != nil {
		d := civdate.DateKey(*req.CurrentPlannedDate)
		create.R1 = &d
	}
	if req.Batch != nil {
		b := model.Batch(*req.Batch)
		create.Batch = &b
	}

	schedule, err := h.engine.Create(c.Request.Context(), create)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toScheduleResponse(schedule))
}

type bulkCreateRequest struct {
	EquipmentIDs []int64 `json:"equipment_ids" binding:"required"`
	FromDate     string  `json:"from_date" binding:"required"`
	ToDate       string  `json:"to_date" binding:"required"`
	Batch        *string `json:"batch"`
	TimeSlot     *string `json:"time_slot"`
}

// PostBulkSchedules handles POST /api/schedules/bulk.
func (h *Handler) PostBulkSchedules(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bulk := sched.BulkCreateRequest{
		EquipmentIDs: req.EquipmentIDs,
		From:         civdate.DateKey(req.FromDate),
		To:           civdate.DateKey(req.ToDate),
	}
	if req.Batch != nil {
		b := model.Batch(*req.Batch)
		bulk.Batch = &b
	}
	if req.TimeSlot != nil {
		s := model.TimeSlot(*req.TimeSlot)
		bulk.TimeSlot = &s
	}

	created, err := h.engine.BulkCreate(c.Request.Context(), bulk)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]ScheduleResponse, len(created))
	for i := range created {
		responses[i] = toScheduleResponse(&created[i])
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(responses), "schedules": responses})
}

// GetSchedules handles GET /api/schedules with optional filters.
func (h *Handler) GetSchedules(c *gin.Context) {
	var filter store.ScheduleFilter

	if raw := c.Query("zone_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone_id"})
			return
		}
		filter.ZoneID = &id
	}
	if raw := c.Query("equipment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid equipment_id"})
			return
		}
		filter.EquipmentID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.ScheduleStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		d, err := civdate.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		filter.FromDate = &d
	}
	if raw := c.Query("to"); raw != "" {
		d, err := civdate.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		filter.ToDate = &d
	}

	schedules, err := h.store.ListSchedules(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}

	responses := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		responses[i] = toScheduleResponse(&schedules[i])
	}
	c.JSON(http.StatusOK, responses)
}

type moveScheduleRequest struct {
	TargetDate              string `json:"target_date" binding:"required"`
	TargetSlot              string `json:"target_slot" binding:"required"`
	SwapWithID              *int64 `json:"swap_with_id"`
	AllowIneligibleLateSlot bool   `json:"allow_ineligible_late_slot"`
}

// PostMoveSchedule handles POST /api/schedules/:id/move.
func (h *Handler) PostMoveSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	var req moveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.Move(c.Request.Context(), sched.MoveRequest{
		ScheduleID:              id,
		TargetDate:              civdate.DateKey(req.TargetDate),
		TargetSlot:              model.TimeSlot(req.TargetSlot),
		SwapWithID:              req.SwapWithID,
		AllowIneligibleLateSlot: req.AllowIneligibleLateSlot,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"schedule": toScheduleResponse(result.Moved)}
	if result.Swapped != nil {
		resp["swapped_with"] = toScheduleResponse(result.Swapped)
	}
	if result.Pushed != nil {
		resp["pushed"] = toScheduleResponse(result.Pushed)
		resp["pushed_to_date"] = string(result.PushedToDate)
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, resp)
}

type validateScheduleRequest struct {
	Action string `json:"action" binding:"required"`
}

// PostValidateSchedule handles POST /api/schedules/:id/validate.
func (h *Handler) PostValidateSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	var req validateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := h.engine.Validate(c.Request.Context(), id, sched.ValidateAction(req.Action))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

// DeleteSchedule handles DELETE /api/schedules/:id, cancelling the
// schedule rather than removing the row.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	schedule, err := h.engine.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

type assignEngineersRequest struct {
	FixedEngineerID    *int64 `json:"fixed_engineer_id"`
	RotatingEngineerID *int64 `json:"rotating_engineer_id"`
}

// PutScheduleEngineers handles PUT /api/schedules/:id/engineers.
func (h *Handler) PutScheduleEngineers(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}

	var req assignEngineersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := h.engine.AssignEngineers(c.Request.Context(), id, req.FixedEngineerID, req.RotatingEngineerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleResponse(schedule))
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
