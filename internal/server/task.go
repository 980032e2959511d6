package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
)

type createTaskRequest struct {
	RoomID        *snowflake.ID `json:"room_id,string"`
	ReservationID *snowflake.ID `json:"reservation_id,string"`
	Type          string        `json:"type"`
	Title         string        `json:"title" binding:"required"`
	Description   string        `json:"description"`
	Priority      string        `json:"priority"`
	AssignedTo    string        `json:"assigned_to"`
	DueAt         *time.Time    `json:"due_at"`
}

func (s *Server) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taskSvc.Create(c.Request.Context(), taskdomain.CreateTaskRequest{
		RoomID:        req.RoomID,
		ReservationID: req.ReservationID,
		Type:          taskdomain.TaskType(strings.TrimSpace(req.Type)),
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Priority:      taskdomain.TaskPriority(strings.TrimSpace(req.Priority)),
		AssignedTo:    strings.TrimSpace(req.AssignedTo),
		DueAt:         req.DueAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTaskByID(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.taskSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTasks(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		RoomID string `form:"room_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := taskdomain.ListTasksRequest{}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := taskdomain.TaskStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(query.RoomID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("room_id", "invalid_room_id", "invalid room_id"))
			return
		}
		req.RoomID = &id
	}

	resp, err := s.taskSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ChangeTaskStatus(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taskSvc.ChangeStatus(c.Request.Context(), id, taskdomain.TaskStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
