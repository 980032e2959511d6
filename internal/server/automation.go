package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/pkg/db/pagination"
	"gorm.io/datatypes"
)

type saveRuleRequest struct {
	Name       string          `json:"name" binding:"required"`
	Trigger    string          `json:"trigger" binding:"required"`
	Conditions json.RawMessage `json:"conditions"`
	Actions    json.RawMessage `json:"actions" binding:"required"`
	Priority   int             `json:"priority"`
	IsActive   *bool           `json:"is_active"`
}

func (r saveRuleRequest) toDomain() automationdomain.SaveRuleRequest {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return automationdomain.SaveRuleRequest{
		Name:       strings.TrimSpace(r.Name),
		Trigger:    strings.TrimSpace(r.Trigger),
		Conditions: datatypes.JSON(r.Conditions),
		Actions:    datatypes.JSON(r.Actions),
		Priority:   r.Priority,
		IsActive:   active,
	}
}

func (s *Server) CreateAutomationRule(c *gin.Context) {
	var req saveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.automationSvc.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAutomationRule(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req saveRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.automationSvc.Update(c.Request.Context(), id, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteAutomationRule(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	if err := s.automationSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) GetAutomationRuleByID(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.automationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAutomationRules(c *gin.Context) {
	resp, err := s.automationSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAutomationLogs(c *gin.Context) {
	var query struct {
		RuleID    string `form:"rule_id"`
		EventName string `form:"event_name"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := automationdomain.ListLogsRequest{
		EventName:  strings.TrimSpace(query.EventName),
		Pagination: query.Pagination,
	}
	if raw := strings.TrimSpace(query.RuleID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("rule_id", "invalid_rule_id", "invalid rule_id"))
			return
		}
		req.RuleID = &id
	}

	resp, pageInfo, err := s.automationSvc.ListLogs(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "page_info": pageInfo})
}
