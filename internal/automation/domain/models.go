package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AutomationRule binds a lifecycle event to a list of actions, guarded by
// a condition tree. Conditions and Actions are stored as JSON but parsed
// and validated at save time, so a stored rule always evaluates cleanly.
type AutomationRule struct {
	ID         snowflake.ID   `json:"id,string" gorm:"primaryKey"`
	TenantID   snowflake.ID   `json:"tenant_id,string" gorm:"index:idx_automation_rules_tenant"`
	PropertyID snowflake.ID   `json:"property_id,string" gorm:"index:idx_automation_rules_tenant"`
	Name       string         `json:"name" gorm:"size:255"`
	Trigger    string         `json:"trigger" gorm:"size:64;index"`
	Conditions datatypes.JSON `json:"conditions"`
	Actions    datatypes.JSON `json:"actions"`
	Priority   int            `json:"priority" gorm:"default:0"`
	IsActive   bool           `json:"is_active" gorm:"default:true"`
	IsSystem   bool           `json:"is_system" gorm:"default:false"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (AutomationRule) TableName() string { return "automation_rules" }

// AutomationLog records one rule evaluation against one event, including
// evaluations whose conditions did not match.
type AutomationLog struct {
	ID            snowflake.ID   `json:"id,string" gorm:"primaryKey"`
	TenantID      snowflake.ID   `json:"tenant_id,string" gorm:"index:idx_automation_logs_tenant"`
	PropertyID    snowflake.ID   `json:"property_id,string" gorm:"index:idx_automation_logs_tenant"`
	RuleID        snowflake.ID   `json:"rule_id,string" gorm:"index"`
	RuleName      string         `json:"rule_name" gorm:"size:255"`
	EventName     string         `json:"event_name" gorm:"size:64;index"`
	ConditionsMet bool           `json:"conditions_met"`
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Payload       datatypes.JSON `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (AutomationLog) TableName() string { return "automation_logs" }
