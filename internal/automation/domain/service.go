package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/posadahq/posada/pkg/db/pagination"
)

var (
	ErrNotFound             = errors.New("rule_not_found")
	ErrSystemRule           = errors.New("system_rule_protected")
	ErrInvalidTrigger       = errors.New("invalid_trigger")
	ErrInvalidConditions    = errors.New("invalid_conditions")
	ErrInvalidActions       = errors.New("invalid_actions")
	ErrUnknownConditionKind = errors.New("unknown_condition_kind")
	ErrUnknownActionKind    = errors.New("unknown_action_kind")
)

type SaveRuleRequest struct {
	Name       string
	Trigger    string
	Conditions datatypes.JSON
	Actions    datatypes.JSON
	Priority   int
	IsActive   bool
}

type ListLogsRequest struct {
	RuleID     *snowflake.ID
	EventName  string
	Pagination pagination.Pagination
}

type Service interface {
	Create(ctx context.Context, req SaveRuleRequest) (AutomationRule, error)
	Update(ctx context.Context, id snowflake.ID, req SaveRuleRequest) (AutomationRule, error)
	Delete(ctx context.Context, id snowflake.ID) error
	GetByID(ctx context.Context, id snowflake.ID) (AutomationRule, error)
	List(ctx context.Context) ([]AutomationRule, error)
	ListLogs(ctx context.Context, req ListLogsRequest) ([]AutomationLog, *pagination.PageInfo, error)
}
