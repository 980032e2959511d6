package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	"github.com/posadahq/posada/pkg/db/option"
	"github.com/posadahq/posada/pkg/db/pagination"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validTriggers is the closed set of event names a rule may bind to.
var validTriggers = map[string]bool{
	events.ReservationPending:         true,
	events.ReservationConfirmed:       true,
	events.ReservationCheckIn:         true,
	events.ReservationCheckOut:        true,
	events.ReservationCancelled:       true,
	events.ReservationNoShow:          true,
	events.ReservationPaymentAdded:    true,
	events.ReservationPaymentRefunded: true,
	events.InvoiceAccepted:            true,
	events.InvoiceRejected:            true,
	events.RoomStatusChanged:          true,
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	rulerepo repository.Repository[automationdomain.AutomationRule]
	logrepo  repository.Repository[automationdomain.AutomationLog]
}

func NewService(p ServiceParam) automationdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("automation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		rulerepo: repository.ProvideStore[automationdomain.AutomationRule](p.DB),
		logrepo:  repository.ProvideStore[automationdomain.AutomationLog](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req automationdomain.SaveRuleRequest) (automationdomain.AutomationRule, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return automationdomain.AutomationRule{}, automationdomain.ErrNotFound
	}

	if err := validateRule(req); err != nil {
		return automationdomain.AutomationRule{}, err
	}

	now := s.clock.Now()
	rule := automationdomain.AutomationRule{
		ID:         s.genID.Generate(),
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
		Name:       strings.TrimSpace(req.Name),
		Trigger:    strings.TrimSpace(req.Trigger),
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Priority:   req.Priority,
		IsActive:   req.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.rulerepo.Create(ctx, &rule); err != nil {
		return automationdomain.AutomationRule{}, err
	}
	return rule, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req automationdomain.SaveRuleRequest) (automationdomain.AutomationRule, error) {
	rule, err := s.GetByID(ctx, id)
	if err != nil {
		return automationdomain.AutomationRule{}, err
	}
	if err := validateRule(req); err != nil {
		return automationdomain.AutomationRule{}, err
	}
	// system rules stay active and keep their flag
	if rule.IsSystem && !req.IsActive {
		return automationdomain.AutomationRule{}, automationdomain.ErrSystemRule
	}

	rule.Name = strings.TrimSpace(req.Name)
	rule.Trigger = strings.TrimSpace(req.Trigger)
	rule.Conditions = req.Conditions
	rule.Actions = req.Actions
	rule.Priority = req.Priority
	rule.IsActive = req.IsActive
	rule.UpdatedAt = s.clock.Now()

	// map form so false/zero values still persist
	updates := map[string]any{
		"name":       rule.Name,
		"trigger":    rule.Trigger,
		"conditions": rule.Conditions,
		"actions":    rule.Actions,
		"priority":   rule.Priority,
		"is_active":  rule.IsActive,
		"updated_at": rule.UpdatedAt,
	}
	if err := s.rulerepo.Update(ctx, rule.ID.String(), updates); err != nil {
		return automationdomain.AutomationRule{}, err
	}
	return rule, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	rule, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rule.IsSystem {
		return automationdomain.ErrSystemRule
	}
	return s.rulerepo.Delete(ctx, rule.ID.String())
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (automationdomain.AutomationRule, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return automationdomain.AutomationRule{}, automationdomain.ErrNotFound
	}
	rule, err := s.rulerepo.FindOne(ctx, &automationdomain.AutomationRule{ID: id, TenantID: scope.TenantID})
	if err != nil {
		return automationdomain.AutomationRule{}, err
	}
	if rule == nil {
		return automationdomain.AutomationRule{}, automationdomain.ErrNotFound
	}
	return *rule, nil
}

func (s *Service) List(ctx context.Context) ([]automationdomain.AutomationRule, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, automationdomain.ErrNotFound
	}

	items, err := s.rulerepo.Find(ctx, &automationdomain.AutomationRule{
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
	}, option.WithSortBy(option.QuerySortBy{
		Allow: map[string]bool{"priority": true},
		Field: "priority",
		Desc:  true,
	}))
	if err != nil {
		return nil, err
	}
	rules := make([]automationdomain.AutomationRule, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		rules = append(rules, *item)
	}
	return rules, nil
}

func (s *Service) ListLogs(ctx context.Context, req automationdomain.ListLogsRequest) ([]automationdomain.AutomationLog, *pagination.PageInfo, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, nil, automationdomain.ErrNotFound
	}

	filter := &automationdomain.AutomationLog{TenantID: scope.TenantID, PropertyID: scope.PropertyID}
	if req.RuleID != nil {
		filter.RuleID = *req.RuleID
	}
	if name := strings.TrimSpace(req.EventName); name != "" {
		filter.EventName = name
	}

	limit := req.Pagination.Limit()
	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"id": true}, Field: "id", Desc: true}),
		option.WithLimit(limit + 1),
	}
	if token := strings.TrimSpace(req.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, pagination.ErrInvalidPageToken
		}
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.LT,
			Value:    cursorID,
		}))
	}

	items, err := s.logrepo.Find(ctx, filter, options...)
	if err != nil {
		return nil, nil, err
	}
	pageInfo, items := pagination.BuildCursorPageInfo(items, limit, func(l *automationdomain.AutomationLog) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: l.ID.String()})
		return token
	})
	logs := make([]automationdomain.AutomationLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return logs, pageInfo, nil
}

func validateRule(req automationdomain.SaveRuleRequest) error {
	if !validTriggers[strings.TrimSpace(req.Trigger)] {
		return automationdomain.ErrInvalidTrigger
	}
	if _, err := automationdomain.ParseConditions(req.Conditions); err != nil {
		return err
	}
	if _, err := automationdomain.ParseActions(req.Actions); err != nil {
		return err
	}
	return nil
}
