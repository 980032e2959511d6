package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/events"
	obsmetrics "github.com/posadahq/posada/internal/observability/metrics"
	"github.com/posadahq/posada/internal/providers/email"
	"github.com/posadahq/posada/internal/providers/webhook"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EngineParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Bus     *events.Bus
	Tasks   taskdomain.Service
	Email   email.Sender
	Webhook webhook.Caller

	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Engine evaluates automation rules against lifecycle events. Rules run
// sequentially in descending priority; each rule is an isolated unit of
// work and leaves exactly one log entry per evaluation.
type Engine struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	tasks   taskdomain.Service
	email   email.Sender
	webhook webhook.Caller
	metrics *obsmetrics.Metrics

	rulerepo repository.Repository[automationdomain.AutomationRule]
	logrepo  repository.Repository[automationdomain.AutomationLog]
}

func NewEngine(p EngineParam) *Engine {
	e := &Engine{
		db:       p.DB,
		log:      p.Log.Named("automation.engine"),
		genID:    p.GenID,
		clock:    p.Clock,
		tasks:    p.Tasks,
		email:    p.Email,
		webhook:  p.Webhook,
		metrics:  p.Metrics,
		rulerepo: repository.ProvideStore[automationdomain.AutomationRule](p.DB),
		logrepo:  repository.ProvideStore[automationdomain.AutomationLog](p.DB),
	}
	p.Bus.Subscribe(e.OnEvent)
	return e
}

func (e *Engine) OnEvent(ctx context.Context, evt events.Event) {
	var rules []automationdomain.AutomationRule
	err := e.db.WithContext(ctx).
		Where("tenant_id = ? AND property_id = ? AND trigger = ? AND is_active = ?",
			evt.TenantID, evt.PropertyID, evt.Name, true).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	if err != nil {
		e.log.Error("loading automation rules failed",
			zap.String("event", evt.Name),
			zap.Error(err),
		)
		return
	}

	for _, rule := range rules {
		e.evaluate(ctx, rule, evt)
	}
}

// evaluate runs one rule against one event. Failures stay inside the rule:
// they are recorded on the log entry and the next rule still runs.
func (e *Engine) evaluate(ctx context.Context, rule automationdomain.AutomationRule, evt events.Event) {
	entry := automationdomain.AutomationLog{
		ID:         e.genID.Generate(),
		TenantID:   rule.TenantID,
		PropertyID: rule.PropertyID,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		EventName:  evt.Name,
		Success:    true,
		CreatedAt:  e.clock.Now(),
	}
	if raw, err := json.Marshal(evt.Payload); err == nil {
		entry.Payload = raw
	}

	conditions, err := automationdomain.ParseConditions(rule.Conditions)
	if err != nil {
		entry.Success = false
		entry.ErrorMessage = err.Error()
		e.writeLog(ctx, entry)
		return
	}

	entry.ConditionsMet = automationdomain.EvaluateConditions(conditions, evt.Payload)
	e.metrics.RecordAutomationRun(ctx, evt.Name, entry.ConditionsMet)
	if !entry.ConditionsMet {
		e.writeLog(ctx, entry)
		return
	}

	actions, err := automationdomain.ParseActions(rule.Actions)
	if err != nil {
		entry.Success = false
		entry.ErrorMessage = err.Error()
		e.writeLog(ctx, entry)
		return
	}

	for _, action := range actions {
		if err := e.execute(ctx, action, evt); err != nil {
			entry.Success = false
			if entry.ErrorMessage == "" {
				entry.ErrorMessage = err.Error()
			}
			e.log.Warn("automation action failed",
				zap.String("rule", rule.Name),
				zap.String("action", action.Kind),
				zap.Error(err),
			)
		}
	}
	e.writeLog(ctx, entry)
}

func (e *Engine) execute(ctx context.Context, action automationdomain.Action, evt events.Event) error {
	scoped := tenantctx.WithScope(ctx, tenantctx.Scope{
		TenantID:   evt.TenantID,
		PropertyID: evt.PropertyID,
		Actor:      "automation",
	})

	switch action.Kind {
	case automationdomain.ActionCreateTask:
		req := taskdomain.CreateTaskRequest{
			Type:        taskdomain.TaskType(action.TaskType),
			Title:       render(action.Title, evt.Payload),
			Description: render(action.Description, evt.Payload),
			Priority:    taskdomain.TaskPriority(action.Priority),
		}
		if id, ok := payloadID(evt.Payload, "room_id"); ok {
			req.RoomID = &id
		}
		if id, ok := payloadID(evt.Payload, "reservation_id"); ok {
			req.ReservationID = &id
		}
		_, err := e.tasks.Create(scoped, req)
		return err

	case automationdomain.ActionSendNotification:
		return e.email.Send(scoped, email.Message{
			To:      action.Recipient,
			Subject: render(action.Subject, evt.Payload),
			Body:    render(action.Message, evt.Payload),
		})

	case automationdomain.ActionCallWebhook:
		payload := map[string]any{
			"event":       evt.Name,
			"tenant_id":   evt.TenantID.String(),
			"property_id": evt.PropertyID.String(),
			"occurred_at": evt.OccurredAt,
			"payload":     evt.Payload,
		}
		return e.webhook.Call(scoped, action.Method, action.URL, payload)
	}
	return automationdomain.ErrUnknownActionKind
}

func (e *Engine) writeLog(ctx context.Context, entry automationdomain.AutomationLog) {
	if err := e.logrepo.Create(ctx, &entry); err != nil {
		e.log.Error("writing automation log failed",
			zap.String("rule", entry.RuleName),
			zap.Error(err),
		)
	}
}

// render substitutes {{field}} placeholders with payload values.
func render(template string, payload map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	out := template
	for key, value := range payload {
		out = strings.ReplaceAll(out, "{{"+key+"}}", stringifyPayload(value))
	}
	return out
}

func stringifyPayload(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(raw), `"`)
	}
}

func payloadID(payload map[string]any, key string) (snowflake.ID, bool) {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}
