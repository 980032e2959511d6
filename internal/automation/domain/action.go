package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ActionCreateTask       = "create_task"
	ActionSendNotification = "send_notification"
	ActionCallWebhook      = "call_webhook"
)

// Action is one tagged side effect of a rule. The fields used depend on
// Kind; validation at save time enforces the ones each kind needs.
type Action struct {
	Kind string `json:"kind"`

	// create_task
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	TaskType    string `json:"task_type,omitempty"`
	Priority    string `json:"priority,omitempty"`

	// send_notification
	Recipient string `json:"recipient,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`

	// call_webhook
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`
}

// ParseActions decodes and validates a rule's ordered action list.
func ParseActions(raw []byte) ([]Action, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: at least one action required", ErrInvalidActions)
	}
	var actions []Action
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActions, err)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: at least one action required", ErrInvalidActions)
	}
	for _, a := range actions {
		if err := a.validate(); err != nil {
			return nil, err
		}
	}
	return actions, nil
}

func (a Action) validate() error {
	switch a.Kind {
	case ActionCreateTask:
		if strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("%w: create_task requires a title", ErrInvalidActions)
		}
	case ActionSendNotification:
		if strings.TrimSpace(a.Recipient) == "" {
			return fmt.Errorf("%w: send_notification requires a recipient", ErrInvalidActions)
		}
	case ActionCallWebhook:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: call_webhook requires a url", ErrInvalidActions)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownActionKind, a.Kind)
	}
	return nil
}
