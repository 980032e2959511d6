package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Condition kinds form a closed set. Anything else is rejected at
// rule-save time, never at evaluation time.
const (
	CondFieldEquals      = "field_equals"
	CondFieldNotEquals   = "field_not_equals"
	CondFieldGreaterThan = "field_greater_than"
	CondFieldLessThan    = "field_less_than"
	CondFieldContains    = "field_contains"
	CondAnd              = "and"
	CondOr               = "or"
)

// Condition is one node of a rule's predicate tree. Leaf kinds compare a
// payload field against Value; and/or combine Children.
type Condition struct {
	Kind     string      `json:"kind"`
	Field    string      `json:"field,omitempty"`
	Value    any         `json:"value,omitempty"`
	Children []Condition `json:"children,omitempty"`
}

// ParseConditions decodes and validates a rule's condition tree. The root
// is a list evaluated as an implicit conjunction; an empty or null list
// always matches.
func ParseConditions(raw []byte) ([]Condition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var conditions []Condition
	if err := json.Unmarshal(raw, &conditions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConditions, err)
	}
	for i := range conditions {
		if err := conditions[i].validate(); err != nil {
			return nil, err
		}
	}
	return conditions, nil
}

func (c Condition) validate() error {
	switch c.Kind {
	case CondFieldEquals, CondFieldNotEquals, CondFieldContains:
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%w: %s requires a field", ErrInvalidConditions, c.Kind)
		}
	case CondFieldGreaterThan, CondFieldLessThan:
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%w: %s requires a field", ErrInvalidConditions, c.Kind)
		}
		if _, ok := toNumber(c.Value); !ok {
			return fmt.Errorf("%w: %s requires a numeric value", ErrInvalidConditions, c.Kind)
		}
	case CondAnd, CondOr:
		if len(c.Children) == 0 {
			return fmt.Errorf("%w: %s requires children", ErrInvalidConditions, c.Kind)
		}
		for _, child := range c.Children {
			if err := child.validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConditionKind, c.Kind)
	}
	return nil
}

// EvaluateConditions evaluates the root conjunction against an event
// payload. Missing fields never match a leaf comparison.
func EvaluateConditions(conditions []Condition, payload map[string]any) bool {
	for _, c := range conditions {
		if !c.Evaluate(payload) {
			return false
		}
	}
	return true
}

func (c Condition) Evaluate(payload map[string]any) bool {
	switch c.Kind {
	case CondAnd:
		for _, child := range c.Children {
			if !child.Evaluate(payload) {
				return false
			}
		}
		return true
	case CondOr:
		for _, child := range c.Children {
			if child.Evaluate(payload) {
				return true
			}
		}
		return false
	}

	actual, ok := payload[c.Field]
	if !ok {
		return false
	}

	switch c.Kind {
	case CondFieldEquals:
		return valuesEqual(actual, c.Value)
	case CondFieldNotEquals:
		return !valuesEqual(actual, c.Value)
	case CondFieldGreaterThan:
		left, lok := toNumber(actual)
		right, rok := toNumber(c.Value)
		return lok && rok && left > right
	case CondFieldLessThan:
		left, lok := toNumber(actual)
		right, rok := toNumber(c.Value)
		return lok && rok && left < right
	case CondFieldContains:
		return strings.Contains(
			strings.ToLower(stringify(actual)),
			strings.ToLower(stringify(c.Value)),
		)
	}
	return false
}

// valuesEqual compares numerically when both sides are numbers and as
// strings otherwise, so "2" and 2.0 compare equal.
func valuesEqual(a, b any) bool {
	if left, lok := toNumber(a); lok {
		if right, rok := toNumber(b); rok {
			return left == right
		}
	}
	return stringify(a) == stringify(b)
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		parsed, err := n.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
