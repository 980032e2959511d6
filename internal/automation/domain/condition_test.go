package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditions(t *testing.T) {
	conditions, err := ParseConditions([]byte(`[
		{"kind": "field_equals", "field": "status", "value": "dirty"},
		{"kind": "field_greater_than", "field": "amount", "value": 100}
	]`))
	require.NoError(t, err)
	assert.Len(t, conditions, 2)

	empty, err := ParseConditions(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	empty, err = ParseConditions([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseConditions([]byte(`[{"kind": "field_equals"}]`))
	assert.ErrorIs(t, err, ErrInvalidConditions)

	_, err = ParseConditions([]byte(`[{"kind": "field_greater_than", "field": "amount", "value": "not a number"}]`))
	assert.ErrorIs(t, err, ErrInvalidConditions)

	_, err = ParseConditions([]byte(`[{"kind": "and", "children": []}]`))
	assert.ErrorIs(t, err, ErrInvalidConditions)

	_, err = ParseConditions([]byte(`[{"kind": "regex_match", "field": "status", "value": ".*"}]`))
	assert.ErrorIs(t, err, ErrUnknownConditionKind)

	// Nested children are validated too.
	_, err = ParseConditions([]byte(`[{"kind": "or", "children": [{"kind": "bogus"}]}]`))
	assert.ErrorIs(t, err, ErrUnknownConditionKind)
}

func TestEvaluateConditions_Leaves(t *testing.T) {
	payload := map[string]any{
		"status": "dirty",
		"amount": 150.0,
		"number": "204",
		"notes":  "Guest Reported a Leak",
	}

	assert.True(t, Condition{Kind: CondFieldEquals, Field: "status", Value: "dirty"}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldEquals, Field: "status", Value: "clean"}.Evaluate(payload))
	assert.True(t, Condition{Kind: CondFieldNotEquals, Field: "status", Value: "clean"}.Evaluate(payload))

	assert.True(t, Condition{Kind: CondFieldGreaterThan, Field: "amount", Value: 100}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldGreaterThan, Field: "amount", Value: 150}.Evaluate(payload))
	assert.True(t, Condition{Kind: CondFieldLessThan, Field: "amount", Value: 200}.Evaluate(payload))

	// Contains is case-insensitive.
	assert.True(t, Condition{Kind: CondFieldContains, Field: "notes", Value: "leak"}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldContains, Field: "notes", Value: "flood"}.Evaluate(payload))

	// Numeric strings compare numerically against numbers.
	assert.True(t, Condition{Kind: CondFieldEquals, Field: "number", Value: 204}.Evaluate(payload))
	assert.True(t, Condition{Kind: CondFieldGreaterThan, Field: "number", Value: 200}.Evaluate(payload))
}

func TestEvaluateConditions_MissingFieldNeverMatches(t *testing.T) {
	payload := map[string]any{"status": "dirty"}

	assert.False(t, Condition{Kind: CondFieldEquals, Field: "absent", Value: "x"}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldNotEquals, Field: "absent", Value: "x"}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldGreaterThan, Field: "absent", Value: 1}.Evaluate(payload))
	assert.False(t, Condition{Kind: CondFieldContains, Field: "absent", Value: "x"}.Evaluate(payload))
}

func TestEvaluateConditions_Combinators(t *testing.T) {
	payload := map[string]any{"status": "dirty", "floor": "2"}

	and := Condition{Kind: CondAnd, Children: []Condition{
		{Kind: CondFieldEquals, Field: "status", Value: "dirty"},
		{Kind: CondFieldEquals, Field: "floor", Value: "2"},
	}}
	assert.True(t, and.Evaluate(payload))

	and.Children[1].Value = "3"
	assert.False(t, and.Evaluate(payload))

	or := Condition{Kind: CondOr, Children: []Condition{
		{Kind: CondFieldEquals, Field: "status", Value: "clean"},
		{Kind: CondFieldEquals, Field: "floor", Value: "2"},
	}}
	assert.True(t, or.Evaluate(payload))

	or.Children[1].Value = "3"
	assert.False(t, or.Evaluate(payload))

	// The root list is an implicit conjunction; the empty list matches.
	assert.True(t, EvaluateConditions(nil, payload))
	assert.False(t, EvaluateConditions([]Condition{
		{Kind: CondFieldEquals, Field: "status", Value: "dirty"},
		{Kind: CondFieldEquals, Field: "status", Value: "clean"},
	}, payload))
}

func TestParseActions(t *testing.T) {
	actions, err := ParseActions([]byte(`[
		{"kind": "create_task", "title": "Inspect room {{number}}", "task_type": "maintenance"},
		{"kind": "send_notification", "recipient": "ops@hotel.test", "subject": "hi"},
		{"kind": "call_webhook", "url": "https://hooks.test/x", "method": "POST"}
	]`))
	require.NoError(t, err)
	assert.Len(t, actions, 3)

	_, err = ParseActions(nil)
	assert.ErrorIs(t, err, ErrInvalidActions)

	_, err = ParseActions([]byte(`[]`))
	assert.ErrorIs(t, err, ErrInvalidActions)

	_, err = ParseActions([]byte(`[{"kind": "create_task"}]`))
	assert.ErrorIs(t, err, ErrInvalidActions)

	_, err = ParseActions([]byte(`[{"kind": "send_notification"}]`))
	assert.ErrorIs(t, err, ErrInvalidActions)

	_, err = ParseActions([]byte(`[{"kind": "call_webhook"}]`))
	assert.ErrorIs(t, err, ErrInvalidActions)

	_, err = ParseActions([]byte(`[{"kind": "launch_missiles"}]`))
	assert.ErrorIs(t, err, ErrUnknownActionKind)
}
