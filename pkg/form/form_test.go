package form

import (
	"testing"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textStep() domain.Step {
	return domain.Step{ID: "ask", Order: 1, Message: domain.TextMessage{Text: "Pick one"}}
}

func TestForm_VisibilityFollowsTags(t *testing.T) {
	f := New(textStep())
	assert.Equal(t, []string{domain.FieldMessageText}, f.Visible())

	var seen [][]string
	f.OnVisibility(func(visible []string) { seen = append(seen, visible) })

	require.NoError(t, f.Set(FieldInputType, string(domain.InputSelect)))
	require.NoError(t, f.Set(FieldRetryOnInvalid, true))
	require.NoError(t, f.Set(FieldMessageType, string(domain.MessageTemplate)))

	require.Len(t, seen, 3)
	assert.Equal(t, []string{domain.FieldMessageText, domain.FieldOptions}, seen[0])
	assert.Equal(t, []string{domain.FieldMessageText, domain.FieldOptions, domain.FieldMaxRetries}, seen[1])
	assert.Equal(t, []string{domain.FieldTemplate, domain.FieldOptions, domain.FieldMaxRetries}, seen[2])

	assert.True(t, f.IsVisible(domain.FieldTemplate))
	assert.False(t, f.IsVisible(domain.FieldMessageText))
	assert.True(t, f.IsVisible("id"))
}

func TestForm_VisibilityNotFiredWithoutChange(t *testing.T) {
	f := New(textStep())
	calls := 0
	f.OnVisibility(func([]string) { calls++ })

	require.NoError(t, f.Set(FieldMessageType, string(domain.MessageText)))
	require.NoError(t, f.Set(domain.FieldMessageText, "Other text"))
	assert.Zero(t, calls)
}

func TestForm_OnChange(t *testing.T) {
	f := New(textStep())

	type change struct {
		field    string
		old, new any
	}
	var specific, all []change
	f.OnChange(domain.FieldMessageText, func(field string, old, new any) {
		specific = append(specific, change{field, old, new})
	})
	f.OnChange("*", func(field string, old, new any) {
		all = append(all, change{field, old, new})
	})

	require.NoError(t, f.Set(domain.FieldMessageText, "Hello"))
	require.NoError(t, f.Set(domain.FieldMessageText, "Hello"))
	require.NoError(t, f.Set("order", "4"))

	assert.Equal(t, []change{{domain.FieldMessageText, "Pick one", "Hello"}}, specific)
	require.Len(t, all, 2)
	assert.Equal(t, change{"order", 1, 4}, all[1])
}

func TestForm_SetErrors(t *testing.T) {
	f := New(textStep())

	err := f.Set("colour", "blue")
	assert.ErrorIs(t, err, ErrUnknownField)

	err = f.Set(domain.FieldMaxRetries, "many")
	assert.Error(t, err)
	assert.Equal(t, 0, f.Record().MaxRetries, "failed set must not change the record")
}

func TestForm_StepDropsHiddenFields(t *testing.T) {
	f := New(textStep())
	require.NoError(t, f.Set(FieldInputType, string(domain.InputSelect)))
	require.NoError(t, f.Set(domain.FieldOptions, []string{"Yes", "No"}))
	require.NoError(t, f.Set(domain.FieldTemplate, "leftover"))

	step, err := f.Step()
	require.NoError(t, err)
	assert.Equal(t, domain.TextMessage{Text: "Pick one"}, step.Message)
	assert.Equal(t, domain.OptionsInput{Options: []string{"Yes", "No"}}, step.Input)
	assert.Equal(t, "leftover", f.Record().Template, "hidden values stay in the record")
}

func TestForm_StepValidates(t *testing.T) {
	f := New(textStep())
	require.NoError(t, f.Set(FieldRetryOnInvalid, "true"))

	_, err := f.Step()
	require.ErrorIs(t, err, domain.ErrInvalidStep)
	assert.Contains(t, err.Error(), "max_retries")

	require.NoError(t, f.Set(domain.FieldMaxRetries, 2))
	step, err := f.Step()
	require.NoError(t, err)
	assert.Equal(t, &domain.RetryPolicy{MaxRetries: 2}, step.Retry)
}

func TestForm_ButtonsFromLooseValues(t *testing.T) {
	f := New(textStep())
	require.NoError(t, f.Set(FieldInputType, string(domain.InputButton)))
	require.NoError(t, f.Set(domain.FieldButtons, []map[string]any{
		{"id": "y", "title": "Yes"},
		{"id": "n", "title": "No"},
	}))
	require.NoError(t, f.Set(domain.FieldButtons, []map[string]any{
		{"id": "ok", "title": "OK"},
	}))

	step, err := f.Step()
	require.NoError(t, err)
	assert.Equal(t, domain.ButtonsInput{Buttons: []domain.Button{{ID: "ok", Title: "OK"}}}, step.Input)
}
