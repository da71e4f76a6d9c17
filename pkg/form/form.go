// Package form edits a single step record and notifies observers.
//
// It replaces per-field UI event handlers: callers register OnChange and
// OnVisibility callbacks and push values with Set. Which fields are visible is
// derived from the message type, the input type and the retry flag through
// domain.VisibleFields.
package form

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Tag fields. Changing one of them may change the visible set.
const (
	FieldMessageType    = "message_type"
	FieldInputType      = "input_type"
	FieldRetryOnInvalid = "retry_on_invalid"
)

// ErrUnknownField is returned by Set for names that are not record fields.
var ErrUnknownField = errors.New("unknown field")

// ChangeFunc observes a field value change.
type ChangeFunc func(field string, old, new any)

// VisibilityFunc observes the visible field set after it changes.
type VisibilityFunc func(visible []string)

// Form holds the record being edited and its observers.
// Form is not safe for concurrent use.
type Form struct {
	rec       domain.StepRecord
	visible   []string
	onChange  map[string][]ChangeFunc
	onVisible []VisibilityFunc
}

// New starts a form from an existing step.
func New(step domain.Step) *Form {
	f := &Form{
		rec:      step.Record(),
		onChange: make(map[string][]ChangeFunc),
	}
	f.visible = f.computeVisible()
	return f
}

// OnChange registers fn for changes of field. Use "*" to observe every field.
func (f *Form) OnChange(field string, fn ChangeFunc) {
	f.onChange[field] = append(f.onChange[field], fn)
}

// OnVisibility registers fn for changes of the visible field set.
func (f *Form) OnVisibility(fn VisibilityFunc) {
	f.onVisible = append(f.onVisible, fn)
}

// Visible returns the tag-dependent fields currently relevant.
func (f *Form) Visible() []string {
	return slices.Clone(f.visible)
}

// IsVisible reports whether field is currently relevant. Fields that do not
// depend on the tags are always visible.
func (f *Form) IsVisible(field string) bool {
	if !dependent(field) {
		return true
	}
	return slices.Contains(f.visible, field)
}

// Record returns the raw record, hidden fields included.
func (f *Form) Record() domain.StepRecord {
	return f.rec
}

// Set assigns a record field by its wire name. Values are decoded leniently,
// so "3" sets max_retries to 3.
func (f *Form) Set(field string, value any) error {
	current, err := toMap(f.rec)
	if err != nil {
		return err
	}
	old, ok := current[field]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}

	current[field] = value
	var next domain.StepRecord
	cfg := &mapstructure.DecoderConfig{
		Result:           &next,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	if err := dec.Decode(current); err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}

	updated, err := toMap(next)
	if err != nil {
		return err
	}
	f.rec = next
	if reflect.DeepEqual(old, updated[field]) {
		return nil
	}

	f.notifyChange(field, old, updated[field])
	if field == FieldMessageType || field == FieldInputType || field == FieldRetryOnInvalid {
		f.refreshVisibility()
	}
	return nil
}

// Step converts the record to a typed step, dropping hidden fields, and validates it.
func (f *Form) Step() (domain.Step, error) {
	step, err := f.rec.Step()
	if err != nil {
		return domain.Step{}, err
	}
	if err := validator.ValidateStep(step); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

func (f *Form) computeVisible() []string {
	return domain.VisibleFields(
		domain.MessageType(f.rec.MessageType),
		domain.InputType(f.rec.InputType),
		f.rec.RetryOnInvalid,
	)
}

func (f *Form) refreshVisibility() {
	visible := f.computeVisible()
	if slices.Equal(visible, f.visible) {
		return
	}
	f.visible = visible
	for _, fn := range f.onVisible {
		fn(slices.Clone(visible))
	}
}

func (f *Form) notifyChange(field string, old, new any) {
	for _, fn := range f.onChange[field] {
		fn(field, old, new)
	}
	for _, fn := range f.onChange["*"] {
		fn(field, old, new)
	}
}

func dependent(field string) bool {
	switch field {
	case domain.FieldMessageText, domain.FieldTemplate, domain.FieldOptions, domain.FieldButtons,
		domain.FieldWhatsAppFlow, domain.FieldFlowCTA, domain.FieldFlowScreen,
		domain.FieldFlowFieldMapping, domain.FieldMaxRetries:
		return true
	}
	return false
}

func toMap(rec domain.StepRecord) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(rec, &out); err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return out, nil
}
