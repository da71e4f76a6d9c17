package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/stepgraph/pkg/domain"
	playground "github.com/go-playground/validator/v10"
)

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New()
	// Report wire names ("max_retries") instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(recordShape, domain.StepRecord{})
	return v
}

// Struct validates any struct by its `validate` tags and formats the failures.
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateStep checks that a step carries a complete payload for its tags.
func ValidateStep(step domain.Step) error {
	if err := Struct(step.Record()); err != nil {
		return fmt.Errorf("%w %q: %v", domain.ErrInvalidStep, step.ID, err)
	}
	return nil
}

// ValidateDocument checks every step and the document-level rules:
// a name, unique step IDs and strictly increasing orders.
func ValidateDocument(doc domain.FlowDocument) error {
	var problems []string

	if strings.TrimSpace(doc.Name) == "" {
		problems = append(problems, "document name is required")
	}

	seen := make(map[string]bool, len(doc.Steps))
	for i, step := range doc.Steps {
		if err := ValidateStep(step); err != nil {
			problems = append(problems, err.Error())
		}
		if step.ID != "" && seen[step.ID] {
			problems = append(problems, fmt.Sprintf("step %q: duplicate id", step.ID))
		}
		seen[step.ID] = true
		if i > 0 && step.Order <= doc.Steps[i-1].Order {
			problems = append(problems, fmt.Sprintf("step %q: order %d does not follow %d", step.ID, step.Order, doc.Steps[i-1].Order))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: found %d errors:\n- %s", domain.ErrInvalidStep, len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// recordShape enforces the payload each message and input type requires.
func recordShape(sl playground.StructLevel) {
	rec := sl.Current().Interface().(domain.StepRecord)

	switch domain.MessageType(rec.MessageType) {
	case domain.MessageText:
		if strings.TrimSpace(rec.MessageText) == "" {
			sl.ReportError(rec.MessageText, domain.FieldMessageText, "MessageText", "required_for", rec.MessageType)
		}
	case domain.MessageTemplate:
		if strings.TrimSpace(rec.Template) == "" {
			sl.ReportError(rec.Template, domain.FieldTemplate, "Template", "required_for", rec.MessageType)
		}
	}

	switch domain.InputType(rec.InputType) {
	case domain.InputSelect:
		if len(rec.Options) == 0 {
			sl.ReportError(rec.Options, domain.FieldOptions, "Options", "required_for", rec.InputType)
		}
	case domain.InputButton:
		if len(rec.Buttons) == 0 {
			sl.ReportError(rec.Buttons, domain.FieldButtons, "Buttons", "required_for", rec.InputType)
		}
	case domain.InputWhatsAppFlow:
		if rec.WhatsAppFlow == "" {
			sl.ReportError(rec.WhatsAppFlow, domain.FieldWhatsAppFlow, "WhatsAppFlow", "required_for", rec.InputType)
		}
		if rec.FlowCTA == "" {
			sl.ReportError(rec.FlowCTA, domain.FieldFlowCTA, "FlowCTA", "required_for", rec.InputType)
		}
		if rec.FlowScreen == "" {
			sl.ReportError(rec.FlowScreen, domain.FieldFlowScreen, "FlowScreen", "required_for", rec.InputType)
		}
	}
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	var validationErrors playground.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, formatFieldError(e))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}

// formatFieldError formats a single field validation error
func formatFieldError(e playground.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, strings.Replace(e.Param(), " ", " is ", 1))
	case "required_for":
		return fmt.Sprintf("%s is required for %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
