package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// MessageType selects the message payload of a step.
type MessageType string

const (
	MessageText     MessageType = "Text"
	MessageTemplate MessageType = "Template"
)

// InputType selects what the step expects back from the user.
type InputType string

const (
	InputNone         InputType = "None"
	InputSelect       InputType = "Select"
	InputButton       InputType = "Button"
	InputWhatsAppFlow InputType = "WhatsApp Flow"
)

// Message is the payload sent to the user. Exactly one implementation matches each MessageType.
type Message interface {
	MessageType() MessageType
}

// TextMessage is free text.
type TextMessage struct {
	Text string
}

func (TextMessage) MessageType() MessageType { return MessageText }

// TemplateMessage references a pre-approved message template by name.
type TemplateMessage struct {
	Template string
}

func (TemplateMessage) MessageType() MessageType { return MessageTemplate }

// Input is the reply the step collects. A nil Input means InputNone.
type Input interface {
	InputType() InputType
}

// OptionsInput asks the user to pick one of a list of options.
type OptionsInput struct {
	Options []string
}

func (OptionsInput) InputType() InputType { return InputSelect }

// Button is a quick-reply button.
type Button struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Title string `json:"title" yaml:"title" mapstructure:"title" validate:"required"`
}

// ButtonsInput asks the user to tap one of the buttons.
type ButtonsInput struct {
	Buttons []Button
}

func (ButtonsInput) InputType() InputType { return InputButton }

// FieldMapping copies a field submitted by a WhatsApp Flow screen into a session variable.
type FieldMapping struct {
	FlowField string `json:"flow_field" yaml:"flow_field" mapstructure:"flow_field" validate:"required"`
	Variable  string `json:"variable" yaml:"variable" mapstructure:"variable" validate:"required"`
}

// FlowInput opens a WhatsApp Flow and binds its submitted fields.
type FlowInput struct {
	Flow         string
	CTA          string
	Screen       string
	FieldMapping []FieldMapping
}

func (FlowInput) InputType() InputType { return InputWhatsAppFlow }

// RetryPolicy re-prompts on invalid input. Its presence means retry_on_invalid is on.
type RetryPolicy struct {
	MaxRetries int
}

// Step is one message/prompt unit of a flow.
type Step struct {
	ID      string
	Order   int
	Message Message
	Input   Input
	Retry   *RetryPolicy
}

// MessageType returns the tag of the message payload, or "" when none is set.
func (s Step) MessageType() MessageType {
	if s.Message == nil {
		return ""
	}
	return s.Message.MessageType()
}

// InputType returns the tag of the input payload.
func (s Step) InputType() InputType {
	if s.Input == nil {
		return InputNone
	}
	return s.Input.InputType()
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	switch in := s.Input.(type) {
	case OptionsInput:
		out.Input = OptionsInput{Options: slices.Clone(in.Options)}
	case ButtonsInput:
		out.Input = ButtonsInput{Buttons: slices.Clone(in.Buttons)}
	case FlowInput:
		in.FieldMapping = slices.Clone(in.FieldMapping)
		out.Input = in
	}
	if s.Retry != nil {
		r := *s.Retry
		out.Retry = &r
	}
	return out
}

// Summary returns a short human label for canvases and listings.
func (s Step) Summary() string {
	switch m := s.Message.(type) {
	case TextMessage:
		if m.Text != "" {
			return m.Text
		}
	case TemplateMessage:
		if m.Template != "" {
			return m.Template
		}
	}
	return "..."
}

// MarshalJSON encodes the step as its flat StepRecord.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Record())
}

// UnmarshalJSON decodes a flat StepRecord, dropping fields hidden by the tags.
func (s *Step) UnmarshalJSON(data []byte) error {
	var rec StepRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	step, err := rec.Step()
	if err != nil {
		return err
	}
	*s = step
	return nil
}

// StepRecord is the flat, storage-facing form of a Step.
// Only the fields listed by VisibleFields for its tags carry meaning.
type StepRecord struct {
	ID               string         `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Order            int            `json:"order" yaml:"order" mapstructure:"order" validate:"gte=0"`
	MessageType      string         `json:"message_type" yaml:"message_type" mapstructure:"message_type" validate:"required,oneof=Text Template"`
	MessageText      string         `json:"message_text,omitempty" yaml:"message_text,omitempty" mapstructure:"message_text"`
	Template         string         `json:"template,omitempty" yaml:"template,omitempty" mapstructure:"template"`
	InputType        string         `json:"input_type,omitempty" yaml:"input_type,omitempty" mapstructure:"input_type"`
	Options          []string       `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options" validate:"omitempty,dive,required"`
	Buttons          []Button       `json:"buttons,omitempty" yaml:"buttons,omitempty" mapstructure:"buttons" validate:"omitempty,max=3,dive"`
	WhatsAppFlow     string         `json:"whatsapp_flow,omitempty" yaml:"whatsapp_flow,omitempty" mapstructure:"whatsapp_flow"`
	FlowCTA          string         `json:"flow_cta,omitempty" yaml:"flow_cta,omitempty" mapstructure:"flow_cta"`
	FlowScreen       string         `json:"flow_screen,omitempty" yaml:"flow_screen,omitempty" mapstructure:"flow_screen"`
	FlowFieldMapping []FieldMapping `json:"flow_field_mapping,omitempty" yaml:"flow_field_mapping,omitempty" mapstructure:"flow_field_mapping" validate:"omitempty,dive"`
	RetryOnInvalid   bool           `json:"retry_on_invalid,omitempty" yaml:"retry_on_invalid,omitempty" mapstructure:"retry_on_invalid"`
	MaxRetries       int            `json:"max_retries,omitempty" yaml:"max_retries,omitempty" mapstructure:"max_retries" validate:"required_if=RetryOnInvalid true,gte=0"`
}

// Record flattens the step. Fields of other tags are left empty.
func (s Step) Record() StepRecord {
	rec := StepRecord{
		ID:          s.ID,
		Order:       s.Order,
		MessageType: string(s.MessageType()),
		InputType:   string(s.InputType()),
	}

	switch m := s.Message.(type) {
	case TextMessage:
		rec.MessageText = m.Text
	case TemplateMessage:
		rec.Template = m.Template
	}

	switch in := s.Input.(type) {
	case OptionsInput:
		rec.Options = slices.Clone(in.Options)
	case ButtonsInput:
		rec.Buttons = slices.Clone(in.Buttons)
	case FlowInput:
		rec.WhatsAppFlow = in.Flow
		rec.FlowCTA = in.CTA
		rec.FlowScreen = in.Screen
		rec.FlowFieldMapping = slices.Clone(in.FieldMapping)
	}

	if s.Retry != nil {
		rec.RetryOnInvalid = true
		rec.MaxRetries = s.Retry.MaxRetries
	}
	return rec
}

// Step builds the typed step. Fields not visible for the record's tags are ignored.
func (r StepRecord) Step() (Step, error) {
	s := Step{ID: r.ID, Order: r.Order}

	switch MessageType(r.MessageType) {
	case MessageText:
		s.Message = TextMessage{Text: r.MessageText}
	case MessageTemplate:
		s.Message = TemplateMessage{Template: r.Template}
	default:
		return Step{}, fmt.Errorf("%w: step %q: unknown message type %q", ErrInvalidStep, r.ID, r.MessageType)
	}

	switch InputType(r.InputType) {
	case "", InputNone:
		s.Input = nil
	case InputSelect:
		s.Input = OptionsInput{Options: slices.Clone(r.Options)}
	case InputButton:
		s.Input = ButtonsInput{Buttons: slices.Clone(r.Buttons)}
	case InputWhatsAppFlow:
		s.Input = FlowInput{
			Flow:         r.WhatsAppFlow,
			CTA:          r.FlowCTA,
			Screen:       r.FlowScreen,
			FieldMapping: slices.Clone(r.FlowFieldMapping),
		}
	default:
		return Step{}, fmt.Errorf("%w: step %q: unknown input type %q", ErrInvalidStep, r.ID, r.InputType)
	}

	if r.RetryOnInvalid {
		s.Retry = &RetryPolicy{MaxRetries: r.MaxRetries}
	}
	return s, nil
}

// Record field names that depend on the step tags.
const (
	FieldMessageText      = "message_text"
	FieldTemplate         = "template"
	FieldOptions          = "options"
	FieldButtons          = "buttons"
	FieldWhatsAppFlow     = "whatsapp_flow"
	FieldFlowCTA          = "flow_cta"
	FieldFlowScreen       = "flow_screen"
	FieldFlowFieldMapping = "flow_field_mapping"
	FieldMaxRetries       = "max_retries"
)

// VisibleFields lists the tag-dependent record fields that are relevant for the combination.
func VisibleFields(mt MessageType, it InputType, retry bool) []string {
	var fields []string

	switch mt {
	case MessageText:
		fields = append(fields, FieldMessageText)
	case MessageTemplate:
		fields = append(fields, FieldTemplate)
	}

	switch it {
	case InputSelect:
		fields = append(fields, FieldOptions)
	case InputButton:
		fields = append(fields, FieldButtons)
	case InputWhatsAppFlow:
		fields = append(fields, FieldWhatsAppFlow, FieldFlowCTA, FieldFlowScreen, FieldFlowFieldMapping)
	case InputNone:
	}

	if retry {
		fields = append(fields, FieldMaxRetries)
	}
	return fields
}
