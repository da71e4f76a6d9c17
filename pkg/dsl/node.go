package dsl

import "github.com/aretw0/stepgraph/pkg/domain"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step    domain.Step
	builder *Builder
}

// Text sets a plain text message.
func (s *StepBuilder) Text(content string) *StepBuilder {
	s.step.Message = domain.TextMessage{Text: content}
	return s
}

// Template sets an approved WhatsApp template as the message.
func (s *StepBuilder) Template(name string) *StepBuilder {
	s.step.Message = domain.TemplateMessage{Template: name}
	return s
}

// Options asks the user to pick one of the options.
func (s *StepBuilder) Options(options ...string) *StepBuilder {
	s.step.Input = domain.OptionsInput{Options: options}
	return s
}

// Button adds a quick-reply button, switching the input to buttons if needed.
func (s *StepBuilder) Button(id, title string) *StepBuilder {
	in, _ := s.step.Input.(domain.ButtonsInput)
	in.Buttons = append(in.Buttons, domain.Button{ID: id, Title: title})
	s.step.Input = in
	return s
}

// WhatsAppFlow opens a WhatsApp Flow on the given screen.
func (s *StepBuilder) WhatsAppFlow(flow, cta, screen string) *StepBuilder {
	in, _ := s.step.Input.(domain.FlowInput)
	in.Flow, in.CTA, in.Screen = flow, cta, screen
	s.step.Input = in
	return s
}

// Map copies a submitted WhatsApp Flow field into a session variable.
func (s *StepBuilder) Map(flowField, variable string) *StepBuilder {
	in, _ := s.step.Input.(domain.FlowInput)
	in.FieldMapping = append(in.FieldMapping, domain.FieldMapping{FlowField: flowField, Variable: variable})
	s.step.Input = in
	return s
}

// NoInput clears the input so the step only sends its message.
func (s *StepBuilder) NoInput() *StepBuilder {
	s.step.Input = nil
	return s
}

// Retry re-prompts up to max times on invalid input.
func (s *StepBuilder) Retry(max int) *StepBuilder {
	s.step.Retry = &domain.RetryPolicy{MaxRetries: max}
	return s
}

// Step starts or resumes another step of the same document.
func (s *StepBuilder) Step(id string) *StepBuilder {
	return s.builder.Step(id)
}

// Flow returns the document builder.
func (s *StepBuilder) Flow() *Builder {
	return s.builder
}

// Build returns a copy of the underlying domain.Step.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StepBuilder) Build() domain.Step {
	return s.step.Clone()
}
