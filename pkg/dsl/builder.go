package dsl

import (
	"fmt"

	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/aretw0/stepgraph/pkg/domain"
)

// Builder manages the document construction.
type Builder struct {
	name        string
	description string
	steps       []*StepBuilder
	index       map[string]*StepBuilder
}

// New creates a new document builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		index: make(map[string]*StepBuilder),
	}
}

// Description sets the document description.
func (b *Builder) Description(text string) *Builder {
	b.description = text
	return b
}

// Step appends a step to the document.
// If the step already exists, it returns the existing builder.
func (b *Builder) Step(id string) *StepBuilder {
	if sb, ok := b.index[id]; ok {
		return sb
	}
	sb := &StepBuilder{
		step:    domain.Step{ID: id},
		builder: b,
	}
	b.index[id] = sb
	b.steps = append(b.steps, sb)
	return sb
}

// Build numbers the steps from 1 in the order they were added and validates the result.
func (b *Builder) Build() (domain.FlowDocument, error) {
	doc := domain.FlowDocument{
		Name:        b.name,
		Description: b.description,
		Steps:       make([]domain.Step, 0, len(b.steps)),
	}
	for i, sb := range b.steps {
		step := sb.Build()
		step.Order = i + 1
		doc.Steps = append(doc.Steps, step)
	}

	if err := validator.ValidateDocument(doc); err != nil {
		return domain.FlowDocument{}, fmt.Errorf("failed to build flow %q: %w", b.name, err)
	}
	return doc, nil
}

// MustBuild is like Build but panics on error. Intended for tests and static seeds.
func (b *Builder) MustBuild() domain.FlowDocument {
	doc, err := b.Build()
	if err != nil {
		panic(err)
	}
	return doc
}
