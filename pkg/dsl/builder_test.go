package dsl

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aretw0/stepgraph/pkg/domain"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	doc, err := New("welcome").
		Description("First contact").
		Step("hello").Text("Hi!").
		Step("menu").Text("How can we help?").Options("Billing", "Sales").Retry(2).
		Step("confirm").Template("order_confirmation").Button("y", "Yes").Button("n", "No").
		Step("form").Text("Tell us more").
		WhatsAppFlow("123", "Open", "DETAILS").Map("email", "customer_email").
		Flow().
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if doc.Name != "welcome" || doc.Description != "First contact" {
		t.Errorf("unexpected header: %q %q", doc.Name, doc.Description)
	}
	if len(doc.Steps) != 4 {
		t.Fatalf("Expected 4 steps, got %d", len(doc.Steps))
	}
	for i, step := range doc.Steps {
		if step.Order != i+1 {
			t.Errorf("step %q: expected order %d, got %d", step.ID, i+1, step.Order)
		}
	}

	menu := doc.Steps[1]
	if menu.InputType() != domain.InputSelect {
		t.Errorf("Expected menu input Select, got %q", menu.InputType())
	}
	if menu.Retry == nil || menu.Retry.MaxRetries != 2 {
		t.Errorf("Expected retry policy of 2, got %+v", menu.Retry)
	}

	wantButtons := domain.ButtonsInput{Buttons: []domain.Button{{ID: "y", Title: "Yes"}, {ID: "n", Title: "No"}}}
	if !reflect.DeepEqual(doc.Steps[2].Input, wantButtons) {
		t.Errorf("unexpected buttons: %+v", doc.Steps[2].Input)
	}

	wantFlow := domain.FlowInput{
		Flow: "123", CTA: "Open", Screen: "DETAILS",
		FieldMapping: []domain.FieldMapping{{FlowField: "email", Variable: "customer_email"}},
	}
	if !reflect.DeepEqual(doc.Steps[3].Input, wantFlow) {
		t.Errorf("unexpected flow input: %+v", doc.Steps[3].Input)
	}
}

func TestBuilder_StepReuse(t *testing.T) {
	b := New("f")
	b.Step("a").Text("first")
	b.Step("b").Text("second")
	b.Step("a").Text("edited")

	doc := b.MustBuild()
	if len(doc.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(doc.Steps))
	}
	if doc.Steps[0].Summary() != "edited" {
		t.Errorf("Expected step a to be edited in place, got %q", doc.Steps[0].Summary())
	}
}

func TestBuilder_Invalid(t *testing.T) {
	tests := map[string]*Builder{
		"missing message": New("f").Step("a").Flow(),
		"empty options":   New("f").Step("a").Text("pick").Options().Flow(),
		"too many buttons": New("f").Step("a").Text("pick").
			Button("1", "1").Button("2", "2").Button("3", "3").Button("4", "4").Flow(),
		"no name": New("").Step("a").Text("hi").Flow(),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build()
			if !errors.Is(err, domain.ErrInvalidStep) {
				t.Errorf("Expected ErrInvalidStep, got %v", err)
			}
		})
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustBuild to panic")
		}
	}()
	New("f").Step("a").Flow().MustBuild()
}
