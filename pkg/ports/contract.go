package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore implementation
// adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	name := "contract-flow-" + time.Now().Format("20060102150405")

	fixture := func(name string) domain.FlowDocument {
		return domain.FlowDocument{
			Name:        name,
			Description: "Contract fixture",
			Steps: []domain.Step{
				{ID: "greet", Order: 1, Message: domain.TextMessage{Text: "Hello!"}},
				{
					ID:      "ask",
					Order:   2,
					Message: domain.TextMessage{Text: "Continue?"},
					Input:   domain.ButtonsInput{Buttons: []domain.Button{{ID: "y", Title: "Yes"}, {ID: "n", Title: "No"}}},
					Retry:   &domain.RetryPolicy{MaxRetries: 2},
				},
				{
					ID:      "survey",
					Order:   3,
					Message: domain.TemplateMessage{Template: "survey_intro"},
					Input: domain.FlowInput{
						Flow:         "csat",
						CTA:          "Rate us",
						Screen:       "RATING",
						FieldMapping: []domain.FieldMapping{{FlowField: "score", Variable: "csat"}},
					},
				},
			},
		}
	}

	t.Run("Save and Get", func(t *testing.T) {
		doc := fixture(name)

		err := store.Save(ctx, doc)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Get(ctx, name)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, doc, loaded)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+name)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		doc := fixture(name)
		doc.Steps = doc.Steps[:1]
		require.NoError(t, store.Save(ctx, doc))

		loaded, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Len(t, loaded.Steps, 1)
	})

	t.Run("Empty Document", func(t *testing.T) {
		empty := domain.FlowDocument{Name: name + "-empty"}
		require.NoError(t, store.Save(ctx, empty))

		loaded, err := store.Get(ctx, empty.Name)
		require.NoError(t, err)
		assert.Empty(t, loaded.Steps)
	})

	t.Run("Isolation", func(t *testing.T) {
		doc := fixture(name + "-iso")
		require.NoError(t, store.Save(ctx, doc))
		doc.Steps[0].ID = "mutated"

		loaded, err := store.Get(ctx, doc.Name)
		require.NoError(t, err)
		assert.Equal(t, "greet", loaded.Steps[0].ID, "store must not alias caller memory")
	})

	t.Run("List", func(t *testing.T) {
		id1 := fmt.Sprintf("%s-list-1", name)
		id2 := fmt.Sprintf("%s-list-2", name)
		require.NoError(t, store.Save(ctx, fixture(id1)))
		require.NoError(t, store.Save(ctx, fixture(id2)))

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, id1)
		assert.Contains(t, names, id2)
		assert.IsIncreasing(t, names)
	})
}
