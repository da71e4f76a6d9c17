package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunDocumentStoreContract(t, store)
}

func TestMemoryStore_Seed(t *testing.T) {
	seed := domain.FlowDocument{Name: "welcome", Steps: []domain.Step{
		{ID: "a", Order: 1, Message: domain.TextMessage{Text: "Hi"}},
	}}
	store := memory.NewStore(seed)
	seed.Steps[0].ID = "mutated"

	doc, err := store.Get(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Steps[0].ID)
}
