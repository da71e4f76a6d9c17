package stepgraph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func welcomeDoc() domain.FlowDocument {
	return domain.FlowDocument{
		Name: "welcome",
		Steps: []domain.Step{
			{ID: "A", Order: 1, Message: domain.TextMessage{Text: "Hello!"}},
			{ID: "B", Order: 2, Message: domain.TextMessage{Text: "Continue?"}, Input: domain.OptionsInput{Options: []string{"Yes", "No"}}},
		},
	}
}

// failingStore accepts reads and refuses every write.
type failingStore struct {
	ports.DocumentStore
	saves int
}

func (s *failingStore) Save(ctx context.Context, doc domain.FlowDocument) error {
	s.saves++
	return errors.New("connection reset")
}

func TestEditor_OpenAndSaveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(welcomeDoc())

	ed := stepgraph.New(store)
	require.NoError(t, ed.Open(ctx, "welcome"))
	assert.Equal(t, "welcome", ed.Name())
	assert.Len(t, ed.Nodes(), 2)
	require.Len(t, ed.Edges(), 1)
	assert.False(t, ed.Dirty())

	doc, err := ed.Document()
	require.NoError(t, err)
	assert.Equal(t, welcomeDoc(), doc)

	require.NoError(t, ed.Save(ctx))
	saved, err := store.Get(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, welcomeDoc(), saved)
}

func TestEditor_SaveRenumbersUnorderedDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	doc := welcomeDoc()
	doc.Steps[0].Order = 0
	doc.Steps[1].Order = 0

	ed := stepgraph.New(store)
	require.NoError(t, ed.LoadDocument(ctx, doc))
	got, err := ed.Document()
	require.NoError(t, err)
	assert.Equal(t, doc, got, "an unedited document comes back as loaded")

	require.NoError(t, ed.Save(ctx))
	saved, err := store.Get(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, welcomeDoc(), saved)
}

func TestEditor_OpenMissing(t *testing.T) {
	ed := stepgraph.New(memory.NewStore())
	err := ed.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestEditor_NoStore(t *testing.T) {
	ctx := context.Background()
	ed := stepgraph.New(nil)
	assert.ErrorIs(t, ed.Open(ctx, "welcome"), stepgraph.ErrNoStore)

	require.NoError(t, ed.LoadDocument(ctx, welcomeDoc()))
	assert.ErrorIs(t, ed.Save(ctx), stepgraph.ErrNoStore)
}

func TestEditor_RequireSteps(t *testing.T) {
	ctx := context.Background()

	err := stepgraph.New(nil, stepgraph.WithRequireSteps()).LoadDocument(ctx, domain.FlowDocument{Name: "empty"})
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)

	ed := stepgraph.New(nil)
	require.NoError(t, ed.LoadDocument(ctx, domain.FlowDocument{Name: "empty"}))
	assert.Empty(t, ed.Nodes())
	doc, err := ed.Document()
	require.NoError(t, err)
	assert.Empty(t, doc.Steps)
}

func TestEditor_DirtyTracking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(welcomeDoc())
	ed := stepgraph.New(store)
	require.NoError(t, ed.Open(ctx, "welcome"))

	require.NoError(t, ed.Move(ctx, 1, domain.Position{X: 5, Y: 5}))
	assert.False(t, ed.Dirty(), "moving does not change the document")

	n, err := ed.AddStep(ctx, domain.Step{ID: "C", Message: domain.TextMessage{Text: "Bye"}}, domain.Position{})
	require.NoError(t, err)
	assert.True(t, ed.Dirty())

	_, err = ed.Connect(ctx, 2, domain.DefaultOutput, n.ID, domain.DefaultInput)
	require.NoError(t, err)
	require.NoError(t, ed.Save(ctx))
	assert.False(t, ed.Dirty())

	saved, err := store.Get(ctx, "welcome")
	require.NoError(t, err)
	require.Len(t, saved.Steps, 3)
	assert.Equal(t, "C", saved.Steps[2].ID)
	assert.Equal(t, 3, saved.Steps[2].Order)
}

func TestEditor_RejectsRetryWithoutMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(welcomeDoc())
	ed := stepgraph.New(store)
	require.NoError(t, ed.Open(ctx, "welcome"))

	_, err := ed.BindStep(ctx, 2, domain.Step{
		ID:      "B",
		Order:   2,
		Message: domain.TextMessage{Text: "Continue?"},
		Input:   domain.OptionsInput{Options: []string{"Yes", "No"}},
		Retry:   &domain.RetryPolicy{},
	})
	require.NoError(t, err, "binding is not the validation point")

	err = ed.Save(ctx)
	require.ErrorIs(t, err, domain.ErrInvalidStep)
	assert.Contains(t, err.Error(), "max_retries")
	assert.True(t, ed.Dirty())

	saved, err := store.Get(ctx, "welcome")
	require.NoError(t, err)
	assert.Nil(t, saved.Steps[1].Retry, "store must not be touched")
}

func TestEditor_StoreFailureKeepsGraph(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{DocumentStore: memory.NewStore(welcomeDoc())}
	ed := stepgraph.New(store)
	require.NoError(t, ed.Open(ctx, "welcome"))

	_, err := ed.AddNode(ctx, domain.KindMessage, domain.Position{X: 600})
	require.NoError(t, err)
	require.NoError(t, ed.RemoveEdge(ctx, 1))
	before := ed.Nodes()

	// Two roots: serialization fails before the store is reached.
	err = ed.Save(ctx)
	assert.ErrorIs(t, err, domain.ErrMultipleRoots)
	assert.Zero(t, store.saves)

	_, err = ed.RemoveNode(ctx, 3)
	require.NoError(t, err)
	_, err = ed.Connect(ctx, 1, domain.DefaultOutput, 2, domain.DefaultInput)
	require.NoError(t, err)

	err = ed.Save(ctx)
	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.Equal(t, "welcome", se.Document)
	assert.Equal(t, 1, store.saves, "saves are never retried")
	assert.True(t, ed.Dirty())

	assert.Equal(t, before[:2], ed.Nodes())
	doc, err := ed.Document()
	require.NoError(t, err)
	assert.Equal(t, welcomeDoc().Steps, doc.Steps)
}

func TestEditor_SurfacesAndHooks(t *testing.T) {
	ctx := context.Background()

	var ops []domain.CanvasOp
	var rejected []string
	var saved []string
	hooks := domain.EditorHooks{
		OnRejected: func(_ context.Context, op string, _ error) { rejected = append(rejected, op) },
		OnSaved:    func(_ context.Context, doc domain.FlowDocument) { saved = append(saved, doc.Name) },
	}
	surface := ports.SurfaceFunc(func(_ context.Context, cmd domain.CanvasCommand) {
		ops = append(ops, cmd.Op)
	})

	ed := stepgraph.New(memory.NewStore(welcomeDoc()), stepgraph.WithSurface(surface), stepgraph.WithHooks(hooks))
	require.NoError(t, ed.Open(ctx, "welcome"))
	assert.Equal(t, []domain.CanvasOp{domain.CanvasClear, domain.CanvasAddNode, domain.CanvasAddNode, domain.CanvasAddEdge}, ops)

	ops = nil
	_, err := ed.Connect(ctx, 1, domain.DefaultOutput, 1, domain.DefaultInput)
	assert.ErrorIs(t, err, domain.ErrSelfLoop)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Empty(t, ops, "rejected operations emit nothing")
	assert.Equal(t, []string{"connect"}, rejected)

	removed, err := ed.RemoveNode(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []domain.CanvasOp{domain.CanvasRemoveEdge, domain.CanvasRemoveNode}, ops)

	require.NoError(t, ed.Save(ctx))
	assert.Equal(t, []string{"welcome"}, saved)
}

func TestEditor_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate connect", func(t *testing.T) {
		ed := stepgraph.New(nil)
		require.NoError(t, ed.LoadDocument(ctx, domain.FlowDocument{Name: "f"}))
		a, _ := ed.AddNode(ctx, domain.KindMessage, domain.Position{})
		b, _ := ed.AddNode(ctx, domain.KindMessage, domain.Position{})

		_, err := ed.Connect(ctx, a.ID, domain.DefaultOutput, b.ID, domain.DefaultInput)
		require.NoError(t, err)
		_, err = ed.Connect(ctx, a.ID, domain.DefaultOutput, b.ID, domain.DefaultInput)
		assert.ErrorIs(t, err, domain.ErrDuplicateEdge)
		assert.Len(t, ed.Edges(), 1)
	})

	t.Run("two components", func(t *testing.T) {
		ed := stepgraph.New(nil)
		require.NoError(t, ed.LoadDocument(ctx, domain.FlowDocument{Name: "f"}))
		var ids []domain.NodeID
		for _, id := range []string{"A", "B", "C", "D"} {
			n, err := ed.AddStep(ctx, domain.Step{ID: id, Message: domain.TextMessage{Text: id}}, domain.Position{})
			require.NoError(t, err)
			ids = append(ids, n.ID)
		}
		_, err := ed.Connect(ctx, ids[0], domain.DefaultOutput, ids[1], domain.DefaultInput)
		require.NoError(t, err)
		_, err = ed.Connect(ctx, ids[2], domain.DefaultOutput, ids[3], domain.DefaultInput)
		require.NoError(t, err)

		_, err = ed.Document()
		assert.ErrorIs(t, err, domain.ErrMultipleRoots)
	})
}
