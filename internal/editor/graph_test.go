package editor

import (
	"fmt"
	"testing"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textStep(id string, order int, text string) domain.Step {
	return domain.Step{ID: id, Order: order, Message: domain.TextMessage{Text: text}}
}

func sampleDoc() domain.FlowDocument {
	return domain.FlowDocument{
		Name:        "welcome",
		Description: "Greets and qualifies",
		Steps: []domain.Step{
			textStep("A", 1, "Hi there"),
			{
				ID:      "B",
				Order:   2,
				Message: domain.TextMessage{Text: "Interested?"},
				Input:   domain.OptionsInput{Options: []string{"Yes", "No"}},
			},
		},
	}
}

func loaded(t *testing.T, doc domain.FlowDocument) *Graph {
	t.Helper()
	g := New()
	require.NoError(t, g.Load(doc))
	return g
}

func TestLoad_TwoSteps(t *testing.T) {
	g := loaded(t, sampleDoc())

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "A", nodes[0].Step.ID)
	assert.Equal(t, "B", nodes[1].Step.ID)
	assert.Equal(t, domain.Position{X: 100, Y: 100}, nodes[0].Position)
	assert.Equal(t, domain.Position{X: 350, Y: 100}, nodes[1].Position)

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, nodes[0].ID, edges[0].From)
	assert.Equal(t, domain.DefaultOutput, edges[0].FromPort)
	assert.Equal(t, nodes[1].ID, edges[0].To)
	assert.Equal(t, domain.DefaultInput, edges[0].ToPort)

	doc, err := g.ToDocument()
	require.NoError(t, err)
	assert.Equal(t, sampleDoc(), doc)
}

func TestRoundTrip(t *testing.T) {
	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d steps", n), func(t *testing.T) {
			doc := domain.FlowDocument{Name: "flow", Steps: []domain.Step{}}
			for i := 0; i < n; i++ {
				s := textStep(fmt.Sprintf("s%d", i), (i+1)*10, fmt.Sprintf("message %d", i))
				if i%2 == 1 {
					s.Input = domain.ButtonsInput{Buttons: []domain.Button{{ID: "ok", Title: "OK"}}}
					s.Retry = &domain.RetryPolicy{MaxRetries: i}
				}
				doc.Steps = append(doc.Steps, s)
			}

			g := loaded(t, doc)
			got, err := g.ToDocument()
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		})
	}
}

func TestRoundTrip_KeepsLoadedOrders(t *testing.T) {
	unordered := sampleDoc()
	unordered.Steps[0].Order = 0
	unordered.Steps[1].Order = 0

	equal := sampleDoc()
	equal.Steps[0].Order = 5
	equal.Steps[1].Order = 5

	descending := sampleDoc()
	descending.Steps[0].Order = 9
	descending.Steps[1].Order = 3

	tests := []struct {
		name string
		doc  domain.FlowDocument
	}{
		{"zero orders", unordered},
		{"equal orders", equal},
		{"descending orders", descending},
		{"nil steps", domain.FlowDocument{Name: "blank"}},
		{"empty steps", domain.FlowDocument{Name: "blank", Steps: []domain.Step{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := loaded(t, tt.doc)
			if len(tt.doc.Steps) > 0 {
				_, err := g.Move(1, domain.Position{X: 1, Y: 1})
				require.NoError(t, err)
			}

			got, err := g.ToDocument()
			require.NoError(t, err)
			assert.Equal(t, tt.doc, got)
			assert.Equal(t, tt.doc.Steps == nil, got.Steps == nil)
		})
	}
}

func TestLoad_CustomLayout(t *testing.T) {
	g := New()
	require.NoError(t, g.Load(sampleDoc(), WithLayout(Layout{Origin: domain.Position{X: 0, Y: 40}, Spacing: 100})))

	nodes := g.Nodes()
	assert.Equal(t, domain.Position{X: 0, Y: 40}, nodes[0].Position)
	assert.Equal(t, domain.Position{X: 100, Y: 40}, nodes[1].Position)
}

func TestLoad_Empty(t *testing.T) {
	g := New()
	require.NoError(t, g.Load(domain.FlowDocument{Name: "blank"}))
	assert.Empty(t, g.Nodes())

	doc, err := g.ToDocument()
	require.NoError(t, err)
	assert.Equal(t, "blank", doc.Name)
	assert.Nil(t, doc.Steps)

	node, err := g.AddNode(domain.KindMessage, domain.Position{})
	require.NoError(t, err)
	_, err = g.RemoveNode(node.ID)
	require.NoError(t, err)
	doc, err = g.ToDocument()
	require.NoError(t, err)
	assert.NotNil(t, doc.Steps)
	assert.Empty(t, doc.Steps)

	err = g.Load(domain.FlowDocument{Name: "blank"}, RequireSteps())
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestLoad_FailureKeepsGraph(t *testing.T) {
	g := loaded(t, sampleDoc())

	bad := domain.FlowDocument{Name: "bad", Steps: []domain.Step{textStep("X", 1, "x"), textStep("X", 2, "y")}}
	err := g.Load(bad)
	require.ErrorIs(t, err, domain.ErrDuplicateStep)

	assert.Equal(t, "welcome", g.Name())
	assert.Len(t, g.Nodes(), 2)
	assert.Len(t, g.Edges(), 1)
}

func TestAddNode(t *testing.T) {
	g := loaded(t, sampleDoc())

	n, err := g.AddNode(domain.KindCondition, domain.Position{X: 5, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID(3), n.ID)
	assert.Nil(t, n.Step)
	assert.Len(t, g.Edges(), 1, "new nodes are unconnected")

	_, err = g.AddNode(domain.KindStep, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = g.AddNode("sticker", domain.Position{})
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestNodeIDsAreNeverReused(t *testing.T) {
	g := New()
	a, err := g.AddNode(domain.KindMessage, domain.Position{})
	require.NoError(t, err)
	_, err = g.RemoveNode(a.ID)
	require.NoError(t, err)

	b, err := g.AddNode(domain.KindMessage, domain.Position{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestConnect_SelfLoop(t *testing.T) {
	g := New()
	a, err := g.AddStep(textStep("A", 1, "a"), domain.Position{})
	require.NoError(t, err)

	_, err = g.Connect(a.ID, "output_1", a.ID, "input_1")
	assert.ErrorIs(t, err, domain.ErrSelfLoop)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Empty(t, g.Edges())
}

func TestConnect_DuplicateEdge(t *testing.T) {
	g := New()
	a, _ := g.AddStep(textStep("A", 1, "a"), domain.Position{})
	b, _ := g.AddStep(textStep("B", 2, "b"), domain.Position{})

	_, err := g.Connect(a.ID, "output_1", b.ID, "input_1")
	require.NoError(t, err)

	_, err = g.Connect(a.ID, "output_1", b.ID, "input_1")
	assert.ErrorIs(t, err, domain.ErrDuplicateEdge)
	assert.Len(t, g.Edges(), 1)
}

func TestConnect_PortInUse(t *testing.T) {
	g := New()
	a, _ := g.AddStep(textStep("A", 1, "a"), domain.Position{})
	b, _ := g.AddStep(textStep("B", 2, "b"), domain.Position{})
	c, _ := g.AddStep(textStep("C", 3, "c"), domain.Position{})

	_, err := g.Connect(a.ID, "output_1", b.ID, "input_1")
	require.NoError(t, err)

	_, err = g.Connect(a.ID, "output_1", c.ID, "input_1")
	assert.ErrorIs(t, err, domain.ErrPortInUse)
	assert.Len(t, g.Edges(), 1)
}

func TestConnect_Cycle(t *testing.T) {
	g := loaded(t, domain.FlowDocument{Steps: []domain.Step{
		textStep("A", 1, "a"), textStep("B", 2, "b"), textStep("C", 3, "c"),
	}})
	before := g.Edges()

	cond, err := g.AddNode(domain.KindCondition, domain.Position{})
	require.NoError(t, err)
	_, err = g.Connect(3, "output_1", cond.ID, "input_1")
	require.NoError(t, err)
	before = append(before, g.Edges()[len(g.Edges())-1])

	// cond -> A closes C -> cond -> A -> B -> C.
	_, err = g.Connect(cond.ID, "output_2", 1, "input_1")
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Equal(t, before, g.Edges())
}

func TestConnect_UnknownNodeAndPort(t *testing.T) {
	g := New()
	a, _ := g.AddStep(textStep("A", 1, "a"), domain.Position{})
	tr, _ := g.AddNode(domain.KindTransfer, domain.Position{})
	cond, _ := g.AddNode(domain.KindCondition, domain.Position{})

	_, err := g.Connect(a.ID, "output_1", 99, "input_1")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	_, err = g.Connect(tr.ID, "output_1", a.ID, "input_1")
	assert.ErrorIs(t, err, domain.ErrUnknownPort, "transfer nodes end the flow")

	_, err = g.Connect(a.ID, "output_2", cond.ID, "input_1")
	assert.ErrorIs(t, err, domain.ErrUnknownPort)

	_, err = g.Connect(cond.ID, "output_2", a.ID, "input_1")
	assert.NoError(t, err, "condition nodes have two outputs")
}

func TestRemoveNode(t *testing.T) {
	g := loaded(t, domain.FlowDocument{Steps: []domain.Step{
		textStep("A", 1, "a"), textStep("B", 2, "b"), textStep("C", 3, "c"),
	}})
	extra, _ := g.AddNode(domain.KindAction, domain.Position{})
	_, err := g.Connect(extra.ID, "output_1", 2, "input_1")
	require.NoError(t, err)

	before := len(g.Edges())
	removed, err := g.RemoveNode(2)
	require.NoError(t, err)

	assert.Len(t, removed, 3)
	for _, e := range removed {
		assert.True(t, e.From == 2 || e.To == 2)
	}
	assert.Len(t, g.Edges(), before-len(removed))
	assert.Len(t, g.Nodes(), 3, "other nodes survive")

	_, err = g.RemoveNode(2)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestRemoveEdgeAndMove(t *testing.T) {
	g := loaded(t, sampleDoc())

	e, err := g.RemoveEdge(1)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeID(1), e.From)
	assert.Empty(t, g.Edges())

	_, err = g.RemoveEdge(1)
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)

	n, err := g.Move(2, domain.Position{X: -3, Y: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: -3, Y: 7}, n.Position)

	_, err = g.Move(42, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestBindStep(t *testing.T) {
	g := loaded(t, sampleDoc())
	msg, _ := g.AddNode(domain.KindMessage, domain.Position{})
	_, err := g.Connect(2, "output_1", msg.ID, "input_1")
	require.NoError(t, err)

	_, err = g.ToDocument()
	assert.ErrorIs(t, err, domain.ErrUnboundNode)

	_, err = g.BindStep(msg.ID, textStep("A", 3, "dup"))
	assert.ErrorIs(t, err, domain.ErrDuplicateStep)

	n, err := g.BindStep(msg.ID, textStep("C", 3, "Bye"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindStep, n.Kind)

	doc, err := g.ToDocument()
	require.NoError(t, err)
	require.Len(t, doc.Steps, 3)
	assert.Equal(t, "C", doc.Steps[2].ID)

	// Rebinding the same node keeps its step ID legal.
	_, err = g.BindStep(msg.ID, textStep("C", 3, "Goodbye"))
	assert.NoError(t, err)
}

func TestBindStep_RejectsExtraPorts(t *testing.T) {
	g := New()
	cond, _ := g.AddNode(domain.KindCondition, domain.Position{})
	a, _ := g.AddStep(textStep("A", 1, "a"), domain.Position{})
	_, err := g.Connect(cond.ID, "output_2", a.ID, "input_1")
	require.NoError(t, err)

	_, err = g.BindStep(cond.ID, textStep("Q", 0, "q"))
	assert.ErrorIs(t, err, domain.ErrUnknownPort)

	n, _ := g.Node(cond.ID)
	assert.Equal(t, domain.KindCondition, n.Kind)
}

func TestToDocument_MultipleRoots(t *testing.T) {
	g := New()
	ids := make([]domain.NodeID, 4)
	for i, name := range []string{"A", "B", "C", "D"} {
		n, err := g.AddStep(textStep(name, i+1, name), domain.Position{})
		require.NoError(t, err)
		ids[i] = n.ID
	}
	_, err := g.Connect(ids[0], "output_1", ids[1], "input_1")
	require.NoError(t, err)
	_, err = g.Connect(ids[2], "output_1", ids[3], "input_1")
	require.NoError(t, err)

	_, err = g.ToDocument()
	assert.ErrorIs(t, err, domain.ErrMultipleRoots)
}

func TestToDocument_MergeHasTwoRoots(t *testing.T) {
	g := loaded(t, sampleDoc())
	x, _ := g.AddStep(textStep("X", 3, "x"), domain.Position{})
	_, err := g.Connect(x.ID, "output_1", 2, "input_1")
	require.NoError(t, err)

	_, err = g.ToDocument()
	assert.ErrorIs(t, err, domain.ErrMultipleRoots)
}

func TestToDocument_AmbiguousBranch(t *testing.T) {
	g := New()
	start, _ := g.AddStep(textStep("S", 1, "s"), domain.Position{})
	cond, _ := g.AddNode(domain.KindCondition, domain.Position{})
	yes, _ := g.AddStep(textStep("Y", 2, "y"), domain.Position{})
	no, _ := g.AddStep(textStep("N", 3, "n"), domain.Position{})
	_, err := g.Connect(start.ID, "output_1", cond.ID, "input_1")
	require.NoError(t, err)
	_, err = g.Connect(cond.ID, "output_1", yes.ID, "input_1")
	require.NoError(t, err)
	_, err = g.Connect(cond.ID, "output_2", no.ID, "input_1")
	require.NoError(t, err)

	_, err = g.ToDocument()
	assert.ErrorIs(t, err, domain.ErrAmbiguousBranch)

	// Collapsing the branch leaves a placeholder on the path.
	_, err = g.RemoveNode(no.ID)
	require.NoError(t, err)
	_, err = g.ToDocument()
	assert.ErrorIs(t, err, domain.ErrUnboundNode)
}

func TestToDocument_CorruptGraphs(t *testing.T) {
	t.Run("no root", func(t *testing.T) {
		g := loaded(t, sampleDoc())
		g.insertEdge(2, domain.DefaultOutput, 1, domain.DefaultInput)

		_, err := g.ToDocument()
		assert.ErrorIs(t, err, domain.ErrCycleDetected)
	})

	t.Run("cycle detached from root", func(t *testing.T) {
		g := loaded(t, sampleDoc())
		c, _ := g.AddStep(textStep("C", 3, "c"), domain.Position{})
		d, _ := g.AddStep(textStep("D", 4, "d"), domain.Position{})
		g.insertEdge(c.ID, domain.DefaultOutput, d.ID, domain.DefaultInput)
		g.insertEdge(d.ID, domain.DefaultOutput, c.ID, domain.DefaultInput)

		_, err := g.ToDocument()
		assert.ErrorIs(t, err, domain.ErrDisconnected)
	})
}

func TestToDocument_RenumbersReorderedSteps(t *testing.T) {
	g := loaded(t, domain.FlowDocument{Name: "f", Steps: []domain.Step{
		textStep("A", 1, "a"), textStep("B", 2, "b"), textStep("C", 3, "c"),
	}})

	// Rewire A -> C -> B.
	for _, id := range []domain.EdgeID{1, 2} {
		_, err := g.RemoveEdge(id)
		require.NoError(t, err)
	}
	_, err := g.Connect(1, "output_1", 3, "input_1")
	require.NoError(t, err)
	_, err = g.Connect(3, "output_1", 2, "input_1")
	require.NoError(t, err)

	doc, err := g.ToDocument()
	require.NoError(t, err)
	require.Len(t, doc.Steps, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{doc.Steps[0].ID, doc.Steps[1].ID, doc.Steps[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{doc.Steps[0].Order, doc.Steps[1].Order, doc.Steps[2].Order})
}

func TestToDocument_DoesNotAlias(t *testing.T) {
	g := loaded(t, sampleDoc())
	doc, err := g.ToDocument()
	require.NoError(t, err)

	doc.Steps[1].Input.(domain.OptionsInput).Options[0] = "Maybe"

	again, err := g.ToDocument()
	require.NoError(t, err)
	assert.Equal(t, sampleDoc(), again)
}

func TestToDocument_RenumbersAfterEdit(t *testing.T) {
	doc := sampleDoc()
	doc.Steps[0].Order = 0
	doc.Steps[1].Order = 0
	g := loaded(t, doc)

	_, err := g.AddStep(textStep("C", 0, "Bye"), domain.Position{})
	require.NoError(t, err)
	_, err = g.Connect(2, domain.DefaultOutput, 3, domain.DefaultInput)
	require.NoError(t, err)

	got, err := g.ToDocument()
	require.NoError(t, err)
	require.Len(t, got.Steps, 3)
	for i, s := range got.Steps {
		assert.Equal(t, i+1, s.Order, s.ID)
	}
}

func TestNormalize(t *testing.T) {
	ordered := sampleDoc()
	assert.Equal(t, ordered, Normalize(ordered))

	unordered := sampleDoc()
	unordered.Steps[0].Order = 7
	unordered.Steps[1].Order = 7
	got := Normalize(unordered)
	assert.Equal(t, 1, got.Steps[0].Order)
	assert.Equal(t, 2, got.Steps[1].Order)
	assert.Equal(t, 7, unordered.Steps[0].Order, "input is not modified")

	blank := Normalize(domain.FlowDocument{Name: "blank"})
	assert.NotNil(t, blank.Steps)
	assert.Empty(t, blank.Steps)
}
