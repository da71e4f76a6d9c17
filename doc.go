/*
Package stepgraph is the editing model behind a visual chatbot-flow builder.

A flow is persisted as an ordered list of typed steps (a FlowDocument). While it
is being edited, the flow is viewed as a graph of canvas nodes joined by directed
"next step" edges. The Editor converts between the two losslessly: loading a
document and serializing it again without edits reproduces the same steps.

# Concept

The Editor owns one editing session. Documents are read from and written to a
ports.DocumentStore through an explicit Open/Save lifecycle; every graph
mutation is synchronous and atomic, and every successful mutation is echoed as
a domain.CanvasCommand to the registered rendering surfaces.

# Key Features

  - Lossless round trip between step lists and canvas graphs.
  - Rejected operations leave the graph unchanged (cycles, duplicate edges, occupied ports).
  - Serialization refuses graphs that are not a single path (multiple roots, branches, placeholders).
  - Pluggable stores (memory, file, Redis, Loam) and surfaces (SSE, terminal).

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/stepgraph"
		"github.com/aretw0/stepgraph/pkg/adapters/memory"
		"github.com/aretw0/stepgraph/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		store := memory.NewStore()

		ed := stepgraph.New(store)
		if err := ed.Open(ctx, "welcome"); err != nil {
			log.Fatal(err)
		}

		// Drop a placeholder, give it content and chain it after the last step.
		n, _ := ed.AddNode(ctx, domain.KindMessage, domain.Position{X: 600, Y: 100})
		_, _ = ed.BindStep(ctx, n.ID, domain.Step{ID: "bye", Order: 99, Message: domain.TextMessage{Text: "Bye!"}})

		if err := ed.Save(ctx); err != nil {
			log.Printf("save failed, graph kept for retry: %v", err)
		}
	}
*/
package stepgraph
