package ports

import (
	"context"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// DocumentStore defines the interface for persisting flow documents.
// A save is a single round trip; callers never retry through this interface.
type DocumentStore interface {
	// Get retrieves the document with the given name.
	// Returns domain.ErrDocumentNotFound if the document does not exist.
	Get(ctx context.Context, name string) (domain.FlowDocument, error)

	// Save replaces the stored document atomically.
	Save(ctx context.Context, doc domain.FlowDocument) error

	// List returns the names of stored documents in ascending order.
	List(ctx context.Context) ([]string, error)
}
