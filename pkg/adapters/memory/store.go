package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Store implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.FlowDocument
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store seeded with the given documents.
func NewStore(seed ...domain.FlowDocument) *Store {
	s := &Store{
		data: make(map[string]domain.FlowDocument, len(seed)),
	}
	for _, doc := range seed {
		s.data[doc.Name] = doc.Clone()
	}
	return s
}

// Save persists the document in memory.
func (s *Store) Save(ctx context.Context, doc domain.FlowDocument) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := doc.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[doc.Name] = copied
	return nil
}

// Get retrieves the document from memory.
func (s *Store) Get(ctx context.Context, name string) (domain.FlowDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[name]
	if !ok {
		return domain.FlowDocument{}, domain.ErrDocumentNotFound
	}

	// Copy on read so callers can't mutate store state through shared slices
	return doc.Clone(), nil
}

// List returns stored document names in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
