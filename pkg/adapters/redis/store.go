package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/stepgraph/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "stepgraph:flow:"

// Store implements ports.DocumentStore using Redis.
// Documents are stored as JSON values; a sorted set indexes their names.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for documents.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save writes the document and its index entry in one MULTI/EXEC transaction.
func (s *Store) Save(ctx context.Context, doc domain.FlowDocument) error {
	if doc.Name == "" {
		return fmt.Errorf("document name cannot be empty")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.key(doc.Name), data, 0)
		// Equal scores keep ZRANGE in lexical order.
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: doc.Name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}

	return nil
}

// Get retrieves the document from Redis.
func (s *Store) Get(ctx context.Context, name string) (domain.FlowDocument, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.FlowDocument{}, domain.ErrDocumentNotFound
		}
		return domain.FlowDocument{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var doc domain.FlowDocument
	if err := json.Unmarshal(val, &doc); err != nil {
		return domain.FlowDocument{}, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return doc, nil
}

// List returns indexed document names in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return names, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
