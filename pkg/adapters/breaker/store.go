// Package breaker guards a DocumentStore with a circuit breaker.
//
// A tripped breaker fails fast with ErrOpenState instead of waiting on a backend
// that is already known to be down. Calls are never retried here: the caller
// decides whether to retry a failed save.
package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/sony/gobreaker"
)

// Config holds the breaker thresholds.
type Config struct {
	Name string
	// MaxRequests is how many calls pass while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker when exceeded.
	ConsecutiveFailures uint32
}

// DefaultConfig returns thresholds suited to an interactive editor.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            30 * time.Second,
		Timeout:             5 * time.Second,
		ConsecutiveFailures: 3,
	}
}

// Errors returned while the breaker refuses calls.
var (
	ErrOpenState       = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Store decorates a DocumentStore.
type Store struct {
	next   ports.DocumentStore
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger logs breaker state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps next with a circuit breaker.
func New(next ports.DocumentStore, cfg Config, opts ...Option) *Store {
	s := &Store{next: next}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// A missing document or a cancelled caller says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrDocumentNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
	return s
}

// State reports the breaker state ("closed", "half-open" or "open").
func (s *Store) State() string {
	return s.cb.State().String()
}

// Save implements ports.DocumentStore.
func (s *Store) Save(ctx context.Context, doc domain.FlowDocument) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Save(ctx, doc)
	})
	return err
}

// Get implements ports.DocumentStore.
func (s *Store) Get(ctx context.Context, name string) (domain.FlowDocument, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Get(ctx, name)
	})
	if err != nil {
		return domain.FlowDocument{}, err
	}
	return res.(domain.FlowDocument), nil
}

// List implements ports.DocumentStore.
func (s *Store) List(ctx context.Context) ([]string, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}
