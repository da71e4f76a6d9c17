package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/adapters/file"
	"github.com/aretw0/stepgraph/internal/config"
	"github.com/aretw0/stepgraph/internal/logging"
	"github.com/aretw0/stepgraph/pkg/adapters/breaker"
	loamstore "github.com/aretw0/stepgraph/pkg/adapters/loam"
	"github.com/aretw0/stepgraph/pkg/adapters/memory"
	"github.com/aretw0/stepgraph/pkg/adapters/redis"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
)

// Services is the store stack shared by the commands.
type Services struct {
	Config config.Config
	Logger *slog.Logger
	Store  ports.DocumentStore
	// Locker is set only when distributed locking is enabled.
	Locker  ports.DistributedLocker
	closers []func() error
}

// Setup builds the document store described by cfg, wrapped in a circuit
// breaker when enabled.
func Setup(cfg config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Services{Config: cfg, Logger: logger}

	switch cfg.Store.Kind {
	case config.StoreMemory:
		s.Store = memory.NewStore()
	case config.StoreFile:
		s.Store = file.New(cfg.Store.Path)
	case config.StoreLoam:
		ls, err := loamstore.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open loam store: %w", err)
		}
		s.Store = ls
	case config.StoreRedis:
		rc := cfg.Store.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix))
		s.closers = append(s.closers, rs.Close)
		s.Store = rs
		if cfg.Session.DistributedLock {
			s.Locker = redis.NewLocker(rs.Client(), "")
		}
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	if bc := cfg.Store.Breaker; bc.Enabled {
		settings := breaker.DefaultConfig("store:" + cfg.Store.Kind)
		if bc.Timeout > 0 {
			settings.Timeout = bc.Timeout
		}
		if bc.ConsecutiveFailures > 0 {
			settings.ConsecutiveFailures = bc.ConsecutiveFailures
		}
		s.Store = breaker.New(s.Store, settings, breaker.WithLogger(logger))
	}

	logger.Debug("Store ready", "kind", cfg.Store.Kind, "path", cfg.Store.Path, "breaker", cfg.Store.Breaker.Enabled)
	return s, nil
}

// EditorOptions returns the editor options implied by the configuration.
func (s *Services) EditorOptions() []stepgraph.Option {
	l := s.Config.Layout
	return []stepgraph.Option{
		stepgraph.WithLogger(s.Logger),
		stepgraph.WithLayout(stepgraph.Layout{
			Origin:  domain.Position{X: l.OriginX, Y: l.OriginY},
			Spacing: l.Spacing,
		}),
	}
}

// Close releases backend connections.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
