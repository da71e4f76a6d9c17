package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/logging"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed save lock may be held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Info describes a live session.
type Info struct {
	ID        string    `json:"id"`
	Flow      string    `json:"flow"`
	Dirty     bool      `json:"dirty"`
	CreatedAt time.Time `json:"created_at"`
}

type entry struct {
	info   Info
	editor *stepgraph.Editor
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.DocumentStore

	mu       sync.Mutex            // guards sessions and locks
	sessions map[string]*entry     // live sessions by ID
	locks    map[string]*lockEntry // per-session operation locks

	locker     ports.DistributedLocker
	lockTTL    time.Duration
	editorOpts []stepgraph.Option
	surfaces   func(id string) ports.Surface
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking around saves.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEditorOptions applies options to every editor the Manager creates.
func WithEditorOptions(opts ...stepgraph.Option) Option {
	return func(m *Manager) {
		m.editorOpts = append(m.editorOpts, opts...)
	}
}

// WithSurfaceFactory attaches a rendering surface to every new session.
// The factory receives the session ID before the flow is loaded.
func WithSurfaceFactory(fn func(id string) ports.Surface) Option {
	return func(m *Manager) {
		m.surfaces = fn
	}
}

// NewManager creates a new Session Manager over the given document store.
func NewManager(store ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		sessions: make(map[string]*entry),
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying document store.
func (m *Manager) Store() ports.DocumentStore {
	return m.store
}

// Create opens flow in a new session and returns its ID.
// A flow missing from the store starts as an empty document with that name.
// Extra options are applied after the Manager's editor options.
func (m *Manager) Create(ctx context.Context, flow string, opts ...stepgraph.Option) (Info, error) {
	info := Info{ID: uuid.NewString(), Flow: flow, CreatedAt: m.now()}

	all := append([]stepgraph.Option{stepgraph.WithLogger(m.logger)}, m.editorOpts...)
	if m.surfaces != nil {
		all = append(all, stepgraph.WithSurface(m.surfaces(info.ID)))
	}
	ed := stepgraph.New(m.store, append(all, opts...)...)

	err := ed.Open(ctx, flow)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		err = ed.LoadDocument(ctx, domain.FlowDocument{Name: flow})
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to open flow %q: %w", flow, err)
	}

	m.mu.Lock()
	m.sessions[info.ID] = &entry{info: info, editor: ed}
	m.mu.Unlock()

	m.logger.Info("Session created", "session_id", info.ID, "flow", flow)
	return info, nil
}

// Get returns the current Info of a session.
func (m *Manager) Get(ctx context.Context, id string) (Info, error) {
	var info Info
	err := m.WithEditor(ctx, id, func(_ context.Context, ed *stepgraph.Editor) error {
		info = m.describe(id, ed)
		return nil
	})
	return info, err
}

// List returns every live session ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.info)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Close ends a session. Unsaved changes are discarded.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.withLock(id, func() error {
		m.mu.Lock()
		e, ok := m.sessions[id]
		delete(m.sessions, id)
		m.mu.Unlock()

		if !ok {
			return domain.ErrSessionNotFound
		}
		if e.editor.Dirty() {
			m.logger.Warn("Session closed with unsaved changes", "session_id", id, "flow", e.info.Flow)
		}
		return nil
	})
}

// WithEditor runs fn while holding the session lock.
// The editor must not be retained after fn returns.
func (m *Manager) WithEditor(ctx context.Context, id string, fn func(context.Context, *stepgraph.Editor) error) error {
	return m.withLock(id, func() error {
		m.mu.Lock()
		e, ok := m.sessions[id]
		m.mu.Unlock()
		if !ok {
			return domain.ErrSessionNotFound
		}
		return fn(ctx, e.editor)
	})
}

// Save writes the session's document. With a locker configured, the store
// round trip holds a distributed lock on the flow name.
func (m *Manager) Save(ctx context.Context, id string) error {
	return m.WithEditor(ctx, id, func(ctx context.Context, ed *stepgraph.Editor) error {
		if m.locker == nil {
			return ed.Save(ctx)
		}

		unlock, err := m.locker.Lock(ctx, "flow:"+ed.Name(), m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"flow", ed.Name(),
					"err", err,
				)
			}
		}()
		return ed.Save(ctx)
	})
}

func (m *Manager) describe(id string, ed *stepgraph.Editor) Info {
	m.mu.Lock()
	info := m.sessions[id].info
	m.mu.Unlock()
	info.Dirty = ed.Dirty()
	return info
}

// withLock executes fn while holding the operation lock for the session.
func (m *Manager) withLock(id string, fn func() error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()
	return fn()
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}
