package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// ErrShutdown is returned by GetOrStart once Shutdown was called.
var ErrShutdown = errors.New("session manager is shut down")

// Factory builds the assistant of a conversation. It must not start it.
type Factory func(conversationID string) (*parley.Assistant, error)

type entry struct {
	assistant *parley.Assistant
	done      chan struct{}
}

// Manager owns the running conversations of a process.
type Manager struct {
	factory Factory
	store   ports.SnapshotStore
	logger  *slog.Logger

	mu       sync.Mutex
	active   map[string]*entry
	closed   bool
	group    errgroup.Group
	ctx      context.Context
	stopRuns context.CancelFunc
}

// Option configures the Manager.
type Option func(*Manager)

// WithStore lets the manager report conversations that are not running.
func WithStore(store ports.SnapshotStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager building conversations with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		factory:  factory,
		active:   make(map[string]*entry),
		logger:   logging.NewNop(),
		ctx:      ctx,
		stopRuns: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the running assistant of a conversation.
func (m *Manager) Get(conversationID string) (*parley.Assistant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.active[conversationID]
	if !ok {
		return nil, false
	}
	return e.assistant, true
}

// GetOrStart returns the assistant of a conversation, starting it if needed.
func (m *Manager) GetOrStart(conversationID string) (*parley.Assistant, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: empty conversation id", domain.ErrNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	if e, ok := m.active[conversationID]; ok {
		return e.assistant, nil
	}

	a, err := m.factory(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation %s: %w", conversationID, err)
	}
	e := &entry{assistant: a, done: make(chan struct{})}
	m.active[conversationID] = e

	m.group.Go(func() error {
		defer close(e.done)
		err := a.Run(m.ctx)
		m.forget(conversationID, e)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Conversation stopped", "conversation_id", conversationID, "err", err)
			return nil
		}
		m.logger.Debug("Conversation stopped", "conversation_id", conversationID)
		return nil
	})
	m.logger.Info("Conversation started", "conversation_id", conversationID)
	return a, nil
}

func (m *Manager) forget(conversationID string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[conversationID] == e {
		delete(m.active, conversationID)
	}
}

// Stop closes a running conversation and waits for it to finish.
// Stopping a conversation that is not running is not an error.
func (m *Manager) Stop(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	e, ok := m.active[conversationID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	e.assistant.Close()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active lists the running conversations in lexical order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns the running conversations plus the stored ones.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	ids := m.Active()
	if m.store == nil {
		return ids, nil
	}
	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range stored {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Snapshot returns the live state of a running conversation, or the stored
// one otherwise.
func (m *Manager) Snapshot(ctx context.Context, conversationID string) (*domain.Snapshot, error) {
	if a, ok := m.Get(conversationID); ok {
		return a.Snapshot(), nil
	}
	if m.store == nil {
		return nil, domain.ErrNotFound
	}
	return m.store.Load(ctx, conversationID)
}

// Shutdown closes every conversation and waits for them, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	running := make([]*entry, 0, len(m.active))
	for _, e := range m.active {
		running = append(running, e)
	}
	m.mu.Unlock()

	for _, e := range running {
		e.assistant.Close()
	}

	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()
	select {
	case err := <-done:
		m.stopRuns()
		return err
	case <-ctx.Done():
		m.stopRuns()
		return ctx.Err()
	}
}
