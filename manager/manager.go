// Package manager implements the single entry point through which
// callers register CRDTs, route local operations, dispatch inbound
// gossip envelopes, and observe what happened via event streams.
package manager

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/crdterr"
	"github.com/da1nerd/gossip-crdts/metrics"
	"github.com/da1nerd/gossip-crdts/store"
	"github.com/da1nerd/gossip-crdts/transport"
)

// Lifecycle is the manager's state machine: Unstarted -> Initialised ->
// Closed. Closed is terminal.
type Lifecycle int

const (
	Unstarted Lifecycle = iota
	Initialised
	Closed
)

func (l Lifecycle) String() string {
	switch l {
	case Unstarted:
		return "Unstarted"
	case Initialised:
		return "Initialised"
	case Closed:
		return "Closed"
	default:
		return "unknown"
	}
}

// Manager is the sole mutator of every CRDT it has registered: callers
// reach registered state only through its operations.
type Manager struct {
	mu       sync.RWMutex
	state    Lifecycle
	nodeID   string
	registry map[string]crdt.CRDT

	store     store.Store
	transport transport.Transport
	factory   *crdt.Factory
	metrics   metrics.Recorder
	logger    zerolog.Logger
	clock     crdt.Clock

	events    *eventHub
	cancel    context.CancelFunc
	dispatchWG sync.WaitGroup
}

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithFactory supplies the CRDT factory used to reconstruct snapshots
// arriving for ids the manager does not yet have registered. Without
// one, RestoreAll cannot run and inbound snapshots for unregistered
// ids are dropped.
func WithFactory(f *crdt.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithMetrics overrides the default no-op Recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithLogger overrides the default disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEventBuffer overrides the default per-subscriber channel buffer
// size used by OnUpdate/OnOperation/OnSync.
func WithEventBuffer(size int) Option {
	return func(m *Manager) { m.events.bufferSize = size }
}

// WithClock overrides the default system clock used to timestamp
// locally originated operations.
func WithClock(c crdt.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// New constructs a Manager bound to nodeID, a state store, and a
// gossip transport. The manager starts Unstarted; call Init to begin
// processing inbound envelopes.
func New(nodeID string, st store.Store, tr transport.Transport, opts ...Option) *Manager {
	m := &Manager{
		nodeID:    nodeID,
		registry:  make(map[string]crdt.CRDT),
		store:     st,
		transport: tr,
		metrics:   metrics.NewNoopRecorder(),
		logger:    zerolog.Nop(),
		clock:     crdt.SystemClock,
		events:    newEventHub(64),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events.onDrop = func(stream string) { m.metrics.EventsDropped(stream) }
	return m
}

// NodeID returns the local replica id this manager publishes
// operations and sync envelopes under.
func (m *Manager) NodeID() string { return m.nodeID }

// Init transitions the manager to Initialised and starts the goroutine
// that dispatches inbound envelopes from the transport. Calling Init
// again while Initialised does nothing and returns nil; calling it
// after Close returns ErrAlreadyClosed.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		return crdterr.ErrAlreadyClosed
	}
	if m.state == Initialised {
		return nil
	}
	dispatchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = Initialised

	m.dispatchWG.Add(1)
	go m.dispatchLoop(dispatchCtx)
	return nil
}

// Close is idempotent. It stops the dispatch loop, closes the event
// streams, and closes the state store. The transport is owned by the
// caller and is not closed here.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == Closed {
		m.mu.Unlock()
		return nil
	}
	wasInitialised := m.state == Initialised
	m.state = Closed
	cancel := m.cancel
	m.mu.Unlock()

	if wasInitialised && cancel != nil {
		cancel()
		m.dispatchWG.Wait()
	}
	m.events.closeAll()
	return m.store.Close()
}

func (m *Manager) checkReady() error {
	switch m.state {
	case Unstarted:
		return crdterr.ErrNotInitialised
	case Closed:
		return crdterr.ErrAlreadyClosed
	default:
		return nil
	}
}

// Register adds c to the registry under c.ID(), persists its current
// snapshot, and emits a Registered update event. Registering an id
// that already has a CRDT fails with ErrDuplicateID.
func (m *Manager) Register(ctx context.Context, c crdt.CRDT) error {
	m.mu.Lock()
	if err := m.checkReady(); err != nil {
		m.mu.Unlock()
		return err
	}
	if _, exists := m.registry[c.ID()]; exists {
		m.mu.Unlock()
		return crdterr.ErrDuplicateID
	}
	m.registry[c.ID()] = c
	count := len(m.registry)
	m.mu.Unlock()

	if err := m.store.Save(ctx, c.ID(), c.Snapshot()); err != nil {
		return crdterr.NewStoreError("save", err)
	}
	m.metrics.RegisteredCRDTs(count)
	m.events.publishUpdate(UpdateEvent{Kind: UpdateRegistered, CRDTID: c.ID(), Source: SourceLocal})
	return nil
}

// Unregister detaches id from the registry without deleting its
// persisted state, returning whether anything was removed.
func (m *Manager) Unregister(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkReady(); err != nil {
		return false, err
	}
	if _, ok := m.registry[id]; !ok {
		return false, nil
	}
	delete(m.registry, id)
	m.metrics.RegisteredCRDTs(len(m.registry))
	m.events.publishUpdate(UpdateEvent{Kind: UpdateUnregistered, CRDTID: id, Source: SourceLocal})
	return true, nil
}

// GetByID returns the registered CRDT for id, if any.
func (m *Manager) GetByID(id string) (crdt.CRDT, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.registry[id]
	return c, ok
}

// ListIDs returns the ids of every currently registered CRDT.
func (m *Manager) ListIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.registry))
	for id := range m.registry {
		ids = append(ids, id)
	}
	return ids
}

// ListAll returns every currently registered CRDT.
func (m *Manager) ListAll() []crdt.CRDT {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]crdt.CRDT, 0, len(m.registry))
	for _, c := range m.registry {
		all = append(all, c)
	}
	return all
}
