package manager

import "sync"

// EventSource distinguishes an event caused by a local call from one
// that arrived over gossip.
type EventSource string

const (
	SourceLocal          EventSource = "local"
	SourceRemote         EventSource = "remote"
	SourceReceived       EventSource = "received"
	SourceForcedReceived EventSource = "forced_received"
)

// UpdateKind names what changed about a CRDT's registration or state.
type UpdateKind string

const (
	UpdateRegistered   UpdateKind = "registered"
	UpdateUnregistered UpdateKind = "unregistered"
	UpdateStateChanged UpdateKind = "state_changed"
)

// UpdateEvent is published whenever a registered CRDT's membership or
// state changes, whatever the cause.
type UpdateEvent struct {
	Kind   UpdateKind
	CRDTID string
	Source EventSource
}

// OperationEvent is published whenever an operation is applied to a
// registered CRDT, locally or received from a peer.
type OperationEvent struct {
	CRDTID    string
	Operation string
	NodeID    string
	Source    EventSource
	Err       error
}

// SyncEvent is published whenever a sync or forceSync exchange
// completes, locally initiated or received.
type SyncEvent struct {
	PeerID string
	Source EventSource
	Err    error
}

// eventHub fans each published event out to every current subscriber's
// channel. When a subscriber's buffer is full, its oldest buffered event
// is dropped to make room (see sendDropOldest) rather than blocking the
// publisher.
type eventHub struct {
	mu         sync.Mutex
	bufferSize int
	update     []chan UpdateEvent
	operation  []chan OperationEvent
	sync       []chan SyncEvent
	onDrop     func(stream string)
}

func newEventHub(bufferSize int) *eventHub {
	return &eventHub{bufferSize: bufferSize}
}

func (h *eventHub) subscribeUpdate() <-chan UpdateEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan UpdateEvent, h.bufferSize)
	h.update = append(h.update, ch)
	return ch
}

func (h *eventHub) subscribeOperation() <-chan OperationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan OperationEvent, h.bufferSize)
	h.operation = append(h.operation, ch)
	return ch
}

func (h *eventHub) subscribeSync() <-chan SyncEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan SyncEvent, h.bufferSize)
	h.sync = append(h.sync, ch)
	return ch
}

// sendDropOldest pushes ev onto ch. If ch is full, it discards the
// oldest buffered event to make room rather than the new one, so a
// slow subscriber always sees the most recent state instead of
// stalling on history.
func sendDropOldest[T any](ch chan T, ev T, onDrop func()) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
		if onDrop != nil {
			onDrop()
		}
	default:
	}
	select {
	case ch <- ev:
	default:
		// Another goroutine refilled the slot between our drain and
		// our send; drop the new event rather than block.
		if onDrop != nil {
			onDrop()
		}
	}
}

func (h *eventHub) publishUpdate(ev UpdateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.update {
		sendDropOldest(ch, ev, func() {
			if h.onDrop != nil {
				h.onDrop("update")
			}
		})
	}
}

func (h *eventHub) publishOperation(ev OperationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.operation {
		sendDropOldest(ch, ev, func() {
			if h.onDrop != nil {
				h.onDrop("operation")
			}
		})
	}
}

func (h *eventHub) publishSync(ev SyncEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.sync {
		sendDropOldest(ch, ev, func() {
			if h.onDrop != nil {
				h.onDrop("sync")
			}
		})
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.update {
		close(ch)
	}
	for _, ch := range h.operation {
		close(ch)
	}
	for _, ch := range h.sync {
		close(ch)
	}
	h.update = nil
	h.operation = nil
	h.sync = nil
}

// OnUpdate subscribes to registration and state-change events. The
// returned channel is closed when the manager is closed.
func (m *Manager) OnUpdate() <-chan UpdateEvent { return m.events.subscribeUpdate() }

// OnOperation subscribes to applied-operation events, local and remote.
func (m *Manager) OnOperation() <-chan OperationEvent { return m.events.subscribeOperation() }

// OnSync subscribes to sync/forceSync completion events, local and
// received.
func (m *Manager) OnSync() <-chan SyncEvent { return m.events.subscribeSync() }
