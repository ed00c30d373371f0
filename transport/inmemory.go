package transport

import (
	"context"
	"sync"
)

// InMemory is a process-local Transport: every InMemory sharing the
// same Hub sees every other member's published envelopes. It exists
// for tests and the demo command, where no real network is wanted.
type InMemory struct {
	hub    *Hub
	nodeID string
	inbox  chan Envelope

	mu     sync.Mutex
	closed bool
}

// Hub is a shared rendezvous point a set of InMemory transports
// publish to and receive from, standing in for the peer-discovery a
// real gossip network would provide.
type Hub struct {
	mu      sync.Mutex
	members map[string]*InMemory
}

func NewHub() *Hub {
	return &Hub{members: make(map[string]*InMemory)}
}

// Join creates an InMemory transport for nodeID, registered against
// this hub. inboxSize bounds how many undelivered envelopes a member
// may accumulate before Publish starts blocking its sender.
func (h *Hub) Join(nodeID string, inboxSize int) *InMemory {
	t := &InMemory{
		hub:    h,
		nodeID: nodeID,
		inbox:  make(chan Envelope, inboxSize),
	}
	h.mu.Lock()
	h.members[nodeID] = t
	h.mu.Unlock()
	return t
}

func (h *Hub) leave(nodeID string) {
	h.mu.Lock()
	delete(h.members, nodeID)
	h.mu.Unlock()
}

func (t *InMemory) Publish(ctx context.Context, env Envelope) error {
	t.hub.mu.Lock()
	peers := make([]*InMemory, 0, len(t.hub.members))
	for id, peer := range t.hub.members {
		if id == t.nodeID {
			continue
		}
		peers = append(peers, peer)
	}
	t.hub.mu.Unlock()

	for _, peer := range peers {
		select {
		case peer.inbox <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *InMemory) Inbound() <-chan Envelope {
	return t.inbox
}

func (t *InMemory) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.hub.leave(t.nodeID)
	close(t.inbox)
	return nil
}
