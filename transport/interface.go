// Package transport defines the gossip transport contract the manager
// publishes operation and sync envelopes through, plus an in-process
// implementation for tests and the demo command.
package transport

import (
	"context"
	"errors"
)

// ErrNoTransport is returned by a transport that has not been wired to
// any peers: an explicit failure rather than a silently dropped send.
var ErrNoTransport = errors.New("transport: no peers reachable")

// EnvelopeKind names the three shapes of message the manager exchanges
// over gossip.
type EnvelopeKind string

const (
	KindOperation  EnvelopeKind = "crdt_operation"
	KindSync       EnvelopeKind = "crdt_sync"
	KindForceSync  EnvelopeKind = "crdt_force_sync"
)

// Envelope is a self-describing gossip message. Payload carries a
// JSON-compatible encoding of either an Operation or, for the two sync
// kinds, an id→snapshot map under "states", depending on Kind.
type Envelope struct {
	Kind      EnvelopeKind   `json:"kind"`
	CRDTID    string         `json:"crdtId"`
	NodeID    string         `json:"nodeId"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Transport is the thin contract the manager drives gossip through. A
// transport never interprets envelope contents; it moves bytes
// between replicas and hands inbound envelopes back unopened.
type Transport interface {
	// Publish broadcasts env to every reachable peer.
	Publish(ctx context.Context, env Envelope) error

	// Inbound returns a channel of envelopes received from peers. The
	// channel is closed when the transport is closed.
	Inbound() <-chan Envelope

	// Close releases the transport's resources and closes the Inbound
	// channel.
	Close() error
}
