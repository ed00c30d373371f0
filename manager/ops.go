package manager

import (
	"context"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/crdterr"
	"github.com/da1nerd/gossip-crdts/transport"
)

// PerformOperation applies a locally originated operation to the
// registered CRDT id, persists the result, publishes it over the
// transport, and emits operation and update events tagged Local.
func (m *Manager) PerformOperation(ctx context.Context, id, opName string, data crdt.Payload) error {
	m.mu.RLock()
	readyErr := m.checkReady()
	c, ok := m.registry[id]
	m.mu.RUnlock()
	if readyErr != nil {
		return readyErr
	}
	if !ok {
		return crdterr.ErrNotFound
	}

	op, err := c.CreateOp(opName, data, m.nodeID, m.clock.NowMillis())
	if err != nil {
		m.metrics.OperationFailed(string(c.Type()))
		return err
	}
	if err := c.ApplyOp(op); err != nil {
		m.metrics.OperationFailed(string(c.Type()))
		wrapped := crdterr.NewOperationFailed(id, opName, err)
		m.events.publishOperation(OperationEvent{CRDTID: id, Operation: opName, NodeID: m.nodeID, Source: SourceLocal, Err: wrapped})
		return wrapped
	}

	if err := m.store.Save(ctx, id, c.Snapshot()); err != nil {
		return crdterr.NewStoreError("save", err)
	}
	m.metrics.OperationApplied(string(c.Type()))

	env := transport.Envelope{
		Kind:      transport.KindOperation,
		CRDTID:    id,
		NodeID:    m.nodeID,
		Timestamp: op.Timestamp,
		Payload:   operationToPayload(op),
	}
	if err := m.transport.Publish(ctx, env); err != nil {
		m.logger.Error().Err(err).Str("crdt_id", id).Msg("failed to publish operation")
	}

	m.events.publishOperation(OperationEvent{CRDTID: id, Operation: opName, NodeID: m.nodeID, Source: SourceLocal})
	m.events.publishUpdate(UpdateEvent{Kind: UpdateStateChanged, CRDTID: id, Source: SourceLocal})
	return nil
}

// SyncWith publishes a crdt_sync envelope addressed to peerID carrying
// the current snapshot of every registered CRDT.
func (m *Manager) SyncWith(ctx context.Context, peerID string) error {
	m.mu.RLock()
	if err := m.checkReady(); err != nil {
		m.mu.RUnlock()
		return err
	}
	states := m.snapshotAllLocked()
	m.mu.RUnlock()

	env := transport.Envelope{
		Kind:      transport.KindSync,
		NodeID:    m.nodeID,
		Timestamp: m.clock.NowMillis(),
		Payload: map[string]any{
			"targetPeer": peerID,
			"states":     states,
		},
	}
	if err := m.transport.Publish(ctx, env); err != nil {
		return err
	}
	m.events.publishSync(SyncEvent{PeerID: peerID, Source: SourceLocal})
	return nil
}

// ForceSync publishes a crdt_force_sync envelope carrying the current
// snapshot of every registered CRDT to every reachable peer.
func (m *Manager) ForceSync(ctx context.Context) error {
	m.mu.RLock()
	if err := m.checkReady(); err != nil {
		m.mu.RUnlock()
		return err
	}
	states := m.snapshotAllLocked()
	m.mu.RUnlock()

	env := transport.Envelope{
		Kind:      transport.KindForceSync,
		NodeID:    m.nodeID,
		Timestamp: m.clock.NowMillis(),
		Payload: map[string]any{
			"states": states,
		},
	}
	if err := m.transport.Publish(ctx, env); err != nil {
		return err
	}
	m.events.publishSync(SyncEvent{Source: SourceLocal})
	return nil
}

// snapshotAllLocked builds the id→snapshot mapping §6 specifies for a
// crdt_sync/crdt_force_sync envelope's "states" field. Caller holds
// at least a read lock.
func (m *Manager) snapshotAllLocked() map[string]crdt.Snapshot {
	states := make(map[string]crdt.Snapshot, len(m.registry))
	for id, c := range m.registry {
		states[id] = c.Snapshot()
	}
	return states
}

func operationToPayload(op crdt.Operation) map[string]any {
	return map[string]any{
		"crdtId":      op.CRDTID,
		"operation":   op.Op,
		"data":        map[string]any(op.Data),
		"nodeId":      op.NodeID,
		"timestamp":   op.Timestamp,
		"operationId": op.OpID,
	}
}
