package manager

import (
	"context"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/transport"
)

// dispatchLoop drains the transport's inbound channel until ctx is
// cancelled or the channel closes. Each envelope is handled in
// isolation: a malformed or inapplicable envelope is logged and
// skipped rather than torn down the loop.
func (m *Manager) dispatchLoop(ctx context.Context) {
	defer m.dispatchWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-m.transport.Inbound():
			if !ok {
				return
			}
			m.handleEnvelope(ctx, env)
		}
	}
}

func (m *Manager) handleEnvelope(ctx context.Context, env transport.Envelope) {
	switch env.Kind {
	case transport.KindOperation:
		m.handleOperationEnvelope(ctx, env)
	case transport.KindSync:
		m.handleSyncEnvelope(ctx, env, false)
	case transport.KindForceSync:
		m.handleSyncEnvelope(ctx, env, true)
	default:
		m.logger.Error().Str("kind", string(env.Kind)).Msg("dropping envelope of unknown kind")
	}
}

func (m *Manager) handleOperationEnvelope(ctx context.Context, env transport.Envelope) {
	op, err := operationFromPayload(env.Payload)
	if err != nil {
		m.logger.Error().Err(err).Str("crdt_id", env.CRDTID).Msg("dropping malformed operation envelope")
		return
	}

	m.mu.RLock()
	c, ok := m.registry[op.CRDTID]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug().Str("crdt_id", op.CRDTID).Msg("dropping operation for unregistered id")
		return
	}

	if err := c.ApplyOp(op); err != nil {
		m.metrics.OperationFailed(string(c.Type()))
		m.logger.Error().Err(err).Str("crdt_id", op.CRDTID).Str("operation", op.Op).Msg("failed to apply remote operation")
		m.events.publishOperation(OperationEvent{CRDTID: op.CRDTID, Operation: op.Op, NodeID: op.NodeID, Source: SourceRemote, Err: err})
		return
	}
	if err := m.store.Save(ctx, op.CRDTID, c.Snapshot()); err != nil {
		m.logger.Error().Err(err).Str("crdt_id", op.CRDTID).Msg("failed to persist after remote operation")
	}
	m.metrics.OperationApplied(string(c.Type()))
	m.events.publishOperation(OperationEvent{CRDTID: op.CRDTID, Operation: op.Op, NodeID: op.NodeID, Source: SourceRemote})
	m.events.publishUpdate(UpdateEvent{Kind: UpdateStateChanged, CRDTID: op.CRDTID, Source: SourceRemote})
}

func (m *Manager) handleSyncEnvelope(ctx context.Context, env transport.Envelope, forced bool) {
	if !forced {
		if target, ok := env.Payload["targetPeer"].(string); ok && target != "" && target != m.nodeID {
			return
		}
	}

	snaps, err := snapshotsFromPayload(env.Payload)
	if err != nil {
		m.logger.Error().Err(err).Str("peer", env.NodeID).Msg("dropping malformed sync envelope")
		return
	}

	source := SourceReceived
	if forced {
		source = SourceForcedReceived
	}

	for _, snap := range snaps {
		if err := m.mergeSnapshot(ctx, snap); err != nil {
			id, _ := snap["id"].(string)
			m.logger.Error().Err(err).Str("crdt_id", id).Msg("failed to merge snapshot from sync envelope")
			continue
		}
	}
	m.events.publishSync(SyncEvent{PeerID: env.NodeID, Source: source})
}

// mergeSnapshot merges snap into its registered CRDT. If a factory was
// supplied and no CRDT with that id is registered yet, it instead
// reconstructs and registers the CRDT from the snapshot.
func (m *Manager) mergeSnapshot(ctx context.Context, snap crdt.Snapshot) error {
	id, _ := snap["id"].(string)

	m.mu.RLock()
	c, ok := m.registry[id]
	m.mu.RUnlock()

	if !ok {
		if m.factory == nil {
			return nil
		}
		fresh, err := m.factory.FromSnapshot(snap)
		if err != nil {
			return err
		}
		if err := m.Register(ctx, fresh); err != nil {
			return err
		}
		m.metrics.SyncCompleted(string(fresh.Type()))
		return nil
	}

	if err := c.Merge(snap); err != nil {
		return err
	}
	if err := m.store.Save(ctx, id, c.Snapshot()); err != nil {
		return err
	}
	m.metrics.SyncCompleted(string(c.Type()))
	return nil
}

func operationFromPayload(payload map[string]any) (crdt.Operation, error) {
	crdtID, _ := payload["crdtId"].(string)
	opName, _ := payload["operation"].(string)
	nodeID, _ := payload["nodeId"].(string)
	opID, _ := payload["operationId"].(string)

	var timestamp int64
	switch t := payload["timestamp"].(type) {
	case int64:
		timestamp = t
	case float64:
		timestamp = int64(t)
	}

	var data crdt.Payload
	switch d := payload["data"].(type) {
	case map[string]any:
		data = crdt.Payload(d)
	case crdt.Payload:
		data = d
	default:
		data = crdt.Payload{}
	}

	return crdt.Operation{
		CRDTID:    crdtID,
		Op:        opName,
		Data:      data,
		NodeID:    nodeID,
		Timestamp: timestamp,
		OpID:      opID,
	}, nil
}

// snapshotsFromPayload parses a crdt_sync/crdt_force_sync envelope's
// "states" field (§6: "states: {id→snapshot}") into a flat list; the
// map's keys are redundant with each snapshot's own "id" field, so the
// rest of the dispatch path works off the list.
func snapshotsFromPayload(payload map[string]any) ([]crdt.Snapshot, error) {
	raw, ok := payload["states"]
	if !ok {
		return nil, nil
	}
	states, ok := raw.(map[string]crdt.Snapshot)
	if ok {
		out := make([]crdt.Snapshot, 0, len(states))
		for _, s := range states {
			out = append(out, s)
		}
		return out, nil
	}
	anyMap, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make([]crdt.Snapshot, 0, len(anyMap))
	for _, item := range anyMap {
		switch s := item.(type) {
		case crdt.Snapshot:
			out = append(out, s)
		case map[string]any:
			out = append(out, crdt.Snapshot(s))
		}
	}
	return out, nil
}
