package manager

import "context"

// RestoreAll reconstructs every CRDT persisted in the manager's store
// and registers it, using factory to interpret each snapshot's type
// tag. Call it once after Init and before the manager starts serving
// traffic; ids already registered are left untouched.
func (m *Manager) RestoreAll(ctx context.Context) error {
	m.mu.RLock()
	readyErr := m.checkReady()
	factory := m.factory
	m.mu.RUnlock()
	if readyErr != nil {
		return readyErr
	}
	if factory == nil {
		return nil
	}

	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		m.mu.RLock()
		_, already := m.registry[id]
		m.mu.RUnlock()
		if already {
			continue
		}

		snap, err := m.store.Load(ctx, id)
		if err != nil {
			m.logger.Error().Err(err).Str("crdt_id", id).Msg("failed to load snapshot during restore")
			continue
		}
		c, err := factory.FromSnapshot(snap)
		if err != nil {
			m.logger.Error().Err(err).Str("crdt_id", id).Msg("failed to reconstruct crdt during restore")
			continue
		}

		m.mu.Lock()
		m.registry[id] = c
		count := len(m.registry)
		m.mu.Unlock()
		m.metrics.RegisteredCRDTs(count)
		m.events.publishUpdate(UpdateEvent{Kind: UpdateRegistered, CRDTID: id, Source: SourceLocal})
	}
	return nil
}
