package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// stamp is a (timestamp, replica) pair used for both add-stamps and
// remove-stamps in LWWMap.
type stamp struct {
	ts      int64
	replica string
	set     bool
}

func (s stamp) outranks(other stamp) bool {
	if !s.set {
		return false
	}
	if !other.set {
		return true
	}
	return outranks(s.ts, s.replica, other.ts, other.replica)
}

type lwwMapEntry struct {
	value  any
	add    stamp
	remove stamp
}

// LWWMap holds, per key, a value with an add-stamp and a remove-stamp.
// A key is present iff its add-stamp exists and strictly outranks its
// remove-stamp (same tie-break as LWWRegister). A tie between add-stamp
// and remove-stamp with the same replica id is deliberately treated as
// "neither outranks" (see outranks in lww.go), so the key is absent.
type LWWMap struct {
	mu      sync.RWMutex
	id      string
	entries map[string]*lwwMapEntry
}

func NewLWWMap(id string) *LWWMap {
	return &LWWMap{id: id, entries: make(map[string]*lwwMapEntry)}
}

func (m *LWWMap) ID() string    { return m.id }
func (m *LWWMap) Type() TypeTag { return TypeLWWMap }

func (m *LWWMap) entry(key string) *lwwMapEntry {
	e, ok := m.entries[key]
	if !ok {
		e = &lwwMapEntry{}
		m.entries[key] = e
	}
	return e
}

func (m *LWWMap) ApplyOp(op Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch op.Op {
	case "put":
		key, err := payloadString(op.Data, "key")
		if err != nil {
			return err
		}
		value, hasValue := op.Data["value"]
		if !hasValue {
			return fmt.Errorf("value: %w", crdterr.ErrInvalidPayload)
		}
		ts := op.Timestamp
		if f, ok, err := payloadFloat64(op.Data, "timestamp"); err != nil {
			return err
		} else if ok {
			ts = int64(f)
		}
		newStamp := stamp{ts: ts, replica: op.NodeID, set: true}

		e := m.entry(key)
		if newStamp.outranks(e.add) {
			e.value = value
			e.add = newStamp
		}
		return nil

	case "remove":
		key, err := payloadString(op.Data, "key")
		if err != nil {
			return err
		}
		ts := op.Timestamp
		if f, ok, err := payloadFloat64(op.Data, "timestamp"); err != nil {
			return err
		} else if ok {
			ts = int64(f)
		}
		newStamp := stamp{ts: ts, replica: op.NodeID, set: true}

		e := m.entry(key)
		if newStamp.outranks(e.remove) {
			e.remove = newStamp
		}
		return nil

	case "clear":
		ts := op.Timestamp
		newStamp := stamp{ts: ts, replica: op.NodeID, set: true}
		for _, e := range m.entries {
			if m.present(e) && newStamp.outranks(e.remove) {
				e.remove = newStamp
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func (m *LWWMap) present(e *lwwMapEntry) bool {
	return e.add.set && e.add.outranks(e.remove)
}

func (m *LWWMap) Value() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.entries))
	for k, e := range m.entries {
		if m.present(e) {
			out[k] = e.value
		}
	}
	return out
}

func stampToAny(s stamp) any {
	if !s.set {
		return nil
	}
	return map[string]any{"timestamp": s.ts, "replica": s.replica}
}

func anyToStamp(v any) (stamp, error) {
	if v == nil {
		return stamp{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return stamp{}, fmt.Errorf("stamp must be an object: %w", crdterr.ErrInvalidPayload)
	}
	ts, err := toInt64(m["timestamp"])
	if err != nil {
		return stamp{}, err
	}
	replica, _ := m["replica"].(string)
	return stamp{ts: ts, replica: replica, set: true}, nil
}

func (m *LWWMap) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make(map[string]any, len(m.entries))
	for k, e := range m.entries {
		entries[k] = map[string]any{
			"value":  e.value,
			"add":    stampToAny(e.add),
			"remove": stampToAny(e.remove),
		}
	}
	return Snapshot{
		"type":    string(TypeLWWMap),
		"id":      m.id,
		"entries": entries,
	}
}

func (m *LWWMap) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeLWWMap, m.id); err != nil {
		return err
	}
	entries, _, err := payloadMap(Payload(snap), "entries")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, raw := range entries {
		entryMap, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("entry for %s must be an object: %w", key, crdterr.ErrInvalidPayload)
		}
		addStamp, err := anyToStamp(entryMap["add"])
		if err != nil {
			return err
		}
		removeStamp, err := anyToStamp(entryMap["remove"])
		if err != nil {
			return err
		}

		e := m.entry(key)
		if addStamp.outranks(e.add) {
			e.value = entryMap["value"]
			e.add = addStamp
		}
		if removeStamp.outranks(e.remove) {
			e.remove = removeStamp
		}
	}
	return nil
}

func (m *LWWMap) Copy() CRDT {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dup := NewLWWMap(m.id)
	for k, e := range m.entries {
		cp := *e
		dup.entries[k] = &cp
	}
	return dup
}

func (m *LWWMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*lwwMapEntry)
}

func (m *LWWMap) Validate() error { return nil }

func (m *LWWMap) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "put", "remove", "clear":
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
	if data == nil {
		data = Payload{}
	}
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = timestamp
	}
	return NewOperation(m.id, name, data, origin, timestamp), nil
}

func LWWMapFromSnapshot(snap Snapshot) (*LWWMap, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	m := NewLWWMap(id)
	if err := m.Merge(snap); err != nil {
		return nil, err
	}
	return m, nil
}
