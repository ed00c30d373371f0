package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// ORMap is an OR-Set over keys, where each present key owns an inner
// CRDT that is merged recursively. New inner CRDTs are built through a
// factory; without one configured, add fails with ErrFactoryMissing.
type ORMap struct {
	mu      sync.RWMutex
	id      string
	clock   Clock
	factory *Factory

	tags    map[string]map[string]struct{}
	removed map[string]struct{}
	values  map[string]CRDT
}

// NewORMap creates an empty OR-Map using the default system clock for
// tag generation.
func NewORMap(id string, factory *Factory) *ORMap {
	return NewORMapWithClock(id, factory, SystemClock)
}

// NewORMapWithClock creates an empty OR-Map with an injected clock,
// for deterministic tests, matching NewORSetWithClock/NewRGAWithClock.
func NewORMapWithClock(id string, factory *Factory, clock Clock) *ORMap {
	return &ORMap{
		id:      id,
		clock:   clock,
		factory: factory,
		tags:    make(map[string]map[string]struct{}),
		removed: make(map[string]struct{}),
		values:  make(map[string]CRDT),
	}
}

func (m *ORMap) ID() string    { return m.id }
func (m *ORMap) Type() TypeTag { return TypeORMap }

func (m *ORMap) isPresent(key string) bool {
	for t := range m.tags[key] {
		if _, gone := m.removed[t]; !gone {
			return true
		}
	}
	return false
}

func (m *ORMap) ApplyOp(op Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch op.Op {
	case "add":
		key, err := payloadString(op.Data, "key")
		if err != nil {
			return err
		}
		typeStr, err := payloadString(op.Data, "crdtType")
		if err != nil {
			return err
		}
		crdtID, err := payloadString(op.Data, "crdtId")
		if err != nil {
			return err
		}
		tag, hasTag, err := payloadStringOptional(op.Data, "tag")
		if err != nil {
			return err
		}
		if !hasTag {
			tag = GenerateTag(m.clock, op.NodeID)
		}

		if m.factory == nil {
			return crdterr.ErrFactoryMissing
		}
		if _, exists := m.values[key]; !exists {
			inner, err := m.factory.New(crdtID, TypeTag(typeStr))
			if err != nil {
				return err
			}
			m.values[key] = inner
		}
		if m.tags[key] == nil {
			m.tags[key] = make(map[string]struct{})
		}
		m.tags[key][tag] = struct{}{}
		return nil

	case "remove":
		key, err := payloadString(op.Data, "key")
		if err != nil {
			return err
		}
		tag, hasTag, err := payloadStringOptional(op.Data, "tag")
		if err != nil {
			return err
		}
		if hasTag {
			m.removed[tag] = struct{}{}
			return nil
		}
		for t := range m.tags[key] {
			m.removed[t] = struct{}{}
		}
		return nil

	case "updateValue":
		key, err := payloadString(op.Data, "key")
		if err != nil {
			return err
		}
		if !m.isPresent(key) {
			return nil
		}
		inner, ok := m.values[key]
		if !ok {
			return nil
		}
		rawOp, ok, err := payloadMap(op.Data, "valueOperation")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("valueOperation: %w", crdterr.ErrInvalidPayload)
		}
		innerOpName, _ := rawOp["operation"].(string)
		innerData, _ := rawOp["data"].(map[string]any)
		innerOp := NewOperation(inner.ID(), innerOpName, Payload(innerData), op.NodeID, op.Timestamp)
		return inner.ApplyOp(innerOp)

	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func (m *ORMap) Value() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values))
	for key, inner := range m.values {
		if m.isPresent(key) {
			out[key] = inner.Value()
		}
	}
	return out
}

func (m *ORMap) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tagsOut := make(map[string]any, len(m.tags))
	for key, tagset := range m.tags {
		tagsOut[key] = stringSetToSlice(tagset)
	}
	valuesOut := make(map[string]any, len(m.values))
	for key, inner := range m.values {
		valuesOut[key] = map[string]any(inner.Snapshot())
	}
	return Snapshot{
		"type":    string(TypeORMap),
		"id":      m.id,
		"tags":    tagsOut,
		"removed": stringSetToSlice(m.removed),
		"values":  valuesOut,
	}
}

func (m *ORMap) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeORMap, m.id); err != nil {
		return err
	}
	tags, _, err := payloadMap(Payload(snap), "tags")
	if err != nil {
		return err
	}
	removed, _, err := payloadStringSlice(Payload(snap), "removed")
	if err != nil {
		return err
	}
	values, _, err := payloadMap(Payload(snap), "values")
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rawTags := range tags {
		tagList, err := asStringSlice(rawTags)
		if err != nil {
			return err
		}
		if m.tags[key] == nil {
			m.tags[key] = make(map[string]struct{})
		}
		for _, t := range tagList {
			m.tags[key][t] = struct{}{}
		}
	}
	for _, t := range removed {
		m.removed[t] = struct{}{}
	}

	for key, rawInner := range values {
		innerSnap, ok := rawInner.(map[string]any)
		if !ok {
			return fmt.Errorf("inner snapshot for %s must be an object: %w", key, crdterr.ErrInvalidPayload)
		}
		if existing, ok := m.values[key]; ok {
			if err := existing.Merge(Snapshot(innerSnap)); err != nil {
				return err
			}
			continue
		}
		if m.factory == nil {
			// Open question 3: without a factory we cannot
			// construct the inner CRDT. We keep the tag/removed
			// bookkeeping (already merged above) and skip the
			// value, leaving it to be filled in once a factory
			// is registered and the snapshot is re-merged.
			continue
		}
		innerTyp, _ := innerSnap["type"].(string)
		innerID, _ := innerSnap["id"].(string)
		inner, err := m.factory.New(innerID, TypeTag(innerTyp))
		if err != nil {
			return err
		}
		if err := inner.Merge(Snapshot(innerSnap)); err != nil {
			return err
		}
		m.values[key] = inner
	}
	return nil
}

func (m *ORMap) Copy() CRDT {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dup := NewORMapWithClock(m.id, m.factory, m.clock)
	for key, tagset := range m.tags {
		dup.tags[key] = make(map[string]struct{}, len(tagset))
		for t := range tagset {
			dup.tags[key][t] = struct{}{}
		}
	}
	for t := range m.removed {
		dup.removed[t] = struct{}{}
	}
	for key, inner := range m.values {
		dup.values[key] = inner.Copy()
	}
	return dup
}

func (m *ORMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = make(map[string]map[string]struct{})
	m.removed = make(map[string]struct{})
	m.values = make(map[string]CRDT)
}

// Validate checks that every removed tag has a matching add (as
// OR-Set) and that every tagged, present key with a known inner CRDT
// passes that CRDT's own validate. A tagged key whose inner CRDT could
// not be constructed (open question 3, no factory at merge time) is
// not itself a violation.
func (m *ORMap) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tagset := range m.tags {
		for t := range tagset {
			seen[t] = struct{}{}
		}
	}
	for t := range m.removed {
		if _, ok := seen[t]; !ok {
			return fmt.Errorf("removed tag %s has no matching add: %w", t, crdterr.ErrInvariantViolated)
		}
	}
	for key, inner := range m.values {
		if !m.isPresent(key) {
			continue
		}
		if err := inner.Validate(); err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
	}
	return nil
}

// CreateOp pre-generates an add's tag, so the op record replayed on
// any replica carries the same tag rather than each ApplyOp minting
// its own (see ApplyOp's "add" case).
func (m *ORMap) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "add":
		out := clonePayload(data)
		if _, hasTag := out["tag"]; !hasTag {
			out["tag"] = GenerateTag(m.clock, origin)
		}
		return NewOperation(m.id, name, out, origin, timestamp), nil
	case "remove", "updateValue":
		return NewOperation(m.id, name, data, origin, timestamp), nil
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
}

// GetInner returns the inner CRDT stored under key, if present.
func (m *ORMap) GetInner(key string) (CRDT, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.isPresent(key) {
		return nil, false
	}
	inner, ok := m.values[key]
	return inner, ok
}

func ORMapFromSnapshot(snap Snapshot, factory *Factory) (*ORMap, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	m := NewORMap(id, factory)
	if err := m.Merge(snap); err != nil {
		return nil, err
	}
	return m, nil
}
