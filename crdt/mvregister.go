package crdt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// VectorClock maps replica id to a non-negative logical count.
type VectorClock map[string]int64

// Dominates reports whether a dominates b: a[r] >= b[r] for every
// replica r in either clock, and a[r] > b[r] for at least one r.
// Missing keys are treated as 0.
func (a VectorClock) Dominates(b VectorClock) bool {
	strictlyGreater := false
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if a[k] < b[k] {
			return false
		}
		if a[k] > b[k] {
			strictlyGreater = true
		}
	}
	return strictlyGreater
}

// mvEntry is one element of the concurrent-value residual set.
type mvEntry struct {
	value any
	clock VectorClock
}

// MVRegister keeps the antichain of concurrently written (value, clock)
// pairs: no stored clock strictly dominates another after any sequence
// of sets and merges.
type MVRegister struct {
	mu      sync.RWMutex
	id      string
	entries []mvEntry
}

func NewMVRegister(id string) *MVRegister {
	return &MVRegister{id: id}
}

func (r *MVRegister) ID() string    { return r.id }
func (r *MVRegister) Type() TypeTag { return TypeMVRegister }

// clockEqual reports whether a and b hold exactly the same counts,
// including replicas present in only one of them (treated as 0).
func clockEqual(a, b VectorClock) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

// setLocked applies the dominance rule for an incoming (value, clock)
// pair against the current residual set, keyed by value per the
// mapping described in §3. Caller holds r.mu.
func (r *MVRegister) setLocked(value any, clock VectorClock) {
	key, err := canonicalElement(value)
	if err != nil {
		return
	}
	kept := make([]mvEntry, 0, len(r.entries))
	duplicate := false
	for _, e := range r.entries {
		if clock.Dominates(e.clock) {
			continue // superseded by the incoming write
		}
		if e.clock.Dominates(clock) {
			// incoming write is stale; drop it entirely and
			// leave the residual set untouched
			return
		}
		if ek, err := canonicalElement(e.value); err == nil && ek == key && clockEqual(clock, e.clock) {
			// already present under an equal clock; re-merging
			// the same write must not duplicate the entry
			duplicate = true
		}
		kept = append(kept, e)
	}
	if !duplicate {
		kept = append(kept, mvEntry{value: value, clock: clock})
	}
	r.entries = kept
}

func (r *MVRegister) ApplyOp(op Operation) error {
	switch op.Op {
	case "set":
		value, ok := op.Data["value"]
		if !ok {
			return fmt.Errorf("value: %w", crdterr.ErrInvalidPayload)
		}
		rawClock, ok, err := payloadMap(op.Data, "vectorClock")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("vectorClock: %w", crdterr.ErrInvalidPayload)
		}
		clock, err := toVectorClock(rawClock)
		if err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.setLocked(value, clock)
		return nil

	case "remove":
		value, ok := op.Data["value"]
		if !ok {
			return fmt.Errorf("value: %w", crdterr.ErrInvalidPayload)
		}
		key, err := canonicalElement(value)
		if err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		kept := make([]mvEntry, 0, len(r.entries))
		for _, e := range r.entries {
			k, err := canonicalElement(e.value)
			if err != nil {
				return err
			}
			if k != key {
				kept = append(kept, e)
			}
		}
		r.entries = kept
		return nil

	case "clear":
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = nil
		return nil

	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func toVectorClock(m map[string]any) (VectorClock, error) {
	vc := make(VectorClock, len(m))
	for k, v := range m {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		vc[k] = n
	}
	return vc, nil
}

// Value returns the set of concurrently held values.
func (r *MVRegister) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]any, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.value)
	}
	return out
}

func (r *MVRegister) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make(map[string]any, len(r.entries))
	for _, e := range r.entries {
		key, _ := canonicalElement(e.value)
		clockAny := make(map[string]any, len(e.clock))
		for k, v := range e.clock {
			clockAny[k] = v
		}
		values[key] = clockAny
	}
	return Snapshot{
		"type":   string(TypeMVRegister),
		"id":     r.id,
		"values": values,
	}
}

func (r *MVRegister) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeMVRegister, r.id); err != nil {
		return err
	}
	values, _, err := payloadMap(Payload(snap), "values")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rawClock := range values {
		clockMap, ok := rawClock.(map[string]any)
		if !ok {
			return fmt.Errorf("clock for %s must be an object: %w", key, crdterr.ErrInvalidPayload)
		}
		clock, err := toVectorClock(clockMap)
		if err != nil {
			return err
		}
		var value any
		if err := json.Unmarshal([]byte(key), &value); err != nil {
			return fmt.Errorf("decoding value key: %w", crdterr.ErrInvalidPayload)
		}
		r.setLocked(value, clock)
	}
	return nil
}

func (r *MVRegister) Copy() CRDT {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dup := NewMVRegister(r.id)
	dup.entries = make([]mvEntry, len(r.entries))
	for i, e := range r.entries {
		clock := make(VectorClock, len(e.clock))
		for k, v := range e.clock {
			clock[k] = v
		}
		dup.entries[i] = mvEntry{value: e.value, clock: clock}
	}
	return dup
}

func (r *MVRegister) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Validate checks invariant 4: the residual set is an antichain.
func (r *MVRegister) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entries {
		for j := range r.entries {
			if i == j {
				continue
			}
			if r.entries[i].clock.Dominates(r.entries[j].clock) {
				return fmt.Errorf("entry %d dominates entry %d: %w", i, j, crdterr.ErrInvariantViolated)
			}
		}
	}
	return nil
}

func (r *MVRegister) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "set", "remove", "clear":
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
	return NewOperation(r.id, name, data, origin, timestamp), nil
}

// Resolve picks a single value out of the current concurrent set using
// pick, and returns a new register holding only that value under a
// clock that strictly dominates every predecessor: the element-wise max
// of all residual clocks, with resolvingReplica's own component
// incremented.
func (r *MVRegister) Resolve(pick func(values []any) any, resolvingReplica string) *MVRegister {
	r.mu.RLock()
	values := make([]any, 0, len(r.entries))
	maxClock := make(VectorClock)
	for _, e := range r.entries {
		values = append(values, e.value)
		for k, v := range e.clock {
			if v > maxClock[k] {
				maxClock[k] = v
			}
		}
	}
	r.mu.RUnlock()

	chosen := pick(values)
	maxClock[resolvingReplica]++

	out := NewMVRegister(r.id)
	out.entries = []mvEntry{{value: chosen, clock: maxClock}}
	return out
}

func MVRegisterFromSnapshot(snap Snapshot) (*MVRegister, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	r := NewMVRegister(id)
	if err := r.Merge(snap); err != nil {
		return nil, err
	}
	return r, nil
}
