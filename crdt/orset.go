package crdt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// ORSet is an observed-remove set: each add is tagged with a unique id,
// and a remove marks specific tags as removed rather than deleting the
// element outright. An element is present iff at least one of its tags
// is not removed: a remove can never erase an add it did not observe.
type ORSet struct {
	mu    sync.RWMutex
	id    string
	clock Clock

	// tags maps a canonical element encoding to the set of add-tags
	// observed for it.
	tags map[string]map[string]struct{}
	// removed is the set of tags marked removed, independent of
	// which element they belong to. A tag here is retained even if
	// its element's tag set later becomes empty, so that late-
	// arriving adds carrying the same tag (replayed ops, redelivery)
	// stay removed.
	removed map[string]struct{}
}

// NewORSet creates an empty OR-Set using the default system clock for
// tag generation.
func NewORSet(id string) *ORSet {
	return NewORSetWithClock(id, SystemClock)
}

// NewORSetWithClock creates an empty OR-Set with an injected clock,
// for deterministic tests.
func NewORSetWithClock(id string, clock Clock) *ORSet {
	return &ORSet{
		id:      id,
		clock:   clock,
		tags:    make(map[string]map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

func (s *ORSet) ID() string    { return s.id }
func (s *ORSet) Type() TypeTag { return TypeORSet }

func (s *ORSet) ApplyOp(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op.Op {
	case "add":
		v, ok := op.Data["element"]
		if !ok {
			return fmt.Errorf("element: %w", crdterr.ErrInvalidPayload)
		}
		key, err := canonicalElement(v)
		if err != nil {
			return err
		}
		tag, hasTag, err := payloadStringOptional(op.Data, "tag")
		if err != nil {
			return err
		}
		if !hasTag {
			tag = GenerateTag(s.clock, op.NodeID)
		}
		if s.tags[key] == nil {
			s.tags[key] = make(map[string]struct{})
		}
		s.tags[key][tag] = struct{}{}
		return nil

	case "remove":
		v, ok := op.Data["element"]
		if !ok {
			return fmt.Errorf("element: %w", crdterr.ErrInvalidPayload)
		}
		key, err := canonicalElement(v)
		if err != nil {
			return err
		}
		tag, hasTag, err := payloadStringOptional(op.Data, "tag")
		if err != nil {
			return err
		}
		if hasTag {
			s.removed[tag] = struct{}{}
			return nil
		}
		for t := range s.tags[key] {
			s.removed[t] = struct{}{}
		}
		return nil

	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func (s *ORSet) isPresent(key string) bool {
	for t := range s.tags[key] {
		if _, gone := s.removed[t]; !gone {
			return true
		}
	}
	return false
}

func (s *ORSet) Value() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, 0, len(s.tags))
	for key := range s.tags {
		if s.isPresent(key) {
			var v any
			_ = json.Unmarshal([]byte(key), &v)
			out = append(out, v)
		}
	}
	return out
}

func (s *ORSet) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elements := make(map[string]any, len(s.tags))
	for key, tagset := range s.tags {
		elements[key] = stringSetToSlice(tagset)
	}
	return Snapshot{
		"type":     string(TypeORSet),
		"id":       s.id,
		"elements": elements,
		"removed":  stringSetToSlice(s.removed),
	}
}

func (s *ORSet) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeORSet, s.id); err != nil {
		return err
	}
	elements, _, err := payloadMap(Payload(snap), "elements")
	if err != nil {
		return err
	}
	removed, _, err := payloadStringSlice(Payload(snap), "removed")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rawTags := range elements {
		tagList, err := asStringSlice(rawTags)
		if err != nil {
			return err
		}
		if s.tags[key] == nil {
			s.tags[key] = make(map[string]struct{})
		}
		for _, t := range tagList {
			s.tags[key][t] = struct{}{}
		}
	}
	for _, t := range removed {
		s.removed[t] = struct{}{}
	}
	return nil
}

func asStringSlice(v any) ([]string, error) {
	switch raw := v.(type) {
	case []string:
		return raw, nil
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tag list must be strings: %w", crdterr.ErrInvalidPayload)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tag list must be a list: %w", crdterr.ErrInvalidPayload)
	}
}

func (s *ORSet) Copy() CRDT {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dup := NewORSetWithClock(s.id, s.clock)
	for key, tagset := range s.tags {
		dup.tags[key] = make(map[string]struct{}, len(tagset))
		for t := range tagset {
			dup.tags[key][t] = struct{}{}
		}
	}
	for t := range s.removed {
		dup.removed[t] = struct{}{}
	}
	return dup
}

func (s *ORSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = make(map[string]map[string]struct{})
	s.removed = make(map[string]struct{})
}

// Validate checks that every removed tag still appears in some
// element's tag set: no orphan tombstones.
func (s *ORSet) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tagset := range s.tags {
		for t := range tagset {
			seen[t] = struct{}{}
		}
	}
	for t := range s.removed {
		if _, ok := seen[t]; !ok {
			return fmt.Errorf("removed tag %s has no matching add: %w", t, crdterr.ErrInvariantViolated)
		}
	}
	return nil
}

// CreateOp pre-generates an add's tag, so the op record replayed on
// any replica carries the same tag rather than each ApplyOp minting
// its own (see ApplyOp's "add" case).
func (s *ORSet) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "add":
		out := clonePayload(data)
		if _, hasTag := out["tag"]; !hasTag {
			out["tag"] = GenerateTag(s.clock, origin)
		}
		return NewOperation(s.id, name, out, origin, timestamp), nil
	case "remove":
		return NewOperation(s.id, name, data, origin, timestamp), nil
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
}

func ORSetFromSnapshot(snap Snapshot) (*ORSet, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	s := NewORSet(id)
	if err := s.Merge(snap); err != nil {
		return nil, err
	}
	return s, nil
}
