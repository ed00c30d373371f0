package crdt

import (
	"fmt"
	"sort"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// rgaElement is one entry of the sequence: a globally unique id, the
// value it carries, and a tombstone bit. Deleted elements are kept so
// that a later merge or replayed insert carrying the same uid cannot
// bring them back.
type rgaElement struct {
	uid     string
	value   any
	deleted bool
}

// RGA is a sequence CRDT ordered purely by the lexicographic order of
// element UIDs ("<replica>_<epoch-ms>_<6-digit random>"), not by a
// causal predecessor chain. Two concurrent inserts converge because
// every replica sorts the same UID strings the same way; there is no
// "insert after" dependency to resolve.
type RGA struct {
	mu      sync.RWMutex
	id      string
	clock   Clock
	factory *Factory

	elements map[string]*rgaElement
}

func NewRGA(id string, factory *Factory) *RGA {
	return NewRGAWithClock(id, factory, SystemClock)
}

func NewRGAWithClock(id string, factory *Factory, clock Clock) *RGA {
	return &RGA{
		id:       id,
		clock:    clock,
		factory:  factory,
		elements: make(map[string]*rgaElement),
	}
}

func (r *RGA) ID() string    { return r.id }
func (r *RGA) Type() TypeTag { return TypeRGAArray }

// ordered returns the live (non-tombstoned) elements in UID order.
// Caller holds at least a read lock.
func (r *RGA) ordered() []*rgaElement {
	all := make([]*rgaElement, 0, len(r.elements))
	for _, e := range r.elements {
		if !e.deleted {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].uid < all[j].uid })
	return all
}

func (r *RGA) allSorted() []*rgaElement {
	all := make([]*rgaElement, 0, len(r.elements))
	for _, e := range r.elements {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].uid < all[j].uid })
	return all
}

func (r *RGA) ApplyOp(op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch op.Op {
	case "insert":
		value, ok := op.Data["element"]
		if !ok {
			return fmt.Errorf("element: %w", crdterr.ErrInvalidPayload)
		}
		uid, hasUID, err := payloadStringOptional(op.Data, "uid")
		if err != nil {
			return err
		}
		if hasUID {
			if existing, ok := r.elements[uid]; ok {
				existing.value = value
				return nil
			}
		}

		index, hasIndex, err := payloadFloat64(op.Data, "index")
		if err != nil {
			return err
		}
		live := r.ordered()
		idx := len(live)
		if hasIndex {
			idx = int(index)
		}
		if idx < 0 || idx > len(live) {
			return fmt.Errorf("index %d out of range: %w", idx, crdterr.ErrOutOfRange)
		}
		if !hasUID {
			uid = GenerateUID(r.clock, op.NodeID)
		}
		r.elements[uid] = &rgaElement{uid: uid, value: value}
		return nil

	case "delete":
		uid, hasUID, err := payloadStringOptional(op.Data, "uid")
		if err != nil {
			return err
		}
		if !hasUID {
			index, hasIndex, err := payloadFloat64(op.Data, "index")
			if err != nil {
				return err
			}
			if !hasIndex {
				return fmt.Errorf("uid or index: %w", crdterr.ErrInvalidPayload)
			}
			live := r.ordered()
			idx := int(index)
			if idx < 0 || idx >= len(live) {
				return fmt.Errorf("index %d out of range: %w", idx, crdterr.ErrOutOfRange)
			}
			live[idx].deleted = true
			return nil
		}
		if e, ok := r.elements[uid]; ok {
			e.deleted = true
			return nil
		}
		// Deleting a UID we have not seen yet still records the
		// tombstone, so a concurrently arriving insert of the same
		// UID (replay, or out-of-order delivery) lands deleted.
		r.elements[uid] = &rgaElement{uid: uid, deleted: true}
		return nil

	case "insertText":
		text, err := payloadString(op.Data, "text")
		if err != nil {
			return err
		}
		index, ok, err := payloadFloat64(op.Data, "index")
		if err != nil {
			return err
		}
		idx := len(r.ordered())
		if ok {
			idx = int(index)
		}
		if idx < 0 || idx > len(r.ordered()) {
			return fmt.Errorf("index %d out of range: %w", idx, crdterr.ErrOutOfRange)
		}
		uids, hasUIDs, err := payloadStringSlice(op.Data, "uids")
		if err != nil {
			return err
		}
		runes := []rune(text)
		if hasUIDs && len(uids) != len(runes) {
			return fmt.Errorf("uids length must match text length: %w", crdterr.ErrInvalidPayload)
		}
		for i, ch := range runes {
			uid := ""
			if hasUIDs {
				uid = uids[i]
			} else {
				uid = GenerateUID(r.clock, op.NodeID)
			}
			r.elements[uid] = &rgaElement{uid: uid, value: string(ch)}
		}
		return nil

	case "deleteRange":
		startF, ok, err := payloadFloat64(op.Data, "start")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("start: %w", crdterr.ErrInvalidPayload)
		}
		countF, ok, err := payloadFloat64(op.Data, "count")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("count: %w", crdterr.ErrInvalidPayload)
		}
		start, count := int(startF), int(countF)
		live := r.ordered()
		if start < 0 || count < 0 || start+count > len(live) {
			return fmt.Errorf("range [%d,%d) out of range: %w", start, start+count, crdterr.ErrOutOfRange)
		}
		for i := start; i < start+count; i++ {
			live[i].deleted = true
		}
		return nil

	default:
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
	}
}

func (r *RGA) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]any, 0, len(r.elements))
	for _, e := range r.ordered() {
		out = append(out, e.value)
	}
	return out
}

func (r *RGA) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	elements := make([]any, 0, len(r.elements))
	for _, e := range r.allSorted() {
		elements = append(elements, map[string]any{
			"uid":     e.uid,
			"value":   e.value,
			"deleted": e.deleted,
		})
	}
	return Snapshot{
		"type":     string(TypeRGAArray),
		"id":       r.id,
		"elements": elements,
	}
}

func (r *RGA) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeRGAArray, r.id); err != nil {
		return err
	}
	raw, ok := snap["elements"].([]any)
	if !ok {
		return fmt.Errorf("elements must be a list: %w", crdterr.ErrInvalidPayload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("element must be an object: %w", crdterr.ErrInvalidPayload)
		}
		uid, _ := m["uid"].(string)
		deleted, _ := m["deleted"].(bool)
		value := m["value"]

		existing, ok := r.elements[uid]
		if !ok {
			r.elements[uid] = &rgaElement{uid: uid, value: value, deleted: deleted}
			continue
		}
		// Tombstones never heal: once deleted, always deleted.
		if deleted {
			existing.deleted = true
		}
		if !existing.deleted {
			existing.value = value
		}
	}
	return nil
}

func (r *RGA) Copy() CRDT {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dup := NewRGAWithClock(r.id, r.factory, r.clock)
	for uid, e := range r.elements {
		cp := *e
		dup.elements[uid] = &cp
	}
	return dup
}

func (r *RGA) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = make(map[string]*rgaElement)
}

func (r *RGA) Validate() error { return nil }

// CreateOp generates the uid(s) an insert/insertText will need up
// front and places them in the returned operation's data, so the same
// record replayed on any replica produces the same element uid rather
// than each replica minting its own at ApplyOp time.
func (r *RGA) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	switch name {
	case "insert":
		out := clonePayload(data)
		if _, hasUID := out["uid"]; !hasUID {
			out["uid"] = GenerateUID(r.clock, origin)
		}
		return NewOperation(r.id, name, out, origin, timestamp), nil
	case "insertText":
		out := clonePayload(data)
		if _, hasUIDs := out["uids"]; !hasUIDs {
			text, _ := out["text"].(string)
			runes := []rune(text)
			uids := make([]string, len(runes))
			for i := range runes {
				uids[i] = GenerateUID(r.clock, origin)
			}
			out["uids"] = uids
		}
		return NewOperation(r.id, name, out, origin, timestamp), nil
	case "delete", "deleteRange":
		return NewOperation(r.id, name, data, origin, timestamp), nil
	default:
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
}

func RGAFromSnapshot(snap Snapshot, factory *Factory) (*RGA, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	r := NewRGA(id, factory)
	if err := r.Merge(snap); err != nil {
		return nil, err
	}
	return r, nil
}
