package crdt

import (
	"fmt"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdterr"
)

// LWWRegister holds a single value under last-write-wins semantics. A
// new write (ts', replica') supersedes the stored (ts, replica) iff
// ts' > ts, or ts' == ts and replica' is lexicographically greater. The
// initial timestamp of 0 means "never set".
type LWWRegister struct {
	mu        sync.RWMutex
	id        string
	value     any
	timestamp int64
	replica   string
}

func NewLWWRegister(id string) *LWWRegister {
	return &LWWRegister{id: id}
}

func (r *LWWRegister) ID() string    { return r.id }
func (r *LWWRegister) Type() TypeTag { return TypeLWWRegister }

func (r *LWWRegister) ApplyOp(op Operation) error {
	if op.Op != "set" {
		return fmt.Errorf("%s: %w", op.Op, crdterr.ErrUnknownOperation)
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

	r.mu.Lock()
	defer r.mu.Unlock()
	if outranks(ts, op.NodeID, r.timestamp, r.replica) {
		r.value = value
		r.timestamp = ts
		r.replica = op.NodeID
	}
	return nil
}

func (r *LWWRegister) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

func (r *LWWRegister) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		"type":      string(TypeLWWRegister),
		"id":        r.id,
		"value":     r.value,
		"timestamp": r.timestamp,
		"replica":   r.replica,
	}
}

func (r *LWWRegister) Merge(snap Snapshot) error {
	if err := checkSnapshot(snap, TypeLWWRegister, r.id); err != nil {
		return err
	}
	ts, _, err := payloadFloat64(Payload(snap), "timestamp")
	if err != nil {
		return err
	}
	replica, _, err := payloadStringOptional(Payload(snap), "replica")
	if err != nil {
		return err
	}
	value := snap["value"]

	r.mu.Lock()
	defer r.mu.Unlock()
	if outranks(int64(ts), replica, r.timestamp, r.replica) {
		r.value = value
		r.timestamp = int64(ts)
		r.replica = replica
	}
	return nil
}

func (r *LWWRegister) Copy() CRDT {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &LWWRegister{id: r.id, value: r.value, timestamp: r.timestamp, replica: r.replica}
}

func (r *LWWRegister) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = nil
	r.timestamp = 0
	r.replica = ""
}

func (r *LWWRegister) Validate() error { return nil }

func (r *LWWRegister) CreateOp(name string, data Payload, origin string, timestamp int64) (Operation, error) {
	if name != "set" {
		return Operation{}, fmt.Errorf("%s: %w", name, crdterr.ErrUnknownOperation)
	}
	if data == nil {
		data = Payload{}
	}
	if _, ok := data["timestamp"]; !ok {
		data["timestamp"] = timestamp
	}
	return NewOperation(r.id, name, data, origin, timestamp), nil
}

func LWWRegisterFromSnapshot(snap Snapshot) (*LWWRegister, error) {
	id, err := payloadString(Payload(snap), "id")
	if err != nil {
		return nil, err
	}
	r := NewLWWRegister(id)
	if err := r.Merge(snap); err != nil {
		return nil, err
	}
	return r, nil
}
